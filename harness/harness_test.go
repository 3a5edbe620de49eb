// Copyright (c) 2022 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package harness

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/federava/week2/pool"
	"github.com/federava/week2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	aliceAccount     = common.HexToAddress("0xa1")
	bobAccount       = common.HexToAddress("0xb1")
	recipientAccount = common.HexToAddress("0xc1")
	l1Recipient      = common.HexToAddress("0xd1")
)

func tokens(t *testing.T, s string) types.Amount {
	a, err := types.AmountFromTokens(s)
	require.NoError(t, err)
	return a
}

func balanceOf(t *testing.T, h *TestHarness, account common.Address) types.Amount {
	bal, err := h.BalanceOf(account)
	require.NoError(t, err)
	return bal
}

func custody(t *testing.T, h *TestHarness) types.Amount {
	bal, err := h.CustodyBalance()
	require.NoError(t, err)
	return bal
}

func shielded(t *testing.T, h *TestHarness, p *Party) types.Amount {
	bal, err := h.ShieldedBalance(p)
	require.NoError(t, err)
	return bal
}

func TestDepositAndPartialWithdraw(t *testing.T) {
	ctx := context.Background()
	h, err := NewTestHarness(DefaultOptions())
	require.NoError(t, err)

	alice, err := h.NewParty("alice", aliceAccount)
	require.NoError(t, err)

	_, err = h.Deposit(ctx, alice, tokens(t, "0.1"))
	require.NoError(t, err)
	assert.Equal(t, tokens(t, "0.1"), shielded(t, h, alice))

	receipt, err := h.Withdraw(ctx, alice, tokens(t, "0.08"), recipientAccount)
	require.NoError(t, err)
	assert.False(t, receipt.Settlement.ToL1)

	assert.Equal(t, tokens(t, "0.08"), balanceOf(t, h, recipientAccount))
	assert.Equal(t, tokens(t, "0.02"), custody(t, h))
	assert.Zero(t, balanceOf(t, h, h.BridgeAccount()))
	assert.Equal(t, tokens(t, "0.02"), shielded(t, h, alice))
}

func TestTransferAndMixedWithdrawals(t *testing.T) {
	ctx := context.Background()
	h, err := NewTestHarness(DefaultOptions())
	require.NoError(t, err)

	alice, err := h.NewParty("alice", aliceAccount)
	require.NoError(t, err)
	bob, err := h.NewParty("bob", bobAccount)
	require.NoError(t, err)

	_, err = h.Deposit(ctx, alice, tokens(t, "0.13"))
	require.NoError(t, err)

	// Alice finds bob's address through the account registry.
	pub, err := h.Pool().LookupAccount(bob.Account)
	require.NoError(t, err)
	require.True(t, pub.Equals(bob.Wallet.PublicKey()))
	bobAddr, err := h.Address(bob)
	require.NoError(t, err)

	_, err = h.Transfer(ctx, alice, bobAddr, tokens(t, "0.06"))
	require.NoError(t, err)
	assert.Equal(t, tokens(t, "0.06"), shielded(t, h, bob))
	assert.Equal(t, tokens(t, "0.07"), shielded(t, h, alice))

	_, err = h.Withdraw(ctx, bob, tokens(t, "0.06"), bob.Account)
	require.NoError(t, err)

	receipt, err := h.WithdrawToL1(ctx, alice, tokens(t, "0.07"), l1Recipient, 0)
	require.NoError(t, err)
	assert.True(t, receipt.Settlement.ToL1)

	assert.Equal(t, tokens(t, "0.06"), balanceOf(t, h, bob.Account))
	assert.Zero(t, custody(t, h))
	assert.Equal(t, tokens(t, "0.07"), balanceOf(t, h, h.BridgeAccount()))
	assert.Zero(t, shielded(t, h, alice))
	assert.Zero(t, shielded(t, h, bob))

	sent := h.Bridge().Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, l1Recipient, sent[0].Recipient)
	assert.Equal(t, tokens(t, "0.07"), sent[0].Amount)
}

func TestHarnessRejections(t *testing.T) {
	ctx := context.Background()
	h, err := NewTestHarness(DefaultOptions())
	require.NoError(t, err)

	alice, err := h.NewParty("alice", aliceAccount)
	require.NoError(t, err)

	// Above the maximum deposit the funds are held as a pending deposit.
	_, err = h.Deposit(ctx, alice, tokens(t, "2"))
	assert.True(t, pool.ErrorIs(err, pool.ErrAmountOutOfRange))
	pending, err := h.Adapter().PendingDeposits()
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.Zero(t, custody(t, h))

	_, err = h.Deposit(ctx, alice, tokens(t, "0.1"))
	require.NoError(t, err)

	// L1 withdrawals have a minimum.
	_, err = h.WithdrawToL1(ctx, alice, tokens(t, "0.01"), l1Recipient, 0)
	assert.True(t, pool.ErrorIs(err, pool.ErrAmountOutOfRange))
	assert.Equal(t, tokens(t, "0.1"), shielded(t, h, alice))

	_, err = h.Transfer(ctx, alice, "not an address", 1)
	assert.Error(t, err)
}

func TestConcurrentWithdrawals(t *testing.T) {
	ctx := context.Background()
	h, err := NewTestHarness(DefaultOptions())
	require.NoError(t, err)

	parties := make([]*Party, 4)
	for i := range parties {
		parties[i], err = h.NewParty("party", common.BigToAddress(big.NewInt(int64(0x100+i))))
		require.NoError(t, err)
		_, err = h.Deposit(ctx, parties[i], tokens(t, "0.1"))
		require.NoError(t, err)
	}

	// Every withdrawal races for the same root. Stale ones are rebuilt
	// and resubmitted until they land.
	amount := tokens(t, "0.05")
	var wg sync.WaitGroup
	errs := make([]error, len(parties))
	for i, p := range parties {
		wg.Add(1)
		go func(i int, p *Party) {
			defer wg.Done()
			_, errs[i] = h.Withdraw(ctx, p, amount, p.Account)
		}(i, p)
	}
	wg.Wait()

	for i, p := range parties {
		require.NoError(t, errs[i])
		assert.Equal(t, amount, balanceOf(t, h, p.Account))
	}
	assert.Equal(t, tokens(t, "0.2"), custody(t, h))
}
