// Copyright (c) 2024 Project Illium
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package bridge

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/federava/week2/crypto"
	"github.com/federava/week2/ledger"
	"github.com/federava/week2/pool"
	"github.com/federava/week2/repo"
	"github.com/federava/week2/repo/mock"
	"github.com/federava/week2/types"
	"github.com/federava/week2/types/transactions"
	"github.com/federava/week2/wallet"
	"github.com/federava/week2/zk"
	"github.com/stretchr/testify/require"
)

var (
	testToken    = common.HexToAddress("0xe1")
	testCustody  = common.HexToAddress("0x01")
	testBridge   = common.HexToAddress("0x02")
	testMultisig = common.HexToAddress("0x03")
	testReceiver = common.HexToAddress("0xb0")
)

type testHarness struct {
	ds      repo.Datastore
	ledger  *ledger.Ledger
	pool    *pool.Pool
	omni    *MockOmniBridge
	outbox  *Outbox
	adapter *Adapter
}

func newTestHarness(t *testing.T) *testHarness {
	ds := mock.NewMapDatastore()
	l := ledger.NewLedger(ds, testCustody)
	omni := NewMockOmniBridge(l, testBridge)

	key, err := repo.GenerateBridgeKey()
	require.NoError(t, err)
	outbox, err := NewOutbox(ds, l, testBridge, omni, key, 1)
	require.NoError(t, err)

	p, err := pool.NewPool(
		pool.DefaultOptions(),
		pool.Datastore(ds),
		pool.Ledger(l),
		pool.L1Router(outbox),
		pool.Token(testToken),
	)
	require.NoError(t, err)

	adapter := NewAdapter(ds, p, l, testMultisig)
	omni.SetAdapter(adapter)
	return &testHarness{
		ds:      ds,
		ledger:  l,
		pool:    p,
		omni:    omni,
		outbox:  outbox,
		adapter: adapter,
	}
}

func tokens(t *testing.T, s string) types.Amount {
	a, err := types.AmountFromTokens(s)
	require.NoError(t, err)
	return a
}

func newKey(t *testing.T) *crypto.Keypair {
	kp, err := crypto.GenerateKeypair()
	require.NoError(t, err)
	return kp
}

// depositPayload builds a deposit of a single note of amount for kp
// against the current root.
func (h *testHarness) depositPayload(t *testing.T, kp *crypto.Keypair, amount types.Amount) []byte {
	t.Helper()
	note, err := types.NewNote(amount, kp.PublicKey(), nil)
	require.NoError(t, err)
	b := wallet.NewBuilder(h.pool, &zk.MockProver{})
	tx, err := b.Prepare(context.Background(), &wallet.TxRequest{
		Outputs: []*types.Note{note},
	})
	require.NoError(t, err)
	payload, err := transactions.EncodeBridgePayload(tx)
	require.NoError(t, err)
	return payload
}

// deposit relays a deposit through the mock bridge and returns the
// created note.
func (h *testHarness) deposit(t *testing.T, kp *crypto.Keypair, amount types.Amount) *types.Note {
	t.Helper()
	_, err := h.omni.RelayDeposit(context.Background(), testToken, amount, h.depositPayload(t, kp, amount))
	require.NoError(t, err)

	events, err := h.pool.Events(0)
	require.NoError(t, err)
	found, err := wallet.ScanEvents([]*crypto.Keypair{kp}, events)
	require.NoError(t, err)
	require.NotEmpty(t, found[0])
	return found[0][len(found[0])-1]
}

func (h *testHarness) balance(t *testing.T, holder common.Address) types.Amount {
	bal, err := h.ledger.BalanceOf(testToken, holder)
	require.NoError(t, err)
	return bal
}
