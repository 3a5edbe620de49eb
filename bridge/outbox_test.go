// Copyright (c) 2024 Project Illium
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package bridge

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/federava/week2/crypto"
	"github.com/federava/week2/repo"
	"github.com/federava/week2/types"
	"github.com/federava/week2/wallet"
	"github.com/federava/week2/zk"
	"github.com/go-test/deep"
	datastore "github.com/ipfs/go-datastore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withdrawToL1 spends note entirely to an L1 recipient.
func (h *testHarness) withdrawToL1(t *testing.T, kp *crypto.Keypair, note *types.Note, l1Fee types.Amount) {
	t.Helper()
	b := wallet.NewBuilder(h.pool, &zk.MockProver{})
	receipt, err := wallet.Transact(context.Background(), b, h.pool, &wallet.TxRequest{
		Inputs:         []wallet.Input{{Note: note, Key: kp}},
		Recipient:      testReceiver,
		IsL1Withdrawal: true,
		L1Recipient:    testReceiver,
		L1Fee:          l1Fee,
	})
	require.NoError(t, err)
	require.True(t, receipt.Settlement.ToL1)
}

func TestOutboxRouteToL1(t *testing.T) {
	h := newTestHarness(t)
	kp := newKey(t)
	note := h.deposit(t, kp, tokens(t, "0.1"))

	h.withdrawToL1(t, kp, note, tokens(t, "0.001"))

	sent := h.omni.Sent()
	require.Len(t, sent, 1)
	msg := sent[0]
	assert.Equal(t, uint64(0), msg.Nonce)
	assert.Equal(t, uint64(1), msg.ChainID)
	assert.Equal(t, testToken, msg.Token)
	assert.Equal(t, testReceiver, msg.Recipient)
	assert.Equal(t, tokens(t, "0.1"), msg.Amount)
	assert.Equal(t, tokens(t, "0.001"), msg.L1Fee)

	valid, err := msg.Verify(h.outbox.PublicKey())
	require.NoError(t, err)
	assert.True(t, valid)

	assert.Equal(t, tokens(t, "0.1"), h.balance(t, testBridge))
	custody, err := h.ledger.CustodyBalance(testToken)
	require.NoError(t, err)
	assert.Zero(t, custody)

	stuck, err := h.outbox.StuckTransfers()
	require.NoError(t, err)
	assert.Empty(t, stuck)
}

func TestOutboxStuckTransfer(t *testing.T) {
	h := newTestHarness(t)
	kp := newKey(t)
	note := h.deposit(t, kp, tokens(t, "0.1"))

	h.omni.SetFailure(errors.New("bridge offline"))
	h.withdrawToL1(t, kp, note, 0)
	assert.Empty(t, h.omni.Sent())

	// The funds left pool custody even though delivery failed.
	assert.Equal(t, tokens(t, "0.1"), h.balance(t, testBridge))

	stuck, err := h.outbox.StuckTransfers()
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, uint64(0), stuck[0].Nonce)
	assert.Equal(t, tokens(t, "0.1"), stuck[0].Amount)
	valid, err := stuck[0].Verify(h.outbox.PublicKey())
	require.NoError(t, err)
	assert.True(t, valid)

	require.NoError(t, h.outbox.ClearStuckTransfer(0))
	stuck, err = h.outbox.StuckTransfers()
	require.NoError(t, err)
	assert.Empty(t, stuck)
}

func TestOutboxNoncePersistence(t *testing.T) {
	h := newTestHarness(t)
	key, err := repo.GenerateBridgeKey()
	require.NoError(t, err)

	require.NoError(t, h.ledger.Mint(testToken, testCustody, 30))
	for i := 0; i < 3; i++ {
		require.NoError(t, h.outbox.RouteWithdrawalToL1(testToken, 5, testReceiver, 0))
	}

	outbox, err := NewOutbox(h.ds, h.ledger, testBridge, h.omni, key, 1)
	require.NoError(t, err)
	require.NoError(t, outbox.RouteWithdrawalToL1(testToken, 5, testReceiver, 0))

	sent := h.omni.Sent()
	require.Len(t, sent, 4)
	for i, msg := range sent {
		assert.Equal(t, uint64(i), msg.Nonce)
	}
	assert.Equal(t, types.Amount(20), h.balance(t, testBridge))

	// Custody shortfall is reported and consumes no nonce.
	assert.Error(t, outbox.RouteWithdrawalToL1(testToken, 50, testReceiver, 0))
	require.NoError(t, outbox.RouteWithdrawalToL1(testToken, 5, testReceiver, 0))
	sent = h.omni.Sent()
	assert.Equal(t, uint64(4), sent[len(sent)-1].Nonce)
}

// nonceFailDatastore fails writes of the outbound nonce.
type nonceFailDatastore struct {
	repo.Datastore
	err error
}

func (d *nonceFailDatastore) Put(ctx context.Context, key datastore.Key, value []byte) error {
	if key.Equal(outboundNonceKey) && d.err != nil {
		return d.err
	}
	return d.Datastore.Put(ctx, key, value)
}

func TestOutboxNonceWriteFailure(t *testing.T) {
	h := newTestHarness(t)
	key, err := repo.GenerateBridgeKey()
	require.NoError(t, err)

	ds := &nonceFailDatastore{Datastore: h.ds, err: errors.New("disk full")}
	outbox, err := NewOutbox(ds, h.ledger, testBridge, h.omni, key, 1)
	require.NoError(t, err)

	require.NoError(t, h.ledger.Mint(testToken, testCustody, 10))
	assert.ErrorIs(t, outbox.RouteWithdrawalToL1(testToken, 5, testReceiver, 0), ds.err)

	// Nothing left custody and nothing was signed.
	custody, err := h.ledger.CustodyBalance(testToken)
	require.NoError(t, err)
	assert.Equal(t, types.Amount(10), custody)
	assert.Zero(t, h.balance(t, testBridge))
	assert.Empty(t, h.omni.Sent())

	ds.err = nil
	require.NoError(t, outbox.RouteWithdrawalToL1(testToken, 5, testReceiver, 0))
	sent := h.omni.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, uint64(0), sent[0].Nonce)

	nonce, err := dsFetchOutboundNonce(h.ds)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), nonce)
}

func TestOutboundMessage(t *testing.T) {
	key, err := repo.GenerateBridgeKey()
	require.NoError(t, err)

	msg := &OutboundMessage{
		Nonce:     7,
		ChainID:   100,
		Token:     testToken,
		Recipient: common.HexToAddress("0x1234"),
		Amount:    tokens(t, "0.25"),
		L1Fee:     tokens(t, "0.01"),
	}
	require.NoError(t, msg.Sign(key))

	ser, err := msg.Serialize()
	require.NoError(t, err)
	var msg2 OutboundMessage
	require.NoError(t, msg2.Deserialize(ser))
	if diff := deep.Equal(msg, &msg2); diff != nil {
		t.Error(diff)
	}

	valid, err := msg2.Verify(key.GetPublic())
	require.NoError(t, err)
	assert.True(t, valid)

	msg2.Amount++
	valid, err = msg2.Verify(key.GetPublic())
	require.NoError(t, err)
	assert.False(t, valid)

	other, err := repo.GenerateBridgeKey()
	require.NoError(t, err)
	valid, err = msg.Verify(other.GetPublic())
	require.NoError(t, err)
	assert.False(t, valid)

	assert.Error(t, msg2.Deserialize([]byte{0x00}))
}
