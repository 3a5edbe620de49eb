// Copyright (c) 2024 Project Illium
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package wallet

import (
	"context"
	"testing"

	"github.com/federava/week2/types"
	"github.com/federava/week2/zk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWallet(t *testing.T) {
	h := newTestHarness(t)
	alice := NewWallet(newKey(t), h.pool)
	bob := NewWallet(newKey(t), h.pool)

	h.deposit(t, alice.Key(), tokens(t, "0.1"))
	h.deposit(t, alice.Key(), tokens(t, "0.03"))

	events, err := h.pool.Events(0)
	require.NoError(t, err)
	assert.Equal(t, 2, alice.Sync(events))
	assert.Equal(t, 0, bob.Sync(events))
	assert.Equal(t, uint64(len(events)), alice.SyncHeight())

	// Syncing the same events again finds nothing new.
	assert.Equal(t, 0, alice.Sync(events))

	bal, err := alice.Balance()
	require.NoError(t, err)
	assert.Equal(t, tokens(t, "0.13"), bal)

	_, err = alice.SelectInputs(tokens(t, "0.2"), 2)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	_, err = alice.SelectInputs(tokens(t, "0.12"), 1)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	inputs, err := alice.SelectInputs(tokens(t, "0.12"), 2)
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	assert.Equal(t, tokens(t, "0.1"), inputs[0].Note.Amount)

	// Send 0.06 to bob and keep the change.
	b := NewBuilder(h.pool, &zk.MockProver{})
	_, err = Transact(context.Background(), b, h.pool, &TxRequest{
		Inputs: inputs,
		Outputs: []*types.Note{
			newNote(t, tokens(t, "0.06"), bob.Key()),
			newNote(t, tokens(t, "0.07"), alice.Key()),
		},
	})
	require.NoError(t, err)

	events, err = h.pool.Events(alice.SyncHeight())
	require.NoError(t, err)
	alice.Sync(events)
	bob.Sync(events)

	bal, err = alice.Balance()
	require.NoError(t, err)
	assert.Equal(t, tokens(t, "0.07"), bal)
	bal, err = bob.Balance()
	require.NoError(t, err)
	assert.Equal(t, tokens(t, "0.06"), bal)

	unspent, err := alice.Unspent()
	require.NoError(t, err)
	assert.Len(t, unspent, 1)
}
