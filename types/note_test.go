// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package types

import (
	"math/big"
	"testing"

	"github.com/federava/week2/crypto"
	"github.com/go-test/deep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoteCommitmentBinding(t *testing.T) {
	kp, err := crypto.GenerateKeypair()
	require.NoError(t, err)
	kp2, err := crypto.GenerateKeypair()
	require.NoError(t, err)

	blinding := big.NewInt(7)
	base, err := NewNote(100, kp.PublicKey(), blinding)
	require.NoError(t, err)

	same, err := NewNote(100, kp.PublicKey(), blinding)
	require.NoError(t, err)
	assert.Equal(t, base.Commitment(), same.Commitment())

	variants := []*Note{
		{Amount: 101, Owner: kp.PublicKey(), Blinding: blinding},
		{Amount: 100, Owner: kp2.PublicKey(), Blinding: blinding},
		{Amount: 100, Owner: kp.PublicKey(), Blinding: big.NewInt(8)},
	}
	for i, v := range variants {
		assert.NotEqual(t, base.Commitment(), v.Commitment(), "variant %d", i)
	}

	r1, err := NewNote(100, kp.PublicKey(), nil)
	require.NoError(t, err)
	r2, err := NewNote(100, kp.PublicKey(), nil)
	require.NoError(t, err)
	assert.NotEqual(t, r1.Commitment(), r2.Commitment())
}

func TestNoteNullifier(t *testing.T) {
	kp, err := crypto.GenerateKeypair()
	require.NoError(t, err)

	n, err := NewNote(50, kp.PublicKey(), nil)
	require.NoError(t, err)

	_, err = n.Nullifier(kp)
	assert.ErrorIs(t, err, ErrNotInserted)

	n.SetIndex(3)
	n1, err := n.Nullifier(kp)
	require.NoError(t, err)
	n2, err := n.Nullifier(kp)
	require.NoError(t, err)
	assert.Equal(t, n1, n2)

	n.SetIndex(4)
	n3, err := n.Nullifier(kp)
	require.NoError(t, err)
	assert.NotEqual(t, n1, n3)

	other, err := crypto.GenerateKeypair()
	require.NoError(t, err)
	_, err = n.Nullifier(other)
	assert.ErrorIs(t, err, ErrWrongOwner)
}

func TestNoteEncryption(t *testing.T) {
	kp, err := crypto.GenerateKeypair()
	require.NoError(t, err)

	n, err := NewNote(UnitsPerToken/10, kp.PublicKey(), nil)
	require.NoError(t, err)

	ct, err := n.Encrypt()
	require.NoError(t, err)
	assert.Len(t, ct, EncryptedNoteLen)

	n2, err := DecryptNote(kp, ct, 9)
	require.NoError(t, err)

	idx, ok := n2.Index()
	assert.True(t, ok)
	assert.Equal(t, uint64(9), idx)
	n.SetIndex(9)
	assert.Empty(t, deep.Equal(n, n2))
	assert.Equal(t, n.Commitment(), n2.Commitment())

	other, err := crypto.GenerateKeypair()
	require.NoError(t, err)
	_, err = DecryptNote(other, ct, 9)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDummyNote(t *testing.T) {
	n, kp, err := NewDummyNote()
	require.NoError(t, err)
	assert.True(t, n.IsDummy())

	_, err = n.Nullifier(kp)
	assert.NoError(t, err)
}
