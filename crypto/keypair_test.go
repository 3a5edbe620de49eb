// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package crypto

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/federava/week2/params/hash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeypair(t *testing.T) {
	kp, err := GenerateKeypair()
	require.NoError(t, err)

	assert.Equal(t, 0, hash.Poseidon(kp.privkey).Cmp(kp.Pubkey()))

	kp2, err := KeypairFromBytes(kp.Bytes())
	require.NoError(t, err)
	assert.True(t, kp2.PublicKey().Equals(kp.PublicKey()))
	assert.True(t, kp.Owns(kp2.PublicKey()))

	other, err := GenerateKeypair()
	require.NoError(t, err)
	assert.False(t, kp.Owns(other.PublicKey()))

	commitment := big.NewInt(42)
	assert.Equal(t, 0, kp.Sign(commitment, 3).Cmp(kp2.Sign(commitment, 3)))
	assert.NotEqual(t, 0, kp.Sign(commitment, 3).Cmp(kp.Sign(commitment, 4)))
}

func TestNewKeypairRejectsInvalidKeys(t *testing.T) {
	_, err := NewKeypair(big.NewInt(0))
	assert.ErrorIs(t, err, ErrInvalidPrivateKey)

	_, err = NewKeypair(hash.FieldModulus())
	assert.ErrorIs(t, err, ErrInvalidPrivateKey)

	_, err = KeypairFromBytes([]byte{0x01})
	assert.ErrorIs(t, err, ErrInvalidPrivateKey)
}

func TestNewKeypairFromSeed(t *testing.T) {
	var seed [32]byte
	rand.Read(seed[:])

	kp, err := NewKeypairFromSeed(seed)
	require.NoError(t, err)
	kp2, err := NewKeypairFromSeed(seed)
	require.NoError(t, err)
	assert.True(t, kp.PublicKey().Equals(kp2.PublicKey()))
}

func TestPublicKeySerialization(t *testing.T) {
	kp, err := GenerateKeypair()
	require.NoError(t, err)

	ser := kp.PublicKey().Bytes()
	assert.Len(t, ser, PublicKeyLen)

	pub, err := PublicKeyFromBytes(ser)
	require.NoError(t, err)
	assert.True(t, pub.Equals(kp.PublicKey()))

	_, err = PublicKeyFromBytes(ser[:40])
	assert.ErrorIs(t, err, ErrInvalidPublicKey)

	tooLarge := make([]byte, PublicKeyLen)
	copy(tooLarge, ser)
	for i := 0; i < hash.HashSize; i++ {
		tooLarge[i] = 0xff
	}
	_, err = PublicKeyFromBytes(tooLarge)
	assert.ErrorIs(t, err, ErrInvalidPublicKey)
}

func TestKeypairEncryption(t *testing.T) {
	kp, err := GenerateKeypair()
	require.NoError(t, err)

	ct, err := kp.PublicKey().Encrypt([]byte("note"))
	require.NoError(t, err)

	pt, err := kp.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, []byte("note"), pt)
}
