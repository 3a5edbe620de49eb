// Copyright (c) 2022 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package crypto

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryption(t *testing.T) {
	priv, pub, err := GenerateCurve25519Key(rand.Reader)
	require.NoError(t, err)

	message := []byte("message")

	cipherText, err := Encrypt(pub, message)
	assert.NoError(t, err)
	assert.Len(t, cipherText, len(message)+SealOverhead)

	plainText, err := Decrypt(priv, cipherText)
	assert.NoError(t, err)

	assert.Equal(t, message, plainText)

	other, _, err := GenerateCurve25519Key(rand.Reader)
	require.NoError(t, err)
	_, err = Decrypt(other, cipherText)
	assert.ErrorIs(t, err, ErrBoxDecryption)

	cipherText[len(cipherText)-1] ^= 0x01
	_, err = Decrypt(priv, cipherText)
	assert.ErrorIs(t, err, ErrBoxDecryption)
}
