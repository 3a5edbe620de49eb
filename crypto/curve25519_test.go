// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package crypto

import (
	"crypto/rand"
	"testing"

	"github.com/go-test/deep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurve25519(t *testing.T) {
	priv, pub, err := GenerateCurve25519Key(rand.Reader)
	require.NoError(t, err)

	priv2, err := UnmarshalCurve25519PrivateKey(priv.Bytes())
	assert.NoError(t, err)

	pub2, err := UnmarshalCurve25519PublicKey(pub.Bytes())
	assert.NoError(t, err)

	assert.Empty(t, deep.Equal(priv, priv2))
	assert.Empty(t, deep.Equal(pub, pub2))
	assert.True(t, pub.Equals(priv.PublicKey()))
	assert.False(t, pub.Equals(nil))

	_, err = UnmarshalCurve25519PublicKey(pub.Bytes()[:31])
	assert.Error(t, err)
}

func TestUnmarshalCurve25519PrivateKey(t *testing.T) {
	priv, _, err := GenerateCurve25519Key(rand.Reader)
	require.NoError(t, err)

	raw := priv.Bytes()

	short, err := UnmarshalCurve25519PrivateKey(raw[:Curve25519PrivateKeySize])
	require.NoError(t, err)
	assert.True(t, priv.Equals(short))
	assert.True(t, priv.PublicKey().Equals(short.PublicKey()))

	raw[40] ^= 0xff
	_, err = UnmarshalCurve25519PrivateKey(raw)
	assert.ErrorIs(t, err, ErrKeyMismatch)

	_, err = UnmarshalCurve25519PrivateKey(raw[:10])
	assert.Error(t, err)
}

func TestNewCurve25519KeyFromSeed(t *testing.T) {
	var seed [32]byte
	rand.Read(seed[:])

	priv, pub, err := NewCurve25519KeyFromSeed(seed)
	require.NoError(t, err)
	priv2, pub2, err := NewCurve25519KeyFromSeed(seed)
	require.NoError(t, err)

	assert.True(t, priv.Equals(priv2))
	assert.True(t, pub.Equals(pub2))

	seed[0] ^= 0x01
	priv3, _, err := NewCurve25519KeyFromSeed(seed)
	require.NoError(t, err)
	assert.False(t, priv.Equals(priv3))
}
