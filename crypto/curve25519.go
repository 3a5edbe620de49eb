// Copyright (c) 2024 Project Illium
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package crypto

import (
	"bytes"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/nixberg/chacha-rng-go"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"
)

const (
	Curve25519PrivateKeySize = 32
	Curve25519PublicKeySize  = 32
)

// ErrKeyMismatch means a serialized private key carries a public point
// that does not belong to it.
var ErrKeyMismatch = errors.New("curve25519 public key does not match private key")

// Curve25519PrivateKey is the note encryption half of a shielded
// keypair. Outputs sealed to its public key can only be opened with
// it.
type Curve25519PrivateKey struct {
	priv [32]byte
	pub  [32]byte
}

// Curve25519PublicKey is the key outputs are encrypted to.
type Curve25519PublicKey struct {
	k [32]byte
}

// GenerateCurve25519Key generates a new Curve25519 private and public key pair.
func GenerateCurve25519Key(src io.Reader) (*Curve25519PrivateKey, *Curve25519PublicKey, error) {
	pub, priv, err := box.GenerateKey(src)
	if err != nil {
		return nil, nil, err
	}
	k := &Curve25519PrivateKey{priv: *priv, pub: *pub}
	return k, k.PublicKey(), nil
}

// NewCurve25519KeyFromSeed deterministically derives a key pair
// from the seed.
func NewCurve25519KeyFromSeed(seed [32]byte) (*Curve25519PrivateKey, *Curve25519PublicKey, error) {
	return GenerateCurve25519Key(NewSeededReader(seed))
}

// NewCurve25519KeyFromScalar uses the 32 bytes as the private scalar
// and computes the matching public point.
func NewCurve25519KeyFromScalar(scalar []byte) (*Curve25519PrivateKey, error) {
	if len(scalar) != Curve25519PrivateKeySize {
		return nil, fmt.Errorf("expected curve25519 scalar of %d bytes, got %d", Curve25519PrivateKeySize, len(scalar))
	}
	k := &Curve25519PrivateKey{}
	copy(k.priv[:], scalar)
	curve25519.ScalarBaseMult(&k.pub, &k.priv)
	return k, nil
}

type chachaReader struct {
	rng *chacha.ChaCha
}

// NewSeededReader returns a deterministic stream of bytes keyed by
// the seed. It is used to derive keys from a wallet seed.
func NewSeededReader(seed [32]byte) io.Reader {
	var s [8]uint32
	for i := 0; i < 8; i++ {
		s[i] = binary.LittleEndian.Uint32(seed[i*4 : (i+1)*4])
	}
	return &chachaReader{chacha.Seeded20(s, 0)}
}

func (c *chachaReader) Read(p []byte) (n int, err error) {
	var buf [8]byte
	for n < len(p) {
		binary.LittleEndian.PutUint64(buf[:], c.rng.Uint64())
		n += copy(p[n:], buf[:])
	}
	return n, nil
}

// Bytes returns the private scalar followed by the public point.
func (k *Curve25519PrivateKey) Bytes() []byte {
	b := make([]byte, 0, Curve25519PrivateKeySize+Curve25519PublicKeySize)
	b = append(b, k.priv[:]...)
	return append(b, k.pub[:]...)
}

// Equals compares two private keys in constant time.
func (k *Curve25519PrivateKey) Equals(o *Curve25519PrivateKey) bool {
	if o == nil {
		return false
	}
	return subtle.ConstantTimeCompare(k.priv[:], o.priv[:]) == 1
}

// PublicKey returns the public half of the key.
func (k *Curve25519PrivateKey) PublicKey() *Curve25519PublicKey {
	return &Curve25519PublicKey{k: k.pub}
}

// Decrypt attempts to decrypt ciphertext using the private key.
func (k *Curve25519PrivateKey) Decrypt(cipherText []byte) ([]byte, error) {
	return Decrypt(k, cipherText)
}

// Bytes returns a copy of the public point.
func (k *Curve25519PublicKey) Bytes() []byte {
	b := make([]byte, Curve25519PublicKeySize)
	copy(b, k.k[:])
	return b
}

// Equals compares two public keys.
func (k *Curve25519PublicKey) Equals(o *Curve25519PublicKey) bool {
	if o == nil {
		return false
	}
	return bytes.Equal(k.k[:], o.k[:])
}

// Encrypt encrypts the plaintext using the public key and returns the ciphertext.
func (k *Curve25519PublicKey) Encrypt(plaintext []byte) ([]byte, error) {
	return Encrypt(k, plaintext)
}

// UnmarshalCurve25519PublicKey returns a public key from input bytes.
func UnmarshalCurve25519PublicKey(data []byte) (*Curve25519PublicKey, error) {
	if len(data) != Curve25519PublicKeySize {
		return nil, fmt.Errorf("expect Curve25519 public key data size to be %d", Curve25519PublicKeySize)
	}
	pub := &Curve25519PublicKey{}
	copy(pub.k[:], data)
	return pub, nil
}

// UnmarshalCurve25519PrivateKey parses the output of Bytes. A 32 byte
// input is treated as the raw scalar.
func UnmarshalCurve25519PrivateKey(data []byte) (*Curve25519PrivateKey, error) {
	switch len(data) {
	case Curve25519PrivateKeySize:
		return NewCurve25519KeyFromScalar(data)
	case Curve25519PrivateKeySize + Curve25519PublicKeySize:
		k, err := NewCurve25519KeyFromScalar(data[:Curve25519PrivateKeySize])
		if err != nil {
			return nil, err
		}
		if subtle.ConstantTimeCompare(k.pub[:], data[Curve25519PrivateKeySize:]) == 0 {
			return nil, ErrKeyMismatch
		}
		return k, nil
	default:
		return nil, fmt.Errorf(
			"expected Curve25519 data size to be %d or %d, got %d",
			Curve25519PrivateKeySize,
			Curve25519PrivateKeySize+Curve25519PublicKeySize,
			len(data),
		)
	}
}
