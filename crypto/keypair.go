// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package crypto

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/federava/week2/params/hash"
)

// PublicKeyLen is the serialized size of a PublicKey: the shielded
// pubkey followed by the encryption key.
const PublicKeyLen = hash.HashSize + Curve25519PublicKeySize

var (
	// ErrInvalidPrivateKey means the private key is not a non-zero
	// field element.
	ErrInvalidPrivateKey = errors.New("private key is not a valid field element")
	// ErrInvalidPublicKey means the serialized public key is malformed
	// or its shielded component is out of the field range.
	ErrInvalidPublicKey = errors.New("invalid shielded public key")
)

// Keypair is a shielded identity. The private key is a field
// element that owns notes, the public key is its poseidon hash and
// the encryption key is a curve25519 key derived from the private
// key bytes through a chacha stream, so a single secret controls both
// spending and reading.
type Keypair struct {
	privkey *big.Int
	pubkey  *big.Int
	encKey  *Curve25519PrivateKey
}

// PublicKey is the shareable half of a Keypair. It carries no
// private material.
type PublicKey struct {
	Pubkey        *big.Int
	EncryptionKey *Curve25519PublicKey
}

// GenerateKeypair returns a keypair with a private key drawn from
// crypto/rand.
func GenerateKeypair() (*Keypair, error) {
	priv, err := hash.RandomFieldElement(nil)
	if err != nil {
		return nil, err
	}
	return NewKeypair(priv)
}

// NewKeypairFromSeed deterministically derives a keypair from a
// 32 byte wallet seed.
func NewKeypairFromSeed(seed [32]byte) (*Keypair, error) {
	priv, err := hash.RandomFieldElement(NewSeededReader(seed))
	if err != nil {
		return nil, err
	}
	return NewKeypair(priv)
}

// NewKeypair builds a keypair from an existing private key.
func NewKeypair(privkey *big.Int) (*Keypair, error) {
	if !hash.InField(privkey) || privkey.Sign() == 0 {
		return nil, ErrInvalidPrivateKey
	}
	var seed [32]byte
	copy(seed[:], hash.FieldBytes(privkey))
	encKey, _, err := NewCurve25519KeyFromSeed(seed)
	if err != nil {
		return nil, err
	}
	return &Keypair{
		privkey: new(big.Int).Set(privkey),
		pubkey:  hash.Poseidon(privkey),
		encKey:  encKey,
	}, nil
}

// KeypairFromBytes parses a 32 byte big endian private key.
func KeypairFromBytes(b []byte) (*Keypair, error) {
	if len(b) != hash.HashSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPrivateKey, hash.HashSize, len(b))
	}
	return NewKeypair(new(big.Int).SetBytes(b))
}

// Bytes returns the private key serialized as 32 big endian bytes.
func (k *Keypair) Bytes() []byte {
	return hash.FieldBytes(k.privkey)
}

// PrivateKey returns the private field element.
func (k *Keypair) PrivateKey() *big.Int {
	return new(big.Int).Set(k.privkey)
}

// Pubkey returns the shielded public key.
func (k *Keypair) Pubkey() *big.Int {
	return new(big.Int).Set(k.pubkey)
}

// PublicKey returns the shareable public half of the keypair.
func (k *Keypair) PublicKey() *PublicKey {
	return &PublicKey{
		Pubkey:        k.Pubkey(),
		EncryptionKey: k.encKey.PublicKey(),
	}
}

// EncryptionKey returns the curve25519 key used to open outputs.
func (k *Keypair) EncryptionKey() *Curve25519PrivateKey {
	return k.encKey
}

// Sign returns poseidon(privkey, commitment, index). It is the
// ownership witness that goes into a note's nullifier.
func (k *Keypair) Sign(commitment *big.Int, index uint64) *big.Int {
	return hash.Poseidon(k.privkey, commitment, new(big.Int).SetUint64(index))
}

// Decrypt opens a ciphertext sealed to this keypair.
func (k *Keypair) Decrypt(ciphertext []byte) ([]byte, error) {
	return Decrypt(k.encKey, ciphertext)
}

// Owns returns whether the public key belongs to this keypair.
func (k *Keypair) Owns(pub *PublicKey) bool {
	return pub != nil && pub.Equals(k.PublicKey())
}

// Equals returns whether both public keys are identical.
func (p *PublicKey) Equals(o *PublicKey) bool {
	if p == nil || o == nil || p.Pubkey == nil || o.Pubkey == nil {
		return false
	}
	if p.Pubkey.Cmp(o.Pubkey) != 0 {
		return false
	}
	if p.EncryptionKey == nil || o.EncryptionKey == nil {
		return p.EncryptionKey == o.EncryptionKey
	}
	return p.EncryptionKey.Equals(o.EncryptionKey)
}

// Encrypt seals the plaintext to the encryption key.
func (p *PublicKey) Encrypt(plaintext []byte) ([]byte, error) {
	return Encrypt(p.EncryptionKey, plaintext)
}

// Bytes serializes the public key as pubkey || encryption key.
func (p *PublicKey) Bytes() []byte {
	b := make([]byte, 0, PublicKeyLen)
	b = append(b, hash.FieldBytes(p.Pubkey)...)
	return append(b, p.EncryptionKey.Bytes()...)
}

// PublicKeyFromBytes parses a serialized public key. The shielded
// pubkey must be a canonical field element.
func PublicKeyFromBytes(b []byte) (*PublicKey, error) {
	if len(b) != PublicKeyLen {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPublicKey, PublicKeyLen, len(b))
	}
	pubkey := new(big.Int).SetBytes(b[:hash.HashSize])
	if !hash.InField(pubkey) {
		return nil, fmt.Errorf("%w: pubkey exceeds field modulus", ErrInvalidPublicKey)
	}
	encKey, err := UnmarshalCurve25519PublicKey(b[hash.HashSize:])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPublicKey, err)
	}
	return &PublicKey{
		Pubkey:        pubkey,
		EncryptionKey: encKey,
	}, nil
}
