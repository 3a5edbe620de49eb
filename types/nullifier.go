// Copyright (c) 2022 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package types

import (
	"encoding/hex"
	"math/big"

	"github.com/federava/week2/params/hash"
)

const NullifierSize = hash.HashSize

// Nullifier is published when a note is spent. It is derived from
// the note commitment, its leaf index and the owner's signature so
// only the owner can compute it and every note has exactly one.
type Nullifier [hash.HashSize]byte

func (n Nullifier) String() string {
	return hex.EncodeToString(n[:])
}

func (n Nullifier) Bytes() []byte {
	return n[:]
}

// Field interprets the nullifier as a big endian field element.
func (n Nullifier) Field() *big.Int {
	return new(big.Int).SetBytes(n[:])
}

func (n Nullifier) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

func (n *Nullifier) UnmarshalText(text []byte) error {
	return decodeDigest(n[:], string(text))
}

func NewNullifier(b []byte) Nullifier {
	var n Nullifier
	copy(n[:], b)
	return n
}

func NewNullifierFromString(s string) (Nullifier, error) {
	var n Nullifier
	err := decodeDigest(n[:], s)
	return n, err
}

// CalculateNullifier returns poseidon(commitment, index, signature).
func CalculateNullifier(commitment ID, index uint64, signature *big.Int) Nullifier {
	h := hash.Poseidon(commitment.Field(), new(big.Int).SetUint64(index), signature)
	return NewNullifier(hash.FieldBytes(h))
}
