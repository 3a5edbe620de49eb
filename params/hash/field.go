// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package hash

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/iden3/go-iden3-crypto/poseidon"
)

// zeroValueSeed is hashed with keccak256 and reduced into the field to
// produce the value of an empty leaf.
const zeroValueSeed = "tornado"

var (
	fieldModulus = fr.Modulus()
	zeroValue    = new(big.Int).Mod(new(big.Int).SetBytes(crypto.Keccak256([]byte(zeroValueSeed))), fieldModulus)
)

// FieldModulus returns the order of the bn254 scalar field. Every
// value that enters a commitment, nullifier or merkle node is an
// element of this field.
func FieldModulus() *big.Int {
	return new(big.Int).Set(fieldModulus)
}

// InField returns whether x is a canonical field element.
func InField(x *big.Int) bool {
	return x != nil && x.Sign() >= 0 && x.Cmp(fieldModulus) < 0
}

// ToField interprets b as a big endian integer and reduces it
// modulo the field order.
func ToField(b []byte) *big.Int {
	return new(big.Int).Mod(new(big.Int).SetBytes(b), fieldModulus)
}

// FieldBytes returns the 32 byte big endian encoding of x reduced
// into the field.
func FieldBytes(x *big.Int) []byte {
	b := make([]byte, HashSize)
	new(big.Int).Mod(x, fieldModulus).FillBytes(b)
	return b
}

// Poseidon hashes the inputs with the circom compatible poseidon
// permutation. Inputs are reduced modulo the field order first.
//
// Poseidon panics if it is called with zero or more than sixteen
// inputs.
func Poseidon(inputs ...*big.Int) *big.Int {
	elems := make([]*big.Int, len(inputs))
	for i, in := range inputs {
		elems[i] = new(big.Int).Mod(in, fieldModulus)
	}
	h, err := poseidon.Hash(elems)
	if err != nil {
		panic(fmt.Sprintf("poseidon: %s", err))
	}
	return h
}

// ZeroValue returns the value of an empty leaf in the commitment tree.
func ZeroValue() *big.Int {
	return new(big.Int).Set(zeroValue)
}

// ZeroHashes returns the roots of empty subtrees for every level from
// the leaves (level 0) up to and including the root of a tree of the
// given height.
func ZeroHashes(height uint8) [][]byte {
	zeros := make([][]byte, int(height)+1)
	zeros[0] = FieldBytes(zeroValue)
	for i := 1; i <= int(height); i++ {
		zeros[i] = HashMerkleBranches(zeros[i-1], zeros[i-1])
	}
	return zeros
}

// RandomFieldElement returns a uniformly random element of the field
// read from r. If r is nil crypto/rand is used.
func RandomFieldElement(r io.Reader) (*big.Int, error) {
	if r == nil {
		r = rand.Reader
	}
	return rand.Int(r, fieldModulus)
}
