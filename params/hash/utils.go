// Copyright (c) 2022 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package hash

import "math/big"

// HashMerkleBranches takes two field elements, treated as the left and
// right tree nodes, and returns their poseidon hash. Both nodes are
// reduced into the field before hashing.
func HashMerkleBranches(left []byte, right []byte) []byte {
	h := Poseidon(new(big.Int).SetBytes(left), new(big.Int).SetBytes(right))
	return FieldBytes(h)
}

// CatAndHash concatenates all the elements in the slice together
// and then hashes.
func CatAndHash(data [][]byte) []byte {
	size := 0
	for _, d := range data {
		size += len(d)
	}
	combined := make([]byte, 0, size)
	for _, d := range data {
		combined = append(combined, d...)
	}
	return HashFunc(combined)
}
