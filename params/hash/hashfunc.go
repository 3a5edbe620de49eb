// Copyright (c) 2022 Project Illium
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package hash

import (
	"golang.org/x/crypto/blake2s"
)

const HashSize = 32

// HashFunc is the hash function used for everything that does not
// need to be proven inside the circuit, such as transaction IDs
// and deposit record keys.
func HashFunc(data []byte) []byte {
	h := blake2s.Sum256(data)
	return h[:]
}
