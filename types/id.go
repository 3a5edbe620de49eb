// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package types

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/federava/week2/params/hash"
)

var ErrIDStrSize = fmt.Errorf("max ID string length is %v bytes", hash.HashSize*2)

// ID is a 32 byte digest. Commitments and merkle roots are IDs
// holding a big endian field element.
type ID [hash.HashSize]byte

func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

func (id ID) Bytes() []byte {
	return id[:]
}

// Field interprets the ID as a big endian field element.
func (id ID) Field() *big.Int {
	return new(big.Int).SetBytes(id[:])
}

func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ID) UnmarshalText(text []byte) error {
	return decodeDigest(id[:], string(text))
}

func NewID(digest []byte) ID {
	var id ID
	copy(id[:], digest)
	return id
}

// NewIDFromField returns the ID encoding of a field element.
func NewIDFromField(x *big.Int) ID {
	return NewID(hash.FieldBytes(x))
}

func NewIDFromString(s string) (ID, error) {
	var id ID
	err := decodeDigest(id[:], s)
	return id, err
}

// NewIDFromData hashes arbitrary bytes into an ID. It is used for
// identifiers that are never proven in the circuit.
func NewIDFromData(data []byte) ID {
	return NewID(hash.HashFunc(data))
}

// decodeDigest hex decodes s into dst. Short strings fill the leading
// bytes.
func decodeDigest(dst []byte, s string) error {
	if len(s) > len(dst)*2 {
		return ErrIDStrSize
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	copy(dst, b)
	return nil
}
