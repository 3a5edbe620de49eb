// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package types

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	// TokenDecimals is the number of decimal places of the pool token.
	TokenDecimals = 18

	// UnitsPerToken is the number of base units in one whole token.
	UnitsPerToken Amount = 1e18
)

var ErrInvalidAmount = errors.New("invalid token amount")

// Amount represents a quantity of the pool token in base units.
type Amount uint64

// ToBytes returns the byte representation of the amount
func (a Amount) ToBytes() []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(a))
	return b
}

// BigInt returns the amount as a big integer.
func (a Amount) BigInt() *big.Int {
	return new(big.Int).SetUint64(uint64(a))
}

// ToTokens returns the amount formatted as whole tokens.
func (a Amount) ToTokens() float64 {
	return float64(a) / float64(UnitsPerToken)
}

// String returns the amount as an exact decimal number of tokens.
func (a Amount) String() string {
	whole := uint64(a) / uint64(UnitsPerToken)
	frac := uint64(a) % uint64(UnitsPerToken)
	if frac == 0 {
		return fmt.Sprintf("%d", whole)
	}
	fracStr := strings.TrimRight(fmt.Sprintf("%018d", frac), "0")
	return fmt.Sprintf("%d.%s", whole, fracStr)
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	amt, err := AmountFromTokens(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*a = amt
	return nil
}

// AmountFromTokens parses a decimal token string such as "0.05"
// into base units. More than 18 decimal places or a value that
// overflows an Amount is an error.
func AmountFromTokens(s string) (Amount, error) {
	r, ok := new(big.Rat).SetString(s)
	if !ok || r.Sign() < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	r.Mul(r, new(big.Rat).SetInt(UnitsPerToken.BigInt()))
	if !r.IsInt() {
		return 0, fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidAmount, s, TokenDecimals)
	}
	n := r.Num()
	if !n.IsUint64() {
		return 0, fmt.Errorf("%w: %q overflows", ErrInvalidAmount, s)
	}
	return Amount(n.Uint64()), nil
}
