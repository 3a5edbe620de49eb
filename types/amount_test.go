// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountJsonMarshaling(t *testing.T) {
	a := Amount(130000000000000000)

	assert.Equal(t, 0.13, a.ToTokens())
	assert.Equal(t, "0.13", a.String())

	a2, err := AmountFromTokens("0.13")
	assert.NoError(t, err)
	assert.Equal(t, a, a2)

	j, err := a.MarshalJSON()
	assert.NoError(t, err)
	assert.Equal(t, "0.13", string(j))

	var a3 Amount
	err = a3.UnmarshalJSON(j)
	assert.NoError(t, err)
	assert.Equal(t, a, a3)
}

func TestAmountFromTokens(t *testing.T) {
	tests := []struct {
		in       string
		expected Amount
		err      bool
	}{
		{"1", UnitsPerToken, false},
		{"0.05", UnitsPerToken / 20, false},
		{"0.000000000000000001", 1, false},
		{"0.0000000000000000001", 0, true},
		{"-1", 0, true},
		{"abc", 0, true},
		{"100", 0, true},
	}
	for _, test := range tests {
		amt, err := AmountFromTokens(test.in)
		if test.err {
			assert.ErrorIs(t, err, ErrInvalidAmount, test.in)
			continue
		}
		require.NoError(t, err, test.in)
		assert.Equal(t, test.expected, amt, test.in)
	}
}
