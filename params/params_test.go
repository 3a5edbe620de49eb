// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package params

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoolParams_PaddedInputs(t *testing.T) {
	p := &RegtestParams
	tests := []struct {
		n        int
		expected int
		ok       bool
	}{
		{0, 2, true},
		{1, 2, true},
		{2, 2, true},
		{3, 16, true},
		{16, 16, true},
		{17, 0, false},
	}
	for _, test := range tests {
		arity, ok := p.PaddedInputs(test.n)
		assert.Equal(t, test.ok, ok, "inputs %d", test.n)
		assert.Equal(t, test.expected, arity, "inputs %d", test.n)
	}
}

func TestPoolParams_SupportsArity(t *testing.T) {
	p := &RegtestParams
	assert.True(t, p.SupportsArity(2, 2))
	assert.True(t, p.SupportsArity(16, 2))
	assert.False(t, p.SupportsArity(1, 2))
	assert.False(t, p.SupportsArity(2, 3))
	assert.Equal(t, uint64(32), p.Capacity())
}
