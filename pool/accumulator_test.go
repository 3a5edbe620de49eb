// Copyright (c) 2022 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package pool

import (
	"crypto/rand"
	"testing"

	"github.com/federava/week2/params/hash"
	"github.com/federava/week2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randCommitments(t *testing.T, n int) []types.ID {
	ids := make([]types.ID, n)
	for i := range ids {
		x, err := hash.RandomFieldElement(rand.Reader)
		require.NoError(t, err)
		ids[i] = types.NewIDFromField(x)
	}
	return ids
}

func TestAccumulatorEmptyRoot(t *testing.T) {
	acc := NewAccumulator(5)
	zeros := hash.ZeroHashes(5)
	assert.Equal(t, types.NewID(zeros[5]), acc.Root())
	assert.Equal(t, uint64(32), acc.Capacity())
	assert.Equal(t, uint64(0), acc.Len())

	_, err := acc.ProofFor(0)
	assert.ErrorIs(t, err, ErrUnknownIndex)
}

func TestAccumulatorInsertAndProve(t *testing.T) {
	acc := NewAccumulator(5)
	leaves := randCommitments(t, 11)

	for i, leaf := range leaves {
		index, err := acc.Insert(leaf)
		require.NoError(t, err)
		assert.Equal(t, uint64(i), index)

		// Every earlier leaf must still prove against the new root.
		for j := 0; j <= i; j++ {
			proof, err := acc.ProofFor(uint64(j))
			require.NoError(t, err)
			assert.Len(t, proof.Siblings, 5)
			assert.Equal(t, acc.Root(), proof.Root)
			assert.True(t, proof.Verify(), "leaf %d after %d inserts", j, i+1)
		}
	}

	leaf, err := acc.Leaf(3)
	require.NoError(t, err)
	assert.Equal(t, leaves[3], leaf)

	_, err = acc.ProofFor(11)
	assert.ErrorIs(t, err, ErrUnknownIndex)
}

func TestAccumulatorDeterminism(t *testing.T) {
	leaves := randCommitments(t, 13)

	acc1 := NewAccumulator(5)
	acc2 := NewAccumulator(5)
	for _, leaf := range leaves {
		_, err := acc1.Insert(leaf)
		require.NoError(t, err)
		_, err = acc2.Insert(leaf)
		require.NoError(t, err)
	}
	assert.Equal(t, acc1.Root(), acc2.Root())

	acc3, err := NewAccumulatorFromLeaves(5, leaves)
	require.NoError(t, err)
	assert.Equal(t, acc1.Root(), acc3.Root())

	// Same leaves in a different order give a different root.
	swapped := append([]types.ID{}, leaves...)
	swapped[0], swapped[1] = swapped[1], swapped[0]
	acc4, err := NewAccumulatorFromLeaves(5, swapped)
	require.NoError(t, err)
	assert.NotEqual(t, acc1.Root(), acc4.Root())
}

func TestAccumulatorFull(t *testing.T) {
	acc := NewAccumulator(2)
	for _, leaf := range randCommitments(t, 4) {
		_, err := acc.Insert(leaf)
		require.NoError(t, err)
	}
	_, err := acc.Insert(types.ID{})
	assert.ErrorIs(t, err, ErrAccumulatorFull)

	_, err = NewAccumulatorFromLeaves(2, randCommitments(t, 5))
	assert.ErrorIs(t, err, ErrAccumulatorFull)
}

func TestAccumulatorTruncate(t *testing.T) {
	leaves := randCommitments(t, 9)

	acc := NewAccumulator(5)
	roots := []types.ID{acc.Root()}
	for _, leaf := range leaves {
		_, err := acc.Insert(leaf)
		require.NoError(t, err)
		roots = append(roots, acc.Root())
	}

	for n := len(leaves) - 1; n >= 0; n-- {
		acc.truncate(uint64(n))
		assert.Equal(t, uint64(n), acc.Len())
		assert.Equal(t, roots[n], acc.Root(), "truncate to %d", n)
	}

	// Inserting again after a truncate follows the same path.
	for i, leaf := range leaves {
		_, err := acc.Insert(leaf)
		require.NoError(t, err)
		assert.Equal(t, roots[i+1], acc.Root())
	}
}
