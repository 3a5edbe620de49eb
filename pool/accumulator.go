// Copyright (c) 2022 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package pool

import (
	"github.com/federava/week2/params/hash"
	"github.com/federava/week2/types"
)

// Accumulator is a fixed height, append-only merkle tree of note
// commitments. Leaves are filled left to right and the empty positions
// are occupied by precomputed zero subtrees, so the root is a pure
// function of the ordered leaf sequence:
//
//	             root
//	        /           \
//	    h01               h2z
//	  /     \           /     \
//	c0       c1       c2       zero
//
// Every level of the tree is kept in memory. Only the nodes covering
// inserted leaves are stored, everything to the right of them is a
// zero subtree.
//
// The Accumulator is NOT safe for concurrent access. The Pool owns it
// and guards it with its state lock.
type Accumulator struct {
	height uint8
	layers [][]types.ID
	zeros  []types.ID
	root   types.ID
}

// NewAccumulator returns an empty Accumulator of the given height.
func NewAccumulator(height uint8) *Accumulator {
	zeroHashes := hash.ZeroHashes(height)
	zeros := make([]types.ID, len(zeroHashes))
	for i, z := range zeroHashes {
		zeros[i] = types.NewID(z)
	}
	return &Accumulator{
		height: height,
		layers: make([][]types.ID, int(height)+1),
		zeros:  zeros,
		root:   zeros[height],
	}
}

// NewAccumulatorFromLeaves builds an Accumulator holding the leaves in
// order. It hashes every level once rather than replaying inserts.
func NewAccumulatorFromLeaves(height uint8, leaves []types.ID) (*Accumulator, error) {
	a := NewAccumulator(height)
	if uint64(len(leaves)) > a.Capacity() {
		return nil, ErrAccumulatorFull
	}
	a.layers[0] = append(make([]types.ID, 0, len(leaves)), leaves...)
	for l := 0; l < int(height); l++ {
		cur := a.layers[l]
		next := make([]types.ID, 0, (len(cur)+1)/2)
		for i := 0; i < len(cur); i += 2 {
			right := a.zeros[l]
			if i+1 < len(cur) {
				right = cur[i+1]
			}
			next = append(next, hashBranches(cur[i], right))
		}
		a.layers[l+1] = next
	}
	a.updateRoot()
	return a, nil
}

// Insert appends the commitment at the next free leaf, recomputes the
// root and returns the leaf index.
func (a *Accumulator) Insert(commitment types.ID) (uint64, error) {
	index := a.Len()
	if index >= a.Capacity() {
		return 0, ErrAccumulatorFull
	}
	a.layers[0] = append(a.layers[0], commitment)

	idx := index
	for l := 0; l < int(a.height); l++ {
		parent := idx >> 1
		left := a.layers[l][parent*2]
		right := a.zeros[l]
		if parent*2+1 < uint64(len(a.layers[l])) {
			right = a.layers[l][parent*2+1]
		}
		a.setNode(l+1, parent, hashBranches(left, right))
		idx = parent
	}
	a.updateRoot()
	return index, nil
}

// Root returns the cached root of the tree.
func (a *Accumulator) Root() types.ID {
	return a.root
}

// Len returns the number of inserted leaves.
func (a *Accumulator) Len() uint64 {
	return uint64(len(a.layers[0]))
}

// Capacity returns the total number of leaves the tree can hold.
func (a *Accumulator) Capacity() uint64 {
	return uint64(1) << a.height
}

// Height returns the height of the tree.
func (a *Accumulator) Height() uint8 {
	return a.height
}

// Leaf returns the commitment stored at index.
func (a *Accumulator) Leaf(index uint64) (types.ID, error) {
	if index >= a.Len() {
		return types.ID{}, ErrUnknownIndex
	}
	return a.layers[0][index], nil
}

// ProofFor returns the authentication path of the leaf at index
// against the current root.
func (a *Accumulator) ProofFor(index uint64) (*types.MerkleProof, error) {
	if index >= a.Len() {
		return nil, ErrUnknownIndex
	}
	siblings := make([]types.ID, a.height)
	idx := index
	for l := 0; l < int(a.height); l++ {
		sib := idx ^ 1
		if sib < uint64(len(a.layers[l])) {
			siblings[l] = a.layers[l][sib]
		} else {
			siblings[l] = a.zeros[l]
		}
		idx >>= 1
	}
	return &types.MerkleProof{
		Index:    index,
		Leaf:     a.layers[0][index],
		Siblings: siblings,
		Root:     a.root,
	}, nil
}

// truncate drops every leaf at or after n and restores the root the
// tree had when it held n leaves.
func (a *Accumulator) truncate(n uint64) {
	if n >= a.Len() {
		return
	}
	for l := 0; l <= int(a.height); l++ {
		keep := (n + (uint64(1) << l) - 1) >> l
		if keep < uint64(len(a.layers[l])) {
			a.layers[l] = a.layers[l][:keep]
		}
	}
	// The rightmost node of every level may have been hashed with a
	// dropped sibling.
	for l := 1; l <= int(a.height); l++ {
		last := len(a.layers[l]) - 1
		if last < 0 {
			continue
		}
		left := a.layers[l-1][last*2]
		right := a.zeros[l-1]
		if last*2+1 < len(a.layers[l-1]) {
			right = a.layers[l-1][last*2+1]
		}
		a.layers[l][last] = hashBranches(left, right)
	}
	a.updateRoot()
}

func (a *Accumulator) setNode(level int, index uint64, node types.ID) {
	if index == uint64(len(a.layers[level])) {
		a.layers[level] = append(a.layers[level], node)
		return
	}
	a.layers[level][index] = node
}

func (a *Accumulator) updateRoot() {
	if len(a.layers[a.height]) == 0 {
		a.root = a.zeros[a.height]
		return
	}
	a.root = a.layers[a.height][0]
}

func hashBranches(left, right types.ID) types.ID {
	return types.NewID(hash.HashMerkleBranches(left[:], right[:]))
}
