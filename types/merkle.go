// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package types

import (
	"github.com/federava/week2/params/hash"
)

// MerkleProof is the authentication path of a leaf in the commitment
// tree. Siblings are ordered from the leaf level up to the child of
// the root. Bit i of Index selects whether the node at level i is a
// right child.
type MerkleProof struct {
	Index    uint64
	Leaf     ID
	Siblings []ID
	Root     ID
}

// ComputeRoot folds the leaf with its siblings and returns the
// resulting root.
func (p *MerkleProof) ComputeRoot() ID {
	cur := p.Leaf.Bytes()
	for level, sib := range p.Siblings {
		if (p.Index>>uint(level))&1 == 1 {
			cur = hash.HashMerkleBranches(sib.Bytes(), cur)
		} else {
			cur = hash.HashMerkleBranches(cur, sib.Bytes())
		}
	}
	return NewID(cur)
}

// Verify returns whether the path connects Leaf to Root.
func (p *MerkleProof) Verify() bool {
	if p.Index>>uint(len(p.Siblings)) != 0 {
		return false
	}
	return p.ComputeRoot() == p.Root
}
