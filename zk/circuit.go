// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package zk

import (
	"fmt"
	"math/big"

	"github.com/federava/week2/params/hash"
	"github.com/federava/week2/types"
)

// Circuit identifies a compiled transaction circuit by its fixed
// input and output arity. There is no variadic circuit: callers pad
// with dummy notes.
type Circuit struct {
	Name    string
	Inputs  int
	Outputs int
}

var (
	// Transaction2 spends two notes and creates two.
	Transaction2 = Circuit{Name: "transaction2", Inputs: 2, Outputs: 2}
	// Transaction16 spends sixteen notes and creates two.
	Transaction16 = Circuit{Name: "transaction16", Inputs: 16, Outputs: 2}

	circuits = []Circuit{Transaction2, Transaction16}
)

// CircuitFor returns the circuit compiled for exactly the given arity.
func CircuitFor(inputs, outputs int) (Circuit, error) {
	for _, c := range circuits {
		if c.Inputs == inputs && c.Outputs == outputs {
			return c, nil
		}
	}
	return Circuit{}, fmt.Errorf("no circuit for %d inputs and %d outputs", inputs, outputs)
}

// PublicInputs are the values a proof is bound to and that the
// verifier sees.
type PublicInputs struct {
	Root              types.ID
	InputNullifiers   []types.Nullifier
	OutputCommitments []types.ID
	// PublicAmount is (extAmount - fee) mod p.
	PublicAmount *big.Int
	ExtDataHash  types.ID
}

// Serialize returns a canonical encoding of the public inputs.
func (p *PublicInputs) Serialize() []byte {
	ser := make([]byte, 0, hash.HashSize*(3+len(p.InputNullifiers)+len(p.OutputCommitments)))
	ser = append(ser, p.Root.Bytes()...)
	for _, n := range p.InputNullifiers {
		ser = append(ser, n.Bytes()...)
	}
	for _, c := range p.OutputCommitments {
		ser = append(ser, c.Bytes()...)
	}
	amount := p.PublicAmount
	if amount == nil {
		amount = new(big.Int)
	}
	ser = append(ser, hash.FieldBytes(amount)...)
	return append(ser, p.ExtDataHash.Bytes()...)
}

// InputWitness is the private data behind one spent note.
type InputWitness struct {
	Amount     types.Amount
	Blinding   *big.Int
	PrivateKey *big.Int
	Index      uint64
	// Path holds the merkle siblings from the leaf upwards. It may
	// be empty for zero value inputs.
	Path []types.ID
}

// OutputWitness is the private data behind one created note.
type OutputWitness struct {
	Amount   types.Amount
	Pubkey   *big.Int
	Blinding *big.Int
}

// PrivateInputs is the full witness of a transaction.
type PrivateInputs struct {
	Inputs  []InputWitness
	Outputs []OutputWitness
}
