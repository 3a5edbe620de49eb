// Copyright (c) 2022 Project Illium
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package params

import (
	"github.com/federava/week2/types"
)

const (
	networkMainnet = "mainnet"
	networkTestnet = "testnet"
	networkRegtest = "regtest"
)

// PoolParams defines the protocol constants a shielded pool instance
// is deployed with. Two pools with different params are incompatible:
// proofs, addresses and roots produced for one are rejected by the
// other.
type PoolParams struct {
	// Name is a human-readable string to identify the params
	Name string

	// AddressPrefix defines the shielded address prefix used as part
	// of the bech32 serialization.
	AddressPrefix string

	// TreeHeight is the fixed height of the commitment tree. The
	// pool can hold at most 2^TreeHeight commitments.
	TreeHeight uint8

	// InputArities lists, in ascending order, the number of inputs
	// each compiled circuit accepts. Every transaction must use
	// exactly one of them.
	InputArities []int

	// OutputArity is the number of outputs every circuit produces.
	OutputArity int

	// MaximumDepositAmount bounds the external amount a single
	// transaction may bring into the pool.
	MaximumDepositAmount types.Amount

	// MinimumDepositAmount is the smallest accepted deposit. Zero
	// disables the check.
	MinimumDepositAmount types.Amount

	// MinimalWithdrawalAmount is the smallest amount that may be
	// withdrawn to L1. Withdrawals to local recipients are not
	// bounded since they do not load the bridge.
	MinimalWithdrawalAmount types.Amount

	// MaximumFee bounds the relayer fee of a single transaction.
	MaximumFee types.Amount

	// L1ChainID identifies the settlement chain the bridge routes
	// withdrawals to.
	L1ChainID uint64

	// AllowMockProofs sets whether the pool can be made to use mock
	// proofs. This is primarily for testing purposes as full proofs
	// are very heavy.
	AllowMockProofs bool
}

// Capacity returns the maximum number of commitments the tree can hold.
func (p *PoolParams) Capacity() uint64 {
	return uint64(1) << p.TreeHeight
}

// SupportsArity returns whether a circuit exists for the given
// input and output counts.
func (p *PoolParams) SupportsArity(inputs, outputs int) bool {
	if outputs != p.OutputArity {
		return false
	}
	for _, n := range p.InputArities {
		if n == inputs {
			return true
		}
	}
	return false
}

// PaddedInputs returns the smallest supported input arity that can
// hold n real inputs, or false if n exceeds the largest one.
func (p *PoolParams) PaddedInputs(n int) (int, bool) {
	for _, a := range p.InputArities {
		if n <= a {
			return a, true
		}
	}
	return 0, false
}

var MainnetParams = PoolParams{
	Name:                    networkMainnet,
	AddressPrefix:           "sp",
	TreeHeight:              23,
	InputArities:            []int{2, 16},
	OutputArity:             2,
	MaximumDepositAmount:    types.UnitsPerToken,
	MinimalWithdrawalAmount: types.UnitsPerToken / 20,
	MaximumFee:              types.UnitsPerToken / 10,
	L1ChainID:               1,
	AllowMockProofs:         false,
}

var TestnetParams = PoolParams{
	Name:                    networkTestnet,
	AddressPrefix:           "tsp",
	TreeHeight:              23,
	InputArities:            []int{2, 16},
	OutputArity:             2,
	MaximumDepositAmount:    types.UnitsPerToken,
	MinimalWithdrawalAmount: types.UnitsPerToken / 20,
	MaximumFee:              types.UnitsPerToken / 10,
	L1ChainID:               5,
	AllowMockProofs:         false,
}

var RegtestParams = PoolParams{
	Name:                    networkRegtest,
	AddressPrefix:           "rsp",
	TreeHeight:              5,
	InputArities:            []int{2, 16},
	OutputArity:             2,
	MaximumDepositAmount:    types.UnitsPerToken,
	MinimalWithdrawalAmount: types.UnitsPerToken / 20,
	MaximumFee:              types.UnitsPerToken / 10,
	L1ChainID:               1,
	AllowMockProofs:         true,
}
