// Copyright (c) 2024 Project Illium
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package pool

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/federava/week2/types"
)

// TokenLedger is the token custody the pool settles against.
type TokenLedger interface {
	// CustodyBalance returns the pool's spendable balance. Escrowed
	// deposits that have not been claimed are not included.
	CustodyBalance(token common.Address) (types.Amount, error)

	// EscrowHeld returns the unclaimed escrow of one deposit.
	EscrowHeld(token common.Address, depositID types.ID) (types.Amount, error)

	// ClaimEscrow moves the escrow of the deposit into the spendable
	// custody. The deposit must hold exactly amount.
	ClaimEscrow(token common.Address, depositID types.ID, amount types.Amount) error

	// Transfer pays amount out of the pool's custody.
	Transfer(token common.Address, to common.Address, amount types.Amount) error
}

// WithdrawalRouter hands withdrawn funds to the bridge for delivery
// on L1. It takes the funds out of pool custody itself.
type WithdrawalRouter interface {
	RouteWithdrawalToL1(token common.Address, amount types.Amount, l1Recipient common.Address, l1Fee types.Amount) error
}

// Settlement describes how the external amount of an applied
// transaction is moved. DepositID names the escrow a deposit claims.
// Recipient is the L1 destination when ToL1 is set.
type Settlement struct {
	Deposit    types.Amount
	DepositID  types.ID
	Withdrawal types.Amount
	Recipient  common.Address
	ToL1       bool
	L1Fee      types.Amount
	Fee        types.Amount
	Relayer    common.Address
}
