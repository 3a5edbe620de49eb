// Copyright (c) 2022 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package pool

import (
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"
	"github.com/federava/week2/params/hash"
	"github.com/federava/week2/types"
	"github.com/federava/week2/types/transactions"
	"github.com/federava/week2/zk"
)

// checkTransaction runs the validation pipeline in order: shape,
// proof, root, policy, nullifiers, capacity and settlement
// preconditions. It returns the settlement the transaction will
// trigger. The caller must hold the state lock.
func (p *Pool) checkTransaction(tx *transactions.Transaction, depositID *types.ID) (*Settlement, error) {
	if err := p.checkShape(tx); err != nil {
		return nil, err
	}
	if err := p.checkProof(tx); err != nil {
		return nil, err
	}
	if tx.Root != p.accumulator.Root() {
		return nil, ruleError(ErrStaleRoot, fmt.Sprintf("transaction root %s is not the current root %s", tx.Root, p.accumulator.Root()))
	}
	settlement, err := p.checkPolicy(tx)
	if err != nil {
		return nil, err
	}
	if err := p.nullifierSet.CheckNullifiers(tx.InputNullifiers); err != nil {
		return nil, err
	}
	if p.accumulator.Len()+uint64(len(tx.OutputCommitments)) > p.accumulator.Capacity() {
		return nil, ruleError(ErrTreeFull, fmt.Sprintf("commitment tree is full: %d of %d leaves used", p.accumulator.Len(), p.accumulator.Capacity()))
	}
	if err := p.checkCustody(settlement, depositID); err != nil {
		return nil, err
	}
	return settlement, nil
}

func (p *Pool) checkShape(tx *transactions.Transaction) error {
	if tx == nil || tx.ExtData == nil {
		return ruleError(ErrMalformedTx, "transaction is missing ext data")
	}
	if !p.params.SupportsArity(len(tx.InputNullifiers), len(tx.OutputCommitments)) {
		return ruleError(ErrInvalidArity, fmt.Sprintf("no circuit for %d inputs and %d outputs", len(tx.InputNullifiers), len(tx.OutputCommitments)))
	}
	if len(tx.ExtData.EncryptedOutputs) != len(tx.OutputCommitments) {
		return ruleError(ErrMalformedTx, "encrypted output count does not match output count")
	}
	for _, c := range tx.OutputCommitments {
		if !hash.InField(c.Field()) {
			return ruleError(ErrMalformedTx, "output commitment is not a field element")
		}
	}
	if len(tx.Proof) == 0 {
		return ruleError(ErrMalformedTx, "transaction has no proof")
	}
	if tx.PublicAmount == math.MinInt64 {
		return ruleError(ErrAmountOutOfRange, "public amount out of range")
	}
	return nil
}

func (p *Pool) checkProof(tx *transactions.Transaction) error {
	extDataHash, err := tx.ComputeExtDataHash()
	if err != nil {
		return ruleError(ErrMalformedTx, fmt.Sprintf("cannot hash ext data: %s", err))
	}
	if extDataHash != tx.ExtDataHash {
		return ruleError(ErrInvalidProof, "ext data hash does not match the proven hash")
	}
	circuit, err := zk.CircuitFor(len(tx.InputNullifiers), len(tx.OutputCommitments))
	if err != nil {
		return ruleError(ErrInvalidArity, err.Error())
	}
	pub := &zk.PublicInputs{
		Root:              tx.Root,
		InputNullifiers:   tx.InputNullifiers,
		OutputCommitments: tx.OutputCommitments,
		PublicAmount:      tx.CircuitAmount(),
		ExtDataHash:       extDataHash,
	}
	valid, err := p.verifier.Verify(circuit, pub, tx.Proof)
	if err != nil {
		return ruleError(ErrInvalidProof, fmt.Sprintf("proof verification failed: %s", err))
	}
	if !valid {
		return ruleError(ErrInvalidProof, "invalid proof")
	}
	return nil
}

// checkPolicy enforces the configured fee and amount limits and
// resolves where the external amount goes.
func (p *Pool) checkPolicy(tx *transactions.Transaction) (*Settlement, error) {
	ext := tx.ExtData
	s := &Settlement{
		Fee:     ext.Fee,
		Relayer: ext.Relayer,
	}
	if ext.Fee > p.params.MaximumFee {
		return nil, ruleError(ErrInvalidFee, fmt.Sprintf("fee %s exceeds maximum %s", ext.Fee, p.params.MaximumFee))
	}
	if ext.Fee > 0 && ext.Relayer == (common.Address{}) {
		return nil, ruleError(ErrInvalidFee, "fee set without a relayer")
	}

	switch {
	case tx.PublicAmount > 0:
		amount := types.Amount(tx.PublicAmount)
		if amount > p.params.MaximumDepositAmount {
			return nil, ruleError(ErrAmountOutOfRange, fmt.Sprintf("deposit %s exceeds maximum %s", amount, p.params.MaximumDepositAmount))
		}
		if amount < p.params.MinimumDepositAmount {
			return nil, ruleError(ErrAmountOutOfRange, fmt.Sprintf("deposit %s below minimum %s", amount, p.params.MinimumDepositAmount))
		}
		if ext.IsL1Withdrawal {
			return nil, ruleError(ErrMalformedTx, "deposit flagged as L1 withdrawal")
		}
		s.Deposit = amount

	case tx.PublicAmount < 0:
		amount := types.Amount(-tx.PublicAmount)
		s.Withdrawal = amount
		if ext.IsL1Withdrawal {
			if p.router == nil {
				return nil, ruleError(ErrMalformedTx, "L1 withdrawals are not supported by this pool")
			}
			if amount < p.params.MinimalWithdrawalAmount {
				return nil, ruleError(ErrAmountOutOfRange, fmt.Sprintf("L1 withdrawal %s below minimum %s", amount, p.params.MinimalWithdrawalAmount))
			}
			if ext.L1Fee > amount {
				return nil, ruleError(ErrInvalidFee, "L1 fee exceeds the withdrawn amount")
			}
			s.ToL1 = true
			s.L1Fee = ext.L1Fee
			s.Recipient = ext.L1Destination()
		} else {
			s.Recipient = ext.Recipient
		}
		if s.Recipient == (common.Address{}) {
			return nil, ruleError(ErrMalformedTx, "withdrawal to the zero address")
		}
	}
	return s, nil
}

// checkCustody makes sure the ledger can settle the transaction before
// anything is written. A deposit must name the escrow it claims and
// that escrow must hold exactly the deposited amount.
func (p *Pool) checkCustody(s *Settlement, depositID *types.ID) error {
	if depositID != nil && s.Deposit == 0 {
		return ruleError(ErrMalformedTx, fmt.Sprintf("deposit %s attached to a transaction that deposits nothing", depositID))
	}
	if s.Deposit > 0 {
		if depositID == nil {
			return ruleError(ErrMissingEscrow, fmt.Sprintf("deposit of %s has no bridged escrow", s.Deposit))
		}
		held, err := p.ledger.EscrowHeld(p.token, *depositID)
		if err != nil {
			return err
		}
		if held != s.Deposit {
			return ruleError(ErrMissingEscrow, fmt.Sprintf("deposit %s holds %s in escrow, transaction deposits %s", depositID, held, s.Deposit))
		}
		s.DepositID = *depositID
	}
	need := s.Withdrawal + s.Fee
	if need == 0 {
		return nil
	}
	custody, err := p.ledger.CustodyBalance(p.token)
	if err != nil {
		return err
	}
	available := custody + s.Deposit
	if available < need {
		return ruleError(ErrInsufficientCustody, fmt.Sprintf("pool custody %s cannot cover %s", available, need))
	}
	return nil
}
