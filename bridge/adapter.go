// Copyright (c) 2024 Project Illium
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package bridge

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/federava/week2/pool"
	"github.com/federava/week2/repo"
	"github.com/federava/week2/types"
	"github.com/federava/week2/types/transactions"
)

var (
	// ErrUnknownDeposit means no pending deposit has the given ID.
	ErrUnknownDeposit = errors.New("unknown pending deposit")

	// ErrNoMultisig means escrow cannot be rescued because no multisig
	// is configured.
	ErrNoMultisig = errors.New("no rescue multisig configured")
)

// Processor applies deposit transactions to the pool.
type Processor interface {
	ProcessDeposit(tx *transactions.Transaction, depositID types.ID) (*pool.Receipt, error)
	Token() common.Address
}

// EscrowReleaser can pay the unclaimed escrow of a deposit back out.
type EscrowReleaser interface {
	ReleaseEscrow(token common.Address, depositID types.ID, to common.Address) error
}

// DepositError is returned when a bridged deposit could not be
// applied. Its funds stay in escrow under DepositID until the deposit
// is resubmitted with a fresh proof or rescued.
type DepositError struct {
	DepositID types.ID
	Err       error
}

// Error satisfies the error interface.
func (e *DepositError) Error() string {
	return fmt.Sprintf("bridged deposit %s pending: %s", e.DepositID, e.Err)
}

// Unwrap returns the reason the deposit was not applied.
func (e *DepositError) Unwrap() error {
	return e.Err
}

// Adapter receives deposits relayed from L1. The bridge transport has
// already escrowed the funds into pool custody when it calls
// OnBridgedDeposit. If the attached transaction cannot be applied the
// deposit is recorded as pending so it never silently vanishes.
type Adapter struct {
	ds       repo.Datastore
	pool     Processor
	escrow   EscrowReleaser
	multisig common.Address
	mtx      sync.Mutex
}

// NewAdapter returns an Adapter forwarding deposits to the pool. If
// multisig is the zero address pending deposits cannot be rescued.
func NewAdapter(ds repo.Datastore, p Processor, escrow EscrowReleaser, multisig common.Address) *Adapter {
	return &Adapter{
		ds:       ds,
		pool:     p,
		escrow:   escrow,
		multisig: multisig,
		mtx:      sync.Mutex{},
	}
}

// OnBridgedDeposit decodes the payload into a transaction and applies
// it as a deposit of amount. The bridge has escrowed the funds under
// depositID and only this deposit can claim them. The transaction's
// public amount must equal the amount the bridge escrowed.
func (a *Adapter) OnBridgedDeposit(ctx context.Context, depositID types.ID, token common.Address, amount types.Amount, payload []byte) (*pool.Receipt, error) {
	a.mtx.Lock()
	defer a.mtx.Unlock()

	log.Info("Bridged deposit received", log.Args("deposit", depositID.String(), "token", token.Hex(), "amount", amount.String(), "payload size", len(payload)))

	receipt, err := a.process(ctx, depositID, token, amount, payload)
	if err == nil || isApplied(err) {
		return receipt, err
	}

	d := &PendingDeposit{
		ID:        depositID,
		Token:     token,
		Amount:    amount,
		Payload:   payload,
		Reason:    err.Error(),
		Timestamp: time.Now(),
	}
	if putErr := dsPutPendingDeposit(a.ds, d); putErr != nil {
		log.WithCaller(true).Error("Failed to record pending deposit", log.Args("amount", amount.String(), "error", putErr))
		return nil, fmt.Errorf("%w (recording pending deposit: %s)", err, putErr)
	}
	log.Warn("Bridged deposit not applied, funds held in escrow", log.Args("deposit", d.ID.String(), "reason", err))
	return nil, &DepositError{DepositID: d.ID, Err: err}
}

// ResubmitDeposit retries a pending deposit with a new payload, built
// against the current root, for the same amount.
func (a *Adapter) ResubmitDeposit(ctx context.Context, id types.ID, payload []byte) (*pool.Receipt, error) {
	a.mtx.Lock()
	defer a.mtx.Unlock()

	d, err := dsFetchPendingDeposit(a.ds, id)
	if err != nil {
		return nil, err
	}
	receipt, err := a.process(ctx, d.ID, d.Token, d.Amount, payload)
	if err != nil && !isApplied(err) {
		d.Payload = payload
		d.Reason = err.Error()
		if putErr := dsPutPendingDeposit(a.ds, d); putErr != nil {
			log.WithCaller(true).Error("Failed to update pending deposit", log.Args("deposit", id.String(), "error", putErr))
		}
		return nil, &DepositError{DepositID: id, Err: err}
	}
	if delErr := dsDeletePendingDeposit(a.ds, id); delErr != nil {
		log.WithCaller(true).Error("Failed to delete applied deposit", log.Args("deposit", id.String(), "error", delErr))
	}
	log.Info("Pending deposit applied", log.Args("deposit", id.String()))
	return receipt, err
}

// Rescue releases the escrow of a pending deposit to the multisig.
func (a *Adapter) Rescue(id types.ID) error {
	a.mtx.Lock()
	defer a.mtx.Unlock()

	if a.multisig == (common.Address{}) {
		return ErrNoMultisig
	}
	d, err := dsFetchPendingDeposit(a.ds, id)
	if err != nil {
		return err
	}
	if err := a.escrow.ReleaseEscrow(d.Token, d.ID, a.multisig); err != nil {
		return err
	}
	log.Info("Pending deposit rescued", log.Args("deposit", id.String(), "multisig", a.multisig.Hex(), "amount", d.Amount.String()))
	return dsDeletePendingDeposit(a.ds, id)
}

// PendingDeposits returns every deposit waiting in escrow.
func (a *Adapter) PendingDeposits() ([]*PendingDeposit, error) {
	return dsFetchPendingDeposits(a.ds)
}

func (a *Adapter) process(ctx context.Context, depositID types.ID, token common.Address, amount types.Amount, payload []byte) (*pool.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if token != a.pool.Token() {
		return nil, pool.RuleError{
			ErrorCode:   pool.ErrUnsupportedToken,
			Description: fmt.Sprintf("token %s is not the pool token", token.Hex()),
		}
	}
	tx, err := transactions.DecodeBridgePayload(payload)
	if err != nil {
		return nil, pool.RuleError{
			ErrorCode:   pool.ErrMalformedTx,
			Description: err.Error(),
		}
	}
	if amount > math.MaxInt64 || tx.PublicAmount != int64(amount) {
		return nil, pool.RuleError{
			ErrorCode:   pool.ErrAmountMismatch,
			Description: fmt.Sprintf("bridged amount %d does not match public amount %d", amount, tx.PublicAmount),
		}
	}
	return a.pool.ProcessDeposit(tx, depositID)
}

// isApplied returns whether err was returned for a transaction that
// nonetheless changed the pool state.
func isApplied(err error) bool {
	var settlementErr *pool.SettlementError
	return errors.As(err, &settlementErr)
}
