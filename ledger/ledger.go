// Copyright (c) 2024 Project Illium
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/federava/week2/repo"
	"github.com/federava/week2/types"
	"github.com/holiman/uint256"
	datastore "github.com/ipfs/go-datastore"
)

var (
	// ErrInsufficientBalance means the sender does not hold enough tokens.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientEscrow means less escrow is held than requested.
	ErrInsufficientEscrow = errors.New("insufficient escrow")

	// ErrBalanceOverflow means a balance does not fit the requested width.
	ErrBalanceOverflow = errors.New("balance overflow")

	// ErrDuplicateEscrow means a deposit id was escrowed twice.
	ErrDuplicateEscrow = errors.New("deposit already escrowed")
)

// AssertError signals ledger records that contradict each other.
type AssertError string

func (e AssertError) Error() string {
	return "ledger assertion failed: " + string(e)
}

// Ledger is a minimal multi-token ledger persisted in the datastore.
// It stands in for the token contracts on the local chain and holds
// the pool's custody account.
//
// Funds bridged in for a deposit are escrowed: they sit in the pool's
// account but are tracked per deposit id until the transaction of that
// deposit is applied and claims them. The pool cannot pay withdrawals
// out of unapplied deposits and one deposit cannot claim another's
// funds.
type Ledger struct {
	ds   repo.Datastore
	pool common.Address
	mtx  sync.Mutex
}

// NewLedger returns a Ledger where pool is the custody account of the
// shielded pool.
func NewLedger(ds repo.Datastore, pool common.Address) *Ledger {
	return &Ledger{
		ds:   ds,
		pool: pool,
		mtx:  sync.Mutex{},
	}
}

// PoolAddress returns the pool custody account.
func (l *Ledger) PoolAddress() common.Address {
	return l.pool
}

// Mint credits amount of token to the holder.
func (l *Ledger) Mint(token, to common.Address, amount types.Amount) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	return l.update(func(dbtx datastore.Txn) error {
		return credit(dbtx, token, to, amount)
	})
}

// Balance returns the full width balance of the holder.
func (l *Ledger) Balance(token, holder common.Address) (*uint256.Int, error) {
	return fetchUint(l.ds, balanceKey(token, holder))
}

// BalanceOf returns the balance of the holder.
func (l *Ledger) BalanceOf(token, holder common.Address) (types.Amount, error) {
	bal, err := l.Balance(token, holder)
	if err != nil {
		return 0, err
	}
	return toAmount(bal)
}

// TransferFrom moves amount of token between two holders.
func (l *Ledger) TransferFrom(token, from, to common.Address, amount types.Amount) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	if from == l.pool {
		if err := l.checkSpendable(token, amount); err != nil {
			return err
		}
	}
	return l.update(func(dbtx datastore.Txn) error {
		return move(dbtx, token, from, to, amount)
	})
}

// Escrow moves amount from the holder into the pool's custody and
// records it as unclaimed deposit escrow under the deposit id. Only
// the deposit with that id can claim it.
func (l *Ledger) Escrow(token, from common.Address, id types.ID, amount types.Amount) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	return l.update(func(dbtx datastore.Txn) error {
		exists, err := dbtx.Has(context.Background(), ticketKey(token, id))
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrDuplicateEscrow, id)
		}
		if err := move(dbtx, token, from, l.pool, amount); err != nil {
			return err
		}
		if err := putUint(dbtx, ticketKey(token, id), amountToUint(amount)); err != nil {
			return err
		}
		escrow, err := fetchUint(dbtx, escrowKey(token))
		if err != nil {
			return err
		}
		escrow.Add(escrow, amountToUint(amount))
		return putUint(dbtx, escrowKey(token), escrow)
	})
}

// EscrowBalance returns the unclaimed escrow held for the pool across
// all deposits.
func (l *Ledger) EscrowBalance(token common.Address) (types.Amount, error) {
	escrow, err := fetchUint(l.ds, escrowKey(token))
	if err != nil {
		return 0, err
	}
	return toAmount(escrow)
}

// CustodyBalance returns the pool's balance minus unclaimed escrow.
func (l *Ledger) CustodyBalance(token common.Address) (types.Amount, error) {
	bal, err := fetchUint(l.ds, balanceKey(token, l.pool))
	if err != nil {
		return 0, err
	}
	escrow, err := fetchUint(l.ds, escrowKey(token))
	if err != nil {
		return 0, err
	}
	if bal.Lt(escrow) {
		return 0, fmt.Errorf("pool balance %s below escrow %s", bal, escrow)
	}
	return toAmount(new(uint256.Int).Sub(bal, escrow))
}

// EscrowHeld returns the unclaimed escrow of a single deposit. It is
// zero once the deposit was claimed or released.
func (l *Ledger) EscrowHeld(token common.Address, id types.ID) (types.Amount, error) {
	held, err := fetchUint(l.ds, ticketKey(token, id))
	if err != nil {
		return 0, err
	}
	return toAmount(held)
}

// ClaimEscrow turns the escrow of the deposit into spendable custody.
// The deposit must hold exactly amount.
func (l *Ledger) ClaimEscrow(token common.Address, id types.ID, amount types.Amount) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	return l.update(func(dbtx datastore.Txn) error {
		held, err := debitTicket(dbtx, token, id)
		if err != nil {
			return err
		}
		if held != amount {
			return fmt.Errorf("%w: deposit %s holds %s, claimed %s", ErrInsufficientEscrow, id, held, amount)
		}
		return nil
	})
}

// ReleaseEscrow pays the whole unclaimed escrow of the deposit out of
// the pool to the holder. It is used to return bridged funds whose
// deposit can never be applied.
func (l *Ledger) ReleaseEscrow(token common.Address, id types.ID, to common.Address) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	var released types.Amount
	err := l.update(func(dbtx datastore.Txn) error {
		held, err := debitTicket(dbtx, token, id)
		if err != nil {
			return err
		}
		released = held
		return move(dbtx, token, l.pool, to, held)
	})
	if err != nil {
		return err
	}
	log.Info("Escrow released", log.Args("token", token.Hex(), "deposit", id.String(), "to", to.Hex(), "amount", released.String()))
	return nil
}

// Transfer pays amount out of the pool's spendable custody.
func (l *Ledger) Transfer(token, to common.Address, amount types.Amount) error {
	return l.TransferFrom(token, l.pool, to, amount)
}

// checkSpendable must be called with the lock held.
func (l *Ledger) checkSpendable(token common.Address, amount types.Amount) error {
	bal, err := fetchUint(l.ds, balanceKey(token, l.pool))
	if err != nil {
		return err
	}
	escrow, err := fetchUint(l.ds, escrowKey(token))
	if err != nil {
		return err
	}
	spendable := new(uint256.Int)
	if !bal.Lt(escrow) {
		spendable.Sub(bal, escrow)
	}
	if spendable.Lt(amountToUint(amount)) {
		return fmt.Errorf("%w: pool custody %s, requested %s", ErrInsufficientBalance, spendable, amount)
	}
	return nil
}

func (l *Ledger) update(fn func(dbtx datastore.Txn) error) error {
	ctx := context.Background()
	dbtx, err := l.ds.NewTransaction(ctx, false)
	if err != nil {
		return err
	}
	if err := fn(dbtx); err != nil {
		dbtx.Discard(ctx)
		return err
	}
	return dbtx.Commit(ctx)
}

// debitTicket removes the deposit's escrow record and subtracts it
// from the token total.
func debitTicket(dbtx datastore.Txn, token common.Address, id types.ID) (types.Amount, error) {
	ctx := context.Background()
	raw, err := dbtx.Get(ctx, ticketKey(token, id))
	if errors.Is(err, datastore.ErrNotFound) {
		return 0, fmt.Errorf("%w: no escrow for deposit %s", ErrInsufficientEscrow, id)
	}
	if err != nil {
		return 0, err
	}
	held := new(uint256.Int).SetBytes(raw)
	escrow, err := fetchUint(dbtx, escrowKey(token))
	if err != nil {
		return 0, err
	}
	if escrow.Lt(held) {
		return 0, AssertError(fmt.Sprintf("escrow total %s below deposit %s escrow %s", escrow, id, held))
	}
	if err := dbtx.Delete(ctx, ticketKey(token, id)); err != nil {
		return 0, err
	}
	if err := putUint(dbtx, escrowKey(token), escrow.Sub(escrow, held)); err != nil {
		return 0, err
	}
	return toAmount(held)
}

func credit(dbtx datastore.Txn, token, to common.Address, amount types.Amount) error {
	bal, err := fetchUint(dbtx, balanceKey(token, to))
	if err != nil {
		return err
	}
	if _, overflow := bal.AddOverflow(bal, amountToUint(amount)); overflow {
		return ErrBalanceOverflow
	}
	return putUint(dbtx, balanceKey(token, to), bal)
}

func move(dbtx datastore.Txn, token, from, to common.Address, amount types.Amount) error {
	if amount == 0 {
		return nil
	}
	bal, err := fetchUint(dbtx, balanceKey(token, from))
	if err != nil {
		return err
	}
	a := amountToUint(amount)
	if bal.Lt(a) {
		return fmt.Errorf("%w: %s holds %s, requested %s", ErrInsufficientBalance, from.Hex(), bal, amount)
	}
	if err := putUint(dbtx, balanceKey(token, from), bal.Sub(bal, a)); err != nil {
		return err
	}
	return credit(dbtx, token, to, amount)
}

func amountToUint(a types.Amount) *uint256.Int {
	return uint256.NewInt(uint64(a))
}

func toAmount(x *uint256.Int) (types.Amount, error) {
	if !x.IsUint64() {
		return 0, ErrBalanceOverflow
	}
	return types.Amount(x.Uint64()), nil
}
