// Copyright (c) 2022 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package pool

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/federava/week2/crypto"
	"github.com/federava/week2/params"
	"github.com/federava/week2/repo"
	"github.com/federava/week2/types"
	"github.com/federava/week2/types/transactions"
	"github.com/federava/week2/zk"
	"go.opencensus.io/stats"
	"go.opencensus.io/tag"
)

// Receipt is returned for every applied transaction.
type Receipt struct {
	TxID types.ID
	// Indexes holds the leaf index of each output commitment in
	// transaction order.
	Indexes    []uint64
	Root       types.ID
	Settlement Settlement
}

// Pool is the shielded pool state machine. It owns the commitment tree
// and the nullifier set and is their only mutator. Transactions are
// applied one at a time: each one must prove against the current root,
// so of two transactions built against the same root only the first
// applies and the second is rejected with ErrStaleRoot.
type Pool struct {
	params       *params.PoolParams
	ds           repo.Datastore
	verifier     zk.Verifier
	ledger       TokenLedger
	router       WithdrawalRouter
	token        common.Address
	nullifierSet *NullifierSet
	accumulator  *Accumulator

	notifications     []NotificationCallback
	notificationsLock sync.RWMutex

	// stateLock protects concurrent access to the pool state
	stateLock sync.RWMutex
}

// NewPool returns a new Pool. If the datastore already holds a tree the
// pool resumes from it after checking the stored root.
func NewPool(opts ...Option) (*Pool, error) {
	var cfg config
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	acc, err := loadAccumulator(cfg.datastore, cfg.params.TreeHeight)
	if err != nil {
		return nil, err
	}

	p := &Pool{
		params:            cfg.params,
		ds:                cfg.datastore,
		verifier:          cfg.verifier,
		ledger:            cfg.ledger,
		router:            cfg.router,
		token:             cfg.token,
		nullifierSet:      NewNullifierSet(cfg.datastore, cfg.maxNullifiers),
		accumulator:       acc,
		notificationsLock: sync.RWMutex{},
		stateLock:         sync.RWMutex{},
	}
	stats.Record(context.Background(), TreeSize.M(int64(acc.Len())))
	log.Info("Shielded pool loaded", log.Args("params", cfg.params.Name, "leaves", acc.Len(), "root", acc.Root().String()))
	return p, nil
}

func loadAccumulator(ds repo.Datastore, height uint8) (*Accumulator, error) {
	root, size, ok, err := dsFetchTreeState(ds)
	if err != nil {
		return nil, err
	}
	if !ok {
		return NewAccumulator(height), nil
	}
	leaves, err := dsFetchLeaves(ds)
	if err != nil {
		return nil, err
	}
	if uint64(len(leaves)) != size {
		return nil, AssertError("NewPool: stored leaf count does not match tree size")
	}
	acc, err := NewAccumulatorFromLeaves(height, leaves)
	if err != nil {
		return nil, err
	}
	if acc.Root() != root {
		return nil, AssertError("NewPool: rebuilt tree root does not match stored root")
	}
	return acc, nil
}

// ProcessTransaction validates the transaction against the current
// state and, if every check passes, applies it:
//
//  1. The nullifiers, the new leaves and the new root are written in
//     one datastore transaction.
//  2. One NTNewCommitment notification is sent per output.
//  3. The external amount is settled: deposit escrow is claimed,
//     withdrawals are paid out or routed to L1 and the relayer is paid.
//
// A failure before step 1 leaves the state untouched. A failure in
// step 3 is returned as a *SettlementError together with the receipt
// since the transaction is already final.
//
// Deposits are rejected here with ErrMissingEscrow. They must go
// through ProcessDeposit with the escrow the bridge created.
func (p *Pool) ProcessTransaction(tx *transactions.Transaction) (*Receipt, error) {
	return p.processTransaction(tx, nil)
}

// ProcessDeposit applies a deposit transaction that claims the escrow
// recorded under depositID. The escrow must hold exactly the public
// amount of the transaction.
func (p *Pool) ProcessDeposit(tx *transactions.Transaction, depositID types.ID) (*Receipt, error) {
	return p.processTransaction(tx, &depositID)
}

func (p *Pool) processTransaction(tx *transactions.Transaction, depositID *types.ID) (*Receipt, error) {
	start := time.Now()

	p.stateLock.Lock()
	defer p.stateLock.Unlock()

	settlement, err := p.checkTransaction(tx, depositID)
	if err != nil {
		p.recordRejection(err)
		log.Debug("Transaction rejected", log.Args("error", err))
		return nil, err
	}

	txid := tx.ID()
	events, err := p.applyTransaction(tx)
	if err != nil {
		log.WithCaller(true).Error("Failed to apply transaction", log.Args("txid", txid.String(), "error", err))
		return nil, err
	}

	receipt := &Receipt{
		TxID:       txid,
		Indexes:    make([]uint64, 0, len(events)),
		Root:       p.accumulator.Root(),
		Settlement: *settlement,
	}
	for _, ev := range events {
		receipt.Indexes = append(receipt.Indexes, ev.Index)
		p.sendNotification(NTNewCommitment, ev)
	}
	for _, n := range tx.InputNullifiers {
		p.sendNotification(NTNewNullifier, n)
	}

	ctx := context.Background()
	if err := p.settle(settlement); err != nil {
		stats.Record(ctx, StuckTransfers.M(1))
		log.WithCaller(true).Error("Stuck transfer: transaction applied but settlement failed",
			log.Args("txid", txid.String(), "deposit", settlement.Deposit, "withdrawal", settlement.Withdrawal,
				"recipient", settlement.Recipient.Hex(), "l1", settlement.ToL1, "fee", settlement.Fee, "error", err))
		return receipt, &SettlementError{TxID: txid, Err: err}
	}

	if tagged, err := tag.New(ctx, tag.Upsert(KeyDirection, direction(tx.PublicAmount))); err == nil {
		ctx = tagged
	}
	stats.Record(ctx,
		AppliedTransactions.M(1),
		TreeSize.M(int64(p.accumulator.Len())),
		ProcessingLatency.M(float64(time.Since(start))/float64(time.Millisecond)),
	)
	log.Debug("Transaction applied", log.Args("txid", txid.String(), "root", receipt.Root.String(), "public amount", tx.PublicAmount))
	return receipt, nil
}

// CheckTransaction runs every check ProcessTransaction runs without
// mutating any state. A nil error does not guarantee a later
// ProcessTransaction succeeds since another transaction may be applied
// in between.
func (p *Pool) CheckTransaction(tx *transactions.Transaction) error {
	p.stateLock.RLock()
	defer p.stateLock.RUnlock()

	_, err := p.checkTransaction(tx, nil)
	return err
}

// applyTransaction inserts the commitments and persists the nullifiers,
// the leaves and the root in one datastore transaction. On any error
// the in-memory tree is rolled back.
func (p *Pool) applyTransaction(tx *transactions.Transaction) (events []*CommitmentEvent, err error) {
	prevLen := p.accumulator.Len()
	defer func() {
		if err != nil {
			p.accumulator.truncate(prevLen)
		}
	}()

	events = make([]*CommitmentEvent, 0, len(tx.OutputCommitments))
	for i, c := range tx.OutputCommitments {
		index, err := p.accumulator.Insert(c)
		if err != nil {
			return nil, err
		}
		events = append(events, &CommitmentEvent{
			Commitment:      c,
			EncryptedOutput: tx.ExtData.EncryptedOutputs[i],
			Index:           index,
		})
	}
	root := p.accumulator.Root()

	ctx := context.Background()
	dbtx, err := p.ds.NewTransaction(ctx, false)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			dbtx.Discard(ctx)
		}
	}()

	if err = p.nullifierSet.AddNullifiers(dbtx, tx.InputNullifiers); err != nil {
		return nil, err
	}
	for _, ev := range events {
		ev.Root = root
		if err = dsPutLeaf(dbtx, ev); err != nil {
			return nil, err
		}
	}
	if err = dsPutTreeState(dbtx, root, p.accumulator.Len()); err != nil {
		return nil, err
	}
	if err = dbtx.Commit(ctx); err != nil {
		return nil, err
	}
	return events, nil
}

func (p *Pool) settle(s *Settlement) error {
	if s.Deposit > 0 {
		if err := p.ledger.ClaimEscrow(p.token, s.DepositID, s.Deposit); err != nil {
			return err
		}
	}
	if s.Withdrawal > 0 {
		if s.ToL1 {
			if err := p.router.RouteWithdrawalToL1(p.token, s.Withdrawal, s.Recipient, s.L1Fee); err != nil {
				return err
			}
		} else if err := p.ledger.Transfer(p.token, s.Recipient, s.Withdrawal); err != nil {
			return err
		}
	}
	if s.Fee > 0 {
		if err := p.ledger.Transfer(p.token, s.Relayer, s.Fee); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pool) recordRejection(err error) {
	code := "internal"
	var ruleErr RuleError
	if errors.As(err, &ruleErr) {
		code = ruleErr.ErrorCode.String()
	}
	ctx, tagErr := tag.New(context.Background(), tag.Upsert(KeyErrorCode, code))
	if tagErr != nil {
		ctx = context.Background()
	}
	stats.Record(ctx, RejectedTransactions.M(1))
}

func direction(publicAmount int64) string {
	switch {
	case publicAmount > 0:
		return "deposit"
	case publicAmount < 0:
		return "withdrawal"
	default:
		return "transfer"
	}
}

// CurrentRoot returns the root of the commitment tree. New transactions
// must prove against it.
func (p *Pool) CurrentRoot() types.ID {
	p.stateLock.RLock()
	defer p.stateLock.RUnlock()

	return p.accumulator.Root()
}

// NumLeaves returns the number of commitments in the tree.
func (p *Pool) NumLeaves() uint64 {
	p.stateLock.RLock()
	defer p.stateLock.RUnlock()

	return p.accumulator.Len()
}

// MerkleProof returns the authentication path of the commitment at
// index against the current root.
func (p *Pool) MerkleProof(index uint64) (*types.MerkleProof, error) {
	p.stateLock.RLock()
	defer p.stateLock.RUnlock()

	return p.accumulator.ProofFor(index)
}

// NullifierExists returns whether the nullifier has been spent.
func (p *Pool) NullifierExists(n types.Nullifier) (bool, error) {
	return p.nullifierSet.NullifierExists(n)
}

// Events returns the commitment events for every leaf starting at
// index from, in leaf order.
func (p *Pool) Events(from uint64) ([]*CommitmentEvent, error) {
	p.stateLock.RLock()
	defer p.stateLock.RUnlock()

	n := p.accumulator.Len()
	if from >= n {
		return nil, nil
	}
	events := make([]*CommitmentEvent, 0, n-from)
	for i := from; i < n; i++ {
		ev, err := dsFetchLeaf(p.ds, i)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// Params returns the pool parameters.
func (p *Pool) Params() *params.PoolParams {
	return p.params
}

// Token returns the address of the token the pool holds.
func (p *Pool) Token() common.Address {
	return p.token
}

// RegisterAccount publishes the shielded public key of an owner so
// senders can look up where to address notes. A registered key is
// never replaced: registering the same key again is a no-op and a
// different key returns ErrAccountExists.
func (p *Pool) RegisterAccount(owner common.Address, pub *crypto.PublicKey) error {
	if owner == (common.Address{}) || pub == nil {
		return errors.New("owner and public key are required")
	}
	p.stateLock.Lock()
	defer p.stateLock.Unlock()

	existing, err := dsFetchAccount(p.ds, owner)
	switch {
	case err == nil && existing.Equals(pub):
		return nil
	case err == nil:
		log.Warn("Refusing to replace registered account key", log.Args("owner", owner.Hex()))
		return ErrAccountExists
	case !errors.Is(err, ErrAccountNotFound):
		return err
	}
	if err := dsPutAccount(p.ds, owner, pub); err != nil {
		return err
	}
	p.sendNotification(NTAccountRegistered, &AccountEvent{Owner: owner, PublicKey: pub})
	return nil
}

// LookupAccount returns the shielded public key registered for owner.
func (p *Pool) LookupAccount(owner common.Address) (*crypto.PublicKey, error) {
	return dsFetchAccount(p.ds, owner)
}
