// Copyright (c) 2022 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package pool

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/federava/week2/params"
	"github.com/federava/week2/repo"
	"github.com/federava/week2/repo/mock"
	"github.com/federava/week2/zk"
)

const DefaultMaxNullifiers = 100000

// DefaultOptions returns a pool configure option that fills in
// the default settings. You will almost certainly want to override
// some of the defaults, such as parameters and datastore, etc.
//
// The ledger has no default and must always be provided.
func DefaultOptions() Option {
	return func(cfg *config) error {
		cfg.params = &params.RegtestParams
		cfg.datastore = mock.NewMapDatastore()
		cfg.verifier = &zk.MockVerifier{}
		cfg.maxNullifiers = DefaultMaxNullifiers
		return nil
	}
}

// Option is configuration option function for the pool
type Option func(cfg *config) error

// Params identifies which pool parameters the pool is associated
// with.
//
// This option is required.
func Params(params *params.PoolParams) Option {
	return func(cfg *config) error {
		cfg.params = params
		return nil
	}
}

// Datastore is an implementation of the repo.Datastore interface
//
// This option is required.
func Datastore(ds repo.Datastore) Option {
	return func(cfg *config) error {
		cfg.datastore = ds
		return nil
	}
}

// Verifier is the proof oracle transactions are checked against.
//
// This option is required.
func Verifier(verifier zk.Verifier) Option {
	return func(cfg *config) error {
		cfg.verifier = verifier
		return nil
	}
}

// Ledger holds the pool's token custody.
//
// This option is required.
func Ledger(ledger TokenLedger) Option {
	return func(cfg *config) error {
		cfg.ledger = ledger
		return nil
	}
}

// L1Router receives withdrawals flagged for L1. If it is not set
// such withdrawals are rejected.
func L1Router(router WithdrawalRouter) Option {
	return func(cfg *config) error {
		cfg.router = router
		return nil
	}
}

// Token is the address of the token the pool holds.
//
// This option is required.
func Token(token common.Address) Option {
	return func(cfg *config) error {
		cfg.token = token
		return nil
	}
}

// MaxNullifiers is the maximum amount of nullifiers to hold in memory
// for fast access.
func MaxNullifiers(maxNullifiers uint) Option {
	return func(cfg *config) error {
		cfg.maxNullifiers = maxNullifiers
		return nil
	}
}

// config specifies the pool configuration.
type config struct {
	params        *params.PoolParams
	datastore     repo.Datastore
	verifier      zk.Verifier
	ledger        TokenLedger
	router        WithdrawalRouter
	token         common.Address
	maxNullifiers uint
}

func (cfg *config) validate() error {
	if cfg == nil {
		return AssertError("NewPool: pool config cannot be nil")
	}
	if cfg.params == nil {
		return AssertError("NewPool: params cannot be nil")
	}
	if cfg.datastore == nil {
		return AssertError("NewPool: datastore cannot be nil")
	}
	if cfg.verifier == nil {
		return AssertError("NewPool: verifier cannot be nil")
	}
	if _, ok := cfg.verifier.(*zk.MockVerifier); ok && !cfg.params.AllowMockProofs {
		return AssertError("NewPool: mock proofs are not allowed with " + cfg.params.Name + " params")
	}
	if cfg.ledger == nil {
		return AssertError("NewPool: ledger cannot be nil")
	}
	if cfg.token == (common.Address{}) {
		return AssertError("NewPool: token cannot be the zero address")
	}
	return nil
}
