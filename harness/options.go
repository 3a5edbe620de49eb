// Copyright (c) 2022 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package harness

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/federava/week2/params"
	"github.com/federava/week2/repo"
	"github.com/federava/week2/repo/mock"
	"github.com/federava/week2/zk"
	"github.com/libp2p/go-libp2p/core/crypto"
)

// DefaultOptions returns a regtest harness over an in-memory datastore
// with mock proofs.
func DefaultOptions() Option {
	return func(cfg *config) error {
		bridgeKey, err := repo.GenerateBridgeKey()
		if err != nil {
			return err
		}
		cfg.params = &params.RegtestParams
		cfg.datastore = mock.NewMapDatastore()
		cfg.bridgeKey = bridgeKey
		cfg.prover = &zk.MockProver{}
		cfg.verifier = &zk.MockVerifier{}
		cfg.token = common.HexToAddress("0xe1")
		cfg.poolAddress = common.HexToAddress("0x01")
		cfg.bridgeAddress = common.HexToAddress("0x02")
		cfg.multisig = common.HexToAddress("0x03")
		return nil
	}
}

// Option is configuration option function for the TestHarness
type Option func(cfg *config) error

func Params(params *params.PoolParams) Option {
	return func(cfg *config) error {
		cfg.params = params
		return nil
	}
}

func Datastore(ds repo.Datastore) Option {
	return func(cfg *config) error {
		cfg.datastore = ds
		return nil
	}
}

func BridgeKey(key crypto.PrivKey) Option {
	return func(cfg *config) error {
		cfg.bridgeKey = key
		return nil
	}
}

// Proofs sets the prover parties use and the verifier the pool uses.
func Proofs(prover zk.Prover, verifier zk.Verifier) Option {
	return func(cfg *config) error {
		cfg.prover = prover
		cfg.verifier = verifier
		return nil
	}
}

func Token(token common.Address) Option {
	return func(cfg *config) error {
		cfg.token = token
		return nil
	}
}

// Accounts sets the pool custody, bridge custody and rescue multisig
// addresses.
func Accounts(pool, bridge, multisig common.Address) Option {
	return func(cfg *config) error {
		cfg.poolAddress = pool
		cfg.bridgeAddress = bridge
		cfg.multisig = multisig
		return nil
	}
}

type config struct {
	params        *params.PoolParams
	datastore     repo.Datastore
	bridgeKey     crypto.PrivKey
	prover        zk.Prover
	verifier      zk.Verifier
	token         common.Address
	poolAddress   common.Address
	bridgeAddress common.Address
	multisig      common.Address
}

func (cfg *config) validate() error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if cfg.params == nil {
		return errors.New("params is nil")
	}
	if cfg.datastore == nil {
		return errors.New("datastore is nil")
	}
	if cfg.bridgeKey == nil {
		return errors.New("bridge key is nil")
	}
	if cfg.prover == nil || cfg.verifier == nil {
		return errors.New("prover and verifier are required")
	}
	if cfg.poolAddress == cfg.bridgeAddress {
		return errors.New("pool and bridge custody must differ")
	}
	return nil
}
