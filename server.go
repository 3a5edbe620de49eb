// Copyright (c) 2022 Project Illium
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/federava/week2/bridge"
	"github.com/federava/week2/ledger"
	"github.com/federava/week2/params"
	"github.com/federava/week2/pool"
	"github.com/federava/week2/repo"
	"github.com/federava/week2/repo/datastore"
	"github.com/federava/week2/repo/mock"
	"github.com/federava/week2/rpc"
	"github.com/federava/week2/zk"
	"go.opencensus.io/stats/view"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ErrNoProofBackend is returned when the daemon is started without a
// proof verifier it can use.
var ErrNoProofBackend = errors.New("no proof verifier available: start with --regtest --mock")

// Server is the main class that brings all the constituent parts together
// into a pool daemon.
type Server struct {
	cancelFunc context.CancelFunc
	ctx        context.Context
	config     *repo.Config
	params     *params.PoolParams
	ds         repo.Datastore
	logRotator *lumberjack.Logger

	ledger  *ledger.Ledger
	pool    *pool.Pool
	omni    *bridge.MockOmniBridge
	outbox  *bridge.Outbox
	adapter *bridge.Adapter

	grpcServer *rpc.GrpcServer

	ready chan struct{}
}

// BuildServer is the constructor for the server. We pass in the config file here
// and use it to configure all the various parts of the Server.
func BuildServer(config *repo.Config) (*Server, error) {
	ctx, cancel := context.WithCancel(context.Background())

	s := Server{ready: make(chan struct{}), config: config, ctx: ctx, cancelFunc: cancel}
	defer close(s.ready)

	// Logging
	logRotator, err := setupLogging(config.LogDir, config.LogLevel)
	if err != nil {
		cancel()
		return nil, err
	}
	s.logRotator = logRotator

	// Parameter selection
	var netParams *params.PoolParams
	if config.Testnet {
		netParams = &params.TestnetParams
	} else if config.Regtest {
		netParams = &params.RegtestParams
	} else {
		netParams = &params.MainnetParams
	}

	// Policy
	s.params, err = applyPolicy(netParams, config.Policy)
	if err != nil {
		cancel()
		return nil, err
	}

	var verifier zk.Verifier
	if config.MockProofs && s.params.AllowMockProofs {
		verifier = &zk.MockVerifier{}
	} else {
		cancel()
		return nil, ErrNoProofBackend
	}

	// Setup up the datastore
	if config.InMemory {
		s.ds = mock.NewMapDatastore()
	} else {
		s.ds, err = datastore.NewBadgerDatastore(config.DataDir)
		if err != nil {
			cancel()
			return nil, err
		}
	}

	bridgeKey, err := repo.LoadOrCreateBridgeKey(s.ds)
	if err != nil {
		s.abort()
		return nil, err
	}

	var (
		token         = common.HexToAddress(config.Bridge.Token)
		poolAddress   = common.HexToAddress(config.Bridge.PoolAddress)
		bridgeAddress = common.HexToAddress(config.Bridge.BridgeAddress)
		multisig      common.Address
	)
	if config.Bridge.Multisig != "" {
		multisig = common.HexToAddress(config.Bridge.Multisig)
	}

	s.ledger = ledger.NewLedger(s.ds, poolAddress)
	s.omni = bridge.NewMockOmniBridge(s.ledger, bridgeAddress)
	s.outbox, err = bridge.NewOutbox(s.ds, s.ledger, bridgeAddress, s.omni, bridgeKey, s.params.L1ChainID)
	if err != nil {
		s.abort()
		return nil, err
	}

	s.pool, err = pool.NewPool(
		pool.Params(s.params),
		pool.Datastore(s.ds),
		pool.Verifier(verifier),
		pool.Ledger(s.ledger),
		pool.L1Router(s.outbox),
		pool.Token(token),
		pool.MaxNullifiers(config.MaxNullifiers),
	)
	if err != nil {
		s.abort()
		return nil, err
	}
	s.adapter = bridge.NewAdapter(s.ds, s.pool, s.ledger, multisig)
	s.omni.SetAdapter(s.adapter)

	if err := view.Register(pool.DefaultViews...); err != nil {
		s.abort()
		return nil, err
	}

	s.pool.Subscribe(s.handlePoolNotification)

	if !config.RPCOpts.DisableRPC {
		s.grpcServer, err = newGrpcServer(config.RPCOpts, &rpc.GrpcServerConfig{
			Pool:    s.pool,
			Adapter: s.adapter,
			Outbox:  s.outbox,
			Bridge:  s.omni,
		})
		if err != nil {
			s.abort()
			return nil, err
		}
	}

	s.printStartup(token, poolAddress, bridgeAddress)
	if err := s.reportPending(); err != nil {
		s.abort()
		return nil, err
	}
	return &s, nil
}

func (s *Server) handlePoolNotification(n *pool.Notification) {
	<-s.ready

	switch n.Type {
	case pool.NTNewCommitment:
		if ev, ok := n.Data.(*pool.CommitmentEvent); ok {
			log.Debug("New commitment", log.Args("index", ev.Index, "commitment", ev.Commitment.String()))
		}
	case pool.NTNewNullifier:
		log.Debug("Nullifier spent", log.Args("nullifier", fmt.Sprint(n.Data)))
	case pool.NTAccountRegistered:
		if ev, ok := n.Data.(*pool.AccountEvent); ok {
			log.Info("Account registered", log.Args("owner", ev.Owner.Hex()))
		}
	}
}

// reportPending logs deposits and withdrawals left over from a previous
// run that need an operator.
func (s *Server) reportPending() error {
	pending, err := s.adapter.PendingDeposits()
	if err != nil {
		return err
	}
	for _, d := range pending {
		log.Warn("Pending bridged deposit in escrow", log.Args("deposit", d.ID.String(), "amount", d.Amount.String(), "reason", d.Reason))
	}
	stuck, err := s.outbox.StuckTransfers()
	if err != nil {
		return err
	}
	for _, msg := range stuck {
		log.Error("Stuck transfer awaiting delivery to L1", log.Args("nonce", msg.Nonce, "recipient", msg.Recipient.Hex(), "amount", msg.Amount.String()))
	}
	return nil
}

func (s *Server) abort() {
	s.cancelFunc()
	if err := s.ds.Close(); err != nil {
		log.WithCaller(true).Error("Error closing datastore", log.Args("error", err))
	}
}

// Close shuts down all the parts of the server and blocks until
// they finish closing.
func (s *Server) Close() error {
	<-s.ready
	s.cancelFunc()
	if s.grpcServer != nil {
		if err := s.grpcServer.Close(); err != nil {
			log.WithCaller(true).Error("Error closing gRPC server", log.Args("error", err))
		}
	}
	if err := s.ds.Close(); err != nil {
		return err
	}
	if s.logRotator != nil {
		return s.logRotator.Close()
	}
	return nil
}

func (s *Server) printStartup(token, poolAddress, bridgeAddress common.Address) {
	fmt.Println(`                   .__       .___`)
	fmt.Println(`______   ____   ____ |  |    __| _/`)
	fmt.Println(`\____ \ /  _ \ /  _ \|  |   / __ |`)
	fmt.Println(`|  |_> >  <_> |  <_> )  |__/ /_/ |`)
	fmt.Println(`|   __/ \____/ \____/|____/\____ |`)
	fmt.Println(`|__|                            \/`)

	log.Info("Shielded pool ready", log.Args(
		"version", repo.VersionString(),
		"network", s.params.Name,
		"token", token.Hex(),
		"pool custody", poolAddress.Hex(),
		"bridge custody", bridgeAddress.Hex(),
		"leaves", s.pool.NumLeaves(),
		"capacity", s.params.Capacity(),
		"root", s.pool.CurrentRoot().String(),
	))
}
