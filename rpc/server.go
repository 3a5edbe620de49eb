// Copyright (c) 2024 Project Illium
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package rpc

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/federava/week2/bridge"
	"github.com/federava/week2/pool"
	"google.golang.org/grpc"
)

// GrpcServerConfig holds the objects the GrpcServer needs to serve
// the pool service.
type GrpcServerConfig struct {
	Server     *grpc.Server
	HTTPServer *http.Server

	Pool    *pool.Pool
	Adapter *bridge.Adapter
	Outbox  *bridge.Outbox
	Bridge  DepositRelayer
}

// GrpcServer implements PoolServiceServer on top of a running pool.
type GrpcServer struct {
	pool    *pool.Pool
	adapter *bridge.Adapter
	outbox  *bridge.Outbox
	bridge  DepositRelayer

	httpServer *http.Server

	subs   map[chan struct{}]struct{}
	subMtx sync.Mutex
	quit   chan struct{}

	shutdown int32 // atomic
}

// NewGrpcServer registers the pool service on cfg.Server and subscribes
// to pool notifications for event streams.
func NewGrpcServer(cfg *GrpcServerConfig) *GrpcServer {
	s := &GrpcServer{
		pool:       cfg.Pool,
		adapter:    cfg.Adapter,
		outbox:     cfg.Outbox,
		bridge:     cfg.Bridge,
		httpServer: cfg.HTTPServer,
		subs:       make(map[chan struct{}]struct{}),
		subMtx:     sync.Mutex{},
		quit:       make(chan struct{}),
	}
	cfg.Pool.Subscribe(s.handlePoolNotification)
	RegisterPoolServiceServer(cfg.Server, s)
	return s
}

// Close ends every event stream and stops the HTTP server if there is
// one.
func (s *GrpcServer) Close() error {
	if !atomic.CompareAndSwapInt32(&s.shutdown, 0, 1) {
		return nil
	}
	close(s.quit)
	if s.httpServer != nil {
		return s.httpServer.Shutdown(context.Background())
	}
	return nil
}

func (s *GrpcServer) handlePoolNotification(n *pool.Notification) {
	if n.Type != pool.NTNewCommitment {
		return
	}
	s.subMtx.Lock()
	defer s.subMtx.Unlock()
	for c := range s.subs {
		select {
		case c <- struct{}{}:
		default:
		}
	}
}

// subscribeEvents returns a channel signalled whenever a commitment is
// added to the tree. Signals coalesce so a reader must fetch every
// event past the last one it saw.
func (s *GrpcServer) subscribeEvents() (<-chan struct{}, func()) {
	c := make(chan struct{}, 1)
	s.subMtx.Lock()
	s.subs[c] = struct{}{}
	s.subMtx.Unlock()
	return c, func() {
		s.subMtx.Lock()
		delete(s.subs, c)
		s.subMtx.Unlock()
	}
}
