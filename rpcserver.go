// Copyright (c) 2024 Project Illium
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/federava/week2/repo"
	"github.com/federava/week2/rpc"
	"github.com/improbable-eng/grpc-web/go/grpcweb"
	"github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// AuthenticationTokenKey is the key used in the context to authenticate clients.
// If this is set to anything other than "" in the config, then the server expects
// the client to set a key value in the context metadata to 'AuthenticationToken: cfg.AuthToken'
const AuthenticationTokenKey = "AuthenticationToken"

// newGrpcServer serves the pool service on the configured listener. The
// listener speaks gRPC over HTTP/2 and gRPC-web over HTTP/1.1, with TLS
// if a certificate and key are configured.
func newGrpcServer(cfgOpts repo.RPCOptions, rpcCfg *rpc.GrpcServerConfig) (*rpc.GrpcServer, error) {
	i := interceptor{authToken: cfgOpts.GrpcAuthToken}
	opts := []grpc.ServerOption{grpc.StreamInterceptor(i.interceptStreaming), grpc.UnaryInterceptor(i.interceptUnary)}
	useTLS := cfgOpts.RPCCert != "" && cfgOpts.RPCKey != ""
	if useTLS {
		creds, err := credentials.NewServerTLSFromFile(cfgOpts.RPCCert, cfgOpts.RPCKey)
		if err != nil {
			return nil, err
		}
		opts = append(opts, grpc.Creds(creds))
	}
	opts = append(opts, grpc.MaxSendMsgSize(1000000))
	server := grpc.NewServer(opts...)

	allowAllOrigins := grpcweb.WithOriginFunc(func(origin string) bool {
		return true
	})
	wrappedGrpc := grpcweb.WrapServer(server, allowAllOrigins)

	rpcCfg.Server = server

	var handler http.Handler = http.HandlerFunc(func(resp http.ResponseWriter, req *http.Request) {
		if wrappedGrpc.IsGrpcWebRequest(req) || wrappedGrpc.IsAcceptableGrpcCorsRequest(req) {
			wrappedGrpc.ServeHTTP(resp, req)
		} else {
			server.ServeHTTP(resp, req)
		}
	})
	if !useTLS {
		handler = h2c.NewHandler(handler, &http2.Server{})
	}

	ma, err := multiaddr.NewMultiaddr(cfgOpts.GrpcListener)
	if err != nil {
		return nil, err
	}

	netAddr, err := manet.ToNetAddr(ma)
	if err != nil {
		return nil, err
	}

	lis, err := net.Listen(netAddr.Network(), netAddr.String())
	if err != nil {
		return nil, err
	}

	httpServer := &http.Server{
		Addr:    netAddr.String(),
		Handler: handler,
	}

	rpcCfg.HTTPServer = httpServer

	gRPCServer := rpc.NewGrpcServer(rpcCfg)

	go func() {
		var err error
		if useTLS {
			err = httpServer.ServeTLS(lis, cfgOpts.RPCCert, cfgOpts.RPCKey)
		} else {
			err = httpServer.Serve(lis)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithCaller(true).Error("Err serving gRPC", log.Args("error", err))
		}
	}()
	log.Info("gRPC server listening", log.Args("addr", lis.Addr().String(), "tls", useTLS))
	return gRPCServer, nil
}

type interceptor struct {
	authToken string
}

func (i *interceptor) interceptStreaming(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	p, ok := peer.FromContext(ss.Context())
	if ok {
		log.Trace("Streaming gRPC method invoked", log.ArgsFromMap(map[string]any{
			"method": info.FullMethod,
			"addr":   p.Addr.String(),
		}))
	}

	err := validateAuthenticationToken(ss.Context(), i.authToken)
	if err != nil {
		return err
	}

	err = handler(srv, ss)
	if err != nil && ok {
		logRPCError("Streaming gRPC error", info.FullMethod, p, err)
	}
	return err
}

func (i *interceptor) interceptUnary(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
	p, ok := peer.FromContext(ctx)
	if ok {
		log.Trace("Unary gRPC method invoked", log.ArgsFromMap(map[string]any{
			"method": info.FullMethod,
			"addr":   p.Addr.String(),
		}))
	}

	err = validateAuthenticationToken(ctx, i.authToken)
	if err != nil {
		return nil, err
	}

	resp, err = handler(ctx, req)
	if err != nil && ok {
		logRPCError("Unary gRPC error", info.FullMethod, p, err)
	}
	return resp, err
}

func logRPCError(msg, method string, p *peer.Peer, err error) {
	if st, ok := status.FromError(err); ok {
		log.Error(msg, log.ArgsFromMap(map[string]any{
			"method":     method,
			"addr":       p.Addr.String(),
			"error code": st.Code().String(),
			"desc":       st.Message(),
		}))
		return
	}
	log.Error(msg, log.ArgsFromMap(map[string]any{
		"method": method,
		"addr":   p.Addr.String(),
		"error":  err,
	}))
}

func validateAuthenticationToken(ctx context.Context, authToken string) error {
	md, ok := metadata.FromIncomingContext(ctx)
	if authToken != "" && (!ok || len(md.Get(AuthenticationTokenKey)) == 0 || md.Get(AuthenticationTokenKey)[0] != authToken) {
		return status.Error(codes.Unauthenticated, "invalid authentication token")
	}
	return nil
}
