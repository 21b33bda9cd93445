// Package grpc exposes the orchestrator over gRPC.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/pinvault/internal/api"
	"github.com/dmitrijs2005/pinvault/internal/logging"
	"github.com/dmitrijs2005/pinvault/internal/server/clientmeta"
	"github.com/dmitrijs2005/pinvault/internal/server/services"
	"google.golang.org/grpc"
)

type GRPCServer struct {
	address string
	orch    *services.Orchestrator
	logger  logging.Logger
	proxies clientmeta.TrustedProxies
}

// Option adjusts a GRPCServer.
type Option func(*GRPCServer)

// WithTrustedProxies lets the listed peers pass the client address along.
func WithTrustedProxies(p clientmeta.TrustedProxies) Option {
	return func(s *GRPCServer) { s.proxies = p }
}

func NewGRPCServer(a string, l logging.Logger, orch *services.Orchestrator, opts ...Option) *GRPCServer {
	s := &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		orch:    orch,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// NewServer builds a gRPC server with the PinVault service and its
// interceptors registered.
func (s *GRPCServer) NewServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.callerInterceptor))
	srv := grpc.NewServer(opts...)
	api.RegisterPinVaultServer(srv, &handler{orch: s.orch, logger: s.logger})
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on listen until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, listen net.Listener) error {
	srv := s.NewServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gPRC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
