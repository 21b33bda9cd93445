package grpc

import (
	"context"
	"time"

	"github.com/dmitrijs2005/pinvault/internal/api"
	"github.com/dmitrijs2005/pinvault/internal/server/clientmeta"
	"github.com/dmitrijs2005/pinvault/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const callerKey ctxKey = "caller"

// callerInterceptor puts the session token and client metadata of the
// request into the context. Whether a token is required is decided by
// the orchestrator, so every method goes through the same path.
func (s *GRPCServer) callerInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {

	var token string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(api.SessionTokenKey)
		if len(values) > 0 {
			token = values[0]
		}
	}

	ctx = context.WithValue(ctx, callerKey, services.Caller{Token: token, Meta: clientmeta.FromIncoming(ctx, s.proxies)})

	return handler(ctx, req)
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Debug(ctx, "rpc", "method", info.FullMethod, "code", status.Code(err).String(), "duration", time.Since(start))
	return resp, err
}

func callerFrom(ctx context.Context) services.Caller {
	c, _ := ctx.Value(callerKey).(services.Caller)
	return c
}
