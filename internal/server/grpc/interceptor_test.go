package grpc

import (
	"context"
	"net"
	"testing"

	"github.com/dmitrijs2005/pinvault/internal/api"
	"github.com/dmitrijs2005/pinvault/internal/common"
	"github.com/dmitrijs2005/pinvault/internal/logging"
	"github.com/dmitrijs2005/pinvault/internal/server/clientmeta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
)

func TestCallerInterceptor_ExtractsTokenAndMeta(t *testing.T) {
	proxies, err := clientmeta.ParseTrustedProxies([]string{"10.0.0.1"})
	require.NoError(t, err)
	s := NewGRPCServer("", logging.Nop{}, nil, WithTrustedProxies(proxies))

	md := metadata.Pairs(
		api.SessionTokenKey, "tok-1",
		"user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0",
		common.ForwardedForHeaderName, "203.0.113.9, 10.0.0.1",
	)
	ctx := metadata.NewIncomingContext(context.Background(), md)
	ctx = peer.NewContext(ctx, &peer.Peer{Addr: &net.TCPAddr{IP: net.ParseIP("10.0.0.1"), Port: 5000}})

	info := &grpc.UnaryServerInfo{FullMethod: api.FullMethod("ListSessions")}
	called := false
	_, err = s.callerInterceptor(ctx, nil, info, func(ctx context.Context, req any) (any, error) {
		called = true
		c := callerFrom(ctx)
		assert.Equal(t, "tok-1", c.Token)
		assert.Equal(t, "203.0.113.9", c.Meta.IPAddress)
		assert.Equal(t, "desktop", c.Meta.DeviceType)
		return nil, nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestCallerInterceptor_ForwardedForNeedsTrustedPeer(t *testing.T) {
	s := NewGRPCServer("", logging.Nop{}, nil)

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(common.ForwardedForHeaderName, "203.0.113.9"))
	ctx = peer.NewContext(ctx, &peer.Peer{Addr: &net.TCPAddr{IP: net.ParseIP("198.51.100.7"), Port: 5000}})

	_, err := s.callerInterceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: api.FullMethod("Verify")},
		func(ctx context.Context, req any) (any, error) {
			assert.Equal(t, "198.51.100.7", callerFrom(ctx).Meta.IPAddress)
			return nil, nil
		})
	require.NoError(t, err)
}

func TestCallerInterceptor_NoMetadata(t *testing.T) {
	s := NewGRPCServer("", logging.Nop{}, nil)
	ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: &net.TCPAddr{IP: net.ParseIP("192.0.2.1"), Port: 1}})

	_, err := s.callerInterceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: api.FullMethod("Verify")},
		func(ctx context.Context, req any) (any, error) {
			c := callerFrom(ctx)
			assert.Empty(t, c.Token)
			assert.Equal(t, "192.0.2.1", c.Meta.IPAddress)
			return nil, nil
		})
	require.NoError(t, err)
}

func TestCallerFrom_Missing(t *testing.T) {
	c := callerFrom(context.Background())
	assert.Empty(t, c.Token)
}
