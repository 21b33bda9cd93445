package client

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/dmitrijs2005/pinvault/internal/api"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// UserAgent is what the server parses into device, browser and OS.
var UserAgent = "pinvault-cli/1.0 (" + runtime.GOOS + ")"

var _ Client = (*GRPCClient)(nil)

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      *api.PinVaultClient

	mu    sync.RWMutex
	token string
}

func withSessionToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(api.SessionTokenKey)
	md.Set(api.SessionTokenKey, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) sessionTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if token := s.currentToken(); token != "" {
		ctx = withSessionToken(ctx, token)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

func NewPinVaultClientService(endpointURL string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}
	if err := c.InitGRPCClient(opts...); err != nil {
		return nil, err
	}
	return c, nil
}

// InitGRPCClient dials lazily; extra options are appended after the defaults.
func (s *GRPCClient) InitGRPCClient(opts ...grpc.DialOption) error {
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.sessionTokenInterceptor),
		grpc.WithUserAgent(UserAgent),
	}, opts...)

	conn, err := grpc.NewClient(s.endpointURL, dialOpts...)
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = api.NewPinVaultClient(conn)
	return nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) SetToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

func (s *GRPCClient) currentToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	resp, err := s.client.Ping(ctx, &api.Empty{})
	if err != nil {
		return s.mapError(err)
	}
	if resp.Status != "OK" {
		return ErrUnavailable
	}
	return nil
}

func (s *GRPCClient) CreateAccount(ctx context.Context, pin string) (string, error) {
	resp, err := s.client.CreateAccount(ctx, &api.CreateAccountRequest{PIN: pin})
	if err != nil {
		return "", s.mapError(err)
	}
	return resp.UserID, nil
}

// Verify does not store the returned token; the caller decides.
func (s *GRPCClient) Verify(ctx context.Context, userID, pin string) (*api.VerifyResponse, error) {
	resp, err := s.client.Verify(ctx, &api.VerifyRequest{UserID: userID, PIN: pin})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp, nil
}

func (s *GRPCClient) ChangePIN(ctx context.Context, current, next string) error {
	_, err := s.client.ChangePIN(ctx, &api.ChangePINRequest{CurrentPIN: current, NewPIN: next})
	return s.mapError(err)
}

func (s *GRPCClient) SetDecoy(ctx context.Context, current, decoy string) error {
	_, err := s.client.SetDecoy(ctx, &api.SetDecoyRequest{CurrentPIN: current, DecoyPIN: decoy})
	return s.mapError(err)
}

func (s *GRPCClient) ClearDecoy(ctx context.Context, current string) error {
	_, err := s.client.ClearDecoy(ctx, &api.ClearDecoyRequest{CurrentPIN: current})
	return s.mapError(err)
}

func (s *GRPCClient) GenerateRecoveryKey(ctx context.Context, current string) (string, error) {
	resp, err := s.client.GenerateRecoveryKey(ctx, &api.GenerateRecoveryKeyRequest{CurrentPIN: current})
	if err != nil {
		return "", s.mapError(err)
	}
	return resp.Key, nil
}

func (s *GRPCClient) GetRecoveryKey(ctx context.Context) (string, error) {
	resp, err := s.client.GetRecoveryKey(ctx, &api.Empty{})
	if err != nil {
		return "", s.mapError(err)
	}
	return resp.Key, nil
}

func (s *GRPCClient) Recover(ctx context.Context, userID, key string) (*api.RecoverResponse, error) {
	resp, err := s.client.Recover(ctx, &api.RecoverRequest{UserID: userID, RecoveryKey: key})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp, nil
}

func (s *GRPCClient) ResetPIN(ctx context.Context, grant, pin string) error {
	_, err := s.client.ResetPIN(ctx, &api.ResetPINRequest{Grant: grant, NewPIN: pin})
	return s.mapError(err)
}

func (s *GRPCClient) ListSessions(ctx context.Context) ([]api.Session, error) {
	resp, err := s.client.ListSessions(ctx, &api.Empty{})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp.Sessions, nil
}

func (s *GRPCClient) TerminateSession(ctx context.Context, sessionID string) error {
	_, err := s.client.TerminateSession(ctx, &api.TerminateSessionRequest{SessionID: sessionID})
	return s.mapError(err)
}

func (s *GRPCClient) TerminateOthers(ctx context.Context) (int64, error) {
	resp, err := s.client.TerminateOthers(ctx, &api.Empty{})
	if err != nil {
		return 0, s.mapError(err)
	}
	return resp.Count, nil
}

func (s *GRPCClient) Logout(ctx context.Context) error {
	_, err := s.client.Logout(ctx, &api.Empty{})
	return s.mapError(err)
}

func (s *GRPCClient) ListSecurityEvents(ctx context.Context, req *api.ListSecurityEventsRequest) ([]api.SecurityEvent, error) {
	resp, err := s.client.ListSecurityEvents(ctx, req)
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp.Events, nil
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated:
		if st.Message() == api.StatusInvalidCredential {
			return ErrInvalidCredential
		}
		return ErrUnauthorized
	case codes.PermissionDenied:
		return ErrUnauthorized
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	case codes.ResourceExhausted:
		return ErrThrottled
	case codes.InvalidArgument:
		return ErrInvalidInput
	case codes.FailedPrecondition:
		return ErrSamePIN
	case codes.NotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
