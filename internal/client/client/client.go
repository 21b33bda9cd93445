// Package client talks to the pinvault server and keeps the CLI's local
// state file.
//
// GRPCClient attaches the current session token to every call and maps
// gRPC status codes to the sentinel errors in errors.go so callers can use
// errors.Is.
package client

import (
	"context"

	"github.com/dmitrijs2005/pinvault/internal/api"
)

type Client interface {
	Close() error
	SetToken(token string)
	Ping(ctx context.Context) error
	CreateAccount(ctx context.Context, pin string) (string, error)
	Verify(ctx context.Context, userID, pin string) (*api.VerifyResponse, error)
	ChangePIN(ctx context.Context, current, next string) error
	SetDecoy(ctx context.Context, current, decoy string) error
	ClearDecoy(ctx context.Context, current string) error
	GenerateRecoveryKey(ctx context.Context, current string) (string, error)
	GetRecoveryKey(ctx context.Context) (string, error)
	Recover(ctx context.Context, userID, key string) (*api.RecoverResponse, error)
	ResetPIN(ctx context.Context, grant, pin string) error
	ListSessions(ctx context.Context) ([]api.Session, error)
	TerminateSession(ctx context.Context, sessionID string) error
	TerminateOthers(ctx context.Context) (int64, error)
	Logout(ctx context.Context) error
	ListSecurityEvents(ctx context.Context, req *api.ListSecurityEventsRequest) ([]api.SecurityEvent, error)
}
