// Package services holds the CLI's application logic: it pairs the remote
// client with the local state file.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/pinvault/internal/api"
	"github.com/dmitrijs2005/pinvault/internal/client/client"
	"github.com/dmitrijs2005/pinvault/internal/client/repositories/metadata"
)

var ErrNoAccount = errors.New("no account on this device, create one or pass a user id")

// AccountService is what the REPL commands call. Unlock never reports
// whether the PIN opened the real or the decoy account; whoever watches
// the screen must not be able to tell.
type AccountService interface {
	UserID(ctx context.Context) (string, bool, error)
	CreateAccount(ctx context.Context, pin string) (string, error)
	Unlock(ctx context.Context, userID, pin string) error
	Restore(ctx context.Context) (bool, error)
	Logout(ctx context.Context) error

	Sessions(ctx context.Context) ([]api.Session, error)
	Terminate(ctx context.Context, sessionID string) error
	TerminateOthers(ctx context.Context) (int64, error)

	ChangePIN(ctx context.Context, current, next string) error
	SetDecoy(ctx context.Context, current, decoy string) error
	ClearDecoy(ctx context.Context, current string) error

	GenerateRecoveryKey(ctx context.Context, current string) (string, error)
	ShowRecoveryKey(ctx context.Context) (string, error)
	Recover(ctx context.Context, userID, key, newPIN string) error

	Activity(ctx context.Context, req *api.ListSecurityEventsRequest) ([]api.SecurityEvent, error)

	Ping(ctx context.Context) error
	Close() error
}

type accountService struct {
	client client.Client
	meta   metadata.Repository
}

func NewAccountService(c client.Client, meta metadata.Repository) AccountService {
	return &accountService{client: c, meta: meta}
}

func (s *accountService) UserID(ctx context.Context) (string, bool, error) {
	return s.meta.Get(ctx, metadata.KeyUserID)
}

func (s *accountService) resolveUser(ctx context.Context, userID string) (string, error) {
	if userID != "" {
		return userID, nil
	}
	id, ok, err := s.UserID(ctx)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNoAccount
	}
	return id, nil
}

func (s *accountService) CreateAccount(ctx context.Context, pin string) (string, error) {
	id, err := s.client.CreateAccount(ctx, pin)
	if err != nil {
		return "", err
	}
	if err := s.meta.Set(ctx, metadata.KeyUserID, id); err != nil {
		return "", err
	}
	if err := s.forget(ctx); err != nil {
		return "", err
	}
	return id, nil
}

// Unlock verifies pin for userID, or the stored account when userID is
// empty, and keeps the issued session token.
func (s *accountService) Unlock(ctx context.Context, userID, pin string) error {
	id, err := s.resolveUser(ctx, userID)
	if err != nil {
		return err
	}

	resp, err := s.client.Verify(ctx, id, pin)
	if err != nil {
		return err
	}

	if err := s.meta.Set(ctx, metadata.KeyUserID, id); err != nil {
		return err
	}
	if err := s.meta.Set(ctx, metadata.KeySessionToken, resp.Token); err != nil {
		return err
	}
	s.client.SetToken(resp.Token)
	return nil
}

// Restore loads a token saved by an earlier run. It reports whether one
// was found; the server still decides whether it is valid.
func (s *accountService) Restore(ctx context.Context) (bool, error) {
	token, ok, err := s.meta.Get(ctx, metadata.KeySessionToken)
	if err != nil || !ok {
		return false, err
	}
	s.client.SetToken(token)
	return true, nil
}

func (s *accountService) Logout(ctx context.Context) error {
	if _, err := s.token(ctx); err != nil {
		return err
	}
	err := s.client.Logout(ctx)
	if err != nil && !errors.Is(err, client.ErrUnauthorized) {
		return err
	}
	return s.forget(ctx)
}

func (s *accountService) token(ctx context.Context) (string, error) {
	token, ok, err := s.meta.Get(ctx, metadata.KeySessionToken)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", client.ErrNotLoggedIn
	}
	return token, nil
}

func (s *accountService) forget(ctx context.Context) error {
	s.client.SetToken("")
	if err := s.meta.Delete(ctx, metadata.KeySessionToken); err != nil {
		return fmt.Errorf("drop session token: %w", err)
	}
	return nil
}

// authed runs fn when a session is held and drops the token once the
// server stops accepting it.
func authed[T any](ctx context.Context, s *accountService, fn func() (T, error)) (T, error) {
	var zero T
	if _, err := s.token(ctx); err != nil {
		return zero, err
	}
	v, err := fn()
	if errors.Is(err, client.ErrUnauthorized) {
		if ferr := s.forget(ctx); ferr != nil {
			return zero, errors.Join(err, ferr)
		}
	}
	return v, err
}

func authedErr(ctx context.Context, s *accountService, fn func() error) error {
	_, err := authed(ctx, s, func() (struct{}, error) { return struct{}{}, fn() })
	return err
}

func (s *accountService) Sessions(ctx context.Context) ([]api.Session, error) {
	return authed(ctx, s, func() ([]api.Session, error) { return s.client.ListSessions(ctx) })
}

func (s *accountService) Terminate(ctx context.Context, sessionID string) error {
	return authedErr(ctx, s, func() error { return s.client.TerminateSession(ctx, sessionID) })
}

func (s *accountService) TerminateOthers(ctx context.Context) (int64, error) {
	return authed(ctx, s, func() (int64, error) { return s.client.TerminateOthers(ctx) })
}

func (s *accountService) ChangePIN(ctx context.Context, current, next string) error {
	return authedErr(ctx, s, func() error { return s.client.ChangePIN(ctx, current, next) })
}

func (s *accountService) SetDecoy(ctx context.Context, current, decoy string) error {
	return authedErr(ctx, s, func() error { return s.client.SetDecoy(ctx, current, decoy) })
}

func (s *accountService) ClearDecoy(ctx context.Context, current string) error {
	return authedErr(ctx, s, func() error { return s.client.ClearDecoy(ctx, current) })
}

func (s *accountService) GenerateRecoveryKey(ctx context.Context, current string) (string, error) {
	return authed(ctx, s, func() (string, error) { return s.client.GenerateRecoveryKey(ctx, current) })
}

func (s *accountService) ShowRecoveryKey(ctx context.Context) (string, error) {
	return authed(ctx, s, func() (string, error) { return s.client.GetRecoveryKey(ctx) })
}

// Recover trades a recovery key for a reset grant and sets newPIN with it.
// Every session of the account ends on the server, including ours.
func (s *accountService) Recover(ctx context.Context, userID, key, newPIN string) error {
	id, err := s.resolveUser(ctx, userID)
	if err != nil {
		return err
	}

	grant, err := s.client.Recover(ctx, id, key)
	if err != nil {
		return err
	}
	if err := s.client.ResetPIN(ctx, grant.Grant, newPIN); err != nil {
		return err
	}

	if err := s.meta.Set(ctx, metadata.KeyUserID, id); err != nil {
		return err
	}
	return s.forget(ctx)
}

func (s *accountService) Activity(ctx context.Context, req *api.ListSecurityEventsRequest) ([]api.SecurityEvent, error) {
	return authed(ctx, s, func() ([]api.SecurityEvent, error) { return s.client.ListSecurityEvents(ctx, req) })
}

func (s *accountService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (s *accountService) Close() error {
	return s.client.Close()
}
