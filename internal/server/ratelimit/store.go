package ratelimit

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/pinvault/internal/dbx"
	"github.com/dmitrijs2005/pinvault/internal/server/models"
	"github.com/dmitrijs2005/pinvault/internal/server/repositories/attempts"
	"github.com/google/uuid"
)

// AttemptStore is the part of the repository manager the limiter needs.
type AttemptStore interface {
	dbx.Transactor
	Conn() dbx.DBTX
	Attempts(db dbx.DBTX) attempts.Repository
}

// StoreLimiter keeps attempts in the durable login_attempts table.
type StoreLimiter struct {
	store AttemptStore
	now   Clock
}

func NewStoreLimiter(store AttemptStore, now Clock) *StoreLimiter {
	return &StoreLimiter{store: store, now: now}
}

func (l *StoreLimiter) Reserve(ctx context.Context, identifier string, p Policy) (Reservation, error) {
	r := Reservation{ID: uuid.NewString(), Identifier: identifier}

	err := l.store.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := l.store.Attempts(tx)
		if err := repo.Lock(ctx, identifier); err != nil {
			return err
		}

		now := l.now()
		n, err := repo.CountFailures(ctx, identifier, now.Add(-p.Window))
		if err != nil {
			return err
		}
		r.Allowed = n < p.MaxAttempts

		return repo.Insert(ctx, &models.LoginAttempt{ID: r.ID, Identifier: identifier, Success: false, AttemptedAt: now})
	})
	if err != nil {
		return Reservation{}, fmt.Errorf("reserve attempt: %w", err)
	}
	return r, nil
}

func (l *StoreLimiter) Succeed(ctx context.Context, r Reservation) error {
	if !r.Allowed || r.ID == "" {
		return nil
	}
	if _, err := l.store.Attempts(l.store.Conn()).MarkSucceeded(ctx, r.ID); err != nil {
		return fmt.Errorf("finalize attempt: %w", err)
	}
	return nil
}

func (l *StoreLimiter) IsAllowed(ctx context.Context, identifier string, p Policy) (bool, error) {
	n, err := l.store.Attempts(l.store.Conn()).CountFailures(ctx, identifier, l.now().Add(-p.Window))
	if err != nil {
		return false, err
	}
	return n < p.MaxAttempts, nil
}

func (l *StoreLimiter) Record(ctx context.Context, identifier string, success bool) error {
	return l.store.Attempts(l.store.Conn()).Insert(ctx, &models.LoginAttempt{
		ID:          uuid.NewString(),
		Identifier:  identifier,
		Success:     success,
		AttemptedAt: l.now(),
	})
}
