// Package ratelimit throttles credential guessing with a sliding window of
// failed attempts per requester identifier.
//
// Checking and recording happen in one atomic step: Reserve counts recent
// failures and records the current attempt as failed under a per-identifier
// lock, so concurrent callers cannot both slip under the threshold. When the
// credential then matches, Succeed turns the reserved attempt into a success
// so that it no longer counts against the window.
package ratelimit

import (
	"context"
	"time"
)

// Policy is the throttling rule of one call-site.
type Policy struct {
	MaxAttempts int
	Window      time.Duration
}

// Reservation is the outcome of Reserve. It must be passed to Succeed when
// the guarded credential check passes.
type Reservation struct {
	ID         string
	Identifier string
	Allowed    bool
}

type Limiter interface {
	// Reserve records a failed attempt for identifier and reports whether
	// the attempt was within policy before it was recorded. Throttled
	// attempts are recorded too.
	Reserve(ctx context.Context, identifier string, p Policy) (Reservation, error)

	// Succeed marks an allowed reservation as a successful attempt.
	// It is idempotent and a no-op for throttled reservations.
	Succeed(ctx context.Context, r Reservation) error

	// IsAllowed reports whether identifier is below the failure threshold
	// without recording anything. Checking and then recording separately
	// is racy; guarded call-sites use Reserve instead.
	IsAllowed(ctx context.Context, identifier string, p Policy) (bool, error)

	// Record appends an attempt unconditionally, successes included. It is
	// for attempts checked outside this process and for backfills.
	Record(ctx context.Context, identifier string, success bool) error
}

// Clock returns the current time; tests substitute a fixed clock.
type Clock func() time.Time
