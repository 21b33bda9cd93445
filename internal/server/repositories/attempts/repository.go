// Package attempts declares the repository contract for login attempts used
// by the rate limiter.
package attempts

import (
	"context"
	"time"

	"github.com/dmitrijs2005/pinvault/internal/server/models"
)

type Repository interface {
	// Lock serializes attempt accounting for identifier until the
	// enclosing transaction ends.
	Lock(ctx context.Context, identifier string) error

	// CountFailures counts failed attempts of identifier at or after since.
	CountFailures(ctx context.Context, identifier string, since time.Time) (int, error)

	Insert(ctx context.Context, a *models.LoginAttempt) error

	// MarkSucceeded flips a reserved attempt to success. It reports false
	// when the row is missing or was already finalized.
	MarkSucceeded(ctx context.Context, id string) (bool, error)

	// Purge deletes attempts older than before.
	Purge(ctx context.Context, before time.Time) (int64, error)
}
