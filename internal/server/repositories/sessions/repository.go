// Package sessions declares the server-side repository contract for
// bearer sessions.
package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/pinvault/internal/server/models"
)

// Repository defines operations for issuing, reading, and revoking sessions.
type Repository interface {
	// Create stores a new session row. The caller assigns ID and TokenHash.
	Create(ctx context.Context, s *models.Session) error

	// GetByTokenHash looks up a session by the digest of its token.
	// Implementations return common.ErrorNotFound when absent.
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error)

	// GetByID returns a session by id or common.ErrorNotFound.
	GetByID(ctx context.Context, id string) (*models.Session, error)

	// ListByUser returns every session of userID, most recent first.
	ListByUser(ctx context.Context, userID string) ([]models.Session, error)

	// Touch records activity and refreshes client metadata.
	Touch(ctx context.Context, id string, now time.Time, meta models.ClientMeta) error

	// Terminate deactivates one session and reports whether it was active.
	// Terminating an already inactive session is not an error.
	Terminate(ctx context.Context, id string, now time.Time) (bool, error)

	// TerminateAllExcept deactivates the active sessions of userID other
	// than keepID. With decoyOnly set, real sessions are left untouched.
	TerminateAllExcept(ctx context.Context, userID, keepID string, decoyOnly bool, now time.Time) (int64, error)

	// TerminateAll deactivates every active session of userID.
	TerminateAll(ctx context.Context, userID string, now time.Time) (int64, error)

	// Purge deletes sessions that expired or ended before the cutoff.
	Purge(ctx context.Context, before time.Time) (int64, error)
}
