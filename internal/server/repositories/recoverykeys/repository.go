// Package recoverykeys declares the repository contract for per-account
// recovery keys.
package recoverykeys

import (
	"context"
	"time"

	"github.com/dmitrijs2005/pinvault/internal/server/models"
)

// Repository stores at most one recovery key per account.
type Repository interface {
	// Upsert stores k as the account's only key, replacing any previous
	// one. A replaced key can no longer be consumed.
	Upsert(ctx context.Context, k *models.RecoveryKey) error

	// Get returns the current key row or common.ErrorNotFound.
	Get(ctx context.Context, userID string) (*models.RecoveryKey, error)

	// Consume marks the key with the given digest used. It reports false
	// when no unconsumed key with that digest exists for userID.
	Consume(ctx context.Context, userID, keyDigest string, now time.Time) (bool, error)

	// Delete removes the account's key. Missing keys are not an error.
	Delete(ctx context.Context, userID string) error
}
