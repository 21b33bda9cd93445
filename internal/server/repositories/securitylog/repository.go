// Package securitylog declares the append-only audit log repository.
package securitylog

import (
	"context"

	"github.com/dmitrijs2005/pinvault/internal/server/models"
)

type Repository interface {
	// Append stores one event. Rows are never updated.
	Append(ctx context.Context, e *models.SecurityEvent) error

	// List returns events of userID matching f, most recent first.
	List(ctx context.Context, userID string, f models.SecurityEventFilter) ([]models.SecurityEvent, error)
}
