// Package accounts declares the repository contract for account credential
// material.
package accounts

import (
	"context"
	"time"

	"github.com/dmitrijs2005/pinvault/internal/server/models"
)

type Repository interface {
	// Create inserts a new account; the caller assigns the ID.
	Create(ctx context.Context, account *models.Account) error

	// Get returns the account or common.ErrorNotFound.
	Get(ctx context.Context, id string) (*models.Account, error)

	// GetForUpdate is Get with a row lock held until the enclosing
	// transaction ends. Rotations read through it.
	GetForUpdate(ctx context.Context, id string) (*models.Account, error)

	UpdatePrimary(ctx context.Context, id string, hash string, now time.Time) error

	// UpdateDecoy stores hash as the decoy digest; an empty hash clears it.
	UpdateDecoy(ctx context.Context, id string, hash string, now time.Time) error
}
