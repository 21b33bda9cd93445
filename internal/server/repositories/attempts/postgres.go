// Package attempts provides a PostgreSQL-backed login attempt log.
package attempts

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/pinvault/internal/dbx"
	"github.com/dmitrijs2005/pinvault/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Lock takes a transaction-scoped advisory lock keyed by identifier. It is a
// no-op outside a transaction, so callers must run it inside dbx.WithTx.
func (r *PostgresRepository) Lock(ctx context.Context, identifier string) error {
	query := `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`
	if _, err := r.db.ExecContext(ctx, query, identifier); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CountFailures(ctx context.Context, identifier string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM login_attempts
		WHERE identifier = $1 AND NOT success AND attempted_at >= $2
	`
	var n int
	if err := r.db.QueryRowContext(ctx, query, identifier, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) Insert(ctx context.Context, a *models.LoginAttempt) error {
	query := `
		INSERT INTO login_attempts (id, identifier, success, attempted_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.db.ExecContext(ctx, query, a.ID, a.Identifier, a.Success, a.AttemptedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) MarkSucceeded(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE login_attempts SET success = TRUE
		WHERE id = $1 AND NOT success
	`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) Purge(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM login_attempts WHERE attempted_at < $1`
	res, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
