// Package recoverykeys provides a PostgreSQL-backed recovery key store.
package recoverykeys

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/pinvault/internal/common"
	"github.com/dmitrijs2005/pinvault/internal/dbx"
	"github.com/dmitrijs2005/pinvault/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, k *models.RecoveryKey) error {
	query := `
		INSERT INTO recovery_keys (user_id, key_digest, sealed_key, nonce, created_at, consumed_at)
		VALUES ($1, $2, $3, $4, $5, NULL)
		ON CONFLICT (user_id) DO UPDATE
		SET key_digest = EXCLUDED.key_digest,
			sealed_key = EXCLUDED.sealed_key,
			nonce = EXCLUDED.nonce,
			created_at = EXCLUDED.created_at,
			consumed_at = NULL
	`
	if _, err := r.db.ExecContext(ctx, query, k.UserID, k.KeyDigest, k.SealedKey, k.Nonce, k.CreatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	k.ConsumedAt = nil
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID string) (*models.RecoveryKey, error) {
	query := `
		SELECT user_id, key_digest, sealed_key, nonce, created_at, consumed_at
		FROM recovery_keys
		WHERE user_id = $1
	`
	k := &models.RecoveryKey{}
	var consumedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, userID).
		Scan(&k.UserID, &k.KeyDigest, &k.SealedKey, &k.Nonce, &k.CreatedAt, &consumedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if consumedAt.Valid {
		t := consumedAt.Time
		k.ConsumedAt = &t
	}
	return k, nil
}

func (r *PostgresRepository) Consume(ctx context.Context, userID, keyDigest string, now time.Time) (bool, error) {
	query := `
		UPDATE recovery_keys SET consumed_at = $3
		WHERE user_id = $1 AND key_digest = $2 AND consumed_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, userID, keyDigest, now)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID string) error {
	query := `DELETE FROM recovery_keys WHERE user_id = $1`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
