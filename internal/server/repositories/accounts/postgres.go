// Package accounts provides a PostgreSQL-backed repository for accounts.
package accounts

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

func (r *PostgresRepository) Create(ctx context.Context, account *models.Account) error {
	query :=
		`INSERT INTO accounts (id, primary_hash, decoy_hash, created_at, updated_at)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $4)
		 `

	_, err := r.db.ExecContext(ctx, query, account.ID, account.PrimaryHash, account.DecoyHash, account.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	account.UpdatedAt = account.CreatedAt
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Account, error) {
	query :=
		`SELECT id, primary_hash, COALESCE(decoy_hash, ''), created_at, updated_at FROM accounts
		 WHERE id = $1
		 `
	return r.get(ctx, query, id)
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (*models.Account, error) {
	query :=
		`SELECT id, primary_hash, COALESCE(decoy_hash, ''), created_at, updated_at FROM accounts
		 WHERE id = $1
		 FOR UPDATE
		 `
	return r.get(ctx, query, id)
}

func (r *PostgresRepository) get(ctx context.Context, query string, id string) (*models.Account, error) {
	a := &models.Account{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&a.ID, &a.PrimaryHash, &a.DecoyHash, &a.CreatedAt, &a.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return a, nil
}

func (r *PostgresRepository) UpdatePrimary(ctx context.Context, id string, hash string, now time.Time) error {
	query :=
		`UPDATE accounts SET primary_hash = $2, updated_at = $3
		 WHERE id = $1
		 `
	return r.update(ctx, query, id, hash, now)
}

func (r *PostgresRepository) UpdateDecoy(ctx context.Context, id string, hash string, now time.Time) error {
	query :=
		`UPDATE accounts SET decoy_hash = NULLIF($2, ''), updated_at = $3
		 WHERE id = $1
		 `
	return r.update(ctx, query, id, hash, now)
}

func (r *PostgresRepository) update(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}

	return nil
}
