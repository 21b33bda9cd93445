// Package sessions provides a PostgreSQL-backed repository for bearer
// sessions.
package sessions

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

const sessionColumns = `id, token_hash, user_id, is_decoy, created_at, last_activity, expires_at, logout_at, is_active,
		ip_address, user_agent, device_type, browser, os, location`

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*models.Session, error) {
	s := &models.Session{}
	var logoutAt sql.NullTime
	err := row.Scan(&s.ID, &s.TokenHash, &s.UserID, &s.IsDecoy, &s.CreatedAt, &s.LastActivity, &s.ExpiresAt,
		&logoutAt, &s.IsActive, &s.IPAddress, &s.UserAgent, &s.DeviceType, &s.Browser, &s.OS, &s.Location)
	if err != nil {
		return nil, err
	}
	if logoutAt.Valid {
		t := logoutAt.Time
		s.LogoutAt = &t
	}
	return s, nil
}

// Create inserts a new active session.
func (r *PostgresRepository) Create(ctx context.Context, s *models.Session) error {
	query := `
		INSERT INTO sessions (id, token_hash, user_id, is_decoy, created_at, last_activity, expires_at, is_active,
			ip_address, user_agent, device_type, browser, os, location)
		VALUES ($1, $2, $3, $4, $5, $5, $6, TRUE, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.TokenHash, s.UserID, s.IsDecoy, s.CreatedAt, s.ExpiresAt,
		s.IPAddress, s.UserAgent, s.DeviceType, s.Browser, s.OS, s.Location)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	s.LastActivity = s.CreatedAt
	s.IsActive = true
	return nil
}

func (r *PostgresRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE token_hash = $1
	`
	return r.getOne(ctx, query, tokenHash)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE id = $1
	`
	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg string) (*models.Session, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Touch(ctx context.Context, id string, now time.Time, meta models.ClientMeta) error {
	query := `
		UPDATE sessions
		SET last_activity = $2, ip_address = $3, user_agent = $4, device_type = $5, browser = $6, os = $7,
			location = COALESCE(NULLIF($8, ''), location)
		WHERE id = $1 AND is_active
	`
	_, err := r.db.ExecContext(ctx, query, id, now,
		meta.IPAddress, meta.UserAgent, meta.DeviceType, meta.Browser, meta.OS, meta.Location)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Terminate(ctx context.Context, id string, now time.Time) (bool, error) {
	query := `
		UPDATE sessions
		SET is_active = FALSE, logout_at = $2
		WHERE id = $1 AND is_active
	`
	n, err := r.exec(ctx, query, id, now)
	return n > 0, err
}

func (r *PostgresRepository) TerminateAllExcept(ctx context.Context, userID, keepID string, decoyOnly bool, now time.Time) (int64, error) {
	query := `
		UPDATE sessions
		SET is_active = FALSE, logout_at = $3
		WHERE user_id = $1 AND id <> $2 AND is_active AND (is_decoy OR NOT $4)
	`
	return r.exec(ctx, query, userID, keepID, now, decoyOnly)
}

func (r *PostgresRepository) TerminateAll(ctx context.Context, userID string, now time.Time) (int64, error) {
	query := `
		UPDATE sessions
		SET is_active = FALSE, logout_at = $2
		WHERE user_id = $1 AND is_active
	`
	return r.exec(ctx, query, userID, now)
}

func (r *PostgresRepository) Purge(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM sessions
		WHERE expires_at < $1 OR logout_at < $1
	`
	return r.exec(ctx, query, before)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
