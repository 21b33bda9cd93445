// Package securitylog provides the PostgreSQL-backed security audit log.
package securitylog

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/pinvault/internal/dbx"
	"github.com/dmitrijs2005/pinvault/internal/server/models"
)

// MaxPageSize caps a single List call.
const MaxPageSize = 200

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, e *models.SecurityEvent) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("encode details: %w", err)
	}
	if e.Details == nil {
		details = []byte("{}")
	}

	query := `
		INSERT INTO security_log (id, user_id, event_type, category, details, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.db.ExecContext(ctx, query,
		e.ID, e.UserID, string(e.EventType), e.Category, details, e.IPAddress, e.UserAgent, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context, userID string, f models.SecurityEventFilter) ([]models.SecurityEvent, error) {
	var b strings.Builder
	args := []any{userID}
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	b.WriteString(`SELECT id, user_id, event_type, category, details, ip_address, user_agent, created_at
		FROM security_log
		WHERE user_id = $1`)

	if len(f.Categories) > 0 {
		ph := make([]string, len(f.Categories))
		for i, c := range f.Categories {
			ph[i] = arg(c)
		}
		b.WriteString(" AND category IN (" + strings.Join(ph, ", ") + ")")
	}
	if !f.Since.IsZero() {
		b.WriteString(" AND created_at >= " + arg(f.Since))
	}
	if !f.Until.IsZero() {
		b.WriteString(" AND created_at <= " + arg(f.Until))
	}
	if !f.Before.IsZero() {
		if f.BeforeID != "" {
			b.WriteString(" AND (created_at, id) < (" + arg(f.Before) + ", " + arg(f.BeforeID) + ")")
		} else {
			b.WriteString(" AND created_at < " + arg(f.Before))
		}
	}

	limit := f.Limit
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	b.WriteString(" ORDER BY created_at DESC, id DESC LIMIT " + arg(limit))

	rows, err := r.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.SecurityEvent
	for rows.Next() {
		var (
			e         models.SecurityEvent
			eventType string
			details   []byte
		)
		if err := rows.Scan(&e.ID, &e.UserID, &eventType, &e.Category, &details, &e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		e.EventType = models.EventType(eventType)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("decode details: %w", err)
			}
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
