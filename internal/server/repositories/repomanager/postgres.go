// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose),
// plus an in-memory manager for tests and local runs.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/pinvault/internal/dbx"
	"github.com/dmitrijs2005/pinvault/internal/server/migrations"
	"github.com/dmitrijs2005/pinvault/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/pinvault/internal/server/repositories/attempts"
	"github.com/dmitrijs2005/pinvault/internal/server/repositories/recoverykeys"
	"github.com/dmitrijs2005/pinvault/internal/server/repositories/securitylog"
	"github.com/dmitrijs2005/pinvault/internal/server/repositories/sessions"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct {
	db *sql.DB
}

// Accounts returns an accounts.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Accounts(db dbx.DBTX) accounts.Repository {
	return accounts.NewPostgresRepository(db)
}

// Sessions returns a sessions.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Sessions(db dbx.DBTX) sessions.Repository {
	return sessions.NewPostgresRepository(db)
}

// Attempts returns an attempts.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Attempts(db dbx.DBTX) attempts.Repository {
	return attempts.NewPostgresRepository(db)
}

// RecoveryKeys returns a recoverykeys.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) RecoveryKeys(db dbx.DBTX) recoverykeys.Repository {
	return recoverykeys.NewPostgresRepository(db)
}

// SecurityLog returns a securitylog.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) SecurityLog(db dbx.DBTX) securitylog.Repository {
	return securitylog.NewPostgresRepository(db)
}

// Conn returns the pooled connection for statements outside a transaction.
func (m *PostgresRepositoryManager) Conn() dbx.DBTX {
	return m.db
}

// WithinTx runs fn in a read-committed transaction.
func (m *PostgresRepositoryManager) WithinTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	return dbx.WithTx(ctx, m.db, nil, fn)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the manager's database.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, m.db, "."); err != nil {
		return err
	}
	return nil
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager(db *sql.DB) (RepositoryManager, error) {
	return &PostgresRepositoryManager{db: db}, nil
}
