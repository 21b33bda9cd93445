package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/pinvault/internal/dbx"
	"github.com/dmitrijs2005/pinvault/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/pinvault/internal/server/repositories/attempts"
	"github.com/dmitrijs2005/pinvault/internal/server/repositories/recoverykeys"
	"github.com/dmitrijs2005/pinvault/internal/server/repositories/securitylog"
	"github.com/dmitrijs2005/pinvault/internal/server/repositories/sessions"
	"github.com/pressly/goose/v3"
)

func newDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func TestNewPostgresRepositoryManager_ReturnsInterface(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	m, err := NewPostgresRepositoryManager(db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Conn() != db {
		t.Fatal("Conn() does not return the pool")
	}
}

func TestFactories_ReturnConcreteRepos(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	m := &PostgresRepositoryManager{db: db}

	var _ accounts.Repository = m.Accounts(db)
	var _ sessions.Repository = m.Sessions(db)
	var _ attempts.Repository = m.Attempts(db)
	var _ recoverykeys.Repository = m.RecoveryKeys(db)
	var _ securitylog.Repository = m.SecurityLog(db)

	if _, ok := m.Accounts(db).(*accounts.PostgresRepository); !ok {
		t.Fatal("Accounts() is not the postgres repository")
	}
	if _, ok := m.Sessions(db).(*sessions.PostgresRepository); !ok {
		t.Fatal("Sessions() is not the postgres repository")
	}
}

func TestWithinTx_CommitAndRollback(t *testing.T) {
	db, mock := newDB(t)
	defer db.Close()

	m := &PostgresRepositoryManager{db: db}

	mock.ExpectBegin()
	mock.ExpectCommit()
	if err := m.WithinTx(context.Background(), func(ctx context.Context, tx dbx.DBTX) error { return nil }); err != nil {
		t.Fatalf("WithinTx error: %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectRollback()
	boom := errors.New("boom")
	if err := m.WithinTx(context.Background(), func(ctx context.Context, tx dbx.DBTX) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRunMigrations_Success(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		if dir != "." {
			return errors.New("unexpected dir")
		}
		if len(opts) != 0 {
			return errors.New("unexpected opts")
		}
		return nil
	}
	defer func() { gooseUpContext = orig }()

	m := &PostgresRepositoryManager{db: db}
	if err := m.RunMigrations(context.Background()); err != nil {
		t.Fatalf("RunMigrations error: %v", err)
	}
}

func TestRunMigrations_Error(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	defer func() { gooseUpContext = orig }()

	m := &PostgresRepositoryManager{db: db}
	if err := m.RunMigrations(context.Background()); err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom, got %v", err)
	}
}
