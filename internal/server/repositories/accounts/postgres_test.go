package accounts

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/pinvault/internal/common"
	"github.com/dmitrijs2005/pinvault/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

const (
	insertQ       = `(?s)^INSERT\s+INTO\s+accounts\s*\(id,\s*primary_hash,\s*decoy_hash,\s*created_at,\s*updated_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*NULLIF\(\$3,\s*''\),\s*\$4,\s*\$4\)\s*$`
	selectQ       = `(?s)^SELECT\s+id,\s*primary_hash,\s*COALESCE\(decoy_hash,\s*''\),\s*created_at,\s*updated_at\s+FROM\s+accounts\s+WHERE\s+id\s*=\s*\$1\s*$`
	selectLockedQ = `(?s)^SELECT\s+id,.*FROM\s+accounts\s+WHERE\s+id\s*=\s*\$1\s+FOR\s+UPDATE\s*$`
	updPrimaryQ   = `(?s)^UPDATE\s+accounts\s+SET\s+primary_hash\s*=\s*\$2,\s*updated_at\s*=\s*\$3\s+WHERE\s+id\s*=\s*\$1\s*$`
	updDecoyQ     = `(?s)^UPDATE\s+accounts\s+SET\s+decoy_hash\s*=\s*NULLIF\(\$2,\s*''\),\s*updated_at\s*=\s*\$3\s+WHERE\s+id\s*=\s*\$1\s*$`
)

var accountCols = []string{"id", "primary_hash", "decoy_hash", "created_at", "updated_at"}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectExec(insertQ).
		WithArgs("a-1", "$argon2id$p", "", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	a := &models.Account{ID: "a-1", PrimaryHash: "$argon2id$p", CreatedAt: now}
	if err := repo.Create(context.Background(), a); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if !a.UpdatedAt.Equal(now) {
		t.Fatalf("UpdatedAt not set: %+v", a)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(insertQ).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), &models.Account{ID: "a-1", PrimaryHash: "h"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGet_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(selectQ).
		WithArgs("a-1").
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow("a-1", "p", "d", now, now))

	got, err := repo.Get(context.Background(), "a-1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.ID != "a-1" || got.PrimaryHash != "p" || got.DecoyHash != "d" || !got.HasDecoy() {
		t.Fatalf("unexpected account: %+v", got)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(selectQ).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "ghost")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestGet_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(selectQ).WithArgs("a-1").WillReturnError(errors.New("db err"))

	_, err := repo.Get(context.Background(), "a-1")
	if err == nil || errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGetForUpdate_LocksRow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(selectLockedQ).
		WithArgs("a-1").
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow("a-1", "p", "", now, now))

	got, err := repo.GetForUpdate(context.Background(), "a-1")
	if err != nil {
		t.Fatalf("GetForUpdate error: %v", err)
	}
	if got.HasDecoy() {
		t.Fatalf("unexpected decoy: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdatePrimary(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectExec(updPrimaryQ).
		WithArgs("a-1", "new", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdatePrimary(context.Background(), "a-1", "new", now); err != nil {
		t.Fatalf("UpdatePrimary error: %v", err)
	}
}

func TestUpdatePrimary_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(updPrimaryQ).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdatePrimary(context.Background(), "ghost", "new", time.Now())
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestUpdateDecoy_Clear(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectExec(updDecoyQ).
		WithArgs("a-1", "", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateDecoy(context.Background(), "a-1", "", now); err != nil {
		t.Fatalf("UpdateDecoy error: %v", err)
	}
}

func TestUpdateDecoy_RowsAffectedError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(updDecoyQ).
		WillReturnResult(sqlmock.NewErrorResult(errors.New("no count")))

	err := repo.UpdateDecoy(context.Background(), "a-1", "d", time.Now())
	if err == nil || !regexp.MustCompile(`db error: .*no count`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
