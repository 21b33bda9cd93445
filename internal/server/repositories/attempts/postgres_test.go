package attempts

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/pinvault/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var now = time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

func TestLock(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^SELECT\s+pg_advisory_xact_lock\(hashtextextended\(\$1,\s*0\)\)$`).
		WithArgs("ip:10.0.0.1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Lock(context.Background(), "ip:10.0.0.1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLock_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`pg_advisory_xact_lock`).WillReturnError(errors.New("lock timeout"))

	err := repo.Lock(context.Background(), "x")
	if err == nil || !regexp.MustCompile(`db error: .*lock timeout`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestCountFailures(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*SELECT\s+COUNT\(\*\)\s+FROM\s+login_attempts\s+WHERE\s+identifier\s*=\s*\$1\s+AND\s+NOT\s+success\s+AND\s+attempted_at\s*>=\s*\$2\s*$`
	since := now.Add(-15 * time.Minute)
	mock.ExpectQuery(q).
		WithArgs("ip:1", since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	n, err := repo.CountFailures(context.Background(), "ip:1", since)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestCountFailures_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+login_attempts`).WillReturnError(errors.New("db down"))

	_, err := repo.CountFailures(context.Background(), "ip:1", now)
	assert.Error(t, err)
}

func TestInsert(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*INSERT\s+INTO\s+login_attempts\s*\(id,\s*identifier,\s*success,\s*attempted_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s*$`
	mock.ExpectExec(q).
		WithArgs("a1", "ip:1", false, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Insert(context.Background(), &models.LoginAttempt{ID: "a1", Identifier: "ip:1", AttemptedAt: now})
	require.NoError(t, err)
}

func TestMarkSucceeded(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*UPDATE\s+login_attempts\s+SET\s+success\s*=\s*TRUE\s+WHERE\s+id\s*=\s*\$1\s+AND\s+NOT\s+success\s*$`
	mock.ExpectExec(q).WithArgs("a1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("a1").WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.MarkSucceeded(context.Background(), "a1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkSucceeded(context.Background(), "a1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPurge(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^DELETE\s+FROM\s+login_attempts\s+WHERE\s+attempted_at\s*<\s*\$1$`).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 12))

	n, err := repo.Purge(context.Background(), now)
	require.NoError(t, err)
	assert.EqualValues(t, 12, n)
}
