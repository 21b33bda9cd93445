package repomanager

import (
	"context"

	"github.com/dmitrijs2005/pinvault/internal/dbx"
	"github.com/dmitrijs2005/pinvault/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/pinvault/internal/server/repositories/attempts"
	"github.com/dmitrijs2005/pinvault/internal/server/repositories/recoverykeys"
	"github.com/dmitrijs2005/pinvault/internal/server/repositories/securitylog"
	"github.com/dmitrijs2005/pinvault/internal/server/repositories/sessions"
)

// RepositoryManager vends repositories bound to a DBTX and owns the
// transaction boundary. Services call Conn for single statements and
// WithinTx for multi-statement units.
type RepositoryManager interface {
	dbx.Transactor
	RunMigrations(ctx context.Context) error
	Conn() dbx.DBTX
	Accounts(db dbx.DBTX) accounts.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	Attempts(db dbx.DBTX) attempts.Repository
	RecoveryKeys(db dbx.DBTX) recoverykeys.Repository
	SecurityLog(db dbx.DBTX) securitylog.Repository
}
