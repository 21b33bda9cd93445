package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/pinvault/internal/common"
	"github.com/dmitrijs2005/pinvault/internal/cryptox"
	"github.com/dmitrijs2005/pinvault/internal/dbx"
	"github.com/dmitrijs2005/pinvault/internal/server/auth"
	"github.com/dmitrijs2005/pinvault/internal/server/models"
	"github.com/dmitrijs2005/pinvault/internal/server/repositories/repomanager"
)

// RecoveryGrant lets its holder set a new primary PIN once.
type RecoveryGrant struct {
	Token     string
	ExpiresAt time.Time
}

// RecoveryKeyManager issues the single out-of-band recovery key of an
// account. The key is stored twice: as a digest for consumption and
// sealed under a server key so the owner can display it again.
type RecoveryKeyManager struct {
	repomanager repomanager.RepositoryManager
	credentials *CredentialStore
	sealer      *cryptox.Sealer
	grants      *auth.GrantIssuer
	now         func() time.Time
}

func NewRecoveryKeyManager(m repomanager.RepositoryManager, credentials *CredentialStore, sealer *cryptox.Sealer,
	grants *auth.GrantIssuer, now func() time.Time) *RecoveryKeyManager {
	return &RecoveryKeyManager{repomanager: m, credentials: credentials, sealer: sealer, grants: grants, now: now}
}

// Generate re-checks the primary PIN, then mints a key that replaces any
// previous one. The plaintext is returned to be shown to the user.
func (r *RecoveryKeyManager) Generate(ctx context.Context, userID string, primary []byte) (string, error) {
	ok, err := r.credentials.VerifyPrimary(ctx, userID, primary)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorInvalidCredential
		}
		return "", err
	}
	if !ok {
		return "", common.ErrorInvalidCredential
	}

	key := cryptox.NewRecoveryKey()
	sealed, nonce, err := r.sealer.Seal([]byte(key), []byte(userID))
	if err != nil {
		return "", err
	}

	err = r.repomanager.RecoveryKeys(r.repomanager.Conn()).Upsert(ctx, &models.RecoveryKey{
		UserID:    userID,
		KeyDigest: cryptox.DigestToken(cryptox.NormalizeRecoveryKey(key)),
		SealedKey: sealed,
		Nonce:     nonce,
		CreatedAt: r.now(),
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

// Retrieve returns the active key. A consumed or missing key is
// common.ErrorNotFound.
func (r *RecoveryKeyManager) Retrieve(ctx context.Context, userID string) (string, error) {
	k, err := r.repomanager.RecoveryKeys(r.repomanager.Conn()).Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if k.ConsumedAt != nil {
		return "", common.ErrorNotFound
	}
	plain, err := r.sealer.Open(k.SealedKey, k.Nonce, []byte(userID))
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// Consume spends the key once and returns a grant bound to the current
// primary credential. Wrong, superseded or spent keys are
// common.ErrorInvalidCredential.
func (r *RecoveryKeyManager) Consume(ctx context.Context, userID, candidate string) (*RecoveryGrant, error) {
	if !validID(userID) {
		return nil, common.ErrorInvalidCredential
	}
	digest := cryptox.DigestToken(cryptox.NormalizeRecoveryKey(candidate))

	var tag string
	err := r.repomanager.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		ok, err := r.repomanager.RecoveryKeys(tx).Consume(ctx, userID, digest, r.now())
		if err != nil {
			return err
		}
		if !ok {
			return common.ErrorInvalidCredential
		}
		account, err := r.repomanager.Accounts(tx).Get(ctx, userID)
		if err != nil {
			return err
		}
		tag = credentialTag(account)
		return nil
	})
	if err != nil {
		return nil, err
	}

	token, expires, err := r.grants.Issue(userID, tag)
	if err != nil {
		return nil, err
	}
	return &RecoveryGrant{Token: token, ExpiresAt: expires}, nil
}
