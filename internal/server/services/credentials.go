// Package services contains server-side business logic: the credential
// store, session manager, recovery keys, audit log, and the orchestrator
// that composes them into the externally visible operations.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/pinvault/internal/common"
	"github.com/dmitrijs2005/pinvault/internal/cryptox"
	"github.com/dmitrijs2005/pinvault/internal/dbx"
	"github.com/dmitrijs2005/pinvault/internal/server/models"
	"github.com/dmitrijs2005/pinvault/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// Mode is the identity a matched credential opens the vault under.
type Mode int

const (
	ModeNone Mode = iota
	ModeReal
	ModeDecoy
)

// CredentialStore owns the primary and decoy PIN digests of every account.
type CredentialStore struct {
	repomanager repomanager.RepositoryManager
	hasher      *cryptox.Hasher
	pinLength   int
	now         func() time.Time
}

func NewCredentialStore(m repomanager.RepositoryManager, hasher *cryptox.Hasher, pinLength int, now func() time.Time) *CredentialStore {
	return &CredentialStore{repomanager: m, hasher: hasher, pinLength: pinLength, now: now}
}

// ValidateShape accepts exactly pinLength ASCII digits.
func (c *CredentialStore) ValidateShape(pin []byte) error {
	if len(pin) != c.pinLength {
		return common.ErrorInvalidShape
	}
	for _, b := range pin {
		if b < '0' || b > '9' {
			return common.ErrorInvalidShape
		}
	}
	return nil
}

// Create provisions an account whose primary credential is pin.
func (c *CredentialStore) Create(ctx context.Context, pin []byte) (*models.Account, error) {
	if err := c.ValidateShape(pin); err != nil {
		return nil, err
	}
	digest, err := c.digest(pin)
	if err != nil {
		return nil, err
	}

	account := &models.Account{ID: uuid.NewString(), PrimaryHash: digest, CreatedAt: c.now()}
	if err := c.repomanager.Accounts(c.repomanager.Conn()).Create(ctx, account); err != nil {
		return nil, fmt.Errorf("error creating account: %w", err)
	}
	return account, nil
}

// Match compares candidate with both credentials of userID. Both digests
// are always computed, absent ones against a dummy, so the time taken does
// not depend on which credential matched or whether the account exists.
// found reports whether the account exists; it is for auditing only.
func (c *CredentialStore) Match(ctx context.Context, userID string, candidate []byte) (mode Mode, found bool, err error) {
	account, err := c.lookup(ctx, userID)
	if err != nil {
		return ModeNone, false, err
	}

	var primary, decoy string
	if account != nil {
		primary, decoy = account.PrimaryHash, account.DecoyHash
	}

	okPrimary, err := c.hasher.VerifyOrDummy(candidate, primary)
	if err != nil {
		return ModeNone, false, err
	}
	okDecoy, err := c.hasher.VerifyOrDummy(candidate, decoy)
	if err != nil {
		return ModeNone, false, err
	}

	switch {
	case okPrimary:
		return ModeReal, true, nil
	case okDecoy:
		return ModeDecoy, true, nil
	}
	return ModeNone, account != nil, nil
}

// VerifyPrimary reports whether candidate is the primary PIN of userID.
// Unknown accounts cost the same work and yield common.ErrorNotFound.
func (c *CredentialStore) VerifyPrimary(ctx context.Context, userID string, candidate []byte) (bool, error) {
	return c.verify(ctx, userID, candidate, func(a *models.Account) string { return a.PrimaryHash })
}

// VerifyDecoy is VerifyPrimary for the decoy PIN; no decoy means false.
func (c *CredentialStore) VerifyDecoy(ctx context.Context, userID string, candidate []byte) (bool, error) {
	return c.verify(ctx, userID, candidate, func(a *models.Account) string { return a.DecoyHash })
}

func (c *CredentialStore) verify(ctx context.Context, userID string, candidate []byte, pick func(*models.Account) string) (bool, error) {
	account, err := c.lookup(ctx, userID)
	if err != nil {
		return false, err
	}
	if account == nil {
		_, _ = c.hasher.VerifyOrDummy(candidate, "")
		return false, common.ErrorNotFound
	}
	return c.hasher.VerifyOrDummy(candidate, pick(account))
}

// SetPrimary rotates the primary PIN. The caller has already proved the
// current one. A PIN equal to the current primary or to the decoy is
// rejected with common.ErrorSameAsCurrent.
func (c *CredentialStore) SetPrimary(ctx context.Context, userID string, pin []byte) error {
	if err := c.ValidateShape(pin); err != nil {
		return err
	}
	return c.repomanager.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		account, err := c.repomanager.Accounts(tx).GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		return c.rotatePrimary(ctx, tx, account, pin, false)
	})
}

// rotatePrimary runs inside a transaction holding the account row. A reset
// skips the same-as-current check (the old PIN is unknown to the caller)
// and clears the decoy.
func (c *CredentialStore) rotatePrimary(ctx context.Context, tx dbx.DBTX, account *models.Account, pin []byte, reset bool) error {
	if !reset {
		same, err := c.hasher.Verify(pin, account.PrimaryHash)
		if err != nil {
			return err
		}
		if same {
			return common.ErrorSameAsCurrent
		}
		if account.HasDecoy() {
			same, err = c.hasher.Verify(pin, account.DecoyHash)
			if err != nil {
				return err
			}
			if same {
				return common.ErrorSameAsCurrent
			}
		}
	}

	digest, err := c.digest(pin)
	if err != nil {
		return err
	}

	repo := c.repomanager.Accounts(tx)
	now := c.now()
	if err := repo.UpdatePrimary(ctx, account.ID, digest, now); err != nil {
		return err
	}
	if reset && account.HasDecoy() {
		return repo.UpdateDecoy(ctx, account.ID, "", now)
	}
	return nil
}

// SetDecoy stores or replaces the decoy PIN. It must differ from the primary.
func (c *CredentialStore) SetDecoy(ctx context.Context, userID string, pin []byte) error {
	if err := c.ValidateShape(pin); err != nil {
		return err
	}
	return c.repomanager.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := c.repomanager.Accounts(tx)
		account, err := repo.GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		same, err := c.hasher.Verify(pin, account.PrimaryHash)
		if err != nil {
			return err
		}
		if same {
			return common.ErrorSameAsCurrent
		}

		digest, err := c.digest(pin)
		if err != nil {
			return err
		}
		return repo.UpdateDecoy(ctx, userID, digest, c.now())
	})
}

// ClearDecoy removes the decoy PIN. Clearing an absent decoy succeeds.
func (c *CredentialStore) ClearDecoy(ctx context.Context, userID string) error {
	return c.repomanager.Accounts(c.repomanager.Conn()).UpdateDecoy(ctx, userID, "", c.now())
}

// credentialTag identifies the current primary credential without
// revealing anything about it.
func credentialTag(a *models.Account) string {
	return cryptox.DigestToken(a.PrimaryHash)[:16]
}

func (c *CredentialStore) digest(pin []byte) (string, error) {
	salt, err := c.hasher.NewSalt()
	if err != nil {
		return "", err
	}
	return c.hasher.Hash(pin, salt), nil
}

// lookup returns nil without error for ids that cannot name an account.
func (c *CredentialStore) lookup(ctx context.Context, userID string) (*models.Account, error) {
	if !validID(userID) {
		return nil, nil
	}
	account, err := c.repomanager.Accounts(c.repomanager.Conn()).Get(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return account, nil
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
