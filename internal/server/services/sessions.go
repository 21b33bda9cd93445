package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/pinvault/internal/common"
	"github.com/dmitrijs2005/pinvault/internal/cryptox"
	"github.com/dmitrijs2005/pinvault/internal/server/models"
	"github.com/dmitrijs2005/pinvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/pinvault/internal/server/repositories/sessions"
	"github.com/google/uuid"
)

// SessionManager issues and revokes bearer sessions. Every check reads
// storage, so a revocation is visible to the very next request.
type SessionManager struct {
	repomanager repomanager.RepositoryManager
	now         func() time.Time
}

func NewSessionManager(m repomanager.RepositoryManager, now func() time.Time) *SessionManager {
	return &SessionManager{repomanager: m, now: now}
}

// Issue creates a session and returns its token. Only the token digest is
// stored, so the token cannot be recovered later.
func (m *SessionManager) Issue(ctx context.Context, userID string, isDecoy bool, ttl time.Duration, meta models.ClientMeta) (string, *models.Session, error) {
	token, err := cryptox.NewSessionToken()
	if err != nil {
		return "", nil, err
	}

	now := m.now()
	s := &models.Session{
		ID:         uuid.NewString(),
		TokenHash:  cryptox.DigestToken(token),
		UserID:     userID,
		IsDecoy:    isDecoy,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
		ClientMeta: meta,
	}
	if err := m.repo().Create(ctx, s); err != nil {
		return "", nil, fmt.Errorf("error creating session: %w", err)
	}
	return token, s, nil
}

// Validate returns the session behind token, or common.ErrorUnauthorized
// when it is unknown, terminated or expired. It does not extend expiry.
func (m *SessionManager) Validate(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, common.ErrorUnauthorized
	}
	s, err := m.repo().GetByTokenHash(ctx, cryptox.DigestToken(token))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}
	if !s.ValidAt(m.now()) {
		return nil, common.ErrorUnauthorized
	}
	return s, nil
}

// Touch records activity for display purposes.
func (m *SessionManager) Touch(ctx context.Context, s *models.Session, meta models.ClientMeta) error {
	now := m.now()
	if err := m.repo().Touch(ctx, s.ID, now, meta); err != nil {
		return err
	}
	s.LastActivity = now
	return nil
}

func (m *SessionManager) Get(ctx context.Context, id string) (*models.Session, error) {
	if !validID(id) {
		return nil, common.ErrorNotFound
	}
	return m.repo().GetByID(ctx, id)
}

// Terminate ends a session by id. Ending an ended session is a no-op.
func (m *SessionManager) Terminate(ctx context.Context, id string) (bool, error) {
	return m.repo().Terminate(ctx, id, m.now())
}

// TerminateAllExcept ends every other active session of userID. With
// decoyOnly set, only decoy sessions are touched.
func (m *SessionManager) TerminateAllExcept(ctx context.Context, userID, keepID string, decoyOnly bool) (int64, error) {
	return m.repo().TerminateAllExcept(ctx, userID, keepID, decoyOnly, m.now())
}

// List returns the sessions of userID, most recent first.
func (m *SessionManager) List(ctx context.Context, userID string) ([]models.Session, error) {
	return m.repo().ListByUser(ctx, userID)
}

func (m *SessionManager) repo() sessions.Repository {
	return m.repomanager.Sessions(m.repomanager.Conn())
}
