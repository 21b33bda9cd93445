package repomanager

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/pinvault/internal/common"
	"github.com/dmitrijs2005/pinvault/internal/dbx"
	"github.com/dmitrijs2005/pinvault/internal/server/models"
	"github.com/dmitrijs2005/pinvault/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/pinvault/internal/server/repositories/attempts"
	"github.com/dmitrijs2005/pinvault/internal/server/repositories/recoverykeys"
	"github.com/dmitrijs2005/pinvault/internal/server/repositories/securitylog"
	"github.com/dmitrijs2005/pinvault/internal/server/repositories/sessions"
)

// InMemoryRepositoryManager keeps all state in process memory. WithinTx
// serializes transactions but does not roll back on error, which is
// enough for tests and single-node demos. The DBTX arguments are ignored.
type InMemoryRepositoryManager struct {
	txMu sync.Mutex

	mu       sync.Mutex
	accounts map[string]models.Account
	sessions map[string]models.Session
	attempts map[string]models.LoginAttempt
	keys     map[string]models.RecoveryKey
	events   []models.SecurityEvent
}

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{
		accounts: map[string]models.Account{},
		sessions: map[string]models.Session{},
		attempts: map[string]models.LoginAttempt{},
		keys:     map[string]models.RecoveryKey{},
	}
}

func (m *InMemoryRepositoryManager) RunMigrations(context.Context) error { return nil }

func (m *InMemoryRepositoryManager) Conn() dbx.DBTX { return nil }

func (m *InMemoryRepositoryManager) WithinTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(ctx, nil)
}

func (m *InMemoryRepositoryManager) Accounts(dbx.DBTX) accounts.Repository { return memAccounts{m} }

func (m *InMemoryRepositoryManager) Sessions(dbx.DBTX) sessions.Repository { return memSessions{m} }

func (m *InMemoryRepositoryManager) Attempts(dbx.DBTX) attempts.Repository { return memAttempts{m} }

func (m *InMemoryRepositoryManager) RecoveryKeys(dbx.DBTX) recoverykeys.Repository { return memKeys{m} }

func (m *InMemoryRepositoryManager) SecurityLog(dbx.DBTX) securitylog.Repository { return memLog{m} }

type memAccounts struct{ m *InMemoryRepositoryManager }

func (r memAccounts) Create(_ context.Context, a *models.Account) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.accounts[a.ID]; ok {
		return common.ErrorAlreadyExists
	}
	a.UpdatedAt = a.CreatedAt
	r.m.accounts[a.ID] = *a
	return nil
}

func (r memAccounts) Get(_ context.Context, id string) (*models.Account, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, ok := r.m.accounts[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &a, nil
}

func (r memAccounts) GetForUpdate(ctx context.Context, id string) (*models.Account, error) {
	return r.Get(ctx, id)
}

func (r memAccounts) UpdatePrimary(_ context.Context, id, hash string, now time.Time) error {
	return r.update(id, func(a *models.Account) { a.PrimaryHash = hash; a.UpdatedAt = now })
}

func (r memAccounts) UpdateDecoy(_ context.Context, id, hash string, now time.Time) error {
	return r.update(id, func(a *models.Account) { a.DecoyHash = hash; a.UpdatedAt = now })
}

func (r memAccounts) update(id string, fn func(*models.Account)) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, ok := r.m.accounts[id]
	if !ok {
		return common.ErrorNotFound
	}
	fn(&a)
	r.m.accounts[id] = a
	return nil
}

type memSessions struct{ m *InMemoryRepositoryManager }

func (r memSessions) Create(_ context.Context, s *models.Session) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, v := range r.m.sessions {
		if v.TokenHash == s.TokenHash {
			return common.ErrorAlreadyExists
		}
	}
	s.LastActivity = s.CreatedAt
	s.IsActive = true
	r.m.sessions[s.ID] = *s
	return nil
}

func (r memSessions) GetByTokenHash(_ context.Context, tokenHash string) (*models.Session, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, v := range r.m.sessions {
		if v.TokenHash == tokenHash {
			return &v, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memSessions) GetByID(_ context.Context, id string) (*models.Session, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.sessions[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &s, nil
}

func (r memSessions) ListByUser(_ context.Context, userID string) ([]models.Session, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []models.Session
	for _, v := range r.m.sessions {
		if v.UserID == userID {
			out = append(out, v)
		}
	}
	slices.SortFunc(out, func(a, b models.Session) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (r memSessions) Touch(_ context.Context, id string, now time.Time, meta models.ClientMeta) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.sessions[id]
	if !ok || !s.IsActive {
		return nil
	}
	loc := s.Location
	s.LastActivity = now
	s.ClientMeta = meta
	if meta.Location == "" {
		s.Location = loc
	}
	r.m.sessions[id] = s
	return nil
}

func (r memSessions) Terminate(_ context.Context, id string, now time.Time) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.sessions[id]
	if !ok || !s.IsActive {
		return false, nil
	}
	r.m.sessions[id] = ended(s, now)
	return true, nil
}

func (r memSessions) TerminateAllExcept(_ context.Context, userID, keepID string, decoyOnly bool, now time.Time) (int64, error) {
	return r.terminateWhere(now, func(s models.Session) bool {
		return s.UserID == userID && s.ID != keepID && (s.IsDecoy || !decoyOnly)
	}), nil
}

func (r memSessions) TerminateAll(_ context.Context, userID string, now time.Time) (int64, error) {
	return r.terminateWhere(now, func(s models.Session) bool { return s.UserID == userID }), nil
}

func (r memSessions) terminateWhere(now time.Time, match func(models.Session) bool) int64 {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for id, s := range r.m.sessions {
		if s.IsActive && match(s) {
			r.m.sessions[id] = ended(s, now)
			n++
		}
	}
	return n
}

func (r memSessions) Purge(_ context.Context, before time.Time) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for id, s := range r.m.sessions {
		if s.ExpiresAt.Before(before) || (s.LogoutAt != nil && s.LogoutAt.Before(before)) {
			delete(r.m.sessions, id)
			n++
		}
	}
	return n, nil
}

func ended(s models.Session, now time.Time) models.Session {
	s.IsActive = false
	s.LogoutAt = &now
	return s
}

type memAttempts struct{ m *InMemoryRepositoryManager }

// Lock is covered by WithinTx serialization.
func (r memAttempts) Lock(context.Context, string) error { return nil }

func (r memAttempts) CountFailures(_ context.Context, identifier string, since time.Time) (int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	n := 0
	for _, a := range r.m.attempts {
		if a.Identifier == identifier && !a.Success && !a.AttemptedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r memAttempts) Insert(_ context.Context, a *models.LoginAttempt) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.attempts[a.ID] = *a
	return nil
}

func (r memAttempts) MarkSucceeded(_ context.Context, id string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, ok := r.m.attempts[id]
	if !ok || a.Success {
		return false, nil
	}
	a.Success = true
	r.m.attempts[id] = a
	return true, nil
}

func (r memAttempts) Purge(_ context.Context, before time.Time) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for id, a := range r.m.attempts {
		if a.AttemptedAt.Before(before) {
			delete(r.m.attempts, id)
			n++
		}
	}
	return n, nil
}

type memKeys struct{ m *InMemoryRepositoryManager }

func (r memKeys) Upsert(_ context.Context, k *models.RecoveryKey) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	k.ConsumedAt = nil
	r.m.keys[k.UserID] = *k
	return nil
}

func (r memKeys) Get(_ context.Context, userID string) (*models.RecoveryKey, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	k, ok := r.m.keys[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &k, nil
}

func (r memKeys) Consume(_ context.Context, userID, keyDigest string, now time.Time) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	k, ok := r.m.keys[userID]
	if !ok || k.KeyDigest != keyDigest || k.ConsumedAt != nil {
		return false, nil
	}
	k.ConsumedAt = &now
	r.m.keys[userID] = k
	return true, nil
}

func (r memKeys) Delete(_ context.Context, userID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	delete(r.m.keys, userID)
	return nil
}

type memLog struct{ m *InMemoryRepositoryManager }

func (r memLog) Append(_ context.Context, e *models.SecurityEvent) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.events = append(r.m.events, *e)
	return nil
}

func (r memLog) List(_ context.Context, userID string, f models.SecurityEventFilter) ([]models.SecurityEvent, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	limit := f.Limit
	if limit <= 0 || limit > securitylog.MaxPageSize {
		limit = securitylog.MaxPageSize
	}

	var out []models.SecurityEvent
	for _, e := range r.m.events {
		switch {
		case e.UserID != userID:
		case len(f.Categories) > 0 && !slices.Contains(f.Categories, e.Category):
		case !f.Since.IsZero() && e.CreatedAt.Before(f.Since):
		case !f.Until.IsZero() && e.CreatedAt.After(f.Until):
		case !f.Before.IsZero() && !beforeCursor(e, f):
		default:
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b models.SecurityEvent) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func beforeCursor(e models.SecurityEvent, f models.SecurityEventFilter) bool {
	if c := e.CreatedAt.Compare(f.Before); c != 0 || f.BeforeID == "" {
		return c < 0
	}
	return e.ID < f.BeforeID
}
