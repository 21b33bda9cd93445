package services

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/pinvault/internal/cryptox"
	"github.com/dmitrijs2005/pinvault/internal/logging"
	"github.com/dmitrijs2005/pinvault/internal/server/auth"
	"github.com/dmitrijs2005/pinvault/internal/server/models"
	"github.com/dmitrijs2005/pinvault/internal/server/ratelimit"
	"github.com/dmitrijs2005/pinvault/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var testPolicies = Policies{
	Login:      ratelimit.Policy{MaxAttempts: 5, Window: 15 * time.Minute},
	Recovery:   ratelimit.Policy{MaxAttempts: 5, Window: 15 * time.Minute},
	Reauth:     ratelimit.Policy{MaxAttempts: 5, Window: 15 * time.Minute},
	SharedLink: ratelimit.Policy{MaxAttempts: 10, Window: 15 * time.Minute},
}

var (
	phone  = models.ClientMeta{IPAddress: "203.0.113.7", UserAgent: "Mozilla/5.0 (iPhone)", DeviceType: "mobile"}
	laptop = models.ClientMeta{IPAddress: "198.51.100.2", UserAgent: "Mozilla/5.0 (X11; Linux x86_64)", DeviceType: "desktop"}
)

type harness struct {
	clock       *fakeClock
	repo        repomanager.RepositoryManager
	credentials *CredentialStore
	sessions    *SessionManager
	recovery    *RecoveryKeyManager
	audit       *AuditLog
	limiter     *ratelimit.StoreLimiter
	grants      *auth.GrantIssuer
	orch        *Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, repomanager.NewInMemoryRepositoryManager())
}

func newHarnessWith(t *testing.T, m repomanager.RepositoryManager) *harness {
	t.Helper()

	clk := &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}

	hasher, err := cryptox.NewHasher(cryptox.Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	require.NoError(t, err)
	sealer, err := cryptox.NewSealer(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)

	h := &harness{clock: clk, repo: m}
	h.credentials = NewCredentialStore(m, hasher, 6, clk.Now)
	h.sessions = NewSessionManager(m, clk.Now)
	h.grants = auth.NewGrantIssuer([]byte("test-grant-secret"), 10*time.Minute, clk.Now)
	h.recovery = NewRecoveryKeyManager(m, h.credentials, sealer, h.grants, clk.Now)
	h.audit = NewAuditLog(m, logging.Nop{}, clk.Now, 0)
	h.limiter = ratelimit.NewStoreLimiter(m, clk.Now)
	h.orch = NewOrchestrator(OrchestratorDeps{
		RepoManager: m,
		Credentials: h.credentials,
		Sessions:    h.sessions,
		Recovery:    h.recovery,
		Audit:       h.audit,
		Limiter:     h.limiter,
		Grants:      h.grants,
		Policies:    testPolicies,
		SessionTTL:  12 * time.Hour,
		Now:         clk.Now,
	})
	return h
}

// account creates an account with the given primary and, when decoy is
// non-empty, a decoy PIN.
func (h *harness) account(t *testing.T, primary, decoy string) string {
	t.Helper()
	ctx := context.Background()

	id, err := h.orch.CreateAccount(ctx, []byte(primary), phone)
	require.NoError(t, err)
	if decoy != "" {
		require.NoError(t, h.credentials.SetDecoy(ctx, id, []byte(decoy)))
	}
	return id
}

func (h *harness) login(t *testing.T, userID, pin string, meta models.ClientMeta) Caller {
	t.Helper()
	res, err := h.orch.Verify(context.Background(), userID, []byte(pin), meta)
	require.NoError(t, err)
	return Caller{Token: res.Token, Meta: meta}
}

func (h *harness) events(t *testing.T, userID string) []models.EventType {
	t.Helper()
	list, err := h.audit.Query(context.Background(), userID, models.SecurityEventFilter{})
	require.NoError(t, err)
	out := make([]models.EventType, 0, len(list))
	for _, e := range list {
		out = append(out, e.EventType)
	}
	return out
}
