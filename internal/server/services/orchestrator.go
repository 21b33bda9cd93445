package services

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/pinvault/internal/common"
	"github.com/dmitrijs2005/pinvault/internal/cryptox"
	"github.com/dmitrijs2005/pinvault/internal/dbx"
	"github.com/dmitrijs2005/pinvault/internal/logging"
	"github.com/dmitrijs2005/pinvault/internal/server/auth"
	"github.com/dmitrijs2005/pinvault/internal/server/models"
	"github.com/dmitrijs2005/pinvault/internal/server/ratelimit"
	"github.com/dmitrijs2005/pinvault/internal/server/repositories/repomanager"
)

// Policies selects the throttling rule of each call-site.
type Policies struct {
	Login      ratelimit.Policy
	Recovery   ratelimit.Policy
	Reauth     ratelimit.Policy
	SharedLink ratelimit.Policy
}

// Caller is the explicit session handle passed to every authenticated
// operation, together with the metadata of the request carrying it.
type Caller struct {
	Token string
	Meta  models.ClientMeta
}

// LoginResult has the same shape for real and decoy logins.
type LoginResult struct {
	Token     string
	SessionID string
	IsDecoy   bool
	ExpiresAt time.Time
}

// SessionView is a session as shown in the device list.
type SessionView struct {
	models.Session
	Current bool
	Valid   bool
}

type OrchestratorDeps struct {
	RepoManager repomanager.RepositoryManager
	Credentials *CredentialStore
	Sessions    *SessionManager
	Recovery    *RecoveryKeyManager
	Audit       *AuditLog
	Limiter     ratelimit.Limiter
	Grants      *auth.GrantIssuer
	Policies    Policies
	SessionTTL  time.Duration
	Logger      logging.Logger
	Now         func() time.Time
}

// Orchestrator composes the security components into the externally
// visible operations. It keeps no state between calls.
type Orchestrator struct {
	repomanager repomanager.RepositoryManager
	credentials *CredentialStore
	sessions    *SessionManager
	recovery    *RecoveryKeyManager
	audit       *AuditLog
	limiter     ratelimit.Limiter
	grants      *auth.GrantIssuer
	policies    Policies
	sessionTTL  time.Duration
	log         logging.Logger
	now         func() time.Time
}

func NewOrchestrator(d OrchestratorDeps) *Orchestrator {
	log := d.Logger
	if log == nil {
		log = logging.Nop{}
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		repomanager: d.RepoManager,
		credentials: d.Credentials,
		sessions:    d.Sessions,
		recovery:    d.Recovery,
		audit:       d.Audit,
		limiter:     d.Limiter,
		grants:      d.Grants,
		policies:    d.Policies,
		sessionTTL:  d.SessionTTL,
		log:         log.With("module", "orchestrator"),
		now:         now,
	}
}

// CreateAccount provisions an account and returns its id.
func (o *Orchestrator) CreateAccount(ctx context.Context, pin []byte, meta models.ClientMeta) (string, error) {
	if err := o.credentials.ValidateShape(pin); err != nil {
		return "", err
	}
	account, err := o.credentials.Create(ctx, pin)
	if err != nil {
		return "", o.fail(ctx, "create account", err)
	}
	o.audit.Append(ctx, account.ID, models.EventAccountCreated, meta, nil)
	return account.ID, nil
}

// Verify authenticates pin against the account. The requester is
// throttled before any credential comparison. A wrong PIN and an unknown
// account both yield common.ErrorInvalidCredential.
func (o *Orchestrator) Verify(ctx context.Context, userID string, pin []byte, meta models.ClientMeta) (*LoginResult, error) {
	if err := o.credentials.ValidateShape(pin); err != nil {
		return nil, err
	}

	var (
		mode  Mode
		found bool
	)
	err := o.guarded(ctx, loginIdentifier(meta), o.policies.Login, func() error {
		var err error
		mode, found, err = o.credentials.Match(ctx, userID, pin)
		if err != nil {
			return err
		}
		if mode == ModeNone {
			return common.ErrorInvalidCredential
		}
		return nil
	})
	switch {
	case errors.Is(err, common.ErrorThrottled):
		o.appendIfValid(ctx, userID, models.EventLoginThrottled, meta, map[string]string{"policy": "login"})
		return nil, err
	case errors.Is(err, common.ErrorInvalidCredential):
		if found {
			o.audit.Append(ctx, userID, models.EventLoginFailure, meta, nil)
		}
		return nil, err
	case err != nil:
		return nil, o.fail(ctx, "verify", err)
	}

	isDecoy := mode == ModeDecoy
	token, s, err := o.sessions.Issue(ctx, userID, isDecoy, o.sessionTTL, meta)
	if err != nil {
		return nil, o.fail(ctx, "issue session", err)
	}

	if isDecoy {
		o.audit.Append(ctx, userID, models.EventDecoyLogin, meta, map[string]string{"session_id": s.ID})
	} else {
		o.audit.Append(ctx, userID, models.EventLoginSuccess, meta, map[string]string{"mode": "real", "session_id": s.ID})
	}

	return &LoginResult{Token: token, SessionID: s.ID, IsDecoy: isDecoy, ExpiresAt: s.ExpiresAt}, nil
}

// ChangePrimary rotates the primary PIN after re-checking the current one.
func (o *Orchestrator) ChangePrimary(ctx context.Context, c Caller, current, next []byte) error {
	s, err := o.requireReal(ctx, c, "change_pin")
	if err != nil {
		return err
	}
	if err := o.credentials.ValidateShape(next); err != nil {
		return err
	}
	if bytes.Equal(current, next) {
		return common.ErrorSameAsCurrent
	}

	if err := o.reauth(ctx, s, current); err != nil {
		o.auditFailure(ctx, s.UserID, models.EventPINChangeFailed, c.Meta, err)
		return o.fail(ctx, "change pin", err)
	}

	if err := o.credentials.SetPrimary(ctx, s.UserID, next); err != nil {
		return o.fail(ctx, "change pin", err)
	}
	o.audit.Append(ctx, s.UserID, models.EventPINChanged, c.Meta, nil)
	return nil
}

// SetDecoy stores a decoy PIN, which must differ from the primary.
func (o *Orchestrator) SetDecoy(ctx context.Context, c Caller, current, decoy []byte) error {
	s, err := o.requireReal(ctx, c, "set_decoy")
	if err != nil {
		return err
	}
	if err := o.credentials.ValidateShape(decoy); err != nil {
		return err
	}
	if bytes.Equal(current, decoy) {
		return common.ErrorSameAsCurrent
	}
	if err := o.reauth(ctx, s, current); err != nil {
		o.auditFailure(ctx, s.UserID, models.EventDecoySetFailed, c.Meta, err)
		return o.fail(ctx, "set decoy", err)
	}
	if err := o.credentials.SetDecoy(ctx, s.UserID, decoy); err != nil {
		return o.fail(ctx, "set decoy", err)
	}
	o.audit.Append(ctx, s.UserID, models.EventDecoySet, c.Meta, nil)
	return nil
}

func (o *Orchestrator) ClearDecoy(ctx context.Context, c Caller, current []byte) error {
	s, err := o.requireReal(ctx, c, "clear_decoy")
	if err != nil {
		return err
	}
	if err := o.reauth(ctx, s, current); err != nil {
		o.auditFailure(ctx, s.UserID, models.EventDecoyClearFailed, c.Meta, err)
		return o.fail(ctx, "clear decoy", err)
	}
	if err := o.credentials.ClearDecoy(ctx, s.UserID); err != nil {
		return o.fail(ctx, "clear decoy", err)
	}
	o.audit.Append(ctx, s.UserID, models.EventDecoyCleared, c.Meta, nil)
	return nil
}

// GenerateRecoveryKey mints a key that supersedes the previous one and
// returns its plaintext.
func (o *Orchestrator) GenerateRecoveryKey(ctx context.Context, c Caller, current []byte) (string, error) {
	s, err := o.requireReal(ctx, c, "generate_recovery_key")
	if err != nil {
		return "", err
	}

	var key string
	err = o.guarded(ctx, reauthIdentifier(s.UserID), o.policies.Reauth, func() error {
		var err error
		key, err = o.recovery.Generate(ctx, s.UserID, current)
		return err
	})
	if err != nil {
		o.auditFailure(ctx, s.UserID, models.EventRecoveryGenFailed, c.Meta, err)
		return "", o.fail(ctx, "generate recovery key", err)
	}
	o.audit.Append(ctx, s.UserID, models.EventRecoveryGenerated, c.Meta, nil)
	return key, nil
}

// GetRecoveryKey re-displays the active recovery key.
func (o *Orchestrator) GetRecoveryKey(ctx context.Context, c Caller) (string, error) {
	s, err := o.requireReal(ctx, c, "get_recovery_key")
	if err != nil {
		return "", err
	}
	key, err := o.recovery.Retrieve(ctx, s.UserID)
	if err != nil {
		return "", o.fail(ctx, "get recovery key", err)
	}
	o.audit.Append(ctx, s.UserID, models.EventRecoveryViewed, c.Meta, nil)
	return key, nil
}

// Recover spends a recovery key and returns a short-lived PIN reset grant.
func (o *Orchestrator) Recover(ctx context.Context, userID, key string, meta models.ClientMeta) (*RecoveryGrant, error) {
	var grant *RecoveryGrant
	err := o.guarded(ctx, recoveryIdentifier(meta), o.policies.Recovery, func() error {
		var err error
		grant, err = o.recovery.Consume(ctx, userID, key)
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorInvalidCredential
		}
		return err
	})
	if err != nil {
		if validID(userID) {
			o.auditFailure(ctx, userID, models.EventRecoveryFailed, meta, err)
		}
		return nil, o.fail(ctx, "recover", err)
	}
	o.audit.Append(ctx, userID, models.EventRecoveryConsumed, meta, nil)
	return grant, nil
}

// ResetPrimary sets a new primary PIN using a recovery grant. The decoy is
// cleared and every session of the account is ended. A grant stops working
// as soon as the primary PIN changes.
func (o *Orchestrator) ResetPrimary(ctx context.Context, grant string, pin []byte, meta models.ClientMeta) error {
	claims, err := o.grants.Parse(grant)
	if err != nil || !validID(claims.Subject) {
		return common.ErrorUnauthorized
	}
	if err := o.credentials.ValidateShape(pin); err != nil {
		return err
	}

	userID := claims.Subject
	var terminated int64
	err = o.repomanager.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		account, err := o.repomanager.Accounts(tx).GetForUpdate(ctx, userID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrorUnauthorized
			}
			return err
		}
		if !cryptox.EqualDigest(credentialTag(account), claims.CredentialTag) {
			return common.ErrorUnauthorized
		}
		if err := o.credentials.rotatePrimary(ctx, tx, account, pin, true); err != nil {
			return err
		}
		terminated, err = o.repomanager.Sessions(tx).TerminateAll(ctx, userID, o.now())
		return err
	})
	if err != nil {
		return o.fail(ctx, "reset pin", err)
	}

	o.audit.Append(ctx, userID, models.EventPINReset, meta, map[string]string{"sessions_terminated": strconv.FormatInt(terminated, 10)})
	return nil
}

// ListSessions returns the caller's sessions, most recent first. A decoy
// session sees only decoy sessions.
func (o *Orchestrator) ListSessions(ctx context.Context, c Caller) ([]SessionView, error) {
	s, err := o.authenticate(ctx, c)
	if err != nil {
		return nil, err
	}
	list, err := o.sessions.List(ctx, s.UserID)
	if err != nil {
		return nil, o.fail(ctx, "list sessions", err)
	}

	now := o.now()
	views := make([]SessionView, 0, len(list))
	for _, item := range list {
		if s.IsDecoy && !item.IsDecoy {
			continue
		}
		views = append(views, SessionView{Session: item, Current: item.ID == s.ID, Valid: item.ValidAt(now)})
	}
	return views, nil
}

// TerminateSession ends one of the caller's sessions. Sessions the caller
// may not see are reported as common.ErrorNotFound.
func (o *Orchestrator) TerminateSession(ctx context.Context, c Caller, targetID string) error {
	s, err := o.authenticate(ctx, c)
	if err != nil {
		return err
	}
	target, err := o.sessions.Get(ctx, targetID)
	if err != nil {
		return o.fail(ctx, "terminate session", err)
	}
	if target.UserID != s.UserID || (s.IsDecoy && !target.IsDecoy) {
		return common.ErrorNotFound
	}
	if _, err := o.sessions.Terminate(ctx, target.ID); err != nil {
		return o.fail(ctx, "terminate session", err)
	}
	o.audit.Append(ctx, s.UserID, models.EventSessionTerminated, c.Meta, map[string]string{"session_id": target.ID})
	return nil
}

// TerminateOthers ends every other active session and returns how many.
func (o *Orchestrator) TerminateOthers(ctx context.Context, c Caller) (int64, error) {
	s, err := o.authenticate(ctx, c)
	if err != nil {
		return 0, err
	}
	n, err := o.sessions.TerminateAllExcept(ctx, s.UserID, s.ID, s.IsDecoy)
	if err != nil {
		return 0, o.fail(ctx, "terminate others", err)
	}
	o.audit.Append(ctx, s.UserID, models.EventOthersTerminated, c.Meta, map[string]string{"count": strconv.FormatInt(n, 10)})
	return n, nil
}

// Logout ends the caller's own session.
func (o *Orchestrator) Logout(ctx context.Context, c Caller) error {
	s, err := o.authenticate(ctx, c)
	if err != nil {
		return err
	}
	if _, err := o.sessions.Terminate(ctx, s.ID); err != nil {
		return o.fail(ctx, "logout", err)
	}
	o.audit.Append(ctx, s.UserID, models.EventLogout, c.Meta, map[string]string{"session_id": s.ID})
	return nil
}

// ListSecurityEvents pages through the account's activity timeline. A
// decoy session always gets an empty page.
func (o *Orchestrator) ListSecurityEvents(ctx context.Context, c Caller, f models.SecurityEventFilter) ([]models.SecurityEvent, error) {
	s, err := o.authenticate(ctx, c)
	if err != nil {
		return nil, err
	}
	if s.IsDecoy {
		return []models.SecurityEvent{}, nil
	}
	events, err := o.audit.Query(ctx, s.UserID, f)
	if err != nil {
		return nil, o.fail(ctx, "list security events", err)
	}
	return events, nil
}

// GuardSharedLink throttles password checks of a shared resource. check is
// the owner's own comparison and runs only while the link is not
// throttled; ownerID receives the audit events of denied attempts.
func (o *Orchestrator) GuardSharedLink(ctx context.Context, ownerID, resourceToken string, meta models.ClientMeta,
	check func(ctx context.Context) (bool, error)) error {
	err := o.guarded(ctx, "link:"+resourceToken, o.policies.SharedLink, func() error {
		ok, err := check(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return common.ErrorInvalidCredential
		}
		return nil
	})
	if err != nil {
		if validID(ownerID) {
			o.auditFailure(ctx, ownerID, models.EventSharedLinkDenied, meta, err)
		}
		return o.fail(ctx, "shared link", err)
	}
	return nil
}

// authenticate resolves the caller's session and records activity.
func (o *Orchestrator) authenticate(ctx context.Context, c Caller) (*models.Session, error) {
	s, err := o.sessions.Validate(ctx, c.Token)
	if err != nil {
		return nil, o.fail(ctx, "validate session", err)
	}
	if err := o.sessions.Touch(ctx, s, c.Meta); err != nil {
		o.log.Warn(ctx, "session touch failed", "session_id", s.ID, "error", err)
	}
	return s, nil
}

// requireReal is authenticate for operations a decoy session must never
// reach. Decoy sessions get the same error as a missing session; the
// denial is recorded for the owner, whose timeline a decoy never sees.
func (o *Orchestrator) requireReal(ctx context.Context, c Caller, op string) (*models.Session, error) {
	s, err := o.authenticate(ctx, c)
	if err != nil {
		return nil, err
	}
	if s.IsDecoy {
		o.audit.Append(ctx, s.UserID, models.EventRealOnlyDenied, c.Meta, map[string]string{
			"operation": op, "reason": "decoy_session", "session_id": s.ID,
		})
		return nil, common.ErrorUnauthorized
	}
	return s, nil
}

// reauth proves the current primary PIN under the per-account policy.
func (o *Orchestrator) reauth(ctx context.Context, s *models.Session, current []byte) error {
	return o.guarded(ctx, reauthIdentifier(s.UserID), o.policies.Reauth, func() error {
		ok, err := o.credentials.VerifyPrimary(ctx, s.UserID, current)
		if err != nil {
			return err
		}
		if !ok {
			return common.ErrorInvalidCredential
		}
		return nil
	})
}

// guarded runs check under a rate-limit reservation. The reservation is
// recorded as failed unless check returns nil.
func (o *Orchestrator) guarded(ctx context.Context, identifier string, p ratelimit.Policy, check func() error) error {
	r, err := o.limiter.Reserve(ctx, identifier, p)
	if err != nil {
		return err
	}
	if !r.Allowed {
		return common.ErrorThrottled
	}
	if err := check(); err != nil {
		return err
	}
	if err := o.limiter.Succeed(ctx, r); err != nil {
		o.log.Warn(ctx, "attempt finalization failed", "identifier", identifier, "error", err)
	}
	return nil
}

// fail passes outcome errors through and hides everything else behind
// common.ErrorInternal, so a storage outage never reads as a wrong PIN.
func (o *Orchestrator) fail(ctx context.Context, op string, err error) error {
	for _, known := range []error{
		common.ErrorInvalidCredential,
		common.ErrorThrottled,
		common.ErrorInvalidShape,
		common.ErrorSameAsCurrent,
		common.ErrorUnauthorized,
		common.ErrorNotFound,
	} {
		if errors.Is(err, known) {
			return known
		}
	}
	o.log.Error(ctx, op+" failed", "error", err)
	return common.ErrorInternal
}

func (o *Orchestrator) appendIfValid(ctx context.Context, userID string, t models.EventType, meta models.ClientMeta, details map[string]string) {
	if validID(userID) {
		o.audit.Append(ctx, userID, t, meta, details)
	}
}

func loginIdentifier(meta models.ClientMeta) string {
	return "ip:" + requesterIP(meta)
}

func recoveryIdentifier(meta models.ClientMeta) string {
	return "recovery:ip:" + requesterIP(meta)
}

func reauthIdentifier(userID string) string {
	return "account:" + userID
}

func requesterIP(meta models.ClientMeta) string {
	if ip := strings.TrimSpace(meta.IPAddress); ip != "" {
		return ip
	}
	return "unknown"
}

// auditFailure records a rejected credential proof. Errors that are not an
// outcome of the proof itself, such as storage failures, are not events.
func (o *Orchestrator) auditFailure(ctx context.Context, userID string, t models.EventType, meta models.ClientMeta, err error) {
	if errors.Is(err, common.ErrorInvalidCredential) || errors.Is(err, common.ErrorThrottled) {
		o.audit.Append(ctx, userID, t, meta, map[string]string{"reason": reason(err)})
	}
}

func reason(err error) string {
	if errors.Is(err, common.ErrorThrottled) {
		return "throttled"
	}
	return "invalid_credential"
}
