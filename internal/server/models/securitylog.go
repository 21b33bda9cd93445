package models

import "time"

type EventType string

const (
	EventAccountCreated    EventType = "account_created"
	EventLoginSuccess      EventType = "login_success"
	EventLoginFailure      EventType = "login_failure"
	EventLoginThrottled    EventType = "login_throttled"
	EventDecoyLogin        EventType = "decoy_login"
	EventPINChanged        EventType = "pin_changed"
	EventPINChangeFailed   EventType = "pin_change_failed"
	EventDecoySet          EventType = "decoy_set"
	EventDecoyCleared      EventType = "decoy_cleared"
	EventDecoySetFailed    EventType = "decoy_set_failed"
	EventDecoyClearFailed  EventType = "decoy_clear_failed"
	EventRecoveryGenerated EventType = "recovery_key_generated"
	EventRecoveryViewed    EventType = "recovery_key_viewed"
	EventRecoveryConsumed  EventType = "recovery_key_consumed"
	EventRecoveryFailed    EventType = "recovery_failed"
	EventRecoveryGenFailed EventType = "recovery_key_generate_failed"
	EventPINReset          EventType = "pin_reset"
	EventSessionTerminated EventType = "session_terminated"
	EventOthersTerminated  EventType = "sessions_terminated_others"
	EventLogout            EventType = "logout"
	EventSharedLinkDenied  EventType = "shared_link_denied"
	EventRealOnlyDenied    EventType = "real_only_denied"
)

const (
	CategoryAuth       = "auth"
	CategoryCredential = "credential"
	CategoryRecovery   = "recovery"
	CategorySession    = "session"
)

// Category groups event types for the activity timeline filter.
func (e EventType) Category() string {
	switch e {
	case EventLoginSuccess, EventLoginFailure, EventLoginThrottled, EventDecoyLogin, EventSharedLinkDenied,
		EventRealOnlyDenied:
		return CategoryAuth
	case EventAccountCreated, EventPINChanged, EventPINChangeFailed, EventDecoySet, EventDecoyCleared,
		EventDecoySetFailed, EventDecoyClearFailed:
		return CategoryCredential
	case EventRecoveryGenerated, EventRecoveryViewed, EventRecoveryConsumed, EventRecoveryFailed, EventPINReset,
		EventRecoveryGenFailed:
		return CategoryRecovery
	default:
		return CategorySession
	}
}

// SecurityEvent is one append-only audit record.
type SecurityEvent struct {
	ID        string
	UserID    string
	EventType EventType
	Category  string
	Details   map[string]string
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}

// SecurityEventFilter narrows an audit query. Zero values mean "no bound".
// Before and BeforeID form an exclusive (CreatedAt, ID) cursor: pass the
// last event of the previous page. Without BeforeID only the time is
// compared.
type SecurityEventFilter struct {
	Categories []string
	Since      time.Time
	Until      time.Time
	Before     time.Time
	BeforeID   string
	Limit      int
}
