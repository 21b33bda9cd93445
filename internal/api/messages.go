package api

import (
	"time"

	"github.com/dmitrijs2005/pinvault/internal/common"
)

// SessionTokenKey is the metadata key carrying the bearer session token.
const SessionTokenKey = common.SessionTokenHeaderName

// Status messages that let a client tell a rejected PIN or recovery key
// apart from a rejected session. Both travel as Unauthenticated.
const (
	StatusInvalidCredential = "invalid credential"
	StatusUnauthenticated   = "unauthenticated"
)

type Empty struct{}

type PingResponse struct {
	Status string `json:"status"`
}

type CreateAccountRequest struct {
	PIN string `json:"pin"`
}

type CreateAccountResponse struct {
	UserID string `json:"user_id"`
}

type VerifyRequest struct {
	UserID string `json:"user_id"`
	PIN    string `json:"pin"`
}

// VerifyResponse carries every field for real and decoy logins alike.
type VerifyResponse struct {
	Token     string    `json:"token"`
	SessionID string    `json:"session_id"`
	IsDecoy   bool      `json:"is_decoy"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ChangePINRequest struct {
	CurrentPIN string `json:"current_pin"`
	NewPIN     string `json:"new_pin"`
}

type SetDecoyRequest struct {
	CurrentPIN string `json:"current_pin"`
	DecoyPIN   string `json:"decoy_pin"`
}

type ClearDecoyRequest struct {
	CurrentPIN string `json:"current_pin"`
}

type GenerateRecoveryKeyRequest struct {
	CurrentPIN string `json:"current_pin"`
}

type RecoveryKeyResponse struct {
	Key string `json:"key"`
}

type RecoverRequest struct {
	UserID      string `json:"user_id"`
	RecoveryKey string `json:"recovery_key"`
}

type RecoverResponse struct {
	Grant     string    `json:"grant"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ResetPINRequest struct {
	Grant  string `json:"grant"`
	NewPIN string `json:"new_pin"`
}

type Session struct {
	ID           string     `json:"id"`
	IsDecoy      bool       `json:"is_decoy"`
	Current      bool       `json:"current"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"created_at"`
	LastActivity time.Time  `json:"last_activity"`
	ExpiresAt    time.Time  `json:"expires_at"`
	LogoutAt     *time.Time `json:"logout_at,omitempty"`
	IPAddress    string     `json:"ip_address,omitempty"`
	UserAgent    string     `json:"user_agent,omitempty"`
	DeviceType   string     `json:"device_type,omitempty"`
	Browser      string     `json:"browser,omitempty"`
	OS           string     `json:"os,omitempty"`
	Location     string     `json:"location,omitempty"`
}

type ListSessionsResponse struct {
	Sessions []Session `json:"sessions"`
}

type TerminateSessionRequest struct {
	SessionID string `json:"session_id"`
}

type TerminateOthersResponse struct {
	Count int64 `json:"count"`
}

type ListSecurityEventsRequest struct {
	Categories []string  `json:"categories,omitempty"`
	Since      time.Time `json:"since,omitzero"`
	Until      time.Time `json:"until,omitzero"`
	Before     time.Time `json:"before,omitzero"`
	BeforeID   string    `json:"before_id,omitempty"`
	Limit      int       `json:"limit,omitempty"`
}

type SecurityEvent struct {
	ID        string            `json:"id"`
	EventType string            `json:"event_type"`
	Category  string            `json:"category"`
	Details   map[string]string `json:"details,omitempty"`
	IPAddress string            `json:"ip_address,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

type ListSecurityEventsResponse struct {
	Events []SecurityEvent `json:"events"`
}
