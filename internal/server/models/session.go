package models

import "time"

// ClientMeta is what the server learns about the caller of a request.
type ClientMeta struct {
	IPAddress  string
	UserAgent  string
	DeviceType string
	Browser    string
	OS         string
	Location   string
}

// Session is one issued bearer token. Only the digest of the token is kept.
type Session struct {
	ID           string
	TokenHash    string
	UserID       string
	IsDecoy      bool
	CreatedAt    time.Time
	LastActivity time.Time
	ExpiresAt    time.Time
	LogoutAt     *time.Time
	IsActive     bool
	ClientMeta
}

// ValidAt reports whether the session may authorize a request at now.
func (s *Session) ValidAt(now time.Time) bool {
	return s.IsActive && now.Before(s.ExpiresAt)
}
