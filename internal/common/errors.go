// Package common defines shared constants and sentinel errors used across
// client and server layers of PinVault. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Authentication outcomes. ErrorInvalidCredential never says which part was wrong.
	ErrorInvalidCredential = errors.New("invalid credential")
	ErrorThrottled         = errors.New("too many attempts")

	// Validation errors, detected before any storage access.
	ErrorInvalidShape  = errors.New("invalid pin format")
	ErrorSameAsCurrent = errors.New("new pin must differ from the current one")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")
)
