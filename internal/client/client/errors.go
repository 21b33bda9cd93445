package client

import "errors"

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredential is a rejected PIN or recovery key; the session,
	// if any, is still good.
	ErrInvalidCredential = errors.New("invalid credential")
	ErrThrottled         = errors.New("too many attempts, try again later")
	ErrInvalidInput      = errors.New("invalid input")
	ErrSamePIN           = errors.New("new PIN must differ from the current ones")
	ErrNotFound          = errors.New("not found")
	ErrNotLoggedIn       = errors.New("not logged in")
)
