// Package metadata persists small key/value facts the CLI needs between
// runs, such as the account id and the current session token.
package metadata

import (
	"context"
)

const (
	KeyUserID       = "user_id"
	KeySessionToken = "session_token"
)

type Repository interface {
	// Get returns ok=false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}
