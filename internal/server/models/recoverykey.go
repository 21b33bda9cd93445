package models

import "time"

// RecoveryKey is the single active recovery credential of an account.
// KeyDigest verifies a presented key; SealedKey/Nonce hold an AES-GCM
// encrypted copy so the owner can display it again.
type RecoveryKey struct {
	UserID     string
	KeyDigest  string
	SealedKey  []byte
	Nonce      []byte
	CreatedAt  time.Time
	ConsumedAt *time.Time
}
