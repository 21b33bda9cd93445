// Package models defines server-side data models persisted in the database.
package models

import "time"

// Account holds the credential material of one vault owner. Hashes are
// argon2id digests in PHC form; DecoyHash is empty when no decoy is set.
type Account struct {
	ID          string
	PrimaryHash string
	DecoyHash   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (a *Account) HasDecoy() bool {
	return a.DecoyHash != ""
}
