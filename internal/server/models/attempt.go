package models

import "time"

type LoginAttempt struct {
	ID          string
	Identifier  string
	Success     bool
	AttemptedAt time.Time
}
