package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID                 uuid.UUID
	Email              string
	PasswordHash       string
	Verified           bool
	VerificationToken  *string
	VerificationSentAt *time.Time
	RestorationToken   *string
	RestorationSentAt  *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TokenValid reports whether a stored one-time token matches and has not outlived ttl.
func TokenValid(stored *string, sentAt *time.Time, given string, ttl time.Duration, now time.Time) bool {
	if stored == nil || given == "" || *stored != given {
		return false
	}
	if ttl > 0 && sentAt != nil && now.Sub(*sentAt) > ttl {
		return false
	}
	return true
}
