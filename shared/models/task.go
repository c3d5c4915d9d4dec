package models

import (
	"errors"
	"strings"
	"time"

	"github.com/chepyr/organism/internal/bucket"
	"github.com/google/uuid"
)

var (
	ErrEmptyTitle    = errors.New("title is required")
	ErrTitleTooLong  = errors.New("title too long (max 200 chars)")
	ErrDescTooLong   = errors.New("description too long (max 1000 chars)")
	ErrInvalidWindow = errors.New("to must not be earlier than from")
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 1000
)

type Task struct {
	ID          uuid.UUID  `json:"id"`
	OwnerID     uuid.UUID  `json:"owner_id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Completed   bool       `json:"completed"`
	From        *time.Time `json:"from"`
	To          *time.Time `json:"to"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// BucketView exposes the scheduling window to the bucketing engine.
func (t *Task) BucketView() bucket.View {
	return bucket.View{Completed: t.Completed, From: t.From, To: t.To}
}

// Scheduled is false for inbox tasks.
func (t *Task) Scheduled() bool {
	return t.From != nil || t.To != nil
}

// SetDescription stores blank descriptions as absent.
func (t *Task) SetDescription(desc string) {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		t.Description = nil
		return
	}
	t.Description = &desc
}

// Validate checks the write-time invariants of a task.
func (t *Task) Validate() error {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return ErrEmptyTitle
	}
	if len(t.Title) > MaxTitleLength {
		return ErrTitleTooLong
	}
	if t.Description != nil && len(*t.Description) > MaxDescriptionLength {
		return ErrDescTooLong
	}
	if t.From != nil && t.To != nil && t.To.Before(*t.From) {
		return ErrInvalidWindow
	}
	return nil
}
