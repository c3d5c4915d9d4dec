package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	dbconn "github.com/chepyr/organism/internal/db"
	"github.com/chepyr/organism/shared/models"
	"github.com/google/uuid"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := dbconn.Connect("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// every pooled connection to :memory: would be a separate database
	db.SetMaxOpenConns(1)
	if err := dbconn.Migrate(context.Background(), db, "sqlite3"); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

var base = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

func newUser(email string) *models.User {
	token := uuid.NewString()
	sent := base
	return &models.User{
		ID:                 uuid.New(),
		Email:              email,
		PasswordHash:       "hash",
		VerificationToken:  &token,
		VerificationSentAt: &sent,
		CreatedAt:          base,
		UpdatedAt:          base,
	}
}

func TestUserRepository_Create(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	user := newUser("test_1@example.com")

	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	// verify user was created
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM users WHERE email = $1", user.Email).Scan(&count)
	if err != nil {
		t.Fatalf("Failed to query user: %v", err)
	}
	if count != 1 {
		t.Fatalf("Expected 1 user, got %d", count)
	}

	// duplicate email
	if err := repo.Create(context.Background(), newUser("test_1@example.com")); err == nil {
		t.Fatalf("Expected unique violation for duplicate email")
	}
}

func TestUserRepository_GetByEmail_GetByID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	user := newUser("test_2@example.com")
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.GetByEmail(ctx, user.Email)
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if got.ID != user.ID || got.PasswordHash != "hash" || got.Verified {
		t.Fatalf("unexpected user %+v", got)
	}
	if got.VerificationToken == nil || *got.VerificationToken != *user.VerificationToken {
		t.Fatalf("verification token not persisted")
	}
	if got.VerificationSentAt == nil || !got.VerificationSentAt.Equal(base) {
		t.Fatalf("verification_sent_at = %v, want %v", got.VerificationSentAt, base)
	}
	if got.RestorationToken != nil {
		t.Fatalf("restoration token should be NULL")
	}

	byID, err := repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if byID.Email != user.Email {
		t.Fatalf("GetByID email = %q", byID.Email)
	}

	if _, err := repo.GetByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("want ErrUserNotFound, got %v", err)
	}
	if _, err := repo.GetByID(ctx, uuid.New()); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("want ErrUserNotFound, got %v", err)
	}
}

func TestUserRepository_Update(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	user := newUser("test_3@example.com")
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("create: %v", err)
	}

	user.Verified = true
	user.VerificationToken = nil
	user.VerificationSentAt = nil
	user.PasswordHash = "new-hash"
	user.UpdatedAt = base.Add(time.Hour)
	if err := repo.Update(ctx, user); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Verified || got.PasswordHash != "new-hash" || got.VerificationToken != nil {
		t.Fatalf("update not applied: %+v", got)
	}

	missing := newUser("ghost@example.com")
	if err := repo.Update(ctx, missing); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("want ErrUserNotFound, got %v", err)
	}
}

func TestUserRepository_PurgeExpiredTokens(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	old := newUser("old@example.com")
	oldSent := base.Add(-48 * time.Hour)
	old.VerificationSentAt = &oldSent
	restore := "restore-token"
	old.RestorationToken = &restore
	old.RestorationSentAt = &oldSent

	fresh := newUser("fresh@example.com")

	for _, u := range []*models.User{old, fresh} {
		if err := repo.Create(ctx, u); err != nil {
			t.Fatalf("create %s: %v", u.Email, err)
		}
	}

	n, err := repo.PurgeExpiredTokens(ctx, base.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 2 {
		t.Fatalf("want 2 cleared tokens, got %d", n)
	}

	got, _ := repo.GetByID(ctx, old.ID)
	if got.VerificationToken != nil || got.RestorationToken != nil {
		t.Fatalf("old tokens should be cleared: %+v", got)
	}
	kept, _ := repo.GetByID(ctx, fresh.ID)
	if kept.VerificationToken == nil {
		t.Fatalf("fresh token should survive")
	}
}

// the cutoff is an instant: its zone must not change which tokens are purged
func TestUserRepository_PurgeExpiredTokens_CutoffZone(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	fresh := newUser("fresh@example.com")
	stale := newUser("stale@example.com")
	staleSent := base.Add(-48 * time.Hour)
	stale.VerificationSentAt = &staleSent

	for _, u := range []*models.User{fresh, stale} {
		if err := repo.Create(ctx, u); err != nil {
			t.Fatalf("create %s: %v", u.Email, err)
		}
	}

	east := time.FixedZone("UTC+3", 3*60*60)
	n, err := repo.PurgeExpiredTokens(ctx, base.Add(-time.Hour).In(east))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Fatalf("want 1 cleared token, got %d", n)
	}

	kept, _ := repo.GetByID(ctx, fresh.ID)
	if kept.VerificationToken == nil {
		t.Fatalf("token sent after the cutoff should survive")
	}
	cleared, _ := repo.GetByID(ctx, stale.ID)
	if cleared.VerificationToken != nil {
		t.Fatalf("token sent before the cutoff should be cleared")
	}

	west := time.FixedZone("UTC-5", -5*60*60)
	n, err = repo.PurgeExpiredTokens(ctx, base.Add(time.Hour).In(west))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Fatalf("want the fresh token cleared once the cutoff passes it, got %d", n)
	}
}
