package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

var ErrUserNotFound = errors.New("user not found")

// UserLookup is the read-only view of accounts the tasks service needs.
type UserLookup interface {
	IsVerified(ctx context.Context, id uuid.UUID) (bool, error)
	IDByEmail(ctx context.Context, email string) (uuid.UUID, error)
}

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) IsVerified(ctx context.Context, id uuid.UUID) (bool, error) {
	var verified bool
	err := r.db.QueryRowContext(ctx, `SELECT verified FROM users WHERE id = $1`, id).Scan(&verified)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrUserNotFound
	}
	return verified, err
}

func (r *UserRepository) IDByEmail(ctx context.Context, email string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.QueryRowContext(ctx, `SELECT id FROM users WHERE email = $1`, email).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, ErrUserNotFound
	}
	return id, err
}
