package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/chepyr/organism/shared/models"
	"github.com/google/uuid"
)

var ErrUserNotFound = errors.New("user not found")

// defines methods for user db operations
type UserRepositoryInterface interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	PurgeExpiredTokens(ctx context.Context, before time.Time) (int64, error)
}

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, password_hash, verified, verification_token, verification_sent_at,
	restoration_token, restoration_sent_at, created_at, updated_at`

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (` + userColumns + `)
	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.Verified,
		user.VerificationToken, user.VerificationSentAt,
		user.RestorationToken, user.RestorationSentAt,
		user.CreatedAt, user.UpdatedAt)
	return err
}

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Verified,
		&user.VerificationToken, &user.VerificationSentAt,
		&user.RestorationToken, &user.RestorationSentAt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// Update writes every mutable column of user.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	query := `UPDATE users SET password_hash = $1, verified = $2,
	 verification_token = $3, verification_sent_at = $4,
	 restoration_token = $5, restoration_sent_at = $6, updated_at = $7
	 WHERE id = $8`

	res, err := r.db.ExecContext(ctx, query,
		user.PasswordHash, user.Verified,
		user.VerificationToken, user.VerificationSentAt,
		user.RestorationToken, user.RestorationSentAt,
		user.UpdatedAt, user.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// PurgeExpiredTokens clears verification and restoration tokens sent before the cutoff.
func (r *UserRepository) PurgeExpiredTokens(ctx context.Context, before time.Time) (int64, error) {
	// sent_at columns hold UTC; sqlite compares them as text
	before = before.UTC()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var total int64
	for _, query := range []string{
		`UPDATE users SET verification_token = NULL, verification_sent_at = NULL
		 WHERE verification_token IS NOT NULL AND verification_sent_at < $1`,
		`UPDATE users SET restoration_token = NULL, restoration_sent_at = NULL
		 WHERE restoration_token IS NOT NULL AND restoration_sent_at < $1`,
	} {
		res, err := tx.ExecContext(ctx, query, before)
		if err != nil {
			return 0, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, tx.Commit()
}
