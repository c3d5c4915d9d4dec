package handlers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chepyr/organism/auth-service/db"
	"github.com/chepyr/organism/internal/mailer"
	"github.com/chepyr/organism/shared/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-32-bytes-long-1234567890"

var testNow = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

type MockUserRepository struct {
	users     map[string]*models.User
	createErr error
	getErr    error
	updateErr error
	mutex     sync.Mutex
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[string]*models.User)}
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.createErr != nil {
		return m.createErr
	}
	if _, exists := m.users[user.Email]; exists {
		return errors.New("email exists")
	}
	m.users[user.Email] = user
	return nil
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	user, exists := m.users[email]
	if !exists {
		return nil, db.ErrUserNotFound
	}
	return user, nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, db.ErrUserNotFound
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.updateErr != nil {
		return m.updateErr
	}
	if _, exists := m.users[user.Email]; !exists {
		return db.ErrUserNotFound
	}
	m.users[user.Email] = user
	return nil
}

func (m *MockUserRepository) PurgeExpiredTokens(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func (m *MockUserRepository) get(email string) *models.User {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.users[email]
}

// setupMockUser stores a verified user with the given password.
func setupMockUser(email, password string) *MockUserRepository {
	repo := NewMockUserRepository()
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	repo.users[email] = &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		Verified:     true,
		CreatedAt:    testNow,
		UpdatedAt:    testNow,
	}
	return repo
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg mailer.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeMailer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newTestHandler(repo db.UserRepositoryInterface, m mailer.Sender) *Handler {
	return &Handler{
		UserRepo:   repo,
		Mailer:     m,
		JWTSecret:  testSecret,
		BaseURL:    "http://localhost:8080",
		TokenTTL:   24 * time.Hour,
		BcryptCost: bcrypt.MinCost,
		Now:        func() time.Time { return testNow },
	}
}
