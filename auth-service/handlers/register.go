package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/chepyr/organism/auth-service/db"
	"github.com/chepyr/organism/internal/mailer"
	"github.com/chepyr/organism/shared"
	"github.com/chepyr/organism/shared/models"
	"github.com/google/uuid"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 32
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func isValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// validatePassword returns the message to show, or "" when the password is acceptable.
func validatePassword(password string) string {
	switch {
	case len(password) < minPasswordLength:
		return "Password must be at least 8 characters long"
	case len(password) > maxPasswordLength:
		return "Password must be at most 32 characters long"
	}
	return ""
}

func validateUserEmailAndPassword(email, password string, w http.ResponseWriter) bool {
	if !isValidEmail(email) {
		log.Printf("Invalid email format")
		shared.SendError(w, "Invalid email", http.StatusBadRequest)
		return false
	}
	if msg := validatePassword(password); msg != "" {
		log.Printf("Invalid password for %s", email)
		shared.SendError(w, msg, http.StatusBadRequest)
		return false
	}
	return true
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

/*
POST /register

Creates an unverified account and mails a verification link. Registering an
address that exists but was never verified replaces its password and link.
*/
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		log.Printf("Invalid method for register: %s", r.Method)
		shared.SendError(w, "Use POST method", http.StatusMethodNotAllowed)
		return
	}
	if h.limited(w, r, ActionRegister) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		log.Printf("Error decoding JSON: %v", err)
		shared.SendError(w, "Bad JSON", http.StatusBadRequest)
		return
	}
	input.Email = normalizeEmail(input.Email)
	if !validateUserEmailAndPassword(input.Email, input.Password, w) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	existing, err := h.UserRepo.GetByEmail(ctx, input.Email)
	if err != nil && !errors.Is(err, db.ErrUserNotFound) {
		log.Printf("Error looking up %s: %v", input.Email, err)
		shared.SendError(w, "Cannot save user", http.StatusInternalServerError)
		return
	}
	if existing != nil && existing.Verified {
		shared.SendError(w, "A user already exists with this email", http.StatusBadRequest)
		return
	}

	hash, err := h.hashPassword(input.Password)
	if err != nil {
		log.Printf("Error hashing password: %v", err)
		shared.SendError(w, "Cannot hash password", http.StatusInternalServerError)
		return
	}

	now := h.now()
	verificationToken := uuid.NewString()

	user := existing
	if user == nil {
		user = &models.User{
			ID:        uuid.New(),
			Email:     input.Email,
			CreatedAt: now,
		}
	}
	user.PasswordHash = hash
	user.VerificationToken = &verificationToken
	user.VerificationSentAt = &now
	user.UpdatedAt = now

	if existing == nil {
		err = h.UserRepo.Create(ctx, user)
	} else {
		err = h.UserRepo.Update(ctx, user)
	}
	if err != nil {
		log.Printf("Error saving user %s: %v", user.Email, err)
		shared.SendError(w, "Cannot save user", http.StatusInternalServerError)
		return
	}

	msg := mailer.VerificationMessage(h.BaseURL, user.Email, verificationToken)
	if err := h.mail().Send(ctx, msg); err != nil {
		log.Printf("Error sending verification email to %s: %v", user.Email, err)
		shared.SendError(w, "Failed to send a verification email", http.StatusInternalServerError)
		return
	}

	log.Printf("User registered: %s", user.Email)
	shared.SendJSON(w, http.StatusCreated, map[string]any{
		"email": user.Email,
	})
}

// GET /verify?email=...&verificationToken=...
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		shared.SendError(w, "Use GET method", http.StatusMethodNotAllowed)
		return
	}
	email := normalizeEmail(r.URL.Query().Get("email"))
	given := r.URL.Query().Get("verificationToken")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user, err := h.UserRepo.GetByEmail(ctx, email)
	if err != nil {
		log.Printf("Verification for unknown email %q: %v", email, err)
		shared.SendError(w, "Could not verify email", http.StatusBadRequest)
		return
	}
	if user.Verified {
		shared.SendJSON(w, http.StatusOK, map[string]any{"email": user.Email, "verified": true})
		return
	}

	now := h.now()
	if !models.TokenValid(user.VerificationToken, user.VerificationSentAt, given, h.TokenTTL, now) {
		log.Printf("Invalid verification token for %s", email)
		shared.SendError(w, "Could not verify email", http.StatusBadRequest)
		return
	}

	user.Verified = true
	user.VerificationToken = nil
	user.VerificationSentAt = nil
	user.UpdatedAt = now
	if err := h.UserRepo.Update(ctx, user); err != nil {
		log.Printf("Error verifying %s: %v", email, err)
		shared.SendError(w, "Could not verify email", http.StatusInternalServerError)
		return
	}

	log.Printf("Email verified: %s", email)
	shared.SendJSON(w, http.StatusOK, map[string]any{"email": user.Email, "verified": true})
}
