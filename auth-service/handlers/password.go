package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/chepyr/organism/auth-service/db"
	"github.com/chepyr/organism/internal/mailer"
	"github.com/chepyr/organism/shared"
	"github.com/chepyr/organism/shared/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// POST /forgot mails a password restoration link.
func (h *Handler) Forgot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		shared.SendError(w, "Use POST method", http.StatusMethodNotAllowed)
		return
	}
	if h.limited(w, r, ActionRestoration) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var input struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		shared.SendError(w, "Bad JSON", http.StatusBadRequest)
		return
	}
	input.Email = normalizeEmail(input.Email)
	if input.Email == "" {
		shared.SendError(w, "Fill out the email", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	user, err := h.UserRepo.GetByEmail(ctx, input.Email)
	if errors.Is(err, db.ErrUserNotFound) {
		shared.SendError(w, "Found no users with such email", http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Printf("Error retrieving user by email %s: %v", input.Email, err)
		shared.SendError(w, "Failed to send a restoration email", http.StatusInternalServerError)
		return
	}
	if !user.Verified {
		shared.SendError(w, "This email hasn't yet been verified", http.StatusBadRequest)
		return
	}

	now := h.now()
	restorationToken := uuid.NewString()
	user.RestorationToken = &restorationToken
	user.RestorationSentAt = &now
	user.UpdatedAt = now
	if err := h.UserRepo.Update(ctx, user); err != nil {
		log.Printf("Error storing restoration token for %s: %v", user.Email, err)
		shared.SendError(w, "Failed to send a restoration email", http.StatusInternalServerError)
		return
	}

	msg := mailer.RestorationMessage(h.BaseURL, user.Email, restorationToken)
	if err := h.mail().Send(ctx, msg); err != nil {
		log.Printf("Error sending restoration email to %s: %v", user.Email, err)
		shared.SendError(w, "Failed to send a restoration email", http.StatusInternalServerError)
		return
	}

	log.Printf("Restoration email sent: %s", user.Email)
	shared.SendJSON(w, http.StatusOK, map[string]any{"email": user.Email})
}

// POST /restore sets a new password using a mailed restoration token.
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		shared.SendError(w, "Use POST method", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var input struct {
		Email            string `json:"email"`
		RestorationToken string `json:"restoration_token"`
		NewPassword      string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		shared.SendError(w, "Bad JSON", http.StatusBadRequest)
		return
	}
	input.Email = normalizeEmail(input.Email)
	if msg := validatePassword(input.NewPassword); msg != "" {
		shared.SendError(w, msg, http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	now := h.now()
	user, err := h.UserRepo.GetByEmail(ctx, input.Email)
	if err != nil || !models.TokenValid(user.RestorationToken, user.RestorationSentAt, input.RestorationToken, h.TokenTTL, now) {
		log.Printf("Invalid restoration attempt for %q", input.Email)
		shared.SendError(w, "Could not restore password", http.StatusBadRequest)
		return
	}

	hash, err := h.hashPassword(input.NewPassword)
	if err != nil {
		log.Printf("Error hashing password: %v", err)
		shared.SendError(w, "Cannot hash password", http.StatusInternalServerError)
		return
	}
	user.PasswordHash = hash
	user.RestorationToken = nil
	user.RestorationSentAt = nil
	user.UpdatedAt = now
	if err := h.UserRepo.Update(ctx, user); err != nil {
		log.Printf("Error saving new password for %s: %v", user.Email, err)
		shared.SendError(w, "Could not restore password", http.StatusInternalServerError)
		return
	}

	log.Printf("Password restored: %s", user.Email)
	shared.SendJSON(w, http.StatusOK, map[string]any{"email": user.Email})
}

// POST /account/password changes the password of the signed-in user.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		shared.SendError(w, "Use POST method", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user, err := h.currentUser(ctx, r)
	if err != nil {
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var input struct {
		Password    string `json:"password"`
		NewPassword string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		shared.SendError(w, "Bad JSON", http.StatusBadRequest)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		shared.SendError(w, "Current password is incorrect", http.StatusBadRequest)
		return
	}
	if msg := validatePassword(input.NewPassword); msg != "" {
		shared.SendError(w, msg, http.StatusBadRequest)
		return
	}

	hash, err := h.hashPassword(input.NewPassword)
	if err != nil {
		log.Printf("Error hashing password: %v", err)
		shared.SendError(w, "Cannot hash password", http.StatusInternalServerError)
		return
	}
	user.PasswordHash = hash
	user.UpdatedAt = h.now()
	if err := h.UserRepo.Update(ctx, user); err != nil {
		log.Printf("Error changing password for %s: %v", user.Email, err)
		shared.SendError(w, "Cannot save user", http.StatusInternalServerError)
		return
	}

	log.Printf("Password changed: %s", user.Email)
	shared.SendJSON(w, http.StatusOK, map[string]any{"email": user.Email})
}
