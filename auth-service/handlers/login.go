package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/chepyr/organism/internal/token"
	"github.com/chepyr/organism/shared"
	"golang.org/x/crypto/bcrypt"
)

// POST /login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		log.Printf("Invalid method for login: %s", r.Method)
		shared.SendError(w, "Use POST method for login", http.StatusMethodNotAllowed)
		return
	}
	if h.limited(w, r, ActionLogin) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Remember bool   `json:"remember"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		log.Printf("Error decoding JSON: %v", err)
		shared.SendError(w, "Bad JSON", http.StatusBadRequest)
		return
	}
	input.Email = normalizeEmail(input.Email)
	if input.Email == "" || input.Password == "" {
		shared.SendError(w, "Email and password are required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user, err := h.UserRepo.GetByEmail(ctx, input.Email)
	if err != nil {
		log.Printf("Error retrieving user by email %s: %v", input.Email, err)
		shared.SendError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}
	if !user.Verified {
		log.Printf("Login attempt for unverified email: %s", input.Email)
		shared.SendError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		log.Printf("Invalid password for email: %s", input.Email)
		shared.SendError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	ttl := token.SessionTTL
	if input.Remember {
		ttl = token.RememberTTL
	}
	tokenString, err := token.Issue(h.JWTSecret, user.ID.String(), ttl, h.now())
	if err != nil {
		log.Printf("Error generating token: %v", err)
		shared.SendError(w, "Cannot create token", http.StatusInternalServerError)
		return
	}

	h.setSessionCookie(w, tokenString, ttl)
	shared.SendJSON(w, http.StatusOK, map[string]any{
		"user_email": user.Email,
		"user_id":    user.ID,
		"token":      tokenString,
	})
	log.Printf("User logged in: %s", user.Email)
}

// POST /logout drops the session cookie. Bearer tokens simply expire.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		shared.SendError(w, "Use POST method", http.StatusMethodNotAllowed)
		return
	}
	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// GET /session describes the signed-in user.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		shared.SendError(w, "Use GET method", http.StatusMethodNotAllowed)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user, err := h.currentUser(ctx, r)
	if err != nil {
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	shared.SendJSON(w, http.StatusOK, map[string]any{
		"user_id":  user.ID,
		"email":    user.Email,
		"verified": user.Verified,
	})
}
