package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/chepyr/organism/auth-service/db"
	"github.com/chepyr/organism/internal/mailer"
	"github.com/chepyr/organism/internal/token"
	"github.com/chepyr/organism/shared"
	"github.com/chepyr/organism/shared/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type Handler struct {
	UserRepo db.UserRepositoryInterface
	// RateLimiters holds a separate per-IP budget for each limited action.
	RateLimiters map[string]*shared.RateLimiter
	Mailer       mailer.Sender
	JWTSecret    string
	// BaseURL prefixes links in outgoing mail.
	BaseURL string
	// TokenTTL bounds verification and restoration links; zero disables expiry.
	TokenTTL     time.Duration
	SecureCookie bool
	BcryptCost   int
	Now          func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

func (h *Handler) mail() mailer.Sender {
	if h.Mailer == nil {
		return mailer.LogSender{}
	}
	return h.Mailer
}

func (h *Handler) hashPassword(password string) (string, error) {
	cost := h.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Rate limited actions, keys of Handler.RateLimiters.
const (
	ActionLogin       = "login"
	ActionRegister    = "register"
	ActionRestoration = "restoration"
)

// limited answers 429 when the caller's IP is over its budget for the action.
func (h *Handler) limited(w http.ResponseWriter, r *http.Request, what string) bool {
	rl := h.RateLimiters[what]
	if rl == nil {
		return false
	}
	clientIP := shared.ClientIP(r)
	if rl.Allow(clientIP) {
		return false
	}
	log.Printf("Rate limit exceeded for IP: %s", clientIP)
	shared.SendError(w, "Too many "+what+" attempts. Please try again later.", http.StatusTooManyRequests)
	return true
}

var errUnauthorized = errors.New("unauthorized")

// currentUser resolves the session token on the request to a verified user.
func (h *Handler) currentUser(ctx context.Context, r *http.Request) (*models.User, error) {
	raw := token.FromRequest(r)
	if raw == "" {
		return nil, errUnauthorized
	}
	sub, err := token.Parse(h.JWTSecret, raw, h.Now)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return nil, token.ErrInvalidClaims
	}
	user, err := h.UserRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !user.Verified {
		return nil, errUnauthorized
	}
	return user, nil
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     token.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     token.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
