package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/chepyr/organism/internal/token"
	"github.com/chepyr/organism/shared"
	"github.com/chepyr/organism/tasks-service/db"
	"github.com/google/uuid"
)

/*
AuthMiddleware accepts the session JWT as a Bearer header or the __session cookie,
checks that the account still exists and is verified, and puts the user id into
the request context.
*/
func (h *Handler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := token.FromRequest(r)
		if raw == "" {
			shared.SendError(w, "Missing Authorization header", http.StatusUnauthorized)
			return
		}
		sub, err := token.Parse(h.JWTSecret, raw, h.Now)
		if errors.Is(err, token.ErrInvalidClaims) {
			shared.SendError(w, "Invalid token claims", http.StatusUnauthorized)
			return
		}
		if err != nil {
			shared.SendError(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		userID, err := uuid.Parse(sub)
		if err != nil {
			shared.SendError(w, "Invalid token claims", http.StatusUnauthorized)
			return
		}

		if h.Users != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			verified, err := h.Users.IsVerified(ctx, userID)
			cancel()
			if errors.Is(err, db.ErrUserNotFound) || (err == nil && !verified) {
				shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if err != nil {
				log.Printf("Error checking user %s: %v", userID, err)
				shared.SendError(w, "Internal server error", http.StatusInternalServerError)
				return
			}
		}

		next(w, r.WithContext(withUserID(r.Context(), userID)))
	}
}
