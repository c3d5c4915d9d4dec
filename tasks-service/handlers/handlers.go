package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/chepyr/organism/internal/bucket"
	"github.com/chepyr/organism/shared"
	"github.com/chepyr/organism/tasks-service/db"
	"github.com/google/uuid"
)

type Handler struct {
	TaskRepo    db.TaskRepositoryInterface
	Users       db.UserLookup
	RateLimiter *shared.RateLimiter
	WSHub       *WSHub
	JWTSecret   string
	// Calendar fixes the day boundaries the list views are computed in.
	Calendar       bucket.Calendar
	AllowedOrigins []string
	Now            func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

type ctxKey int

const userIDKey ctxKey = iota

func withUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFromContext returns the owner set by AuthMiddleware.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// Routes wires every endpoint behind AuthMiddleware.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/tasks", h.AuthMiddleware(h.HandleTasks))
	mux.HandleFunc("/tasks/inbox", h.AuthMiddleware(h.HandleInbox))
	mux.HandleFunc("/tasks/agenda", h.AuthMiddleware(h.HandleAgenda))
	mux.HandleFunc("/tasks/completed", h.AuthMiddleware(h.HandleCompleted))
	mux.HandleFunc("/tasks/", h.AuthMiddleware(h.HandleTaskByID))
	mux.HandleFunc("/ws", h.AuthMiddleware(h.HandleWebSocket))
	return mux
}
