package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chepyr/organism/internal/bucket"
	dbconn "github.com/chepyr/organism/internal/db"
	"github.com/chepyr/organism/internal/token"
	tdb "github.com/chepyr/organism/tasks-service/db"
	"github.com/google/uuid"
)

var (
	testSecret = strings.Repeat("a", 32)
	// Saturday noon
	testNow = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)
)

func setupHTTP(t *testing.T) (*Handler, *http.ServeMux, *sql.DB) {
	t.Helper()

	dbx, err := dbconn.Connect("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	dbx.SetMaxOpenConns(1)
	if err := dbconn.Migrate(context.Background(), dbx, "sqlite3"); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() { dbx.Close() })

	h := &Handler{
		TaskRepo:  tdb.NewTaskRepository(dbx),
		Users:     tdb.NewUserRepository(dbx),
		WSHub:     NewWSHub(),
		JWTSecret: testSecret,
		Calendar:  bucket.Calendar{Location: time.UTC, WeekStart: time.Sunday},
		Now:       func() time.Time { return testNow },
	}
	return h, h.Routes(), dbx
}

func insertUser(t *testing.T, dbx *sql.DB, verified bool) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := dbx.Exec(`INSERT INTO users (id, email, password_hash, verified, created_at, updated_at)
	                    VALUES ($1, $2, $3, $4, $5, $6)`,
		id, id.String()+"@example.com", "hash", verified, testNow, testNow)
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	return id
}

func bearerForUser(t *testing.T, userID string) string {
	t.Helper()
	signed, err := token.Issue(testSecret, userID, time.Hour, testNow)
	if err != nil {
		t.Fatalf("sign jwt: %v", err)
	}
	return "Bearer " + signed
}

func doJSON(t *testing.T, mux http.Handler, method, path, auth string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			if err := json.NewEncoder(&buf).Encode(b); err != nil {
				t.Fatalf("encode body: %v", err)
			}
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

type taskJSON struct {
	ID          uuid.UUID  `json:"id"`
	OwnerID     uuid.UUID  `json:"owner_id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Completed   bool       `json:"completed"`
	From        *time.Time `json:"from"`
	To          *time.Time `json:"to"`
}

// createTask posts a task and returns its id.
func createTask(t *testing.T, mux http.Handler, auth string, body map[string]any) uuid.UUID {
	t.Helper()
	rec := doJSON(t, mux, http.MethodPost, "/tasks", auth, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create task: want 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	return decode[taskJSON](t, rec).ID
}

func newRequest(method, path, body, auth string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	return req
}

func serve(mux http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}
