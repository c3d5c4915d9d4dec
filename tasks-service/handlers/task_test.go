package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chepyr/organism/internal/bucket"
	"github.com/google/uuid"
)

func TestTasks_Create_Validation(t *testing.T) {
	_, mux, dbx := setupHTTP(t)
	auth := bearerForUser(t, insertUser(t, dbx, true).String())

	tests := []struct {
		name    string
		body    any
		noJSON  bool
		wantMsg string
	}{
		{"empty title", map[string]any{"title": "   "}, false, "Please, fill out the title"},
		{"title too long", map[string]any{"title": strings.Repeat("x", 201)}, false, "title too long (max 200 chars)"},
		{"window ends before it starts", map[string]any{"title": "t", "from": "2024-06-15T10:00:00Z", "to": "2024-06-15T09:00:00Z"}, false, "to must not be earlier than from"},
		{"bad timestamp", map[string]any{"title": "t", "to": "tomorrow"}, false, "from and to must be RFC3339 timestamps"},
		{"broken json", `{"title": }`, false, "Invalid JSON body"},
		{"wrong content type", `{"title": "t"}`, true, "Content-Type must be application/json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec *httptest.ResponseRecorder
			if tt.noJSON {
				req := newRequest(http.MethodPost, "/tasks", tt.body.(string), auth)
				req.Header.Set("Content-Type", "text/plain")
				rec = serve(mux, req)
			} else {
				rec = doJSON(t, mux, http.MethodPost, "/tasks", auth, tt.body)
			}
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("want 400, got %d body=%s", rec.Code, rec.Body.String())
			}
			if got := decode[map[string]string](t, rec)["error"]; got != tt.wantMsg {
				t.Fatalf("error = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestTasks_Create_Success(t *testing.T) {
	_, mux, dbx := setupHTTP(t)
	owner := insertUser(t, dbx, true)
	auth := bearerForUser(t, owner.String())

	rec := doJSON(t, mux, http.MethodPost, "/tasks", auth, map[string]any{
		"title":       "  Write report ",
		"description": "   ",
		"to":          "2024-06-15T18:00:00Z",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("want 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	task := decode[taskJSON](t, rec)
	if task.Title != "Write report" || task.OwnerID != owner || task.Completed {
		t.Fatalf("unexpected task %+v", task)
	}
	if task.Description != nil {
		t.Fatalf("blank description should be null, got %q", *task.Description)
	}
	if task.From != nil || task.To == nil || !task.To.Equal(time.Date(2024, 6, 15, 18, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected window from=%v to=%v", task.From, task.To)
	}
	if loc := rec.Header().Get("Location"); loc != "/tasks/"+task.ID.String() {
		t.Fatalf("Location = %q", loc)
	}
}

type bucketsJSON struct {
	Timezone string `json:"timezone"`
	Buckets  []struct {
		Name  bucket.Name `json:"name"`
		Title string      `json:"title"`
		Tasks []taskJSON  `json:"tasks"`
	} `json:"buckets"`
}

// seeds one task per interesting position relative to Saturday 2024-06-15 noon
func seedTimeline(t *testing.T, mux http.Handler, auth string) map[string]uuid.UUID {
	t.Helper()
	ids := map[string]uuid.UUID{}
	ids["inbox"] = createTask(t, mux, auth, map[string]any{"title": "inbox"})
	ids["today"] = createTask(t, mux, auth, map[string]any{"title": "today", "to": "2024-06-15T18:00:00Z"})
	ids["tomorrow"] = createTask(t, mux, auth, map[string]any{"title": "tomorrow", "from": "2024-06-16T09:00:00Z"})
	ids["overdue"] = createTask(t, mux, auth, map[string]any{"title": "overdue", "to": "2023-03-01T10:00:00Z"})
	ids["next month"] = createTask(t, mux, auth, map[string]any{"title": "next month", "to": "2024-07-20T10:00:00Z"})
	ids["done yesterday"] = createTask(t, mux, auth, map[string]any{"title": "done yesterday", "to": "2024-06-14T10:00:00Z"})
	if rec := doJSON(t, mux, http.MethodPost, "/tasks/"+ids["done yesterday"].String()+"/finish", auth, nil); rec.Code != http.StatusOK {
		t.Fatalf("finish: want 200, got %d", rec.Code)
	}
	return ids
}

func TestTasks_ListBuckets(t *testing.T) {
	_, mux, dbx := setupHTTP(t)
	auth := bearerForUser(t, insertUser(t, dbx, true).String())
	seedTimeline(t, mux, auth)

	rec := doJSON(t, mux, http.MethodGet, "/tasks", auth, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	resp := decode[bucketsJSON](t, rec)
	if resp.Timezone != "UTC" {
		t.Fatalf("timezone = %q", resp.Timezone)
	}

	want := []struct {
		name  bucket.Name
		title string
	}{
		{bucket.ALongTimeAgo, "overdue"},
		{bucket.Yesterday, "done yesterday"},
		{bucket.Today, "today"},
		{bucket.Tomorrow, "tomorrow"},
		{bucket.NextMonth, "next month"},
		{bucket.Inbox, "inbox"},
	}
	if len(resp.Buckets) != len(want) {
		t.Fatalf("got %d buckets: %+v", len(resp.Buckets), resp.Buckets)
	}
	for i, w := range want {
		b := resp.Buckets[i]
		if b.Name != w.name || len(b.Tasks) != 1 || b.Tasks[0].Title != w.title {
			t.Errorf("bucket %d = %s %+v, want %s with %q", i, b.Name, b.Tasks, w.name, w.title)
		}
		if b.Title != w.name.Title() {
			t.Errorf("bucket %d title = %q", i, b.Title)
		}
	}
}

func TestTasks_EmptyListsAreArrays(t *testing.T) {
	_, mux, dbx := setupHTTP(t)
	auth := bearerForUser(t, insertUser(t, dbx, true).String())

	for path, want := range map[string]string{
		"/tasks":           `"buckets":[]`,
		"/tasks/inbox":     `[]`,
		"/tasks/completed": `[]`,
		"/tasks/agenda":    `{"today":[],"tomorrow":[]}`,
	} {
		rec := doJSON(t, mux, http.MethodGet, path, auth, nil)
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), want) {
			t.Errorf("%s: got %d %s, want body containing %s", path, rec.Code, rec.Body.String(), want)
		}
	}
}

func titles(tasks []taskJSON) []string {
	out := []string{}
	for _, task := range tasks {
		out = append(out, task.Title)
	}
	return out
}

func TestTasks_InboxAgendaCompleted(t *testing.T) {
	_, mux, dbx := setupHTTP(t)
	auth := bearerForUser(t, insertUser(t, dbx, true).String())
	seedTimeline(t, mux, auth)

	inbox := decode[[]taskJSON](t, doJSON(t, mux, http.MethodGet, "/tasks/inbox", auth, nil))
	if got := titles(inbox); len(got) != 1 || got[0] != "inbox" {
		t.Errorf("inbox = %v", got)
	}

	agenda := decode[struct {
		Today    []taskJSON `json:"today"`
		Tomorrow []taskJSON `json:"tomorrow"`
	}](t, doJSON(t, mux, http.MethodGet, "/tasks/agenda", auth, nil))
	if got := titles(agenda.Today); len(got) != 1 || got[0] != "today" {
		t.Errorf("agenda today = %v", got)
	}
	if got := titles(agenda.Tomorrow); len(got) != 1 || got[0] != "tomorrow" {
		t.Errorf("agenda tomorrow = %v", got)
	}

	completed := decode[[]taskJSON](t, doJSON(t, mux, http.MethodGet, "/tasks/completed", auth, nil))
	if got := titles(completed); len(got) != 1 || got[0] != "done yesterday" {
		t.Errorf("completed = %v", got)
	}

	if rec := doJSON(t, mux, http.MethodPost, "/tasks/inbox", auth, map[string]any{}); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /tasks/inbox: want 405, got %d", rec.Code)
	}
}

type taskViewJSON struct {
	Task        taskJSON    `json:"task"`
	Bucket      bucket.Name `json:"bucket"`
	BucketTitle string      `json:"bucket_title"`
	Back        bucket.Back `json:"back"`
	BackTo      string      `json:"back_to"`
}

func TestTask_ByID_BackLink(t *testing.T) {
	_, mux, dbx := setupHTTP(t)
	auth := bearerForUser(t, insertUser(t, dbx, true).String())
	ids := seedTimeline(t, mux, auth)

	tests := []struct {
		key    string
		bucket bucket.Name
		back   bucket.Back
		backTo string
	}{
		{"inbox", bucket.Inbox, bucket.BackInbox, "/tasks/inbox"},
		{"today", bucket.Today, bucket.BackTasks, "/tasks"},
		{"overdue", bucket.ALongTimeAgo, bucket.BackTasks, "/tasks"},
		{"done yesterday", bucket.Yesterday, bucket.BackCompleted, "/tasks/completed"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			rec := doJSON(t, mux, http.MethodGet, "/tasks/"+ids[tt.key].String(), auth, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("want 200, got %d body=%s", rec.Code, rec.Body.String())
			}
			view := decode[taskViewJSON](t, rec)
			if view.Task.ID != ids[tt.key] || view.Bucket != tt.bucket || view.Back != tt.back || view.BackTo != tt.backTo {
				t.Fatalf("unexpected view %+v", view)
			}
		})
	}
}

func TestTask_ByID_ForbiddenForNonOwner(t *testing.T) {
	_, mux, dbx := setupHTTP(t)
	alice := bearerForUser(t, insertUser(t, dbx, true).String())
	bob := bearerForUser(t, insertUser(t, dbx, true).String())
	id := createTask(t, mux, alice, map[string]any{"title": "private"})
	path := "/tasks/" + id.String()

	checks := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, path, nil},
		{http.MethodPatch, path, map[string]any{"title": "mine now"}},
		{http.MethodDelete, path, nil},
		{http.MethodPost, path + "/finish", nil},
	}
	for _, c := range checks {
		if rec := doJSON(t, mux, c.method, c.path, bob, c.body); rec.Code != http.StatusNotFound {
			t.Errorf("%s %s as bob: want 404, got %d", c.method, c.path, rec.Code)
		}
	}

	view := decode[taskViewJSON](t, doJSON(t, mux, http.MethodGet, path, alice, nil))
	if view.Task.Title != "private" || view.Task.Completed {
		t.Fatalf("alice's task was modified: %+v", view.Task)
	}
}

func TestTask_Update(t *testing.T) {
	_, mux, dbx := setupHTTP(t)
	auth := bearerForUser(t, insertUser(t, dbx, true).String())
	id := createTask(t, mux, auth, map[string]any{
		"title": "plan", "description": "notes", "from": "2024-06-16T09:00:00Z", "to": "2024-06-16T10:00:00Z",
	})
	path := "/tasks/" + id.String()

	// partial update keeps untouched fields
	rec := doJSON(t, mux, http.MethodPatch, path, auth, map[string]any{"title": "better plan"})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch title: want 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	view := decode[taskViewJSON](t, rec)
	if view.Task.Title != "better plan" || view.Task.Description == nil || *view.Task.Description != "notes" || view.Bucket != bucket.Tomorrow {
		t.Fatalf("unexpected after title patch: %+v", view)
	}

	// null clears the window, "" clears the description
	rec = doJSON(t, mux, http.MethodPut, path, auth, `{"from": null, "to": "", "description": ""}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("clear window: want 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	view = decode[taskViewJSON](t, rec)
	if view.Task.From != nil || view.Task.To != nil || view.Task.Description != nil || view.Bucket != bucket.Inbox {
		t.Fatalf("unexpected after clearing: %+v", view)
	}

	// invalid edits are rejected and nothing is stored
	rec = doJSON(t, mux, http.MethodPatch, path, auth, map[string]any{"title": ""})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty title: want 400, got %d", rec.Code)
	}
	rec = doJSON(t, mux, http.MethodPatch, path, auth, map[string]any{"from": "2024-06-20T10:00:00Z", "to": "2024-06-19T10:00:00Z"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("inverted window: want 400, got %d", rec.Code)
	}
	view = decode[taskViewJSON](t, doJSON(t, mux, http.MethodGet, path, auth, nil))
	if view.Task.Title != "better plan" || view.Task.From != nil {
		t.Fatalf("rejected edit leaked into storage: %+v", view.Task)
	}
}

func TestTask_FinishRestoreDelete(t *testing.T) {
	_, mux, dbx := setupHTTP(t)
	auth := bearerForUser(t, insertUser(t, dbx, true).String())
	id := createTask(t, mux, auth, map[string]any{"title": "chore", "to": "2024-06-10T10:00:00Z"})
	path := "/tasks/" + id.String()

	view := decode[taskViewJSON](t, doJSON(t, mux, http.MethodPost, path+"/finish", auth, nil))
	if !view.Task.Completed || view.Back != bucket.BackCompleted {
		t.Fatalf("after finish: %+v", view)
	}
	view = decode[taskViewJSON](t, doJSON(t, mux, http.MethodPost, path+"/restore", auth, nil))
	if view.Task.Completed || view.Back != bucket.BackTasks {
		t.Fatalf("after restore: %+v", view)
	}

	if rec := doJSON(t, mux, http.MethodGet, path+"/finish", auth, nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET finish: want 405, got %d", rec.Code)
	}
	if rec := doJSON(t, mux, http.MethodPost, path+"/archive", auth, nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown action: want 404, got %d", rec.Code)
	}

	if rec := doJSON(t, mux, http.MethodDelete, path, auth, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: want 204, got %d", rec.Code)
	}
	if rec := doJSON(t, mux, http.MethodGet, path, auth, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("after delete: want 404, got %d", rec.Code)
	}
	if rec := doJSON(t, mux, http.MethodDelete, path, auth, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: want 404, got %d", rec.Code)
	}
}

func TestTask_ByID_InvalidID(t *testing.T) {
	_, mux, dbx := setupHTTP(t)
	auth := bearerForUser(t, insertUser(t, dbx, true).String())

	rec := doJSON(t, mux, http.MethodGet, "/tasks/not-a-uuid", auth, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rec.Code)
	}
	rec = doJSON(t, mux, http.MethodPut, "/tasks", auth, map[string]any{})
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("PUT /tasks: want 405, got %d", rec.Code)
	}
}

func TestTask_ByID_Unauthorized(t *testing.T) {
	_, mux, _ := setupHTTP(t)
	for _, path := range []string{"/tasks", "/tasks/inbox", "/tasks/agenda", "/tasks/completed", "/tasks/" + uuid.NewString(), "/ws"} {
		if rec := doJSON(t, mux, http.MethodGet, path, "", nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s without token: want 401, got %d", path, rec.Code)
		}
	}
}
