package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/chepyr/organism/internal/bucket"
	"github.com/chepyr/organism/shared"
	"github.com/chepyr/organism/shared/models"
	"github.com/google/uuid"
)

type bucketJSON struct {
	Name  bucket.Name    `json:"name"`
	Title string         `json:"title"`
	Tasks []*models.Task `json:"tasks"`
}

type bucketsResponse struct {
	Now      time.Time    `json:"now"`
	Timezone string       `json:"timezone"`
	Buckets  []bucketJSON `json:"buckets"`
}

type agendaResponse struct {
	Today    []*models.Task `json:"today"`
	Tomorrow []*models.Task `json:"tomorrow"`
}

type taskResponse struct {
	Task        *models.Task `json:"task"`
	Bucket      bucket.Name  `json:"bucket"`
	BucketTitle string       `json:"bucket_title"`
	Back        bucket.Back  `json:"back"`
	BackTo      string       `json:"back_to"`
}

func nonNil(tasks []*models.Task) []*models.Task {
	if tasks == nil {
		return []*models.Task{}
	}
	return tasks
}

func (h *Handler) taskView(task *models.Task) taskResponse {
	now := h.now()
	name := bucket.Locate(task.BucketView(), now, h.Calendar)
	back := bucket.BackBucket(task.BucketView(), now, h.Calendar)
	return taskResponse{
		Task:        task,
		Bucket:      name,
		BucketTitle: name.Title(),
		Back:        back,
		BackTo:      back.Path(),
	}
}

// ownerTasks loads every task of the authenticated user or writes the error.
func (h *Handler) ownerTasks(w http.ResponseWriter, r *http.Request) (uuid.UUID, []*models.Task, bool) {
	ownerID, ok := UserIDFromContext(r.Context())
	if !ok {
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
		return uuid.Nil, nil, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	tasks, err := h.TaskRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		log.Printf("Failed to list tasks for %s: %v", ownerID, err)
		shared.SendError(w, "Failed to list tasks", http.StatusInternalServerError)
		return uuid.Nil, nil, false
	}
	return ownerID, tasks, true
}

// GET /tasks: non-empty buckets in display order.
func (h *Handler) listBuckets(w http.ResponseWriter, r *http.Request) {
	_, tasks, ok := h.ownerTasks(w, r)
	if !ok {
		return
	}

	loc := h.Calendar.Location
	if loc == nil {
		loc = time.UTC
	}
	now := h.now()
	set := bucket.Classify(tasks, now, h.Calendar)
	resp := bucketsResponse{
		Now:      now.In(loc),
		Timezone: loc.String(),
		Buckets:  []bucketJSON{},
	}
	for _, name := range set.NonEmpty() {
		resp.Buckets = append(resp.Buckets, bucketJSON{Name: name, Title: name.Title(), Tasks: set.Get(name)})
	}
	shared.SendJSON(w, http.StatusOK, resp)
}

// GET /tasks/inbox
func (h *Handler) HandleInbox(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		shared.SendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ownerID, ok := UserIDFromContext(r.Context())
	if !ok {
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	tasks, err := h.TaskRepo.ListInbox(ctx, ownerID)
	if err != nil {
		log.Printf("Failed to list inbox for %s: %v", ownerID, err)
		shared.SendError(w, "Failed to list tasks", http.StatusInternalServerError)
		return
	}
	shared.SendJSON(w, http.StatusOK, nonNil(tasks))
}

// GET /tasks/agenda
func (h *Handler) HandleAgenda(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		shared.SendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	_, tasks, ok := h.ownerTasks(w, r)
	if !ok {
		return
	}
	today, tomorrow := bucket.Agenda(tasks, h.now(), h.Calendar)
	shared.SendJSON(w, http.StatusOK, agendaResponse{Today: nonNil(today), Tomorrow: nonNil(tomorrow)})
}

// GET /tasks/completed
func (h *Handler) HandleCompleted(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		shared.SendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	_, tasks, ok := h.ownerTasks(w, r)
	if !ok {
		return
	}
	shared.SendJSON(w, http.StatusOK, nonNil(bucket.History(tasks, h.now(), h.Calendar)))
}
