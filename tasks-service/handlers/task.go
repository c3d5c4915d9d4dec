package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/chepyr/organism/shared"
	"github.com/chepyr/organism/shared/models"
	"github.com/chepyr/organism/tasks-service/db"
	"github.com/google/uuid"
)

/*
handles routes:
- GET /tasks - every task of the user, grouped into time buckets
- POST /tasks - create a new task
*/
func (h *Handler) HandleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listBuckets(w, r)
	case http.MethodPost:
		h.createTask(w, r)
	default:
		shared.SendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func sendValidationError(w http.ResponseWriter, msg string) {
	shared.SendError(w, msg, http.StatusBadRequest)
}

func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := UserIDFromContext(r.Context())
	if !ok {
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var input createInput
	if !decodeJSON(w, r, &input) {
		return
	}

	now := h.now().UTC()
	task := &models.Task{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Title:     input.Title,
		From:      input.From.value,
		To:        input.To.value,
		CreatedAt: now,
		UpdatedAt: now,
	}
	task.SetDescription(input.Description)
	if err := task.Validate(); err != nil {
		sendValidationError(w, validationMessage(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := h.TaskRepo.Create(ctx, task); err != nil {
		log.Printf("Failed to create task: %v", err)
		shared.SendError(w, "Failed to create task", http.StatusInternalServerError)
		return
	}

	h.WSHub.Broadcast(ownerID, EventTaskCreated, task.ID, task)
	w.Header().Set("Location", "/tasks/"+task.ID.String())
	shared.SendJSON(w, http.StatusCreated, task)
}

/*
routes:
- GET /tasks/{id}
- PUT/PATCH /tasks/{id}
- DELETE /tasks/{id}
- POST /tasks/{id}/finish
- POST /tasks/{id}/restore
*/
func (h *Handler) HandleTaskByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/tasks/")
	idStr, action, _ := strings.Cut(rest, "/")
	if idStr == "" {
		shared.SendError(w, "task_id is required", http.StatusBadRequest)
		return
	}
	taskID, err := uuid.Parse(idStr)
	if err != nil {
		shared.SendError(w, "task_id must be a valid uuid", http.StatusBadRequest)
		return
	}

	switch action {
	case "":
	case "finish", "restore":
		if r.Method != http.MethodPost {
			shared.SendError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.setCompleted(w, r, taskID, action == "finish")
		return
	default:
		shared.SendError(w, "Not found", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getTaskByID(w, r, taskID)
	case http.MethodPut, http.MethodPatch:
		h.updateTaskByID(w, r, taskID)
	case http.MethodDelete:
		h.deleteTaskByID(w, r, taskID)
	default:
		shared.SendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// sendRepoError turns a repository failure into a response.
func sendRepoError(w http.ResponseWriter, err error, action string) {
	if errors.Is(err, db.ErrTaskNotFound) {
		shared.SendError(w, "Task not found", http.StatusNotFound)
		return
	}
	log.Printf("Failed to %s task: %v", action, err)
	shared.SendError(w, "Failed to "+action+" task", http.StatusInternalServerError)
}

func (h *Handler) getTaskByID(w http.ResponseWriter, r *http.Request, taskID uuid.UUID) {
	ownerID, ok := UserIDFromContext(r.Context())
	if !ok {
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	task, err := h.TaskRepo.GetByID(ctx, ownerID, taskID)
	if err != nil {
		sendRepoError(w, err, "get")
		return
	}
	shared.SendJSON(w, http.StatusOK, h.taskView(task))
}

func (h *Handler) updateTaskByID(w http.ResponseWriter, r *http.Request, taskID uuid.UUID) {
	ownerID, ok := UserIDFromContext(r.Context())
	if !ok {
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var input updateInput
	if !decodeJSON(w, r, &input) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	task, err := h.TaskRepo.GetByID(ctx, ownerID, taskID)
	if err != nil {
		sendRepoError(w, err, "update")
		return
	}
	input.apply(task)
	if err := task.Validate(); err != nil {
		sendValidationError(w, validationMessage(err))
		return
	}
	task.UpdatedAt = h.now().UTC()

	if err := h.TaskRepo.Update(ctx, task); err != nil {
		sendRepoError(w, err, "update")
		return
	}
	h.WSHub.Broadcast(ownerID, EventTaskUpdated, task.ID, task)
	shared.SendJSON(w, http.StatusOK, h.taskView(task))
}

func (h *Handler) setCompleted(w http.ResponseWriter, r *http.Request, taskID uuid.UUID, completed bool) {
	ownerID, ok := UserIDFromContext(r.Context())
	if !ok {
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	task, err := h.TaskRepo.SetCompleted(ctx, ownerID, taskID, completed, h.now().UTC())
	if err != nil {
		sendRepoError(w, err, "update")
		return
	}
	h.WSHub.Broadcast(ownerID, EventTaskUpdated, task.ID, task)
	shared.SendJSON(w, http.StatusOK, h.taskView(task))
}

func (h *Handler) deleteTaskByID(w http.ResponseWriter, r *http.Request, taskID uuid.UUID) {
	ownerID, ok := UserIDFromContext(r.Context())
	if !ok {
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.TaskRepo.Delete(ctx, ownerID, taskID); err != nil {
		sendRepoError(w, err, "delete")
		return
	}
	h.WSHub.Broadcast(ownerID, EventTaskDeleted, taskID, nil)
	w.WriteHeader(http.StatusNoContent)
}
