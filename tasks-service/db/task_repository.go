package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/chepyr/organism/shared/models"
	"github.com/google/uuid"
)

// ErrTaskNotFound covers both missing tasks and tasks owned by someone else.
var ErrTaskNotFound = errors.New("task not found")

// defines methods for task db operations; every call is scoped to one owner
type TaskRepositoryInterface interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Task, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Task, error)
	ListInbox(ctx context.Context, ownerID uuid.UUID) ([]*models.Task, error)
	Update(ctx context.Context, task *models.Task) error
	SetCompleted(ctx context.Context, ownerID, id uuid.UUID, completed bool, now time.Time) (*models.Task, error)
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
}

type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `id, owner_id, title, description, completed, from_at, to_at, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*models.Task, error) {
	task := &models.Task{}
	err := row.Scan(
		&task.ID, &task.OwnerID, &task.Title, &task.Description, &task.Completed,
		&task.From, &task.To, &task.CreatedAt, &task.UpdatedAt,
	)
	return task, err
}

func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	query := `INSERT INTO tasks (` + taskColumns + `)
	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		task.ID, task.OwnerID, task.Title, task.Description, task.Completed,
		task.From, task.To, task.CreatedAt, task.UpdatedAt)
	return err
}

func (r *TaskRepository) GetByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 AND owner_id = $2`
	task, err := scanTask(r.db.QueryRowContext(ctx, query, id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (r *TaskRepository) list(ctx context.Context, query string, args ...any) ([]*models.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []*models.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// ListByOwner returns open tasks first, each group oldest first.
func (r *TaskRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE owner_id = $1
	 ORDER BY completed ASC, created_at ASC, id ASC`
	return r.list(ctx, query, ownerID)
}

// ListInbox returns unscheduled tasks, completed ones last.
func (r *TaskRepository) ListInbox(ctx context.Context, ownerID uuid.UUID) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks
	 WHERE owner_id = $1 AND from_at IS NULL AND to_at IS NULL
	 ORDER BY completed ASC, created_at ASC, id ASC`
	return r.list(ctx, query, ownerID)
}

func (r *TaskRepository) exists(ctx context.Context, ownerID, id uuid.UUID) error {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM tasks WHERE id = $1 AND owner_id = $2)`
	if err := r.db.QueryRowContext(ctx, query, id, ownerID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrTaskNotFound
	}
	return nil
}

// Update writes title, description, window and completion of an existing task.
func (r *TaskRepository) Update(ctx context.Context, task *models.Task) error {
	if err := r.exists(ctx, task.OwnerID, task.ID); err != nil {
		return err
	}
	query := `UPDATE tasks SET title = $1, description = $2, completed = $3, from_at = $4, to_at = $5, updated_at = $6
	 WHERE id = $7 AND owner_id = $8`
	_, err := r.db.ExecContext(ctx, query,
		task.Title, task.Description, task.Completed, task.From, task.To, task.UpdatedAt,
		task.ID, task.OwnerID)
	return err
}

// SetCompleted flips the completion flag and returns the stored task.
func (r *TaskRepository) SetCompleted(ctx context.Context, ownerID, id uuid.UUID, completed bool, now time.Time) (*models.Task, error) {
	if err := r.exists(ctx, ownerID, id); err != nil {
		return nil, err
	}
	query := `UPDATE tasks SET completed = $1, updated_at = $2 WHERE id = $3 AND owner_id = $4`
	if _, err := r.db.ExecContext(ctx, query, completed, now, id, ownerID); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, ownerID, id)
}

func (r *TaskRepository) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	if err := r.exists(ctx, ownerID, id); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1 AND owner_id = $2`, id, ownerID)
	return err
}
