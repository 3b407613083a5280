// Package todos defines the task record and the store contract every
// persistence backend implements.
package todos

import (
	"context"
	"time"

	"github.com/jrsteele09/go-todo-server/internal/errors"
)

// ErrNotFound is returned for missing rows and for rows owned by another user.
var ErrNotFound = errors.ErrNotFound

// Task is one row of the todos table
type Task struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Task      string    `json:"task"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTask is the insert payload. The store assigns ID and CreatedAt.
type NewTask struct {
	UserID    string `json:"user_id"`
	Task      string `json:"task"`
	Completed bool   `json:"completed"`
}

// Patch is a partial update; nil fields are left as they are.
type Patch struct {
	Task      *string `json:"task,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
}

func (p Patch) Empty() bool {
	return p.Task == nil && p.Completed == nil
}

// Apply returns t with the patch fields set
func (p Patch) Apply(t Task) Task {
	if p.Task != nil {
		t.Task = *p.Task
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	return t
}

// Store persists tasks. Every call is scoped to the acting user; List returns
// rows ordered by CreatedAt descending.
type Store interface {
	List(ctx context.Context, userID string) ([]Task, error)
	Insert(ctx context.Context, task NewTask) (Task, error)
	Update(ctx context.Context, userID string, id int64, patch Patch) error
	Delete(ctx context.Context, userID string, id int64) error
}
