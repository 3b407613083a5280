// Package tasklist holds one browser's in-memory task list and applies
// mutations to it only after the store has accepted them.
package tasklist

import (
	"context"
	"math"
	"strings"
	"sync"

	"github.com/jrsteele09/go-todo-server/identity"
	"github.com/jrsteele09/go-todo-server/internal/errors"
	"github.com/jrsteele09/go-todo-server/internal/utils"
	"github.com/jrsteele09/go-todo-server/todos"
	"github.com/rs/zerolog"
)

var (
	ErrEmptyTask    = errors.ErrEmptyTask
	ErrTaskNotFound = errors.ErrTaskNotFound
	ErrNoUser       = errors.ErrSessionNotFound
)

// Stats is the progress summary shown above the list
type Stats struct {
	Completed int
	Total     int
	Percent   int
}

// Controller is the single source of truth for what the task page renders.
// The lock is never held across a store call.
type Controller struct {
	store  todos.Store
	logger zerolog.Logger

	mu     sync.Mutex
	userID string
	loaded bool // a load for userID has succeeded
	tasks  []todos.Task
}

func NewController(store todos.Store, logger zerolog.Logger) *Controller {
	return &Controller{
		store:  store,
		logger: logger,
		tasks:  make([]todos.Task, 0),
	}
}

// Sync loads the list when the user differs from the one last loaded, or
// when no load for this user has succeeded yet, and returns the load error.
// A nil user discards the list.
func (c *Controller) Sync(ctx context.Context, user *identity.User) error {
	c.mu.Lock()
	if user == nil {
		c.userID = ""
		c.loaded = false
		c.tasks = make([]todos.Task, 0)
		c.mu.Unlock()
		return nil
	}
	if user.ID == c.userID && c.loaded {
		c.mu.Unlock()
		return nil
	}
	if user.ID != c.userID {
		c.userID = user.ID
		c.loaded = false
		c.tasks = make([]todos.Task, 0)
	}
	c.mu.Unlock()

	return c.Load(ctx, user.ID)
}

// Get returns the in-memory task with the given id
func (c *Controller) Get(id int64) (todos.Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexOf(id); i >= 0 {
		return c.tasks[i], true
	}
	return todos.Task{}, false
}

// Load replaces the list with the user's tasks, newest first. On failure the
// previous list is kept. A result for a user the controller has since
// switched away from is dropped.
func (c *Controller) Load(ctx context.Context, userID string) error {
	list, err := c.store.List(ctx, userID)
	if err != nil {
		c.logger.Err(err).Str("user", userID).Msg("Failed to load tasks")
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.userID != "" && c.userID != userID {
		c.logger.Debug().Str("user", userID).Msg("Dropping tasks loaded for a previous user")
		return nil
	}
	c.userID = userID
	c.loaded = true
	c.tasks = list
	return nil
}

func (c *Controller) Tasks() []todos.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]todos.Task(nil), c.tasks...)
}

func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{Total: len(c.tasks)}
	for _, t := range c.tasks {
		if t.Completed {
			s.Completed++
		}
	}
	if s.Total > 0 {
		s.Percent = int(math.Round(float64(s.Completed) * 100 / float64(s.Total)))
	}
	return s
}

// Create inserts the text as typed and prepends the stored row. Text that is
// empty once trimmed is rejected without a store call.
func (c *Controller) Create(ctx context.Context, text string) (todos.Task, error) {
	if strings.TrimSpace(text) == "" {
		return todos.Task{}, ErrEmptyTask
	}
	userID, err := c.currentUser()
	if err != nil {
		return todos.Task{}, err
	}

	task, err := c.store.Insert(ctx, todos.NewTask{UserID: userID, Task: text, Completed: false})
	if err != nil {
		c.logger.Err(err).Str("user", userID).Msg("Failed to create task")
		return todos.Task{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.userID == userID {
		c.tasks = append([]todos.Task{task}, c.tasks...)
	}
	return task, nil
}

// Toggle flips completed on the task with the given id
func (c *Controller) Toggle(ctx context.Context, id int64) error {
	c.mu.Lock()
	i := c.indexOf(id)
	if i < 0 {
		c.mu.Unlock()
		return ErrTaskNotFound
	}
	userID, completed := c.userID, !c.tasks[i].Completed
	c.mu.Unlock()

	if err := c.store.Update(ctx, userID, id, todos.Patch{Completed: utils.Ptr(completed)}); err != nil {
		c.logger.Err(err).Str("user", userID).Int64("task", id).Msg("Failed to toggle task")
		c.dropIfGone(id, err)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexOf(id); i >= 0 {
		c.tasks[i].Completed = completed
	}
	return nil
}

// Delete removes the task with the given id
func (c *Controller) Delete(ctx context.Context, id int64) error {
	c.mu.Lock()
	if c.indexOf(id) < 0 {
		c.mu.Unlock()
		return ErrTaskNotFound
	}
	userID := c.userID
	c.mu.Unlock()

	if err := c.store.Delete(ctx, userID, id); err != nil {
		c.logger.Err(err).Str("user", userID).Int64("task", id).Msg("Failed to delete task")
		c.dropIfGone(id, err)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.remove(id)
	return nil
}

// dropIfGone removes the entry when the store no longer has the row, for
// example after another browser deleted it.
func (c *Controller) dropIfGone(id int64, err error) {
	if !errors.Is(err, todos.ErrNotFound) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remove(id)
}

// remove must be called with the lock held
func (c *Controller) remove(id int64) {
	if i := c.indexOf(id); i >= 0 {
		c.tasks = append(c.tasks[:i:i], c.tasks[i+1:]...)
	}
}

func (c *Controller) currentUser() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.userID == "" {
		return "", ErrNoUser
	}
	return c.userID, nil
}

// indexOf must be called with the lock held
func (c *Controller) indexOf(id int64) int {
	for i, t := range c.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}
