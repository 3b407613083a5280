package todorepofake

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jrsteele09/go-todo-server/todos"
)

var _ todos.Store = (*FakeTodoStore)(nil)

// Operation names used for failure injection and call counting
const (
	OpList   = "list"
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

type FakeTodoStore struct {
	rows    map[int64]todos.Task
	nextID  int64
	failing map[string]error
	calls   map[string]int
	nowTime func() time.Time
	lock    sync.Mutex
}

type Option func(*FakeTodoStore)

// WithNowTime sets the clock used for created_at
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *FakeTodoStore) {
		s.nowTime = nowFunc
	}
}

func NewFakeTodoStore(options ...Option) *FakeTodoStore {
	s := &FakeTodoStore{
		rows:    make(map[int64]todos.Task),
		failing: make(map[string]error),
		calls:   make(map[string]int),
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Fail makes every call of op return err until Recover is called
func (s *FakeTodoStore) Fail(op string, err error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.failing[op] = err
}

func (s *FakeTodoStore) Recover(op string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.failing, op)
}

// Calls reports how many times op was invoked, failed calls included
func (s *FakeTodoStore) Calls(op string) int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.calls[op]
}

// Seed stores a row as is, keeping its ID and CreatedAt
func (s *FakeTodoStore) Seed(task todos.Task) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.rows[task.ID] = task
	if task.ID > s.nextID {
		s.nextID = task.ID
	}
}

func (s *FakeTodoStore) enter(op string) error {
	s.calls[op]++
	return s.failing[op]
}

func (s *FakeTodoStore) List(_ context.Context, userID string) ([]todos.Task, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := s.enter(OpList); err != nil {
		return nil, err
	}

	list := make([]todos.Task, 0)
	for _, t := range s.rows {
		if t.UserID == userID {
			list = append(list, t)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID > list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

func (s *FakeTodoStore) Insert(_ context.Context, task todos.NewTask) (todos.Task, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := s.enter(OpInsert); err != nil {
		return todos.Task{}, err
	}

	s.nextID++
	row := todos.Task{
		ID:        s.nextID,
		UserID:    task.UserID,
		Task:      task.Task,
		Completed: task.Completed,
		CreatedAt: s.nowTime(),
	}
	s.rows[row.ID] = row
	return row, nil
}

func (s *FakeTodoStore) Update(_ context.Context, userID string, id int64, patch todos.Patch) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := s.enter(OpUpdate); err != nil {
		return err
	}

	row, ok := s.rows[id]
	if !ok || row.UserID != userID {
		return todos.ErrNotFound
	}
	s.rows[id] = patch.Apply(row)
	return nil
}

func (s *FakeTodoStore) Delete(_ context.Context, userID string, id int64) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := s.enter(OpDelete); err != nil {
		return err
	}

	row, ok := s.rows[id]
	if !ok || row.UserID != userID {
		return todos.ErrNotFound
	}
	delete(s.rows, id)
	return nil
}
