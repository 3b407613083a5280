// Package sqlstore keeps tasks in a SQL database through database/sql,
// using mattn/go-sqlite3 or go-sql-driver/mysql.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/jrsteele09/go-todo-server/todos"
)

var _ todos.Store = (*Store)(nil)

// Supported driver names
const (
	DriverSQLite = "sqlite3"
	DriverMySQL  = "mysql"
)

var schemas = map[string][]string{
	DriverSQLite: {
		`CREATE TABLE IF NOT EXISTS todos (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			task TEXT NOT NULL,
			completed BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_todos_user_created ON todos(user_id, created_at DESC)`,
	},
	DriverMySQL: {
		`CREATE TABLE IF NOT EXISTS todos (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			task TEXT NOT NULL,
			completed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at DATETIME(6) NOT NULL,
			INDEX idx_todos_user_created (user_id, created_at)
		)`,
	},
}

type Store struct {
	db      *sql.DB
	nowTime func() time.Time
}

type Option func(*Store)

// WithNowTime sets the clock used for created_at
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Store) {
		s.nowTime = nowFunc
	}
}

// Open connects to the database and creates the todos table when missing.
func Open(ctx context.Context, driver, dsn string, options ...Option) (*Store, error) {
	stmts, ok := schemas[driver]
	if !ok {
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}

	if driver == DriverMySQL {
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: parse mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		cfg.ClientFoundRows = true
		dsn = cfg.FormatDSN()
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: ping %s: %w", driver, err)
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlstore: create schema: %w", err)
		}
	}

	s := &Store{db: db, nowTime: time.Now}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) List(ctx context.Context, userID string) ([]todos.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, task, completed, created_at FROM todos WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("[Store.List] query: %w", err)
	}
	defer rows.Close()

	list := make([]todos.Task, 0)
	for rows.Next() {
		var t todos.Task
		if err := rows.Scan(&t.ID, &t.UserID, &t.Task, &t.Completed, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("[Store.List] scan: %w", err)
		}
		t.CreatedAt = t.CreatedAt.UTC()
		list = append(list, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("[Store.List] rows: %w", err)
	}
	return list, nil
}

func (s *Store) Insert(ctx context.Context, task todos.NewTask) (todos.Task, error) {
	createdAt := s.nowTime().UTC().Truncate(time.Microsecond)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO todos (user_id, task, completed, created_at) VALUES (?, ?, ?, ?)`,
		task.UserID, task.Task, task.Completed, createdAt)
	if err != nil {
		return todos.Task{}, fmt.Errorf("[Store.Insert] exec: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return todos.Task{}, fmt.Errorf("[Store.Insert] LastInsertId: %w", err)
	}
	return todos.Task{
		ID:        id,
		UserID:    task.UserID,
		Task:      task.Task,
		Completed: task.Completed,
		CreatedAt: createdAt,
	}, nil
}

func (s *Store) Update(ctx context.Context, userID string, id int64, patch todos.Patch) error {
	if patch.Empty() {
		var found int64
		err := s.db.QueryRowContext(ctx, `SELECT id FROM todos WHERE id = ? AND user_id = ?`, id, userID).Scan(&found)
		if err == sql.ErrNoRows {
			return todos.ErrNotFound
		}
		return err
	}

	sets := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if patch.Task != nil {
		sets = append(sets, "task = ?")
		args = append(args, *patch.Task)
	}
	if patch.Completed != nil {
		sets = append(sets, "completed = ?")
		args = append(args, *patch.Completed)
	}
	args = append(args, id, userID)

	res, err := s.db.ExecContext(ctx,
		`UPDATE todos SET `+strings.Join(sets, ", ")+` WHERE id = ? AND user_id = ?`, args...)
	if err != nil {
		return fmt.Errorf("[Store.Update] exec: %w", err)
	}
	return requireOneRow(res)
}

func (s *Store) Delete(ctx context.Context, userID string, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM todos WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("[Store.Delete] exec: %w", err)
	}
	return requireOneRow(res)
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return todos.ErrNotFound
	}
	return nil
}
