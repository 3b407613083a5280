// Package postgrest keeps tasks in a PostgREST (Supabase) "todos" table over
// its REST interface.
package postgrest

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jrsteele09/go-todo-server/internal/errors"
	"github.com/jrsteele09/go-todo-server/todos"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

var _ todos.Store = (*Store)(nil)

const schemaURL = "todo_row.schema.json"

//go:embed todo_row.schema.json
var rowSchema string

type Config struct {
	BaseURL    string // e.g. https://project.supabase.co
	APIKey     string
	HTTPClient *http.Client
}

// Store talks to /rest/v1/todos. Every request filters on user_id.
type Store struct {
	endpoint string
	apiKey   string
	client   *http.Client
	schema   *jsonschema.Schema
}

func New(cfg Config) (*Store, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("postgrest: base url is required")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	if err := compiler.AddResource(schemaURL, strings.NewReader(rowSchema)); err != nil {
		return nil, fmt.Errorf("postgrest: add row schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("postgrest: compile row schema: %w", err)
	}

	return &Store{
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + "/rest/v1/todos",
		apiKey:   cfg.APIKey,
		client:   client,
		schema:   schema,
	}, nil
}

func (s *Store) List(ctx context.Context, userID string) ([]todos.Task, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("user_id", "eq."+userID)
	q.Set("order", "created_at.desc,id.desc")

	rows, err := s.do(ctx, http.MethodGet, q, nil)
	if err != nil {
		return nil, fmt.Errorf("[Store.List] %w", err)
	}
	return rows, nil
}

func (s *Store) Insert(ctx context.Context, task todos.NewTask) (todos.Task, error) {
	rows, err := s.do(ctx, http.MethodPost, nil, task)
	if err != nil {
		return todos.Task{}, fmt.Errorf("[Store.Insert] %w", err)
	}
	if len(rows) != 1 {
		return todos.Task{}, fmt.Errorf("[Store.Insert] expected one row, got %d", len(rows))
	}
	return rows[0], nil
}

func (s *Store) Update(ctx context.Context, userID string, id int64, patch todos.Patch) error {
	rows, err := s.do(ctx, http.MethodPatch, ownedRow(userID, id), patch)
	if err != nil {
		return fmt.Errorf("[Store.Update] %w", err)
	}
	if len(rows) == 0 {
		return todos.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, userID string, id int64) error {
	rows, err := s.do(ctx, http.MethodDelete, ownedRow(userID, id), nil)
	if err != nil {
		return fmt.Errorf("[Store.Delete] %w", err)
	}
	if len(rows) == 0 {
		return todos.ErrNotFound
	}
	return nil
}

func ownedRow(userID string, id int64) url.Values {
	q := url.Values{}
	q.Set("id", "eq."+strconv.FormatInt(id, 10))
	q.Set("user_id", "eq."+userID)
	return q
}

// apiError is the PostgREST error body
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
}

// do sends one request asking for the affected rows back and validates
// every returned row.
func (s *Store) do(ctx context.Context, method string, query url.Values, body any) ([]todos.Task, error) {
	target := s.endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, s.endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("%s %s: status %d: %s", method, s.endpoint, resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("%s %s: status %d", method, s.endpoint, resp.StatusCode)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	return s.decodeRows(data)
}

func (s *Store) decodeRows(data []byte) ([]todos.Task, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}

	rows := make([]todos.Task, 0, len(raw))
	for i, r := range raw {
		dec := json.NewDecoder(bytes.NewReader(r))
		dec.UseNumber()
		var doc any
		if err := dec.Decode(&doc); err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidRow, "row %d", i)
		}
		if err := s.schema.Validate(doc); err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidRow, "row %d: %s", i, err.Error())
		}
		var task todos.Task
		if err := json.Unmarshal(r, &task); err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidRow, "row %d: %s", i, err.Error())
		}
		rows = append(rows, task)
	}
	return rows, nil
}
