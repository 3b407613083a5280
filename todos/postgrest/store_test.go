package postgrest_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	apperrors "github.com/jrsteele09/go-todo-server/internal/errors"
	"github.com/jrsteele09/go-todo-server/internal/utils"
	"github.com/jrsteele09/go-todo-server/todos"
	"github.com/jrsteele09/go-todo-server/todos/postgrest"
	"github.com/stretchr/testify/require"
)

const apiKey = "anon-key"

// fakePostgREST serves /rest/v1/todos with eq filters on id and user_id
type fakePostgREST struct {
	t        *testing.T
	mu       sync.Mutex
	rows     []map[string]any
	nextID   int64
	now      time.Time
	override string
}

func (f *fakePostgREST) match(r *http.Request) func(map[string]any) bool {
	q := r.URL.Query()
	return func(row map[string]any) bool {
		if v := q.Get("user_id"); v != "" && row["user_id"] != strings.TrimPrefix(v, "eq.") {
			return false
		}
		if v := q.Get("id"); v != "" && strconv.FormatInt(row["id"].(int64), 10) != strings.TrimPrefix(v, "eq.") {
			return false
		}
		return true
	}
}

func (f *fakePostgREST) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	require.Equal(f.t, "/rest/v1/todos", r.URL.Path)
	if r.Header.Get("apikey") != apiKey || r.Header.Get("Authorization") != "Bearer "+apiKey {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Invalid API key"}`))
		return
	}
	if r.Method != http.MethodGet {
		require.Equal(f.t, "return=representation", r.Header.Get("Prefer"))
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.override != "" {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(f.override))
		return
	}

	match := f.match(r)
	out := make([]map[string]any, 0)
	switch r.Method {
	case http.MethodGet:
		for _, row := range f.rows {
			if match(row) {
				out = append(out, row)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i]["id"].(int64) > out[j]["id"].(int64) })
	case http.MethodPost:
		var body map[string]any
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		f.nextID++
		f.now = f.now.Add(time.Second)
		body["id"] = f.nextID
		body["created_at"] = f.now.Format("2006-01-02T15:04:05.000000-07:00")
		f.rows = append(f.rows, body)
		out = append(out, body)
	case http.MethodPatch:
		var body map[string]any
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		for _, row := range f.rows {
			if match(row) {
				for k, v := range body {
					row[k] = v
				}
				out = append(out, row)
			}
		}
	case http.MethodDelete:
		kept := f.rows[:0]
		for _, row := range f.rows {
			if match(row) {
				out = append(out, row)
				continue
			}
			kept = append(kept, row)
		}
		f.rows = kept
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (f *fakePostgREST) respondWith(body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.override = body
}

func setupStore(t *testing.T, key string) (*postgrest.Store, *fakePostgREST) {
	t.Helper()
	fake := &fakePostgREST{t: t, now: time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	store, err := postgrest.New(postgrest.Config{BaseURL: srv.URL + "/", APIKey: key, HTTPClient: srv.Client()})
	require.NoError(t, err)
	return store, fake
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := postgrest.New(postgrest.Config{})
	require.Error(t, err)
}

func TestStore_CRUD(t *testing.T) {
	store, _ := setupStore(t, apiKey)
	ctx := context.Background()

	t1, err := store.Insert(ctx, todos.NewTask{UserID: "u1", Task: "t1"})
	require.NoError(t, err)
	require.Equal(t, int64(1), t1.ID)
	require.False(t, t1.CreatedAt.IsZero())

	_, err = store.Insert(ctx, todos.NewTask{UserID: "u2", Task: "not mine"})
	require.NoError(t, err)
	t3, err := store.Insert(ctx, todos.NewTask{UserID: "u1", Task: "t3"})
	require.NoError(t, err)

	list, err := store.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, t3.ID, list[0].ID)
	require.Equal(t, t1.ID, list[1].ID)

	require.NoError(t, store.Update(ctx, "u1", t1.ID, todos.Patch{Completed: utils.Ptr(true)}))
	require.ErrorIs(t, store.Update(ctx, "u2", t1.ID, todos.Patch{Completed: utils.Ptr(false)}), todos.ErrNotFound)

	list, err = store.List(ctx, "u1")
	require.NoError(t, err)
	require.True(t, list[1].Completed)

	require.ErrorIs(t, store.Delete(ctx, "u2", t3.ID), todos.ErrNotFound)
	require.NoError(t, store.Delete(ctx, "u1", t3.ID))

	list, err = store.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestStore_RejectsInvalidRows(t *testing.T) {
	store, fake := setupStore(t, apiKey)
	fake.respondWith(`[{"id": 1, "user_id": "u1", "task": "t1", "completed": "yes", "created_at": "2026-04-01T08:00:00Z"}]`)

	_, err := store.List(context.Background(), "u1")
	require.ErrorIs(t, err, apperrors.ErrInvalidRow)

	fake.respondWith(`[{"id": 1, "user_id": "u1", "task": "t1", "completed": true, "created_at": "yesterday"}]`)
	_, err = store.List(context.Background(), "u1")
	require.ErrorIs(t, err, apperrors.ErrInvalidRow)
}

func TestStore_SurfacesAPIErrors(t *testing.T) {
	store, _ := setupStore(t, "wrong-key")

	_, err := store.List(context.Background(), "u1")
	require.ErrorContains(t, err, "Invalid API key")
}
