package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/jrsteele09/go-todo-server/server/clientrepo"
	"github.com/jrsteele09/go-todo-server/tasklist"
)

type createTodoRequest struct {
	Task string `json:"task"`
}

type updateTodoRequest struct {
	Completed *bool `json:"completed"`
}

// apiClient returns the synced browser state or writes the error response
func (s *Server) apiClient(w http.ResponseWriter, r *http.Request) (*clientrepo.ClientState, bool) {
	client, err := s.client(r)
	if err != nil {
		writeJSONError(w, "invalid_session", err.Error(), http.StatusBadRequest)
		return nil, false
	}
	if err := client.Tasks.Sync(r.Context(), userFrom(r.Context())); err != nil {
		writeJSONError(w, "store_unavailable", "Could not load tasks", http.StatusBadGateway)
		return nil, false
	}
	return client, true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSONError(w, "invalid_request", "Invalid task id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// APIListTodos returns the user's tasks newest first (GET /api/todos)
func (s *Server) APIListTodos() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client, ok := s.apiClient(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, client.Tasks.Tasks())
	}
}

// APICreateTodo adds a task (POST /api/todos)
func (s *Server) APICreateTodo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createTodoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "invalid_request", "Body must be a JSON object", http.StatusBadRequest)
			return
		}
		client, ok := s.apiClient(w, r)
		if !ok {
			return
		}

		task, err := client.Tasks.Create(r.Context(), req.Task)
		switch {
		case errors.Is(err, tasklist.ErrEmptyTask):
			writeJSONError(w, "invalid_request", "Task text is required", http.StatusBadRequest)
		case err != nil:
			writeJSONError(w, "store_unavailable", "Could not save the task", http.StatusBadGateway)
		default:
			writeJSON(w, http.StatusCreated, task)
		}
	}
}

// APIUpdateTodo sets the completed flag of a task (PATCH /api/todos/{id})
func (s *Server) APIUpdateTodo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var req updateTodoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Completed == nil {
			writeJSONError(w, "invalid_request", "Body must set completed", http.StatusBadRequest)
			return
		}
		client, ok := s.apiClient(w, r)
		if !ok {
			return
		}

		task, found := client.Tasks.Get(id)
		if !found {
			writeJSONError(w, "not_found", "Task not found", http.StatusNotFound)
			return
		}
		if task.Completed != *req.Completed {
			err := client.Tasks.Toggle(r.Context(), id)
			switch {
			case errors.Is(err, tasklist.ErrTaskNotFound):
				writeJSONError(w, "not_found", "Task not found", http.StatusNotFound)
				return
			case err != nil:
				writeJSONError(w, "store_unavailable", "Could not update the task", http.StatusBadGateway)
				return
			}
			task, _ = client.Tasks.Get(id)
		}
		writeJSON(w, http.StatusOK, task)
	}
}

// APIDeleteTodo removes a task (DELETE /api/todos/{id})
func (s *Server) APIDeleteTodo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		client, ok := s.apiClient(w, r)
		if !ok {
			return
		}

		err := client.Tasks.Delete(r.Context(), id)
		switch {
		case errors.Is(err, tasklist.ErrTaskNotFound):
			writeJSONError(w, "not_found", "Task not found", http.StatusNotFound)
		case err != nil:
			writeJSONError(w, "store_unavailable", "Could not delete the task", http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}
}

// HealthHandler reports that the process is serving
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
			"app":    s.config.GetAppName(),
			"time":   s.nowTime().UTC().Format(time.RFC3339),
		})
	}
}
