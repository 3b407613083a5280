package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/jrsteele09/go-todo-server/tasklist"
	"github.com/jrsteele09/go-todo-server/todos"
	"github.com/rs/zerolog/log"
)

// TodosPageData contains data for rendering the task page
type TodosPageData struct {
	AppName string
	Email   string
	Tasks   []todos.Task
	Stats   tasklist.Stats
	Draft   string
}

// TodosPageHandler renders the signed in user's tasks (GET /todos). A failed
// load shows the last list that did load; the failure is only logged.
func (s *Server) TodosPageHandler() http.HandlerFunc {
	tmpl, err := ParseTemplate("todos.html")
	if err != nil {
		panic("Failed to parse todos template: " + err.Error())
	}

	return func(w http.ResponseWriter, r *http.Request) {
		user := userFrom(r.Context())
		client, err := s.client(r)
		if err != nil {
			http.Error(w, "session not started", http.StatusBadRequest)
			return
		}
		_ = client.Tasks.Sync(r.Context(), user)

		data := TodosPageData{
			AppName: s.config.GetAppName(),
			Email:   user.Email,
			Tasks:   client.Tasks.Tasks(),
			Stats:   client.Tasks.Stats(),
			Draft:   client.TakeDraft(),
		}

		w.Header().Set("Content-Type", contentTypeHTML)
		if err := tmpl.Execute(w, data); err != nil {
			log.Err(err).Msg("Failed to render todos template")
			http.Error(w, "Failed to render task page", http.StatusInternalServerError)
		}
	}
}

// CreateTodoHandler adds a task (POST /todos). When the store rejects it the
// typed text comes back in the input on the next render.
func (s *Server) CreateTodoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client, err := s.client(r)
		if err != nil {
			http.Error(w, "session not started", http.StatusBadRequest)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		text := r.FormValue("task")
		if err := client.Tasks.Sync(r.Context(), userFrom(r.Context())); err == nil {
			if _, err := client.Tasks.Create(r.Context(), text); err != nil && !errors.Is(err, tasklist.ErrEmptyTask) {
				client.KeepDraft(text)
			}
		} else {
			client.KeepDraft(text)
		}
		redirectSuccess(w, r, RouteTodos)
	}
}

// ToggleTodoHandler flips the completed flag of one task
func (s *Server) ToggleTodoHandler() http.HandlerFunc {
	return s.todoAction(func(c *tasklist.Controller, r *http.Request, id int64) error {
		return c.Toggle(r.Context(), id)
	})
}

// DeleteTodoHandler removes one task
func (s *Server) DeleteTodoHandler() http.HandlerFunc {
	return s.todoAction(func(c *tasklist.Controller, r *http.Request, id int64) error {
		return c.Delete(r.Context(), id)
	})
}

// todoAction runs a mutation on the task named by the {id} path value and
// sends the browser back to the list whatever the outcome.
func (s *Server) todoAction(action func(*tasklist.Controller, *http.Request, int64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil || id <= 0 {
			http.Error(w, "Invalid task id", http.StatusBadRequest)
			return
		}
		client, err := s.client(r)
		if err != nil {
			http.Error(w, "session not started", http.StatusBadRequest)
			return
		}
		if err := client.Tasks.Sync(r.Context(), userFrom(r.Context())); err == nil {
			_ = action(client.Tasks, r, id)
		}
		redirectSuccess(w, r, RouteTodos)
	}
}
