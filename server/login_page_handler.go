package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/jrsteele09/go-todo-server/authform"
	"github.com/rs/zerolog/log"
)

// AuthPageData contains data for rendering the login and signup pages
type AuthPageData struct {
	AppName string
	Form    authform.View
	Notice  string
}

// LoginPageHandler displays the login page (GET /login)
func (s *Server) LoginPageHandler() http.HandlerFunc {
	tmpl, err := ParseTemplate("login.html")
	if err != nil {
		panic("Failed to parse login template: " + err.Error())
	}

	return func(w http.ResponseWriter, r *http.Request) {
		client, err := s.client(r)
		if err != nil {
			http.Error(w, "session not started", http.StatusBadRequest)
			return
		}

		data := AuthPageData{
			AppName: s.config.GetAppName(),
			Form:    client.Login.View(),
			Notice:  r.URL.Query().Get("notice"),
		}

		w.Header().Set("Content-Type", contentTypeHTML)
		if err := tmpl.Execute(w, data); err != nil {
			log.Err(err).Msg("Failed to render login template")
			http.Error(w, "Failed to render login page", http.StatusInternalServerError)
		}
	}
}

// LoginSubmissionHandler processes the login form submission. Success goes to
// the task list; a failure goes back to the login page which shows the error.
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid := sessionIDFrom(r.Context())
		client, err := s.client(r)
		if err != nil {
			http.Error(w, "session not started", http.StatusBadRequest)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		client.Login.SetFields(r.FormValue("email"), r.FormValue("password"))
		res, err := client.Login.Submit(r.Context(), func(ctx context.Context, email, password string) error {
			return s.sessions.SignIn(ctx, sid, email, password)
		})
		if err != nil {
			if errors.Is(err, authform.ErrSubmissionInFlight) {
				http.Error(w, "Sign in already in progress", http.StatusConflict)
				return
			}
			redirectSuccess(w, r, RouteLogin)
			return
		}
		redirectSuccess(w, r, res.Redirect)
	}
}

// LogoutHandler signs the browser session out. Local state is cleared even
// when the provider could not be reached.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid := sessionIDFrom(r.Context())
		if err := s.sessions.SignOut(r.Context(), sid); err != nil {
			log.Warn().Err(err).Str("session", sid).Msg("Sign out completed locally only")
		}
		if err := s.clients.Delete(sid); err != nil {
			log.Err(err).Str("session", sid).Msg("Failed to discard client state")
		}
		redirectSuccess(w, r, RouteLogin)
	}
}
