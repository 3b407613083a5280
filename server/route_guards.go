package server

import (
	"net/http"

	"github.com/jrsteele09/go-todo-server/session"
	"github.com/rs/zerolog/log"
)

type verdict int

const (
	admit verdict = iota
	wait
	bounce
)

// decide is shared by both guards. A loading session waits; otherwise the
// request is admitted when the presence of a user matches wantUser.
func decide(state session.State, wantUser bool) verdict {
	if state.Loading {
		return wait
	}
	if (state.User != nil) == wantUser {
		return admit
	}
	return bounce
}

// sessionState returns the state of the request's browser session, restoring
// it from the persisted tokens first when it has not been resolved yet or
// its access token has expired.
func (s *Server) sessionState(r *http.Request) session.State {
	return s.sessions.Validate(r.Context(), sessionIDFrom(r.Context()))
}

func (s *Server) guard(wantUser bool, redirectTo string) func(http.HandlerFunc) http.HandlerFunc {
	loading := s.LoadingPage()
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			state := s.sessionState(r)
			switch decide(state, wantUser) {
			case wait:
				loading(w, r)
			case bounce:
				redirectSuccess(w, r, redirectTo)
			default:
				if state.User != nil {
					r = r.WithContext(withUser(r.Context(), state.User))
				}
				next(w, r)
			}
		}
	}
}

// RequireAuthenticated admits signed in sessions and sends everyone else to
// the login page.
func (s *Server) RequireAuthenticated() func(http.HandlerFunc) http.HandlerFunc {
	return s.guard(true, RouteLogin)
}

// RequireUnauthenticated admits signed out sessions and sends signed in
// users to their task list.
func (s *Server) RequireUnauthenticated() func(http.HandlerFunc) http.HandlerFunc {
	return s.guard(false, RouteTodos)
}

// RequireAPIAuth is the JSON flavour of RequireAuthenticated
func (s *Server) RequireAPIAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			state := s.sessionState(r)
			switch decide(state, true) {
			case wait:
				w.Header().Set("Retry-After", "1")
				writeJSONError(w, "session_loading", "Session is still loading", http.StatusServiceUnavailable)
			case bounce:
				writeJSONError(w, "unauthorized", "Sign in required", http.StatusUnauthorized)
			default:
				next(w, r.WithContext(withUser(r.Context(), state.User)))
			}
		}
	}
}

// LoadingPage renders the placeholder shown while a session is restored.
// The browser asks again after a second.
func (s *Server) LoadingPage() http.HandlerFunc {
	tmpl, err := ParseTemplate("loading.html")
	if err != nil {
		panic("Failed to parse loading template: " + err.Error())
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentTypeHTML)
		w.Header().Set("Refresh", "1")
		w.WriteHeader(http.StatusOK)
		if err := tmpl.Execute(w, map[string]any{"AppName": s.config.GetAppName()}); err != nil {
			log.Err(err).Msg("Failed to render loading template")
		}
	}
}
