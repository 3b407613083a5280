package server

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"

	"github.com/jrsteele09/go-todo-server/authform"
	"github.com/jrsteele09/go-todo-server/users"
	"github.com/rs/zerolog/log"
)

// SignupPageHandler displays the signup page (GET /signup)
func (s *Server) SignupPageHandler() http.HandlerFunc {
	tmpl, err := ParseTemplate("signup.html")
	if err != nil {
		panic("Failed to parse signup template: " + err.Error())
	}

	return func(w http.ResponseWriter, r *http.Request) {
		client, err := s.client(r)
		if err != nil {
			http.Error(w, "session not started", http.StatusBadRequest)
			return
		}

		data := AuthPageData{
			AppName: s.config.GetAppName(),
			Form:    client.Signup.View(),
		}

		w.Header().Set("Content-Type", contentTypeHTML)
		if err := tmpl.Execute(w, data); err != nil {
			log.Err(err).Msg("Failed to render signup template")
			http.Error(w, "Failed to render signup page", http.StatusInternalServerError)
		}
	}
}

// SignupSubmissionHandler registers the account. The user signs in afterwards
// from the login page.
func (s *Server) SignupSubmissionHandler() http.HandlerFunc {
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

		client.Signup.SetFields(r.FormValue("email"), r.FormValue("password"))
		res, err := client.Signup.Submit(r.Context(), func(ctx context.Context, email, password string) error {
			return s.sessions.SignUp(ctx, email, password)
		})
		if err != nil {
			if errors.Is(err, authform.ErrSubmissionInFlight) {
				http.Error(w, "Sign up already in progress", http.StatusConflict)
				return
			}
			redirectSuccess(w, r, RouteSignup)
			return
		}
		redirectSuccess(w, r, res.Redirect)
	}
}

// ValidatePasswordHandler checks password strength as the user types. It is
// a hint only; the identity provider has the final say.
func (s *Server) ValidatePasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		password := r.FormValue("password")
		w.Header().Set("Content-Type", contentTypeHTML)

		if password == "" {
			w.WriteHeader(http.StatusOK)
			return
		}

		if err := users.ValidatePasswordStrength(password); err != nil {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, `<span class="hint hint-bad">%s</span>`, html.EscapeString(err.Error()))
			return
		}

		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `<span class="hint hint-good">Looks good</span>`)
	}
}
