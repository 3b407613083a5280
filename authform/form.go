// Package authform holds the state of the login and signup forms of one
// browser: the typed fields, the in-flight flag and the last error.
package authform

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/jrsteele09/go-todo-server/internal/errors"
)

const (
	MsgMissingFields = "Email and password are required"
	MsgSignedUp      = "Account created. Sign in to continue."
)

var (
	ErrSubmissionInFlight = errors.Wrapf(errors.ErrUnsupported, "submission already in flight")
	ErrMissingFields      = errors.Wrapf(errors.ErrInvalidCredentials, "missing fields")
)

type Kind int

const (
	Login Kind = iota
	Signup
)

// SubmitFunc performs the session store operation behind the form
type SubmitFunc func(ctx context.Context, email, password string) error

// Result of a successful submission
type Result struct {
	Redirect string
}

// View is what a template renders. The password is never part of it.
type View struct {
	Email       string
	Error       string
	InFlight    bool
	SubmitLabel string
}

type Form struct {
	kind Kind

	mu       sync.Mutex
	email    string
	password string
	err      string
	inFlight bool
}

func NewLogin() *Form {
	return &Form{kind: Login}
}

func NewSignup() *Form {
	return &Form{kind: Signup}
}

// SetFields records what the user typed
func (f *Form) SetFields(email, password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.email = email
	f.password = password
}

// Submit clears the previous error and runs submit once. On failure the
// error message is kept verbatim for the next render; there is no retry.
func (f *Form) Submit(ctx context.Context, submit SubmitFunc) (Result, error) {
	f.mu.Lock()
	if f.inFlight {
		f.mu.Unlock()
		return Result{}, ErrSubmissionInFlight
	}
	f.err = ""
	email, password := strings.TrimSpace(f.email), f.password
	f.password = ""
	if email == "" || password == "" {
		f.err = MsgMissingFields
		f.mu.Unlock()
		return Result{}, ErrMissingFields
	}
	f.inFlight = true
	f.mu.Unlock()

	err := submit(ctx, email, password)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight = false
	if err != nil {
		f.err = err.Error()
		return Result{}, err
	}
	f.email = ""
	return Result{Redirect: f.successPath()}, nil
}

func (f *Form) successPath() string {
	if f.kind == Signup {
		return "/login?notice=" + url.QueryEscape(MsgSignedUp)
	}
	return "/todos"
}

func (f *Form) View() View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return View{
		Email:       f.email,
		Error:       f.err,
		InFlight:    f.inFlight,
		SubmitLabel: f.label(),
	}
}

func (f *Form) label() string {
	switch {
	case f.kind == Login && f.inFlight:
		return "Signing in..."
	case f.kind == Login:
		return "Sign In"
	case f.inFlight:
		return "Creating account..."
	default:
		return "Sign Up"
	}
}
