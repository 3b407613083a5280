// Package identity defines the contract of the identity provider the todo
// server delegates authentication to, and its auth state events.
package identity

import (
	"context"
	"time"
)

// User is the identity a provider vouches for
type User struct {
	ID    string
	Email string
}

type Credentials struct {
	Email    string
	Password string
}

// AuthSession is the token pair handed out on sign in or refresh.
// SessionID identifies the provider session across refreshes.
type AuthSession struct {
	SessionID    string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         User
}

// Provider is implemented by Local and by oidcprovider.Provider.
// Errors meant for the end user are returned as *Error.
type Provider interface {
	SignInWithPassword(ctx context.Context, creds Credentials) (*AuthSession, error)
	SignUp(ctx context.Context, creds Credentials) (*User, error)
	SignOut(ctx context.Context, accessToken string) error
	GetUser(ctx context.Context, accessToken string) (*User, error)
	RefreshSession(ctx context.Context, refreshToken string) (*AuthSession, error)
	OnAuthStateChange() (<-chan Event, func())
}

// Error carries a message that can be shown to the user verbatim
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func userError(message string, err error) *Error {
	return &Error{Message: message, Err: err}
}
