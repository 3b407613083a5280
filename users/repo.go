package users

import "time"

// Repo stores user accounts for the local identity provider.
// Create must fail with errors.ErrUserExists when the email is taken and the
// getters with errors.ErrUserNotFound when nothing matches.
type Repo interface {
	Create(user *User) error
	GetByEmail(email string) (*User, error)
	GetByID(id string) (*User, error)
	SetLastLogin(id string, at time.Time) error
}
