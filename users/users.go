package users

import (
	"strings"
	"time"
	"unicode"

	"github.com/jrsteele09/go-todo-server/internal/errors"
	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID           string    `json:"id,omitempty"`          // Unique identifier for the user
	Email        string    `json:"email,omitempty"`       // User's email address, stored lower case
	PasswordHash string    `json:"-"`                     // Hashed version of the user's password - never serialize
	DateJoined   time.Time `json:"date_joined,omitempty"` // Date and time when the user registered
	LastLogin    time.Time `json:"last_login,omitempty"`  // Last time the user logged in
}

// NormaliseEmail trims and lower cases an address so lookups are case insensitive.
func NormaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// PasswordPolicyError describes why a password was rejected. It matches
// errors.ErrWeakPassword under errors.Is.
type PasswordPolicyError struct {
	Reason string
}

func (e *PasswordPolicyError) Error() string {
	return e.Reason
}

func (e *PasswordPolicyError) Is(target error) bool {
	return target == errors.ErrWeakPassword
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return &PasswordPolicyError{Reason: "Password must be at least 8 characters long"}
	}

	var hasUpper, hasLower, hasNumber bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasNumber = true
		}
	}

	if !hasUpper {
		return &PasswordPolicyError{Reason: "Password must contain at least one uppercase letter"}
	}
	if !hasLower {
		return &PasswordPolicyError{Reason: "Password must contain at least one lowercase letter"}
	}
	if !hasNumber {
		return &PasswordPolicyError{Reason: "Password must contain at least one number"}
	}
	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
