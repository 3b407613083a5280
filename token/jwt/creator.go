package jwt

import (
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-todo-server/users"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Creator handles access token creation
type Creator struct {
	issuer string
	expiry time.Duration
	signer Signer
}

// NewCreator creates a new JWT creator
func NewCreator(issuer string, expiry time.Duration, signer Signer) *Creator {
	return &Creator{
		issuer: issuer,
		expiry: expiry,
		signer: signer,
	}
}

// CreateAccessToken creates an access token for the user bound to one provider session
func (c *Creator) CreateAccessToken(user *users.User, sessionID string) (string, time.Time, error) {
	now := NowTimeFunc()
	expiresAt := now.Add(c.expiry)
	claims := jwtlib.MapClaims{
		"iss":   c.issuer,            // The issuer of the token
		"sub":   user.ID,             // The user the token was issued to
		"email": user.Email,          // Convenience copy, avoids a user lookup per request
		"sid":   sessionID,           // Provider session, shared with the refresh token
		"iat":   now.Unix(),          // Issued At
		"exp":   expiresAt.Unix(),    // Expiry
		"jti":   uuid.New().String(), // Unique token ID
	}

	signed, err := c.signer.Sign(claims)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign JWT token: %w", err)
	}
	return signed, expiresAt, nil
}
