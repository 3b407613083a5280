package jwt_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-todo-server/internal/errors"
	"github.com/jrsteele09/go-todo-server/token/jwt"
	"github.com/jrsteele09/go-todo-server/users"
	"github.com/stretchr/testify/require"
)

type revokedSet map[string]bool

func (r revokedSet) IsRevoked(sid string) bool { return r[sid] }

func TestCreateAndInspect(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	jwt.NowTimeFunc = func() time.Time { return now }
	t.Cleanup(func() { jwt.NowTimeFunc = time.Now })

	signer := jwt.NewHMACSigner([]byte("test-secret"))
	revoked := revokedSet{}
	creator := jwt.NewCreator("todo-test", time.Hour, signer)
	inspector := jwt.NewInspector("todo-test", signer, revoked)

	user := &users.User{ID: "user-1", Email: "jane@example.com"}
	raw, expiresAt, err := creator.CreateAccessToken(user, "sid-1")
	require.NoError(t, err)
	require.Equal(t, now.Add(time.Hour), expiresAt)

	t.Run("valid", func(t *testing.T) {
		claims, err := inspector.Inspect(raw)
		require.NoError(t, err)
		require.Equal(t, "user-1", claims.Subject)
		require.Equal(t, "jane@example.com", claims.Email)
		require.Equal(t, "sid-1", claims.SessionID)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		_, err := jwt.NewInspector("someone-else", signer, nil).Inspect(raw)
		require.ErrorIs(t, err, errors.ErrInvalidToken)
	})

	t.Run("wrong key", func(t *testing.T) {
		_, err := jwt.NewInspector("todo-test", jwt.NewHMACSigner([]byte("other")), nil).Inspect(raw)
		require.ErrorIs(t, err, errors.ErrInvalidToken)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := inspector.Inspect("  ")
		require.ErrorIs(t, err, errors.ErrInvalidToken)
	})

	t.Run("revoked session", func(t *testing.T) {
		revoked["sid-1"] = true
		defer delete(revoked, "sid-1")
		_, err := inspector.Inspect(raw)
		require.ErrorIs(t, err, errors.ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		jwt.NowTimeFunc = func() time.Time { return now.Add(2 * time.Hour) }
		claims, err := inspector.Inspect(raw)
		require.ErrorIs(t, err, errors.ErrTokenExpired)
		require.Equal(t, "sid-1", claims.SessionID)
	})
}
