package refresh_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-todo-server/internal/errors"
	"github.com/jrsteele09/go-todo-server/token/refresh"
	refreshrepofake "github.com/jrsteele09/go-todo-server/token/refresh/repofake"
	"github.com/stretchr/testify/require"
)

func TestManager(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	refresh.NowTimeFunc = func() time.Time { return now }
	t.Cleanup(func() { refresh.NowTimeFunc = time.Now })

	m := refresh.NewManager(refreshrepofake.NewFakeRefreshTokenRepo(), 32, 24*time.Hour)

	first, err := m.Create("user-1", "sid-1")
	require.NoError(t, err)
	require.Len(t, first.Token, 64)
	require.True(t, m.Active("sid-1"))

	t.Run("rotate keeps the session", func(t *testing.T) {
		second, err := m.Rotate(first.Token)
		require.NoError(t, err)
		require.NotEqual(t, first.Token, second.Token)
		require.Equal(t, "sid-1", second.SessionID)
		require.Equal(t, "user-1", second.UserID)

		_, err = m.Rotate(first.Token)
		require.ErrorIs(t, err, errors.ErrInvalidRefreshToken)
		first = second
	})

	t.Run("expired token ends the session", func(t *testing.T) {
		refresh.NowTimeFunc = func() time.Time { return now.Add(25 * time.Hour) }
		defer func() { refresh.NowTimeFunc = func() time.Time { return now } }()

		rt, err := m.Rotate(first.Token)
		require.ErrorIs(t, err, errors.ErrRefreshTokenExpired)
		require.Equal(t, "sid-1", rt.SessionID)
		require.False(t, m.Active("sid-1"))
	})

	t.Run("end session", func(t *testing.T) {
		_, err := m.Create("user-2", "sid-2")
		require.NoError(t, err)
		require.NoError(t, m.EndSession("sid-2"))
		require.False(t, m.Active("sid-2"))
	})
}
