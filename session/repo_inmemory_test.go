package session_test

import (
	"testing"

	apperrors "github.com/jrsteele09/go-todo-server/internal/errors"
	"github.com/jrsteele09/go-todo-server/session"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRepo(t *testing.T) {
	repo := session.NewInMemoryRepo()

	require.Error(t, repo.Upsert("", session.Session{}))
	_, err := repo.Get("missing")
	require.ErrorIs(t, err, apperrors.ErrSessionNotFound)

	require.NoError(t, repo.Upsert("a", session.Session{UserID: "u1", ProviderSessionID: "p1"}))
	require.NoError(t, repo.Upsert("b", session.Session{UserID: "u1", ProviderSessionID: "p1"}))
	ids, err := repo.FindByProviderSession("p1")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b"}, ids)

	t.Run("re-upsert moves the index", func(t *testing.T) {
		require.NoError(t, repo.Upsert("b", session.Session{UserID: "u1", ProviderSessionID: "p2"}))
		ids, err := repo.FindByProviderSession("p1")
		require.NoError(t, err)
		require.Equal(t, []string{"a"}, ids)
	})

	require.NoError(t, repo.Delete("a"))
	require.NoError(t, repo.Delete("a"))
	ids, err = repo.FindByProviderSession("p1")
	require.NoError(t, err)
	require.Empty(t, ids)
}
