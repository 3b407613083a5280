package todorepofake_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jrsteele09/go-todo-server/internal/utils"
	"github.com/jrsteele09/go-todo-server/todos"
	todorepofake "github.com/jrsteele09/go-todo-server/todos/repofake"
	"github.com/stretchr/testify/require"
)

func TestFakeTodoStore(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := todorepofake.NewFakeTodoStore(todorepofake.WithNowTime(func() time.Time {
		now = now.Add(time.Minute)
		return now
	}))
	ctx := context.Background()

	first, err := store.Insert(ctx, todos.NewTask{UserID: "u1", Task: "first"})
	require.NoError(t, err)
	second, err := store.Insert(ctx, todos.NewTask{UserID: "u1", Task: "second"})
	require.NoError(t, err)
	_, err = store.Insert(ctx, todos.NewTask{UserID: "u2", Task: "other"})
	require.NoError(t, err)

	list, err := store.List(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, []todos.Task{second, first}, list)

	t.Run("ownership", func(t *testing.T) {
		require.ErrorIs(t, store.Update(ctx, "u2", first.ID, todos.Patch{Completed: utils.Ptr(true)}), todos.ErrNotFound)
		require.ErrorIs(t, store.Delete(ctx, "u2", first.ID), todos.ErrNotFound)
	})

	t.Run("failure injection", func(t *testing.T) {
		boom := errors.New("boom")
		store.Fail(todorepofake.OpDelete, boom)
		require.ErrorIs(t, store.Delete(ctx, "u1", first.ID), boom)
		store.Recover(todorepofake.OpDelete)
		require.NoError(t, store.Delete(ctx, "u1", first.ID))
		require.Equal(t, 3, store.Calls(todorepofake.OpDelete))
	})
}
