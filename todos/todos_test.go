package todos_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-todo-server/internal/utils"
	"github.com/jrsteele09/go-todo-server/todos"
	"github.com/stretchr/testify/require"
)

func TestPatch(t *testing.T) {
	task := todos.Task{ID: 1, UserID: "u1", Task: "Buy milk", CreatedAt: time.Unix(100, 0)}

	require.True(t, todos.Patch{}.Empty())
	require.Equal(t, task, todos.Patch{}.Apply(task))

	toggled := todos.Patch{Completed: utils.Ptr(true)}.Apply(task)
	require.True(t, toggled.Completed)
	require.Equal(t, task.Task, toggled.Task)

	renamed := todos.Patch{Task: utils.Ptr("Buy oat milk")}.Apply(task)
	require.Equal(t, "Buy oat milk", renamed.Task)
	require.False(t, renamed.Completed)
}
