package server

import (
	"testing"

	"github.com/jrsteele09/go-todo-server/identity"
	"github.com/jrsteele09/go-todo-server/session"
	"github.com/stretchr/testify/require"
)

func TestDecide(t *testing.T) {
	jane := &identity.User{ID: "u1", Email: "jane@example.com"}

	tests := []struct {
		name     string
		state    session.State
		wantUser bool
		expected verdict
	}{
		{"loading waits for authenticated", session.State{Loading: true}, true, wait},
		{"loading waits for unauthenticated", session.State{Loading: true}, false, wait},
		{"signed in admitted", session.State{User: jane}, true, admit},
		{"signed out bounced to login", session.State{}, true, bounce},
		{"signed out admitted to login", session.State{}, false, admit},
		{"signed in bounced to todos", session.State{User: jane}, false, bounce},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, decide(tt.state, tt.wantUser))
		})
	}
}
