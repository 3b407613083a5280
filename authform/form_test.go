package authform_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jrsteele09/go-todo-server/authform"
	"github.com/jrsteele09/go-todo-server/identity"
	"github.com/stretchr/testify/require"
)

func TestForm_LoginSuccess(t *testing.T) {
	form := authform.NewLogin()
	form.SetFields(" jane@example.com ", "Sup3rSecret")

	var gotEmail, gotPassword string
	res, err := form.Submit(context.Background(), func(_ context.Context, email, password string) error {
		gotEmail, gotPassword = email, password
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "/todos", res.Redirect)
	require.Equal(t, "jane@example.com", gotEmail)
	require.Equal(t, "Sup3rSecret", gotPassword)
	require.Equal(t, authform.View{SubmitLabel: "Sign In"}, form.View())
}

func TestForm_SignupRedirectsToLogin(t *testing.T) {
	form := authform.NewSignup()
	form.SetFields("jane@example.com", "Sup3rSecret")

	res, err := form.Submit(context.Background(), func(context.Context, string, string) error { return nil })
	require.NoError(t, err)
	require.Equal(t, "/login?notice=Account+created.+Sign+in+to+continue.", res.Redirect)
}

func TestForm_RemoteErrorIsShownVerbatim(t *testing.T) {
	form := authform.NewLogin()
	form.SetFields("jane@example.com", "wrong")

	calls := 0
	remote := &identity.Error{Message: "Invalid login credentials"}
	_, err := form.Submit(context.Background(), func(context.Context, string, string) error {
		calls++
		return remote
	})
	require.ErrorIs(t, err, remote)
	require.Equal(t, 1, calls)

	view := form.View()
	require.Equal(t, "Invalid login credentials", view.Error)
	require.Equal(t, "jane@example.com", view.Email)
	require.False(t, view.InFlight)

	t.Run("next submit clears the previous error", func(t *testing.T) {
		form.SetFields("jane@example.com", "Sup3rSecret")
		_, err := form.Submit(context.Background(), func(context.Context, string, string) error { return nil })
		require.NoError(t, err)
		require.Empty(t, form.View().Error)
	})
}

func TestForm_RequiredFields(t *testing.T) {
	form := authform.NewSignup()
	form.SetFields("   ", "Sup3rSecret")

	_, err := form.Submit(context.Background(), func(context.Context, string, string) error {
		t.Fatal("submit must not be called")
		return nil
	})
	require.ErrorIs(t, err, authform.ErrMissingFields)
	require.Equal(t, authform.MsgMissingFields, form.View().Error)
}

func TestForm_InFlight(t *testing.T) {
	form := authform.NewLogin()
	form.SetFields("jane@example.com", "Sup3rSecret")

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := form.Submit(context.Background(), func(context.Context, string, string) error {
			close(started)
			<-release
			return errors.New("User already registered")
		})
		done <- err
	}()

	<-started
	view := form.View()
	require.True(t, view.InFlight)
	require.Equal(t, "Signing in...", view.SubmitLabel)

	_, err := form.Submit(context.Background(), func(context.Context, string, string) error { return nil })
	require.ErrorIs(t, err, authform.ErrSubmissionInFlight)

	close(release)
	require.Error(t, <-done)
	require.False(t, form.View().InFlight)
	require.Equal(t, "Sign In", form.View().SubmitLabel)
}
