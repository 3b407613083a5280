package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-todo-server/identity"
	apperrors "github.com/jrsteele09/go-todo-server/internal/errors"
	"github.com/jrsteele09/go-todo-server/session"
	"github.com/jrsteele09/go-todo-server/token/jwt"
	"github.com/jrsteele09/go-todo-server/token/refresh"
	refreshrepofake "github.com/jrsteele09/go-todo-server/token/refresh/repofake"
	fakeuserrepo "github.com/jrsteele09/go-todo-server/users/repofake"
	"github.com/stretchr/testify/require"
)

const (
	email    = "jane@example.com"
	password = "Sup3rSecret"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupProvider(t *testing.T) (*identity.Local, *clock) {
	t.Helper()
	c := &clock{now: time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)}
	jwt.NowTimeFunc = c.Now
	refresh.NowTimeFunc = c.Now
	t.Cleanup(func() {
		jwt.NowTimeFunc = time.Now
		refresh.NowTimeFunc = time.Now
	})

	p, err := identity.NewLocal(
		fakeuserrepo.NewFakeUserRepo(),
		refreshrepofake.NewFakeRefreshTokenRepo(),
		identity.LocalConfig{
			Issuer:             "todo-test",
			Secret:             []byte("session-secret"),
			AccessTokenExpiry:  time.Hour,
			RefreshTokenExpiry: 24 * time.Hour,
			RefreshTokenLength: 16,
		},
		identity.WithNowTime(c.Now),
	)
	require.NoError(t, err)
	t.Cleanup(p.Close)

	_, err = p.SignUp(context.Background(), identity.Credentials{Email: email, Password: password})
	require.NoError(t, err)
	return p, c
}

func setupStore(t *testing.T, provider identity.Provider, repo session.Repo, options ...session.Option) *session.Store {
	t.Helper()
	store := session.NewStore(provider, repo, options...)
	store.Start(context.Background())
	t.Cleanup(store.Close)
	return store
}

func waitFor(t *testing.T, events <-chan identity.Event, kind identity.EventKind, sid string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-events:
			if e.Kind == kind && e.SessionID == sid {
				return
			}
		case <-deadline:
			t.Fatalf("no %s event for %s", kind, sid)
		}
	}
}

func TestStore_UnknownSessionRestoresSignedOut(t *testing.T) {
	p, _ := setupProvider(t)
	store := setupStore(t, p, session.NewInMemoryRepo())

	require.Equal(t, session.State{Loading: true}, store.Current("browser-1"))
	require.Equal(t, session.State{}, store.Restore(context.Background(), "browser-1"))
	require.Equal(t, session.State{}, store.Current("browser-1"))
}

func TestStore_SignIn(t *testing.T) {
	p, _ := setupProvider(t)
	repo := session.NewInMemoryRepo()
	store := setupStore(t, p, repo)
	ctx := context.Background()

	events, unsubscribe := store.Subscribe()
	defer unsubscribe()

	t.Run("bad credentials leave the session signed out", func(t *testing.T) {
		err := store.SignIn(ctx, "browser-1", email, "Wr0ngPassword")
		require.EqualError(t, err, "Invalid login credentials")
		require.Equal(t, session.State{}, store.Restore(ctx, "browser-1"))
	})

	require.NoError(t, store.SignIn(ctx, "browser-1", email, password))
	state := store.Current("browser-1")
	require.False(t, state.Loading)
	require.NotNil(t, state.User)
	require.Equal(t, email, state.User.Email)
	waitFor(t, events, identity.SignedIn, "browser-1")

	t.Run("a restarted store restores from the repo", func(t *testing.T) {
		restarted := setupStore(t, p, repo)
		require.True(t, restarted.Current("browser-1").Loading)
		restored := restarted.Restore(ctx, "browser-1")
		require.NotNil(t, restored.User)
		require.Equal(t, email, restored.User.Email)
	})
}

func TestStore_RestoreRefreshesExpiredAccessToken(t *testing.T) {
	p, c := setupProvider(t)
	repo := session.NewInMemoryRepo()
	store := setupStore(t, p, repo)
	ctx := context.Background()

	require.NoError(t, store.SignIn(ctx, "browser-1", email, password))
	before, err := repo.Get("browser-1")
	require.NoError(t, err)

	c.Advance(2 * time.Hour)
	restarted := setupStore(t, p, repo)
	state := restarted.Restore(ctx, "browser-1")
	require.NotNil(t, state.User)

	after, err := repo.Get("browser-1")
	require.NoError(t, err)
	require.NotEqual(t, before.AccessToken, after.AccessToken)
	require.NotEqual(t, before.RefreshToken, after.RefreshToken)
	require.Equal(t, before.ProviderSessionID, after.ProviderSessionID)
}

func TestStore_RestoreWithExpiredRefreshTokenSignsOut(t *testing.T) {
	p, c := setupProvider(t)
	repo := session.NewInMemoryRepo()
	store := setupStore(t, p, repo)
	ctx := context.Background()

	require.NoError(t, store.SignIn(ctx, "browser-1", email, password))

	c.Advance(48 * time.Hour)
	store.Close()
	restarted := setupStore(t, p, repo)
	events, unsubscribe := restarted.Subscribe()
	defer unsubscribe()

	state := restarted.Restore(ctx, "browser-1")
	require.Nil(t, state.User)
	require.False(t, state.Loading)
	waitFor(t, events, identity.SignedOut, "browser-1")

	_, err := repo.Get("browser-1")
	require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
}

func TestStore_ProviderSignOutClearsMatchingSessionOnly(t *testing.T) {
	p, _ := setupProvider(t)
	repo := session.NewInMemoryRepo()
	store := setupStore(t, p, repo)
	ctx := context.Background()

	require.NoError(t, store.SignIn(ctx, "browser-a", email, password))
	require.NoError(t, store.SignIn(ctx, "browser-b", email, password))

	events, unsubscribe := store.Subscribe()
	defer unsubscribe()

	persisted, err := repo.Get("browser-a")
	require.NoError(t, err)
	require.NoError(t, p.SignOut(ctx, persisted.AccessToken))

	waitFor(t, events, identity.SignedOut, "browser-a")
	require.Nil(t, store.Current("browser-a").User)
	require.NotNil(t, store.Current("browser-b").User)
}

func TestStore_SignOut(t *testing.T) {
	p, _ := setupProvider(t)
	repo := session.NewInMemoryRepo()
	store := setupStore(t, p, repo)
	ctx := context.Background()

	require.NoError(t, store.SignIn(ctx, "browser-1", email, password))
	persisted, err := repo.Get("browser-1")
	require.NoError(t, err)

	events, unsubscribe := store.Subscribe()
	defer unsubscribe()

	require.NoError(t, store.SignOut(ctx, "browser-1"))
	require.Equal(t, session.State{}, store.Current("browser-1"))
	waitFor(t, events, identity.SignedOut, "browser-1")

	_, err = p.GetUser(ctx, persisted.AccessToken)
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

// failingSignOut is a provider whose sign out always fails
type failingSignOut struct {
	identity.Provider
}

func (failingSignOut) SignOut(context.Context, string) error {
	return apperrors.ErrInternal
}

func TestStore_SignOutClearsLocallyWhenProviderFails(t *testing.T) {
	p, _ := setupProvider(t)
	store := setupStore(t, failingSignOut{p}, session.NewInMemoryRepo())
	ctx := context.Background()

	require.NoError(t, store.SignIn(ctx, "browser-1", email, password))
	require.ErrorIs(t, store.SignOut(ctx, "browser-1"), apperrors.ErrInternal)
	require.Nil(t, store.Current("browser-1").User)
	require.Nil(t, store.Restore(ctx, "browser-1").User)
}

// countingProvider blocks GetUser until release is closed
type countingProvider struct {
	identity.Provider
	calls   atomic.Int32
	release chan struct{}
}

func (c *countingProvider) GetUser(ctx context.Context, accessToken string) (*identity.User, error) {
	c.calls.Add(1)
	<-c.release
	return c.Provider.GetUser(ctx, accessToken)
}

func TestStore_ConcurrentRestoreSharesOneLookup(t *testing.T) {
	p, _ := setupProvider(t)
	repo := session.NewInMemoryRepo()
	ctx := context.Background()

	require.NoError(t, setupStore(t, p, repo).SignIn(ctx, "browser-1", email, password))

	counting := &countingProvider{Provider: p, release: make(chan struct{})}
	store := setupStore(t, counting, repo)

	var wg sync.WaitGroup
	states := make([]session.State, 5)
	for i := range states {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			states[i] = store.Restore(ctx, "browser-1")
		}(i)
	}

	require.Eventually(t, func() bool { return counting.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	close(counting.release)
	wg.Wait()

	require.Equal(t, int32(1), counting.calls.Load())
	for _, s := range states {
		require.NotNil(t, s.User)
		require.Equal(t, email, s.User.Email)
	}
}

func TestStore_ValidateEnforcesExpiry(t *testing.T) {
	t.Run("expired access token is refreshed", func(t *testing.T) {
		p, c := setupProvider(t)
		repo := session.NewInMemoryRepo()
		store := setupStore(t, p, repo, session.WithNowTime(c.Now))
		ctx := context.Background()

		require.NoError(t, store.SignIn(ctx, "browser-1", email, password))
		before, err := repo.Get("browser-1")
		require.NoError(t, err)

		c.Advance(30 * time.Minute)
		require.NotNil(t, store.Validate(ctx, "browser-1").User)
		same, err := repo.Get("browser-1")
		require.NoError(t, err)
		require.Equal(t, before.AccessToken, same.AccessToken)

		c.Advance(90 * time.Minute)
		state := store.Validate(ctx, "browser-1")
		require.NotNil(t, state.User)
		require.Equal(t, email, state.User.Email)

		after, err := repo.Get("browser-1")
		require.NoError(t, err)
		require.NotEqual(t, before.AccessToken, after.AccessToken)
		require.True(t, after.ExpiresAt.After(c.Now()))
	})

	t.Run("expired refresh token signs out", func(t *testing.T) {
		p, c := setupProvider(t)
		repo := session.NewInMemoryRepo()
		store := setupStore(t, p, repo, session.WithNowTime(c.Now))
		ctx := context.Background()

		require.NoError(t, store.SignIn(ctx, "browser-1", email, password))
		require.NotNil(t, store.Current("browser-1").User)

		events, unsubscribe := store.Subscribe()
		defer unsubscribe()

		c.Advance(30 * 24 * time.Hour)
		state := store.Validate(ctx, "browser-1")
		require.Nil(t, state.User)
		require.False(t, state.Loading)
		waitFor(t, events, identity.SignedOut, "browser-1")
		require.Equal(t, session.State{}, store.Current("browser-1"))

		_, err := repo.Get("browser-1")
		require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
	})
}

var errUnreachable = errors.New("dial tcp: connection refused")

// flakyProvider fails every token call with a transport error while down
type flakyProvider struct {
	identity.Provider
	down atomic.Bool
}

func (f *flakyProvider) GetUser(ctx context.Context, accessToken string) (*identity.User, error) {
	if f.down.Load() {
		return nil, errUnreachable
	}
	return f.Provider.GetUser(ctx, accessToken)
}

func (f *flakyProvider) RefreshSession(ctx context.Context, refreshToken string) (*identity.AuthSession, error) {
	if f.down.Load() {
		return nil, errUnreachable
	}
	return f.Provider.RefreshSession(ctx, refreshToken)
}

func TestStore_UnreachableProviderKeepsSession(t *testing.T) {
	p, _ := setupProvider(t)
	repo := session.NewInMemoryRepo()
	ctx := context.Background()

	require.NoError(t, setupStore(t, p, repo).SignIn(ctx, "browser-1", email, password))

	flaky := &flakyProvider{Provider: p}
	flaky.down.Store(true)
	store := setupStore(t, flaky, repo)

	state := store.Restore(ctx, "browser-1")
	require.Nil(t, state.User)
	require.True(t, state.Loading)
	require.True(t, store.Current("browser-1").Loading)

	_, err := repo.Get("browser-1")
	require.NoError(t, err)

	flaky.down.Store(false)
	state = store.Restore(ctx, "browser-1")
	require.NotNil(t, state.User)
	require.Equal(t, email, state.User.Email)
}
