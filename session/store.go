// Package session keeps the signed-in state of every browser session and
// keeps it in step with the identity provider's auth state events.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-todo-server/identity"
	"github.com/jrsteele09/go-todo-server/internal/errors"
	"github.com/rs/zerolog/log"
)

// State is the snapshot consumers see. User is nil when signed out.
type State struct {
	User    *identity.User
	Loading bool
}

type entry struct {
	state    State
	restored chan struct{} // closed once an in-flight Restore finishes
}

// Store is the process-wide session store. Subscribers receive
// identity.Event values whose SessionID is the browser session ID.
type Store struct {
	provider identity.Provider
	repo     Repo
	nowTime  func() time.Time

	mu       sync.RWMutex
	sessions map[string]*entry

	events      *identity.Broadcaster
	startOnce   sync.Once
	closeOnce   sync.Once
	unsubscribe func()
	done        chan struct{}
	stopped     chan struct{}
}

type Option func(*Store)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Store) {
		s.nowTime = nowFunc
	}
}

func NewStore(provider identity.Provider, repo Repo, options ...Option) *Store {
	s := &Store{
		provider: provider,
		repo:     repo,
		nowTime:  time.Now,
		sessions: make(map[string]*entry),
		events:   identity.NewBroadcaster(),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Current returns the state of a browser session. A session that has not
// been restored yet is loading.
func (s *Store) Current(sid string) State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[sid]
	if !ok || e.restored != nil {
		return State{Loading: true}
	}
	return e.state
}

// Validate returns the state of sid for a request. A session that is still
// loading, or whose access token has expired, goes through Restore so the
// provider decides whether it is still signed in.
func (s *Store) Validate(ctx context.Context, sid string) State {
	state := s.Current(sid)
	if state.User != nil && s.expired(sid) {
		s.forget(sid)
		return s.Restore(ctx, sid)
	}
	if state.Loading {
		return s.Restore(ctx, sid)
	}
	return state
}

func (s *Store) expired(sid string) bool {
	persisted, err := s.repo.Get(sid)
	if err != nil || persisted.ExpiresAt.IsZero() {
		return false
	}
	return !persisted.ExpiresAt.After(s.nowTime())
}

// forget drops the cached state of sid unless a restore is in flight
func (s *Store) forget(sid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[sid]; ok && e.restored == nil {
		delete(s.sessions, sid)
	}
}

// Restore resolves the user behind the persisted tokens of sid, refreshing
// them when the access token has expired. Concurrent calls for the same sid
// share one provider round trip.
func (s *Store) Restore(ctx context.Context, sid string) State {
	s.mu.Lock()
	e, ok := s.sessions[sid]
	if ok && e.restored == nil {
		s.mu.Unlock()
		return e.state
	}
	if ok {
		wait := e.restored
		s.mu.Unlock()
		select {
		case <-wait:
			return s.Current(sid)
		case <-ctx.Done():
			return State{Loading: true}
		}
	}
	e = &entry{state: State{Loading: true}, restored: make(chan struct{})}
	s.sessions[sid] = e
	s.mu.Unlock()

	state, keep := s.resolve(ctx, sid)

	s.mu.Lock()
	if keep {
		s.sessions[sid] = &entry{state: state}
	} else {
		delete(s.sessions, sid)
	}
	close(e.restored)
	s.mu.Unlock()
	return state
}

// resolve reports the state of sid and whether it may be cached. A provider
// that cannot be reached leaves the session loading and persisted.
func (s *Store) resolve(ctx context.Context, sid string) (State, bool) {
	persisted, err := s.repo.Get(sid)
	if err != nil {
		if !errors.Is(err, errors.ErrSessionNotFound) {
			log.Err(err).Str("session", sid).Msg("Failed to read persisted session")
		}
		return State{}, true
	}

	user, err := s.provider.GetUser(ctx, persisted.AccessToken)
	if err == nil {
		return State{User: user}, true
	}
	if persisted.RefreshToken == "" {
		s.clear(sid)
		return State{}, true
	}

	refreshed, err := s.provider.RefreshSession(ctx, persisted.RefreshToken)
	if err != nil {
		var userErr *identity.Error
		if !errors.As(err, &userErr) {
			log.Err(err).Str("session", sid).Msg("Failed to refresh session")
			return State{Loading: true}, false
		}
		s.clear(sid)
		return State{}, true
	}

	if err := s.repo.Upsert(sid, s.persisted(refreshed, persisted.CreatedAt)); err != nil {
		log.Err(err).Str("session", sid).Msg("Failed to persist refreshed session")
	}
	user = &identity.User{ID: refreshed.User.ID, Email: refreshed.User.Email}
	return State{User: user}, true
}

// SignIn signs sid in with a password. Errors from the provider are returned
// unchanged so their message can be shown verbatim.
func (s *Store) SignIn(ctx context.Context, sid, email, password string) error {
	auth, err := s.provider.SignInWithPassword(ctx, identity.Credentials{Email: email, Password: password})
	if err != nil {
		return err
	}

	if err := s.repo.Upsert(sid, s.persisted(auth, s.nowTime())); err != nil {
		return errors.Wrapf(err, "[Store.SignIn] repo.Upsert")
	}
	user := auth.User
	s.setState(sid, State{User: &user})
	s.events.Publish(identity.Event{Kind: identity.SignedIn, SessionID: sid})
	return nil
}

// SignUp registers an account without signing in
func (s *Store) SignUp(ctx context.Context, email, password string) error {
	_, err := s.provider.SignUp(ctx, identity.Credentials{Email: email, Password: password})
	return err
}

// SignOut ends the provider session and clears sid. Local state is cleared
// even when the provider call fails; that error is logged and returned.
func (s *Store) SignOut(ctx context.Context, sid string) error {
	persisted, err := s.repo.Get(sid)
	if !s.clear(sid) {
		s.setState(sid, State{})
		s.events.Publish(identity.Event{Kind: identity.SignedOut, SessionID: sid})
	}
	if err != nil || persisted.AccessToken == "" {
		return nil
	}

	if err := s.provider.SignOut(ctx, persisted.AccessToken); err != nil {
		log.Err(err).Str("session", sid).Msg("Provider sign out failed")
		return err
	}
	return nil
}

// Subscribe returns SignedIn and SignedOut notifications keyed by browser
// session ID.
func (s *Store) Subscribe() (<-chan identity.Event, func()) {
	return s.events.Subscribe()
}

// Start subscribes to the provider's auth state events. Calls after the
// first are no-ops.
func (s *Store) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		events, unsubscribe := s.provider.OnAuthStateChange()
		s.unsubscribe = unsubscribe
		go s.consume(ctx, events)
	})
}

func (s *Store) consume(ctx context.Context, events <-chan identity.Event) {
	defer close(s.stopped)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			s.handle(e)
		}
	}
}

func (s *Store) handle(e identity.Event) {
	sids, err := s.repo.FindByProviderSession(e.SessionID)
	if err != nil {
		log.Err(err).Str("event", e.Kind.String()).Msg("Failed to find browser sessions")
		return
	}

	switch e.Kind {
	case identity.SignedOut:
		for _, sid := range sids {
			log.Info().Str("session", sid).Msg("Provider signed the session out")
			s.clear(sid)
		}
	case identity.TokenRefreshed:
		if e.Session == nil {
			return
		}
		for _, sid := range sids {
			persisted, err := s.repo.Get(sid)
			if err != nil {
				continue
			}
			if err := s.repo.Upsert(sid, s.persisted(e.Session, persisted.CreatedAt)); err != nil {
				log.Err(err).Str("session", sid).Msg("Failed to store refreshed tokens")
			}
		}
	default:
		log.Debug().Str("event", e.Kind.String()).Str("provider_session", e.SessionID).Msg("Auth state change")
	}
}

// Close stops consuming provider events and ends every subscription
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.unsubscribe != nil {
			s.unsubscribe()
			<-s.stopped
		}
		s.events.Close()
	})
}

// clear drops the persisted session and signs sid out. It publishes
// SignedOut and reports true only if a persisted session existed.
func (s *Store) clear(sid string) bool {
	s.mu.Lock()
	_, err := s.repo.Get(sid)
	existed := err == nil
	if existed {
		if err := s.repo.Delete(sid); err != nil {
			log.Err(err).Str("session", sid).Msg("Failed to delete persisted session")
		}
	}
	if e, ok := s.sessions[sid]; ok && e.restored == nil {
		e.state = State{}
	}
	s.mu.Unlock()

	if existed {
		s.events.Publish(identity.Event{Kind: identity.SignedOut, SessionID: sid})
	}
	return existed
}

func (s *Store) setState(sid string, state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sid] = &entry{state: state}
}

func (s *Store) persisted(auth *identity.AuthSession, createdAt time.Time) Session {
	return Session{
		UserID:            auth.User.ID,
		Email:             auth.User.Email,
		AccessToken:       auth.AccessToken,
		RefreshToken:      auth.RefreshToken,
		ProviderSessionID: auth.SessionID,
		ExpiresAt:         auth.ExpiresAt,
		CreatedAt:         createdAt,
	}
}
