package session

import (
	"fmt"
	"sync"

	"github.com/jrsteele09/go-todo-server/internal/errors"
)

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo is an in-memory implementation of Repo
type InMemoryRepo struct {
	mu       sync.RWMutex
	sessions map[string]Session             // browser session ID -> Session
	byRemote map[string]map[string]struct{} // provider session ID -> browser session IDs
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		sessions: make(map[string]Session),
		byRemote: make(map[string]map[string]struct{}),
	}
}

// Upsert creates or replaces the session stored for sessionID
func (r *InMemoryRepo) Upsert(sessionID string, session Session) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.unindex(sessionID)
	r.sessions[sessionID] = session
	if session.ProviderSessionID != "" {
		if _, ok := r.byRemote[session.ProviderSessionID]; !ok {
			r.byRemote[session.ProviderSessionID] = make(map[string]struct{})
		}
		r.byRemote[session.ProviderSessionID][sessionID] = struct{}{}
	}
	return nil
}

func (r *InMemoryRepo) Get(sessionID string) (Session, error) {
	if sessionID == "" {
		return Session{}, fmt.Errorf("sessionID is required")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return Session{}, errors.ErrSessionNotFound
	}
	return session, nil
}

// Delete removes a session. Deleting an unknown session is not an error.
func (r *InMemoryRepo) Delete(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.unindex(sessionID)
	delete(r.sessions, sessionID)
	return nil
}

func (r *InMemoryRepo) FindByProviderSession(providerSessionID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.byRemote[providerSessionID]))
	for id := range r.byRemote[providerSessionID] {
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *InMemoryRepo) unindex(sessionID string) {
	old, ok := r.sessions[sessionID]
	if !ok || old.ProviderSessionID == "" {
		return
	}
	browsers := r.byRemote[old.ProviderSessionID]
	delete(browsers, sessionID)
	if len(browsers) == 0 {
		delete(r.byRemote, old.ProviderSessionID)
	}
}
