package clientrepo

import (
	"sync"

	"github.com/jrsteele09/go-todo-server/internal/errors"
)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface
type InMemoryRepo struct {
	mu      sync.RWMutex
	clients map[string]*ClientState
}

// NewInMemoryRepo creates a new in-memory client state repository
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		clients: make(map[string]*ClientState),
	}
}

// GetOrCreate returns the state of sid, creating it on first use. Concurrent
// first requests for the same sid share one state.
func (r *InMemoryRepo) GetOrCreate(sid string, create func() *ClientState) (*ClientState, error) {
	if sid == "" {
		return nil, errors.Wrapf(errors.ErrInvalidSessionID, "[InMemoryRepo.GetOrCreate] sid cannot be empty")
	}

	r.mu.RLock()
	state, exists := r.clients[sid]
	r.mu.RUnlock()
	if exists {
		return state, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if state, exists := r.clients[sid]; exists {
		return state, nil
	}
	state = create()
	r.clients[sid] = state
	return state, nil
}

// Get retrieves the state of sid
func (r *InMemoryRepo) Get(sid string) (*ClientState, error) {
	if sid == "" {
		return nil, errors.Wrapf(errors.ErrInvalidSessionID, "[InMemoryRepo.Get] sid cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	state, exists := r.clients[sid]
	if !exists {
		return nil, errors.ErrSessionNotFound
	}
	return state, nil
}

// Delete removes the state of sid
func (r *InMemoryRepo) Delete(sid string) error {
	if sid == "" {
		return errors.Wrapf(errors.ErrInvalidSessionID, "[InMemoryRepo.Delete] sid cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.clients, sid)
	return nil
}
