package refreshrepofake

import (
	"sync"

	"github.com/jrsteele09/go-todo-server/internal/errors"
	"github.com/jrsteele09/go-todo-server/token/refresh"
)

var _ refresh.Repo = (*FakeRefreshTokenRepo)(nil)

type FakeRefreshTokenRepo struct {
	tokens   map[string]refresh.StoredRefreshToken
	sessions map[string]map[string]struct{} // session ID to token set
	lock     sync.RWMutex
}

func NewFakeRefreshTokenRepo() *FakeRefreshTokenRepo {
	return &FakeRefreshTokenRepo{
		tokens:   make(map[string]refresh.StoredRefreshToken),
		sessions: make(map[string]map[string]struct{}),
	}
}

func (tr *FakeRefreshTokenRepo) Upsert(refreshToken *refresh.StoredRefreshToken) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	tr.tokens[refreshToken.Token] = *refreshToken
	if _, ok := tr.sessions[refreshToken.SessionID]; !ok {
		tr.sessions[refreshToken.SessionID] = make(map[string]struct{})
	}
	tr.sessions[refreshToken.SessionID][refreshToken.Token] = struct{}{}
	return nil
}

func (tr *FakeRefreshTokenRepo) Delete(token string) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	rt, ok := tr.tokens[token]
	if !ok {
		return errors.ErrNotFound
	}
	delete(tr.tokens, token)
	if set, ok := tr.sessions[rt.SessionID]; ok {
		delete(set, token)
		if len(set) == 0 {
			delete(tr.sessions, rt.SessionID)
		}
	}
	return nil
}

func (tr *FakeRefreshTokenRepo) Get(token string) (*refresh.StoredRefreshToken, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	rt, ok := tr.tokens[token]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return &rt, nil
}

func (tr *FakeRefreshTokenRepo) DeleteBySession(sessionID string) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	for token := range tr.sessions[sessionID] {
		delete(tr.tokens, token)
	}
	delete(tr.sessions, sessionID)
	return nil
}

func (tr *FakeRefreshTokenRepo) HasSession(sessionID string) bool {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	return len(tr.sessions[sessionID]) > 0
}
