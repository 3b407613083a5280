package clientrepo

import (
	"sync"
	"time"

	"github.com/jrsteele09/go-todo-server/authform"
	"github.com/jrsteele09/go-todo-server/tasklist"
)

// ClientState is everything one browser holds between requests
type ClientState struct {
	Tasks     *tasklist.Controller
	Login     *authform.Form
	Signup    *authform.Form
	CreatedAt time.Time

	mu    sync.Mutex
	draft string
}

// KeepDraft remembers the text of a create the store rejected
func (c *ClientState) KeepDraft(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = text
}

// TakeDraft returns the kept text once
func (c *ClientState) TakeDraft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	draft := c.draft
	c.draft = ""
	return draft
}

type Repo interface {
	GetOrCreate(sid string, create func() *ClientState) (*ClientState, error)
	Get(sid string) (*ClientState, error)
	Delete(sid string) error
}
