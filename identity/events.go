package identity

import (
	"sync"

	"github.com/rs/zerolog/log"
)

type EventKind int

const (
	SignedIn EventKind = iota + 1
	SignedOut
	TokenRefreshed
)

func (k EventKind) String() string {
	switch k {
	case SignedIn:
		return "SIGNED_IN"
	case SignedOut:
		return "SIGNED_OUT"
	case TokenRefreshed:
		return "TOKEN_REFRESHED"
	default:
		return "UNKNOWN"
	}
}

// Event is an auth state change pushed by a provider. Session is set for
// SignedIn and TokenRefreshed.
type Event struct {
	Kind      EventKind
	SessionID string
	Session   *AuthSession
}

const defaultEventBuffer = 64

// Broadcaster fans provider events out to subscribers without ever blocking
// the publisher. A full subscriber loses the event and a warning is logged.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	buffer int
	closed bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs:   make(map[int]chan Event),
		buffer: defaultEventBuffer,
	}
}

// Subscribe returns the event channel and the func that ends the subscription
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

func (b *Broadcaster) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			log.Warn().Str("event", e.Kind.String()).Str("session", e.SessionID).Msg("auth event dropped, subscriber is full")
		}
	}
}

// Close ends every subscription
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
	b.closed = true
}
