package session

import "time"

// Session is what is persisted for one browser session
type Session struct {
	// Identity
	UserID string
	Email  string

	// Tokens (refresh is essential, access is convenience)
	AccessToken       string
	RefreshToken      string
	ProviderSessionID string

	// Session management
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Repo persists browser session ID -> provider tokens. Get returns
// errors.ErrSessionNotFound when nothing is stored.
type Repo interface {
	Upsert(sessionID string, session Session) error
	Get(sessionID string) (Session, error)
	Delete(sessionID string) error
	FindByProviderSession(providerSessionID string) ([]string, error)
}
