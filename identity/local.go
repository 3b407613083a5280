package identity

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-todo-server/internal/errors"
	"github.com/jrsteele09/go-todo-server/token/jwt"
	"github.com/jrsteele09/go-todo-server/token/refresh"
	"github.com/jrsteele09/go-todo-server/users"
	"github.com/pkg/errors"
)

// Messages shown on the auth forms
const (
	msgMissingCredentials  = "Email and password are required"
	msgInvalidCredentials  = "Invalid login credentials"
	msgInvalidEmail        = "Unable to validate email address: invalid format"
	msgUserExists          = "User already registered"
	msgInvalidRefreshToken = "Invalid Refresh Token"
	msgSessionExpired      = "Session expired"
)

var _ Provider = (*Local)(nil)

// LocalConfig holds the token settings of the Local provider
type LocalConfig struct {
	Issuer             string
	Secret             []byte
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	RefreshTokenLength int
}

// Local is an in-process identity provider: bcrypt password accounts, HS256
// access tokens and rotating opaque refresh tokens.
type Local struct {
	users     users.Repo
	creator   *jwt.Creator
	inspector *jwt.Inspector
	refresh   *refresh.Manager
	events    *Broadcaster
	nowTime   func() time.Time
}

// LocalOption defines a function type to modify the Local provider.
type LocalOption func(*Local)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) LocalOption {
	return func(l *Local) {
		l.nowTime = nowFunc
	}
}

// NewLocal initializes a Local provider with its repositories.
func NewLocal(userRepo users.Repo, refreshRepo refresh.Repo, cfg LocalConfig, options ...LocalOption) (*Local, error) {
	if userRepo == nil {
		return nil, errors.New("[NewLocal] users repo is required")
	}
	if refreshRepo == nil {
		return nil, errors.New("[NewLocal] refresh token repo is required")
	}
	if len(cfg.Secret) == 0 {
		return nil, errors.New("[NewLocal] token secret is required")
	}

	signer := jwt.NewHMACSigner(cfg.Secret)
	manager := refresh.NewManager(refreshRepo, cfg.RefreshTokenLength, cfg.RefreshTokenExpiry)

	l := &Local{
		users:     userRepo,
		creator:   jwt.NewCreator(cfg.Issuer, cfg.AccessTokenExpiry, signer),
		inspector: jwt.NewInspector(cfg.Issuer, signer, revokedSessions{manager}),
		refresh:   manager,
		events:    NewBroadcaster(),
		nowTime:   time.Now,
	}
	for _, opt := range options {
		opt(l)
	}
	return l, nil
}

// revokedSessions treats a provider session without refresh tokens as signed out
type revokedSessions struct {
	manager *refresh.Manager
}

func (r revokedSessions) IsRevoked(sessionID string) bool {
	return !r.manager.Active(sessionID)
}

// SignInWithPassword checks the credentials and starts a new provider session.
func (l *Local) SignInWithPassword(_ context.Context, creds Credentials) (*AuthSession, error) {
	if strings.TrimSpace(creds.Email) == "" || creds.Password == "" {
		return nil, userError(msgMissingCredentials, apperrors.ErrInvalidCredentials)
	}

	user, err := l.users.GetByEmail(creds.Email)
	if err != nil {
		return nil, userError(msgInvalidCredentials, apperrors.ErrInvalidCredentials)
	}
	if !users.CheckPasswordHash(creds.Password, user.PasswordHash) {
		return nil, userError(msgInvalidCredentials, apperrors.ErrInvalidCredentials)
	}

	session, err := l.startSession(user, uuid.New().String())
	if err != nil {
		return nil, errors.Wrap(err, "[Local.SignInWithPassword] startSession")
	}
	if err := l.users.SetLastLogin(user.ID, l.nowTime()); err != nil {
		return nil, errors.Wrap(err, "[Local.SignInWithPassword] users.SetLastLogin")
	}

	l.events.Publish(Event{Kind: SignedIn, SessionID: session.SessionID, Session: session})
	return session, nil
}

// SignUp registers a new account. It does not sign the user in.
func (l *Local) SignUp(_ context.Context, creds Credentials) (*User, error) {
	if strings.TrimSpace(creds.Email) == "" || creds.Password == "" {
		return nil, userError(msgMissingCredentials, apperrors.ErrInvalidCredentials)
	}
	if _, err := mail.ParseAddress(creds.Email); err != nil {
		return nil, userError(msgInvalidEmail, apperrors.ErrInvalidEmail)
	}
	if err := users.ValidatePasswordStrength(creds.Password); err != nil {
		return nil, userError(err.Error(), err)
	}

	hash, err := users.HashPassword(creds.Password)
	if err != nil {
		return nil, errors.Wrap(err, "[Local.SignUp] HashPassword")
	}

	user := &users.User{
		Email:        users.NormaliseEmail(creds.Email),
		PasswordHash: hash,
		DateJoined:   l.nowTime(),
	}
	if err := l.users.Create(user); err != nil {
		if apperrors.Is(err, apperrors.ErrUserExists) {
			return nil, userError(msgUserExists, err)
		}
		return nil, errors.Wrap(err, "[Local.SignUp] users.Create")
	}
	return &User{ID: user.ID, Email: user.Email}, nil
}

// SignOut ends the provider session of the access token, expired or not.
func (l *Local) SignOut(_ context.Context, accessToken string) error {
	claims, err := l.inspector.Inspect(accessToken)
	if err != nil && !apperrors.Is(err, apperrors.ErrTokenExpired) {
		return errors.Wrap(err, "[Local.SignOut] Inspect")
	}
	if err := l.refresh.EndSession(claims.SessionID); err != nil {
		return errors.Wrap(err, "[Local.SignOut] EndSession")
	}
	l.events.Publish(Event{Kind: SignedOut, SessionID: claims.SessionID})
	return nil
}

// GetUser returns the user behind a live access token. An expired token
// returns errors.ErrTokenExpired.
func (l *Local) GetUser(_ context.Context, accessToken string) (*User, error) {
	claims, err := l.inspector.Inspect(accessToken)
	if err != nil {
		return nil, err
	}
	user, err := l.users.GetByID(claims.Subject)
	if err != nil {
		return nil, errors.Wrap(err, "[Local.GetUser] users.GetByID")
	}
	return &User{ID: user.ID, Email: user.Email}, nil
}

// RefreshSession rotates the refresh token and issues a new access token. An
// expired refresh token ends the provider session and publishes SignedOut.
func (l *Local) RefreshSession(_ context.Context, refreshToken string) (*AuthSession, error) {
	rotated, err := l.refresh.Rotate(refreshToken)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrRefreshTokenExpired) {
			_ = l.refresh.EndSession(rotated.SessionID)
			l.events.Publish(Event{Kind: SignedOut, SessionID: rotated.SessionID})
			return nil, userError(msgSessionExpired, err)
		}
		return nil, userError(msgInvalidRefreshToken, err)
	}

	user, err := l.users.GetByID(rotated.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "[Local.RefreshSession] users.GetByID")
	}
	accessToken, expiresAt, err := l.creator.CreateAccessToken(user, rotated.SessionID)
	if err != nil {
		return nil, errors.Wrap(err, "[Local.RefreshSession] CreateAccessToken")
	}

	session := &AuthSession{
		SessionID:    rotated.SessionID,
		AccessToken:  accessToken,
		RefreshToken: rotated.Token,
		ExpiresAt:    expiresAt,
		User:         User{ID: user.ID, Email: user.Email},
	}
	l.events.Publish(Event{Kind: TokenRefreshed, SessionID: session.SessionID, Session: session})
	return session, nil
}

func (l *Local) OnAuthStateChange() (<-chan Event, func()) {
	return l.events.Subscribe()
}

// Close ends every auth state subscription
func (l *Local) Close() {
	l.events.Close()
}

func (l *Local) startSession(user *users.User, sessionID string) (*AuthSession, error) {
	rt, err := l.refresh.Create(user.ID, sessionID)
	if err != nil {
		return nil, err
	}
	accessToken, expiresAt, err := l.creator.CreateAccessToken(user, sessionID)
	if err != nil {
		return nil, err
	}
	return &AuthSession{
		SessionID:    sessionID,
		AccessToken:  accessToken,
		RefreshToken: rt.Token,
		ExpiresAt:    expiresAt,
		User:         User{ID: user.ID, Email: user.Email},
	}, nil
}
