// Package oidcprovider signs users in against a remote OAuth2/OIDC server
// using the resource owner password grant.
package oidcprovider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-todo-server/identity"
	apperrors "github.com/jrsteele09/go-todo-server/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

var _ identity.Provider = (*Provider)(nil)

type Config struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	SignupURL    string // Optional form endpoint taking email and password
	RevokeURL    string // Optional RFC 7009 revocation endpoint
	HTTPClient   *http.Client
}

type trackedSession struct {
	accessToken  string
	refreshToken string
}

// Provider implements identity.Provider on top of a remote OIDC server
type Provider struct {
	cfg      Config
	client   *http.Client
	oidc     *oidc.Provider
	oauth2   *oauth2.Config
	verifier *oidc.IDTokenVerifier
	events   *identity.Broadcaster

	sessionsLock sync.Mutex
	sessions     map[string]trackedSession // provider session ID -> tokens
}

// New discovers the issuer's endpoints and builds the provider
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Issuer == "" || cfg.ClientID == "" {
		return nil, errors.New("[oidcprovider.New] issuer and client id are required")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	ctx = oidc.ClientContext(ctx, client)
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, errors.Wrap(err, "[oidcprovider.New] failed to create OIDC provider")
	}

	endpoint := provider.Endpoint()
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	return &Provider{
		cfg:    cfg,
		client: client,
		oidc:   provider,
		oauth2: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email", oidc.ScopeOfflineAccess},
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		events:   identity.NewBroadcaster(),
		sessions: make(map[string]trackedSession),
	}, nil
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.client)
}

func (p *Provider) SignInWithPassword(ctx context.Context, creds identity.Credentials) (*identity.AuthSession, error) {
	if strings.TrimSpace(creds.Email) == "" || creds.Password == "" {
		return nil, &identity.Error{Message: "Email and password are required", Err: apperrors.ErrInvalidCredentials}
	}

	tok, err := p.oauth2.PasswordCredentialsToken(p.clientContext(ctx), creds.Email, creds.Password)
	if err != nil {
		return nil, &identity.Error{Message: retrieveMessage(err, "Invalid login credentials"), Err: apperrors.ErrInvalidCredentials}
	}

	session, err := p.sessionFromToken(ctx, uuid.New().String(), tok)
	if err != nil {
		return nil, errors.Wrap(err, "[oidcprovider.SignInWithPassword] sessionFromToken")
	}
	p.track(session)
	p.events.Publish(identity.Event{Kind: identity.SignedIn, SessionID: session.SessionID, Session: session})
	return session, nil
}

// SignUp posts the credentials to the configured signup form. Redirects are
// not followed; an error query parameter on the redirect target is a failure.
func (p *Provider) SignUp(ctx context.Context, creds identity.Credentials) (*identity.User, error) {
	if p.cfg.SignupURL == "" {
		return nil, &identity.Error{Message: "Signups not allowed for this instance", Err: apperrors.ErrUnsupported}
	}

	form := url.Values{}
	form.Set("email", creds.Email)
	form.Set("password", creds.Password)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.SignupURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "[oidcprovider.SignUp] NewRequest")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	noRedirect := *p.client
	noRedirect.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	resp, err := noRedirect.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "[oidcprovider.SignUp] Do")
	}
	defer resp.Body.Close()

	if location := resp.Header.Get("Location"); location != "" {
		if u, err := url.Parse(location); err == nil && u.Query().Get("error") != "" {
			return nil, &identity.Error{Message: u.Query().Get("error"), Err: apperrors.ErrInvalidCredentials}
		}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		message := strings.TrimSpace(string(body))
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return nil, &identity.Error{Message: message, Err: apperrors.ErrInvalidCredentials}
	}
	return &identity.User{Email: creds.Email}, nil
}

// SignOut revokes both tokens of the session when a revocation endpoint is
// configured and always forgets the session locally.
func (p *Provider) SignOut(ctx context.Context, accessToken string) error {
	sessionID, session, ok := p.lookupByAccess(accessToken)
	if !ok {
		return apperrors.ErrSessionNotFound
	}
	p.forget(sessionID)

	if p.cfg.RevokeURL != "" {
		if session.refreshToken != "" {
			p.revokeToken(ctx, session.refreshToken, "refresh_token")
		}
		p.revokeToken(ctx, session.accessToken, "access_token")
	}
	p.events.Publish(identity.Event{Kind: identity.SignedOut, SessionID: sessionID})
	return nil
}

func (p *Provider) GetUser(ctx context.Context, accessToken string) (*identity.User, error) {
	info, err := p.oidc.UserInfo(p.clientContext(ctx), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return nil, errors.Wrap(err, "[oidcprovider.GetUser] UserInfo")
		}
		return nil, apperrors.Wrapf(apperrors.ErrTokenExpired, "[oidcprovider.GetUser] %s", err.Error())
	}
	return &identity.User{ID: info.Subject, Email: info.Email}, nil
}

func (p *Provider) RefreshSession(ctx context.Context, refreshToken string) (*identity.AuthSession, error) {
	sessionID, known := p.lookupByRefresh(refreshToken)
	if !known {
		sessionID = uuid.New().String()
	}

	expired := &oauth2.Token{RefreshToken: refreshToken, Expiry: time.Unix(1, 0)}
	tok, err := p.oauth2.TokenSource(p.clientContext(ctx), expired).Token()
	if err != nil {
		// Only a response from the token endpoint rejects the refresh token
		var re *oauth2.RetrieveError
		if !errors.As(err, &re) {
			return nil, errors.Wrap(err, "[oidcprovider.RefreshSession] Token")
		}
		if known {
			p.forget(sessionID)
			p.events.Publish(identity.Event{Kind: identity.SignedOut, SessionID: sessionID})
		}
		return nil, &identity.Error{Message: retrieveMessage(err, "Session expired"), Err: apperrors.ErrRefreshTokenExpired}
	}

	session, err := p.sessionFromToken(ctx, sessionID, tok)
	if err != nil {
		return nil, errors.Wrap(err, "[oidcprovider.RefreshSession] sessionFromToken")
	}
	if session.RefreshToken == "" {
		session.RefreshToken = refreshToken
	}
	p.track(session)
	p.events.Publish(identity.Event{Kind: identity.TokenRefreshed, SessionID: session.SessionID, Session: session})
	return session, nil
}

func (p *Provider) OnAuthStateChange() (<-chan identity.Event, func()) {
	return p.events.Subscribe()
}

func (p *Provider) Close() {
	p.events.Close()
}

// sessionFromToken reads the user from the ID token, or from UserInfo when
// the server returned no ID token.
func (p *Provider) sessionFromToken(ctx context.Context, sessionID string, tok *oauth2.Token) (*identity.AuthSession, error) {
	var user *identity.User
	if rawIDToken, ok := tok.Extra("id_token").(string); ok && rawIDToken != "" {
		idToken, err := p.verifier.Verify(ctx, rawIDToken)
		if err != nil {
			return nil, fmt.Errorf("verify id token: %w", err)
		}
		var claims struct {
			Email string `json:"email"`
		}
		if err := idToken.Claims(&claims); err != nil {
			return nil, fmt.Errorf("id token claims: %w", err)
		}
		user = &identity.User{ID: idToken.Subject, Email: claims.Email}
	} else {
		u, err := p.GetUser(ctx, tok.AccessToken)
		if err != nil {
			return nil, err
		}
		user = u
	}

	return &identity.AuthSession{
		SessionID:    sessionID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
		User:         *user,
	}, nil
}

func (p *Provider) revokeToken(ctx context.Context, token, tokenTypeHint string) {
	form := url.Values{}
	form.Set("token", token)
	form.Set("token_type_hint", tokenTypeHint)
	form.Set("client_id", p.oauth2.ClientID)
	form.Set("client_secret", p.oauth2.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.RevokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		log.Err(err).Str("token_type", tokenTypeHint).Msg("Failed to build revocation request")
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := p.client.Do(req)
	if err != nil {
		log.Err(err).Str("token_type", tokenTypeHint).Msg("Failed to revoke token")
		return
	}
	resp.Body.Close()
}

func (p *Provider) track(session *identity.AuthSession) {
	p.sessionsLock.Lock()
	defer p.sessionsLock.Unlock()
	p.sessions[session.SessionID] = trackedSession{accessToken: session.AccessToken, refreshToken: session.RefreshToken}
}

func (p *Provider) forget(sessionID string) {
	p.sessionsLock.Lock()
	defer p.sessionsLock.Unlock()
	delete(p.sessions, sessionID)
}

func (p *Provider) lookupByAccess(accessToken string) (string, trackedSession, bool) {
	p.sessionsLock.Lock()
	defer p.sessionsLock.Unlock()
	for id, s := range p.sessions {
		if s.accessToken == accessToken {
			return id, s, true
		}
	}
	return "", trackedSession{}, false
}

func (p *Provider) lookupByRefresh(refreshToken string) (string, bool) {
	p.sessionsLock.Lock()
	defer p.sessionsLock.Unlock()
	for id, s := range p.sessions {
		if s.refreshToken == refreshToken {
			return id, true
		}
	}
	return "", false
}

// retrieveMessage prefers the server's error_description
func retrieveMessage(err error, fallback string) string {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.ErrorDescription != "" {
		return re.ErrorDescription
	}
	return fallback
}
