package main

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/jrsteele09/go-todo-server/identity"
	"github.com/jrsteele09/go-todo-server/identity/oidcprovider"
	"github.com/jrsteele09/go-todo-server/internal/config"
	"github.com/jrsteele09/go-todo-server/todos"
	"github.com/jrsteele09/go-todo-server/todos/postgrest"
	todorepofake "github.com/jrsteele09/go-todo-server/todos/repofake"
	"github.com/jrsteele09/go-todo-server/todos/sqlstore"
	refreshrepofake "github.com/jrsteele09/go-todo-server/token/refresh/repofake"
	fakeuserrepo "github.com/jrsteele09/go-todo-server/users/repofake"
	"github.com/rs/zerolog/log"
)

// closableProvider is an identity provider that owns an event broadcaster
type closableProvider interface {
	identity.Provider
	Close()
}

func newIdentityProvider(ctx context.Context, c config.Config) (closableProvider, error) {
	switch c.GetIdentityProvider() {
	case config.IdentityOIDC:
		log.Info().Str("issuer", c.GetOIDCIssuer()).Msg("Using OIDC identity provider")
		return oidcprovider.New(ctx, oidcprovider.Config{
			Issuer:       c.GetOIDCIssuer(),
			ClientID:     c.GetOIDCClientID(),
			ClientSecret: c.GetOIDCClientSecret(),
			SignupURL:    c.GetOIDCSignupURL(),
			RevokeURL:    c.GetOIDCRevokeURL(),
		})
	case config.IdentityLocal:
		secret := []byte(c.GetTokenSecret())
		if len(secret) == 0 {
			log.Warn().Msg("TOKEN_SECRET not set, sessions will not survive a restart")
			secret = make([]byte, 32)
			if _, err := rand.Read(secret); err != nil {
				return nil, fmt.Errorf("generating token secret: %w", err)
			}
		}
		log.Info().Msg("Using local identity provider")
		return identity.NewLocal(
			fakeuserrepo.NewFakeUserRepo(),
			refreshrepofake.NewFakeRefreshTokenRepo(),
			identity.LocalConfig{
				Issuer:             c.GetTokenIssuer(),
				Secret:             secret,
				AccessTokenExpiry:  c.GetAccessTokenExpiry(),
				RefreshTokenExpiry: c.GetRefreshTokenExpiry(),
				RefreshTokenLength: c.GetRefreshTokenLength(),
			},
		)
	default:
		return nil, fmt.Errorf("unknown identity provider %q", c.GetIdentityProvider())
	}
}

// newTodoStore opens the configured task store. The returned func releases it.
func newTodoStore(ctx context.Context, c config.Config) (todos.Store, func(), error) {
	noop := func() {}
	driver := c.GetStoreDriver()
	switch driver {
	case config.StoreMemory:
		log.Warn().Msg("Using in-memory task store, tasks are lost on restart")
		return todorepofake.NewFakeTodoStore(), noop, nil
	case config.StoreSQLite, config.StoreMySQL:
		store, err := sqlstore.Open(ctx, driver, c.GetStoreDSN())
		if err != nil {
			return nil, noop, err
		}
		log.Info().Str("driver", driver).Msg("Using SQL task store")
		return store, func() {
			if err := store.Close(); err != nil {
				log.Err(err).Msg("Failed to close task store")
			}
		}, nil
	case config.StorePostgREST:
		store, err := postgrest.New(postgrest.Config{
			BaseURL: c.GetPostgRESTURL(),
			APIKey:  c.GetPostgRESTAPIKey(),
		})
		if err != nil {
			return nil, noop, err
		}
		log.Info().Str("url", c.GetPostgRESTURL()).Msg("Using PostgREST task store")
		return store, noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown store driver %q", driver)
	}
}
