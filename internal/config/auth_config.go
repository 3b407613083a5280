package config

import "time"

const (
	IdentityLocal = "local"
	IdentityOIDC  = "oidc"
)

type AuthConfig interface {
	GetIdentityProvider() string
	GetTokenSecret() string
	GetTokenIssuer() string
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
	GetRefreshTokenLength() int
	GetOIDCIssuer() string
	GetOIDCClientID() string
	GetOIDCClientSecret() string
	GetOIDCSignupURL() string
	GetOIDCRevokeURL() string
}

type Auth struct {
	file fileValues
}

var _ AuthConfig = Auth{}

func (a Auth) GetIdentityProvider() string {
	return a.file.get("IDENTITY_PROVIDER", IdentityLocal)
}

// GetTokenSecret is the HS256 key for locally issued access tokens. Empty means
// a random key is generated at start up and sessions do not survive a restart.
func (a Auth) GetTokenSecret() string {
	return a.file.get("TOKEN_SECRET", "")
}

func (a Auth) GetTokenIssuer() string {
	return a.file.get("TOKEN_ISSUER", "go-todo-server")
}

func (a Auth) GetAccessTokenExpiry() time.Duration {
	return parseDuration(a.file.get("ACCESS_TOKEN_EXPIRY", ""), 1*time.Hour)
}

func (a Auth) GetRefreshTokenExpiry() time.Duration {
	return parseDuration(a.file.get("REFRESH_TOKEN_EXPIRY", ""), 7*24*time.Hour) // 7 days
}

func (Auth) GetRefreshTokenLength() int {
	return 32 // 32 bytes = 256 bits
}

func (a Auth) GetOIDCIssuer() string {
	return a.file.get("OIDC_ISSUER", "")
}

func (a Auth) GetOIDCClientID() string {
	return a.file.get("OIDC_CLIENT_ID", "")
}

func (a Auth) GetOIDCClientSecret() string {
	return a.file.get("OIDC_CLIENT_SECRET", "")
}

func (a Auth) GetOIDCSignupURL() string {
	return a.file.get("OIDC_SIGNUP_URL", "")
}

func (a Auth) GetOIDCRevokeURL() string {
	return a.file.get("OIDC_REVOKE_URL", "")
}
