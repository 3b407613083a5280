package jwt

import (
	"errors"
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-todo-server/internal/errors"
)

// AccessClaims is the verified content of an access token
type AccessClaims struct {
	Subject   string
	Email     string
	SessionID string
	ExpiresAt int64
}

// RevokedChecker reports whether a provider session has been signed out
type RevokedChecker interface {
	IsRevoked(sessionID string) bool
}

// Inspector validates access tokens issued by Creator
type Inspector struct {
	issuer         string
	signer         Signer
	revokedChecker RevokedChecker
}

func NewInspector(issuer string, signer Signer, revokedChecker RevokedChecker) *Inspector {
	return &Inspector{
		issuer:         issuer,
		signer:         signer,
		revokedChecker: revokedChecker,
	}
}

// Inspect verifies signature, issuer and expiry. Expired tokens return their
// claims together with errors.ErrTokenExpired so callers can fall back to a refresh.
func (i *Inspector) Inspect(rawToken string) (*AccessClaims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, apperrors.ErrInvalidToken
	}

	token, err := jwtlib.ParseWithClaims(rawToken, jwtlib.MapClaims{}, i.signer.GetVerificationKey,
		jwtlib.WithIssuer(i.issuer),
		jwtlib.WithTimeFunc(NowTimeFunc),
		jwtlib.WithExpirationRequired(),
	)
	if err != nil && !errors.Is(err, jwtlib.ErrTokenExpired) {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "%s", err.Error())
	}
	if token == nil {
		return nil, apperrors.ErrInvalidToken
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, apperrors.ErrInvalidToken
	}

	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	sid, _ := claims["sid"].(string)
	exp, _ := claims["exp"].(float64)
	if sub == "" {
		return nil, apperrors.ErrInvalidToken
	}

	if sid != "" && i.revokedChecker != nil && i.revokedChecker.IsRevoked(sid) {
		return nil, apperrors.ErrInvalidToken
	}

	accessClaims := &AccessClaims{
		Subject:   sub,
		Email:     email,
		SessionID: sid,
		ExpiresAt: int64(exp),
	}
	if err != nil {
		// Signature was good but the token is past exp; the claims are still
		// returned so a sign out can find its session.
		return accessClaims, apperrors.ErrTokenExpired
	}
	return accessClaims, nil
}
