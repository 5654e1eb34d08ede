package jwt

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-oauth2-server/token"
	"github.com/jrsteele09/go-oauth2-server/token/keys"
)

// AccessTokenClaims are the claims carried by an access token JWT.
// aud is the client id, sub the user id and jti the token identifier.
type AccessTokenClaims struct {
	Scopes []string `json:"scopes"`
	jwtlib.RegisteredClaims
}

// ClientID returns the first audience, the client the token was issued to.
func (c *AccessTokenClaims) ClientID() string {
	if len(c.Audience) == 0 {
		return ""
	}
	return c.Audience[0]
}

// NewAccessTokenClaims maps an access token entity onto JWT claims.
func NewAccessTokenClaims(at *token.AccessToken) *AccessTokenClaims {
	scopes := at.ScopeIDs()
	return &AccessTokenClaims{
		Scopes: scopes,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Audience:  jwtlib.ClaimStrings{at.ClientID()},
			Subject:   at.UserID,
			IssuedAt:  jwtlib.NewNumericDate(at.IssuedAt),
			NotBefore: jwtlib.NewNumericDate(at.IssuedAt),
			ExpiresAt: jwtlib.NewNumericDate(at.ExpiresAt),
			ID:        at.ID,
		},
	}
}

// CreateAccessToken signs the access token entity as a JWT.
func CreateAccessToken(at *token.AccessToken, signer keys.Signer) (string, error) {
	if at == nil {
		return "", errors.New("access token is nil")
	}
	if at.ID == "" {
		return "", errors.New("access token has no identifier")
	}
	signed, err := signer.Sign(NewAccessTokenClaims(at))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies the signature and the time claims of raw and
// returns its claims. now anchors exp/nbf checks; nil means time.Now.
func ParseAccessToken(raw string, keyFunc jwtlib.Keyfunc, now func() time.Time) (*AccessTokenClaims, error) {
	claims := &AccessTokenClaims{}
	if _, err := jwtlib.ParseWithClaims(raw, claims, keyFunc, parserOptions(now)...); err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}
	if claims.ID == "" {
		return nil, errors.New("access token has no jti claim")
	}
	return claims, nil
}

// ValidateAccessTokenClaims checks the time claims of an already
// signature-verified payload.
func ValidateAccessTokenClaims(claims *AccessTokenClaims, now func() time.Time) error {
	if err := jwtlib.NewValidator(parserOptions(now)...).Validate(claims); err != nil {
		return fmt.Errorf("validate access token claims: %w", err)
	}
	if claims.ID == "" {
		return errors.New("access token has no jti claim")
	}
	return nil
}

func parserOptions(now func() time.Time) []jwtlib.ParserOption {
	opts := []jwtlib.ParserOption{
		jwtlib.WithExpirationRequired(),
		jwtlib.WithIssuedAt(),
	}
	if now != nil {
		opts = append(opts, jwtlib.WithTimeFunc(now))
	}
	return opts
}
