package token

import (
	"context"
	"errors"

	"github.com/jrsteele09/go-oauth2-server/clients"
	"github.com/jrsteele09/go-oauth2-server/scopes"
)

var (
	// ErrUniqueIdentifierViolation is returned by Persist* when the identifier is already taken.
	ErrUniqueIdentifierViolation = errors.New("token identifier already exists")

	// ErrNotFound is returned for unknown, expired or already revoked records.
	ErrNotFound = errors.New("token not found")
)

type AccessTokenRepo interface {
	// GetNewToken returns an unpersisted token for the client, scopes and user.
	GetNewToken(ctx context.Context, client *clients.Client, tokenScopes []*scopes.Scope, userID string) (*AccessToken, error)
	PersistNewAccessToken(ctx context.Context, accessToken *AccessToken) error
	RevokeAccessToken(ctx context.Context, tokenID string) error
	IsAccessTokenRevoked(ctx context.Context, tokenID string) (bool, error)
}

type RefreshTokenRepo interface {
	// GetNewRefreshToken returns nil to disable refresh tokens.
	GetNewRefreshToken(ctx context.Context) (*RefreshToken, error)
	PersistNewRefreshToken(ctx context.Context, refreshToken *RefreshToken) error
	// RevokeRefreshToken must fail with ErrNotFound when the token was not live,
	// so that concurrent redemptions of the same token cannot both succeed.
	RevokeRefreshToken(ctx context.Context, tokenID string) error
	IsRefreshTokenRevoked(ctx context.Context, tokenID string) (bool, error)
}

type AuthCodeRepo interface {
	GetNewAuthCode(ctx context.Context) (*AuthCode, error)
	PersistNewAuthCode(ctx context.Context, authCode *AuthCode) error
	GetAuthCodeByIdentifier(ctx context.Context, codeID string) (*AuthCode, error)
	// RevokeAuthCode must fail with ErrNotFound when the code was already consumed.
	RevokeAuthCode(ctx context.Context, codeID string) error
}
