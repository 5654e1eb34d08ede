package users

import (
	"context"
	"errors"

	"github.com/jrsteele09/go-oauth2-server/clients"
	"github.com/jrsteele09/go-oauth2-server/oauth2"
)

// ErrNotFound may be returned instead of a nil user for unknown credentials.
var ErrNotFound = errors.New("user not found")

// Repo verifies resource-owner credentials for the password grant.
type Repo interface {
	// GetUserEntityByUserCredentials returns the user, or nil when the
	// credentials do not identify an active user.
	GetUserEntityByUserCredentials(ctx context.Context, username, password string, grantType oauth2.GrantType, client *clients.Client) (*User, error)
}

// VerifierFunc adapts a plain function to Repo.
type VerifierFunc func(ctx context.Context, username, password string, grantType oauth2.GrantType, client *clients.Client) (*User, error)

func (f VerifierFunc) GetUserEntityByUserCredentials(ctx context.Context, username, password string, grantType oauth2.GrantType, client *clients.Client) (*User, error) {
	return f(ctx, username, password, grantType, client)
}
