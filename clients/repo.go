package clients

import (
	"context"
	"errors"

	"github.com/jrsteele09/go-oauth2-server/oauth2"
)

// ErrNotFound is returned when no client matches the identifier.
var ErrNotFound = errors.New("client not found")

// Repo is the client lookup contract the grants call.
type Repo interface {
	// GetClientEntity returns the client, or nil when it is unknown or the
	// presented secret does not match. secret and redirectURI are nil when the
	// request did not carry them.
	GetClientEntity(ctx context.Context, clientID string, grantType oauth2.GrantType, secret, redirectURI *string) (*Client, error)
}
