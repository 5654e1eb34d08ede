package scopes

import (
	"context"
	"errors"

	"github.com/jrsteele09/go-oauth2-server/clients"
	"github.com/jrsteele09/go-oauth2-server/oauth2"
)

// ErrNotFound is returned when no scope matches the identifier.
var ErrNotFound = errors.New("scope not found")

// Scope is a named permission unit attached to a token.
type Scope struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
}

// Repo resolves scope identifiers.
type Repo interface {
	GetScopeEntityByIdentifier(ctx context.Context, id string) (*Scope, error)
}

// Finalizer is optionally implemented by a Repo to adjust the scopes granted
// to a token after they have been validated.
type Finalizer interface {
	FinalizeScopes(ctx context.Context, requested []*Scope, grantType oauth2.GrantType, client *clients.Client, userID string) ([]*Scope, error)
}

// IDs returns the identifiers of scopes in order.
func IDs(scopes []*Scope) []string {
	ids := make([]string, 0, len(scopes))
	for _, s := range scopes {
		ids = append(ids, s.ID)
	}
	return ids
}
