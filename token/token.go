package token

import (
	"time"

	"github.com/jrsteele09/go-oauth2-server/clients"
	"github.com/jrsteele09/go-oauth2-server/oauth2"
	"github.com/jrsteele09/go-oauth2-server/scopes"
)

// AccessToken is issued once, rendered as a JWT and never mutated afterwards.
type AccessToken struct {
	ID        string
	Client    *clients.Client
	UserID    string // Empty for client credentials
	Scopes    []*scopes.Scope
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// NewAccessToken builds an unpersisted access token. The grant fills in the
// identifier and timestamps.
func NewAccessToken(client *clients.Client, tokenScopes []*scopes.Scope, userID string) *AccessToken {
	return &AccessToken{
		Client: client,
		UserID: userID,
		Scopes: tokenScopes,
	}
}

// ClientID returns the identifier of the owning client.
func (t *AccessToken) ClientID() string {
	if t.Client == nil {
		return ""
	}
	return t.Client.ID
}

// ScopeIDs returns the granted scope identifiers in order.
func (t *AccessToken) ScopeIDs() []string {
	return scopes.IDs(t.Scopes)
}

// RefreshToken is single use, each redemption rotates it.
type RefreshToken struct {
	ID          string
	AccessToken *AccessToken
	ExpiresAt   time.Time
}

// AuthCode is consumed exactly once by the authorization_code grant.
type AuthCode struct {
	ID                  string
	Client              *clients.Client
	UserID              string
	RedirectURI         string
	Scopes              []*scopes.Scope
	ExpiresAt           time.Time
	CodeChallenge       string
	CodeChallengeMethod oauth2.CodeMethodType
}

// ClientID returns the identifier of the client the code was issued to.
func (c *AuthCode) ClientID() string {
	if c.Client == nil {
		return ""
	}
	return c.Client.ID
}
