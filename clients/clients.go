package clients

import (
	"slices"

	"github.com/jrsteele09/go-oauth2-server/oauth2"
	"golang.org/x/crypto/bcrypt"
)

type ClientType string

const (
	ClientTypeConfidential ClientType = "confidential" // Can keep secrets (server-side apps)
	ClientTypePublic       ClientType = "public"       // Cannot keep secrets (SPAs, mobile apps)
)

type Client struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Type         ClientType         `json:"type"` // public or confidential
	SecretHash   string             `json:"-"`    // bcrypt hash, empty for public clients
	RedirectURIs []string           `json:"redirectURIs"`
	GrantTypes   []oauth2.GrantType `json:"grantTypes,omitempty"` // Empty allows every enabled grant
}

// IsPublic returns true if the client is a public client
func (c *Client) IsPublic() bool {
	return c.Type == ClientTypePublic
}

// IsConfidential returns true if the client can authenticate with a secret
func (c *Client) IsConfidential() bool {
	return c.Type == ClientTypeConfidential
}

// AllowsGrant reports whether the client may use the grant type.
func (c *Client) AllowsGrant(grantType oauth2.GrantType) bool {
	return len(c.GrantTypes) == 0 || slices.Contains(c.GrantTypes, grantType)
}

// CheckSecret compares a presented secret with the stored hash.
func (c *Client) CheckSecret(secret string) bool {
	if c.SecretHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(c.SecretHash), []byte(secret)) == nil
}

// HashSecret hashes a client secret for storage.
func HashSecret(secret string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	return string(bytes), err
}
