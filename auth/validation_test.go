package auth_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-oauth2-server/auth"
	"github.com/jrsteele09/go-oauth2-server/grant"
)

func TestNewAuthorizationServer_RequiresDependencies(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *auth.Config)
		want   string
	}{
		{"clients", func(cfg *auth.Config) { cfg.Clients = nil }, "clients repo"},
		{"access tokens", func(cfg *auth.Config) { cfg.AccessTokens = nil }, "access token repo"},
		{"scopes", func(cfg *auth.Config) { cfg.Scopes = nil }, "scopes repo"},
		{"signer", func(cfg *auth.Config) { cfg.Signer = nil }, "signer"},
		{"encrypter", func(cfg *auth.Config) { cfg.Encrypter = nil }, "encrypter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t)
			cfg := f.config()
			tt.mutate(&cfg)

			_, err := auth.NewAuthorizationServer(cfg)
			require.ErrorIs(t, err, auth.ErrMissingDependency)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewAuthorizationServer_RejectsDuplicateGrant(t *testing.T) {
	f := setupTestFixture(t)
	_, err := auth.NewAuthorizationServer(f.config(),
		auth.WithGrantType(grant.NewClientCredentialsGrant(), 0),
		auth.WithGrantType(grant.NewClientCredentialsGrant(), 0),
	)
	require.ErrorIs(t, err, auth.ErrDuplicateGrant)

	_, err = auth.NewAuthorizationServer(f.config(), auth.WithGrantType(nil, 0))
	require.ErrorIs(t, err, auth.ErrNilGrant)
}
