package grant_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-oauth2-server/clients"
	"github.com/jrsteele09/go-oauth2-server/events"
	"github.com/jrsteele09/go-oauth2-server/grant"
	"github.com/jrsteele09/go-oauth2-server/oauth2"
	"github.com/jrsteele09/go-oauth2-server/users"
)

func passwordParams(overrides map[string]string) map[string]string {
	params := map[string]string{
		"grant_type":    "password",
		"client_id":     testClientID,
		"client_secret": testClientSecret,
		"username":      testUsername,
		"password":      testUserPassword,
		"scope":         "read",
	}
	for k, v := range overrides {
		if v == "" {
			delete(params, k)
			continue
		}
		params[k] = v
	}
	return params
}

func TestPasswordGrant_Success(t *testing.T) {
	f := setupTestFixture(t)
	g := enable(f, grant.NewPasswordGrant(f.users, f.tokens))

	rt, err := g.RespondToAccessTokenRequest(context.Background(), tokenRequest(passwordParams(nil)), testAccessTokenTTL)
	require.NoError(t, err)

	_, body := render(t, rt)
	require.NotEmpty(t, body.RefreshToken)
	claims := f.parseAccessToken(t, body.AccessToken)
	require.Equal(t, testUserID, claims.Subject)
	require.Equal(t, []string{"read"}, claims.Scopes)
	require.Equal(t, []events.Name{events.AccessTokenIssued, events.RefreshTokenIssued}, f.eventNames())
}

func TestPasswordGrant_Errors(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]string
		code      oauth2.ErrorCode
		event     events.Name
	}{
		{"missing username", map[string]string{"username": ""}, oauth2.ErrorCodeInvalidRequest, ""},
		{"missing password", map[string]string{"password": ""}, oauth2.ErrorCodeInvalidRequest, ""},
		{"wrong password", map[string]string{"password": "guess"}, oauth2.ErrorCodeInvalidGrant, events.UserAuthenticationFailed},
		{"unknown user", map[string]string{"username": "mallory"}, oauth2.ErrorCodeInvalidGrant, events.UserAuthenticationFailed},
		{"unknown scope", map[string]string{"scope": "read bogus"}, oauth2.ErrorCodeInvalidScope, ""},
		{"bad client secret", map[string]string{"client_secret": "nope"}, oauth2.ErrorCodeInvalidClient, events.ClientAuthenticationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t)
			g := enable(f, grant.NewPasswordGrant(f.users, f.tokens))
			_, err := g.RespondToAccessTokenRequest(context.Background(), tokenRequest(passwordParams(tt.overrides)), testAccessTokenTTL)
			requireOAuthError(t, err, tt.code)
			if tt.event != "" {
				require.Equal(t, []events.Name{tt.event}, f.eventNames())
			}
		})
	}
}

func TestPasswordGrant_UserRepoFailure(t *testing.T) {
	f := setupTestFixture(t)
	boom := errors.New("directory unavailable")
	failing := users.VerifierFunc(func(context.Context, string, string, oauth2.GrantType, *clients.Client) (*users.User, error) {
		return nil, boom
	})
	g := enable(f, grant.NewPasswordGrant(failing, f.tokens))

	_, err := g.RespondToAccessTokenRequest(context.Background(), tokenRequest(passwordParams(nil)), testAccessTokenTTL)
	requireOAuthError(t, err, oauth2.ErrorCodeServerError)
	require.ErrorIs(t, err, boom)
}

func TestPasswordGrant_WithoutRefreshTokens(t *testing.T) {
	f := setupTestFixture(t)
	g := enable(f, grant.NewPasswordGrant(f.users, nil))

	rt, err := g.RespondToAccessTokenRequest(context.Background(), tokenRequest(passwordParams(nil)), testAccessTokenTTL)
	require.NoError(t, err)
	_, body := render(t, rt)
	require.Empty(t, body.RefreshToken)
}
