package grant_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-oauth2-server/events"
	"github.com/jrsteele09/go-oauth2-server/grant"
	"github.com/jrsteele09/go-oauth2-server/oauth2"
	"github.com/jrsteele09/go-oauth2-server/token/refresh"
)

// issuePair runs the password grant and returns the encoded tokens.
func (f *testFixture) issuePair(t *testing.T, scope string) oauth2.TokenResponse {
	t.Helper()
	g := enable(f, grant.NewPasswordGrant(f.users, f.tokens))
	rt, err := g.RespondToAccessTokenRequest(context.Background(), tokenRequest(passwordParams(map[string]string{"scope": scope})), testAccessTokenTTL)
	require.NoError(t, err)
	_, body := render(t, rt)
	require.NotEmpty(t, body.RefreshToken)
	return body
}

func refreshParams(refreshToken string, overrides map[string]string) map[string]string {
	params := map[string]string{
		"grant_type":    "refresh_token",
		"client_id":     testClientID,
		"client_secret": testClientSecret,
		"refresh_token": refreshToken,
	}
	for k, v := range overrides {
		params[k] = v
	}
	return params
}

func TestRefreshTokenGrant_Rotation(t *testing.T) {
	f := setupTestFixture(t)
	first := f.issuePair(t, "read write")
	firstClaims := f.parseAccessToken(t, first.AccessToken)
	g := enable(f, grant.NewRefreshTokenGrant(f.tokens))

	rt, err := g.RespondToAccessTokenRequest(context.Background(), tokenRequest(refreshParams(first.RefreshToken, nil)), testAccessTokenTTL)
	require.NoError(t, err)
	_, second := render(t, rt)

	secondClaims := f.parseAccessToken(t, second.AccessToken)
	require.NotEqual(t, firstClaims.ID, secondClaims.ID)
	require.Equal(t, testUserID, secondClaims.Subject)
	require.Equal(t, []string{"read", "write"}, secondClaims.Scopes)

	payload, err := refresh.Open(second.RefreshToken, f.encrypter)
	require.NoError(t, err)
	require.Equal(t, secondClaims.ID, payload.AccessTokenID)

	revoked, err := f.tokens.IsAccessTokenRevoked(context.Background(), firstClaims.ID)
	require.NoError(t, err)
	require.True(t, revoked)

	t.Run("reuse is rejected", func(t *testing.T) {
		_, err := g.RespondToAccessTokenRequest(context.Background(), tokenRequest(refreshParams(first.RefreshToken, nil)), testAccessTokenTTL)
		requireOAuthError(t, err, oauth2.ErrorCodeInvalidGrant)
	})

	t.Run("rotated token still works", func(t *testing.T) {
		_, err := g.RespondToAccessTokenRequest(context.Background(), tokenRequest(refreshParams(second.RefreshToken, nil)), testAccessTokenTTL)
		require.NoError(t, err)
	})
}

func TestRefreshTokenGrant_ScopeNarrowing(t *testing.T) {
	f := setupTestFixture(t)
	pair := f.issuePair(t, "read write")
	g := enable(f, grant.NewRefreshTokenGrant(f.tokens))

	rt, err := g.RespondToAccessTokenRequest(context.Background(), tokenRequest(refreshParams(pair.RefreshToken, map[string]string{"scope": "write"})), testAccessTokenTTL)
	require.NoError(t, err)
	_, body := render(t, rt)
	require.Equal(t, []string{"write"}, f.parseAccessToken(t, body.AccessToken).Scopes)
}

func TestRefreshTokenGrant_ScopeWideningRejected(t *testing.T) {
	f := setupTestFixture(t)
	pair := f.issuePair(t, "read")
	g := enable(f, grant.NewRefreshTokenGrant(f.tokens))

	_, err := g.RespondToAccessTokenRequest(context.Background(), tokenRequest(refreshParams(pair.RefreshToken, map[string]string{"scope": "read admin"})), testAccessTokenTTL)
	oauthErr := requireOAuthError(t, err, oauth2.ErrorCodeInvalidScope)
	require.Contains(t, oauthErr.Hint, "admin")

	// The old token was not consumed.
	_, err = g.RespondToAccessTokenRequest(context.Background(), tokenRequest(refreshParams(pair.RefreshToken, nil)), testAccessTokenTTL)
	require.NoError(t, err)
}

func TestRefreshTokenGrant_Errors(t *testing.T) {
	f := setupTestFixture(t)
	pair := f.issuePair(t, "read")
	g := enable(f, grant.NewRefreshTokenGrant(f.tokens))
	ctx := context.Background()

	t.Run("missing token", func(t *testing.T) {
		params := refreshParams("", nil)
		delete(params, "refresh_token")
		_, err := g.RespondToAccessTokenRequest(ctx, tokenRequest(params), testAccessTokenTTL)
		requireOAuthError(t, err, oauth2.ErrorCodeInvalidRequest)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := g.RespondToAccessTokenRequest(ctx, tokenRequest(refreshParams("not-a-token", nil)), testAccessTokenTTL)
		oauthErr := requireOAuthError(t, err, oauth2.ErrorCodeInvalidGrant)
		require.Contains(t, oauthErr.Hint, "decrypt")
	})

	t.Run("other client", func(t *testing.T) {
		_, err := g.RespondToAccessTokenRequest(ctx, tokenRequest(map[string]string{
			"grant_type": "refresh_token", "client_id": testPublicClientID, "refresh_token": pair.RefreshToken,
		}), testAccessTokenTTL)
		requireOAuthError(t, err, oauth2.ErrorCodeInvalidGrant)
		require.Contains(t, f.eventNames(), events.RefreshTokenClientFailed)
	})

	t.Run("expired", func(t *testing.T) {
		f.advance(grant.DefaultRefreshTokenTTL + time.Minute)
		_, err := g.RespondToAccessTokenRequest(ctx, tokenRequest(refreshParams(pair.RefreshToken, nil)), testAccessTokenTTL)
		oauthErr := requireOAuthError(t, err, oauth2.ErrorCodeInvalidGrant)
		require.Contains(t, oauthErr.Hint, "expired")
	})
}

func TestRefreshTokenGrant_NoRepository(t *testing.T) {
	f := setupTestFixture(t)
	g := enable(f, grant.NewRefreshTokenGrant(nil))
	_, err := g.RespondToAccessTokenRequest(context.Background(), tokenRequest(refreshParams("x", nil)), testAccessTokenTTL)
	requireOAuthError(t, err, oauth2.ErrorCodeServerError)
}
