package grant_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-oauth2-server/events"
	"github.com/jrsteele09/go-oauth2-server/grant"
	"github.com/jrsteele09/go-oauth2-server/oauth2"
)

func TestImplicitGrant_CanRespond(t *testing.T) {
	g := grant.NewImplicitGrant()
	require.Equal(t, oauth2.ImplicitGrant, g.Identifier())
	require.True(t, g.CanRespondToAuthorizationRequest(authorizeRequest(map[string]string{"response_type": "token", "client_id": testPublicClientID})))
	require.False(t, g.CanRespondToAuthorizationRequest(authorizeRequest(map[string]string{"response_type": "code", "client_id": testPublicClientID})))
	require.False(t, g.CanRespondToAccessTokenRequest(tokenRequest(map[string]string{"grant_type": "implicit"})))

	_, err := g.RespondToAccessTokenRequest(context.Background(), tokenRequest(map[string]string{"grant_type": "implicit"}), testAccessTokenTTL)
	requireOAuthError(t, err, oauth2.ErrorCodeUnsupportedGrantType)
}

func TestImplicitGrant_FragmentResponse(t *testing.T) {
	f := setupTestFixture(t)
	g := enable(f, grant.NewImplicitGrant())

	authReq, err := g.ValidateAuthorizationRequest(context.Background(), authorizeRequest(map[string]string{
		"response_type": "token",
		"client_id":     testPublicClientID,
		"redirect_uri":  "https://a/other",
		"scope":         "read",
		"state":         testState,
	}))
	require.NoError(t, err)
	require.Equal(t, "https://a/other", authReq.RedirectURI)
	authReq.UserID = testUserID
	authReq.Approved = true

	rt, err := g.CompleteAuthorizationRequest(context.Background(), authReq, testAccessTokenTTL)
	require.NoError(t, err)
	resp, _ := render(t, rt)
	require.Contains(t, resp.Location(), "https://a/other#")

	values := redirectParams(t, resp, true)
	require.Equal(t, "Bearer", values.Get("token_type"))
	require.Equal(t, strconv.Itoa(int(testAccessTokenTTL.Seconds())), values.Get("expires_in"))
	require.Equal(t, testState, values.Get("state"))
	require.Empty(t, values.Get("refresh_token"))

	claims := f.parseAccessToken(t, values.Get("access_token"))
	require.Equal(t, testUserID, claims.Subject)
	require.Equal(t, testPublicClientID, claims.ClientID())
	require.Equal(t, []events.Name{events.AccessTokenIssued}, f.eventNames())
}

func TestImplicitGrant_Denied(t *testing.T) {
	f := setupTestFixture(t)
	g := enable(f, grant.NewImplicitGrant())

	authReq, err := g.ValidateAuthorizationRequest(context.Background(), authorizeRequest(map[string]string{
		"response_type": "token", "client_id": testClientID, "state": testState,
	}))
	require.NoError(t, err)

	_, err = g.CompleteAuthorizationRequest(context.Background(), authReq, testAccessTokenTTL)
	oauthErr := requireOAuthError(t, err, oauth2.ErrorCodeAccessDenied)
	require.True(t, oauthErr.UseFragment)
	require.Equal(t, testState, oauthErr.State)
}

func TestImplicitGrant_InvalidScopeUsesFragment(t *testing.T) {
	f := setupTestFixture(t)
	g := enable(f, grant.NewImplicitGrant())

	_, err := g.ValidateAuthorizationRequest(context.Background(), authorizeRequest(map[string]string{
		"response_type": "token", "client_id": testClientID, "scope": "bogus",
	}))
	oauthErr := requireOAuthError(t, err, oauth2.ErrorCodeInvalidScope)
	require.True(t, oauthErr.UseFragment)
	require.Equal(t, testRedirectURI, oauthErr.RedirectURI)
}
