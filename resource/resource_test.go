package resource_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-oauth2-server/clients"
	"github.com/jrsteele09/go-oauth2-server/httpmsg"
	"github.com/jrsteele09/go-oauth2-server/oauth2"
	"github.com/jrsteele09/go-oauth2-server/resource"
	"github.com/jrsteele09/go-oauth2-server/scopes"
	"github.com/jrsteele09/go-oauth2-server/token"
	"github.com/jrsteele09/go-oauth2-server/token/jwt"
	"github.com/jrsteele09/go-oauth2-server/token/keys"
	tokenfakerepo "github.com/jrsteele09/go-oauth2-server/token/repofake"
)

type testFixture struct {
	keyPair *keys.KeyPair
	signer  *keys.KeyPairSigner
	tokens  *tokenfakerepo.FakeTokenRepo
	now     time.Time
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	kp, err := keys.GenerateRSAKeyPair("resource-test", 2048)
	require.NoError(t, err)
	return &testFixture{
		keyPair: kp,
		signer:  keys.NewKeyPairSigner(kp),
		tokens:  tokenfakerepo.NewFakeTokenRepo(),
		now:     time.Now().Truncate(time.Second),
	}
}

func (f *testFixture) clock() time.Time {
	return f.now
}

// issue persists and signs an access token valid for an hour.
func (f *testFixture) issue(t *testing.T, id string, scopeIDs ...string) string {
	t.Helper()
	granted := make([]*scopes.Scope, 0, len(scopeIDs))
	for _, s := range scopeIDs {
		granted = append(granted, &scopes.Scope{ID: s})
	}
	at := token.NewAccessToken(&clients.Client{ID: "client-1"}, granted, "user-1")
	at.ID = id
	at.IssuedAt = f.now
	at.ExpiresAt = f.now.Add(time.Hour)
	require.NoError(t, f.tokens.PersistNewAccessToken(context.Background(), at))

	raw, err := jwt.CreateAccessToken(at, f.signer)
	require.NoError(t, err)
	return raw
}

func (f *testFixture) validator() *resource.BearerTokenValidator {
	return resource.NewBearerTokenValidator(f.tokens,
		resource.NewPublicKeyVerifier(f.keyPair.PublicKey, resource.WithVerifierNowFunc(f.clock)))
}

func bearerRequest(header string) *httpmsg.Request {
	req := httpmsg.NewRequest(http.MethodGet)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	return req
}

func TestBearerTokenValidator_Valid(t *testing.T) {
	f := setupTestFixture(t)
	raw := f.issue(t, "at-1", "read", "write")

	req, err := f.validator().ValidateAuthenticatedRequest(context.Background(), bearerRequest("Bearer "+raw))
	require.NoError(t, err)
	require.Equal(t, "at-1", req.Attribute(resource.AttrAccessTokenID))
	require.Equal(t, "client-1", req.Attribute(resource.AttrClientID))
	require.Equal(t, "user-1", req.Attribute(resource.AttrUserID))
	require.Equal(t, []string{"read", "write"}, req.Attribute(resource.AttrScopes))
}

func TestBearerTokenValidator_Rejections(t *testing.T) {
	f := setupTestFixture(t)
	raw := f.issue(t, "at-1", "read")
	revoked := f.issue(t, "at-2")
	require.NoError(t, f.tokens.RevokeAccessToken(context.Background(), "at-2"))

	other, err := keys.GenerateRSAKeyPair("other", 2048)
	require.NoError(t, err)
	forged, err := jwt.CreateAccessToken(&token.AccessToken{
		ID: "at-3", Client: &clients.Client{ID: "client-1"}, IssuedAt: f.now, ExpiresAt: f.now.Add(time.Hour),
	}, keys.NewKeyPairSigner(other))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		hint   string
	}{
		{"missing header", "", "Authorization"},
		{"basic scheme", "Basic dXNlcjpwYXNz", "bearer"},
		{"empty bearer", "Bearer ", "bearer"},
		{"garbage", "Bearer not.a.jwt", "verified"},
		{"wrong key", "Bearer " + forged, "verified"},
		{"revoked", "Bearer " + revoked, "revoked"},
	}

	v := f.validator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.ValidateAuthenticatedRequest(context.Background(), bearerRequest(tt.header))
			require.True(t, oauth2.IsErrorCode(err, oauth2.ErrorCodeAccessDenied), "error: %v", err)
			require.Contains(t, oauth2.AsError(err).Hint, tt.hint)
		})
	}

	t.Run("expired", func(t *testing.T) {
		f.now = f.now.Add(2 * time.Hour)
		defer func() { f.now = f.now.Add(-2 * time.Hour) }()
		_, err := v.ValidateAuthenticatedRequest(context.Background(), bearerRequest("Bearer "+raw))
		require.True(t, oauth2.IsErrorCode(err, oauth2.ErrorCodeAccessDenied))
	})
}

func TestRemoteKeySetVerifier(t *testing.T) {
	f := setupTestFixture(t)
	raw := f.issue(t, "at-1", "read")

	jwks := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(f.keyPair.JWKS()))
	}))
	defer jwks.Close()

	verifier := resource.NewRemoteKeySetVerifier(context.Background(), jwks.URL,
		resource.WithHTTPClient(jwks.Client()), resource.WithVerifierNowFunc(f.clock))

	claims, err := verifier.Verify(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, "at-1", claims.ID)
	require.Equal(t, []string{"read"}, claims.Scopes)

	f.now = f.now.Add(2 * time.Hour)
	_, err = verifier.Verify(context.Background(), raw)
	require.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	f := setupTestFixture(t)
	raw := f.issue(t, "at-1", "read")

	var seen *resource.TokenInfo
	protected := resource.Middleware(f.validator())(resource.RequireScope("read")(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen, _ = resource.FromContext(r.Context())
			w.WriteHeader(http.StatusNoContent)
		})))
	admin := resource.Middleware(f.validator())(resource.RequireScope("admin")(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})))

	t.Run("accepted", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api", nil)
		r.Header.Set("Authorization", "Bearer "+raw)
		w := httptest.NewRecorder()
		protected.ServeHTTP(w, r)
		require.Equal(t, http.StatusNoContent, w.Code)
		require.NotNil(t, seen)
		require.Equal(t, "user-1", seen.UserID)
		require.Equal(t, f.now.Add(time.Hour).Unix(), seen.ExpiresAt.Unix())
	})

	t.Run("no token", func(t *testing.T) {
		w := httptest.NewRecorder()
		protected.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api", nil))
		require.Equal(t, http.StatusUnauthorized, w.Code)
		require.Equal(t, `Bearer realm="OAuth"`, w.Header().Get("WWW-Authenticate"))

		var body oauth2.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Equal(t, "access_denied", body.Error)
	})

	t.Run("insufficient scope", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/admin", nil)
		r.Header.Set("Authorization", "Bearer "+raw)
		w := httptest.NewRecorder()
		admin.ServeHTTP(w, r)
		require.Equal(t, http.StatusForbidden, w.Code)
		require.Contains(t, w.Body.String(), "insufficient_scope")
	})
}
