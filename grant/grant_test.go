package grant_test

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-oauth2-server/clients"
	fakeclientrepo "github.com/jrsteele09/go-oauth2-server/clients/fakerepo"
	"github.com/jrsteele09/go-oauth2-server/events"
	"github.com/jrsteele09/go-oauth2-server/grant"
	"github.com/jrsteele09/go-oauth2-server/httpmsg"
	"github.com/jrsteele09/go-oauth2-server/oauth2"
	"github.com/jrsteele09/go-oauth2-server/responsetype"
	scoperepofake "github.com/jrsteele09/go-oauth2-server/scopes/repofake"
	"github.com/jrsteele09/go-oauth2-server/token"
	"github.com/jrsteele09/go-oauth2-server/token/crypt"
	"github.com/jrsteele09/go-oauth2-server/token/jwt"
	"github.com/jrsteele09/go-oauth2-server/token/keys"
	tokenfakerepo "github.com/jrsteele09/go-oauth2-server/token/repofake"
	"github.com/jrsteele09/go-oauth2-server/users"
	fakeuserrepo "github.com/jrsteele09/go-oauth2-server/users/repofake"
)

const (
	testClientID       = "client-1"
	testClientSecret   = "s3cret"
	testPublicClientID = "spa"
	testRedirectURI    = "https://a/cb"
	testUsername       = "alice"
	testUserPassword   = "password123"
	testUserID         = "user-1"
	testState          = "xyz-state"
	testCodeVerifier   = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	testCodeChallenge  = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
	testAccessTokenTTL = time.Hour
)

type testFixture struct {
	clients   *fakeclientrepo.FakeClientRepo
	scopes    *scoperepofake.FakeScopeRepo
	users     *fakeuserrepo.FakeUserRepo
	tokens    *tokenfakerepo.FakeTokenRepo
	signer    *keys.KeyPairSigner
	encrypter crypt.Encrypter
	emitter   *events.Emitter
	now       time.Time

	mu     sync.Mutex
	events []events.Event
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	kp, err := keys.GenerateECDSAKeyPair("test-key")
	require.NoError(t, err)
	key, err := crypt.GenerateKey()
	require.NoError(t, err)
	enc, err := crypt.NewKeyEncrypter(key)
	require.NoError(t, err)

	f := &testFixture{
		clients:   fakeclientrepo.NewFakeClientRepo(),
		scopes:    scoperepofake.NewFakeScopeRepo("read", "write", "admin"),
		users:     fakeuserrepo.NewFakeUserRepo(),
		signer:    keys.NewKeyPairSigner(kp),
		encrypter: enc,
		emitter:   events.NewEmitter(),
		now:       time.Now().Truncate(time.Second),
	}
	f.tokens = tokenfakerepo.NewFakeTokenRepo(tokenfakerepo.WithNowFunc(f.clock))
	f.emitter.AddCatchAllListener(func(_ context.Context, ev events.Event) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.events = append(f.events, ev)
	})

	secretHash, err := clients.HashSecret(testClientSecret)
	require.NoError(t, err)
	require.NoError(t, f.clients.Upsert(&clients.Client{
		ID:           testClientID,
		Type:         clients.ClientTypeConfidential,
		SecretHash:   secretHash,
		RedirectURIs: []string{testRedirectURI},
	}))
	require.NoError(t, f.clients.Upsert(&clients.Client{
		ID:           testPublicClientID,
		Type:         clients.ClientTypePublic,
		RedirectURIs: []string{testRedirectURI, "https://a/other"},
	}))

	passwordHash, err := users.HashPassword(testUserPassword)
	require.NoError(t, err)
	require.NoError(t, f.users.Upsert(&users.User{ID: testUserID, Username: testUsername, PasswordHash: passwordHash}))

	return f
}

func (f *testFixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *testFixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *testFixture) dependencies() grant.Dependencies {
	return grant.Dependencies{
		Clients:      f.clients,
		AccessTokens: f.tokens,
		Scopes:       f.scopes,
		Encrypter:    f.encrypter,
		Responses:    responsetype.NewBuilder(f.signer, f.encrypter, responsetype.WithNowFunc(f.clock)),
		Emitter:      f.emitter,
		Logger:       zerolog.Nop(),
		NowFunc:      f.clock,
	}
}

// enable wires the fixture's collaborators into h and returns it.
func enable[H grant.Handler](f *testFixture, h H) H {
	h.SetDependencies(f.dependencies())
	return h
}

func (f *testFixture) eventNames() []events.Name {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]events.Name, 0, len(f.events))
	for _, ev := range f.events {
		names = append(names, ev.Name)
	}
	return names
}

func tokenRequest(params map[string]string) *httpmsg.Request {
	req := httpmsg.NewRequest(http.MethodPost)
	for k, v := range params {
		req.Body.Set(k, v)
	}
	return req
}

func authorizeRequest(params map[string]string) *httpmsg.Request {
	req := httpmsg.NewRequest(http.MethodGet)
	for k, v := range params {
		req.Query.Set(k, v)
	}
	return req
}

func basicAuth(req *httpmsg.Request, user, pass string) *httpmsg.Request {
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(user+":"+pass)))
	return req
}

func requireOAuthError(t *testing.T, err error, code oauth2.ErrorCode) *oauth2.Error {
	t.Helper()
	require.Error(t, err)
	oauthErr := oauth2.AsError(err)
	require.Equal(t, code, oauthErr.Code, "error: %v", err)
	return oauthErr
}

// render writes the response type and decodes the bearer JSON body.
func render(t *testing.T, rt responsetype.ResponseType) (*httpmsg.Response, oauth2.TokenResponse) {
	t.Helper()
	resp := httpmsg.NewResponse()
	require.NoError(t, rt.GenerateHTTPResponse(resp))
	var body oauth2.TokenResponse
	if resp.Status == http.StatusOK {
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	}
	return resp, body
}

func (f *testFixture) parseAccessToken(t *testing.T, raw string) *jwt.AccessTokenClaims {
	t.Helper()
	claims, err := jwt.ParseAccessToken(raw, f.signer.GetVerificationKey, f.clock)
	require.NoError(t, err)
	return claims
}

func redirectParams(t *testing.T, resp *httpmsg.Response, fragment bool) url.Values {
	t.Helper()
	require.Equal(t, http.StatusFound, resp.Status)
	loc, err := url.Parse(resp.Location())
	require.NoError(t, err)
	if fragment {
		values, err := url.ParseQuery(loc.Fragment)
		require.NoError(t, err)
		return values
	}
	return loc.Query()
}

func s256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// collidingAccessTokens reports an identifier collision for the first n persists.
type collidingAccessTokens struct {
	*tokenfakerepo.FakeTokenRepo
	remaining int
	attempts  int
}

func (c *collidingAccessTokens) PersistNewAccessToken(ctx context.Context, at *token.AccessToken) error {
	c.attempts++
	if c.remaining > 0 {
		c.remaining--
		return token.ErrUniqueIdentifierViolation
	}
	return c.FakeTokenRepo.PersistNewAccessToken(ctx, at)
}
