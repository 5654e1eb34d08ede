package grant

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-oauth2-server/clients"
	"github.com/jrsteele09/go-oauth2-server/events"
	"github.com/jrsteele09/go-oauth2-server/httpmsg"
	"github.com/jrsteele09/go-oauth2-server/instrumentation"
	"github.com/jrsteele09/go-oauth2-server/oauth2"
	"github.com/jrsteele09/go-oauth2-server/responsetype"
	"github.com/jrsteele09/go-oauth2-server/scopes"
	"github.com/jrsteele09/go-oauth2-server/token"
)

// base carries the validation and issuance steps every grant shares.
type base struct {
	grantType     oauth2.GrantType
	deps          Dependencies
	refreshTokens token.RefreshTokenRepo
	opts          options
}

func newBase(grantType oauth2.GrantType, refreshTokens token.RefreshTokenRepo, opts []Option) base {
	return base{
		grantType:     grantType,
		refreshTokens: refreshTokens,
		opts:          newOptions(opts),
	}
}

func (b *base) Identifier() oauth2.GrantType {
	return b.grantType
}

func (b *base) SetDependencies(deps Dependencies) {
	if deps.NowFunc == nil {
		deps.NowFunc = time.Now
	}
	if deps.ScopeDelimiter == "" {
		deps.ScopeDelimiter = DefaultScopeDelimiter
	}
	if deps.IdentifierGenerator == nil {
		deps.IdentifierGenerator = token.NewRandomIdentifierGenerator()
	}
	if deps.Instrumentation == nil {
		deps.Instrumentation = instrumentation.Noop()
	}
	if deps.Responses == nil {
		deps.Responses = responsetype.NewBuilder(nil, deps.Encrypter, responsetype.WithNowFunc(deps.NowFunc))
	}
	b.deps = deps
}

func (b *base) CanRespondToAuthorizationRequest(*httpmsg.Request) bool {
	return false
}

// CanRespondToAccessTokenRequest matches on the posted grant_type.
func (b *base) CanRespondToAccessTokenRequest(req *httpmsg.Request) bool {
	grantType, ok := req.BodyParam(oauth2.ParamGrantType)
	return ok && oauth2.GrantType(grantType) == b.grantType
}

func (b *base) ValidateAuthorizationRequest(context.Context, *httpmsg.Request) (*AuthorizationRequest, error) {
	return nil, oauth2.ErrUnsupportedGrantType()
}

func (b *base) CompleteAuthorizationRequest(context.Context, *AuthorizationRequest, time.Duration) (responsetype.ResponseType, error) {
	return nil, oauth2.ErrUnsupportedGrantType()
}

func (b *base) now() time.Time {
	return b.deps.NowFunc()
}

func (b *base) emit(ctx context.Context, event events.Event) {
	event.GrantType = b.grantType
	b.deps.Emitter.Emit(ctx, event)
}

func serverError(err error, msg string) *oauth2.Error {
	return oauth2.ErrServerError(errors.Wrap(err, msg))
}

// clientCredentials reads the client id and secret, preferring a well-formed
// HTTP Basic header over the body.
func clientCredentials(req *httpmsg.Request) (string, *string, error) {
	if user, pass, ok := req.BasicAuth(); ok && user != "" {
		return user, &pass, nil
	}
	clientID, _ := req.BodyParam(oauth2.ParamClientID)
	if clientID == "" {
		return "", nil, oauth2.ErrInvalidRequest(oauth2.ParamClientID, nil)
	}
	var secret *string
	if s, ok := req.BodyParam(oauth2.ParamClientSecret); ok {
		secret = &s
	}
	return clientID, secret, nil
}

func invalidClient(req *httpmsg.Request) *oauth2.Error {
	err := oauth2.ErrInvalidClient()
	if req.HasHeader("Authorization") {
		err = err.WithChallenge()
	}
	return err
}

// validateClient authenticates the client at the token endpoint.
func (b *base) validateClient(ctx context.Context, req *httpmsg.Request) (*clients.Client, error) {
	clientID, secret, err := clientCredentials(req)
	if err != nil {
		return nil, err
	}

	var redirectURI *string
	if uri, ok := req.BodyParam(oauth2.ParamRedirectURI); ok && uri != "" {
		redirectURI = &uri
	}

	client, err := b.lookupClient(ctx, req, clientID, secret, redirectURI)
	if err != nil {
		return nil, err
	}

	if client.IsConfidential() && (secret == nil || *secret == "") {
		b.emit(ctx, events.Event{Name: events.ClientAuthenticationFailed, Request: req, ClientID: clientID})
		return nil, invalidClient(req)
	}

	if redirectURI != nil {
		if _, err := b.validateRedirectURI(ctx, req, client, *redirectURI); err != nil {
			return nil, err
		}
	}
	return client, nil
}

func (b *base) lookupClient(ctx context.Context, req *httpmsg.Request, clientID string, secret, redirectURI *string) (*clients.Client, error) {
	client, err := b.deps.Clients.GetClientEntity(ctx, clientID, b.grantType, secret, redirectURI)
	if err != nil && !errors.Is(err, clients.ErrNotFound) {
		return nil, serverError(err, "[grant.lookupClient] GetClientEntity")
	}
	if client == nil || err != nil {
		b.deps.Logger.Debug().Str("client_id", clientID).Str("grant_type", string(b.grantType)).Msg("client authentication failed")
		b.emit(ctx, events.Event{Name: events.ClientAuthenticationFailed, Request: req, ClientID: clientID})
		return nil, invalidClient(req)
	}
	if !client.AllowsGrant(b.grantType) {
		return nil, oauth2.ErrUnauthorizedClient("The client is not permitted to use the `" + string(b.grantType) + "` grant")
	}
	return client, nil
}

// validateRedirectURI returns the URI the response should be sent to. An empty
// supplied URI resolves to the client's only registered URI.
func (b *base) validateRedirectURI(ctx context.Context, req *httpmsg.Request, client *clients.Client, supplied string) (string, error) {
	registered := client.RedirectURIs
	switch {
	case supplied == "" && len(registered) == 1:
		return registered[0], nil
	case supplied == "":
	case len(registered) == 1 && registered[0] == supplied:
		return supplied, nil
	case len(registered) > 1 && slices.Contains(registered, supplied):
		return supplied, nil
	}

	b.emit(ctx, events.Event{Name: events.ClientAuthenticationFailed, Request: req, ClientID: client.ID})
	return "", invalidClient(req)
}

func (b *base) splitScopes(raw string) []string {
	var ids []string
	for _, id := range strings.Split(strings.TrimSpace(raw), b.deps.ScopeDelimiter) {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// ValidateScopes resolves a delimited scope string, in order. An empty string
// falls back to the default scope. redirectURI, if set, is attached to an
// invalid_scope error so it can be delivered by redirect.
func (b *base) ValidateScopes(ctx context.Context, raw, redirectURI string) ([]*scopes.Scope, error) {
	ids := b.splitScopes(raw)
	if len(ids) == 0 && b.deps.DefaultScope != "" {
		ids = b.splitScopes(b.deps.DefaultScope)
	}
	return b.resolveScopes(ctx, ids, redirectURI)
}

func (b *base) resolveScopes(ctx context.Context, ids []string, redirectURI string) ([]*scopes.Scope, error) {
	resolved := make([]*scopes.Scope, 0, len(ids))
	for _, id := range ids {
		scope, err := b.deps.Scopes.GetScopeEntityByIdentifier(ctx, id)
		if err != nil && !errors.Is(err, scopes.ErrNotFound) {
			return nil, serverError(err, "[grant.resolveScopes] GetScopeEntityByIdentifier")
		}
		if scope == nil || err != nil {
			return nil, oauth2.ErrInvalidScope(id, redirectURI)
		}
		resolved = append(resolved, scope)
	}
	return resolved, nil
}

// finalizeScopes gives a scope repository that implements scopes.Finalizer the last word.
func (b *base) finalizeScopes(ctx context.Context, requested []*scopes.Scope, client *clients.Client, userID string) ([]*scopes.Scope, error) {
	finalizer, ok := b.deps.Scopes.(scopes.Finalizer)
	if !ok {
		return requested, nil
	}
	finalized, err := finalizer.FinalizeScopes(ctx, requested, b.grantType, client, userID)
	if err != nil {
		var oauthErr *oauth2.Error
		if errors.As(err, &oauthErr) {
			return nil, oauthErr
		}
		return nil, serverError(err, "[grant.finalizeScopes] FinalizeScopes")
	}
	return finalized, nil
}

// persistWithRetry regenerates the identifier while persist reports a collision.
func (b *base) persistWithRetry(persist func(id string) error) error {
	var err error
	for attempt := 1; attempt <= MaxGenerationAttempts; attempt++ {
		var id string
		id, err = b.deps.IdentifierGenerator.GenerateIdentifier()
		if err != nil {
			return err
		}
		if err = persist(id); err == nil {
			return nil
		}
		if !errors.Is(err, token.ErrUniqueIdentifierViolation) {
			return err
		}
		b.deps.Logger.Debug().Int("attempt", attempt).Str("grant_type", string(b.grantType)).Msg("token identifier collision")
	}
	return err
}

func (b *base) issueAccessToken(ctx context.Context, req *httpmsg.Request, ttl time.Duration, client *clients.Client, userID string, tokenScopes []*scopes.Scope) (*token.AccessToken, error) {
	accessToken, err := b.deps.AccessTokens.GetNewToken(ctx, client, tokenScopes, userID)
	if err != nil {
		return nil, serverError(err, "[grant.issueAccessToken] GetNewToken")
	}
	if accessToken == nil {
		return nil, oauth2.ErrServerError(errors.New("[grant.issueAccessToken] repository returned no access token"))
	}

	now := b.now()
	accessToken.Client = client
	accessToken.UserID = userID
	accessToken.Scopes = tokenScopes
	accessToken.IssuedAt = now
	accessToken.ExpiresAt = now.Add(ttl)

	err = b.persistWithRetry(func(id string) error {
		accessToken.ID = id
		return b.deps.AccessTokens.PersistNewAccessToken(ctx, accessToken)
	})
	if err != nil {
		return nil, serverError(err, "[grant.issueAccessToken] PersistNewAccessToken")
	}

	b.deps.Instrumentation.Metrics().RecordTokenIssued(ctx, client.ID, string(b.grantType), instrumentation.TokenKindAccess)
	b.emit(ctx, events.Event{Name: events.AccessTokenIssued, Request: req, ClientID: client.ID, UserID: userID, TokenID: accessToken.ID})
	return accessToken, nil
}

// issueRefreshToken returns nil when the grant has no refresh repository or
// the repository declines to issue one.
func (b *base) issueRefreshToken(ctx context.Context, req *httpmsg.Request, accessToken *token.AccessToken) (*token.RefreshToken, error) {
	if b.refreshTokens == nil {
		return nil, nil
	}
	refreshToken, err := b.refreshTokens.GetNewRefreshToken(ctx)
	if err != nil {
		return nil, serverError(err, "[grant.issueRefreshToken] GetNewRefreshToken")
	}
	if refreshToken == nil {
		return nil, nil
	}

	refreshToken.AccessToken = accessToken
	refreshToken.ExpiresAt = b.now().Add(b.opts.refreshTokenTTL)

	err = b.persistWithRetry(func(id string) error {
		refreshToken.ID = id
		return b.refreshTokens.PersistNewRefreshToken(ctx, refreshToken)
	})
	if err != nil {
		return nil, serverError(err, "[grant.issueRefreshToken] PersistNewRefreshToken")
	}

	b.deps.Instrumentation.Metrics().RecordTokenIssued(ctx, accessToken.ClientID(), string(b.grantType), instrumentation.TokenKindRefresh)
	b.emit(ctx, events.Event{Name: events.RefreshTokenIssued, Request: req, ClientID: accessToken.ClientID(), UserID: accessToken.UserID, TokenID: refreshToken.ID})
	return refreshToken, nil
}

// validateAuthorizationParams runs the authorize endpoint checks shared by the
// code and implicit grants. Errors that can be redirected use the given mode.
func (b *base) validateAuthorizationParams(ctx context.Context, req *httpmsg.Request, useFragment bool) (*AuthorizationRequest, error) {
	clientID, _ := req.QueryParam(oauth2.ParamClientID)
	if clientID == "" {
		return nil, oauth2.ErrInvalidRequest(oauth2.ParamClientID, nil)
	}

	supplied, _ := req.QueryParam(oauth2.ParamRedirectURI)
	var redirectParam *string
	if supplied != "" {
		redirectParam = &supplied
	}

	client, err := b.lookupClient(ctx, req, clientID, nil, redirectParam)
	if err != nil {
		return nil, err
	}
	redirectURI, err := b.validateRedirectURI(ctx, req, client, supplied)
	if err != nil {
		return nil, err
	}

	state, _ := req.QueryParam(oauth2.ParamState)
	if state == "" && b.opts.requireState {
		return nil, oauth2.ErrInvalidRequest(oauth2.ParamState, nil).WithRedirect(redirectURI, useFragment)
	}

	rawScopes, _ := req.QueryParam(oauth2.ParamScope)
	requested, err := b.ValidateScopes(ctx, rawScopes, redirectURI)
	if err != nil {
		var oauthErr *oauth2.Error
		if errors.As(err, &oauthErr) && oauthErr.RedirectURI != "" {
			return nil, oauthErr.WithRedirect(oauthErr.RedirectURI, useFragment).WithState(state)
		}
		return nil, err
	}

	return &AuthorizationRequest{
		GrantTypeID:         b.grantType,
		Client:              client,
		Scopes:              requested,
		RedirectURI:         redirectURI,
		RedirectURIProvided: supplied != "",
		State:               state,
	}, nil
}

func (b *base) accessDenied(authReq *AuthorizationRequest, useFragment bool) *oauth2.Error {
	return oauth2.ErrAccessDenied("The user denied the request", "").
		WithRedirect(authReq.RedirectURI, useFragment).
		WithState(authReq.State)
}
