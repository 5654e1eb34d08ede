// Package auth is the authorization server: it owns the enabled grants and
// dispatches authorization and token requests to the first grant that
// recognises them.
package auth

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jrsteele09/go-oauth2-server/clients"
	"github.com/jrsteele09/go-oauth2-server/events"
	"github.com/jrsteele09/go-oauth2-server/grant"
	"github.com/jrsteele09/go-oauth2-server/httpmsg"
	"github.com/jrsteele09/go-oauth2-server/instrumentation"
	"github.com/jrsteele09/go-oauth2-server/oauth2"
	"github.com/jrsteele09/go-oauth2-server/responsetype"
	"github.com/jrsteele09/go-oauth2-server/scopes"
	"github.com/jrsteele09/go-oauth2-server/token"
	"github.com/jrsteele09/go-oauth2-server/token/crypt"
	"github.com/jrsteele09/go-oauth2-server/token/keys"
)

// DefaultAccessTokenTTL applies to grants enabled without an explicit TTL.
const DefaultAccessTokenTTL = time.Hour

// Config holds the collaborators every server needs.
type Config struct {
	Clients      clients.Repo
	AccessTokens token.AccessTokenRepo
	Scopes       scopes.Repo
	Signer       keys.Signer
	Encrypter    crypt.Encrypter
}

type enabledGrant struct {
	handler        grant.Handler
	accessTokenTTL time.Duration
}

type settings struct {
	grants              []enabledGrant
	scopeDelimiter      string
	defaultScope        string
	emitter             *events.Emitter
	logger              zerolog.Logger
	instrumentation     *instrumentation.Instrumentation
	nowFunc             func() time.Time
	identifierGenerator token.IdentifierGenerator
	responses           *responsetype.Builder
}

// Option configures an AuthorizationServer.
type Option func(*settings)

// WithGrantType enables a grant. Grants are tried in the order they are
// enabled. A zero accessTokenTTL means DefaultAccessTokenTTL.
func WithGrantType(handler grant.Handler, accessTokenTTL time.Duration) Option {
	return func(s *settings) {
		if accessTokenTTL <= 0 {
			accessTokenTTL = DefaultAccessTokenTTL
		}
		s.grants = append(s.grants, enabledGrant{handler: handler, accessTokenTTL: accessTokenTTL})
	}
}

func WithScopeDelimiter(delimiter string) Option {
	return func(s *settings) {
		s.scopeDelimiter = delimiter
	}
}

// WithDefaultScope is used when a request carries no scope.
func WithDefaultScope(scope string) Option {
	return func(s *settings) {
		s.defaultScope = scope
	}
}

func WithEmitter(emitter *events.Emitter) Option {
	return func(s *settings) {
		s.emitter = emitter
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

func WithInstrumentation(inst *instrumentation.Instrumentation) Option {
	return func(s *settings) {
		s.instrumentation = inst
	}
}

// WithNowFunc sets the clock (primarily for testing)
func WithNowFunc(nowFunc func() time.Time) Option {
	return func(s *settings) {
		s.nowFunc = nowFunc
	}
}

func WithIdentifierGenerator(gen token.IdentifierGenerator) Option {
	return func(s *settings) {
		s.identifierGenerator = gen
	}
}

// WithResponseBuilder replaces the builder created from Config.Signer and Config.Encrypter.
func WithResponseBuilder(builder *responsetype.Builder) Option {
	return func(s *settings) {
		s.responses = builder
	}
}

// AuthorizationServer dispatches requests to the enabled grants. It is
// immutable once constructed and safe for concurrent use.
type AuthorizationServer struct {
	grants          []enabledGrant
	byID            map[oauth2.GrantType]enabledGrant
	logger          zerolog.Logger
	instrumentation *instrumentation.Instrumentation
}

// NewAuthorizationServer validates cfg and wires the shared collaborators into every enabled grant.
func NewAuthorizationServer(cfg Config, opts ...Option) (*AuthorizationServer, error) {
	if err := cfg.validate(); err != nil {
		return nil, errors.Wrap(err, "[NewAuthorizationServer]")
	}

	s := settings{
		scopeDelimiter:      grant.DefaultScopeDelimiter,
		logger:              zerolog.Nop(),
		instrumentation:     instrumentation.Noop(),
		nowFunc:             time.Now,
		identifierGenerator: token.NewRandomIdentifierGenerator(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.responses == nil {
		s.responses = responsetype.NewBuilder(cfg.Signer, cfg.Encrypter, responsetype.WithNowFunc(s.nowFunc))
	}

	deps := grant.Dependencies{
		Clients:             cfg.Clients,
		AccessTokens:        cfg.AccessTokens,
		Scopes:              cfg.Scopes,
		Encrypter:           cfg.Encrypter,
		Responses:           s.responses,
		Emitter:             s.emitter,
		Instrumentation:     s.instrumentation,
		Logger:              s.logger,
		IdentifierGenerator: s.identifierGenerator,
		NowFunc:             s.nowFunc,
		ScopeDelimiter:      s.scopeDelimiter,
		DefaultScope:        s.defaultScope,
	}

	server := &AuthorizationServer{
		grants:          make([]enabledGrant, 0, len(s.grants)),
		byID:            make(map[oauth2.GrantType]enabledGrant, len(s.grants)),
		logger:          s.logger,
		instrumentation: s.instrumentation,
	}
	for _, g := range s.grants {
		if g.handler == nil {
			return nil, errors.Wrap(ErrNilGrant, "[NewAuthorizationServer]")
		}
		id := g.handler.Identifier()
		if _, exists := server.byID[id]; exists {
			return nil, errors.Wrapf(ErrDuplicateGrant, "[NewAuthorizationServer] %s", id)
		}
		g.handler.SetDependencies(deps)
		server.grants = append(server.grants, g)
		server.byID[id] = g
		s.logger.Debug().Str("grant_type", string(id)).Dur("access_token_ttl", g.accessTokenTTL).Msg("grant enabled")
	}
	return server, nil
}

// EnabledGrantTypes lists the grants in dispatch order.
func (as *AuthorizationServer) EnabledGrantTypes() []oauth2.GrantType {
	ids := make([]oauth2.GrantType, 0, len(as.grants))
	for _, g := range as.grants {
		ids = append(ids, g.handler.Identifier())
	}
	return ids
}

// ValidateAuthorizationRequest hands the authorize request to the first grant
// that recognises it. The embedding application authenticates the resource
// owner, then calls CompleteAuthorizationRequest with the result.
func (as *AuthorizationServer) ValidateAuthorizationRequest(ctx context.Context, req *httpmsg.Request) (*grant.AuthorizationRequest, error) {
	ctx, span := as.instrumentation.StartSpan(ctx, "oauth.ValidateAuthorizationRequest")
	defer span.End()

	for _, g := range as.grants {
		if !g.handler.CanRespondToAuthorizationRequest(req) {
			continue
		}
		grantType := string(g.handler.Identifier())
		span.SetAttributes(attribute.String(instrumentation.AttrGrantType, grantType))
		as.instrumentation.Metrics().RecordAuthorizationRequest(ctx, grantType)

		authReq, err := g.handler.ValidateAuthorizationRequest(ctx, req)
		if err != nil {
			return nil, as.fail(ctx, span, grantType, err)
		}
		if authReq.Client != nil {
			span.SetAttributes(attribute.String(instrumentation.AttrClientID, authReq.Client.ID))
		}
		instrumentation.SetSpanSuccess(span)
		return authReq, nil
	}
	return nil, as.fail(ctx, span, "", oauth2.ErrUnsupportedGrantType())
}

// CompleteAuthorizationRequest records the resource owner's decision and
// renders the grant's redirect into resp. A denial is returned as an
// access_denied error carrying the redirect.
func (as *AuthorizationServer) CompleteAuthorizationRequest(ctx context.Context, authReq *grant.AuthorizationRequest, ownerApproved bool, resp *httpmsg.Response) error {
	ctx, span := as.instrumentation.StartSpan(ctx, "oauth.CompleteAuthorizationRequest",
		attribute.Bool(instrumentation.AttrApproved, ownerApproved))
	defer span.End()

	if authReq == nil {
		return as.fail(ctx, span, "", oauth2.ErrServerError(errors.New("[AuthorizationServer.CompleteAuthorizationRequest] nil authorization request")))
	}
	g, ok := as.byID[authReq.GrantTypeID]
	if !ok {
		return as.fail(ctx, span, string(authReq.GrantTypeID), oauth2.ErrUnsupportedGrantType())
	}
	grantType := string(authReq.GrantTypeID)
	span.SetAttributes(attribute.String(instrumentation.AttrGrantType, grantType))
	if authReq.Client != nil {
		span.SetAttributes(attribute.String(instrumentation.AttrClientID, authReq.Client.ID))
	}

	authReq.Approved = ownerApproved
	rt, err := g.handler.CompleteAuthorizationRequest(ctx, authReq, g.accessTokenTTL)
	if err != nil {
		return as.fail(ctx, span, grantType, err)
	}
	if err := rt.GenerateHTTPResponse(resp); err != nil {
		return as.fail(ctx, span, grantType, oauth2.ErrServerError(errors.Wrap(err, "[AuthorizationServer.CompleteAuthorizationRequest] GenerateHTTPResponse")))
	}
	instrumentation.SetSpanSuccess(span)
	return nil
}

// RespondToAccessTokenRequest serves the token endpoint, rendering the bearer
// response into resp.
func (as *AuthorizationServer) RespondToAccessTokenRequest(ctx context.Context, req *httpmsg.Request, resp *httpmsg.Response) error {
	ctx, span := as.instrumentation.StartSpan(ctx, "oauth.RespondToAccessTokenRequest")
	defer span.End()

	for _, g := range as.grants {
		if !g.handler.CanRespondToAccessTokenRequest(req) {
			continue
		}
		grantType := string(g.handler.Identifier())
		span.SetAttributes(attribute.String(instrumentation.AttrGrantType, grantType))
		as.instrumentation.Metrics().RecordTokenRequest(ctx, grantType)

		rt, err := g.handler.RespondToAccessTokenRequest(ctx, req, g.accessTokenTTL)
		if err != nil {
			return as.fail(ctx, span, grantType, err)
		}
		if err := rt.GenerateHTTPResponse(resp); err != nil {
			return as.fail(ctx, span, grantType, oauth2.ErrServerError(errors.Wrap(err, "[AuthorizationServer.RespondToAccessTokenRequest] GenerateHTTPResponse")))
		}
		instrumentation.SetSpanSuccess(span)
		return nil
	}

	grantType, _ := req.BodyParam(oauth2.ParamGrantType)
	return as.fail(ctx, span, grantType, oauth2.ErrUnsupportedGrantType())
}

// WriteErrorResponse renders err in the OAuth wire format. Anything that is
// not an *oauth2.Error becomes server_error.
func WriteErrorResponse(err error, resp *httpmsg.Response) error {
	if err == nil {
		return errors.New("[auth.WriteErrorResponse] nil error")
	}
	return oauth2.AsError(err).GenerateHTTPResponse(resp)
}

// fail normalises err to *oauth2.Error and records it.
func (as *AuthorizationServer) fail(ctx context.Context, span trace.Span, grantType string, err error) error {
	oauthErr := oauth2.AsError(err)
	code := string(oauthErr.Code)

	span.SetAttributes(attribute.String(instrumentation.AttrError, code))
	instrumentation.RecordError(span, oauthErr)
	as.instrumentation.Metrics().RecordRequestFailure(ctx, grantType, code)

	if oauthErr.Code == oauth2.ErrorCodeServerError {
		as.logger.Error().Err(oauthErr.Unwrap()).Str("grant_type", grantType).Msg("oauth request failed")
	} else {
		as.logger.Debug().Str("error", code).Str("hint", oauthErr.Hint).Str("grant_type", grantType).Msg("oauth request rejected")
	}
	return oauthErr
}
