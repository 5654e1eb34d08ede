// Package grant implements the RFC 6749 grant types. Each grant is a Handler
// that the authorization server dispatches to by request shape.
package grant

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-oauth2-server/clients"
	"github.com/jrsteele09/go-oauth2-server/events"
	"github.com/jrsteele09/go-oauth2-server/httpmsg"
	"github.com/jrsteele09/go-oauth2-server/instrumentation"
	"github.com/jrsteele09/go-oauth2-server/oauth2"
	"github.com/jrsteele09/go-oauth2-server/responsetype"
	"github.com/jrsteele09/go-oauth2-server/scopes"
	"github.com/jrsteele09/go-oauth2-server/token"
	"github.com/jrsteele09/go-oauth2-server/token/crypt"
)

const (
	// MaxGenerationAttempts bounds identifier regeneration after a collision.
	MaxGenerationAttempts = 10

	DefaultRefreshTokenTTL = 30 * 24 * time.Hour
	DefaultAuthCodeTTL     = 10 * time.Minute
	DefaultScopeDelimiter  = " "
)

// Handler is one grant type. Handlers that do not serve an endpoint report false
// from the matching predicate; the corresponding method then returns an error.
type Handler interface {
	Identifier() oauth2.GrantType
	CanRespondToAuthorizationRequest(req *httpmsg.Request) bool
	CanRespondToAccessTokenRequest(req *httpmsg.Request) bool
	ValidateAuthorizationRequest(ctx context.Context, req *httpmsg.Request) (*AuthorizationRequest, error)
	CompleteAuthorizationRequest(ctx context.Context, authReq *AuthorizationRequest, accessTokenTTL time.Duration) (responsetype.ResponseType, error)
	RespondToAccessTokenRequest(ctx context.Context, req *httpmsg.Request, accessTokenTTL time.Duration) (responsetype.ResponseType, error)
	SetDependencies(deps Dependencies)
}

// Dependencies are the collaborators shared by every grant on a server.
type Dependencies struct {
	Clients             clients.Repo
	AccessTokens        token.AccessTokenRepo
	Scopes              scopes.Repo
	Encrypter           crypt.Encrypter
	Responses           *responsetype.Builder
	Emitter             *events.Emitter
	Instrumentation     *instrumentation.Instrumentation
	Logger              zerolog.Logger
	IdentifierGenerator token.IdentifierGenerator
	NowFunc             func() time.Time
	ScopeDelimiter      string
	DefaultScope        string
}

// AuthorizationRequest lives between ValidateAuthorizationRequest and
// CompleteAuthorizationRequest. It is never persisted.
type AuthorizationRequest struct {
	GrantTypeID oauth2.GrantType
	Client      *clients.Client
	Scopes      []*scopes.Scope

	// RedirectURI is where the response is sent. RedirectURIProvided records
	// whether the client sent it, in which case an issued code is bound to it.
	RedirectURI         string
	RedirectURIProvided bool
	State               string

	// Set by the embedding application once the resource owner has logged in.
	UserID   string
	Approved bool

	CodeChallenge       string
	CodeChallengeMethod oauth2.CodeMethodType
}

type options struct {
	refreshTokenTTL                      time.Duration
	authCodeTTL                          time.Duration
	requireCodeChallengeForPublicClients bool
	requireState                         bool
}

type Option func(*options)

// WithRefreshTokenTTL sets the lifetime of refresh tokens issued by the grant.
func WithRefreshTokenTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.refreshTokenTTL = ttl
	}
}

// WithAuthCodeTTL sets the lifetime of authorization codes.
func WithAuthCodeTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.authCodeTTL = ttl
	}
}

// WithRequireCodeChallengeForPublicClients rejects authorization requests from
// public clients that do not send a PKCE code_challenge.
func WithRequireCodeChallengeForPublicClients() Option {
	return func(o *options) {
		o.requireCodeChallengeForPublicClients = true
	}
}

// WithRequireState makes the state parameter mandatory at the authorization endpoint.
func WithRequireState() Option {
	return func(o *options) {
		o.requireState = true
	}
}

func newOptions(opts []Option) options {
	o := options{
		refreshTokenTTL: DefaultRefreshTokenTTL,
		authCodeTTL:     DefaultAuthCodeTTL,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
