// Package resource guards protected resources: it verifies bearer access
// tokens and checks them against the revocation store.
package resource

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jrsteele09/go-oauth2-server/httpmsg"
	"github.com/jrsteele09/go-oauth2-server/instrumentation"
	"github.com/jrsteele09/go-oauth2-server/oauth2"
	"github.com/jrsteele09/go-oauth2-server/token"
)

// Attributes set on a validated request.
const (
	AttrAccessTokenID = "oauth_access_token_id"
	AttrClientID      = "oauth_client_id"
	AttrUserID        = "oauth_user_id"
	AttrScopes        = "oauth_scopes"
)

// TokenInfo describes the access token a request was authenticated with.
type TokenInfo struct {
	TokenID   string
	ClientID  string
	UserID    string
	Scopes    []string
	ExpiresAt time.Time
}

type Option func(*BearerTokenValidator)

func WithLogger(logger zerolog.Logger) Option {
	return func(v *BearerTokenValidator) {
		v.logger = logger
	}
}

func WithInstrumentation(inst *instrumentation.Instrumentation) Option {
	return func(v *BearerTokenValidator) {
		v.instrumentation = inst
	}
}

// BearerTokenValidator authenticates resource requests carrying a JWT access token.
type BearerTokenValidator struct {
	accessTokens    token.AccessTokenRepo
	verifier        Verifier
	logger          zerolog.Logger
	instrumentation *instrumentation.Instrumentation
}

func NewBearerTokenValidator(accessTokens token.AccessTokenRepo, verifier Verifier, opts ...Option) *BearerTokenValidator {
	v := &BearerTokenValidator{
		accessTokens:    accessTokens,
		verifier:        verifier,
		logger:          zerolog.Nop(),
		instrumentation: instrumentation.Noop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateAuthenticatedRequest returns a copy of req carrying the token
// attributes, or an access_denied error.
func (v *BearerTokenValidator) ValidateAuthenticatedRequest(ctx context.Context, req *httpmsg.Request) (*httpmsg.Request, error) {
	info, err := v.Validate(ctx, req.HeaderValue("Authorization"))
	if err != nil {
		return nil, err
	}
	return req.
		WithAttribute(AttrAccessTokenID, info.TokenID).
		WithAttribute(AttrClientID, info.ClientID).
		WithAttribute(AttrUserID, info.UserID).
		WithAttribute(AttrScopes, info.Scopes), nil
}

// Validate checks an Authorization header value.
func (v *BearerTokenValidator) Validate(ctx context.Context, authorization string) (*TokenInfo, error) {
	ctx, span := v.instrumentation.StartSpan(ctx, "oauth.ValidateAccessToken")
	defer span.End()

	info, err := v.validate(ctx, authorization)
	v.instrumentation.Metrics().RecordResourceValidation(ctx, err == nil)
	if err != nil {
		instrumentation.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String(instrumentation.AttrClientID, info.ClientID))
	instrumentation.SetSpanSuccess(span)
	return info, nil
}

func (v *BearerTokenValidator) validate(ctx context.Context, authorization string) (*TokenInfo, error) {
	if authorization == "" {
		return nil, oauth2.ErrAccessDenied("Missing \"Authorization\" header", "")
	}
	scheme, raw, ok := strings.Cut(authorization, " ")
	raw = strings.TrimSpace(raw)
	if !ok || !strings.EqualFold(scheme, "Bearer") || raw == "" {
		return nil, oauth2.ErrAccessDenied("Authorization header is not a bearer token", "")
	}

	claims, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		v.logger.Debug().Err(err).Msg("access token rejected")
		return nil, oauth2.ErrAccessDenied("Access token could not be verified", "")
	}

	revoked, err := v.accessTokens.IsAccessTokenRevoked(ctx, claims.ID)
	if err != nil {
		return nil, oauth2.ErrServerError(errors.Wrap(err, "[BearerTokenValidator.validate] IsAccessTokenRevoked"))
	}
	if revoked {
		return nil, oauth2.ErrAccessDenied("Access token has been revoked", "")
	}

	info := &TokenInfo{
		TokenID:  claims.ID,
		ClientID: claims.ClientID(),
		UserID:   claims.Subject,
		Scopes:   claims.Scopes,
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	if info.Scopes == nil {
		info.Scopes = []string{}
	}
	return info, nil
}
