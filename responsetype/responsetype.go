// Package responsetype renders issued tokens into HTTP responses.
package responsetype

import (
	"encoding/json"
	"math"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-oauth2-server/httpmsg"
	"github.com/jrsteele09/go-oauth2-server/oauth2"
	"github.com/jrsteele09/go-oauth2-server/token"
	"github.com/jrsteele09/go-oauth2-server/token/crypt"
	"github.com/jrsteele09/go-oauth2-server/token/jwt"
	"github.com/jrsteele09/go-oauth2-server/token/keys"
	"github.com/jrsteele09/go-oauth2-server/token/refresh"
)

// ResponseType is what a grant hands back to the dispatcher on success.
type ResponseType interface {
	GenerateHTTPResponse(resp *httpmsg.Response) error
}

// ExtraParamsFunc adds fields to the bearer token JSON. Reserved fields cannot be overridden.
type ExtraParamsFunc func(accessToken *token.AccessToken) map[string]any

// Builder holds the key material shared by every response. It is safe for concurrent use;
// each request gets its own response value.
type Builder struct {
	signer      keys.Signer
	encrypter   crypt.Encrypter
	nowFunc     func() time.Time
	extraParams ExtraParamsFunc
}

type BuilderOption func(*Builder)

func WithNowFunc(nowFunc func() time.Time) BuilderOption {
	return func(b *Builder) {
		b.nowFunc = nowFunc
	}
}

func WithExtraParams(fn ExtraParamsFunc) BuilderOption {
	return func(b *Builder) {
		b.extraParams = fn
	}
}

func NewBuilder(signer keys.Signer, encrypter crypt.Encrypter, opts ...BuilderOption) *Builder {
	b := &Builder{
		signer:    signer,
		encrypter: encrypter,
		nowFunc:   time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Bearer returns a token endpoint response. refreshToken may be nil.
func (b *Builder) Bearer(accessToken *token.AccessToken, refreshToken *token.RefreshToken) *BearerTokenResponse {
	return &BearerTokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		builder:      b,
	}
}

func (b *Builder) Redirect(redirectURI string) *RedirectResponse {
	return &RedirectResponse{RedirectURI: redirectURI}
}

// EncodeAccessToken signs the access token as a JWT.
func (b *Builder) EncodeAccessToken(accessToken *token.AccessToken) (string, error) {
	if b.signer == nil {
		return "", errors.New("[Builder.EncodeAccessToken] no signer configured")
	}
	return jwt.CreateAccessToken(accessToken, b.signer)
}

// EncodeRefreshToken seals the refresh token payload.
func (b *Builder) EncodeRefreshToken(refreshToken *token.RefreshToken) (string, error) {
	if b.encrypter == nil {
		return "", errors.New("[Builder.EncodeRefreshToken] no encrypter configured")
	}
	return refresh.Seal(refresh.NewPayload(refreshToken), b.encrypter)
}

// ExpiresIn is the remaining lifetime in whole seconds, rounded up.
func (b *Builder) ExpiresIn(accessToken *token.AccessToken) int64 {
	remaining := accessToken.ExpiresAt.Sub(b.nowFunc()).Seconds()
	if remaining <= 0 {
		return 0
	}
	return int64(math.Ceil(remaining))
}

// BearerTokenResponse renders the RFC 6749 section 5.1 JSON body.
type BearerTokenResponse struct {
	AccessToken  *token.AccessToken
	RefreshToken *token.RefreshToken
	builder      *Builder
}

func (r *BearerTokenResponse) GenerateHTTPResponse(resp *httpmsg.Response) error {
	if r.AccessToken == nil {
		return errors.New("[BearerTokenResponse.GenerateHTTPResponse] missing access token")
	}

	accessToken, err := r.builder.EncodeAccessToken(r.AccessToken)
	if err != nil {
		return errors.Wrap(err, "[BearerTokenResponse.GenerateHTTPResponse] encode access token")
	}
	body := oauth2.TokenResponse{
		TokenType:   oauth2.TokenTypeBearer,
		ExpiresIn:   r.builder.ExpiresIn(r.AccessToken),
		AccessToken: accessToken,
	}
	if r.RefreshToken != nil {
		body.RefreshToken, err = r.builder.EncodeRefreshToken(r.RefreshToken)
		if err != nil {
			return errors.Wrap(err, "[BearerTokenResponse.GenerateHTTPResponse] encode refresh token")
		}
	}

	encoded, err := r.marshal(body)
	if err != nil {
		return errors.Wrap(err, "[BearerTokenResponse.GenerateHTTPResponse] marshal")
	}

	resp.Status = http.StatusOK
	resp.Header.Set("Pragma", "no-cache")
	resp.Header.Set("Cache-Control", "no-store")
	resp.Header.Set("Content-Type", oauth2.ContentTypeJSON)
	resp.Body.Reset()
	_, err = resp.Write(encoded)
	return err
}

func (r *BearerTokenResponse) marshal(body oauth2.TokenResponse) ([]byte, error) {
	if r.builder.extraParams == nil {
		return json.Marshal(body)
	}
	extra := r.builder.extraParams(r.AccessToken)
	if len(extra) == 0 {
		return json.Marshal(body)
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	merged := map[string]any{}
	if err := json.Unmarshal(raw, &merged); err != nil {
		return nil, err
	}
	for k, v := range extra {
		switch k {
		case oauth2.ParamTokenType, oauth2.ParamExpiresIn, oauth2.ParamAccessToken, oauth2.ParamRefreshToken:
			continue
		}
		merged[k] = v
	}
	return json.Marshal(merged)
}

type RedirectResponse struct {
	RedirectURI string
}

func (r *RedirectResponse) GenerateHTTPResponse(resp *httpmsg.Response) error {
	if r.RedirectURI == "" {
		return errors.New("[RedirectResponse.GenerateHTTPResponse] empty redirect uri")
	}
	resp.Status = http.StatusFound
	resp.Header.Set("Location", r.RedirectURI)
	return nil
}
