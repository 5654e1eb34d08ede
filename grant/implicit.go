package grant

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-oauth2-server/httpmsg"
	"github.com/jrsteele09/go-oauth2-server/oauth2"
	"github.com/jrsteele09/go-oauth2-server/responsetype"
)

// ImplicitGrant returns an access token straight from the authorization
// endpoint, in the redirect fragment. It is never served at the token endpoint.
type ImplicitGrant struct {
	base
}

var _ Handler = (*ImplicitGrant)(nil)

func NewImplicitGrant(opts ...Option) *ImplicitGrant {
	return &ImplicitGrant{base: newBase(oauth2.ImplicitGrant, nil, opts)}
}

func (g *ImplicitGrant) CanRespondToAuthorizationRequest(req *httpmsg.Request) bool {
	responseType, _ := req.QueryParam(oauth2.ParamResponseType)
	clientID, _ := req.QueryParam(oauth2.ParamClientID)
	return oauth2.ResponseType(responseType) == oauth2.TokenResponseType && clientID != ""
}

func (g *ImplicitGrant) CanRespondToAccessTokenRequest(*httpmsg.Request) bool {
	return false
}

func (g *ImplicitGrant) RespondToAccessTokenRequest(context.Context, *httpmsg.Request, time.Duration) (responsetype.ResponseType, error) {
	return nil, oauth2.ErrUnsupportedGrantType()
}

func (g *ImplicitGrant) ValidateAuthorizationRequest(ctx context.Context, req *httpmsg.Request) (*AuthorizationRequest, error) {
	return g.validateAuthorizationParams(ctx, req, true)
}

func (g *ImplicitGrant) CompleteAuthorizationRequest(ctx context.Context, authReq *AuthorizationRequest, accessTokenTTL time.Duration) (responsetype.ResponseType, error) {
	if !authReq.Approved {
		return nil, g.accessDenied(authReq, true)
	}
	if authReq.UserID == "" {
		return nil, oauth2.ErrServerError(errors.New("[ImplicitGrant.CompleteAuthorizationRequest] user must be set on an approved request"))
	}

	finalized, err := g.finalizeScopes(ctx, authReq.Scopes, authReq.Client, authReq.UserID)
	if err != nil {
		return nil, err
	}

	accessToken, err := g.issueAccessToken(ctx, nil, accessTokenTTL, authReq.Client, authReq.UserID, finalized)
	if err != nil {
		return nil, err
	}
	encoded, err := g.deps.Responses.EncodeAccessToken(accessToken)
	if err != nil {
		return nil, serverError(err, "[ImplicitGrant.CompleteAuthorizationRequest] EncodeAccessToken")
	}

	params := url.Values{}
	params.Set(oauth2.ParamAccessToken, encoded)
	params.Set(oauth2.ParamTokenType, oauth2.TokenTypeBearer)
	params.Set(oauth2.ParamExpiresIn, strconv.FormatInt(g.deps.Responses.ExpiresIn(accessToken), 10))
	if authReq.State != "" {
		params.Set(oauth2.ParamState, authReq.State)
	}
	return g.deps.Responses.Redirect(oauth2.BuildRedirectURI(authReq.RedirectURI, params, true)), nil
}
