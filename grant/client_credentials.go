package grant

import (
	"context"
	"time"

	"github.com/jrsteele09/go-oauth2-server/httpmsg"
	"github.com/jrsteele09/go-oauth2-server/oauth2"
	"github.com/jrsteele09/go-oauth2-server/responsetype"
)

// ClientCredentialsGrant issues tokens to a confidential client acting on its own behalf.
type ClientCredentialsGrant struct {
	base
}

var _ Handler = (*ClientCredentialsGrant)(nil)

func NewClientCredentialsGrant(opts ...Option) *ClientCredentialsGrant {
	return &ClientCredentialsGrant{base: newBase(oauth2.ClientCredentialsGrant, nil, opts)}
}

func (g *ClientCredentialsGrant) RespondToAccessTokenRequest(ctx context.Context, req *httpmsg.Request, accessTokenTTL time.Duration) (responsetype.ResponseType, error) {
	client, err := g.validateClient(ctx, req)
	if err != nil {
		return nil, err
	}
	if client.IsPublic() {
		return nil, oauth2.ErrUnauthorizedClient("Public clients cannot use the client_credentials grant")
	}

	rawScopes, _ := req.BodyParam(oauth2.ParamScope)
	requested, err := g.ValidateScopes(ctx, rawScopes, "")
	if err != nil {
		return nil, err
	}
	finalized, err := g.finalizeScopes(ctx, requested, client, "")
	if err != nil {
		return nil, err
	}

	accessToken, err := g.issueAccessToken(ctx, req, accessTokenTTL, client, "", finalized)
	if err != nil {
		return nil, err
	}
	return g.deps.Responses.Bearer(accessToken, nil), nil
}
