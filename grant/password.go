package grant

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-oauth2-server/events"
	"github.com/jrsteele09/go-oauth2-server/httpmsg"
	"github.com/jrsteele09/go-oauth2-server/oauth2"
	"github.com/jrsteele09/go-oauth2-server/responsetype"
	"github.com/jrsteele09/go-oauth2-server/token"
	"github.com/jrsteele09/go-oauth2-server/users"
)

// PasswordGrant exchanges resource-owner credentials for tokens.
type PasswordGrant struct {
	base
	users users.Repo
}

var _ Handler = (*PasswordGrant)(nil)

// NewPasswordGrant creates the grant. refreshTokens may be nil to disable refresh tokens.
func NewPasswordGrant(userRepo users.Repo, refreshTokens token.RefreshTokenRepo, opts ...Option) *PasswordGrant {
	return &PasswordGrant{
		base:  newBase(oauth2.PasswordGrant, refreshTokens, opts),
		users: userRepo,
	}
}

func (g *PasswordGrant) RespondToAccessTokenRequest(ctx context.Context, req *httpmsg.Request, accessTokenTTL time.Duration) (responsetype.ResponseType, error) {
	client, err := g.validateClient(ctx, req)
	if err != nil {
		return nil, err
	}

	rawScopes, _ := req.BodyParam(oauth2.ParamScope)
	requested, err := g.ValidateScopes(ctx, rawScopes, "")
	if err != nil {
		return nil, err
	}

	username, _ := req.BodyParam(oauth2.ParamUsername)
	if username == "" {
		return nil, oauth2.ErrInvalidRequest(oauth2.ParamUsername, nil)
	}
	password, _ := req.BodyParam(oauth2.ParamPassword)
	if password == "" {
		return nil, oauth2.ErrInvalidRequest(oauth2.ParamPassword, nil)
	}

	user, err := g.users.GetUserEntityByUserCredentials(ctx, username, password, g.grantType, client)
	if err != nil && !errors.Is(err, users.ErrNotFound) {
		return nil, serverError(err, "[PasswordGrant.RespondToAccessTokenRequest] GetUserEntityByUserCredentials")
	}
	if user == nil || err != nil {
		g.deps.Logger.Debug().Str("client_id", client.ID).Msg("user authentication failed")
		g.emit(ctx, events.Event{Name: events.UserAuthenticationFailed, Request: req, ClientID: client.ID})
		return nil, oauth2.ErrInvalidGrant("The user credentials were incorrect")
	}

	finalized, err := g.finalizeScopes(ctx, requested, client, user.ID)
	if err != nil {
		return nil, err
	}

	accessToken, err := g.issueAccessToken(ctx, req, accessTokenTTL, client, user.ID, finalized)
	if err != nil {
		return nil, err
	}
	refreshToken, err := g.issueRefreshToken(ctx, req, accessToken)
	if err != nil {
		return nil, err
	}
	return g.deps.Responses.Bearer(accessToken, refreshToken), nil
}
