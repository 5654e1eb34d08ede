package grant

import (
	"context"
	"slices"
	"time"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-oauth2-server/clients"
	"github.com/jrsteele09/go-oauth2-server/events"
	"github.com/jrsteele09/go-oauth2-server/httpmsg"
	"github.com/jrsteele09/go-oauth2-server/oauth2"
	"github.com/jrsteele09/go-oauth2-server/responsetype"
	"github.com/jrsteele09/go-oauth2-server/scopes"
	"github.com/jrsteele09/go-oauth2-server/token"
	"github.com/jrsteele09/go-oauth2-server/token/refresh"
)

// RefreshTokenGrant rotates a refresh token into a new token pair.
type RefreshTokenGrant struct {
	base
}

var _ Handler = (*RefreshTokenGrant)(nil)

func NewRefreshTokenGrant(refreshTokens token.RefreshTokenRepo, opts ...Option) *RefreshTokenGrant {
	return &RefreshTokenGrant{base: newBase(oauth2.RefreshTokenGrant, refreshTokens, opts)}
}

func (g *RefreshTokenGrant) RespondToAccessTokenRequest(ctx context.Context, req *httpmsg.Request, accessTokenTTL time.Duration) (responsetype.ResponseType, error) {
	if g.refreshTokens == nil {
		return nil, oauth2.ErrServerError(errors.New("[RefreshTokenGrant.RespondToAccessTokenRequest] no refresh token repository"))
	}

	client, err := g.validateClient(ctx, req)
	if err != nil {
		return nil, err
	}

	old, err := g.validateOldRefreshToken(ctx, req, client)
	if err != nil {
		return nil, err
	}

	var requested []*scopes.Scope
	if rawScopes, _ := req.BodyParam(oauth2.ParamScope); rawScopes != "" {
		requested, err = g.resolveScopes(ctx, g.splitScopes(rawScopes), "")
		if err != nil {
			return nil, err
		}
		for _, scope := range requested {
			if !slices.Contains(old.Scopes, scope.ID) {
				return nil, oauth2.ErrInvalidScope(scope.ID, "")
			}
		}
	} else {
		requested, err = g.resolveScopes(ctx, old.Scopes, "")
		if err != nil {
			return nil, err
		}
	}

	if err := g.deps.AccessTokens.RevokeAccessToken(ctx, old.AccessTokenID); err != nil && !errors.Is(err, token.ErrNotFound) {
		return nil, serverError(err, "[RefreshTokenGrant.RespondToAccessTokenRequest] RevokeAccessToken")
	}
	if err := g.refreshTokens.RevokeRefreshToken(ctx, old.RefreshTokenID); err != nil {
		if errors.Is(err, token.ErrNotFound) {
			return nil, oauth2.ErrInvalidGrant("Token has been revoked")
		}
		return nil, serverError(err, "[RefreshTokenGrant.RespondToAccessTokenRequest] RevokeRefreshToken")
	}

	accessToken, err := g.issueAccessToken(ctx, req, accessTokenTTL, client, old.UserID, requested)
	if err != nil {
		return nil, err
	}
	refreshToken, err := g.issueRefreshToken(ctx, req, accessToken)
	if err != nil {
		return nil, err
	}
	return g.deps.Responses.Bearer(accessToken, refreshToken), nil
}

func (g *RefreshTokenGrant) validateOldRefreshToken(ctx context.Context, req *httpmsg.Request, client *clients.Client) (refresh.Payload, error) {
	raw, _ := req.BodyParam(oauth2.ParamRefreshToken)
	if raw == "" {
		return refresh.Payload{}, oauth2.ErrInvalidRequest(oauth2.ParamRefreshToken, nil)
	}

	payload, err := refresh.Open(raw, g.deps.Encrypter)
	if err != nil {
		g.deps.Logger.Debug().Err(err).Str("client_id", client.ID).Msg("refresh token could not be opened")
		return refresh.Payload{}, oauth2.ErrInvalidGrant("Cannot decrypt the refresh token")
	}

	if payload.ClientID != client.ID {
		g.emit(ctx, events.Event{Name: events.RefreshTokenClientFailed, Request: req, ClientID: client.ID})
		return refresh.Payload{}, oauth2.ErrInvalidGrant("Token is not linked to client")
	}
	if payload.Expired(g.now()) {
		return refresh.Payload{}, oauth2.ErrInvalidGrant("Token has expired")
	}

	revoked, err := g.refreshTokens.IsRefreshTokenRevoked(ctx, payload.RefreshTokenID)
	if err != nil {
		return refresh.Payload{}, serverError(err, "[RefreshTokenGrant.validateOldRefreshToken] IsRefreshTokenRevoked")
	}
	if revoked {
		return refresh.Payload{}, oauth2.ErrInvalidGrant("Token has been revoked")
	}
	return payload, nil
}
