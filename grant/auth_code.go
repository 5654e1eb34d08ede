package grant

import (
	"context"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-oauth2-server/events"
	"github.com/jrsteele09/go-oauth2-server/httpmsg"
	"github.com/jrsteele09/go-oauth2-server/instrumentation"
	"github.com/jrsteele09/go-oauth2-server/oauth2"
	"github.com/jrsteele09/go-oauth2-server/responsetype"
	"github.com/jrsteele09/go-oauth2-server/scopes"
	"github.com/jrsteele09/go-oauth2-server/token"
)

// AuthCodeGrant implements the authorization_code grant, optionally with PKCE.
type AuthCodeGrant struct {
	base
	authCodes token.AuthCodeRepo
}

var _ Handler = (*AuthCodeGrant)(nil)

// NewAuthCodeGrant creates the grant. refreshTokens may be nil to disable refresh tokens.
func NewAuthCodeGrant(authCodes token.AuthCodeRepo, refreshTokens token.RefreshTokenRepo, opts ...Option) *AuthCodeGrant {
	return &AuthCodeGrant{
		base:      newBase(oauth2.AuthorizationCodeGrant, refreshTokens, opts),
		authCodes: authCodes,
	}
}

func (g *AuthCodeGrant) CanRespondToAuthorizationRequest(req *httpmsg.Request) bool {
	responseType, _ := req.QueryParam(oauth2.ParamResponseType)
	clientID, _ := req.QueryParam(oauth2.ParamClientID)
	return oauth2.ResponseType(responseType) == oauth2.CodeResponseType && clientID != ""
}

func (g *AuthCodeGrant) ValidateAuthorizationRequest(ctx context.Context, req *httpmsg.Request) (*AuthorizationRequest, error) {
	authReq, err := g.validateAuthorizationParams(ctx, req, false)
	if err != nil {
		return nil, err
	}

	challenge, _ := req.QueryParam(oauth2.ParamCodeChallenge)
	if challenge == "" {
		if g.opts.requireCodeChallengeForPublicClients && authReq.Client.IsPublic() {
			return nil, oauth2.ErrInvalidRequest(oauth2.ParamCodeChallenge,
				errors.New("code challenge must be provided for public clients")).
				WithRedirect(authReq.RedirectURI, false).WithState(authReq.State)
		}
		return authReq, nil
	}

	method := oauth2.CodeMethodTypePlain
	if m, _ := req.QueryParam(oauth2.ParamCodeChallengeMethod); m != "" {
		method = oauth2.CodeMethodType(m)
	}
	if err := validatePKCE(challenge, method); err != nil {
		return nil, oauth2.AsError(err).WithRedirect(authReq.RedirectURI, false).WithState(authReq.State)
	}

	authReq.CodeChallenge = challenge
	authReq.CodeChallengeMethod = method
	return authReq, nil
}

// CompleteAuthorizationRequest issues a code when the resource owner approved.
// The access token TTL is not used here; codes live for the auth code TTL.
func (g *AuthCodeGrant) CompleteAuthorizationRequest(ctx context.Context, authReq *AuthorizationRequest, _ time.Duration) (responsetype.ResponseType, error) {
	if !authReq.Approved {
		return nil, g.accessDenied(authReq, false)
	}
	if authReq.UserID == "" {
		return nil, oauth2.ErrServerError(errors.New("[AuthCodeGrant.CompleteAuthorizationRequest] user must be set on an approved request"))
	}

	boundRedirectURI := ""
	if authReq.RedirectURIProvided {
		boundRedirectURI = authReq.RedirectURI
	}

	code, err := g.authCodes.GetNewAuthCode(ctx)
	if err != nil {
		return nil, serverError(err, "[AuthCodeGrant.CompleteAuthorizationRequest] GetNewAuthCode")
	}
	if code == nil {
		return nil, oauth2.ErrServerError(errors.New("[AuthCodeGrant.CompleteAuthorizationRequest] repository returned no auth code"))
	}
	code.Client = authReq.Client
	code.UserID = authReq.UserID
	code.RedirectURI = boundRedirectURI
	code.Scopes = authReq.Scopes
	code.ExpiresAt = g.now().Add(g.opts.authCodeTTL)
	code.CodeChallenge = authReq.CodeChallenge
	code.CodeChallengeMethod = authReq.CodeChallengeMethod

	err = g.persistWithRetry(func(id string) error {
		code.ID = id
		return g.authCodes.PersistNewAuthCode(ctx, code)
	})
	if err != nil {
		return nil, serverError(err, "[AuthCodeGrant.CompleteAuthorizationRequest] PersistNewAuthCode")
	}

	g.deps.Instrumentation.Metrics().RecordTokenIssued(ctx, authReq.Client.ID, string(g.grantType), instrumentation.TokenKindAuthCode)
	g.emit(ctx, events.Event{Name: events.AuthCodeIssued, ClientID: authReq.Client.ID, UserID: authReq.UserID, TokenID: code.ID})

	params := url.Values{}
	params.Set(oauth2.ParamCode, code.ID)
	if authReq.State != "" {
		params.Set(oauth2.ParamState, authReq.State)
	}
	return g.deps.Responses.Redirect(oauth2.BuildRedirectURI(authReq.RedirectURI, params, false)), nil
}

func (g *AuthCodeGrant) RespondToAccessTokenRequest(ctx context.Context, req *httpmsg.Request, accessTokenTTL time.Duration) (responsetype.ResponseType, error) {
	client, err := g.validateClient(ctx, req)
	if err != nil {
		return nil, err
	}

	codeID, _ := req.BodyParam(oauth2.ParamCode)
	if codeID == "" {
		return nil, oauth2.ErrInvalidRequest(oauth2.ParamCode, nil)
	}

	code, err := g.authCodes.GetAuthCodeByIdentifier(ctx, codeID)
	if err != nil && !errors.Is(err, token.ErrNotFound) {
		return nil, serverError(err, "[AuthCodeGrant.RespondToAccessTokenRequest] GetAuthCodeByIdentifier")
	}
	if code == nil || err != nil {
		return nil, oauth2.ErrInvalidGrant("Authorization code is invalid or has already been used")
	}

	if g.now().After(code.ExpiresAt) {
		return nil, oauth2.ErrInvalidGrant("Authorization code has expired")
	}
	if code.ClientID() != client.ID {
		return nil, oauth2.ErrInvalidGrant("Authorization code was not issued to this client")
	}

	if code.RedirectURI != "" {
		redirectURI, _ := req.BodyParam(oauth2.ParamRedirectURI)
		if redirectURI == "" {
			return nil, oauth2.ErrInvalidRequest(oauth2.ParamRedirectURI, nil)
		}
		if redirectURI != code.RedirectURI {
			return nil, oauth2.ErrInvalidGrant("Invalid redirect URI")
		}
	}

	verifier, _ := req.BodyParam(oauth2.ParamCodeVerifier)
	if code.CodeChallenge != "" {
		if verifier == "" {
			return nil, oauth2.ErrInvalidRequest(oauth2.ParamCodeVerifier, nil)
		}
		if err := validateCodeVerifier(verifier); err != nil {
			return nil, err
		}
	}
	if !checkCodeChallenge(code.CodeChallenge, verifier, code.CodeChallengeMethod) {
		return nil, oauth2.ErrInvalidGrant("Failed to verify `code_verifier`")
	}

	requested, err := g.resolveScopes(ctx, scopes.IDs(code.Scopes), "")
	if err != nil {
		return nil, err
	}
	finalized, err := g.finalizeScopes(ctx, requested, client, code.UserID)
	if err != nil {
		return nil, err
	}

	if err := g.authCodes.RevokeAuthCode(ctx, code.ID); err != nil {
		if errors.Is(err, token.ErrNotFound) {
			return nil, oauth2.ErrInvalidGrant("Authorization code has been revoked")
		}
		return nil, serverError(err, "[AuthCodeGrant.RespondToAccessTokenRequest] RevokeAuthCode")
	}

	accessToken, err := g.issueAccessToken(ctx, req, accessTokenTTL, client, code.UserID, finalized)
	if err != nil {
		return nil, err
	}
	refreshToken, err := g.issueRefreshToken(ctx, req, accessToken)
	if err != nil {
		return nil, err
	}
	return g.deps.Responses.Bearer(accessToken, refreshToken), nil
}
