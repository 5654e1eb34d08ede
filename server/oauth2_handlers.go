package server

import (
	"encoding/json"
	"net/http"
	"slices"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-oauth2-server/auth"
	"github.com/jrsteele09/go-oauth2-server/grant"
	"github.com/jrsteele09/go-oauth2-server/httpmsg"
	"github.com/jrsteele09/go-oauth2-server/oauth2"
	"github.com/jrsteele09/go-oauth2-server/resource"
	"github.com/jrsteele09/go-oauth2-server/server/authflowrepo"
	"github.com/jrsteele09/go-oauth2-server/users"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"

	paramFlowID   = "flow_id"
	paramDecision = "decision"

	decisionApprove = "approve"
)

// Metadata serves the RFC 8414 authorization server metadata document.
func (s *Server) Metadata() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		issuer := s.issuer(r)
		grantTypes := s.auth.EnabledGrantTypes()

		responseTypes := []oauth2.ResponseType{}
		if slices.Contains(grantTypes, oauth2.AuthorizationCodeGrant) {
			responseTypes = append(responseTypes, oauth2.CodeResponseType)
		}
		if slices.Contains(grantTypes, oauth2.ImplicitGrant) {
			responseTypes = append(responseTypes, oauth2.TokenResponseType)
		}

		resp := map[string]any{
			"issuer":                                issuer,
			"authorization_endpoint":                issuer + RouteOAuth2Authorize,
			"token_endpoint":                        issuer + RouteOAuth2Token,
			"jwks_uri":                              issuer + RouteWellKnownJWKS,
			"grant_types_supported":                 grantTypes,
			"response_types_supported":              responseTypes,
			"token_endpoint_auth_methods_supported": []string{"client_secret_basic", "client_secret_post", "none"},
			"code_challenge_methods_supported":      []oauth2.CodeMethodType{oauth2.CodeMethodTypeS256, oauth2.CodeMethodTypePlain},
		}

		w.Header().Set("Cache-Control", "public, max-age=3600")
		writeJSON(w, http.StatusOK, resp)
	}
}

// JWKS returns the JSON Web Key Set used to validate tokens
func (s *Server) JWKS() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		writeJSON(w, http.StatusOK, s.keySet)
	}
}

// Authorize validates the authorization request and shows the login form.
func (s *Server) Authorize() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		req, err := httpmsg.FromHTTP(r)
		if err != nil {
			s.writeError(w, oauth2.ErrInvalidRequest("request", err))
			return
		}

		authReq, err := s.auth.ValidateAuthorizationRequest(ctx, req)
		if err != nil {
			s.writeError(w, err)
			return
		}

		flowID, err := s.ids.GenerateIdentifier()
		if err != nil {
			s.writeError(w, oauth2.ErrServerError(errors.Wrap(err, "[Server.Authorize] GenerateIdentifier")))
			return
		}
		flow := &authflowrepo.AuthFlow{ID: flowID, Request: authReq, CreatedAt: s.now()}
		if err := s.authFlows.Upsert(ctx, flow); err != nil {
			s.writeError(w, oauth2.ErrServerError(errors.Wrap(err, "[Server.Authorize] Upsert")))
			return
		}

		s.renderLogin(w, http.StatusOK, flow, "", "")
	}
}

// AuthorizeDecision handles the login form: the resource owner either
// authenticates and approves, or denies.
func (s *Server) AuthorizeDecision() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if err := r.ParseForm(); err != nil {
			s.writeError(w, oauth2.ErrInvalidRequest("request", err))
			return
		}

		flow, err := s.authFlows.Take(ctx, r.PostFormValue(paramFlowID))
		if err != nil {
			if errors.Is(err, authflowrepo.ErrNotFound) {
				s.writeError(w, oauth2.ErrInvalidRequest(paramFlowID, err))
				return
			}
			s.writeError(w, oauth2.ErrServerError(errors.Wrap(err, "[Server.AuthorizeDecision] Take")))
			return
		}
		authReq := flow.Request

		approved := r.PostFormValue(paramDecision) == decisionApprove
		if approved {
			username := r.PostFormValue(oauth2.ParamUsername)
			user, err := s.users.GetUserEntityByUserCredentials(ctx, username,
				r.PostFormValue(oauth2.ParamPassword), authReq.GrantTypeID, authReq.Client)
			if err != nil && !errors.Is(err, users.ErrNotFound) {
				s.writeError(w, oauth2.ErrServerError(errors.Wrap(err, "[Server.AuthorizeDecision] GetUserEntityByUserCredentials")))
				return
			}
			if user == nil || err != nil {
				// Give the owner another attempt on the same flow.
				if err := s.authFlows.Upsert(ctx, flow); err != nil {
					s.writeError(w, oauth2.ErrServerError(errors.Wrap(err, "[Server.AuthorizeDecision] Upsert")))
					return
				}
				s.renderLogin(w, http.StatusUnauthorized, flow, username, "Invalid username or password")
				return
			}
			authReq.UserID = user.ID
		}

		resp := httpmsg.NewResponse()
		if err := s.auth.CompleteAuthorizationRequest(ctx, authReq, approved, resp); err != nil {
			s.writeError(w, err)
			return
		}
		s.write(w, resp)
	}
}

// Token exchanges a grant for tokens
func (s *Server) Token() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := httpmsg.FromHTTP(r)
		if err != nil {
			s.writeError(w, oauth2.ErrInvalidRequest("request", err))
			return
		}

		resp := httpmsg.NewResponse()
		if err := s.auth.RespondToAccessTokenRequest(r.Context(), req, resp); err != nil {
			s.writeError(w, err)
			return
		}
		s.write(w, resp)
	}
}

type userInfoResponse struct {
	Subject  string   `json:"sub,omitempty"`
	ClientID string   `json:"client_id"`
	Scopes   []string `json:"scopes"`
	Expires  int64    `json:"exp"`
}

// UserInfo describes the bearer token presented on the request. It must be
// wrapped by resource.Middleware.
func (s *Server) UserInfo() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, ok := resource.FromContext(r.Context())
		if !ok {
			s.writeError(w, oauth2.ErrAccessDenied("Missing access token", ""))
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, userInfoResponse{
			Subject:  info.UserID,
			ClientID: info.ClientID,
			Scopes:   info.Scopes,
			Expires:  info.ExpiresAt.Unix(),
		})
	})
}

type loginPageData struct {
	Action     string
	FlowID     string
	ClientName string
	Scopes     []string
	Username   string
	Error      string
}

func (s *Server) renderLogin(w http.ResponseWriter, status int, flow *authflowrepo.AuthFlow, username, errMsg string) {
	data := loginPageData{
		Action:     RouteOAuth2Authorize,
		FlowID:     flow.ID,
		ClientName: clientName(flow.Request),
		Username:   username,
		Error:      errMsg,
	}
	for _, scope := range flow.Request.Scopes {
		if scope.Description != "" {
			data.Scopes = append(data.Scopes, scope.Description)
		} else {
			data.Scopes = append(data.Scopes, scope.ID)
		}
	}

	w.Header().Set("Content-Type", contentTypeHTML)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := s.loginTmpl.Execute(w, data); err != nil {
		log.Err(err).Msg("failed to render login page")
	}
}

func clientName(authReq *grant.AuthorizationRequest) string {
	if authReq.Client == nil {
		return ""
	}
	if authReq.Client.Name != "" {
		return authReq.Client.Name
	}
	return authReq.Client.ID
}

func (s *Server) write(w http.ResponseWriter, resp *httpmsg.Response) {
	if err := resp.WriteHTTP(w); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	resp := httpmsg.NewResponse()
	if renderErr := auth.WriteErrorResponse(err, resp); renderErr != nil {
		log.Error().Err(renderErr).Msg("failed to render error response")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	s.write(w, resp)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", oauth2.ContentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}
