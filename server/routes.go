package server

import (
	"net/http"

	"github.com/jrsteele09/go-oauth2-server/resource"
)

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET "+RouteWellKnownMetadata, ChainMiddleware(s.Metadata(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteWellKnownJWKS, ChainMiddleware(s.JWKS(), s.APIMiddleware()...))

	// The login form is served from the authorize endpoint and posts back to it.
	s.RegisterRouteHandler("GET "+RouteOAuth2Authorize, ChainMiddleware(s.Authorize(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteOAuth2Authorize, ChainMiddleware(s.AuthorizeDecision(), s.HTMLMiddleWare()...))

	s.RegisterRouteHandler("POST "+RouteOAuth2Token, ChainMiddleware(s.Token(), s.APIMiddleware()...))

	userInfo := resource.Middleware(s.validator)(s.UserInfo())
	s.RegisterRouteHandler("GET "+RouteUserInfo, ChainMiddleware(userInfo.ServeHTTP, s.APIMiddleware()...))

	// CORS preflight for every path.
	s.RegisterRouteHandler("OPTIONS /", ChainMiddleware(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, s.APIMiddleware()...))
}
