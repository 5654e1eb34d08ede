package server

// Route path constants
const (
	RouteWellKnownMetadata = "/.well-known/oauth-authorization-server"
	RouteWellKnownJWKS     = "/.well-known/jwks.json"
	RouteOAuth2Authorize   = "/oauth2/authorize"
	RouteOAuth2Token       = "/oauth2/token"
	RouteUserInfo          = "/userinfo"
)
