package oauth2

// ResponseType represents the OAuth 2.0 response type.
// Determines what is returned from the authorization endpoint.
type ResponseType string

const (
	// CodeResponseType indicates the authorization code flow.
	// Returns an authorization code that must be exchanged for tokens at the token endpoint.
	// Example: /oauth2/authorize?response_type=code&client_id=...
	CodeResponseType ResponseType = "code"

	// TokenResponseType indicates the implicit flow.
	// The access token is returned directly in the redirect URI fragment.
	// Example: /oauth2/authorize?response_type=token&client_id=...
	TokenResponseType ResponseType = "token"
)

// ResponseModeType denotes how the authorization response parameters are returned to the client.
type ResponseModeType string

const (
	// QueryResponseMode returns parameters in the URL query string.
	// Example: https://client.example.com/callback?code=ABC123&state=xyz
	QueryResponseMode ResponseModeType = "query"

	// FragmentResponseMode returns parameters in the URL fragment (after #).
	// Used by the implicit flow, the fragment never reaches the client's server.
	// Example: https://client.example.com/callback#access_token=ABC123&state=xyz
	FragmentResponseMode ResponseModeType = "fragment"
)

// CodeMethodType represents the PKCE (Proof Key for Code Exchange) challenge method.
type CodeMethodType string

const (
	// CodeMethodTypeS256 indicates SHA-256 hashing is used for the code challenge.
	// Client sends: code_challenge = BASE64URL(SHA256(code_verifier))
	CodeMethodTypeS256 CodeMethodType = "S256"

	// CodeMethodTypePlain means no hashing, code_verifier is compared directly.
	CodeMethodTypePlain CodeMethodType = "plain"
)

// GrantType represents the OAuth 2.0 grant type.
// Identifies the grant handler that serves a request.
type GrantType string

const (
	// AuthorizationCodeGrant exchanges an authorization code for tokens.
	// Token request includes: code, client_id, client_secret, redirect_uri, code_verifier (if PKCE)
	AuthorizationCodeGrant GrantType = "authorization_code"

	// ClientCredentialsGrant allows machine-to-machine authentication, no user context.
	// Token request includes: client_id, client_secret, scope
	ClientCredentialsGrant GrantType = "client_credentials"

	// PasswordGrant exchanges resource-owner credentials for tokens.
	// Token request includes: username, password, client_id, client_secret, scope
	PasswordGrant GrantType = "password"

	// RefreshTokenGrant exchanges a refresh token for a new token pair.
	// Token request includes: refresh_token, client_id, client_secret, scope (optional narrowing)
	RefreshTokenGrant GrantType = "refresh_token"

	// ImplicitGrant returns an access token straight from the authorization endpoint.
	// Never served at the token endpoint.
	ImplicitGrant GrantType = "implicit"
)

// Request parameter names.
const (
	ParamGrantType           = "grant_type"
	ParamResponseType        = "response_type"
	ParamClientID            = "client_id"
	ParamClientSecret        = "client_secret"
	ParamRedirectURI         = "redirect_uri"
	ParamScope               = "scope"
	ParamState               = "state"
	ParamCode                = "code"
	ParamCodeVerifier        = "code_verifier"
	ParamCodeChallenge       = "code_challenge"
	ParamCodeChallengeMethod = "code_challenge_method"
	ParamUsername            = "username"
	ParamPassword            = "password"
	ParamRefreshToken        = "refresh_token"
	ParamAccessToken         = "access_token"
	ParamTokenType           = "token_type"
	ParamExpiresIn           = "expires_in"
)

// TokenTypeBearer is the only token type this server issues.
const TokenTypeBearer = "Bearer"
