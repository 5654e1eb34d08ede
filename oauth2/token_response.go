package oauth2

// TokenResponse represents the response from an OAuth2 token request.
// This is the standard OAuth2 token endpoint response format as defined in RFC 6749.
type TokenResponse struct {
	// TokenType indicates how to use the access token, always "Bearer".
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token.
	// Note: This is a hint - actual expiration is in the JWT's "exp" claim
	ExpiresIn int64 `json:"expires_in"`

	// AccessToken is the signed JWT used to access protected resources.
	// Usage: Include in Authorization header: "Bearer <access_token>"
	AccessToken string `json:"access_token"`

	// RefreshToken is an encrypted, opaque token used to obtain new access tokens.
	// Security: Single use, rotated on each redemption
	RefreshToken string `json:"refresh_token,omitempty"`
}

// ErrorResponse is the JSON body of a failed token or resource request.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Hint             string `json:"hint,omitempty"`
}
