package oauth2

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-oauth2-server/httpmsg"
)

// ErrorCode is the machine-readable "error" value of RFC 6749 section 5.2.
type ErrorCode string

const (
	ErrorCodeInvalidRequest       ErrorCode = "invalid_request"
	ErrorCodeInvalidClient        ErrorCode = "invalid_client"
	ErrorCodeInvalidGrant         ErrorCode = "invalid_grant"
	ErrorCodeInvalidScope         ErrorCode = "invalid_scope"
	ErrorCodeUnsupportedGrantType ErrorCode = "unsupported_grant_type"
	ErrorCodeUnauthorizedClient   ErrorCode = "unauthorized_client"
	ErrorCodeAccessDenied         ErrorCode = "access_denied"
	ErrorCodeServerError          ErrorCode = "server_error"
)

// Error is a protocol failure that carries everything needed to render it on the wire.
type Error struct {
	Code        ErrorCode
	Description string
	Hint        string
	Status      int

	// RedirectURI, when set, turns the error into a 302 back to the client.
	RedirectURI string
	UseFragment bool
	State       string

	challenge bool
	cause     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Description)
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.cause
}

// WithRedirect returns a copy of the error that is delivered by redirect.
func (e *Error) WithRedirect(redirectURI string, useFragment bool) *Error {
	clone := *e
	clone.RedirectURI = redirectURI
	clone.UseFragment = useFragment
	return &clone
}

// WithState returns a copy of the error that echoes state back on redirect.
func (e *Error) WithState(state string) *Error {
	clone := *e
	clone.State = state
	return &clone
}

// WithChallenge returns a copy that adds a WWW-Authenticate header when rendered.
func (e *Error) WithChallenge() *Error {
	clone := *e
	clone.challenge = true
	return &clone
}

// Payload is the JSON body of the error. The cause is never included.
func (e *Error) Payload() ErrorResponse {
	return ErrorResponse{
		Error:            string(e.Code),
		ErrorDescription: e.Description,
		Hint:             e.Hint,
	}
}

// GenerateHTTPResponse renders the error into resp, as a redirect when a
// redirect URI is attached and as a JSON body otherwise.
func (e *Error) GenerateHTTPResponse(resp *httpmsg.Response) error {
	payload := e.Payload()

	if e.RedirectURI != "" {
		params := url.Values{}
		params.Set("error", payload.Error)
		params.Set("error_description", payload.ErrorDescription)
		if payload.Hint != "" {
			params.Set("hint", payload.Hint)
		}
		if e.State != "" {
			params.Set(ParamState, e.State)
		}
		resp.Status = http.StatusFound
		resp.Header.Set("Location", BuildRedirectURI(e.RedirectURI, params, e.UseFragment))
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal error payload: %w", err)
	}
	resp.Status = e.Status
	resp.Header.Set("Content-Type", ContentTypeJSON)
	if e.challenge && e.Status == http.StatusUnauthorized {
		resp.Header.Set("WWW-Authenticate", `Basic realm="OAuth"`)
	}
	resp.Body.Reset()
	_, err = resp.Write(body)
	return err
}

// ErrInvalidRequest reports a missing or malformed parameter.
func ErrInvalidRequest(param string, cause error) *Error {
	return &Error{
		Code:        ErrorCodeInvalidRequest,
		Description: "The request is missing a required parameter, includes an invalid parameter value, includes a parameter more than once, or is otherwise malformed.",
		Hint:        fmt.Sprintf("Check the `%s` parameter", param),
		Status:      http.StatusBadRequest,
		cause:       cause,
	}
}

// ErrInvalidClient reports that client authentication failed.
func ErrInvalidClient() *Error {
	return &Error{
		Code:        ErrorCodeInvalidClient,
		Description: "Client authentication failed",
		Status:      http.StatusUnauthorized,
	}
}

// ErrInvalidGrant reports a bad, expired or reused code, refresh token or credentials.
func ErrInvalidGrant(hint string) *Error {
	return &Error{
		Code:        ErrorCodeInvalidGrant,
		Description: "The provided authorization grant (e.g., authorization code, resource owner credentials) or refresh token is invalid, expired, revoked, does not match the redirection URI used in the authorization request, or was issued to another client.",
		Hint:        hint,
		Status:      http.StatusBadRequest,
	}
}

// ErrInvalidScope reports an unknown scope. The redirect URI may be empty.
func ErrInvalidScope(scope, redirectURI string) *Error {
	return &Error{
		Code:        ErrorCodeInvalidScope,
		Description: "The requested scope is invalid, unknown, or malformed",
		Hint:        fmt.Sprintf("Check the `%s` scope", scope),
		Status:      http.StatusBadRequest,
		RedirectURI: redirectURI,
	}
}

// ErrUnsupportedGrantType reports that no enabled grant can serve the request.
func ErrUnsupportedGrantType() *Error {
	return &Error{
		Code:        ErrorCodeUnsupportedGrantType,
		Description: "The authorization grant type is not supported by the authorization server.",
		Hint:        "Check that all required parameters have been provided",
		Status:      http.StatusBadRequest,
	}
}

// ErrUnauthorizedClient reports a client that may not use the requested grant.
func ErrUnauthorizedClient(hint string) *Error {
	return &Error{
		Code:        ErrorCodeUnauthorizedClient,
		Description: "The client is not authorized to request an access token using this method.",
		Hint:        hint,
		Status:      http.StatusBadRequest,
	}
}

// ErrAccessDenied reports a resource-owner denial or a rejected bearer token.
func ErrAccessDenied(hint, redirectURI string) *Error {
	return &Error{
		Code:        ErrorCodeAccessDenied,
		Description: "The resource owner or authorization server denied the request.",
		Hint:        hint,
		Status:      http.StatusUnauthorized,
		RedirectURI: redirectURI,
	}
}

// ErrServerError wraps an unexpected internal failure.
func ErrServerError(cause error) *Error {
	return &Error{
		Code:        ErrorCodeServerError,
		Description: "The authorization server encountered an unexpected condition which prevented it from fulfilling the request.",
		Status:      http.StatusInternalServerError,
		cause:       cause,
	}
}

// AsError returns the protocol error in err's chain, or wraps err as a server error.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var oauthErr *Error
	if errors.As(err, &oauthErr) {
		return oauthErr
	}
	return ErrServerError(err)
}

// IsErrorCode reports whether err is a protocol error with the given code.
func IsErrorCode(err error, code ErrorCode) bool {
	var oauthErr *Error
	return errors.As(err, &oauthErr) && oauthErr.Code == code
}
