package resource

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"

	"github.com/jrsteele09/go-oauth2-server/httpmsg"
	"github.com/jrsteele09/go-oauth2-server/oauth2"
)

type contextKey struct{}

// NewContext returns ctx carrying info.
func NewContext(ctx context.Context, info *TokenInfo) context.Context {
	return context.WithValue(ctx, contextKey{}, info)
}

// FromContext returns the token info stored by Middleware.
func FromContext(ctx context.Context) (*TokenInfo, bool) {
	info, ok := ctx.Value(contextKey{}).(*TokenInfo)
	return info, ok && info != nil
}

// Middleware rejects requests without a valid bearer token and stores the
// TokenInfo of accepted ones in the request context.
func Middleware(v *BearerTokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, err := v.Validate(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				resp := httpmsg.NewResponse()
				_ = oauth2.AsError(err).GenerateHTTPResponse(resp)
				resp.Header.Set("WWW-Authenticate", `Bearer realm="OAuth"`)
				if writeErr := resp.WriteHTTP(w); writeErr != nil {
					v.logger.Warn().Err(writeErr).Msg("failed to write error response")
				}
				return
			}
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), info)))
		})
	}
}

// RequireScope must be chained after Middleware. Requests whose token lacks
// any of the scopes get 403 insufficient_scope.
func RequireScope(required ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, ok := FromContext(r.Context())
			if !ok {
				writeScopeError(w, "No access token on request")
				return
			}
			for _, scope := range required {
				if !slices.Contains(info.Scopes, scope) {
					writeScopeError(w, "Token missing required scope: "+scope)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeScopeError(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", oauth2.ContentTypeJSON)
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(oauth2.ErrorResponse{
		Error:            "insufficient_scope",
		ErrorDescription: description,
	})
}
