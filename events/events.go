// Package events lets an embedding application observe authentication failures
// and token issuance without coupling to the grant handlers.
package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-oauth2-server/httpmsg"
	"github.com/jrsteele09/go-oauth2-server/oauth2"
)

type Name string

const (
	ClientAuthenticationFailed Name = "client.authentication.failed"
	UserAuthenticationFailed   Name = "user.authentication.failed"
	RefreshTokenClientFailed   Name = "refresh_token.client.failed"
	AccessTokenIssued          Name = "access_token.issued"
	RefreshTokenIssued         Name = "refresh_token.issued"
	AuthCodeIssued             Name = "auth_code.issued"
)

// Event carries the request that triggered it. TokenID is only set for issuance events.
type Event struct {
	Name      Name
	Request   *httpmsg.Request
	ClientID  string
	UserID    string
	GrantType oauth2.GrantType
	TokenID   string
}

type ListenerFunc func(ctx context.Context, event Event)

// Emitter fans events out to listeners in registration order. A nil Emitter drops everything.
type Emitter struct {
	listeners map[Name][]ListenerFunc
	catchAll  []ListenerFunc
	mu        sync.RWMutex
}

func NewEmitter() *Emitter {
	return &Emitter{listeners: make(map[Name][]ListenerFunc)}
}

// AddListener subscribes fn to the named event.
func (e *Emitter) AddListener(name Name, fn ListenerFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners[name] = append(e.listeners[name], fn)
}

// AddCatchAllListener subscribes fn to every event.
func (e *Emitter) AddCatchAllListener(fn ListenerFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.catchAll = append(e.catchAll, fn)
}

func (e *Emitter) Emit(ctx context.Context, event Event) {
	if e == nil {
		return
	}
	e.mu.RLock()
	named := e.listeners[event.Name]
	fns := make([]ListenerFunc, 0, len(named)+len(e.catchAll))
	fns = append(fns, named...)
	fns = append(fns, e.catchAll...)
	e.mu.RUnlock()

	for _, fn := range fns {
		fn(ctx, event)
	}
}

// LogListener writes failures at warn level and everything else at debug.
func LogListener(logger zerolog.Logger) ListenerFunc {
	return func(_ context.Context, event Event) {
		level := zerolog.DebugLevel
		switch event.Name {
		case ClientAuthenticationFailed, UserAuthenticationFailed, RefreshTokenClientFailed:
			level = zerolog.WarnLevel
		}
		entry := logger.WithLevel(level).
			Str("event", string(event.Name)).
			Str("client_id", event.ClientID).
			Str("grant_type", string(event.GrantType))
		if event.UserID != "" {
			entry = entry.Str("user_id", event.UserID)
		}
		if event.TokenID != "" {
			entry = entry.Str("token_id", event.TokenID)
		}
		entry.Msg("oauth event")
	}
}
