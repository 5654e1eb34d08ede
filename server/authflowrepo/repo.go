// Package authflowrepo holds authorization requests between the authorize
// endpoint and the resource owner's login decision.
package authflowrepo

import (
	"context"
	"errors"
	"time"

	"github.com/jrsteele09/go-oauth2-server/grant"
)

var ErrNotFound = errors.New("auth flow not found")

type AuthFlow struct {
	ID        string
	Request   *grant.AuthorizationRequest
	CreatedAt time.Time
}

type Repo interface {
	Upsert(ctx context.Context, flow *AuthFlow) error
	// Take returns the flow and removes it, so each flow completes at most once.
	Take(ctx context.Context, id string) (*AuthFlow, error)
}
