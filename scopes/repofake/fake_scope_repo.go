package scoperepofake

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-oauth2-server/scopes"
)

var _ scopes.Repo = (*FakeScopeRepo)(nil)

type FakeScopeRepo struct {
	scopes map[string]*scopes.Scope
	lock   sync.RWMutex
}

// NewFakeScopeRepo returns a repo holding one scope per identifier.
func NewFakeScopeRepo(ids ...string) *FakeScopeRepo {
	r := &FakeScopeRepo{scopes: make(map[string]*scopes.Scope)}
	for _, id := range ids {
		r.scopes[id] = &scopes.Scope{ID: id}
	}
	return r
}

func (r *FakeScopeRepo) Upsert(scope *scopes.Scope) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.scopes[scope.ID] = scope
}

func (r *FakeScopeRepo) GetScopeEntityByIdentifier(_ context.Context, id string) (*scopes.Scope, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	scope, ok := r.scopes[id]
	if !ok {
		return nil, scopes.ErrNotFound
	}
	return scope, nil
}
