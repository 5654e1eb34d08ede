package authflowrepo

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultTTL bounds how long a resource owner has to log in.
const DefaultTTL = 10 * time.Minute

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface
type InMemoryRepo struct {
	mu    sync.Mutex
	flows map[string]*AuthFlow
	ttl   time.Duration
	now   func() time.Time
}

type Option func(*InMemoryRepo)

func WithTTL(ttl time.Duration) Option {
	return func(r *InMemoryRepo) {
		r.ttl = ttl
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(r *InMemoryRepo) {
		r.now = now
	}
}

func NewInMemoryRepo(opts ...Option) *InMemoryRepo {
	r := &InMemoryRepo{
		flows: make(map[string]*AuthFlow),
		ttl:   DefaultTTL,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *InMemoryRepo) Upsert(_ context.Context, flow *AuthFlow) error {
	if flow == nil || flow.ID == "" {
		return errors.New("[InMemoryRepo.Upsert] flow id cannot be empty")
	}
	if flow.Request == nil {
		return errors.New("[InMemoryRepo.Upsert] flow request cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.evictExpired()
	stored := *flow
	r.flows[flow.ID] = &stored
	return nil
}

func (r *InMemoryRepo) Take(_ context.Context, id string) (*AuthFlow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	flow, ok := r.flows[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(r.flows, id)
	if r.expired(flow) {
		return nil, ErrNotFound
	}
	return flow, nil
}

// evictExpired must be called with the lock held.
func (r *InMemoryRepo) evictExpired() {
	for id, flow := range r.flows {
		if r.expired(flow) {
			delete(r.flows, id)
		}
	}
}

func (r *InMemoryRepo) expired(flow *AuthFlow) bool {
	return r.now().Sub(flow.CreatedAt) > r.ttl
}
