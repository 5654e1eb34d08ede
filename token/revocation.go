package token

import (
	"sync"
	"time"
)

// RevokedTokenCache remembers revoked token identifiers until they expire.
type RevokedTokenCache interface {
	Add(tokenID string, exp time.Time)
	IsRevoked(tokenID string) bool
	Cleanup() // Remove expired entries
}

// InMemoryRevokedTokenCache is a simple in-memory implementation
type InMemoryRevokedTokenCache struct {
	revoked map[string]time.Time
	nowFunc func() time.Time
	mu      sync.RWMutex
}

func NewInMemoryRevokedTokenCache(nowFunc func() time.Time) *InMemoryRevokedTokenCache {
	if nowFunc == nil {
		nowFunc = time.Now
	}
	return &InMemoryRevokedTokenCache{
		revoked: make(map[string]time.Time),
		nowFunc: nowFunc,
	}
}

func (c *InMemoryRevokedTokenCache) Add(tokenID string, exp time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked[tokenID] = exp
}

func (c *InMemoryRevokedTokenCache) IsRevoked(tokenID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.revoked[tokenID]
	return exists
}

func (c *InMemoryRevokedTokenCache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.nowFunc()
	for id, exp := range c.revoked {
		if now.After(exp) {
			delete(c.revoked, id)
		}
	}
}
