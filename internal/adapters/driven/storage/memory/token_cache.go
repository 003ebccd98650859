// Package memory provides an in-process TokenCache.
package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/onenote-explorer/internal/core/domain"
	"github.com/custodia-labs/onenote-explorer/internal/core/ports/driven"
)

// Ensure TokenCache implements the interface.
var _ driven.TokenCache = (*TokenCache)(nil)

// TokenCache holds at most one token for the lifetime of the process.
type TokenCache struct {
	mu    sync.RWMutex
	token *domain.AuthToken
}

// NewTokenCache creates an empty cache.
func NewTokenCache() *TokenCache {
	return &TokenCache{}
}

// Load returns a copy of the cached token, or nil.
func (c *TokenCache) Load(_ context.Context) (*domain.AuthToken, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == nil {
		return nil, nil
	}
	cp := *c.token
	return &cp, nil
}

// Save replaces the cached token.
func (c *TokenCache) Save(_ context.Context, token *domain.AuthToken) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if token == nil {
		c.token = nil
		return nil
	}
	cp := *token
	c.token = &cp
	return nil
}

// Clear empties the cache.
func (c *TokenCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = nil
	return nil
}
