// Package handlers contains the gin HTTP handlers for the discussion API.
// All semantics live in the internal service packages; this layer is
// transport glue.
package handlers

import (
	"github.com/classpulse/classpulse/backend/internal/cache"
	"github.com/classpulse/classpulse/backend/internal/discussion"
)

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	discussions *discussion.Service
	redis       *cache.RedisClient
}

// NewHandlers creates a new handlers instance
func NewHandlers(svc *discussion.Service) *Handlers {
	return &Handlers{
		discussions: svc,
	}
}

// SetRedisClient sets the cache client for the list and reported-queue reads
func (h *Handlers) SetRedisClient(redis *cache.RedisClient) {
	h.redis = redis
}
