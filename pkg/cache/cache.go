// Package cache provides the key-value client behind the active-alert
// snapshot cache: per-key TTLs, shared across requests within a single
// process.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// NoExpiration marks an entry that only leaves the cache through an
// explicit Delete.
const NoExpiration = gocache.NoExpiration

// Cache is a key-value store with per-key expiration.
type Cache interface {
	// Get returns the value for key, or false on a miss.
	Get(key string) (any, bool)

	// Set stores value under key for the given TTL. NoExpiration keeps
	// the entry until it is deleted.
	Set(key string, value any, ttl time.Duration)

	// Delete removes key.
	Delete(key string)
}

// Memory is an in-process Cache backed by go-cache.
type Memory struct {
	c *gocache.Cache
}

// NewMemory creates an in-process cache. Expired entries are swept every
// cleanupInterval; a non-positive interval disables the janitor, which is
// fine for a single well-known key.
func NewMemory(cleanupInterval time.Duration) *Memory {
	return &Memory{c: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

func (m *Memory) Get(key string) (any, bool) {
	return m.c.Get(key)
}

func (m *Memory) Set(key string, value any, ttl time.Duration) {
	m.c.Set(key, value, ttl)
}

func (m *Memory) Delete(key string) {
	m.c.Delete(key)
}
