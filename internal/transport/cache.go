package transport

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"gqlherd/internal/graphql"
)

// cacheEntry represents a cached response body with expiration
type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

// ResponseCache is an in-memory LRU cache for upstream response bodies
// with TTL support. Fresh-required requests bypass it entirely.
type ResponseCache struct {
	cache   *lru.Cache[string, *cacheEntry]
	ttl     time.Duration
	mu      sync.RWMutex
	closeCh chan struct{}
	once    sync.Once
}

// NewResponseCache creates a new response cache
func NewResponseCache(size int, ttl time.Duration) (*ResponseCache, error) {
	cache, err := lru.New[string, *cacheEntry](size)
	if err != nil {
		return nil, err
	}

	rc := &ResponseCache{
		cache:   cache,
		ttl:     ttl,
		closeCh: make(chan struct{}),
	}

	go rc.cleanupLoop()

	return rc, nil
}

// Get retrieves a cached response body by key
func (rc *ResponseCache) Get(key string) ([]byte, bool) {
	rc.mu.RLock()
	entry, ok := rc.cache.Get(key)
	rc.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if time.Now().After(entry.expiresAt) {
		rc.mu.Lock()
		rc.cache.Remove(key)
		rc.mu.Unlock()
		return nil, false
	}

	return entry.data, true
}

// Set stores a response body in the cache
func (rc *ResponseCache) Set(key string, value []byte) {
	entry := &cacheEntry{
		data:      value,
		expiresAt: time.Now().Add(rc.ttl),
	}

	rc.mu.Lock()
	rc.cache.Add(key, entry)
	rc.mu.Unlock()
}

// Close stops the cache cleanup goroutine
func (rc *ResponseCache) Close() {
	rc.once.Do(func() {
		close(rc.closeCh)
	})
}

// cleanupLoop periodically removes expired entries
func (rc *ResponseCache) cleanupLoop() {
	ticker := time.NewTicker(rc.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rc.removeExpired()
		case <-rc.closeCh:
			return
		}
	}
}

// removeExpired removes all expired entries from the cache
func (rc *ResponseCache) removeExpired() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	now := time.Now()
	for _, key := range rc.cache.Keys() {
		entry, ok := rc.cache.Peek(key)
		if ok && now.After(entry.expiresAt) {
			rc.cache.Remove(key)
		}
	}
}

// cacheKey derives a stable key from the query text and variables
func cacheKey(req *graphql.Request) string {
	h := sha256.New()
	h.Write([]byte(req.Query))
	if req.Variables != nil {
		if varsJSON, err := json.Marshal(req.Variables); err == nil {
			h.Write(varsJSON)
		}
	}
	if req.OperationName != "" {
		h.Write([]byte(req.OperationName))
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}
