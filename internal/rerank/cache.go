package rerank

import (
	"context"
	"sync"
	"time"
)

// ScoreCache memoizes pairwise scores by (query, content) with a TTL.
// Model scoring dominates query latency, and overlapping queries rescore
// the same pairs; a hit returns exactly the previously computed score, so
// caching never changes a ranking, only its cost.
type ScoreCache struct {
	mu      sync.RWMutex
	entries map[scoreKey]cacheEntry
	ttl     time.Duration
}

type scoreKey struct {
	query   string
	content string
}

type cacheEntry struct {
	score    float64
	storedAt time.Time
}

// NewScoreCache creates a score cache. Entries expire after ttl and are
// swept every 5 minutes.
func NewScoreCache(ttl time.Duration) *ScoreCache {
	c := &ScoreCache{
		entries: make(map[scoreKey]cacheEntry),
		ttl:     ttl,
	}

	go c.cleanupLoop()

	return c
}

// Wrap returns a ScoreFunc that consults the cache before calling fn.
// Errors from fn are never cached.
func (c *ScoreCache) Wrap(fn ScoreFunc) ScoreFunc {
	return func(ctx context.Context, query, content string) (float64, error) {
		key := scoreKey{query: query, content: content}

		if score, ok := c.get(key); ok {
			return score, nil
		}

		score, err := fn(ctx, query, content)
		if err != nil {
			return 0, err
		}

		c.put(key, score)
		return score, nil
	}
}

// Len returns the number of live entries.
func (c *ScoreCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *ScoreCache) get(key scoreKey) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		return 0, false
	}
	if time.Since(entry.storedAt) > c.ttl {
		return 0, false
	}
	return entry.score, true
}

func (c *ScoreCache) put(key scoreKey, score float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{score: score, storedAt: time.Now()}
}

func (c *ScoreCache) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		c.cleanup()
	}
}

func (c *ScoreCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.entries {
		if now.Sub(entry.storedAt) > c.ttl {
			delete(c.entries, key)
		}
	}
}
