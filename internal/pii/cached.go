package pii

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"privacy-guardian/internal/cache"
)

// Cached is a Client whose successful anonymizations are remembered, so a
// history rescan of the same messages does not call the classifier again.
// Failed results are never cached. Detect and Ping pass through.
type Cached struct {
	*Client
	results *cache.Cache[AnonymizationResult]
}

// NewCached wraps c with a cache of at most size results.
func NewCached(c *Client, size int) *Cached {
	return &Cached{Client: c, results: cache.New[AnonymizationResult](size)}
}

// Anonymize serves text from the cache or the classifier.
func (c *Cached) Anonymize(ctx context.Context, text string) AnonymizationResult {
	key := cacheKey(text)
	if res, ok := c.results.Get(key); ok {
		if c.metrics != nil {
			c.metrics.AnonymizeCacheHit.Add(1)
		}
		return res
	}
	res := c.Client.Anonymize(ctx, text)
	if !res.Failed() {
		c.results.Set(key, res)
	}
	return res
}

// Keys are digests so the index never holds message text.
func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
