package capability

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// SchemaCache memoizes normalization results across discovery runs, keyed by
// a digest of the raw schema bytes. Two discovery runs against an unchanged
// cluster hit the cache for every kind, which keeps refreshes cheap and
// trivially idempotent.
type SchemaCache struct {
	lru *expirable.LRU[string, *Schema]
}

// NewSchemaCache builds a cache holding up to size entries for ttl.
// size <= 0 defaults to 1024, ttl <= 0 defaults to 30 minutes.
func NewSchemaCache(size int, ttl time.Duration) *SchemaCache {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SchemaCache{lru: expirable.NewLRU[string, *Schema](size, nil, ttl)}
}

// Normalize returns the cached arena for raw, normalizing on miss.
// A nil cache degrades to plain Normalize.
func (c *SchemaCache) Normalize(raw json.RawMessage, opts NormalizeOptions) (*Schema, error) {
	if c == nil || c.lru == nil {
		return Normalize(raw, opts)
	}
	key := digest(raw)
	if s, ok := c.lru.Get(key); ok {
		return s, nil
	}
	s, err := Normalize(raw, opts)
	if err != nil {
		return nil, err
	}
	c.lru.Add(key, s)
	return s, nil
}

func digest(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
