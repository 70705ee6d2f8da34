// Package cache provides the best-effort keyed TTL store used to memoize
// LLM completions, tool results, retrieval hits, and finished investigations.
//
// Every entry is advisory: a miss (including any backend failure) must be
// recoverable by recomputation, so Get never returns an error and Set drops
// writes that cannot complete within a small bounded timeout.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Category partitions cache keys and selects the TTL policy.
type Category string

const (
	CategoryInvestigation Category = "investigation"
	CategoryLLM           Category = "llm_completion"
	CategoryVectorSearch  Category = "vector_search"
	CategoryWebIntel      Category = "web_intelligence"
	CategoryResearch      Category = "academic_research"
	CategoryExchangeRate  Category = "exchange_rates"
)

// DefaultTTLs is the per-category TTL policy. Overridable via config.
var DefaultTTLs = map[Category]time.Duration{
	CategoryInvestigation: 24 * time.Hour,
	CategoryLLM:           6 * time.Hour,
	CategoryVectorSearch:  time.Hour,
	CategoryWebIntel:      30 * time.Minute,
	CategoryResearch:      6 * time.Hour,
	CategoryExchangeRate:  30 * time.Minute,
}

// Categories lists all known categories, for stats and admin endpoints.
func Categories() []Category {
	return []Category{
		CategoryInvestigation,
		CategoryLLM,
		CategoryVectorSearch,
		CategoryWebIntel,
		CategoryResearch,
		CategoryExchangeRate,
	}
}

// Stats reports counters for a store, per category.
type Stats struct {
	Hits    map[string]int64 `json:"hits"`
	Misses  map[string]int64 `json:"misses"`
	Sets    map[string]int64 `json:"sets"`
	Errors  map[string]int64 `json:"errors"`
	Entries int64            `json:"entries"`
}

// HitRatio returns the overall hit ratio across categories, 0 when no lookups
// have been recorded.
func (s Stats) HitRatio() float64 {
	var hits, total int64
	for _, h := range s.Hits {
		hits += h
		total += h
	}
	for _, m := range s.Misses {
		total += m
	}
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// Store is the cache contract. Implementations are safe for concurrent use.
type Store interface {
	// Get returns the cached value and whether it was present. Backend
	// failures are reported as misses.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set writes value under key with the given TTL. Best effort: the write
	// may be dropped if the backend is slow or unavailable.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)

	// Delete removes a single key.
	Delete(ctx context.Context, key string)

	// Clear removes all entries, or only those of the given category when
	// category is non-empty.
	Clear(ctx context.Context, category Category) error

	// Stats returns counters for the admin surface.
	Stats(ctx context.Context) Stats

	// Ping reports backend reachability for health checks.
	Ping(ctx context.Context) error
}

// Key canonicalizes a call descriptor into a stable cache key. Parts are
// name=value pairs; they are sorted so argument order never changes the key.
// The category prefix keeps keys clearable per category.
func Key(category Category, parts map[string]string) string {
	pairs := make([]string, 0, len(parts))
	for k, v := range parts {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)

	sum := sha256.Sum256([]byte(strings.Join(pairs, "\x00")))
	return fmt.Sprintf("%s:%s", category, hex.EncodeToString(sum[:]))
}

// CategoryOf extracts the category prefix from a key produced by Key.
func CategoryOf(key string) Category {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return Category(key[:i])
	}
	return ""
}
