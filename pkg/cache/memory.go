package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is the in-process cache backend. It is the default when no
// redis endpoint is configured, and the fallback the server degrades to when
// redis is unreachable at boot.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  map[string]memoryEntry
	counters counters

	now func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	category := string(CategoryOf(key))
	if !ok || s.now().After(entry.expiresAt) {
		if ok {
			s.mu.Lock()
			delete(s.entries, key)
			s.mu.Unlock()
		}
		s.counters.miss(category)
		return nil, false
	}

	s.counters.hit(category)
	return entry.value, true
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	s.mu.Lock()
	s.entries[key] = memoryEntry{value: value, expiresAt: s.now().Add(ttl)}
	// Opportunistic sweep: evict a handful of expired entries per write so
	// the map does not grow unbounded between lookups.
	swept := 0
	for k, e := range s.entries {
		if s.now().After(e.expiresAt) {
			delete(s.entries, k)
		}
		swept++
		if swept >= 16 {
			break
		}
	}
	s.mu.Unlock()

	s.counters.set(string(CategoryOf(key)))
}

func (s *MemoryStore) Delete(ctx context.Context, key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

func (s *MemoryStore) Clear(ctx context.Context, category Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if category == "" {
		s.entries = make(map[string]memoryEntry)
		return nil
	}

	prefix := string(category) + ":"
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			delete(s.entries, k)
		}
	}
	return nil
}

func (s *MemoryStore) Stats(ctx context.Context) Stats {
	s.mu.RLock()
	entries := int64(len(s.entries))
	s.mu.RUnlock()

	stats := s.counters.snapshot()
	stats.Entries = entries
	return stats
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

var _ Store = (*MemoryStore)(nil)

// counters tracks per-category hit/miss/set/error counts behind a mutex.
type counters struct {
	mu     sync.Mutex
	hits   map[string]int64
	misses map[string]int64
	sets   map[string]int64
	errors map[string]int64
}

func (c *counters) bump(m *map[string]int64, category string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if *m == nil {
		*m = make(map[string]int64)
	}
	(*m)[category]++
}

func (c *counters) hit(category string)   { c.bump(&c.hits, category) }
func (c *counters) miss(category string)  { c.bump(&c.misses, category) }
func (c *counters) set(category string)   { c.bump(&c.sets, category) }
func (c *counters) fault(category string) { c.bump(&c.errors, category) }

func (c *counters) snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	copyMap := func(m map[string]int64) map[string]int64 {
		out := make(map[string]int64, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out
	}
	return Stats{
		Hits:   copyMap(c.hits),
		Misses: copyMap(c.misses),
		Sets:   copyMap(c.sets),
		Errors: copyMap(c.errors),
	}
}
