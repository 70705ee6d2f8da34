package tools

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/ovokpus/investigator/pkg/cache"
)

// CachedTool decorates a network tool with best-effort result caching.
// Cache lookups happen before the call; only successful results are
// written back. Degraded "unavailable" results are never cached so the
// tool recovers as soon as the provider does.
type CachedTool struct {
	Tool

	store    cache.Store
	category cache.Category
	ttl      time.Duration
}

func NewCachedTool(tool Tool, store cache.Store, category cache.Category, ttl time.Duration) *CachedTool {
	if ttl <= 0 {
		ttl = cache.DefaultTTLs[category]
	}
	return &CachedTool{
		Tool:     tool,
		store:    store,
		category: category,
		ttl:      ttl,
	}
}

func (t *CachedTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	key, keyed := t.key(args)

	if keyed && t.store != nil {
		if raw, ok := t.store.Get(ctx, key); ok {
			return ToolResult{
				Success:  true,
				Content:  string(raw),
				ToolName: t.GetName(),
				CacheHit: true,
			}, nil
		}
	}

	result, err := t.Tool.Execute(ctx, args)
	if err != nil {
		return result, err
	}

	if keyed && t.store != nil && result.Success && !strings.HasPrefix(result.Error, "unavailable") {
		t.store.Set(ctx, key, []byte(result.Content), t.ttl)
	}

	return result, nil
}

// key canonicalizes the call descriptor. encoding/json sorts map keys,
// so argument order never changes the key.
func (t *CachedTool) key(args map[string]interface{}) (string, bool) {
	encoded, err := json.Marshal(args)
	if err != nil {
		return "", false
	}
	return cache.Key(t.category, map[string]string{
		"tool": t.GetName(),
		"args": string(encoded),
	}), true
}
