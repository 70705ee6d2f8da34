package llms

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ovokpus/investigator/pkg/cache"
)

// CachedGateway memoizes completions through the cache store. Caching only
// applies when the provider runs at temperature zero, where the same
// messages and tools yield a stable reply; otherwise calls pass through.
type CachedGateway struct {
	inner       Gateway
	store       cache.Store
	ttl         time.Duration
	temperature float64
}

// NewCachedGateway wraps inner with completion caching. ttl zero uses the
// llm_completion category default.
func NewCachedGateway(inner Gateway, store cache.Store, temperature float64, ttl time.Duration) *CachedGateway {
	if ttl <= 0 {
		ttl = cache.DefaultTTLs[cache.CategoryLLM]
	}
	return &CachedGateway{
		inner:       inner,
		store:       store,
		ttl:         ttl,
		temperature: temperature,
	}
}

func (g *CachedGateway) ModelName() string {
	return g.inner.ModelName()
}

func (g *CachedGateway) Complete(ctx context.Context, messages []Message, tools []ToolDefinition, maxTokens int) (*AssistantMessage, error) {
	if g.store == nil || g.temperature != 0 {
		return g.inner.Complete(ctx, messages, tools, maxTokens)
	}

	key := g.key(messages, tools, maxTokens)
	if raw, hit := g.store.Get(ctx, key); hit {
		var reply AssistantMessage
		if err := json.Unmarshal(raw, &reply); err == nil {
			return &reply, nil
		}
		slog.Debug("Discarding corrupt cached completion", "key", key)
	}

	reply, err := g.inner.Complete(ctx, messages, tools, maxTokens)
	if err != nil {
		return nil, err
	}

	if raw, marshalErr := json.Marshal(reply); marshalErr == nil {
		g.store.Set(ctx, key, raw, g.ttl)
	}
	return reply, nil
}

func (g *CachedGateway) key(messages []Message, tools []ToolDefinition, maxTokens int) string {
	h := sha256.New()
	enc := json.NewEncoder(h)
	_ = enc.Encode(messages)
	_ = enc.Encode(tools)
	_ = enc.Encode(maxTokens)
	_ = enc.Encode(g.inner.ModelName())

	return cache.Key(cache.CategoryLLM, map[string]string{
		"digest": hex.EncodeToString(h.Sum(nil)),
	})
}

var _ Gateway = (*CachedGateway)(nil)
