package tools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovokpus/investigator/pkg/cache"
)

func TestCachedToolServesSecondCallFromCache(t *testing.T) {
	stub := newStub("web", ToolParameter{Name: "query", Type: "string", Required: true})
	stub.result.Content = "provider answer"

	cached := NewCachedTool(stub, cache.NewMemoryStore(), cache.CategoryWebIntel, time.Minute)
	args := map[string]interface{}{"query": "shell companies"}

	first, err := cached.Execute(context.Background(), args)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := cached.Execute(context.Background(), args)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, 1, stub.calls)

	// caching is semantically invisible
	assert.Equal(t, first.Content, second.Content)
}

func TestCachedToolKeyIgnoresArgumentOrder(t *testing.T) {
	stub := newStub("web")
	cached := NewCachedTool(stub, cache.NewMemoryStore(), cache.CategoryWebIntel, time.Minute)

	_, err := cached.Execute(context.Background(), map[string]interface{}{"a": "1", "b": "2"})
	require.NoError(t, err)
	_, err = cached.Execute(context.Background(), map[string]interface{}{"b": "2", "a": "1"})
	require.NoError(t, err)

	assert.Equal(t, 1, stub.calls)
}

func TestCachedToolDoesNotCacheFailures(t *testing.T) {
	stub := newStub("rates")
	stub.result = ToolResult{
		Success:  false,
		Error:    "unavailable: no credentials",
		ToolName: "rates",
	}

	cached := NewCachedTool(stub, cache.NewMemoryStore(), cache.CategoryExchangeRate, time.Minute)
	args := map[string]interface{}{}

	_, err := cached.Execute(context.Background(), args)
	require.NoError(t, err)
	_, err = cached.Execute(context.Background(), args)
	require.NoError(t, err)

	assert.Equal(t, 2, stub.calls, "degraded results must not be cached")
}

func TestCachedToolNilStorePassesThrough(t *testing.T) {
	stub := newStub("web")
	cached := NewCachedTool(stub, nil, cache.CategoryWebIntel, time.Minute)

	for i := 0; i < 3; i++ {
		_, err := cached.Execute(context.Background(), map[string]interface{}{})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, stub.calls)
}
