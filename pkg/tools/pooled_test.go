package tools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovokpus/investigator/pkg/workerpool"
)

type slowTool struct {
	stubTool
	delay time.Duration
}

func (t *slowTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	select {
	case <-time.After(t.delay):
	case <-ctx.Done():
		return ToolResult{Success: false, Error: ctx.Err().Error(), ToolName: t.GetName()}, ctx.Err()
	}
	return ToolResult{Success: true, Content: "done", ToolName: t.GetName()}, nil
}

func TestPooledToolPassesThrough(t *testing.T) {
	inner := &slowTool{stubTool: stubTool{name: "slow_probe"}}
	pooled := NewPooledTool(inner, workerpool.New("net", 2))

	result, err := pooled.Execute(context.Background(), map[string]interface{}{})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "done", result.Content)
}

func TestPooledToolDeadlineWhileQueued(t *testing.T) {
	pool := workerpool.New("net", 1)
	blocker := NewPooledTool(&slowTool{stubTool: stubTool{name: "blocker"}, delay: 200 * time.Millisecond}, pool)
	queued := NewPooledTool(&slowTool{stubTool: stubTool{name: "queued"}}, pool)

	go blocker.Execute(context.Background(), map[string]interface{}{}) //nolint:errcheck

	// let the blocker claim the only slot
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	result, err := queued.Execute(ctx, map[string]interface{}{})
	require.Error(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "unavailable")
}

func TestPooledToolNilPool(t *testing.T) {
	inner := &slowTool{stubTool: stubTool{name: "direct"}}
	pooled := NewPooledTool(inner, nil)

	result, err := pooled.Execute(context.Background(), map[string]interface{}{})
	require.NoError(t, err)
	assert.True(t, result.Success)
}
