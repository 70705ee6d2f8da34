package tools

import (
	"context"
	"time"

	"github.com/ovokpus/investigator/pkg/workerpool"
)

// PooledTool routes executions through a bounded worker pool so the
// total number of in-flight network calls stays capped. Queue wait
// counts against the caller's deadline.
type PooledTool struct {
	Tool
	pool *workerpool.Pool
}

func NewPooledTool(tool Tool, pool *workerpool.Pool) *PooledTool {
	return &PooledTool{Tool: tool, pool: pool}
}

func (t *PooledTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	if t.pool == nil {
		return t.Tool.Execute(ctx, args)
	}

	start := time.Now()
	var (
		result ToolResult
		err    error
	)
	poolErr := t.pool.Run(ctx, func(ctx context.Context) error {
		result, err = t.Tool.Execute(ctx, args)
		return nil
	})
	if poolErr != nil {
		// deadline expired while queued
		return errorResult(t.GetName(), "unavailable: "+poolErr.Error(), start), poolErr
	}
	return result, err
}
