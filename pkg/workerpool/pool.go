// Package workerpool bounds concurrent I/O. Two pools exist in the
// service: one sized for LLM requests and one for network tool calls.
// Waiting for a slot counts against the caller's deadline, so a
// saturated pool surfaces as a timeout rather than unbounded queueing.
package workerpool

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// Pool is a counting semaphore over a fixed number of slots.
type Pool struct {
	name string
	sem  *semaphore.Weighted
	size int
}

func New(name string, size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{
		name: name,
		sem:  semaphore.NewWeighted(int64(size)),
		size: size,
	}
}

func (p *Pool) Name() string { return p.name }
func (p *Pool) Size() int    { return p.size }

// Run executes fn once a slot is free. The wait is bounded by ctx; a
// caller whose deadline expires while queued gets the context error.
func (p *Pool) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%s pool: %w", p.name, err)
	}
	defer p.sem.Release(1)

	return fn(ctx)
}
