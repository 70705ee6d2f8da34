package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	globalMetrics Metrics
	metricsMu     sync.RWMutex
)

// Metrics is the recording surface components call into. A nil value
// disables recording.
type Metrics interface {
	RecordInvestigation(ctx context.Context, status string, duration time.Duration)
	RecordAgentRun(ctx context.Context, agent string, duration time.Duration, tokens int, err error)
	RecordToolExecution(ctx context.Context, tool string, duration time.Duration, cacheHit bool, err error)
	RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error)
}

type PrometheusMetrics struct {
	investigationDuration metric.Float64Histogram
	investigationsTotal   metric.Int64Counter

	agentDuration    metric.Float64Histogram
	agentRunsTotal   metric.Int64Counter
	agentErrorsTotal metric.Int64Counter
	agentTokensTotal metric.Int64Counter

	toolDuration      metric.Float64Histogram
	toolCallsTotal    metric.Int64Counter
	toolErrorsTotal   metric.Int64Counter
	toolCacheHitTotal metric.Int64Counter

	llmDuration     metric.Float64Histogram
	llmInputTokens  metric.Int64Counter
	llmOutputTokens metric.Int64Counter
	llmErrorsTotal  metric.Int64Counter
}

func (m *PrometheusMetrics) RecordInvestigation(ctx context.Context, status string, duration time.Duration) {
	if m == nil || m.investigationsTotal == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("status", status))
	m.investigationsTotal.Add(ctx, 1, attrs)
	m.investigationDuration.Record(ctx, duration.Seconds(), attrs)
}

func (m *PrometheusMetrics) RecordAgentRun(ctx context.Context, agent string, duration time.Duration, tokens int, err error) {
	if m == nil || m.agentDuration == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("agent", agent))
	m.agentDuration.Record(ctx, duration.Seconds(), attrs)
	m.agentRunsTotal.Add(ctx, 1, attrs)

	if tokens > 0 && m.agentTokensTotal != nil {
		m.agentTokensTotal.Add(ctx, int64(tokens), attrs)
	}
	if err != nil && m.agentErrorsTotal != nil {
		m.agentErrorsTotal.Add(ctx, 1, attrs)
	}
}

func (m *PrometheusMetrics) RecordToolExecution(ctx context.Context, tool string, duration time.Duration, cacheHit bool, err error) {
	if m == nil || m.toolDuration == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("tool", tool))
	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
	m.toolCallsTotal.Add(ctx, 1, attrs)

	if cacheHit && m.toolCacheHitTotal != nil {
		m.toolCacheHitTotal.Add(ctx, 1, attrs)
	}
	if err != nil && m.toolErrorsTotal != nil {
		m.toolErrorsTotal.Add(ctx, 1, attrs)
	}
}

func (m *PrometheusMetrics) RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error) {
	if m == nil || m.llmDuration == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("model", model))
	m.llmDuration.Record(ctx, duration.Seconds(), attrs)
	m.llmInputTokens.Add(ctx, int64(inputTokens), attrs)
	m.llmOutputTokens.Add(ctx, int64(outputTokens), attrs)

	if err != nil && m.llmErrorsTotal != nil {
		m.llmErrorsTotal.Add(ctx, 1, attrs)
	}
}

func SetGlobalMetrics(m Metrics) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	globalMetrics = m
}

func GetGlobalMetrics() Metrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return globalMetrics
}
