package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// InitMetrics builds the prometheus-backed meter and all instruments. The
// exporter registers against the default prometheus registry, which the
// server exposes on /metrics.
func InitMetrics(ctx context.Context, cfg MetricsConfig) (*PrometheusMetrics, error) {
	if !cfg.Enabled {
		return &PrometheusMetrics{}, nil
	}

	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
	)

	meter := meterProvider.Meter("investigator")
	m := &PrometheusMetrics{}

	if m.investigationDuration, err = meter.Float64Histogram(
		"investigator_investigation_duration_seconds",
		metric.WithDescription("Total investigation duration in seconds"),
	); err != nil {
		return nil, fmt.Errorf("failed to create investigation duration histogram: %w", err)
	}

	if m.investigationsTotal, err = meter.Int64Counter(
		"investigator_investigations_total",
		metric.WithDescription("Investigations by terminal status"),
	); err != nil {
		return nil, fmt.Errorf("failed to create investigations counter: %w", err)
	}

	if m.agentDuration, err = meter.Float64Histogram(
		"investigator_agent_run_duration_seconds",
		metric.WithDescription("Agent run duration in seconds"),
	); err != nil {
		return nil, fmt.Errorf("failed to create agent duration histogram: %w", err)
	}

	if m.agentRunsTotal, err = meter.Int64Counter(
		"investigator_agent_runs_total",
		metric.WithDescription("Total agent runs"),
	); err != nil {
		return nil, fmt.Errorf("failed to create agent runs counter: %w", err)
	}

	if m.agentErrorsTotal, err = meter.Int64Counter(
		"investigator_agent_errors_total",
		metric.WithDescription("Total agent errors"),
	); err != nil {
		return nil, fmt.Errorf("failed to create agent errors counter: %w", err)
	}

	if m.agentTokensTotal, err = meter.Int64Counter(
		"investigator_agent_tokens_used_total",
		metric.WithDescription("Total tokens used by agents"),
	); err != nil {
		return nil, fmt.Errorf("failed to create agent tokens counter: %w", err)
	}

	if m.toolDuration, err = meter.Float64Histogram(
		"investigator_tool_execution_duration_seconds",
		metric.WithDescription("Tool execution duration in seconds"),
	); err != nil {
		return nil, fmt.Errorf("failed to create tool duration histogram: %w", err)
	}

	if m.toolCallsTotal, err = meter.Int64Counter(
		"investigator_tool_calls_total",
		metric.WithDescription("Total tool calls"),
	); err != nil {
		return nil, fmt.Errorf("failed to create tool calls counter: %w", err)
	}

	if m.toolErrorsTotal, err = meter.Int64Counter(
		"investigator_tool_errors_total",
		metric.WithDescription("Total tool errors"),
	); err != nil {
		return nil, fmt.Errorf("failed to create tool errors counter: %w", err)
	}

	if m.toolCacheHitTotal, err = meter.Int64Counter(
		"investigator_tool_cache_hits_total",
		metric.WithDescription("Tool calls served from cache"),
	); err != nil {
		return nil, fmt.Errorf("failed to create tool cache hits counter: %w", err)
	}

	if m.llmDuration, err = meter.Float64Histogram(
		"investigator_llm_request_duration_seconds",
		metric.WithDescription("LLM request duration in seconds"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm duration histogram: %w", err)
	}

	if m.llmInputTokens, err = meter.Int64Counter(
		"investigator_llm_tokens_input_total",
		metric.WithDescription("Total input tokens sent to LLM"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm input tokens counter: %w", err)
	}

	if m.llmOutputTokens, err = meter.Int64Counter(
		"investigator_llm_tokens_output_total",
		metric.WithDescription("Total output tokens from LLM"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm output tokens counter: %w", err)
	}

	if m.llmErrorsTotal, err = meter.Int64Counter(
		"investigator_llm_errors_total",
		metric.WithDescription("Total LLM errors"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm errors counter: %w", err)
	}

	return m, nil
}
