package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ovokpus/investigator/pkg/investigation"
	"github.com/ovokpus/investigator/pkg/llms"
	"github.com/ovokpus/investigator/pkg/observability"
	"github.com/ovokpus/investigator/pkg/tools"
	"github.com/ovokpus/investigator/pkg/workerpool"
)

const (
	// DefaultMaxIterations bounds the reason-act loop when neither the
	// definition nor the runtime sets a budget.
	DefaultMaxIterations = 6

	// DefaultAgentTimeout bounds one full agent run, queue wait included.
	DefaultAgentTimeout = 75 * time.Second

	forcedConclusionPrompt = "tool budget exhausted; provide your final answer"
)

// Sink receives tool activity as it happens so the orchestrator can
// stream it. Implementations must not block.
type Sink interface {
	ToolCall(agent, tool string, args map[string]interface{})
	ToolResult(agent string, inv investigation.ToolInvocation)
}

type nopSink struct{}

func (nopSink) ToolCall(string, string, map[string]interface{}) {}
func (nopSink) ToolResult(string, investigation.ToolInvocation) {}

// Runtime executes agent definitions against a gateway and a tool
// registry. Safe for concurrent use.
type Runtime struct {
	gateway  llms.Gateway
	registry *tools.ToolRegistry
	llmPool  *workerpool.Pool

	maxTokens int
	timeout   time.Duration
	logger    *slog.Logger
}

type RuntimeOption func(*Runtime)

// WithLLMPool routes gateway calls through a bounded worker pool.
func WithLLMPool(pool *workerpool.Pool) RuntimeOption {
	return func(r *Runtime) { r.llmPool = pool }
}

func WithMaxTokens(n int) RuntimeOption {
	return func(r *Runtime) { r.maxTokens = n }
}

func WithAgentTimeout(d time.Duration) RuntimeOption {
	return func(r *Runtime) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) RuntimeOption {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRuntime(gateway llms.Gateway, registry *tools.ToolRegistry, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		gateway:  gateway,
		registry: registry,
		timeout:  DefaultAgentTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one agent to completion and always returns a result.
// Failures are recorded on AgentResult.Error as "<kind>: <detail>";
// the caller decides whether they are fatal. The seed follows the
// system prompt, so upstream agent outputs arrive as user messages.
func (r *Runtime) Run(ctx context.Context, def Definition, seed []llms.Message, sink Sink) *investigation.AgentResult {
	if sink == nil {
		sink = nopSink{}
	}

	result := &investigation.AgentResult{
		Name:      def.Name,
		StartedAt: time.Now(),
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tracer := observability.GetTracer("agent")
	ctx, span := tracer.Start(ctx, observability.SpanAgentRun,
		trace.WithAttributes(
			attribute.String(observability.AttrAgentName, def.Name),
			attribute.String(observability.AttrLLMModel, r.gateway.ModelName()),
		),
	)
	defer span.End()

	messages := make([]llms.Message, 0, len(seed)+1)
	messages = append(messages, llms.SystemMessage(def.systemPrompt()))
	messages = append(messages, seed...)

	toolDefs := toolDefinitions(r.registry.ListInfos(def.Tools))

	maxIterations := def.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	totalTokens := 0
	var runErr error

loop:
	for i := 0; ; i++ {
		defs := toolDefs
		if i >= maxIterations {
			// Budget spent: force a conclusion with tools withheld.
			messages = append(messages, llms.SystemMessage(forcedConclusionPrompt))
			defs = nil
		}

		reply, err := r.complete(ctx, messages, defs)
		if err != nil {
			runErr = err
			result.Error = formatRunError(ctx, err)
			break
		}
		totalTokens += reply.Tokens

		if !reply.NeedsTools() || defs == nil {
			result.Text = reply.Text
			break
		}

		messages = append(messages, llms.Message{
			Role:      llms.RoleAssistant,
			Content:   reply.Text,
			ToolCalls: reply.ToolCalls,
		})

		for _, call := range reply.ToolCalls {
			if ctx.Err() != nil {
				runErr = ctx.Err()
				result.Error = formatRunError(ctx, ctx.Err())
				break loop
			}

			sink.ToolCall(def.Name, call.Name, call.Arguments)

			inv := r.dispatch(ctx, call)
			result.ToolCalls = append(result.ToolCalls, inv)
			messages = append(messages, llms.ToolMessage(call.ID, inv.Result))

			sink.ToolResult(def.Name, inv)
		}
	}

	result.FinishedAt = time.Now()

	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, result.Error)
		r.logger.Warn("agent run failed",
			"agent", def.Name,
			"error", result.Error,
			"tool_calls", len(result.ToolCalls))
	} else {
		span.SetStatus(codes.Ok, "completed")
	}
	span.SetAttributes(
		attribute.Int("agent.tool_calls", len(result.ToolCalls)),
		attribute.Int(observability.AttrLLMTokensOutput, totalTokens),
	)

	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordAgentRun(ctx, def.Name, result.FinishedAt.Sub(result.StartedAt), totalTokens, runErr)
	}

	return result
}

// dispatch runs one tool call and converts the outcome into the Tool
// message the model sees next turn. Tool failures never end the loop.
func (r *Runtime) dispatch(ctx context.Context, call llms.ToolCall) investigation.ToolInvocation {
	res, _ := r.registry.ExecuteTool(ctx, call.Name, call.Arguments)

	content := res.Content
	if !res.Success && content == "" {
		content = "error: " + res.Error
	}

	return investigation.ToolInvocation{
		Tool:      call.Name,
		Arguments: call.Arguments,
		Result:    content,
		Latency:   res.ExecutionTime,
		CacheHit:  res.CacheHit,
		Error:     res.Error,
	}
}

func (r *Runtime) complete(ctx context.Context, messages []llms.Message, defs []llms.ToolDefinition) (*llms.AssistantMessage, error) {
	if r.llmPool == nil {
		return r.gateway.Complete(ctx, messages, defs, r.maxTokens)
	}

	var reply *llms.AssistantMessage
	err := r.llmPool.Run(ctx, func(ctx context.Context) error {
		var err error
		reply, err = r.gateway.Complete(ctx, messages, defs, r.maxTokens)
		return err
	})
	return reply, err
}

// formatRunError renders a gateway or context failure as
// "<kind>: <detail>" so FailureKind can recover the classification.
func formatRunError(ctx context.Context, err error) string {
	kind := llms.KindOf(err)
	if ctx.Err() != nil {
		kind = llms.ErrorCancelled
	}
	return fmt.Sprintf("%s: %v", kind, err)
}

// FailureKind extracts the error classification recorded by Run.
// Returns the empty string for successful results.
func FailureKind(result *investigation.AgentResult) llms.ErrorKind {
	if result == nil || result.Error == "" {
		return ""
	}
	if idx := strings.IndexByte(result.Error, ':'); idx > 0 {
		return llms.ErrorKind(result.Error[:idx])
	}
	return llms.ErrorTransient
}

// toolDefinitions converts registry schemas into the JSON-schema shape
// the gateway transmits.
func toolDefinitions(infos []tools.ToolInfo) []llms.ToolDefinition {
	defs := make([]llms.ToolDefinition, 0, len(infos))
	for _, info := range infos {
		properties := make(map[string]interface{}, len(info.Parameters))
		required := make([]string, 0, len(info.Parameters))

		for _, p := range info.Parameters {
			prop := map[string]interface{}{
				"type":        p.Type,
				"description": p.Description,
			}
			if len(p.Enum) > 0 {
				prop["enum"] = p.Enum
			}
			properties[p.Name] = prop

			if p.Required {
				required = append(required, p.Name)
			}
		}

		parameters := map[string]interface{}{
			"type":       "object",
			"properties": properties,
		}
		if len(required) > 0 {
			parameters["required"] = required
		}

		defs = append(defs, llms.ToolDefinition{
			Name:        info.Name,
			Description: info.Description,
			Parameters:  parameters,
		})
	}
	return defs
}
