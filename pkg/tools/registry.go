package tools

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ovokpus/investigator/pkg/observability"
	"github.com/ovokpus/investigator/pkg/registry"
)

type ToolRegistryError struct {
	Component string
	Action    string
	Message   string
	Err       error
}

func (e *ToolRegistryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Component, e.Action, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Component, e.Action, e.Message)
}

func NewToolRegistryError(component, action, message string, err error) *ToolRegistryError {
	return &ToolRegistryError{
		Component: component,
		Action:    action,
		Message:   message,
		Err:       err,
	}
}

// ToolRegistry holds the tool catalog. Immutable after boot.
type ToolRegistry struct {
	*registry.BaseRegistry[Tool]
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		BaseRegistry: registry.NewBaseRegistry[Tool](),
	}
}

func (r *ToolRegistry) RegisterTool(tool Tool) error {
	return r.Register(tool.GetName(), tool)
}

// GetTool returns a registered tool or an error naming it.
func (r *ToolRegistry) GetTool(name string) (Tool, error) {
	tool, exists := r.Get(name)
	if !exists {
		return nil, NewToolRegistryError("ToolRegistry", "GetTool",
			fmt.Sprintf("unknown tool: %s", name), nil)
	}
	return tool, nil
}

// ListInfos returns ToolInfo for the named tools, in the given order.
// Unknown names are skipped.
func (r *ToolRegistry) ListInfos(names []string) []ToolInfo {
	infos := make([]ToolInfo, 0, len(names))
	for _, name := range names {
		if tool, exists := r.Get(name); exists {
			infos = append(infos, tool.GetInfo())
		}
	}
	return infos
}

// ExecuteTool runs a tool under a trace span, validating arguments
// against the tool's declared parameters first. Unknown tools and
// invalid arguments produce failed results without reaching the tool.
func (r *ToolRegistry) ExecuteTool(ctx context.Context, toolName string, args map[string]interface{}) (ToolResult, error) {
	startTime := time.Now()

	tracer := observability.GetTracer("tools")
	ctx, span := tracer.Start(ctx, observability.SpanToolExecution,
		trace.WithAttributes(
			attribute.String(observability.AttrToolName, toolName),
		),
	)
	defer span.End()

	tool, err := r.GetTool(toolName)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "tool not found")
		recordToolMetrics(ctx, toolName, time.Since(startTime), false, err)

		return ToolResult{
			Success:  false,
			Error:    err.Error(),
			ToolName: toolName,
		}, err
	}

	if err := validateArgs(tool.GetInfo(), args); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid arguments")
		recordToolMetrics(ctx, toolName, time.Since(startTime), false, err)

		return ToolResult{
			Success:  false,
			Error:    err.Error(),
			ToolName: toolName,
		}, err
	}

	result, execErr := tool.Execute(ctx, args)
	duration := time.Since(startTime)

	var recordErr error
	switch {
	case execErr != nil:
		recordErr = execErr
		span.RecordError(execErr)
		span.SetStatus(codes.Error, execErr.Error())
	case !result.Success:
		recordErr = fmt.Errorf("%s", result.Error)
		span.RecordError(recordErr)
		span.SetStatus(codes.Error, result.Error)
	default:
		span.SetStatus(codes.Ok, "success")
	}
	recordToolMetrics(ctx, toolName, duration, result.CacheHit, recordErr)

	span.SetAttributes(
		attribute.Bool("tool.success", result.Success),
		attribute.Bool(observability.AttrCacheHit, result.CacheHit),
		attribute.Int64("tool.duration_ms", duration.Milliseconds()),
	)

	return result, execErr
}

func recordToolMetrics(ctx context.Context, toolName string, duration time.Duration, cacheHit bool, err error) {
	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordToolExecution(ctx, toolName, duration, cacheHit, err)
	}
}

func validateArgs(info ToolInfo, args map[string]interface{}) error {
	declared := make(map[string]ToolParameter, len(info.Parameters))
	for _, p := range info.Parameters {
		declared[p.Name] = p
	}

	for _, p := range info.Parameters {
		if !p.Required {
			continue
		}
		val, ok := args[p.Name]
		if !ok || val == nil {
			return NewToolRegistryError("ToolRegistry", "ExecuteTool",
				fmt.Sprintf("invalid arguments for %s: missing required parameter %q", info.Name, p.Name), nil)
		}
		if p.Type == "string" {
			if s, ok := val.(string); !ok || s == "" {
				return NewToolRegistryError("ToolRegistry", "ExecuteTool",
					fmt.Sprintf("invalid arguments for %s: parameter %q must be a non-empty string", info.Name, p.Name), nil)
			}
		}
		if p.Type == "number" {
			if _, ok := getFloat(args, p.Name); !ok {
				return NewToolRegistryError("ToolRegistry", "ExecuteTool",
					fmt.Sprintf("invalid arguments for %s: parameter %q must be a number", info.Name, p.Name), nil)
			}
		}
	}

	for name := range args {
		if _, ok := declared[name]; !ok {
			return NewToolRegistryError("ToolRegistry", "ExecuteTool",
				fmt.Sprintf("invalid arguments for %s: unknown parameter %q", info.Name, name), nil)
		}
	}

	return nil
}
