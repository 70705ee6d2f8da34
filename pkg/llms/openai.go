package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ovokpus/investigator/pkg/observability"
)

// OpenAIProvider talks the OpenAI-compatible chat completions wire protocol
// with tool calling. Any endpoint speaking that dialect works via Host.
type OpenAIProvider struct {
	cfg    ProviderConfig
	client *http.Client
	limit  *contextLimiter
}

// ProviderConfig configures the chat completion provider.
type ProviderConfig struct {
	APIKey      string
	Model       string
	Host        string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration

	// MaxRetries bounds transient-error retries. Backoff is retryBaseDelay,
	// then 4x that, matching the 200 ms / 800 ms schedule.
	MaxRetries int

	// ContextTokens overrides the model-derived context window size.
	ContextTokens int
}

const retryBaseDelay = 200 * time.Millisecond

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
	Tools       []openAITool    `json:"tools,omitempty"`
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAITool struct {
	Type     string             `json:"type"`
	Function openAIToolFunction `json:"function"`
}

type openAIToolFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type openAIToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function openAIFunctionCall `json:"function"`
}

type openAIFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
	Usage   openAIUsage    `json:"usage"`
	Error   *openAIError   `json:"error,omitempty"`
}

type openAIChoice struct {
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// NewOpenAIProvider creates the provider. The API key is validated lazily on
// the first request so boot succeeds without credentials.
func NewOpenAIProvider(cfg ProviderConfig) *OpenAIProvider {
	if cfg.Host == "" {
		cfg.Host = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}

	return &OpenAIProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		limit:  newContextLimiter(cfg.Model, cfg.ContextTokens),
	}
}

func (p *OpenAIProvider) ModelName() string {
	return p.cfg.Model
}

// Ready reports whether the provider has credentials.
func (p *OpenAIProvider) Ready() bool {
	return p.cfg.APIKey != ""
}

func (p *OpenAIProvider) Complete(ctx context.Context, messages []Message, tools []ToolDefinition, maxTokens int) (*AssistantMessage, error) {
	start := time.Now()

	tracer := observability.GetTracer("investigator.llm")
	ctx, span := tracer.Start(ctx, observability.SpanLLMRequest,
		trace.WithAttributes(
			attribute.String(observability.AttrLLMModel, p.cfg.Model),
			attribute.String("provider", "openai"),
		),
	)
	defer span.End()

	if p.cfg.APIKey == "" {
		err := permanentErr("no API key configured", nil)
		span.RecordError(err)
		span.SetStatus(codes.Error, "missing credentials")
		return nil, err
	}

	if err := p.limit.Check(messages, tools); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "context overflow")
		return nil, err
	}

	request := p.buildRequest(messages, tools, maxTokens)

	var response *openAIResponse
	var err error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			// 200 ms then 800 ms.
			delay := retryBaseDelay << (2 * (attempt - 1))
			select {
			case <-ctx.Done():
				return nil, cancelledErr(ctx.Err())
			case <-time.After(delay):
			}
		}

		response, err = p.makeRequest(ctx, request)
		if err == nil || IsPermanent(err) || KindOf(err) == ErrorCancelled {
			break
		}
	}

	duration := time.Since(start)
	metrics := observability.GetGlobalMetrics()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if metrics != nil {
			metrics.RecordLLMCall(ctx, p.cfg.Model, duration, 0, 0, err)
		}
		return nil, err
	}

	if len(response.Choices) == 0 {
		noChoiceErr := transientErr("no response choices returned", nil)
		span.RecordError(noChoiceErr)
		span.SetStatus(codes.Error, "no choices")
		if metrics != nil {
			metrics.RecordLLMCall(ctx, p.cfg.Model, duration, 0, 0, noChoiceErr)
		}
		return nil, noChoiceErr
	}

	choice := response.Choices[0]
	reply := &AssistantMessage{
		Text:   choice.Message.Content,
		Tokens: response.Usage.TotalTokens,
	}

	for _, tc := range choice.Message.ToolCalls {
		call, parseErr := parseToolCall(tc)
		if parseErr != nil {
			span.RecordError(parseErr)
			return nil, permanentErr("malformed tool call from provider", parseErr)
		}
		reply.ToolCalls = append(reply.ToolCalls, call)
	}

	span.SetAttributes(
		attribute.Int(observability.AttrLLMTokensInput, response.Usage.PromptTokens),
		attribute.Int(observability.AttrLLMTokensOutput, response.Usage.CompletionTokens),
		attribute.Int("llm.tool_calls", len(reply.ToolCalls)),
	)
	span.SetStatus(codes.Ok, "success")

	if metrics != nil {
		metrics.RecordLLMCall(ctx, p.cfg.Model, duration, response.Usage.PromptTokens, response.Usage.CompletionTokens, nil)
	}

	return reply, nil
}

func (p *OpenAIProvider) buildRequest(messages []Message, tools []ToolDefinition, maxTokens int) *openAIRequest {
	request := &openAIRequest{
		Model:       p.cfg.Model,
		Temperature: p.cfg.Temperature,
	}

	if maxTokens <= 0 {
		maxTokens = p.cfg.MaxTokens
	}
	if maxTokens > 0 {
		request.MaxTokens = &maxTokens
	}

	for _, m := range messages {
		request.Messages = append(request.Messages, toWireMessage(m))
	}

	for _, t := range tools {
		request.Tools = append(request.Tools, openAITool{
			Type: "function",
			Function: openAIToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	return request
}

func toWireMessage(m Message) openAIMessage {
	wire := openAIMessage{
		Role:       string(m.Role),
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
	}
	for _, tc := range m.ToolCalls {
		args, _ := json.Marshal(tc.Arguments)
		wire.ToolCalls = append(wire.ToolCalls, openAIToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: openAIFunctionCall{
				Name:      tc.Name,
				Arguments: string(args),
			},
		})
	}
	return wire
}

func parseToolCall(tc openAIToolCall) (ToolCall, error) {
	call := ToolCall{
		ID:        tc.ID,
		Name:      tc.Function.Name,
		Arguments: map[string]interface{}{},
	}
	if tc.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &call.Arguments); err != nil {
			return ToolCall{}, fmt.Errorf("tool call %s has invalid arguments: %w", tc.Function.Name, err)
		}
	}
	return call, nil
}

func (p *OpenAIProvider) makeRequest(ctx context.Context, request *openAIRequest) (*openAIResponse, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, permanentErr("failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Host+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, permanentErr("failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, cancelledErr(err)
		}
		return nil, transientErr("request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, transientErr("failed to read response", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, permanentErr(fmt.Sprintf("authentication failed (HTTP %d)", resp.StatusCode), nil)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, transientErr(fmt.Sprintf("provider unavailable (HTTP %d)", resp.StatusCode), nil)
	case resp.StatusCode == http.StatusRequestEntityTooLarge:
		return nil, overflowErr("provider rejected payload as too large")
	default:
		return nil, permanentErr(fmt.Sprintf("provider rejected request (HTTP %d): %s", resp.StatusCode, truncate(string(raw), 256)), nil)
	}

	var response openAIResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		return nil, transientErr("failed to decode response", err)
	}
	if response.Error != nil {
		return nil, permanentErr("provider error: "+response.Error.Message, nil)
	}

	return &response, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ Gateway = (*OpenAIProvider)(nil)
