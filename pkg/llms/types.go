// Package llms is the gateway to the chat completion provider. It owns the
// message and tool-call protocol types, the transient/permanent error
// taxonomy, pre-flight context-limit checks, and an optional completion
// cache for deterministic prompts. The gateway never executes tools; it
// transmits definitions and parses the structured reply.
package llms

import (
	"context"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry in the ordered conversation passed to Complete.
type Message struct {
	Role Role `json:"role"`

	Content string `json:"content"`

	// ToolCalls is set on assistant messages that request tool dispatch.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a tool message back to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ToolCall is a structured tool request emitted by the model.
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ToolDefinition describes an invocable tool to the model.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// AssistantMessage is the single reply Complete returns. Non-empty ToolCalls
// means the caller must dispatch tools and call again; empty means final
// answer.
type AssistantMessage struct {
	Text      string     `json:"text,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Tokens    int        `json:"tokens,omitempty"`
}

// NeedsTools reports whether the reply requests tool dispatch.
func (m *AssistantMessage) NeedsTools() bool {
	return len(m.ToolCalls) > 0
}

// Gateway is the single contract the agent runtime depends on.
type Gateway interface {
	// Complete submits the conversation and tool schemas and returns exactly
	// one assistant message. maxTokens bounds the completion length; 0 uses
	// the provider default.
	Complete(ctx context.Context, messages []Message, tools []ToolDefinition, maxTokens int) (*AssistantMessage, error)

	// ModelName returns the configured model identifier, for health and
	// tracing.
	ModelName() string
}

// SystemMessage, UserMessage and ToolMessage are small constructors that
// keep call sites readable.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// ToolMessage carries a tool's textual result keyed by the originating call id.
func ToolMessage(callID, content string) Message {
	return Message{Role: RoleTool, ToolCallID: callID, Content: content}
}
