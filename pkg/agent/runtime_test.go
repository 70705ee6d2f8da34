package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovokpus/investigator/pkg/config"
	"github.com/ovokpus/investigator/pkg/investigation"
	"github.com/ovokpus/investigator/pkg/llms"
	"github.com/ovokpus/investigator/pkg/tools"
)

type completeCall struct {
	messages []llms.Message
	tools    []llms.ToolDefinition
}

// scriptedGateway replays a fixed sequence of replies and records every
// request it sees.
type scriptedGateway struct {
	mu      sync.Mutex
	replies []*llms.AssistantMessage
	errs    []error
	calls   []completeCall
}

func (g *scriptedGateway) Complete(ctx context.Context, messages []llms.Message, defs []llms.ToolDefinition, maxTokens int) (*llms.AssistantMessage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	msgs := make([]llms.Message, len(messages))
	copy(msgs, messages)
	g.calls = append(g.calls, completeCall{messages: msgs, tools: defs})

	idx := len(g.calls) - 1
	if idx < len(g.errs) && g.errs[idx] != nil {
		return nil, g.errs[idx]
	}
	if idx >= len(g.replies) {
		return &llms.AssistantMessage{Text: "no further analysis"}, nil
	}
	return g.replies[idx], nil
}

func (g *scriptedGateway) ModelName() string { return "scripted" }

func (g *scriptedGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type sinkEvent struct {
	kind  string
	agent string
	tool  string
}

type recordingSink struct {
	mu     sync.Mutex
	events []sinkEvent
}

func (s *recordingSink) ToolCall(agent, tool string, args map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, sinkEvent{kind: "tool_call", agent: agent, tool: tool})
}

func (s *recordingSink) ToolResult(agent string, inv investigation.ToolInvocation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, sinkEvent{kind: "tool_result", agent: agent, tool: inv.Tool})
}

func (s *recordingSink) count(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.kind == kind {
			n++
		}
	}
	return n
}

func calculatorRegistry(t *testing.T) *tools.ToolRegistry {
	t.Helper()
	cfg := config.Default()
	reg := tools.NewToolRegistry()
	require.NoError(t, reg.RegisterTool(tools.NewRiskCalculatorTool(cfg.Risk)))
	require.NoError(t, reg.RegisterTool(tools.NewComplianceCheckTool(cfg.Compliance)))
	return reg
}

func evidenceDefinition() Definition {
	return Definition{
		Name:          AgentEvidenceCollection,
		SystemPrompt:  "You quantify transaction risk.",
		Tools:         []string{"calculate_transaction_risk"},
		FirstToolHint: "calculate_transaction_risk",
	}
}

func sampleInput() investigation.TransactionInput {
	return investigation.TransactionInput{
		Amount:       9500,
		Currency:     "USD",
		Description:  "consulting services",
		CustomerName: "Rapid Industries LLC",
		AccountType:  investigation.AccountBusiness,
		RiskRating:   investigation.RiskLow,
		CountryTo:    "United States",
	}
}

func TestRunReturnsFinalTextWithoutTools(t *testing.T) {
	gw := &scriptedGateway{
		replies: []*llms.AssistantMessage{{Text: "nothing suspicious", Tokens: 12}},
	}
	rt := NewRuntime(gw, calculatorRegistry(t))

	seed := []llms.Message{llms.UserMessage(FormatTask(sampleInput()))}
	result := rt.Run(context.Background(), evidenceDefinition(), seed, nil)

	require.False(t, result.Failed())
	assert.Equal(t, "nothing suspicious", result.Text)
	assert.Empty(t, result.ToolCalls)
	assert.Equal(t, 1, gw.callCount())
}

func TestRunDispatchesToolsInOrder(t *testing.T) {
	gw := &scriptedGateway{
		replies: []*llms.AssistantMessage{
			{ToolCalls: []llms.ToolCall{
				{ID: "call-1", Name: "calculate_transaction_risk", Arguments: map[string]interface{}{
					"amount":       9500.0,
					"account_type": "Business",
					"risk_rating":  "Low",
					"country_to":   "United States",
				}},
			}},
			{Text: "risk assessed", Tokens: 20},
		},
	}
	rt := NewRuntime(gw, calculatorRegistry(t))
	sink := &recordingSink{}

	seed := []llms.Message{llms.UserMessage(FormatTask(sampleInput()))}
	result := rt.Run(context.Background(), evidenceDefinition(), seed, sink)

	require.False(t, result.Failed())
	assert.Equal(t, "risk assessed", result.Text)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "calculate_transaction_risk", result.ToolCalls[0].Tool)
	assert.NotEmpty(t, result.ToolCalls[0].Result)
	assert.Empty(t, result.ToolCalls[0].Error)

	// tool history must match what was streamed
	assert.Equal(t, len(result.ToolCalls), sink.count("tool_result"))
	assert.Equal(t, len(result.ToolCalls), sink.count("tool_call"))

	// second request carries the tool reply keyed by the call id
	require.Equal(t, 2, gw.callCount())
	second := gw.calls[1].messages
	last := second[len(second)-1]
	assert.Equal(t, llms.RoleTool, last.Role)
	assert.Equal(t, "call-1", last.ToolCallID)
	assert.NotEmpty(t, last.Content)
}

func TestRunOnlyOffersAllowedTools(t *testing.T) {
	gw := &scriptedGateway{
		replies: []*llms.AssistantMessage{{Text: "done"}},
	}
	rt := NewRuntime(gw, calculatorRegistry(t))

	rt.Run(context.Background(), evidenceDefinition(), nil, nil)

	require.Equal(t, 1, gw.callCount())
	require.Len(t, gw.calls[0].tools, 1)
	assert.Equal(t, "calculate_transaction_risk", gw.calls[0].tools[0].Name)

	params := gw.calls[0].tools[0].Parameters
	assert.Equal(t, "object", params["type"])
	required, ok := params["required"].([]string)
	require.True(t, ok)
	assert.Contains(t, required, "amount")
}

func TestRunUnknownToolContinuesLoop(t *testing.T) {
	gw := &scriptedGateway{
		replies: []*llms.AssistantMessage{
			{ToolCalls: []llms.ToolCall{
				{ID: "call-1", Name: "no_such_tool", Arguments: map[string]interface{}{}},
			}},
			{Text: "concluded without the tool"},
		},
	}
	rt := NewRuntime(gw, calculatorRegistry(t))

	result := rt.Run(context.Background(), evidenceDefinition(), nil, nil)

	require.False(t, result.Failed())
	assert.Equal(t, "concluded without the tool", result.Text)
	require.Len(t, result.ToolCalls, 1)
	assert.Contains(t, result.ToolCalls[0].Error, "unknown tool")

	second := gw.calls[1].messages
	last := second[len(second)-1]
	assert.Equal(t, llms.RoleTool, last.Role)
	assert.True(t, strings.HasPrefix(last.Content, "error:"))
}

func TestRunForcesConclusionAfterBudget(t *testing.T) {
	toolReply := &llms.AssistantMessage{ToolCalls: []llms.ToolCall{
		{ID: "c", Name: "calculate_transaction_risk", Arguments: map[string]interface{}{
			"amount": 100.0,
		}},
	}}

	def := evidenceDefinition()
	def.MaxIterations = 2

	gw := &scriptedGateway{
		replies: []*llms.AssistantMessage{toolReply, toolReply, {Text: "forced summary"}},
	}
	rt := NewRuntime(gw, calculatorRegistry(t))

	result := rt.Run(context.Background(), def, nil, nil)

	require.False(t, result.Failed())
	assert.Equal(t, "forced summary", result.Text)
	assert.Len(t, result.ToolCalls, 2)

	// the conclusion turn withholds tool schemas and instructs the model
	require.Equal(t, 3, gw.callCount())
	final := gw.calls[2]
	assert.Empty(t, final.tools)
	last := final.messages[len(final.messages)-1]
	assert.Equal(t, llms.RoleSystem, last.Role)
	assert.Contains(t, last.Content, "final answer")
}

func TestRunRecordsPermanentGatewayError(t *testing.T) {
	gw := &scriptedGateway{
		errs: []error{&llms.GatewayError{Kind: llms.ErrorPermanent, Message: "invalid api key"}},
	}
	rt := NewRuntime(gw, calculatorRegistry(t))

	result := rt.Run(context.Background(), evidenceDefinition(), nil, nil)

	require.True(t, result.Failed())
	assert.Equal(t, llms.ErrorPermanent, FailureKind(result))
	assert.Contains(t, result.Error, "invalid api key")
}

func TestRunRecordsContextOverflow(t *testing.T) {
	gw := &scriptedGateway{
		errs: []error{&llms.GatewayError{Kind: llms.ErrorContextOverflow, Message: "prompt exceeds context limit"}},
	}
	rt := NewRuntime(gw, calculatorRegistry(t))

	result := rt.Run(context.Background(), evidenceDefinition(), nil, nil)

	require.True(t, result.Failed())
	assert.Equal(t, llms.ErrorContextOverflow, FailureKind(result))
}

// cancelGateway answers the first turn with a tool call, then blocks
// until the caller's context is cancelled.
type cancelGateway struct {
	calls   int32
	blocked chan struct{}
}

func (g *cancelGateway) Complete(ctx context.Context, messages []llms.Message, defs []llms.ToolDefinition, maxTokens int) (*llms.AssistantMessage, error) {
	if atomic.AddInt32(&g.calls, 1) == 1 {
		return &llms.AssistantMessage{ToolCalls: []llms.ToolCall{
			{ID: "c1", Name: "calculate_transaction_risk", Arguments: map[string]interface{}{
				"amount": 100.0,
			}},
		}}, nil
	}
	close(g.blocked)
	<-ctx.Done()
	return nil, ctx.Err()
}

func (g *cancelGateway) ModelName() string { return "blocking" }

func TestRunCancellationKeepsPartialHistory(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw := &cancelGateway{blocked: make(chan struct{})}
	rt := NewRuntime(gw, calculatorRegistry(t))

	done := make(chan *investigation.AgentResult, 1)
	go func() {
		done <- rt.Run(ctx, evidenceDefinition(), nil, nil)
	}()

	<-gw.blocked
	cancel()

	result := <-done
	require.True(t, result.Failed())
	assert.Equal(t, llms.ErrorCancelled, FailureKind(result))
	assert.Len(t, result.ToolCalls, 1, "tool history before cancellation is preserved")
}

func TestDefinitionsCoverAllAgents(t *testing.T) {
	defs := Definitions(4)
	require.Len(t, defs, 4)

	byName := make(map[string]Definition, len(defs))
	for _, d := range defs {
		byName[d.Name] = d
		assert.Equal(t, 4, d.MaxIterations)
	}

	research := byName[AgentRegulatoryResearch]
	assert.Equal(t, "search_regulatory_documents", research.FirstToolHint)
	assert.Contains(t, research.Tools, "search_fraud_research")

	evidence := byName[AgentEvidenceCollection]
	assert.Equal(t, "calculate_transaction_risk", evidence.FirstToolHint)

	compliance := byName[AgentComplianceCheck]
	assert.Equal(t, "check_compliance_requirements", compliance.FirstToolHint)

	report := byName[AgentReportGeneration]
	assert.Empty(t, report.FirstToolHint, "the synthesis agent gets no hint")
	assert.Contains(t, report.SystemPrompt, "Executive Summary")
}

func TestFirstToolHintAppearsInPromptOnly(t *testing.T) {
	def := evidenceDefinition()
	assert.Contains(t, def.systemPrompt(), "calculate_transaction_risk")

	// a compliant reply that never calls the hinted tool is accepted
	gw := &scriptedGateway{
		replies: []*llms.AssistantMessage{{Text: "skipped the calculator"}},
	}
	rt := NewRuntime(gw, calculatorRegistry(t))
	result := rt.Run(context.Background(), def, nil, nil)
	require.False(t, result.Failed())
	assert.Equal(t, "skipped the calculator", result.Text)
}

func TestFormatTaskIncludesEveryField(t *testing.T) {
	task := FormatTask(sampleInput())
	for _, want := range []string{
		"9500.00 USD",
		"consulting services",
		"Rapid Industries LLC",
		"Business",
		"Low",
		"United States",
	} {
		assert.Contains(t, task, want, fmt.Sprintf("task must mention %q", want))
	}
}

func TestFailureKindDefaultsToTransient(t *testing.T) {
	assert.Equal(t, llms.ErrorKind(""), FailureKind(&investigation.AgentResult{}))
	assert.Equal(t, llms.ErrorTransient, FailureKind(&investigation.AgentResult{Error: "weird"}))
	assert.Equal(t, llms.ErrorCancelled, FailureKind(&investigation.AgentResult{Error: "cancelled: context canceled"}))
}
