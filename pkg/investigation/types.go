// Package investigation defines the domain model shared across the
// orchestrator, agent runtime, and HTTP surface: the transaction input,
// the investigation root entity, per-agent results, and progress events.
package investigation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AccountType classifies the customer account on the transaction.
type AccountType string

const (
	AccountPersonal     AccountType = "Personal"
	AccountBusiness     AccountType = "Business"
	AccountCorporate    AccountType = "Corporate"
	AccountNonprofit    AccountType = "Nonprofit"
	AccountProfessional AccountType = "Professional Services"
	AccountGaming       AccountType = "Gaming/Entertainment"
	AccountInvestment   AccountType = "Investment"
	AccountGovernment   AccountType = "Government"
)

// RiskRating is the customer's pre-assigned risk tier.
type RiskRating string

const (
	RiskLow      RiskRating = "Low"
	RiskMedium   RiskRating = "Medium"
	RiskHigh     RiskRating = "High"
	RiskCritical RiskRating = "Critical"
)

// TransactionInput is the externally supplied transaction record.
// Immutable once accepted.
type TransactionInput struct {
	Amount       float64     `json:"amount" yaml:"amount"`
	Currency     string      `json:"currency" yaml:"currency"`
	Description  string      `json:"description" yaml:"description"`
	CustomerName string      `json:"customer_name" yaml:"customer_name"`
	AccountType  AccountType `json:"account_type" yaml:"account_type"`
	RiskRating   RiskRating  `json:"risk_rating" yaml:"risk_rating"`
	CountryTo    string      `json:"country_to" yaml:"country_to"`
}

// Status is the lifecycle state of an investigation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ToolInvocation records a single tool call made by an agent, in call order.
type ToolInvocation struct {
	Tool      string                 `json:"tool"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
	Result    string                 `json:"result,omitempty"`
	Latency   time.Duration          `json:"latency_ns"`
	CacheHit  bool                   `json:"cache_hit"`
	Error     string                 `json:"error,omitempty"`
}

// AgentResult is the immutable outcome of one agent run.
type AgentResult struct {
	Name       string           `json:"name"`
	Text       string           `json:"text"`
	ToolCalls  []ToolInvocation `json:"tool_calls,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Error      string           `json:"error,omitempty"`
}

// Failed reports whether the agent run ended with an error.
func (r *AgentResult) Failed() bool {
	return r.Error != ""
}

// InvestigationError is the structured terminal error attached to a failed
// investigation.
type InvestigationError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *InvestigationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Investigation is the root entity, owned exclusively by the orchestrator.
type Investigation struct {
	ID          string                  `json:"id"`
	CreatedAt   time.Time               `json:"created_at"`
	Input       TransactionInput        `json:"input"`
	Status      Status                  `json:"status"`
	Agents      map[string]*AgentResult `json:"agents,omitempty"`
	FinalReport string                  `json:"final_report,omitempty"`
	Error       *InvestigationError     `json:"error,omitempty"`
}

// NewID returns an investigation id sortable by creation time: a zero-padded
// unix-nano prefix followed by a uuid suffix for uniqueness.
func NewID() string {
	return fmt.Sprintf("%020d-%s", time.Now().UnixNano(), uuid.NewString()[:8])
}

// EventKind discriminates progress events on the bus.
type EventKind string

const (
	EventProgress      EventKind = "progress"
	EventAgentStart    EventKind = "agent_start"
	EventAgentComplete EventKind = "agent_complete"
	EventToolCall      EventKind = "tool_call"
	EventToolResult    EventKind = "tool_result"
	EventError         EventKind = "error"
	EventFinal         EventKind = "final"

	// EventBufferOverflow is inserted by the bus when retained events
	// were dropped for a late subscriber.
	EventBufferOverflow EventKind = "buffer_overflow"
)

// Terminal reports whether this kind ends the event stream.
func (k EventKind) Terminal() bool {
	return k == EventFinal || k == EventError
}

// ProgressEvent is a single entry in an investigation's ordered event stream.
// Sequence numbers are assigned by the orchestrator's sequencer and are dense
// per investigation; exactly one terminal event closes the stream.
type ProgressEvent struct {
	InvestigationID string         `json:"investigation_id"`
	Sequence        uint64         `json:"sequence"`
	Kind            EventKind      `json:"type"`
	Agent           string         `json:"agent,omitempty"`
	Message         string         `json:"message"`
	Progress        int            `json:"progress"`
	Payload         *Investigation `json:"result,omitempty"`
}
