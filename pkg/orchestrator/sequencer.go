package orchestrator

import (
	"sync"

	"github.com/ovokpus/investigator/pkg/bus"
	"github.com/ovokpus/investigator/pkg/investigation"
)

// Progress split across the investigation lifecycle: setup, the three
// analysis agents, and report generation.
const (
	progressSetup    = 20
	progressPerAgent = 20
	progressReport   = 80
	progressDone     = 100
)

// sequencer is the single serialization point between concurrent agents
// and the bus. It assigns dense sequence numbers and keeps the progress
// figure monotone, so interleaved agent events can never rewind the
// progress bar.
type sequencer struct {
	mu       sync.Mutex
	bus      *bus.Bus
	id       string
	seq      uint64
	progress int
	terminal bool
}

func newSequencer(b *bus.Bus, investigationID string) *sequencer {
	return &sequencer{bus: b, id: investigationID}
}

// emit publishes one event with the next sequence number. progress < 0
// keeps the current figure. Events after the terminal event are
// silently ignored; the terminal event itself must go through final or
// fail.
func (s *sequencer) emit(kind investigation.EventKind, agentName, message string, progress int, payload *investigation.Investigation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminal {
		return
	}
	if progress > s.progress {
		s.progress = progress
	}
	s.seq++

	if kind.Terminal() {
		s.terminal = true
	}

	s.bus.Publish(investigation.ProgressEvent{
		InvestigationID: s.id,
		Sequence:        s.seq,
		Kind:            kind,
		Agent:           agentName,
		Message:         message,
		Progress:        s.progress,
		Payload:         payload,
	})
}

func (s *sequencer) progressEvent(message string, progress int) {
	s.emit(investigation.EventProgress, "", message, progress, nil)
}

func (s *sequencer) agentStart(agentName string) {
	s.emit(investigation.EventAgentStart, agentName, "agent started", -1, nil)
}

func (s *sequencer) agentComplete(agentName, message string, progress int) {
	s.emit(investigation.EventAgentComplete, agentName, message, progress, nil)
}

func (s *sequencer) final(inv *investigation.Investigation) {
	s.emit(investigation.EventFinal, "", "investigation completed", progressDone, inv)
}

func (s *sequencer) fail(inv *investigation.Investigation, message string) {
	s.emit(investigation.EventError, "", message, -1, inv)
}

// sink adapts the sequencer to the agent runtime's progress interface.
type sink struct {
	seq *sequencer
}

func (s sink) ToolCall(agentName, tool string, args map[string]interface{}) {
	s.seq.emit(investigation.EventToolCall, agentName, "calling "+tool, -1, nil)
}

func (s sink) ToolResult(agentName string, inv investigation.ToolInvocation) {
	msg := inv.Tool + " completed"
	if inv.Error != "" {
		msg = inv.Tool + " failed: " + inv.Error
	}
	s.seq.emit(investigation.EventToolResult, agentName, msg, -1, nil)
}
