// Package orchestrator owns the investigation lifecycle: it fans three
// analysis agents out concurrently, feeds their findings to the report
// agent, serializes all progress through a per-investigation sequencer,
// and caches completed results under the canonical input hash.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ovokpus/investigator/pkg/agent"
	"github.com/ovokpus/investigator/pkg/bus"
	"github.com/ovokpus/investigator/pkg/cache"
	"github.com/ovokpus/investigator/pkg/config"
	"github.com/ovokpus/investigator/pkg/investigation"
	"github.com/ovokpus/investigator/pkg/llms"
	"github.com/ovokpus/investigator/pkg/observability"
)

// Orchestrator drives investigations end to end. Safe for concurrent
// use; each Start spawns one producer goroutine.
type Orchestrator struct {
	runtime  *agent.Runtime
	bus      *bus.Bus
	analysis []agent.Definition
	report   agent.Definition

	store        cache.Store
	resultTTL    time.Duration
	replayEvents bool

	timeouts config.TimeoutConfig
	logger   *slog.Logger
}

type Option func(*Orchestrator)

// WithCache enables result caching under the canonical input hash.
func WithCache(store cache.Store, ttl time.Duration, replayEvents bool) Option {
	return func(o *Orchestrator) {
		o.store = store
		if ttl > 0 {
			o.resultTTL = ttl
		}
		o.replayEvents = replayEvents
	}
}

func WithTimeouts(t config.TimeoutConfig) Option {
	return func(o *Orchestrator) { o.timeouts = t }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New builds an orchestrator over the given agent definitions. The
// report_generation definition is the synthesis agent; all others run
// concurrently in the analysis phase.
func New(runtime *agent.Runtime, b *bus.Bus, defs []agent.Definition, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		runtime:   runtime,
		bus:       b,
		resultTTL: cache.DefaultTTLs[cache.CategoryInvestigation],
		logger:    slog.Default(),
	}
	o.timeouts.SetDefaults()

	for _, def := range defs {
		if def.Name == agent.AgentReportGeneration {
			o.report = def
			continue
		}
		o.analysis = append(o.analysis, def)
	}
	if o.report.Name == "" {
		return nil, fmt.Errorf("orchestrator: missing %s definition", agent.AgentReportGeneration)
	}
	if len(o.analysis) == 0 {
		return nil, fmt.Errorf("orchestrator: no analysis agent definitions")
	}

	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Handle tracks one running investigation.
type Handle struct {
	ID   string
	done chan struct{}
	inv  *investigation.Investigation
}

// Done closes when the investigation reaches a terminal state.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Result blocks until the investigation is terminal and returns it.
func (h *Handle) Result() *investigation.Investigation {
	<-h.done
	return h.inv
}

// Start validates the input and launches the investigation. The
// caller's context governs cancellation: a client hang-up propagates to
// every agent and tool call within a second.
func (o *Orchestrator) Start(ctx context.Context, input investigation.TransactionInput) (*Handle, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	inv := &investigation.Investigation{
		ID:        investigation.NewID(),
		CreatedAt: time.Now().UTC(),
		Input:     input,
		Status:    investigation.StatusPending,
		Agents:    make(map[string]*investigation.AgentResult),
	}
	h := &Handle{ID: inv.ID, done: make(chan struct{}), inv: inv}

	go o.run(ctx, inv, h)
	return h, nil
}

// Run is the synchronous form of Start.
func (o *Orchestrator) Run(ctx context.Context, input investigation.TransactionInput) (*investigation.Investigation, error) {
	h, err := o.Start(ctx, input)
	if err != nil {
		return nil, err
	}
	return h.Result(), nil
}

// Subscribe attaches to an investigation's event stream.
func (o *Orchestrator) Subscribe(investigationID string) (<-chan investigation.ProgressEvent, func()) {
	return o.bus.Subscribe(investigationID)
}

func (o *Orchestrator) run(ctx context.Context, inv *investigation.Investigation, h *Handle) {
	defer close(h.done)

	start := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, o.timeouts.Investigation)
	defer cancel()

	tracer := observability.GetTracer("orchestrator")
	runCtx, span := tracer.Start(runCtx, observability.SpanInvestigation,
		trace.WithAttributes(
			attribute.String(observability.AttrInvestigationID, inv.ID),
		),
	)
	defer span.End()

	seq := newSequencer(o.bus, inv.ID)

	defer func() {
		span.SetAttributes(attribute.String("investigation.status", string(inv.Status)))
		if inv.Error != nil {
			span.SetStatus(codes.Error, inv.Error.Message)
			span.SetAttributes(attribute.String(observability.AttrErrorKind, inv.Error.Kind))
		} else {
			span.SetStatus(codes.Ok, string(inv.Status))
		}
		if metrics := observability.GetGlobalMetrics(); metrics != nil {
			metrics.RecordInvestigation(runCtx, string(inv.Status), time.Since(start))
		}
	}()

	if cached, ok := o.lookupResult(runCtx, inv.Input); ok {
		o.replay(seq, inv, cached)
		return
	}

	inv.Status = investigation.StatusRunning
	seq.progressEvent("initializing", 0)
	seq.progressEvent("collecting analysis", progressSetup)

	results := o.collectAnalysis(runCtx, inv, seq)
	for i, def := range o.analysis {
		inv.Agents[def.Name] = results[i]
	}

	if err := runCtx.Err(); err != nil {
		o.fail(seq, inv, string(llms.ErrorCancelled), "investigation cancelled: "+err.Error())
		return
	}
	if kind, all := allFailed(results); all {
		o.fail(seq, inv, string(kind), "all analysis agents failed: "+firstLine(results[0].Error))
		return
	}

	seq.progressEvent("generating report", progressReport)

	report := o.generateReport(runCtx, inv, results, seq)
	inv.Agents[o.report.Name] = report

	if err := runCtx.Err(); err != nil {
		o.fail(seq, inv, string(llms.ErrorCancelled), "investigation cancelled: "+err.Error())
		return
	}
	if report.Failed() {
		kind := agent.FailureKind(report)
		o.fail(seq, inv, string(kind), "report generation failed: "+firstLine(report.Error))
		return
	}

	inv.Status = investigation.StatusCompleted
	inv.FinalReport = report.Text

	o.storeResult(inv)
	seq.final(inv)
}

// collectAnalysis dispatches the analysis agents concurrently under the
// phase deadline. Individual failures are recorded, not propagated.
func (o *Orchestrator) collectAnalysis(ctx context.Context, inv *investigation.Investigation, seq *sequencer) []*investigation.AgentResult {
	actx, cancel := context.WithTimeout(ctx, o.timeouts.AnalysisPhase)
	defer cancel()

	task := []llms.Message{llms.UserMessage(agent.FormatTask(inv.Input))}
	results := make([]*investigation.AgentResult, len(o.analysis))
	snk := sink{seq}

	var completed int32
	g, gctx := errgroup.WithContext(actx)
	for i, def := range o.analysis {
		seq.agentStart(def.Name)

		g.Go(func() error {
			res := o.runtime.Run(gctx, def, task, snk)
			results[i] = res

			n := atomic.AddInt32(&completed, 1)
			msg := "analysis complete"
			if res.Failed() {
				msg = "agent failed: " + firstLine(res.Error)
			}
			seq.agentComplete(def.Name, msg, progressSetup+progressPerAgent*int(n))
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// generateReport seeds the synthesis agent with each analyst's findings
// as user messages under section headers; failed analysts contribute a
// sanitized one-line failure note instead.
func (o *Orchestrator) generateReport(ctx context.Context, inv *investigation.Investigation, results []*investigation.AgentResult, seq *sequencer) *investigation.AgentResult {
	rctx, cancel := context.WithTimeout(ctx, o.timeouts.ReportPhase)
	defer cancel()

	seed := make([]llms.Message, 0, len(results)+1)
	seed = append(seed, llms.UserMessage(agent.FormatTask(inv.Input)))
	for i, def := range o.analysis {
		res := results[i]
		header := fmt.Sprintf("## Findings from %s", def.Name)
		if res.Failed() {
			seed = append(seed, llms.UserMessage(fmt.Sprintf(
				"%s\n\nagent %s failed: %s", header, def.Name, firstLine(res.Error))))
			continue
		}
		seed = append(seed, llms.UserMessage(header+"\n\n"+res.Text))
	}

	seq.agentStart(o.report.Name)
	report := o.runtime.Run(rctx, o.report, seed, sink{seq})

	msg := "report complete"
	if report.Failed() {
		msg = "agent failed: " + firstLine(report.Error)
	}
	seq.agentComplete(o.report.Name, msg, progressReport)

	return report
}

func (o *Orchestrator) fail(seq *sequencer, inv *investigation.Investigation, kind, message string) {
	inv.Status = investigation.StatusFailed
	inv.Error = &investigation.InvestigationError{Kind: kind, Message: message}

	o.logger.Warn("investigation failed",
		"investigation_id", inv.ID,
		"kind", kind,
		"message", message)

	seq.fail(inv, message)
}

// resultKey canonicalizes the transaction input. Two submissions with
// equal fields share a key regardless of formatting.
func resultKey(input investigation.TransactionInput) string {
	return cache.Key(cache.CategoryInvestigation, map[string]string{
		"amount":        strconv.FormatFloat(input.Amount, 'f', 2, 64),
		"currency":      strings.ToUpper(input.Currency),
		"description":   input.Description,
		"customer_name": input.CustomerName,
		"account_type":  string(input.AccountType),
		"risk_rating":   string(input.RiskRating),
		"country_to":    input.CountryTo,
	})
}

func (o *Orchestrator) lookupResult(ctx context.Context, input investigation.TransactionInput) (*investigation.Investigation, bool) {
	if o.store == nil {
		return nil, false
	}
	raw, ok := o.store.Get(ctx, resultKey(input))
	if !ok {
		return nil, false
	}
	var cached investigation.Investigation
	if err := json.Unmarshal(raw, &cached); err != nil {
		o.logger.Warn("discarding undecodable cached investigation", "error", err)
		return nil, false
	}
	if cached.Status != investigation.StatusCompleted {
		return nil, false
	}
	return &cached, true
}

// storeResult caches a completed investigation. Failed investigations
// are never cached. The write is detached from the run context so a
// client hang-up after completion cannot lose the result.
func (o *Orchestrator) storeResult(inv *investigation.Investigation) {
	if o.store == nil {
		return
	}
	raw, err := json.Marshal(inv)
	if err != nil {
		o.logger.Warn("failed to encode investigation for cache", "error", err)
		return
	}
	o.store.Set(context.Background(), resultKey(inv.Input), raw, o.resultTTL)
}

// replay serves a cached result as a fresh investigation: new id and
// timestamps, identical report and agent outputs. The condensed stream
// is one progress event then Final; replayEvents adds synthetic
// per-agent events for stream consumers that render a timeline.
func (o *Orchestrator) replay(seq *sequencer, inv *investigation.Investigation, cached *investigation.Investigation) {
	inv.Status = investigation.StatusCompleted
	inv.Agents = cached.Agents
	inv.FinalReport = cached.FinalReport

	seq.progressEvent("replaying cached investigation", 0)
	if o.replayEvents {
		progress := progressSetup
		for _, def := range o.analysis {
			if res, ok := inv.Agents[def.Name]; ok && res != nil {
				seq.agentStart(def.Name)
				progress += progressPerAgent
				seq.agentComplete(def.Name, "analysis complete (cached)", progress)
			}
		}
		if _, ok := inv.Agents[o.report.Name]; ok {
			seq.agentStart(o.report.Name)
			seq.agentComplete(o.report.Name, "report complete (cached)", progressReport)
		}
	}
	seq.final(inv)
}

// allFailed reports whether every analysis agent failed, and with which
// kind. Mixed kinds collapse to transient.
func allFailed(results []*investigation.AgentResult) (llms.ErrorKind, bool) {
	if len(results) == 0 {
		return "", false
	}
	kind := llms.ErrorKind("")
	for i, r := range results {
		if r == nil || !r.Failed() {
			return "", false
		}
		k := agent.FailureKind(r)
		if i == 0 {
			kind = k
		} else if k != kind {
			kind = llms.ErrorTransient
		}
	}
	return kind, true
}

// firstLine sanitizes an error for prompts and events: first line only,
// bounded length.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
