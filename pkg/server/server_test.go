package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovokpus/investigator/pkg/agent"
	"github.com/ovokpus/investigator/pkg/bus"
	"github.com/ovokpus/investigator/pkg/cache"
	"github.com/ovokpus/investigator/pkg/config"
	"github.com/ovokpus/investigator/pkg/httpclient"
	"github.com/ovokpus/investigator/pkg/investigation"
	"github.com/ovokpus/investigator/pkg/llms"
	"github.com/ovokpus/investigator/pkg/orchestrator"
	"github.com/ovokpus/investigator/pkg/search"
	"github.com/ovokpus/investigator/pkg/tools"
)

// fakeGateway answers every agent with a fixed text, or fails every
// call with err when set.
type fakeGateway struct {
	text string
	err  error
}

func (g *fakeGateway) Complete(ctx context.Context, messages []llms.Message, defs []llms.ToolDefinition, maxTokens int) (*llms.AssistantMessage, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &llms.AssistantMessage{Text: g.text, Tokens: 5}, nil
}

func (g *fakeGateway) ModelName() string { return "fake" }

func corpusStore(t *testing.T) *search.Store {
	t.Helper()
	idx := search.NewBM25Index()
	require.NoError(t, idx.Add(search.Chunk{
		ID:   "ctr-1",
		Text: "Currency transaction reports are required for cash transactions over ten thousand dollars",
		Metadata: map[string]string{
			"content_category": "ctr_guidance",
			"jurisdiction":     "US",
		},
	}))
	return search.NewStore(idx, nil, search.MethodBM25)
}

func newTestServer(t *testing.T, gw llms.Gateway) *Server {
	t.Helper()

	cfg := config.Default()
	registry := tools.NewToolRegistry()
	require.NoError(t, registry.RegisterTool(tools.NewRiskCalculatorTool(cfg.Risk)))
	require.NoError(t, registry.RegisterTool(tools.NewComplianceCheckTool(cfg.Compliance)))
	require.NoError(t, registry.RegisterTool(tools.NewExchangeRateTool(httpclient.New(), "http://unused", "")))

	rt := agent.NewRuntime(gw, registry)
	o, err := orchestrator.New(rt, bus.New(bus.WithStrict(true)), agent.Definitions(0))
	require.NoError(t, err)

	return New(cfg.Server, Deps{
		Orchestrator: o,
		Search:       corpusStore(t),
		Cache:        cache.NewMemoryStore(),
		Registry:     registry,
		LLMReady:     func() bool { return true },
	})
}

func investigateBody(t *testing.T) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(investigation.TransactionInput{
		Amount:       9500,
		Currency:     "USD",
		Description:  "consulting services",
		CustomerName: "Rapid Industries LLC",
		AccountType:  investigation.AccountBusiness,
		RiskRating:   investigation.RiskLow,
		CountryTo:    "United States",
	})
	require.NoError(t, err)
	return bytes.NewReader(body)
}

func TestInvestigateReturnsCompletedInvestigation(t *testing.T) {
	srv := newTestServer(t, &fakeGateway{text: "analysis text"})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/investigate", investigateBody(t))
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var inv investigation.Investigation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inv))
	assert.Equal(t, investigation.StatusCompleted, inv.Status)
	assert.Equal(t, "analysis text", inv.FinalReport)
	assert.Len(t, inv.Agents, 4)
}

func TestInvestigateRejectsInvalidInput(t *testing.T) {
	srv := newTestServer(t, &fakeGateway{text: "x"})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/investigate", strings.NewReader(`{"amount": -5}`))
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvestigateMapsContextOverflowTo413(t *testing.T) {
	srv := newTestServer(t, &fakeGateway{
		err: &llms.GatewayError{Kind: llms.ErrorContextOverflow, Message: "prompt exceeds context limit"},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/investigate", investigateBody(t))
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	var inv investigation.Investigation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inv))
	assert.Equal(t, investigation.StatusFailed, inv.Status)
	require.NotNil(t, inv.Error)
	assert.Equal(t, "context_overflow", inv.Error.Kind)
}

func TestInvestigateMapsProviderOutageTo503(t *testing.T) {
	srv := newTestServer(t, &fakeGateway{
		err: &llms.GatewayError{Kind: llms.ErrorTransient, Message: "upstream 502"},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/investigate", investigateBody(t))
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestInvestigateMapsRateLimitTo429(t *testing.T) {
	srv := newTestServer(t, &fakeGateway{
		err: &llms.GatewayError{Kind: llms.ErrorTransient, Message: "rate limit exceeded (429)"},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/investigate", investigateBody(t))
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestInvestigateStreamEmitsSSE(t *testing.T) {
	srv := newTestServer(t, &fakeGateway{text: "streamed analysis"})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/investigate/stream", investigateBody(t))
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	var events []investigation.ProgressEvent
	scanner := bufio.NewScanner(rec.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev investigation.ProgressEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}

	require.NotEmpty(t, events)
	for i, ev := range events {
		assert.Equal(t, uint64(i+1), ev.Sequence)
	}
	last := events[len(events)-1]
	assert.Equal(t, investigation.EventFinal, last.Kind)
	assert.Equal(t, 100, last.Progress)
	require.NotNil(t, last.Payload)
	assert.Equal(t, "streamed analysis", last.Payload.FinalReport)
}

func TestSearchEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeGateway{text: "x"})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/search?query=currency+transaction&max_results=3", nil)
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Query   string              `json:"query"`
		Results []searchHitResponse `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Results, 1)
	assert.Equal(t, "ctr-1", out.Results[0].ID)
	assert.Equal(t, "bm25", out.Results[0].Method)
}

func TestSearchRequiresQuery(t *testing.T) {
	srv := newTestServer(t, &fakeGateway{text: "x"})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExchangeRateWrapperDegradesWithoutCredentials(t *testing.T) {
	srv := newTestServer(t, &fakeGateway{text: "x"})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/exchange-rate?from=USD&to=EUR", nil)
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var result tools.ToolResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "unavailable")
}

func TestHealthReportsReadiness(t *testing.T) {
	srv := newTestServer(t, &fakeGateway{text: "x"})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var health healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.True(t, health.CacheAvailable)
	assert.True(t, health.VectorStoreInitialized)
	assert.True(t, health.LLMAvailable)
	assert.Equal(t, 1, health.CorpusChunks)
}

func TestCacheStatsAndClear(t *testing.T) {
	srv := newTestServer(t, &fakeGateway{text: "x"})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/cache/stats", nil)
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/cache/clear/vector_search", nil)
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/cache/clear/nonsense", nil)
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/cache/clear", nil)
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpointServes(t *testing.T) {
	srv := newTestServer(t, &fakeGateway{text: "x"})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
