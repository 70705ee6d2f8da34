package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovokpus/investigator/pkg/httpclient"
)

const arxivFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <title>Graph Neural Networks for Money Laundering Detection</title>
    <summary>We study transaction graphs for AML detection.</summary>
    <published>2024-03-01T00:00:00Z</published>
    <author><name>A. Researcher</name></author>
    <author><name>B. Scientist</name></author>
    <link rel="alternate" href="http://example.org/abs/1234"/>
  </entry>
</feed>`

func TestResearchToolParsesAtomFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("search_query"), "money laundering")
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(arxivFeed))
	}))
	defer srv.Close()

	tool := NewResearchSearchTool(httpclient.New(), srv.URL)
	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"query":       "money laundering detection",
		"max_results": 3.0,
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	var out researchResponse
	require.NoError(t, json.Unmarshal([]byte(result.Content), &out))
	require.Len(t, out.Papers, 1)
	assert.Equal(t, "Graph Neural Networks for Money Laundering Detection", out.Papers[0].Title)
	assert.Equal(t, []string{"A. Researcher", "B. Scientist"}, out.Papers[0].Authors)
	assert.Equal(t, "http://example.org/abs/1234", out.Papers[0].Link)
}

func TestResearchToolDegradesOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tool := NewResearchSearchTool(httpclient.New(httpclient.WithMaxRetries(0)), srv.URL)
	result, err := tool.Execute(context.Background(), map[string]interface{}{"query": "x"})
	require.NoError(t, err, "provider outages degrade, they do not error")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "unavailable")
}

func TestWebIntelToolSummarizesHits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)

		var req webIntelRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-key", req.APIKey)

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"answer": "The entity appears in two sanction lists.",
			"results": []map[string]interface{}{
				{"title": "OFAC notice", "url": "http://example.org/1", "content": "listed entity", "score": 0.9},
			},
		})
	}))
	defer srv.Close()

	tool := NewWebIntelTool(httpclient.New(), srv.URL, "test-key")
	result, err := tool.Execute(context.Background(), map[string]interface{}{"query": "Rapid Industries LLC"})
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Contains(t, result.Content, "sanction lists")
	assert.Contains(t, result.Content, "OFAC notice")
}

func TestWebIntelToolWithoutCredentials(t *testing.T) {
	tool := NewWebIntelTool(httpclient.New(), "http://unused", "")
	result, err := tool.Execute(context.Background(), map[string]interface{}{"query": "x"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "unavailable: no credentials", result.Error)
}

func TestExchangeRateToolSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/pair/USD/EUR")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"result":               "success",
			"conversion_rate":      0.91,
			"time_last_update_utc": "Mon, 25 Aug 2025 00:00:01 +0000",
		})
	}))
	defer srv.Close()

	tool := NewExchangeRateTool(httpclient.New(), srv.URL, "key-123")
	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"from_currency": "usd",
		"to_currency":   "eur",
		"amount":        100.0,
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	var out exchangeRateResponse
	require.NoError(t, json.Unmarshal([]byte(result.Content), &out))
	assert.Equal(t, 0.91, out.Rate)
	assert.InDelta(t, 91.0, out.Converted, 0.001)
	assert.NotEmpty(t, out.Timestamp)
}

func TestExchangeRateToolWithoutCredentials(t *testing.T) {
	tool := NewExchangeRateTool(httpclient.New(), "http://unused", "")
	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"from_currency": "USD",
		"to_currency":   "EUR",
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "unavailable: no credentials", result.Error)
}
