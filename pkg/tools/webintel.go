package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ovokpus/investigator/pkg/httpclient"
)

// WebIntelTool queries a web-search provider (Tavily-style JSON POST)
// for open-source intelligence on the transaction parties.
type WebIntelTool struct {
	client *httpclient.Client
	url    string
	apiKey string
}

type webIntelRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type webIntelProviderResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

func NewWebIntelTool(client *httpclient.Client, url, apiKey string) *WebIntelTool {
	return &WebIntelTool{client: client, url: url, apiKey: apiKey}
}

func (t *WebIntelTool) GetName() string {
	return "search_web_intelligence"
}

func (t *WebIntelTool) GetDescription() string {
	return "Search the web for current intelligence on entities, jurisdictions, or fraud typologies mentioned in the transaction. Returns a textual summary of the top hits."
}

func (t *WebIntelTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{
				Name:        "query",
				Type:        "string",
				Description: "Web search query",
				Required:    true,
			},
			{
				Name:        "max_results",
				Type:        "number",
				Description: "Maximum number of hits to summarize",
				Required:    false,
				Default:     5,
			},
		},
	}
}

func (t *WebIntelTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	start := time.Now()

	if t.apiKey == "" {
		return errorResult(t.GetName(), "unavailable: no credentials", start), nil
	}

	query, _ := args["query"].(string)
	maxResults := getIntWithDefault(args, "max_results", 5)
	if maxResults <= 0 {
		maxResults = 5
	}

	body, err := json.Marshal(webIntelRequest{
		APIKey:     t.apiKey,
		Query:      query,
		MaxResults: maxResults,
	})
	if err != nil {
		return errorResult(t.GetName(), fmt.Sprintf("failed to build request: %v", err), start), err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return errorResult(t.GetName(), fmt.Sprintf("failed to build request: %v", err), start), err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return errorResult(t.GetName(), fmt.Sprintf("unavailable: web search provider returned HTTP %d", resp.StatusCode), start), nil
		}
		return errorResult(t.GetName(), fmt.Sprintf("unavailable: %v", err), start), nil
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return errorResult(t.GetName(), fmt.Sprintf("unavailable: %v", err), start), nil
	}

	var parsed webIntelProviderResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return errorResult(t.GetName(), fmt.Sprintf("unavailable: malformed response: %v", err), start), nil
	}

	var sb strings.Builder
	if parsed.Answer != "" {
		sb.WriteString("Summary: ")
		sb.WriteString(parsed.Answer)
		sb.WriteString("\n\n")
	}
	for i, r := range parsed.Results {
		if i >= maxResults {
			break
		}
		fmt.Fprintf(&sb, "%d. %s\n%s\n(%s)\n\n", i+1, r.Title, r.Content, r.URL)
	}
	if sb.Len() == 0 {
		sb.WriteString("No web intelligence found for this query.")
	}

	return ToolResult{
		Success:       true,
		Content:       strings.TrimSpace(sb.String()),
		ToolName:      t.GetName(),
		ExecutionTime: time.Since(start),
	}, nil
}
