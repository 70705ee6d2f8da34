package tools

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ovokpus/investigator/pkg/httpclient"
)

// ResearchSearchTool queries the arXiv Atom API for fraud-detection
// literature. Results feed the regulatory research agent's academic
// context.
type ResearchSearchTool struct {
	client  *httpclient.Client
	baseURL string
}

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title     string       `xml:"title"`
	Summary   string       `xml:"summary"`
	Published string       `xml:"published"`
	Authors   []atomAuthor `xml:"author"`
	Links     []atomLink   `xml:"link"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

type researchPaper struct {
	Title     string   `json:"title"`
	Abstract  string   `json:"abstract"`
	Authors   []string `json:"authors"`
	Published string   `json:"published,omitempty"`
	Link      string   `json:"link,omitempty"`
}

type researchResponse struct {
	Query  string          `json:"query"`
	Total  int             `json:"total"`
	Papers []researchPaper `json:"papers"`
}

func NewResearchSearchTool(client *httpclient.Client, baseURL string) *ResearchSearchTool {
	return &ResearchSearchTool{client: client, baseURL: baseURL}
}

func (t *ResearchSearchTool) GetName() string {
	return "search_fraud_research"
}

func (t *ResearchSearchTool) GetDescription() string {
	return "Search academic literature for fraud detection and anti-money-laundering research. Returns paper titles, abstracts, and authors."
}

func (t *ResearchSearchTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{
				Name:        "query",
				Type:        "string",
				Description: "Research topic to search for",
				Required:    true,
			},
			{
				Name:        "max_results",
				Type:        "number",
				Description: "Maximum number of papers",
				Required:    false,
				Default:     3,
			},
		},
	}
}

func (t *ResearchSearchTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	start := time.Now()

	query, _ := args["query"].(string)
	maxResults := getIntWithDefault(args, "max_results", 3)
	if maxResults <= 0 {
		maxResults = 3
	}

	params := url.Values{}
	params.Set("search_query", "all:"+query)
	params.Set("start", "0")
	params.Set("max_results", fmt.Sprintf("%d", maxResults))
	params.Set("sortBy", "relevance")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return errorResult(t.GetName(), fmt.Sprintf("failed to build request: %v", err), start), err
	}

	resp, err := t.client.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return errorResult(t.GetName(), fmt.Sprintf("unavailable: academic source returned HTTP %d", resp.StatusCode), start), nil
		}
		return errorResult(t.GetName(), fmt.Sprintf("unavailable: %v", err), start), nil
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return errorResult(t.GetName(), fmt.Sprintf("unavailable: %v", err), start), nil
	}

	var feed atomFeed
	if err := xml.Unmarshal(raw, &feed); err != nil {
		return errorResult(t.GetName(), fmt.Sprintf("unavailable: malformed feed: %v", err), start), nil
	}

	papers := make([]researchPaper, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		authors := make([]string, 0, len(entry.Authors))
		for _, a := range entry.Authors {
			authors = append(authors, strings.TrimSpace(a.Name))
		}

		link := ""
		for _, l := range entry.Links {
			if l.Rel == "alternate" || link == "" {
				link = l.Href
			}
		}

		papers = append(papers, researchPaper{
			Title:     strings.TrimSpace(entry.Title),
			Abstract:  strings.TrimSpace(entry.Summary),
			Authors:   authors,
			Published: entry.Published,
			Link:      link,
		})
	}

	content, err := json.MarshalIndent(researchResponse{
		Query:  query,
		Total:  len(papers),
		Papers: papers,
	}, "", "  ")
	if err != nil {
		return errorResult(t.GetName(), fmt.Sprintf("failed to encode results: %v", err), start), err
	}

	return ToolResult{
		Success:       true,
		Content:       string(content),
		ToolName:      t.GetName(),
		ExecutionTime: time.Since(start),
	}, nil
}

func errorResult(toolName, message string, start time.Time) ToolResult {
	return ToolResult{
		Success:       false,
		Error:         message,
		ToolName:      toolName,
		ExecutionTime: time.Since(start),
	}
}
