package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ovokpus/investigator/pkg/search"
)

const maxExcerptLen = 1500

// RegulatorySearchTool exposes the hybrid retrieval store to agents.
// Results are cached inside the store, keyed by query and k.
type RegulatorySearchTool struct {
	store *search.Store
}

type regulatoryExcerpt struct {
	ID              string  `json:"id"`
	Excerpt         string  `json:"excerpt"`
	Score           float64 `json:"score"`
	Method          string  `json:"method"`
	ContentCategory string  `json:"content_category,omitempty"`
	Jurisdiction    string  `json:"jurisdiction,omitempty"`
	SourceAgency    string  `json:"source_agency,omitempty"`
}

type regulatoryResponse struct {
	Query   string              `json:"query"`
	Total   int                 `json:"total"`
	Results []regulatoryExcerpt `json:"results"`
	Note    string              `json:"note,omitempty"`
}

func NewRegulatorySearchTool(store *search.Store) *RegulatorySearchTool {
	return &RegulatorySearchTool{store: store}
}

func (t *RegulatorySearchTool) GetName() string {
	return "search_regulatory_documents"
}

func (t *RegulatorySearchTool) GetDescription() string {
	return "Search indexed regulatory documents (FinCEN, FFIEC, FATF guidance) for requirements relevant to a transaction. Returns ranked excerpts with jurisdiction and source agency metadata."
}

func (t *RegulatorySearchTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{
				Name:        "query",
				Type:        "string",
				Description: "Search query describing the regulatory topic",
				Required:    true,
			},
			{
				Name:        "max_results",
				Type:        "number",
				Description: "Maximum number of document excerpts",
				Required:    false,
				Default:     5,
			},
		},
	}
}

func (t *RegulatorySearchTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	start := time.Now()

	query, _ := args["query"].(string)
	maxResults := getIntWithDefault(args, "max_results", 5)
	if maxResults <= 0 {
		maxResults = 5
	}

	hits, err := t.store.Search(ctx, query, maxResults)
	if err != nil {
		var re *search.RetrievalError
		if errors.As(err, &re) {
			// degraded retrieval never aborts the investigation
			content, _ := json.MarshalIndent(regulatoryResponse{
				Query:   query,
				Results: []regulatoryExcerpt{},
				Note:    "retrieval temporarily degraded; no documents available",
			}, "", "  ")
			return ToolResult{
				Success:       false,
				Content:       string(content),
				Error:         err.Error(),
				ToolName:      t.GetName(),
				ExecutionTime: time.Since(start),
			}, nil
		}
		return ToolResult{
			Success:       false,
			Error:         err.Error(),
			ToolName:      t.GetName(),
			ExecutionTime: time.Since(start),
		}, err
	}

	resp := regulatoryResponse{
		Query:   query,
		Total:   len(hits),
		Results: make([]regulatoryExcerpt, 0, len(hits)),
	}
	for _, hit := range hits {
		text := hit.Chunk.Text
		if len(text) > maxExcerptLen {
			text = text[:maxExcerptLen]
		}
		resp.Results = append(resp.Results, regulatoryExcerpt{
			ID:              hit.Chunk.ID,
			Excerpt:         text,
			Score:           hit.Score,
			Method:          string(hit.Method),
			ContentCategory: hit.Chunk.Metadata["content_category"],
			Jurisdiction:    hit.Chunk.Metadata["jurisdiction"],
			SourceAgency:    hit.Chunk.Metadata["source_agency"],
		})
	}
	if len(hits) == 0 {
		resp.Note = "no matching regulatory documents"
	}

	content, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return ToolResult{
			Success:       false,
			Error:         fmt.Sprintf("failed to encode results: %v", err),
			ToolName:      t.GetName(),
			ExecutionTime: time.Since(start),
		}, err
	}

	return ToolResult{
		Success:       true,
		Content:       string(content),
		ToolName:      t.GetName(),
		ExecutionTime: time.Since(start),
	}, nil
}
