package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ovokpus/investigator/pkg/httpclient"
)

// ExchangeRateTool fetches a single conversion rate. Without an API key
// it degrades to "unavailable: no credentials" so the evidence agent
// can still complete.
type ExchangeRateTool struct {
	client  *httpclient.Client
	baseURL string
	apiKey  string
}

type exchangeProviderResponse struct {
	Result         string  `json:"result"`
	ConversionRate float64 `json:"conversion_rate"`
	TimeLastUpdate string  `json:"time_last_update_utc"`
	ErrorType      string  `json:"error-type"`
}

type exchangeRateResponse struct {
	From      string  `json:"from_currency"`
	To        string  `json:"to_currency"`
	Rate      float64 `json:"rate"`
	Timestamp string  `json:"timestamp"`
	Converted float64 `json:"converted_amount,omitempty"`
	Amount    float64 `json:"amount,omitempty"`
}

func NewExchangeRateTool(client *httpclient.Client, baseURL, apiKey string) *ExchangeRateTool {
	return &ExchangeRateTool{client: client, baseURL: baseURL, apiKey: apiKey}
}

func (t *ExchangeRateTool) GetName() string {
	return "get_exchange_rate_data"
}

func (t *ExchangeRateTool) GetDescription() string {
	return "Get the current exchange rate between two currencies, with the rate timestamp and optional converted amount. Degrades gracefully when no provider credentials are configured."
}

func (t *ExchangeRateTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{
				Name:        "from_currency",
				Type:        "string",
				Description: "ISO 4217 source currency code",
				Required:    true,
			},
			{
				Name:        "to_currency",
				Type:        "string",
				Description: "ISO 4217 target currency code",
				Required:    true,
			},
			{
				Name:        "amount",
				Type:        "number",
				Description: "Optional amount to convert",
				Required:    false,
			},
		},
	}
}

func (t *ExchangeRateTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	start := time.Now()

	if t.apiKey == "" {
		return errorResult(t.GetName(), "unavailable: no credentials", start), nil
	}

	from := strings.ToUpper(getStringWithDefault(args, "from_currency", ""))
	to := strings.ToUpper(getStringWithDefault(args, "to_currency", ""))

	url := fmt.Sprintf("%s/%s/pair/%s/%s", t.baseURL, t.apiKey, from, to)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errorResult(t.GetName(), fmt.Sprintf("failed to build request: %v", err), start), err
	}

	resp, err := t.client.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return errorResult(t.GetName(), fmt.Sprintf("unavailable: exchange rate provider returned HTTP %d", resp.StatusCode), start), nil
		}
		return errorResult(t.GetName(), fmt.Sprintf("unavailable: %v", err), start), nil
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errorResult(t.GetName(), fmt.Sprintf("unavailable: %v", err), start), nil
	}

	var parsed exchangeProviderResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return errorResult(t.GetName(), fmt.Sprintf("unavailable: malformed response: %v", err), start), nil
	}
	if parsed.Result != "success" {
		return errorResult(t.GetName(), fmt.Sprintf("unavailable: %s", parsed.ErrorType), start), nil
	}

	out := exchangeRateResponse{
		From:      from,
		To:        to,
		Rate:      parsed.ConversionRate,
		Timestamp: parsed.TimeLastUpdate,
	}
	if amount, ok := getFloat(args, "amount"); ok && amount > 0 {
		out.Amount = amount
		out.Converted = amount * parsed.ConversionRate
	}

	content, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return errorResult(t.GetName(), fmt.Sprintf("failed to encode result: %v", err), start), err
	}

	return ToolResult{
		Success:       true,
		Content:       string(content),
		ToolName:      t.GetName(),
		ExecutionTime: time.Since(start),
	}, nil
}
