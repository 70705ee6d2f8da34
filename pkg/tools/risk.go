package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ovokpus/investigator/pkg/config"
)

// RiskCalculatorTool is a pure calculator: it scores a transaction in
// [0, 1] from the configured weight tables. Same input, same output;
// it never touches the network or the cache.
type RiskCalculatorTool struct {
	cfg config.RiskConfig
}

type riskFactor struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
	Detail string  `json:"detail"`
}

type riskAssessment struct {
	RiskScore float64      `json:"risk_score"`
	RiskLevel string       `json:"risk_level"`
	Factors   []riskFactor `json:"factors"`
}

func NewRiskCalculatorTool(cfg config.RiskConfig) *RiskCalculatorTool {
	return &RiskCalculatorTool{cfg: cfg}
}

func (t *RiskCalculatorTool) GetName() string {
	return "calculate_transaction_risk"
}

func (t *RiskCalculatorTool) GetDescription() string {
	return "Calculate a deterministic risk score between 0 and 1 for a transaction from its amount, destination country, customer risk rating, and account type. Returns the score with a per-factor breakdown."
}

func (t *RiskCalculatorTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{
				Name:        "amount",
				Type:        "number",
				Description: "Transaction amount in USD",
				Required:    true,
			},
			{
				Name:        "currency",
				Type:        "string",
				Description: "Transaction currency code",
				Required:    false,
			},
			{
				Name:        "country_to",
				Type:        "string",
				Description: "Destination country",
				Required:    false,
			},
			{
				Name:        "risk_rating",
				Type:        "string",
				Description: "Customer risk rating (Low, Medium, High, Critical)",
				Required:    false,
			},
			{
				Name:        "account_type",
				Type:        "string",
				Description: "Account type (Personal, Business, Corporate, ...)",
				Required:    false,
			},
		},
	}
}

func (t *RiskCalculatorTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	start := time.Now()

	amount, ok := getFloat(args, "amount")
	if !ok || amount < 0 {
		err := fmt.Errorf("amount must be a non-negative number")
		return errorResult(t.GetName(), err.Error(), start), err
	}

	assessment := t.assess(
		amount,
		getStringWithDefault(args, "country_to", ""),
		getStringWithDefault(args, "risk_rating", ""),
		getStringWithDefault(args, "account_type", ""),
	)

	content, err := json.MarshalIndent(assessment, "", "  ")
	if err != nil {
		return errorResult(t.GetName(), fmt.Sprintf("failed to encode assessment: %v", err), start), err
	}

	return ToolResult{
		Success:       true,
		Content:       string(content),
		ToolName:      t.GetName(),
		ExecutionTime: time.Since(start),
	}, nil
}

func (t *RiskCalculatorTool) assess(amount float64, countryTo, riskRating, accountType string) riskAssessment {
	var factors []riskFactor
	score := 0.0

	// highest crossed amount band wins
	bands := make([]config.AmountBand, len(t.cfg.AmountBands))
	copy(bands, t.cfg.AmountBands)
	sort.Slice(bands, func(i, j int) bool { return bands[i].Threshold > bands[j].Threshold })
	for _, band := range bands {
		if amount >= band.Threshold {
			score += band.Weight
			factors = append(factors, riskFactor{
				Name:   "amount",
				Weight: band.Weight,
				Detail: fmt.Sprintf("amount %.2f meets the %.0f threshold", amount, band.Threshold),
			})
			break
		}
	}

	// just under the reporting ceiling reads as deliberate structuring
	lower := t.cfg.StructuringCeiling - t.cfg.StructuringMargin
	if amount >= lower && amount < t.cfg.StructuringCeiling {
		score += t.cfg.StructuringWeight
		factors = append(factors, riskFactor{
			Name:   "structuring",
			Weight: t.cfg.StructuringWeight,
			Detail: fmt.Sprintf("amount %.2f sits within %.0f of the %.0f reporting threshold", amount, t.cfg.StructuringMargin, t.cfg.StructuringCeiling),
		})
	}

	if countryTo != "" {
		needle := strings.ToLower(strings.TrimSpace(countryTo))
		// deterministic: scan in sorted key order, keep the heaviest match
		countries := make([]string, 0, len(t.cfg.CountryWeights))
		for country := range t.cfg.CountryWeights {
			countries = append(countries, country)
		}
		sort.Strings(countries)

		matched, matchedWeight := "", 0.0
		for _, country := range countries {
			if strings.Contains(needle, country) && t.cfg.CountryWeights[country] > matchedWeight {
				matched = country
				matchedWeight = t.cfg.CountryWeights[country]
			}
		}
		if matched != "" {
			score += matchedWeight
			factors = append(factors, riskFactor{
				Name:   "jurisdiction",
				Weight: matchedWeight,
				Detail: fmt.Sprintf("destination matches elevated-risk jurisdiction %q", matched),
			})
		}
	}

	if riskRating != "" {
		if weight, ok := t.cfg.RiskRatingWeights[strings.ToLower(riskRating)]; ok && weight > 0 {
			score += weight
			factors = append(factors, riskFactor{
				Name:   "customer_risk_rating",
				Weight: weight,
				Detail: fmt.Sprintf("customer is rated %s", riskRating),
			})
		}
	}

	if accountType != "" {
		if weight, ok := t.cfg.AccountTypeWeights[strings.ToLower(accountType)]; ok && weight > 0 {
			score += weight
			factors = append(factors, riskFactor{
				Name:   "account_type",
				Weight: weight,
				Detail: fmt.Sprintf("account type %s carries extra weight", accountType),
			})
		}
	}

	if score > 1 {
		score = 1
	}

	return riskAssessment{
		RiskScore: score,
		RiskLevel: riskLevel(score),
		Factors:   factors,
	}
}

func riskLevel(score float64) string {
	switch {
	case score < 0.25:
		return "low"
	case score < 0.5:
		return "medium"
	case score < 0.75:
		return "high"
	default:
		return "critical"
	}
}
