package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ovokpus/investigator/pkg/config"
)

// ComplianceCheckTool is a pure calculator that maps a transaction onto
// the configured filing threshold table: CTR, SAR, and the structuring
// window just below the CTR threshold. Suspicion can be passed
// explicitly or derived from the description and destination country.
type ComplianceCheckTool struct {
	cfg config.ComplianceConfig
}

const (
	citationCTR         = "31 CFR 1010.311"
	citationSAR         = "31 CFR 1020.320"
	citationStructuring = "31 USC 5324"
)

// descriptions containing these terms count as suspicion indicators
var suspicionKeywords = []string{
	"offshore",
	"shell",
	"layering",
	"structuring",
	"unverified",
	"anonymous",
}

type complianceRequirement struct {
	Filing       string  `json:"filing_type"`
	Required     bool    `json:"required"`
	Threshold    float64 `json:"threshold,omitempty"`
	DeadlineDays int     `json:"deadline_days,omitempty"`
	Citation     string  `json:"citation,omitempty"`
	Reason       string  `json:"reason"`
}

type complianceCheck struct {
	Amount           float64                 `json:"amount"`
	Requirements     []complianceRequirement `json:"requirements"`
	StructuringAlert bool                    `json:"structuring_alert"`
	Notes            []string                `json:"notes,omitempty"`
}

func NewComplianceCheckTool(cfg config.ComplianceConfig) *ComplianceCheckTool {
	return &ComplianceCheckTool{cfg: cfg}
}

func (t *ComplianceCheckTool) GetName() string {
	return "check_compliance_requirements"
}

func (t *ComplianceCheckTool) GetDescription() string {
	return "Check which regulatory filings a transaction triggers: Currency Transaction Report (CTR), Suspicious Activity Report (SAR), and structuring indicators near the CTR threshold. Each filing carries its threshold, deadline, and regulatory citation."
}

func (t *ComplianceCheckTool) GetInfo() ToolInfo {
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
				Name:        "description",
				Type:        "string",
				Description: "Free-text transaction description",
				Required:    false,
			},
			{
				Name:        "suspicious",
				Type:        "boolean",
				Description: "Whether suspicion indicators are already established",
				Required:    false,
			},
		},
	}
}

func (t *ComplianceCheckTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	start := time.Now()

	amount, ok := getFloat(args, "amount")
	if !ok || amount < 0 {
		err := fmt.Errorf("amount must be a non-negative number")
		return errorResult(t.GetName(), err.Error(), start), err
	}

	suspicious, _ := args["suspicious"].(bool)
	signals := t.suspicionSignals(
		getStringWithDefault(args, "description", ""),
		getStringWithDefault(args, "country_to", ""),
	)

	check := t.check(amount, suspicious || len(signals) > 0)
	check.Notes = append(check.Notes, signals...)

	desc := strings.ToLower(getStringWithDefault(args, "description", ""))
	if strings.Contains(desc, "cash") && amount >= t.cfg.CTRThresholdUSD {
		check.Notes = append(check.Notes, fmt.Sprintf(
			"cash payment of %.2f received in a trade or business may also require IRS Form 8300 (26 USC 6050I)", amount))
	}
	if countryTo := getStringWithDefault(args, "country_to", ""); countryTo != "" && amount >= t.cfg.CTRThresholdUSD && !domesticDestination(countryTo) {
		check.Notes = append(check.Notes, "foreign account interests above 10,000 USD may carry FBAR obligations (FinCEN Form 114)")
	}
	if currency := getStringWithDefault(args, "currency", ""); currency != "" && !strings.EqualFold(currency, "USD") {
		check.Notes = append(check.Notes, fmt.Sprintf("thresholds assume USD; amount reported in %s", currency))
	}

	content, err := json.MarshalIndent(check, "", "  ")
	if err != nil {
		return errorResult(t.GetName(), fmt.Sprintf("failed to encode check: %v", err), start), err
	}

	return ToolResult{
		Success:       true,
		Content:       string(content),
		ToolName:      t.GetName(),
		ExecutionTime: time.Since(start),
	}, nil
}

func domesticDestination(countryTo string) bool {
	needle := strings.ToLower(strings.TrimSpace(countryTo))
	return needle == "us" || needle == "usa" || strings.Contains(needle, "united states")
}

// suspicionSignals derives suspicion indicators from the free-text
// description and the destination country.
func (t *ComplianceCheckTool) suspicionSignals(description, countryTo string) []string {
	var signals []string

	desc := strings.ToLower(description)
	for _, keyword := range suspicionKeywords {
		if strings.Contains(desc, keyword) {
			signals = append(signals, fmt.Sprintf("description mentions %q", keyword))
		}
	}

	if countryTo != "" {
		needle := strings.ToLower(strings.TrimSpace(countryTo))
		for _, jurisdiction := range t.cfg.HighRiskJurisdictions {
			if strings.Contains(needle, strings.ToLower(jurisdiction)) {
				signals = append(signals, fmt.Sprintf("destination %q is a high-risk jurisdiction", countryTo))
				break
			}
		}
	}

	return signals
}

func (t *ComplianceCheckTool) check(amount float64, suspicious bool) complianceCheck {
	out := complianceCheck{Amount: amount}

	ctr := complianceRequirement{
		Filing:    "CTR",
		Threshold: t.cfg.CTRThresholdUSD,
		Citation:  citationCTR,
	}
	if amount >= t.cfg.CTRThresholdUSD {
		ctr.Required = true
		ctr.DeadlineDays = t.cfg.CTRDeadlineDays
		ctr.Reason = fmt.Sprintf("amount %.2f meets the %.0f CTR threshold", amount, t.cfg.CTRThresholdUSD)
	} else {
		ctr.Reason = fmt.Sprintf("amount %.2f is below the %.0f CTR threshold", amount, t.cfg.CTRThresholdUSD)
	}
	out.Requirements = append(out.Requirements, ctr)

	sarRequired := suspicious && amount >= t.cfg.SARThresholdUSD
	sar := complianceRequirement{
		Filing:    "SAR",
		Required:  sarRequired,
		Threshold: t.cfg.SARThresholdUSD,
		Citation:  citationSAR,
	}
	switch {
	case sarRequired:
		sar.DeadlineDays = t.cfg.SARDeadlineDays
		sar.Reason = fmt.Sprintf("suspicion indicators present and amount %.2f meets the %.0f SAR threshold", amount, t.cfg.SARThresholdUSD)
	case suspicious:
		sar.Reason = fmt.Sprintf("suspicion indicators present but amount %.2f is below the %.0f SAR threshold; filing is discretionary", amount, t.cfg.SARThresholdUSD)
	default:
		sar.Reason = "no suspicion indicators reported"
	}
	out.Requirements = append(out.Requirements, sar)

	// amounts just under the CTR threshold suggest structuring
	lower := t.cfg.CTRThresholdUSD - t.cfg.StructuringMargin
	if amount >= lower && amount < t.cfg.CTRThresholdUSD {
		out.StructuringAlert = true
		out.Notes = append(out.Notes, fmt.Sprintf(
			"amount %.2f falls within %.0f of the %.0f CTR threshold (%s); evaluate for structuring and consider a SAR",
			amount, t.cfg.StructuringMargin, t.cfg.CTRThresholdUSD, citationStructuring))
	}

	return out
}
