// Package agent runs a single investigation agent: a bounded
// reason-act loop over the LLM gateway and the tool registry. Agent
// specialization is configuration (system prompt plus an allowed tool
// subset), not code.
package agent

import (
	"fmt"
	"strings"

	"github.com/ovokpus/investigator/pkg/investigation"
)

const (
	AgentRegulatoryResearch = "regulatory_research"
	AgentEvidenceCollection = "evidence_collection"
	AgentComplianceCheck    = "compliance_check"
	AgentReportGeneration   = "report_generation"
)

// Definition is everything that distinguishes one agent from another.
type Definition struct {
	Name         string
	Description  string
	SystemPrompt string

	// Tools is the allowed subset of the registry, in schema order.
	Tools []string

	// FirstToolHint names the tool the prompt steers the model toward
	// first. Guidance only; a response that skips it is still valid.
	FirstToolHint string

	MaxIterations int
}

// systemPrompt folds the first-tool hint into the prompt text.
func (d Definition) systemPrompt() string {
	if d.FirstToolHint == "" {
		return d.SystemPrompt
	}
	return d.SystemPrompt + fmt.Sprintf(
		"\n\nBegin by calling the %s tool before drawing any conclusions.", d.FirstToolHint)
}

// Definitions returns the four built-in investigation agents.
// maxIterations of 0 keeps each agent's default tool budget.
func Definitions(maxIterations int) []Definition {
	defs := []Definition{
		{
			Name:        AgentRegulatoryResearch,
			Description: "Finds the regulations, filings guidance, and typology research relevant to the transaction",
			SystemPrompt: `You are a financial crimes regulatory research specialist.
Given a transaction under investigation, identify the regulations and
official guidance that apply: reporting thresholds, filing obligations,
jurisdiction-specific rules, and known fraud typologies that match the
transaction pattern. Ground every claim in a retrieved document and cite
the source agency. If retrieval is degraded, say so explicitly and
reason from the transaction facts alone. Keep your findings factual and
structured; another analyst will consume them.`,
			Tools: []string{
				"search_regulatory_documents",
				"search_fraud_research",
				"search_web_intelligence",
			},
			FirstToolHint: "search_regulatory_documents",
		},
		{
			Name:        AgentEvidenceCollection,
			Description: "Quantifies transaction risk and gathers external evidence on the parties",
			SystemPrompt: `You are a fraud evidence collection analyst.
Quantify the risk of the transaction using the risk calculator, then
gather supporting evidence: currency conversion context for cross-border
amounts and open-source intelligence on the customer and destination.
Report the computed risk score and level verbatim, list each evidence
item with its source, and flag anything you could not verify because a
data source was unavailable. Do not speculate beyond the evidence.`,
			Tools: []string{
				"calculate_transaction_risk",
				"get_exchange_rate_data",
				"search_web_intelligence",
			},
			FirstToolHint: "calculate_transaction_risk",
		},
		{
			Name:        AgentComplianceCheck,
			Description: "Determines which filings the transaction obligates and their deadlines",
			SystemPrompt: `You are a BSA/AML compliance officer.
Determine which regulatory filings this transaction obligates: check the
currency transaction report and suspicious activity report thresholds,
note filing deadlines in days, and call out structuring indicators when
the amount sits just under a reporting threshold. Where a determination
depends on regulatory text, retrieve and cite it. State each obligation
as required or not required with the reason.`,
			Tools: []string{
				"check_compliance_requirements",
				"search_regulatory_documents",
			},
			FirstToolHint: "check_compliance_requirements",
		},
		{
			Name:        AgentReportGeneration,
			Description: "Synthesizes the analysis into the final investigation report",
			SystemPrompt: `You are a senior fraud investigator writing the final report.
You receive the findings of the regulatory research, evidence
collection, and compliance check analysts. Synthesize them into a single
investigation report with these sections: Executive Summary, Risk
Assessment, Regulatory Context, Compliance Obligations, and Recommended
Actions. Preserve the computed risk score and every filing obligation
exactly as reported. Where an upstream analyst failed or a source was
unavailable, state the gap rather than filling it with conjecture. Only
consult tools to resolve a direct contradiction between analysts.`,
			Tools: []string{
				"search_regulatory_documents",
				"check_compliance_requirements",
			},
		},
	}

	if maxIterations > 0 {
		for i := range defs {
			defs[i].MaxIterations = maxIterations
		}
	}
	return defs
}

// FormatTask renders the transaction as the user task given to every
// analysis agent.
func FormatTask(input investigation.TransactionInput) string {
	var sb strings.Builder
	sb.WriteString("Investigate the following transaction for fraud and compliance exposure:\n\n")
	fmt.Fprintf(&sb, "Amount: %.2f %s\n", input.Amount, input.Currency)
	fmt.Fprintf(&sb, "Description: %s\n", input.Description)
	fmt.Fprintf(&sb, "Customer: %s\n", input.CustomerName)
	fmt.Fprintf(&sb, "Account type: %s\n", input.AccountType)
	fmt.Fprintf(&sb, "Customer risk rating: %s\n", input.RiskRating)
	fmt.Fprintf(&sb, "Destination country: %s\n", input.CountryTo)
	return sb.String()
}
