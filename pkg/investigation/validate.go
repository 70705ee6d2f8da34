package investigation

import (
	"fmt"
	"strings"
)

const (
	maxDescriptionLen  = 8192
	maxCustomerNameLen = 256
	maxCountryLen      = 128
)

var validAccountTypes = map[AccountType]bool{
	AccountPersonal:     true,
	AccountBusiness:     true,
	AccountCorporate:    true,
	AccountNonprofit:    true,
	AccountProfessional: true,
	AccountGaming:       true,
	AccountInvestment:   true,
	AccountGovernment:   true,
}

var validRiskRatings = map[RiskRating]bool{
	RiskLow:      true,
	RiskMedium:   true,
	RiskHigh:     true,
	RiskCritical: true,
}

// Validate checks the transaction input against schema and bounds.
// Invalid input surfaces immediately to the caller; the investigation
// never enters the running state.
func (t *TransactionInput) Validate() error {
	if t.Amount < 0 {
		return fmt.Errorf("amount must be non-negative, got %v", t.Amount)
	}
	currency := strings.TrimSpace(t.Currency)
	if len(currency) != 3 {
		return fmt.Errorf("currency must be a 3-letter ISO 4217 code, got %q", t.Currency)
	}
	for _, r := range currency {
		if r < 'A' || r > 'Z' {
			return fmt.Errorf("currency must be uppercase letters, got %q", t.Currency)
		}
	}
	if strings.TrimSpace(t.Description) == "" {
		return fmt.Errorf("description is required")
	}
	if len(t.Description) > maxDescriptionLen {
		return fmt.Errorf("description exceeds %d bytes", maxDescriptionLen)
	}
	if strings.TrimSpace(t.CustomerName) == "" {
		return fmt.Errorf("customer_name is required")
	}
	if len(t.CustomerName) > maxCustomerNameLen {
		return fmt.Errorf("customer_name exceeds %d bytes", maxCustomerNameLen)
	}
	if !validAccountTypes[t.AccountType] {
		return fmt.Errorf("invalid account_type %q", t.AccountType)
	}
	if !validRiskRatings[t.RiskRating] {
		return fmt.Errorf("invalid risk_rating %q", t.RiskRating)
	}
	if strings.TrimSpace(t.CountryTo) == "" {
		return fmt.Errorf("country_to is required")
	}
	if len(t.CountryTo) > maxCountryLen {
		return fmt.Errorf("country_to exceeds %d bytes", maxCountryLen)
	}
	return nil
}
