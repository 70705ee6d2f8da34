// Package config defines the full configuration tree for the
// investigator service. Every section carries SetDefaults and Validate;
// YAML files support ${VAR} and ${VAR:-default} expansion, and a .env
// file is honored for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ovokpus/investigator/pkg/databases"
	"github.com/ovokpus/investigator/pkg/observability"
)

type Config struct {
	LLM           LLMConfig            `yaml:"llm"`
	Embedder      EmbedderConfig       `yaml:"embedder"`
	VectorStore   VectorStoreConfig    `yaml:"vector_store"`
	Cache         CacheConfig          `yaml:"cache"`
	Timeouts      TimeoutConfig        `yaml:"timeouts"`
	Workers       WorkerConfig         `yaml:"workers"`
	Risk          RiskConfig           `yaml:"risk"`
	Compliance    ComplianceConfig     `yaml:"compliance"`
	Tools         ToolsConfig          `yaml:"tools"`
	Agents        AgentConfig          `yaml:"agents"`
	Bus           BusConfig            `yaml:"bus"`
	Server        ServerConfig         `yaml:"server"`
	Observability observability.Config `yaml:"observability"`
}

type LLMConfig struct {
	APIKey        string        `yaml:"api_key"`
	Model         string        `yaml:"model"`
	Host          string        `yaml:"host"`
	MaxTokens     int           `yaml:"max_tokens"`
	Temperature   float64       `yaml:"temperature"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxRetries    int           `yaml:"max_retries"`
	ContextTokens int           `yaml:"context_tokens"`
}

func (c *LLMConfig) SetDefaults() {
	if c.APIKey == "" {
		c.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 2000
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
}

func (c *LLMConfig) Validate() error {
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("llm temperature must be in [0, 2], got %g", c.Temperature)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("llm max_tokens must be non-negative")
	}
	return nil
}

type EmbedderConfig struct {
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	Host      string `yaml:"host"`
	Dimension int    `yaml:"dimension"`
}

func (c *EmbedderConfig) SetDefaults() {
	if c.APIKey == "" {
		c.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Model == "" {
		c.Model = "text-embedding-3-large"
	}
	if c.Dimension == 0 {
		c.Dimension = 3072
	}
}

type VectorStoreConfig struct {
	databases.Config `yaml:",inline"`

	// Method picks the retrieval routing: auto, bm25, or dense.
	Method      string `yaml:"method"`
	BM25Enabled *bool  `yaml:"bm25_enabled"`
	CorpusPath  string `yaml:"corpus_path"`
}

func (c *VectorStoreConfig) SetDefaults() {
	c.Config.SetDefaults()
	if c.Method == "" {
		c.Method = "auto"
	}
	if c.BM25Enabled == nil {
		enabled := true
		c.BM25Enabled = &enabled
	}
}

func (c *VectorStoreConfig) Validate() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}
	switch c.Method {
	case "auto", "bm25", "dense":
	default:
		return fmt.Errorf("vector_store method must be auto, bm25, or dense, got %q", c.Method)
	}
	if !*c.BM25Enabled && c.Method == "bm25" {
		return fmt.Errorf("vector_store method bm25 requires bm25_enabled")
	}
	return nil
}

type CacheConfig struct {
	Enabled      *bool                    `yaml:"enabled"`
	URL          string                   `yaml:"url"`
	WriteTimeout time.Duration            `yaml:"write_timeout"`
	TTLs         map[string]time.Duration `yaml:"ttls"`

	// ReplayEvents streams synthetic progress events when a cached
	// investigation short-circuits; off means one Progress then Final.
	ReplayEvents bool `yaml:"replay_events"`
}

func (c *CacheConfig) SetDefaults() {
	if c.Enabled == nil {
		enabled := true
		c.Enabled = &enabled
	}
	if c.URL == "" {
		c.URL = os.Getenv("REDIS_URL")
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 250 * time.Millisecond
	}
}

type TimeoutConfig struct {
	LLM           time.Duration `yaml:"llm"`
	NetworkTool   time.Duration `yaml:"network_tool"`
	VectorSearch  time.Duration `yaml:"vector_search"`
	Agent         time.Duration `yaml:"agent"`
	AnalysisPhase time.Duration `yaml:"analysis_phase"`
	ReportPhase   time.Duration `yaml:"report_phase"`
	Investigation time.Duration `yaml:"investigation"`
}

func (c *TimeoutConfig) SetDefaults() {
	if c.LLM == 0 {
		c.LLM = 60 * time.Second
	}
	if c.NetworkTool == 0 {
		c.NetworkTool = 15 * time.Second
	}
	if c.VectorSearch == 0 {
		c.VectorSearch = 2 * time.Second
	}
	if c.Agent == 0 {
		c.Agent = 75 * time.Second
	}
	if c.AnalysisPhase == 0 {
		c.AnalysisPhase = 120 * time.Second
	}
	if c.ReportPhase == 0 {
		c.ReportPhase = 90 * time.Second
	}
	if c.Investigation == 0 {
		c.Investigation = 180 * time.Second
	}
}

type WorkerConfig struct {
	LLM          int `yaml:"llm"`
	NetworkTools int `yaml:"network_tools"`
}

func (c *WorkerConfig) SetDefaults() {
	if c.LLM == 0 {
		c.LLM = 32
	}
	if c.NetworkTools == 0 {
		c.NetworkTools = 64
	}
}

// AmountBand contributes Weight to the risk score once the transaction
// amount reaches Threshold. Bands are evaluated highest-first and only
// the first crossed band applies.
type AmountBand struct {
	Threshold float64 `yaml:"threshold"`
	Weight    float64 `yaml:"weight"`
}

type RiskConfig struct {
	AmountBands        []AmountBand       `yaml:"amount_bands"`
	CountryWeights     map[string]float64 `yaml:"country_weights"`
	RiskRatingWeights  map[string]float64 `yaml:"risk_rating_weights"`
	AccountTypeWeights map[string]float64 `yaml:"account_type_weights"`

	// Structuring: amounts within StructuringMargin below
	// StructuringCeiling add StructuringWeight to the score.
	StructuringCeiling float64 `yaml:"structuring_ceiling_usd"`
	StructuringMargin  float64 `yaml:"structuring_margin_usd"`
	StructuringWeight  float64 `yaml:"structuring_weight"`
}

func (c *RiskConfig) SetDefaults() {
	if len(c.AmountBands) == 0 {
		c.AmountBands = []AmountBand{
			{Threshold: 5000, Weight: 0.10},
			{Threshold: 10000, Weight: 0.25},
			{Threshold: 50000, Weight: 0.40},
		}
	}
	if len(c.CountryWeights) == 0 {
		c.CountryWeights = map[string]float64{
			"iran":                   0.30,
			"north korea":            0.30,
			"myanmar":                0.25,
			"syria":                  0.25,
			"british virgin islands": 0.25,
			"cayman islands":         0.20,
			"panama":                 0.15,
		}
	}
	if len(c.RiskRatingWeights) == 0 {
		c.RiskRatingWeights = map[string]float64{
			"low":      0.00,
			"medium":   0.15,
			"high":     0.30,
			"critical": 0.45,
		}
	}
	if len(c.AccountTypeWeights) == 0 {
		c.AccountTypeWeights = map[string]float64{
			"personal":              0.00,
			"business":              0.05,
			"corporate":             0.05,
			"nonprofit":             0.10,
			"professional services": 0.05,
			"gaming/entertainment":  0.25,
			"investment":            0.15,
			"government":            0.00,
		}
	}
	if c.StructuringCeiling == 0 {
		c.StructuringCeiling = 10000
	}
	if c.StructuringMargin == 0 {
		c.StructuringMargin = 500
	}
	if c.StructuringWeight == 0 {
		c.StructuringWeight = 0.5
	}
}

func (c *RiskConfig) Validate() error {
	for _, band := range c.AmountBands {
		if band.Threshold < 0 || band.Weight < 0 {
			return fmt.Errorf("risk amount bands must be non-negative")
		}
	}
	return nil
}

type ComplianceConfig struct {
	CTRThresholdUSD   float64 `yaml:"ctr_threshold_usd"`
	CTRDeadlineDays   int     `yaml:"ctr_deadline_days"`
	SARThresholdUSD   float64 `yaml:"sar_threshold_usd"`
	SARDeadlineDays   int     `yaml:"sar_deadline_days"`
	StructuringMargin float64 `yaml:"structuring_margin_usd"`

	// HighRiskJurisdictions feed the compliance check's suspicion
	// derivation; matching is a case-insensitive substring test.
	HighRiskJurisdictions []string `yaml:"high_risk_jurisdictions"`
}

func (c *ComplianceConfig) SetDefaults() {
	if c.CTRThresholdUSD == 0 {
		c.CTRThresholdUSD = 10000
	}
	if c.CTRDeadlineDays == 0 {
		c.CTRDeadlineDays = 15
	}
	if c.SARThresholdUSD == 0 {
		c.SARThresholdUSD = 5000
	}
	if c.SARDeadlineDays == 0 {
		c.SARDeadlineDays = 30
	}
	if c.StructuringMargin == 0 {
		c.StructuringMargin = 500
	}
	if len(c.HighRiskJurisdictions) == 0 {
		c.HighRiskJurisdictions = []string{
			"iran",
			"north korea",
			"myanmar",
			"syria",
			"british virgin islands",
			"cayman islands",
			"panama",
		}
	}
}

type ToolsConfig struct {
	WebSearchURL       string `yaml:"web_search_url"`
	WebSearchAPIKey    string `yaml:"web_search_api_key"`
	ArxivURL           string `yaml:"arxiv_url"`
	ExchangeRateURL    string `yaml:"exchange_rate_url"`
	ExchangeRateAPIKey string `yaml:"exchange_rate_api_key"`
}

func (c *ToolsConfig) SetDefaults() {
	if c.WebSearchAPIKey == "" {
		c.WebSearchAPIKey = os.Getenv("TAVILY_API_KEY")
	}
	if c.WebSearchURL == "" {
		c.WebSearchURL = "https://api.tavily.com/search"
	}
	if c.ArxivURL == "" {
		c.ArxivURL = "http://export.arxiv.org/api/query"
	}
	if c.ExchangeRateAPIKey == "" {
		c.ExchangeRateAPIKey = os.Getenv("EXCHANGE_RATE_API_KEY")
	}
	if c.ExchangeRateURL == "" {
		c.ExchangeRateURL = "https://v6.exchangerate-api.com/v6"
	}
}

type AgentConfig struct {
	MaxIterations int `yaml:"max_iterations"`
}

func (c *AgentConfig) SetDefaults() {
	if c.MaxIterations == 0 {
		c.MaxIterations = 6
	}
}

type BusConfig struct {
	// Strict panics on sequence regressions instead of dropping the
	// event; meant for tests and debug builds.
	Strict bool `yaml:"strict"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		if p, err := strconv.Atoi(os.Getenv("PORT")); err == nil && p > 0 {
			c.Port = p
		} else {
			c.Port = 8000
		}
	}
}

func (c *Config) SetDefaults() {
	c.LLM.SetDefaults()
	c.Embedder.SetDefaults()
	c.VectorStore.SetDefaults()
	c.Cache.SetDefaults()
	c.Timeouts.SetDefaults()
	c.Workers.SetDefaults()
	c.Risk.SetDefaults()
	c.Compliance.SetDefaults()
	c.Tools.SetDefaults()
	c.Agents.SetDefaults()
	c.Server.SetDefaults()
}

func (c *Config) Validate() error {
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	if err := c.VectorStore.Validate(); err != nil {
		return err
	}
	if err := c.Risk.Validate(); err != nil {
		return err
	}
	return nil
}

// Default returns a fully defaulted configuration driven by the
// environment alone.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// LoadFromFile reads a YAML config with env var expansion applied to
// the raw file text, then layers defaults and validates.
func LoadFromFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := ExpandEnvVars(string(raw))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
