// Package databases provides vector store providers for the dense
// retrieval path. Two backends are supported: a remote Qdrant instance
// and an embedded chromem-go store for credential-free deployments.
package databases

import (
	"context"
	"fmt"
)

// SearchResult is a single scored point returned from a vector search.
type SearchResult struct {
	ID       string                 `json:"id"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
	Score    float32                `json:"score"`
}

// DatabaseProvider abstracts a vector database backend.
type DatabaseProvider interface {
	Upsert(ctx context.Context, collection string, id string, vector []float32, metadata map[string]interface{}) error
	Search(ctx context.Context, collection string, queryVector []float32, topK int) ([]SearchResult, error)
	CreateCollection(ctx context.Context, collection string, vectorSize uint64) error
	Delete(ctx context.Context, collection string, id string) error
	Close() error
}

// Config selects and configures a vector store backend.
type Config struct {
	Type       string `yaml:"type"`       // "qdrant" or "chromem"
	Host       string `yaml:"host"`       // qdrant host
	Port       int    `yaml:"port"`       // qdrant gRPC port
	APIKey     string `yaml:"api_key"`    // qdrant API key, optional
	EnableTLS  bool   `yaml:"enable_tls"` // qdrant TLS
	Path       string `yaml:"path"`       // chromem persistence path, empty for in-memory
	Collection string `yaml:"collection"`
}

func (c *Config) SetDefaults() {
	if c.Type == "" {
		c.Type = "chromem"
	}
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.Collection == "" {
		c.Collection = "fraud_documents"
	}
}

func (c *Config) Validate() error {
	switch c.Type {
	case "qdrant", "chromem":
		return nil
	default:
		return fmt.Errorf("unsupported vector store type: %q (supported: qdrant, chromem)", c.Type)
	}
}

// NewProvider builds the backend named by cfg.Type.
func NewProvider(cfg *Config) (DatabaseProvider, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case "qdrant":
		return NewQdrantProvider(cfg)
	case "chromem":
		return NewChromemProvider(cfg)
	default:
		return nil, fmt.Errorf("unsupported vector store type: %q", cfg.Type)
	}
}
