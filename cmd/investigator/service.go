package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ovokpus/investigator/pkg/agent"
	"github.com/ovokpus/investigator/pkg/bus"
	"github.com/ovokpus/investigator/pkg/cache"
	"github.com/ovokpus/investigator/pkg/config"
	"github.com/ovokpus/investigator/pkg/databases"
	"github.com/ovokpus/investigator/pkg/embedders"
	"github.com/ovokpus/investigator/pkg/httpclient"
	"github.com/ovokpus/investigator/pkg/llms"
	"github.com/ovokpus/investigator/pkg/observability"
	"github.com/ovokpus/investigator/pkg/orchestrator"
	"github.com/ovokpus/investigator/pkg/search"
	"github.com/ovokpus/investigator/pkg/server"
	"github.com/ovokpus/investigator/pkg/tools"
	"github.com/ovokpus/investigator/pkg/workerpool"
)

// service holds everything with a lifecycle, for shutdown.
type service struct {
	server        *server.Server
	observability *observability.Manager
	vectorDB      databases.DatabaseProvider
	logger        *slog.Logger
}

func (s *service) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if s.vectorDB != nil {
		if err := s.vectorDB.Close(); err != nil {
			s.logger.Warn("failed to close vector store", "error", err)
		}
	}
	if s.observability != nil {
		if err := s.observability.Shutdown(ctx); err != nil {
			s.logger.Warn("failed to shut down observability", "error", err)
		}
	}
}

func buildService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*service, error) {
	obs := observability.NewManager(cfg.Observability)
	if err := obs.Initialize(ctx); err != nil {
		return nil, err
	}

	var store cache.Store
	if cfg.Cache.Enabled != nil && *cfg.Cache.Enabled {
		store = cache.NewStoreFromURL(cfg.Cache.URL, cfg.Cache.WriteTimeout)
	}

	searchStore, vectorDB, err := buildRetrieval(ctx, cfg, store, logger)
	if err != nil {
		return nil, err
	}

	registry, err := buildRegistry(cfg, store, searchStore)
	if err != nil {
		return nil, err
	}

	provider := llms.NewOpenAIProvider(llms.ProviderConfig{
		APIKey:        cfg.LLM.APIKey,
		Model:         cfg.LLM.Model,
		Host:          cfg.LLM.Host,
		Temperature:   cfg.LLM.Temperature,
		MaxTokens:     cfg.LLM.MaxTokens,
		Timeout:       cfg.LLM.Timeout,
		MaxRetries:    cfg.LLM.MaxRetries,
		ContextTokens: cfg.LLM.ContextTokens,
	})
	var gateway llms.Gateway = provider
	if store != nil {
		gateway = llms.NewCachedGateway(provider, store, cfg.LLM.Temperature, ttlFor(cfg, cache.CategoryLLM))
	}

	runtime := agent.NewRuntime(gateway, registry,
		agent.WithLLMPool(workerpool.New("llm", cfg.Workers.LLM)),
		agent.WithMaxTokens(cfg.LLM.MaxTokens),
		agent.WithAgentTimeout(cfg.Timeouts.Agent),
		agent.WithLogger(logger),
	)

	eventBus := bus.New(
		bus.WithStrict(cfg.Bus.Strict),
		bus.WithLogger(logger),
	)

	orch, err := orchestrator.New(runtime, eventBus, agent.Definitions(cfg.Agents.MaxIterations),
		orchestrator.WithCache(store, ttlFor(cfg, cache.CategoryInvestigation), cfg.Cache.ReplayEvents),
		orchestrator.WithTimeouts(cfg.Timeouts),
		orchestrator.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	srv := server.New(cfg.Server, server.Deps{
		Orchestrator: orch,
		Search:       searchStore,
		Cache:        store,
		Registry:     registry,
		LLMReady:     provider.Ready,
		Logger:       logger,
	})

	return &service{
		server:        srv,
		observability: obs,
		vectorDB:      vectorDB,
		logger:        logger,
	}, nil
}

// buildRetrieval assembles the hybrid search store: a BM25 index, an
// optional dense leg over the configured vector backend, and the
// regulatory corpus loaded from disk. Missing embedder credentials
// degrade to BM25-only retrieval.
func buildRetrieval(ctx context.Context, cfg *config.Config, store cache.Store, logger *slog.Logger) (*search.Store, databases.DatabaseProvider, error) {
	method, err := search.ParseMethod(cfg.VectorStore.Method)
	if err != nil {
		return nil, nil, err
	}

	var idx *search.BM25Index
	if cfg.VectorStore.BM25Enabled == nil || *cfg.VectorStore.BM25Enabled {
		idx = search.NewBM25Index()
	}

	var (
		dense    *search.DenseSearcher
		vectorDB databases.DatabaseProvider
	)
	if cfg.Embedder.APIKey != "" {
		embedder, err := embedders.NewOpenAIEmbedder(embedders.Config{
			APIKey:    cfg.Embedder.APIKey,
			Model:     cfg.Embedder.Model,
			Host:      cfg.Embedder.Host,
			Dimension: cfg.Embedder.Dimension,
		})
		if err != nil {
			return nil, nil, err
		}

		vectorDB, err = databases.NewProvider(&cfg.VectorStore.Config)
		if err != nil {
			return nil, nil, err
		}

		dense = search.NewDenseSearcher(embedder, vectorDB, cfg.VectorStore.Collection)
	} else {
		logger.Warn("no embedder credentials, dense retrieval disabled")
	}

	if cfg.VectorStore.CorpusPath != "" {
		count, err := search.LoadCorpus(ctx, cfg.VectorStore.CorpusPath, idx, vectorDB, cfg.VectorStore.Collection)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("regulatory corpus loaded",
			"path", cfg.VectorStore.CorpusPath,
			"chunks", count)
	}

	searchStore := search.NewStore(idx, dense, method,
		search.WithCache(store),
		search.WithTimeout(cfg.Timeouts.VectorSearch),
		search.WithLogger(logger),
	)
	return searchStore, vectorDB, nil
}

// buildRegistry registers the six investigation tools. Network tools
// run through a bounded pool and a per-category result cache;
// calculators stay direct.
func buildRegistry(cfg *config.Config, store cache.Store, searchStore *search.Store) (*tools.ToolRegistry, error) {
	registry := tools.NewToolRegistry()
	netPool := workerpool.New("network", cfg.Workers.NetworkTools)
	netClient := httpclient.New(
		httpclient.WithHTTPClient(&http.Client{Timeout: cfg.Timeouts.NetworkTool}),
	)

	network := func(tool tools.Tool, category cache.Category) tools.Tool {
		pooled := tools.NewPooledTool(tool, netPool)
		if store == nil {
			return pooled
		}
		return tools.NewCachedTool(pooled, store, category, ttlFor(cfg, category))
	}

	catalog := []tools.Tool{
		tools.NewRegulatorySearchTool(searchStore),
		network(tools.NewResearchSearchTool(netClient, cfg.Tools.ArxivURL), cache.CategoryResearch),
		network(tools.NewWebIntelTool(netClient, cfg.Tools.WebSearchURL, cfg.Tools.WebSearchAPIKey), cache.CategoryWebIntel),
		network(tools.NewExchangeRateTool(netClient, cfg.Tools.ExchangeRateURL, cfg.Tools.ExchangeRateAPIKey), cache.CategoryExchangeRate),
		tools.NewRiskCalculatorTool(cfg.Risk),
		tools.NewComplianceCheckTool(cfg.Compliance),
	}
	for _, tool := range catalog {
		if err := registry.RegisterTool(tool); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func ttlFor(cfg *config.Config, category cache.Category) time.Duration {
	if d, ok := cfg.Cache.TTLs[string(category)]; ok && d > 0 {
		return d
	}
	return cache.DefaultTTLs[category]
}
