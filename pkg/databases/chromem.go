package databases

import (
	"context"
	"fmt"
	"sync"

	"github.com/philippgille/chromem-go"
)

// chromemProvider is the embedded backend. It keeps everything in
// process, optionally persisted to disk, so deployments without a
// Qdrant instance still get a dense retrieval path.
type chromemProvider struct {
	db          *chromem.DB
	mu          sync.Mutex
	collections map[string]*chromem.Collection
}

func NewChromemProvider(cfg *Config) (DatabaseProvider, error) {
	var db *chromem.DB
	var err error

	if cfg.Path != "" {
		db, err = chromem.NewPersistentDB(cfg.Path, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open chromem store at %s: %w", cfg.Path, err)
		}
	} else {
		db = chromem.NewDB()
	}

	return &chromemProvider{
		db:          db,
		collections: make(map[string]*chromem.Collection),
	}, nil
}

// vectors arrive pre-computed, so the embedding func must never run
func externalEmbeddings(_ context.Context, _ string) ([]float32, error) {
	return nil, fmt.Errorf("documents must carry precomputed embeddings")
}

func (db *chromemProvider) collection(name string) (*chromem.Collection, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if c, ok := db.collections[name]; ok {
		return c, nil
	}

	c, err := db.db.GetOrCreateCollection(name, nil, externalEmbeddings)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %s: %w", name, err)
	}
	db.collections[name] = c
	return c, nil
}

func (db *chromemProvider) CreateCollection(ctx context.Context, collection string, vectorSize uint64) error {
	_, err := db.collection(collection)
	return err
}

func (db *chromemProvider) Upsert(ctx context.Context, collection string, id string, vector []float32, metadata map[string]interface{}) error {
	c, err := db.collection(collection)
	if err != nil {
		return err
	}

	meta := make(map[string]string, len(metadata))
	content := ""
	for key, value := range metadata {
		s := fmt.Sprintf("%v", value)
		if key == "content" {
			content = s
			continue
		}
		meta[key] = s
	}

	err = c.AddDocument(ctx, chromem.Document{
		ID:        id,
		Metadata:  meta,
		Embedding: vector,
		Content:   content,
	})
	if err != nil {
		return fmt.Errorf("failed to add document %s: %w", id, err)
	}
	return nil
}

func (db *chromemProvider) Search(ctx context.Context, collection string, queryVector []float32, topK int) ([]SearchResult, error) {
	c, err := db.collection(collection)
	if err != nil {
		return nil, err
	}

	// chromem rejects nResults larger than the document count
	if count := c.Count(); topK > count {
		topK = count
	}
	if topK == 0 {
		return nil, nil
	}

	hits, err := c.QueryEmbedding(ctx, queryVector, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection %s: %w", collection, err)
	}

	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		metadata := make(map[string]interface{}, len(hit.Metadata))
		for k, v := range hit.Metadata {
			metadata[k] = v
		}
		results = append(results, SearchResult{
			ID:       hit.ID,
			Content:  hit.Content,
			Metadata: metadata,
			Score:    hit.Similarity,
		})
	}
	return results, nil
}

func (db *chromemProvider) Delete(ctx context.Context, collection string, id string) error {
	c, err := db.collection(collection)
	if err != nil {
		return err
	}
	if err := c.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	return nil
}

func (db *chromemProvider) Close() error {
	return nil
}
