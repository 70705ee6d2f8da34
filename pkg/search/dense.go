package search

import (
	"context"
	"fmt"
	"sort"

	"github.com/ovokpus/investigator/pkg/databases"
	"github.com/ovokpus/investigator/pkg/embedders"
)

// DenseSearcher embeds the query and runs cosine search against the
// vector backend. Document embeddings are precomputed by the ingestion
// pipeline; only the query is embedded at request time.
type DenseSearcher struct {
	embedder   embedders.Embedder
	db         databases.DatabaseProvider
	collection string
}

func NewDenseSearcher(embedder embedders.Embedder, db databases.DatabaseProvider, collection string) *DenseSearcher {
	return &DenseSearcher{
		embedder:   embedder,
		db:         db,
		collection: collection,
	}
}

func (d *DenseSearcher) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	if d.embedder == nil || d.db == nil {
		return nil, fmt.Errorf("dense retrieval is not configured")
	}
	if k <= 0 {
		return nil, nil
	}

	vector, err := d.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := d.db.Search(ctx, d.collection, vector, k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		metadata := make(map[string]string, len(r.Metadata))
		for key, value := range r.Metadata {
			if key == "content" {
				continue
			}
			metadata[key] = fmt.Sprintf("%v", value)
		}
		hits = append(hits, Hit{
			Chunk: Chunk{
				ID:       r.ID,
				Text:     r.Content,
				Metadata: metadata,
			},
			Score:  float64(r.Score),
			Method: MethodDense,
		})
	}

	// backends return score-ordered results; re-sort to pin the
	// tie-break on chunk id
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Chunk.ID < hits[j].Chunk.ID
	})

	return hits, nil
}
