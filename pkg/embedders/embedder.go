// Package embedders provides query embedding clients for the dense
// retrieval path. Documents are embedded out-of-band by the ingestion
// collaborator; at query time only the query string is embedded.
package embedders

import "context"

// Embedder converts text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension is the fixed embedding width of the corpus.
	Dimension() int
}
