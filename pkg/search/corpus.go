package search

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ovokpus/investigator/pkg/databases"
)

// corpusRecord is one line of the ingestion pipeline's JSONL output.
// Embedding is optional; when present and a database provider is given,
// the vector is upserted so the embedded chromem backend can serve the
// dense leg without a separate load step.
type corpusRecord struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Metadata  map[string]string `json:"metadata"`
	Embedding []float32         `json:"embedding,omitempty"`
}

// LoadCorpus reads a JSONL corpus file into the BM25 index and, when db
// is non-nil, loads any embedded vectors into the given collection.
// Returns the number of chunks indexed.
func LoadCorpus(ctx context.Context, path string, idx *BM25Index, db databases.DatabaseProvider, collection string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open corpus file: %w", err)
	}
	defer f.Close()

	return ReadCorpus(ctx, f, idx, db, collection)
}

func ReadCorpus(ctx context.Context, r io.Reader, idx *BM25Index, db databases.DatabaseProvider, collection string) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	count := 0
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var rec corpusRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return count, fmt.Errorf("corpus line %d: %w", line, err)
		}
		if rec.ID == "" {
			return count, fmt.Errorf("corpus line %d: missing chunk id", line)
		}

		if idx != nil {
			if err := idx.Add(Chunk{ID: rec.ID, Text: rec.Text, Metadata: rec.Metadata}); err != nil {
				return count, fmt.Errorf("corpus line %d: %w", line, err)
			}
		}

		if db != nil && len(rec.Embedding) > 0 {
			metadata := make(map[string]interface{}, len(rec.Metadata)+1)
			for k, v := range rec.Metadata {
				metadata[k] = v
			}
			metadata["content"] = rec.Text
			if err := db.Upsert(ctx, collection, rec.ID, rec.Embedding, metadata); err != nil {
				return count, fmt.Errorf("corpus line %d: failed to load vector: %w", line, err)
			}
		}

		count++
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("failed to read corpus: %w", err)
	}

	return count, nil
}
