// Package search implements hybrid retrieval over the regulatory
// document corpus: a lexical BM25 index built in memory at boot, and a
// dense cosine path over precomputed embeddings. A router picks the leg
// per query and records which one answered.
package search

import "fmt"

// Method identifies which retrieval leg produced a set of hits.
type Method string

const (
	MethodAuto     Method = "auto"
	MethodBM25     Method = "bm25"
	MethodDense    Method = "dense"
	MethodHybrid   Method = "hybrid"
	MethodFallback Method = "fallback"
)

// Chunk is one indexed document fragment. The corpus is produced
// out-of-band by the ingestion pipeline; chunk ids are unique and
// stable across the BM25 and dense sides.
type Chunk struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// Hit is one scored retrieval result.
type Hit struct {
	Chunk  Chunk   `json:"chunk"`
	Score  float64 `json:"score"`
	Method Method  `json:"method"`
}

// ParseMethod validates a configured retrieval method.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodAuto, MethodBM25, MethodDense:
		return Method(s), nil
	case "":
		return MethodAuto, nil
	default:
		return "", fmt.Errorf("unsupported retrieval method: %q (supported: auto, bm25, dense)", s)
	}
}
