package search

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// BM25Index is an in-memory inverted index over the corpus. It is
// built once at boot and read-only afterwards, so queries take only the
// read lock.
type BM25Index struct {
	mu        sync.RWMutex
	chunks    []Chunk
	docTokens []int              // token count per document
	postings  map[string][]posting
	avgLen    float64
}

type posting struct {
	doc  int // index into chunks
	freq int
}

func NewBM25Index() *BM25Index {
	return &BM25Index{
		postings: make(map[string][]posting),
	}
}

// Add indexes one chunk. Duplicate ids are rejected to keep the
// id→(text, metadata) mapping unique.
func (idx *BM25Index) Add(chunk Chunk) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, existing := range idx.chunks {
		if existing.ID == chunk.ID {
			return fmt.Errorf("duplicate chunk id: %s", chunk.ID)
		}
	}

	doc := len(idx.chunks)
	tokens := Tokenize(chunk.Text)

	freqs := make(map[string]int)
	for _, tok := range tokens {
		freqs[tok]++
	}
	for tok, freq := range freqs {
		idx.postings[tok] = append(idx.postings[tok], posting{doc: doc, freq: freq})
	}

	idx.chunks = append(idx.chunks, chunk)
	idx.docTokens = append(idx.docTokens, len(tokens))

	total := 0
	for _, n := range idx.docTokens {
		total += n
	}
	idx.avgLen = float64(total) / float64(len(idx.docTokens))

	return nil
}

// Size returns the number of indexed chunks.
func (idx *BM25Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.chunks)
}

// Search scores the query against every candidate document and returns
// the top k by BM25 score, ties broken by chunk id ascending.
func (idx *BM25Index) Search(query string, k int) ([]Hit, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.chunks) == 0 {
		return nil, fmt.Errorf("index is empty")
	}
	if k <= 0 {
		return nil, nil
	}

	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	n := float64(len(idx.chunks))
	scores := make(map[int]float64)

	for _, tok := range queryTokens {
		plist, ok := idx.postings[tok]
		if !ok {
			continue
		}

		df := float64(len(plist))
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))

		for _, p := range plist {
			tf := float64(p.freq)
			docLen := float64(idx.docTokens[p.doc])
			norm := tf * (bm25K1 + 1) / (tf + bm25K1*(1-bm25B+bm25B*docLen/idx.avgLen))
			scores[p.doc] += idf * norm
		}
	}

	hits := make([]Hit, 0, len(scores))
	for doc, score := range scores {
		hits = append(hits, Hit{
			Chunk:  idx.chunks[doc],
			Score:  score,
			Method: MethodBM25,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Chunk.ID < hits[j].Chunk.ID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}
