package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestIndex(t *testing.T) *BM25Index {
	t.Helper()

	idx := NewBM25Index()
	chunks := []Chunk{
		{ID: "ctr-001", Text: "Currency Transaction Report filing is required for cash transactions exceeding ten thousand dollars", Metadata: map[string]string{"content_category": "filing"}},
		{ID: "sar-001", Text: "A Suspicious Activity Report must be filed within thirty days of detecting suspicious behavior", Metadata: map[string]string{"content_category": "filing"}},
		{ID: "sar-002", Text: "S.A.R. narratives should describe the suspicious activity in detail", Metadata: map[string]string{"content_category": "guidance"}},
		{ID: "kyc-001", Text: "Customer due diligence programs verify customer identity at account opening", Metadata: map[string]string{"content_category": "kyc"}},
	}
	for _, c := range chunks {
		require.NoError(t, idx.Add(c))
	}
	return idx
}

func TestBM25RanksMatchingChunksFirst(t *testing.T) {
	idx := buildTestIndex(t)

	hits, err := idx.Search("suspicious activity report", 4)
	require.NoError(t, err)
	require.NotEmpty(t, hits)

	assert.Equal(t, "sar-001", hits[0].Chunk.ID)
	for _, h := range hits {
		assert.Equal(t, MethodBM25, h.Method)
	}
}

func TestBM25DottedAcronymMatchesPlainQuery(t *testing.T) {
	idx := buildTestIndex(t)

	hits, err := idx.Search("SAR narrative", 4)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "sar-002", hits[0].Chunk.ID)
}

func TestBM25Deterministic(t *testing.T) {
	idx := buildTestIndex(t)

	first, err := idx.Search("suspicious report filing", 4)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := idx.Search("suspicious report filing", 4)
		require.NoError(t, err)
		require.Equal(t, len(first), len(again))
		for j := range first {
			assert.Equal(t, first[j].Chunk.ID, again[j].Chunk.ID)
			assert.Equal(t, first[j].Score, again[j].Score)
		}
	}
}

func TestBM25TiesBreakByChunkID(t *testing.T) {
	idx := NewBM25Index()
	// identical documents score identically, so ordering must come
	// from the id
	require.NoError(t, idx.Add(Chunk{ID: "b", Text: "structuring detection threshold"}))
	require.NoError(t, idx.Add(Chunk{ID: "a", Text: "structuring detection threshold"}))
	require.NoError(t, idx.Add(Chunk{ID: "c", Text: "structuring detection threshold"}))

	hits, err := idx.Search("structuring", 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "a", hits[0].Chunk.ID)
	assert.Equal(t, "b", hits[1].Chunk.ID)
	assert.Equal(t, "c", hits[2].Chunk.ID)
}

func TestBM25TopKTruncation(t *testing.T) {
	idx := buildTestIndex(t)

	hits, err := idx.Search("suspicious filing report customer", 2)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(hits), 2)
}

func TestBM25DuplicateIDRejected(t *testing.T) {
	idx := NewBM25Index()
	require.NoError(t, idx.Add(Chunk{ID: "x", Text: "one"}))
	err := idx.Add(Chunk{ID: "x", Text: "two"})
	assert.Error(t, err)
}

func TestBM25EmptyIndexErrors(t *testing.T) {
	idx := NewBM25Index()
	_, err := idx.Search("anything", 3)
	assert.Error(t, err)
}

func TestBM25NoMatchReturnsEmpty(t *testing.T) {
	idx := buildTestIndex(t)
	hits, err := idx.Search("zzzzz qqqqq", 3)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
