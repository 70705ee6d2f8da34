package search

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCorpus(t *testing.T) {
	corpus := strings.Join([]string{
		`{"id":"c1","text":"currency transaction report threshold","metadata":{"jurisdiction":"US"}}`,
		``,
		`{"id":"c2","text":"suspicious activity report deadline","metadata":{"source_agency":"FinCEN"}}`,
	}, "\n")

	idx := NewBM25Index()
	n, err := ReadCorpus(context.Background(), strings.NewReader(corpus), idx, nil, "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, idx.Size())

	hits, err := idx.Search("suspicious activity", 2)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "c2", hits[0].Chunk.ID)
	assert.Equal(t, "FinCEN", hits[0].Chunk.Metadata["source_agency"])
}

func TestReadCorpusRejectsMissingID(t *testing.T) {
	idx := NewBM25Index()
	_, err := ReadCorpus(context.Background(), strings.NewReader(`{"text":"no id"}`), idx, nil, "")
	assert.Error(t, err)
}

func TestReadCorpusRejectsBadJSON(t *testing.T) {
	idx := NewBM25Index()
	_, err := ReadCorpus(context.Background(), strings.NewReader(`{not json`), idx, nil, "")
	assert.Error(t, err)
}
