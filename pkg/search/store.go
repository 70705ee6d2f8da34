package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ovokpus/investigator/pkg/cache"
	"github.com/ovokpus/investigator/pkg/observability"
)

// DefaultSearchTimeout bounds one hybrid search end to end, including
// the query embedding call on the dense leg.
const DefaultSearchTimeout = 2 * time.Second

// RetrievalError marks a degraded search: the store returned no hits
// because the dense leg failed, but the investigation must continue.
type RetrievalError struct {
	Err error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval degraded: %v", e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// Store routes queries between the BM25 and dense legs.
//
// With method auto, BM25 answers whenever it returns at least one hit;
// otherwise the dense leg runs and its hits are tagged fallback. BM25
// errors degrade to dense; dense errors produce empty hits plus a
// RetrievalError the caller records without aborting.
type Store struct {
	bm25    *BM25Index
	dense   *DenseSearcher
	method  Method
	store   cache.Store
	timeout time.Duration
	logger  *slog.Logger
}

type StoreOption func(*Store)

func WithCache(store cache.Store) StoreOption {
	return func(s *Store) { s.store = store }
}

func WithTimeout(d time.Duration) StoreOption {
	return func(s *Store) { s.timeout = d }
}

func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = logger }
}

func NewStore(bm25 *BM25Index, dense *DenseSearcher, method Method, opts ...StoreOption) *Store {
	s := &Store{
		bm25:    bm25,
		dense:   dense,
		method:  method,
		timeout: DefaultSearchTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ChunkCount reports the size of the BM25 corpus, used by /health.
func (s *Store) ChunkCount() int {
	if s.bm25 == nil {
		return 0
	}
	return s.bm25.Size()
}

func (s *Store) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	tracer := observability.GetTracer("search")
	ctx, span := tracer.Start(ctx, observability.SpanVectorSearch)
	defer span.End()
	span.SetAttributes(attribute.String("retrieval.method", string(s.method)))

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if hits, ok := s.cachedHits(ctx, query, k); ok {
		span.SetAttributes(attribute.Bool(observability.AttrCacheHit, true))
		return hits, nil
	}

	hits, err := s.search(ctx, query, k)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieval degraded")
		return hits, err
	}

	s.storeHits(ctx, query, k, hits)
	span.SetAttributes(attribute.Int("retrieval.hits", len(hits)))
	return hits, nil
}

func (s *Store) search(ctx context.Context, query string, k int) ([]Hit, error) {
	switch s.method {
	case MethodBM25:
		hits, err := s.bm25Search(query, k)
		if err != nil {
			return nil, &RetrievalError{Err: err}
		}
		return hits, nil

	case MethodDense:
		return s.denseSearch(ctx, query, k)

	default: // auto
		hits, err := s.bm25Search(query, k)
		if err == nil && len(hits) > 0 {
			return hits, nil
		}
		if err != nil {
			s.logger.Warn("BM25 search failed, falling back to dense", "error", err)
		}

		denseHits, denseErr := s.denseSearch(ctx, query, k)
		if denseErr != nil {
			return nil, denseErr
		}
		for i := range denseHits {
			denseHits[i].Method = MethodFallback
		}
		return denseHits, nil
	}
}

func (s *Store) bm25Search(query string, k int) ([]Hit, error) {
	if s.bm25 == nil {
		return nil, fmt.Errorf("BM25 index is not initialized")
	}
	return s.bm25.Search(query, k)
}

func (s *Store) denseSearch(ctx context.Context, query string, k int) ([]Hit, error) {
	if s.dense == nil {
		return nil, &RetrievalError{Err: fmt.Errorf("dense retrieval is not configured")}
	}
	hits, err := s.dense.Search(ctx, query, k)
	if err != nil {
		s.logger.Warn("dense search failed", "error", err)
		return nil, &RetrievalError{Err: err}
	}
	return hits, nil
}

func (s *Store) cacheKey(query string, k int) string {
	return cache.Key(cache.CategoryVectorSearch, map[string]string{
		"query":  query,
		"k":      fmt.Sprintf("%d", k),
		"method": string(s.method),
	})
}

func (s *Store) cachedHits(ctx context.Context, query string, k int) ([]Hit, bool) {
	if s.store == nil {
		return nil, false
	}
	raw, ok := s.store.Get(ctx, s.cacheKey(query, k))
	if !ok {
		return nil, false
	}
	var hits []Hit
	if err := json.Unmarshal(raw, &hits); err != nil {
		return nil, false
	}
	return hits, true
}

func (s *Store) storeHits(ctx context.Context, query string, k int, hits []Hit) {
	if s.store == nil {
		return
	}
	raw, err := json.Marshal(hits)
	if err != nil {
		return
	}
	s.store.Set(ctx, s.cacheKey(query, k), raw, cache.DefaultTTLs[cache.CategoryVectorSearch])
}
