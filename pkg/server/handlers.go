package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ovokpus/investigator/pkg/cache"
	"github.com/ovokpus/investigator/pkg/investigation"
	"github.com/ovokpus/investigator/pkg/llms"
	"github.com/ovokpus/investigator/pkg/search"
)

const maxRequestBody = 1 << 20

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func decodeInput(r *http.Request) (investigation.TransactionInput, error) {
	var input investigation.TransactionInput
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&input); err != nil {
		return input, err
	}
	return input, nil
}

// statusForFailure maps a terminal investigation error onto the
// response code: 413 context overflow, 429 provider rate limit, 504
// deadline or cancellation, 503 any other provider failure.
func statusForFailure(invErr *investigation.InvestigationError) int {
	switch llms.ErrorKind(invErr.Kind) {
	case llms.ErrorContextOverflow:
		return http.StatusRequestEntityTooLarge
	case llms.ErrorCancelled:
		return http.StatusGatewayTimeout
	}
	msg := strings.ToLower(invErr.Message)
	if strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") {
		return http.StatusTooManyRequests
	}
	return http.StatusServiceUnavailable
}

func (s *Server) handleInvestigate(w http.ResponseWriter, r *http.Request) {
	input, err := decodeInput(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed transaction input: "+err.Error())
		return
	}

	inv, err := s.deps.Orchestrator.Run(r.Context(), input)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	status := http.StatusOK
	if inv.Status == investigation.StatusFailed && inv.Error != nil {
		status = statusForFailure(inv.Error)
	}
	s.writeJSON(w, status, inv)
}

func (s *Server) handleInvestigateStream(w http.ResponseWriter, r *http.Request) {
	input, err := decodeInput(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed transaction input: "+err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	h, err := s.deps.Orchestrator.Start(r.Context(), input)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, cancel := s.deps.Orchestrator.Subscribe(h.ID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case ev, open := <-events:
			if !open {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Warn("failed to encode progress event", "error", err)
				continue
			}
			if _, err := w.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

type searchHitResponse struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Score    float64           `json:"score"`
	Method   string            `json:"method"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.deps.Search == nil {
		s.writeError(w, http.StatusServiceUnavailable, "vector store not initialized")
		return
	}

	query := r.URL.Query().Get("query")
	if query == "" {
		s.writeError(w, http.StatusBadRequest, "query parameter is required")
		return
	}
	maxResults := queryInt(r.URL.Query(), "max_results", 5)

	hits, err := s.deps.Search.Search(r.Context(), query, maxResults)
	if err != nil {
		var re *search.RetrievalError
		if errors.As(err, &re) {
			s.writeError(w, http.StatusServiceUnavailable, "retrieval degraded: "+re.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]searchHitResponse, 0, len(hits))
	for _, h := range hits {
		out = append(out, searchHitResponse{
			ID:       h.Chunk.ID,
			Content:  h.Chunk.Text,
			Score:    h.Score,
			Method:   string(h.Method),
			Metadata: h.Chunk.Metadata,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"query":   query,
		"results": out,
	})
}

// toolHandler adapts a registered tool to a GET endpoint. The args
// builder translates query parameters into tool arguments.
func (s *Server) toolHandler(toolName string, buildArgs func(url.Values) (map[string]interface{}, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		args, err := buildArgs(r.URL.Query())
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		result, _ := s.deps.Registry.ExecuteTool(r.Context(), toolName, args)
		if !result.Success {
			status := http.StatusServiceUnavailable
			if strings.Contains(result.Error, "invalid arguments") {
				status = http.StatusBadRequest
			}
			s.writeJSON(w, status, result)
			return
		}
		s.writeJSON(w, http.StatusOK, result)
	}
}

func webSearchArgs(q url.Values) (map[string]interface{}, error) {
	query := q.Get("query")
	if query == "" {
		return nil, errors.New("query parameter is required")
	}
	return map[string]interface{}{
		"query":       query,
		"max_results": float64(queryInt(q, "max_results", 5)),
	}, nil
}

func arxivSearchArgs(q url.Values) (map[string]interface{}, error) {
	query := q.Get("query")
	if query == "" {
		return nil, errors.New("query parameter is required")
	}
	return map[string]interface{}{
		"query":       query,
		"max_results": float64(queryInt(q, "max_results", 3)),
	}, nil
}

func exchangeRateArgs(q url.Values) (map[string]interface{}, error) {
	from := q.Get("from")
	to := q.Get("to")
	if from == "" || to == "" {
		return nil, errors.New("from and to parameters are required")
	}
	args := map[string]interface{}{
		"from_currency": from,
		"to_currency":   to,
	}
	if amount, err := strconv.ParseFloat(q.Get("amount"), 64); err == nil && amount > 0 {
		args["amount"] = amount
	}
	return args, nil
}

func queryInt(q url.Values, key string, fallback int) int {
	if n, err := strconv.Atoi(q.Get(key)); err == nil && n > 0 {
		return n
	}
	return fallback
}

type healthResponse struct {
	Status                 string `json:"status"`
	CacheAvailable         bool   `json:"cache_available"`
	VectorStoreInitialized bool   `json:"vector_store_initialized"`
	LLMAvailable           bool   `json:"llm_available"`
	CorpusChunks           int    `json:"corpus_chunks"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}

	if s.deps.Cache != nil && s.deps.Cache.Ping(r.Context()) == nil {
		resp.CacheAvailable = true
	}
	if s.deps.Search != nil {
		resp.CorpusChunks = s.deps.Search.ChunkCount()
		resp.VectorStoreInitialized = resp.CorpusChunks > 0
	}
	if s.deps.LLMReady != nil {
		resp.LLMAvailable = s.deps.LLMReady()
	}

	status := http.StatusOK
	if !resp.LLMAvailable {
		resp.Status = "degraded"
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Cache == nil {
		s.writeError(w, http.StatusServiceUnavailable, "cache disabled")
		return
	}
	stats := s.deps.Cache.Stats(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"stats":     stats,
		"hit_ratio": stats.HitRatio(),
	})
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if s.deps.Cache == nil {
		s.writeError(w, http.StatusServiceUnavailable, "cache disabled")
		return
	}

	category := cache.Category(chi.URLParam(r, "category"))
	if category != "" {
		known := false
		for _, c := range cache.Categories() {
			if c == category {
				known = true
				break
			}
		}
		if !known {
			s.writeError(w, http.StatusBadRequest, "unknown cache category: "+string(category))
			return
		}
	}

	if err := s.deps.Cache.Clear(r.Context(), category); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"cleared": string(category),
	})
}
