package httpclient

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	c := New()
	if c.maxRetries != 1 {
		t.Errorf("expected maxRetries=1, got %d", c.maxRetries)
	}
	if c.baseDelay != 200*time.Millisecond {
		t.Errorf("expected baseDelay=200ms, got %v", c.baseDelay)
	}
	if c.strategyFunc == nil {
		t.Error("expected a default retry strategy")
	}
}

func TestOptionsOverrideDefaults(t *testing.T) {
	custom := &http.Client{Timeout: 5 * time.Second}
	c := New(
		WithHTTPClient(custom),
		WithMaxRetries(3),
		WithBaseDelay(10*time.Millisecond),
		WithMaxDelay(50*time.Millisecond),
	)
	if c.client != custom {
		t.Error("expected the custom http client")
	}
	if c.maxRetries != 3 {
		t.Errorf("expected maxRetries=3, got %d", c.maxRetries)
	}
}

func TestDoSucceedsWithoutRetry(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := New().Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Errorf("expected 1 call, got %d", got)
	}
}

func TestDoRetriesServerErrors(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(WithMaxRetries(2), WithBaseDelay(time.Millisecond))
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if got := atomic.LoadInt64(&calls); got != 2 {
		t.Errorf("expected 2 calls, got %d", got)
	}
}

func TestDoFailsFastOnClientError(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(WithMaxRetries(3), WithBaseDelay(time.Millisecond))
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := c.Do(req)
	if resp == nil {
		t.Fatal("expected the response alongside the error")
	}
	defer resp.Body.Close()

	if err == nil {
		t.Fatal("expected an error for HTTP 404")
	}
	if IsRetryable(err) {
		t.Error("404 must not be marked retryable")
	}
	if StatusCode(err) != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", StatusCode(err))
	}
	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Errorf("expected exactly 1 call, got %d", got)
	}
}

func TestDoExhaustsRetryBudget(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(WithMaxRetries(2), WithBaseDelay(time.Millisecond))
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := c.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}

	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	if !IsRetryable(err) {
		t.Error("503 must stay marked retryable for callers with their own budget")
	}
	if got := atomic.LoadInt64(&calls); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestDoHonorsRetryAfter(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(WithMaxRetries(1), WithBaseDelay(time.Millisecond), WithMaxDelay(0))
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)

	start := time.Now()
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if elapsed := time.Since(start); elapsed < time.Second {
		t.Errorf("expected the retry to wait out Retry-After, waited %v", elapsed)
	}
}

func TestDoReplaysRequestBody(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := new(bytes.Buffer)
		if _, err := buf.ReadFrom(r.Body); err != nil || buf.String() != "payload" {
			t.Errorf("attempt %d: body = %q, err = %v", atomic.LoadInt64(&calls), buf.String(), err)
		}
		if atomic.AddInt64(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(WithMaxRetries(1), WithBaseDelay(time.Millisecond))
	req, _ := http.NewRequest(http.MethodPost, srv.URL, bytes.NewReader([]byte("payload")))
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if got := atomic.LoadInt64(&calls); got != 2 {
		t.Errorf("expected 2 attempts, got %d", got)
	}
}

func TestDoAbortsBackoffOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := New(WithMaxRetries(1), WithMaxDelay(0))
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)

	start := time.Now()
	resp, _ := c.Do(req)
	if resp != nil {
		resp.Body.Close()
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("cancelled context must cut the backoff short, waited %v", elapsed)
	}
}

func TestRetryableErrorUnwrap(t *testing.T) {
	inner := errors.New("connection reset")
	err := &RetryableError{Message: "transport failure", Err: inner}
	if !errors.Is(err, inner) {
		t.Error("expected Unwrap to expose the inner error")
	}
	if StatusCode(err) != 0 {
		t.Errorf("transport errors carry no status, got %d", StatusCode(err))
	}
}

func TestDefaultRetryStrategy(t *testing.T) {
	cases := map[int]RetryStrategy{
		http.StatusTooManyRequests:     SmartRetry,
		http.StatusServiceUnavailable:  SmartRetry,
		http.StatusBadGateway:          ConservativeRetry,
		http.StatusGatewayTimeout:      ConservativeRetry,
		http.StatusInternalServerError: ConservativeRetry,
		http.StatusBadRequest:          NoRetry,
		http.StatusUnauthorized:        NoRetry,
		http.StatusNotFound:            NoRetry,
	}
	for status, want := range cases {
		if got := DefaultRetryStrategy(status); got != want {
			t.Errorf("status %d: expected strategy %v, got %v", status, want, got)
		}
	}
}
