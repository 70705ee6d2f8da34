// Package httpclient wraps net/http with bounded retries for the external
// providers the tools and the LLM gateway talk to. Retry policy is
// per-status: rate limits honor Retry-After, server errors get a short
// exponential backoff, everything else fails fast.
package httpclient

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"
)

type RetryStrategy int

const (
	NoRetry RetryStrategy = iota
	ConservativeRetry
	SmartRetry
)

// RetryStrategyFunc maps an HTTP status code to a retry strategy.
type RetryStrategyFunc func(int) RetryStrategy

type Client struct {
	client       *http.Client
	maxRetries   int
	baseDelay    time.Duration
	maxDelay     time.Duration
	strategyFunc RetryStrategyFunc
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

func WithMaxRetries(max int) Option {
	return func(c *Client) {
		c.maxRetries = max
	}
}

func WithBaseDelay(delay time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = delay
	}
}

// WithMaxDelay caps the computed backoff between attempts.
func WithMaxDelay(delay time.Duration) Option {
	return func(c *Client) {
		c.maxDelay = delay
	}
}

func WithRetryStrategy(strategyFunc RetryStrategyFunc) Option {
	return func(c *Client) {
		c.strategyFunc = strategyFunc
	}
}

func New(opts ...Option) *Client {
	client := &Client{
		client:       &http.Client{Timeout: 15 * time.Second},
		maxRetries:   1,
		baseDelay:    200 * time.Millisecond,
		maxDelay:     2 * time.Second,
		strategyFunc: DefaultRetryStrategy,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

func DefaultRetryStrategy(statusCode int) RetryStrategy {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusServiceUnavailable:
		return SmartRetry
	case http.StatusRequestTimeout,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusGatewayTimeout:
		return ConservativeRetry
	default:
		return NoRetry
	}
}

// Do executes the request with the configured retry policy. The response of
// the last attempt is returned alongside any error so callers can inspect
// status codes.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var err error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 && req.GetBody != nil {
			body, bodyErr := req.GetBody()
			if bodyErr != nil {
				return nil, &RetryableError{
					Message: "failed to recreate request body for retry",
					Err:     bodyErr,
				}
			}
			req.Body = body
		}

		resp, err = c.client.Do(req)
		if err != nil {
			// Transport-level failure gets the same short backoff as a
			// conservative server error.
			if attempt < c.maxRetries {
				c.sleep(req, c.delay(ConservativeRetry, attempt, nil))
				continue
			}
			return nil, err
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		strategy := c.strategyFunc(resp.StatusCode)
		if strategy == NoRetry || attempt >= c.maxRetries {
			return resp, &RetryableError{
				StatusCode: resp.StatusCode,
				Message:    http.StatusText(resp.StatusCode),
				Retryable:  strategy != NoRetry,
			}
		}

		delay := c.delay(strategy, attempt, resp)
		slog.Debug("Retrying HTTP request",
			"url", req.URL.String(),
			"status", resp.StatusCode,
			"attempt", attempt+1,
			"delay", delay)
		resp.Body.Close()
		c.sleep(req, delay)
	}

	return resp, err
}

func (c *Client) delay(strategy RetryStrategy, attempt int, resp *http.Response) time.Duration {
	var delay time.Duration

	switch strategy {
	case SmartRetry:
		if resp != nil {
			if after := parseRetryAfter(resp.Header); after > 0 {
				delay = after
				break
			}
		}
		delay = time.Duration(math.Pow(2, float64(attempt))) * c.baseDelay
	case ConservativeRetry:
		delay = time.Duration(math.Pow(2, float64(attempt))) * c.baseDelay
	default:
		return 0
	}

	if c.maxDelay > 0 && delay > c.maxDelay {
		delay = c.maxDelay
	}
	return delay
}

func (c *Client) sleep(req *http.Request, delay time.Duration) {
	if delay <= 0 {
		return
	}
	select {
	case <-req.Context().Done():
	case <-time.After(delay):
	}
}

func parseRetryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
