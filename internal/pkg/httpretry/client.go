// Package httpretry wraps outbound HTTP calls with bounded retries and
// jittered exponential backoff.
package httpretry

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/ignite/newsletter/internal/pkg/logger"
)

// HTTPDoer executes HTTP requests. *http.Client and *RetryClient both
// satisfy it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// errBodyNotReplayable stops retries for requests whose body cannot be rewound.
var errBodyNotReplayable = errors.New("httpretry: request body cannot be replayed")

// RetryClient resends a request on transport errors and on 429/5xx gateway
// statuses. The final response is returned untouched so callers can inspect it.
type RetryClient struct {
	client     HTTPDoer
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// NewRetryClient wraps client, or a 30s http.Client when nil. maxRetries
// counts attempts after the first; zero or less means a single send.
func NewRetryClient(client HTTPDoer, maxRetries int) *RetryClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &RetryClient{
		client:     client,
		maxRetries: max(maxRetries, 0),
		baseDelay:  time.Second,
		maxDelay:   30 * time.Second,
	}
}

// SetBackoff overrides the base and maximum backoff delays.
func (rc *RetryClient) SetBackoff(base, maxDelay time.Duration) {
	if base > 0 {
		rc.baseDelay = base
	}
	if maxDelay >= rc.baseDelay {
		rc.maxDelay = maxDelay
	}
}

func (rc *RetryClient) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	log := logger.FromContext(ctx)

	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, firstNonNil(lastErr, err)
		}

		resp, err := rc.client.Do(req)
		retryable := err != nil || isRetryableStatus(resp.StatusCode)
		if !retryable || attempt == rc.maxRetries || ctx.Err() != nil {
			return resp, err
		}

		delay := rc.calculateDelay(attempt + 1)
		if err != nil {
			lastErr = err
		} else {
			delay = max(delay, retryAfter(resp))
			drain(resp)
			lastErr = fmt.Errorf("httpretry: server returned retryable status %d", resp.StatusCode)
		}

		if err := rewind(req); err != nil {
			return nil, fmt.Errorf("%w: %w", err, lastErr)
		}

		log.Warn("httpretry: retrying request",
			"attempt", attempt+1, "max_retries", rc.maxRetries,
			"method", req.Method, "host", req.URL.Host, "delay", delay, "error", lastErr)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, lastErr
		}
	}
}

// rewind resets req.Body for another send.
func rewind(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody {
		return nil
	}
	if req.GetBody == nil {
		return errBodyNotReplayable
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("httpretry: reset request body: %w", err)
	}
	req.Body = body
	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// retryAfter reads a Retry-After header given in seconds.
func retryAfter(resp *http.Response) time.Duration {
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func firstNonNil(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// calculateDelay is full-jitter exponential backoff:
// random(0, min(maxDelay, baseDelay * 2^(attempt-1))), floored at
// min(100ms, baseDelay).
func (rc *RetryClient) calculateDelay(attempt int) time.Duration {
	ceiling := rc.maxDelay
	if shift := attempt - 1; shift < 32 {
		ceiling = min(rc.baseDelay<<shift, rc.maxDelay)
	}
	floor := min(100*time.Millisecond, rc.baseDelay)
	return max(time.Duration(rand.Int63n(int64(ceiling)+1)), floor)
}

func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
