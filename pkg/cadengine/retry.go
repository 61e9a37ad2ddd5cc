package cadengine

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"
)

// retryConfig bounds the retry loop.
type retryConfig struct {
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// shouldRetry reports whether a status is worth another attempt. Only rate
// limiting and gateway trouble qualify: the conversion pipeline never
// retries, so conversion failures (400/422/500) pass straight through.
func shouldRetry(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// backoffFor is initialBackoff * 2^attempt, capped at maxBackoff.
func backoffFor(attempt int, cfg retryConfig) time.Duration {
	backoff := float64(cfg.initialBackoff) * math.Pow(2, float64(attempt))
	if backoff > float64(cfg.maxBackoff) {
		backoff = float64(cfg.maxBackoff)
	}
	return time.Duration(backoff)
}

// doWithRetry builds and sends a request, retrying retryable statuses and
// transport errors with exponential backoff. The returned response's body
// is open; the caller owns it.
func (c *Client) doWithRetry(ctx context.Context, build func() (*http.Request, error)) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.retry.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		req, err := build()
		if err != nil {
			return nil, fmt.Errorf("cadengine: build request: %w", err)
		}
		c.authorize(req)

		resp, err := c.httpClient.Do(req)
		if err == nil && !shouldRetry(resp.StatusCode) {
			return resp, nil
		}

		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)
			resp.Body.Close()
		}

		if attempt == c.retry.maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoffFor(attempt, c.retry)):
		}
	}

	return nil, fmt.Errorf("cadengine: request failed after %d retries: %w", c.retry.maxRetries, lastErr)
}
