package seclai

import (
	"context"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// maxRetryAfter caps a server-requested wait.
const maxRetryAfter = time.Hour

// shouldRetry reports whether a response status is transient: 429 or 5xx.
func shouldRetry(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		(statusCode >= 500 && statusCode <= 599)
}

// parseRetryAfter reads a Retry-After value given either as delay seconds
// or as an HTTP date. Unusable values yield 0.
func parseRetryAfter(v string) time.Duration {
	switch secs, err := strconv.Atoi(v); {
	case v == "":
		return 0
	case err == nil:
		if secs <= 0 {
			return 0
		}
		return min(time.Duration(secs)*time.Second, maxRetryAfter)
	}

	at, err := http.ParseTime(v)
	if err != nil {
		return 0
	}
	return min(max(time.Until(at), 0), maxRetryAfter)
}

// doWithRetry sends the request built by makeRequest until it succeeds, a
// non-transient status comes back, or the policy is exhausted. makeRequest
// is called once per attempt so bodies can be replayed.
func (c *Client) doWithRetry(ctx context.Context, makeRequest func() (*http.Request, error)) (*http.Response, error) {
	backoff := c.retryPolicy.InitialDelay

	for attempt := 1; ; attempt++ {
		req, err := makeRequest()
		if err != nil {
			return nil, err
		}
		last := attempt > c.retryPolicy.MaxRetries

		resp, err := c.httpClient.Do(req)
		var wait time.Duration
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil && last:
			return nil, err
		case err != nil:
			wait = backoff
			c.logger.Debug("request failed, retrying",
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err))
		case last || !shouldRetry(resp.StatusCode):
			return resp, nil
		default:
			// jittered backoff, unless the server asked for longer
			wait = max(rand.N(max(backoff, 0)+1), parseRetryAfter(resp.Header.Get(headerRetryAfter)))
			c.metrics.observeRequest(req.Method, resp.StatusCode)
			resp.Body.Close()
			c.logger.Debug("transient status, retrying",
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait))
		}

		if err := sleepCtx(ctx, wait); err != nil {
			return nil, err
		}
		backoff = nextDelay(backoff, c.retryPolicy)
	}
}

// nextDelay grows d by the policy multiplier, capped at MaxDelay.
func nextDelay(d time.Duration, p RetryPolicy) time.Duration {
	next := time.Duration(float64(d) * p.Multiplier)
	if p.MaxDelay > 0 {
		next = min(next, p.MaxDelay)
	}
	return next
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
