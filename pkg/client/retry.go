package client

import (
	"context"
	"net/http"
	"time"
)

// RetryPolicy decides whether a request should be retried.
type RetryPolicy interface {
	ShouldRetry(resp *http.Response, err error) (bool, time.Duration)
}

// RetryPolicyFunc adapts a function to the RetryPolicy interface.
type RetryPolicyFunc func(resp *http.Response, err error) (bool, time.Duration)

// ShouldRetry implements the RetryPolicy interface.
func (fn RetryPolicyFunc) ShouldRetry(resp *http.Response, err error) (bool, time.Duration) {
	return fn(resp, err)
}

// NewRetryPolicy retries transport errors, 429 and 5xx responses. The delay
// grows linearly with the attempt number.
func NewRetryPolicy(delay time.Duration) RetryPolicy {
	return RetryPolicyFunc(func(resp *http.Response, err error) (bool, time.Duration) {
		switch {
		case err != nil:
			return true, delay
		case resp.StatusCode == http.StatusTooManyRequests:
			return true, delay
		case resp.StatusCode >= 500:
			return true, delay
		default:
			return false, 0
		}
	})
}

// DefaultRetryPolicy retries on temporary network errors and server errors with linear backoff.
var DefaultRetryPolicy = NewRetryPolicy(500 * time.Millisecond)

func (f *Fetcher) retry(ctx context.Context, fn func() (*http.Response, error)) (*http.Response, error) {
	policy := f.retryPolicy
	if policy == nil {
		return fn()
	}
	var attempt int
	for {
		resp, err := fn()
		retry, delay := policy.ShouldRetry(resp, err)
		if !retry || attempt >= f.maxRetries || ctx.Err() != nil {
			return resp, err
		}
		if resp != nil {
			resp.Body.Close()
		}
		attempt++
		if f.logger != nil {
			f.logger.Debugf("fetch: retry %d/%d after %s", attempt, f.maxRetries, delay*time.Duration(attempt))
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay * time.Duration(attempt)):
		}
	}
}
