package resilience

import "context"

// Client composes a circuit breaker around a retry policy.
//
// The breaker check happens once per external call; if the circuit is
// closed, the retry policy may attempt the call several times, and the
// breaker sees one aggregate success or failure based on the retry loop's
// final outcome. This prevents retries from masking a systemically broken
// dependency while still absorbing brief blips within a single logical call.
type Client struct {
	breaker *Breaker
	retry   *RetryPolicy
}

// NewClient creates a resilient client from a breaker and retry policy.
func NewClient(breaker *Breaker, retry *RetryPolicy) *Client {
	return &Client{breaker: breaker, retry: retry}
}

// Do runs fn under the breaker and, inside it, the retry policy.
func (c *Client) Do(ctx context.Context, fn func(context.Context) error) error {
	return c.breaker.Do(ctx, func(ctx context.Context) error {
		return c.retry.Do(ctx, fn)
	})
}

// Stats returns the underlying breaker's stats snapshot.
func (c *Client) Stats() BreakerStats {
	return c.breaker.Stats()
}
