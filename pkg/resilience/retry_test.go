package resilience_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/B0LK13/obsidian-agent-sub005/pkg/logger"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/resilience"
)

func fastRetry(maxAttempts int, retryable ...string) *resilience.RetryPolicy {
	return resilience.NewRetryPolicy(resilience.RetryConfig{
		MaxAttempts:     maxAttempts,
		InitialDelay:    time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		Multiplier:      2,
		RetryableErrors: retryable,
		Logger:          logger.Nop(),
	})
}

var _ = Describe("Retry Policy", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("returns immediately on success", func() {
		calls := 0
		err := fastRetry(3).Do(ctx, func(_ context.Context) error {
			calls++
			return nil
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal(1))
	})

	It("attempts exactly maxAttempts times and surfaces the final error unchanged", func() {
		calls := 0
		err := fastRetry(4).Do(ctx, func(_ context.Context) error {
			calls++
			return fmt.Errorf("attempt %d: %w", calls, errProvider)
		})

		Expect(calls).To(Equal(4))
		Expect(err).To(MatchError(errProvider))
		Expect(err.Error()).To(Equal("attempt 4: provider unavailable"))
	})

	It("recovers when a later attempt succeeds", func() {
		calls := 0
		err := fastRetry(3).Do(ctx, func(_ context.Context) error {
			calls++
			if calls < 3 {
				return errProvider
			}
			return nil
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal(3))
	})

	It("aborts on the first non-retryable error when an allow-list is set", func() {
		calls := 0
		err := fastRetry(5, "timeout", "rate limit").Do(ctx, func(_ context.Context) error {
			calls++
			return errors.New("invalid api key")
		})

		Expect(err).To(HaveOccurred())
		Expect(calls).To(Equal(1))
	})

	It("keeps retrying errors that match the allow-list", func() {
		calls := 0
		err := fastRetry(3, "timeout").Do(ctx, func(_ context.Context) error {
			calls++
			return errors.New("connection TIMEOUT while embedding")
		})

		Expect(err).To(HaveOccurred())
		Expect(calls).To(Equal(3))
	})

	It("stops when the context is cancelled between attempts", func() {
		cancelled, cancel := context.WithCancel(ctx)
		calls := 0
		err := fastRetry(10).Do(cancelled, func(_ context.Context) error {
			calls++
			cancel()
			return errProvider
		})

		Expect(err).To(MatchError(context.Canceled))
		Expect(calls).To(Equal(1))
	})
})

var _ = Describe("Client", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("lets the retry loop exhaust before the breaker sees one failure", func() {
		breaker := resilience.NewBreaker(resilience.BreakerConfig{
			Name:             "completion",
			FailureThreshold: 2,
			Timeout:          time.Minute,
			Logger:           logger.Nop(),
		})
		client := resilience.NewClient(breaker, fastRetry(3))

		calls := 0
		err := client.Do(ctx, func(_ context.Context) error {
			calls++
			return errProvider
		})

		Expect(err).To(MatchError(errProvider))
		Expect(calls).To(Equal(3))
		Expect(client.Stats().ConsecutiveFailures).To(Equal(1))
		Expect(client.Stats().State).To(Equal(resilience.StateClosed))
	})

	It("fails fast once the breaker trips, without invoking the function", func() {
		breaker := resilience.NewBreaker(resilience.BreakerConfig{
			Name:             "completion",
			FailureThreshold: 1,
			Timeout:          time.Minute,
			Logger:           logger.Nop(),
		})
		client := resilience.NewClient(breaker, fastRetry(2))

		Expect(client.Do(ctx, failing)).To(MatchError(errProvider))

		calls := 0
		err := client.Do(ctx, func(_ context.Context) error {
			calls++
			return nil
		})

		Expect(err).To(MatchError(resilience.ErrCircuitOpen))
		Expect(calls).To(BeZero())
	})

	It("counts a recovered retry loop as one breaker success", func() {
		breaker := resilience.NewBreaker(resilience.BreakerConfig{
			Name:             "embedder",
			FailureThreshold: 2,
			Timeout:          time.Minute,
			Logger:           logger.Nop(),
		})
		client := resilience.NewClient(breaker, fastRetry(3))

		calls := 0
		err := client.Do(ctx, func(_ context.Context) error {
			calls++
			if calls < 2 {
				return errProvider
			}
			return nil
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(client.Stats().TotalSuccesses).To(Equal(int64(1)))
		Expect(client.Stats().TotalFailures).To(BeZero())
	})
})
