package resilience_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/B0LK13/obsidian-agent-sub005/pkg/logger"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/resilience"
)

var errProvider = errors.New("provider unavailable")

func failing(_ context.Context) error { return errProvider }
func succeeding(_ context.Context) error { return nil }

var _ = Describe("Circuit Breaker", func() {
	var (
		ctx     context.Context
		breaker *resilience.Breaker
	)

	const (
		failureThreshold = 3
		successThreshold = 2
		timeout          = 50 * time.Millisecond
	)

	BeforeEach(func() {
		ctx = context.Background()
		breaker = resilience.NewBreaker(resilience.BreakerConfig{
			Name:             "embedder",
			FailureThreshold: failureThreshold,
			SuccessThreshold: successThreshold,
			Timeout:          timeout,
			Logger:           logger.Nop(),
		})
	})

	trip := func() {
		for range failureThreshold {
			Expect(breaker.Do(ctx, failing)).To(MatchError(errProvider))
		}
		Expect(breaker.Stats().State).To(Equal(resilience.StateOpen))
	}

	It("starts closed", func() {
		Expect(breaker.Stats().State).To(Equal(resilience.StateClosed))
	})

	It("opens after exactly failureThreshold consecutive failures", func() {
		for range failureThreshold - 1 {
			Expect(breaker.Do(ctx, failing)).To(MatchError(errProvider))
			Expect(breaker.Stats().State).To(Equal(resilience.StateClosed))
		}

		Expect(breaker.Do(ctx, failing)).To(MatchError(errProvider))
		Expect(breaker.Stats().State).To(Equal(resilience.StateOpen))
	})

	It("fails fast without invoking the wrapped function while open", func() {
		trip()

		invoked := false
		err := breaker.Do(ctx, func(_ context.Context) error {
			invoked = true
			return nil
		})

		Expect(err).To(MatchError(resilience.ErrCircuitOpen))
		Expect(invoked).To(BeFalse())
	})

	It("returns a circuit-open error distinct from the wrapped error", func() {
		trip()

		err := breaker.Do(ctx, failing)
		Expect(errors.Is(err, resilience.ErrCircuitOpen)).To(BeTrue())
		Expect(errors.Is(err, errProvider)).To(BeFalse())

		var coe resilience.CircuitOpenError
		Expect(errors.As(err, &coe)).To(BeTrue())
		Expect(coe.Name).To(Equal("embedder"))
	})

	It("resets the failure streak on success while closed", func() {
		for range failureThreshold - 1 {
			Expect(breaker.Do(ctx, failing)).To(HaveOccurred())
		}
		Expect(breaker.Do(ctx, succeeding)).To(Succeed())
		Expect(breaker.Stats().ConsecutiveFailures).To(BeZero())

		// A fresh streak is needed to trip.
		for range failureThreshold - 1 {
			Expect(breaker.Do(ctx, failing)).To(HaveOccurred())
		}
		Expect(breaker.Stats().State).To(Equal(resilience.StateClosed))
	})

	It("probes half-open after the timeout and closes after successThreshold successes", func() {
		trip()
		time.Sleep(timeout + 10*time.Millisecond)

		Expect(breaker.Do(ctx, succeeding)).To(Succeed())
		Expect(breaker.Stats().State).To(Equal(resilience.StateHalfOpen))

		Expect(breaker.Do(ctx, succeeding)).To(Succeed())
		Expect(breaker.Stats().State).To(Equal(resilience.StateClosed))
		Expect(breaker.Stats().ConsecutiveFailures).To(BeZero())
	})

	It("reopens immediately on a failure while half-open", func() {
		trip()
		time.Sleep(timeout + 10*time.Millisecond)

		Expect(breaker.Do(ctx, failing)).To(MatchError(errProvider))
		Expect(breaker.Stats().State).To(Equal(resilience.StateOpen))
	})

	It("tracks lifetime totals and timestamps", func() {
		Expect(breaker.Do(ctx, succeeding)).To(Succeed())
		Expect(breaker.Do(ctx, failing)).To(HaveOccurred())

		stats := breaker.Stats()
		Expect(stats.TotalSuccesses).To(Equal(int64(1)))
		Expect(stats.TotalFailures).To(Equal(int64(1)))
		Expect(stats.LastSuccess).NotTo(BeZero())
		Expect(stats.LastFailure).NotTo(BeZero())
	})
})
