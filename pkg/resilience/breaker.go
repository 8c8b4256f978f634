package resilience

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// State is the circuit breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// BreakerConfig holds configuration for a circuit breaker. One breaker
// instance guards one named external dependency.
type BreakerConfig struct {
	// Name identifies the guarded dependency in errors and logs.
	Name string

	// FailureThreshold is the number of consecutive failures that trips the
	// breaker from closed to open. Defaults to 5.
	FailureThreshold int

	// SuccessThreshold is the number of consecutive successes in half-open
	// that closes the breaker. Defaults to 2.
	SuccessThreshold int

	// Timeout is how long the breaker stays open before a call is allowed
	// through to probe the dependency. Defaults to 30s.
	Timeout time.Duration

	// Logger receives state transition logs.
	Logger *slog.Logger
}

// BreakerStats is a snapshot of breaker state and counters.
type BreakerStats struct {
	Name                 string    `json:"name"`
	State                State     `json:"state"`
	ConsecutiveFailures  int       `json:"consecutive_failures"`
	ConsecutiveSuccesses int       `json:"consecutive_successes"`
	TotalFailures        int64     `json:"total_failures"`
	TotalSuccesses       int64     `json:"total_successes"`
	LastFailure          time.Time `json:"last_failure,omitzero"`
	LastSuccess          time.Time `json:"last_success,omitzero"`
}

// Breaker is a three-state circuit breaker.
//
// closed -> open after FailureThreshold consecutive failures. The failure
// streak is not reset by the trip itself, only by a later successful close.
// open -> half-open when a call arrives after Timeout has elapsed since the
// last failure; earlier calls fail fast with CircuitOpenError without
// invoking the wrapped function. half-open -> closed after SuccessThreshold
// consecutive successes; any single failure while half-open reopens the
// circuit. A success in closed state resets the failure streak (sliding
// tolerance, not a fixed window).
type Breaker struct {
	cfg    BreakerConfig
	logger *slog.Logger
	now    func() time.Time

	mu              sync.Mutex
	state           State
	consecFailures  int
	consecSuccesses int
	totalFailures   int64
	totalSuccesses  int64
	lastFailure     time.Time
	lastSuccess     time.Time
}

// NewBreaker creates a circuit breaker in the closed state.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Name == "" {
		cfg.Name = "default"
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	lg := cfg.Logger
	if lg == nil {
		lg = slog.Default()
	}

	return &Breaker{
		cfg:    cfg,
		logger: lg,
		now:    time.Now,
		state:  StateClosed,
	}
}

// Do runs fn under the breaker. If the circuit is open and the timeout has
// not elapsed, fn is not invoked and a CircuitOpenError is returned.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}

	err := fn(ctx)
	b.record(err == nil)
	return err
}

// allow checks whether a call may proceed, transitioning open -> half-open
// when the timeout has elapsed.
func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return nil
	}

	if b.now().Sub(b.lastFailure) < b.cfg.Timeout {
		return CircuitOpenError{Name: b.cfg.Name}
	}

	b.transition(StateHalfOpen)
	b.consecSuccesses = 0
	return nil
}

// record applies one aggregate call outcome to the state machine.
func (b *Breaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		b.totalSuccesses++
		b.lastSuccess = b.now()
		b.consecSuccesses++

		switch b.state {
		case StateClosed:
			b.consecFailures = 0
		case StateHalfOpen:
			if b.consecSuccesses >= b.cfg.SuccessThreshold {
				b.transition(StateClosed)
				b.consecFailures = 0
			}
		}
		return
	}

	b.totalFailures++
	b.lastFailure = b.now()
	b.consecFailures++
	b.consecSuccesses = 0

	switch b.state {
	case StateClosed:
		if b.consecFailures >= b.cfg.FailureThreshold {
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		b.transition(StateOpen)
	}
}

func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}

	b.logger.Warn("circuit breaker state change",
		"name", b.cfg.Name,
		"from", string(b.state),
		"to", string(to),
	)
	b.state = to
}

// Stats returns a snapshot of the breaker's state and counters.
func (b *Breaker) Stats() BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return BreakerStats{
		Name:                 b.cfg.Name,
		State:                b.state,
		ConsecutiveFailures:  b.consecFailures,
		ConsecutiveSuccesses: b.consecSuccesses,
		TotalFailures:        b.totalFailures,
		TotalSuccesses:       b.totalSuccesses,
		LastFailure:          b.lastFailure,
		LastSuccess:          b.lastSuccess,
	}
}
