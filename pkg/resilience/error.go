// Package resilience provides failure isolation for calls to flaky external
// providers: a circuit breaker, a retry policy with exponential backoff, and
// a Client composing the two.
package resilience

import (
	"errors"
	"fmt"
)

// ErrCircuitOpen is the fail-fast rejection returned while a dependency's
// circuit is open. It is distinct from the wrapped call's own errors so
// callers can tell "service is degraded" apart from "this specific call
// failed".
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitOpenError carries the breaker name alongside ErrCircuitOpen.
type CircuitOpenError struct {
	Name string
}

func (e CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker %q is open", e.Name)
}

func (e CircuitOpenError) Unwrap() error {
	return ErrCircuitOpen
}
