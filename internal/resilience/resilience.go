package resilience

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sony/gobreaker"
)

// ErrRejected marks a call that was refused by the circuit breaker
// without reaching the external service. Callers use this to skip audit
// logging that would falsely imply a round trip happened.
var ErrRejected = errors.New("rejected by circuit breaker")

// Executor wraps outbound calls in a timeout + immediate-retry + circuit
// breaker policy. Retries have no backoff; a timed-out or cancelled call
// is treated as a generic failure.
type Executor struct {
	cb       *gobreaker.CircuitBreaker
	attempts int
	timeout  time.Duration
}

func NewExecutor(name string, attempts int, timeout time.Duration) *Executor {
	if attempts <= 0 {
		attempts = 3
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Executor{
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name: name,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			Timeout: 30 * time.Second,
		}),
		attempts: attempts,
		timeout:  timeout,
	}
}

// Execute runs fn through the breaker, retrying immediately up to the
// configured attempt count. The last error wins.
func Execute[T any](ctx context.Context, e *Executor, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for i := 0; i < e.attempts; i++ {
		if err := ctx.Err(); err != nil {
			return zero, errors.Wrap(err, "execute")
		}

		out, err := e.cb.Execute(func() (interface{}, error) {
			callCtx, cancel := context.WithTimeout(ctx, e.timeout)
			defer cancel()
			return fn(callCtx)
		})
		if err == nil {
			return out.(T), nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, errors.Wrap(ErrRejected, err.Error())
		}
		lastErr = err
	}
	return zero, lastErr
}
