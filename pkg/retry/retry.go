// Package retry wraps external calls with classified, exponential-backoff retries.
//
// A Policy is an injectable value: the number of attempts, the backoff curve
// and the predicate deciding which failures are transient. Failures the
// predicate rejects are returned immediately on the first attempt.
package retry

import (
	"context"
	"time"

	"github.com/juju/clock"
	jujuretry "github.com/juju/retry"

	"github.com/agentstation/dqsync/pkg/constants"
	"github.com/agentstation/dqsync/pkg/errors"
	"github.com/agentstation/dqsync/pkg/logging"
)

// Policy describes how an operation is retried.
type Policy struct {
	// Attempts is the maximum number of calls, including the first.
	Attempts int
	// Delay is the wait after the first failure.
	Delay time.Duration
	// MaxDelay caps the exponential growth of Delay.
	MaxDelay time.Duration
	// Jitter randomizes each wait within the backoff window.
	Jitter bool
	// Clock is used for waits. Defaults to the wall clock.
	Clock clock.Clock
	// IsRetryable classifies failures. Defaults to errors.IsRetryable.
	IsRetryable func(error) bool
}

// DefaultPolicy returns the policy applied to every external call:
// three attempts, doubling from one second up to a minute.
func DefaultPolicy() Policy {
	return Policy{
		Attempts: constants.MaxRetries,
		Delay:    constants.RetryBackoff,
		MaxDelay: constants.MaxRetryBackoff,
		Jitter:   true,
	}
}

// NoRetry returns a policy that calls the function exactly once.
func NoRetry() Policy {
	return Policy{Attempts: 1, Delay: time.Millisecond}
}

func (p Policy) withDefaults() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	if p.Delay <= 0 {
		p.Delay = constants.RetryBackoff
	}
	if p.MaxDelay < p.Delay {
		p.MaxDelay = p.Delay
	}
	if p.Clock == nil {
		p.Clock = clock.WallClock
	}
	if p.IsRetryable == nil {
		p.IsRetryable = errors.IsRetryable
	}
	return p
}

// Do calls fn until it succeeds, fails with a non-retryable error, the
// attempts are exhausted or ctx is done. The returned error is always the
// last error produced by fn, or the context error.
func Do(ctx context.Context, p Policy, op string, fn func(context.Context) error) error {
	p = p.withDefaults()
	logger := logging.FromContext(logging.WithOperation(ctx, op))

	var last error
	err := jujuretry.Call(jujuretry.CallArgs{
		Func: func() error {
			last = fn(ctx)
			return last
		},
		IsFatalError: func(err error) bool {
			return !p.IsRetryable(err)
		},
		NotifyFunc: func(err error, attempt int) {
			if attempt >= p.Attempts {
				return
			}
			logger.Warn().
				Err(err).
				Int("attempt", attempt).
				Int("max_attempts", p.Attempts).
				Msg("Retryable failure, backing off")
		},
		Attempts:    p.Attempts,
		Delay:       p.Delay,
		MaxDelay:    p.MaxDelay,
		BackoffFunc: jujuretry.ExpBackoff(p.Delay, p.MaxDelay, 2, p.Jitter),
		Clock:       p.Clock,
		Stop:        ctx.Done(),
	})
	if err == nil {
		return nil
	}
	if jujuretry.IsRetryStopped(err) && ctx.Err() != nil {
		return ctx.Err()
	}
	// Call wraps both fatal and exhausted failures.
	if last != nil {
		return last
	}
	return err
}

// Value is Do for functions returning a value.
func Value[T any](ctx context.Context, p Policy, op string, fn func(context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, p, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}
