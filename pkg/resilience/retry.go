package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
)

// ErrRetriesExhausted is returned when every attempt failed with a retryable error.
// It carries no detail about the individual attempt failures.
var ErrRetriesExhausted = errors.New("failed to fetch data after multiple retries")

// RetryConfig holds configuration for the exponential backoff retry logic.
type RetryConfig struct {
	MaxAttempts  int           // Total number of attempts, including the first one
	InitialDelay time.Duration // Delay before the second attempt; doubles afterwards
}

// DefaultRetryConfig returns the standard policy: 3 attempts, 1s initial delay.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Second,
	}
}

func (c RetryConfig) normalize() RetryConfig {
	def := DefaultRetryConfig()
	if c.MaxAttempts < 1 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = def.InitialDelay
	}
	return c
}

// BackoffDelay returns the wait inserted before the given 1-based attempt.
// delay(k) = InitialDelay * 2^(k-2) for k >= 2, zero for the first attempt.
func BackoffDelay(cfg RetryConfig, attempt int) time.Duration {
	if attempt < 2 {
		return 0
	}
	cfg = cfg.normalize()
	return cfg.InitialDelay << (attempt - 2)
}

// State is a step of the retry state machine.
type State int

const (
	StateIdle State = iota
	StateAttempting
	StateBackoff
	StateSuccess
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAttempting:
		return "attempting"
	case StateBackoff:
		return "backoff"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Attempt describes one transition of a retry loop.
type Attempt struct {
	State  State
	Number int           // 1-based attempt the transition belongs to
	Delay  time.Duration // set for StateBackoff
	Err    error         // set when the attempt failed
}

// Observer receives every transition of a retry loop, in order.
type Observer func(Attempt)

// RetryOption customises a single Retry call.
type RetryOption func(*retryOptions)

type retryOptions struct {
	observer Observer
}

// WithObserver registers an observer for the retry state machine.
func WithObserver(o Observer) RetryOption {
	return func(ro *retryOptions) {
		ro.observer = o
	}
}

// RetryableFunc is a function that can be retried.
// Wrap its error with Retryable to request another attempt; any other
// non-nil error stops the loop immediately.
type RetryableFunc func(ctx context.Context) error

type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Retryable marks err as eligible for another attempt.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// Retry executes fn sequentially until it succeeds, returns a non-retryable
// error, or cfg.MaxAttempts attempts have failed. No jitter is applied and no
// delay follows the final attempt.
func Retry(ctx context.Context, cfg RetryConfig, fn RetryableFunc, opts ...RetryOption) error {
	cfg = cfg.normalize()

	var o retryOptions
	for _, opt := range opts {
		opt(&o)
	}
	notify := func(a Attempt) {
		if o.observer != nil {
			o.observer(a)
		}
	}

	var (
		attempt   int
		retryable bool
	)

	limited := retry.WithMaxRetries(uint64(cfg.MaxAttempts-1), retry.NewExponential(cfg.InitialDelay))
	backoff := retry.BackoffFunc(func() (time.Duration, bool) {
		next, stop := limited.Next()
		if !stop {
			notify(Attempt{State: StateBackoff, Number: attempt, Delay: next})
		}
		return next, stop
	})

	notify(Attempt{State: StateIdle})
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		notify(Attempt{State: StateAttempting, Number: attempt})

		err := fn(ctx)
		var rerr *retryableError
		if errors.As(err, &rerr) {
			retryable = true
			return retry.RetryableError(rerr.err)
		}
		retryable = false
		return err
	})

	switch {
	case err == nil:
		notify(Attempt{State: StateSuccess, Number: attempt})
		return nil
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		notify(Attempt{State: StateFailed, Number: attempt, Err: err})
		return fmt.Errorf("retry: context cancelled after %d attempts: %w", attempt, err)
	case retryable:
		notify(Attempt{State: StateFailed, Number: attempt, Err: err})
		return ErrRetriesExhausted
	default:
		notify(Attempt{State: StateFailed, Number: attempt, Err: err})
		return err
	}
}
