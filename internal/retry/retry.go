// Package retry runs operations with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"
)

// Policy controls how many times an operation runs and how long to wait
// between attempts. The wait before attempt n+1 is BaseDelay * Factor^n,
// capped at MaxDelay.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Factor      float64
	MaxDelay    time.Duration
	// Jitter spreads each delay by up to ±Jitter of its value (0 disables).
	Jitter float64
	// Retryable reports whether an error is worth another attempt.
	// A nil Retryable retries everything except permanent errors.
	Retryable func(error) bool
	// OnRetry, if set, is called before each wait.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Default matches the classic 2**attempt seconds schedule with three attempts.
func Default() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Factor:      2,
		MaxDelay:    30 * time.Second,
	}
}

// PermanentError marks an error that must not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so Do returns it without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// ExhaustedError is returned when every attempt failed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("operation failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Delay returns the wait before the attempt following attempt (0-based).
func (p Policy) Delay(attempt int) time.Duration {
	factor := p.Factor
	if factor <= 0 {
		factor = 2
	}
	d := float64(p.BaseDelay) * math.Pow(factor, float64(attempt))
	if p.Jitter > 0 {
		d += p.Jitter * d * (rand.Float64()*2 - 1)
	}
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

func (p Policy) shouldRetry(err error) bool {
	if IsPermanent(err) || errors.Is(err, context.Canceled) {
		return false
	}
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return true
}

// Do runs op until it succeeds, returns a non-retryable error, the context
// ends, or MaxAttempts is reached.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		out, err := op(ctx, attempt)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if !p.shouldRetry(err) {
			var pe *PermanentError
			if errors.As(err, &pe) {
				return zero, pe.Err
			}
			return zero, err
		}
		if attempt == attempts-1 {
			break
		}

		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, &ExhaustedError{Attempts: attempts, Err: lastErr}
}

// Run is Do for operations without a result.
func Run(ctx context.Context, p Policy, op func(ctx context.Context, attempt int) error) error {
	_, err := Do(ctx, p, func(ctx context.Context, attempt int) (struct{}, error) {
		return struct{}{}, op(ctx, attempt)
	})
	return err
}

// Coded is implemented by errors that carry a provider error code.
type Coded interface {
	ErrorCode() string
}

// NonRetryableCodes returns a classifier that rejects errors whose code, or
// failing that whose message, names one of codes.
func NonRetryableCodes(codes ...string) func(error) bool {
	return func(err error) bool {
		var c Coded
		if errors.As(err, &c) {
			for _, code := range codes {
				if strings.EqualFold(c.ErrorCode(), code) {
					return false
				}
			}
		}
		msg := err.Error()
		for _, code := range codes {
			if strings.Contains(msg, code) {
				return false
			}
		}
		return true
	}
}
