package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/soyeahso/agentdesk/internal/logging"
	"github.com/soyeahso/agentdesk/internal/retry"
	"github.com/soyeahso/agentdesk/internal/structured"
)

// NonRetryableCodes are provider error codes that end a structured output
// attempt immediately.
var NonRetryableCodes = []string{"InvalidRequestException", "AccessDeniedException"}

// StructuredOutputError reports a structured output call that never produced
// a valid value.
type StructuredOutputError struct {
	Attempts int
	Err      error
}

func (e *StructuredOutputError) Error() string {
	return fmt.Sprintf("structured output failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *StructuredOutputError) Unwrap() error { return e.Err }

// StructuredPolicy is three attempts waiting 2^attempt * base between them.
func StructuredPolicy(base time.Duration) retry.Policy {
	return retry.Policy{
		MaxAttempts: 3,
		BaseDelay:   base,
		Factor:      2,
		MaxDelay:    30 * time.Second,
		Retryable:   retry.NonRetryableCodes(NonRetryableCodes...),
	}
}

// SafeStructuredOutput asks a for a JSON reply and decodes it into T,
// retrying decode, validation and transient model failures.
func SafeStructuredOutput[T any](ctx context.Context, a Asker, prompt string, policy retry.Policy, log *logging.Logger) (T, error) {
	attempts := 0
	out, err := retry.Do(ctx, policy, func(ctx context.Context, attempt int) (T, error) {
		attempts = attempt + 1
		log.Info().Int("attempt", attempts).Int("of", policy.MaxAttempts).Msg("attempting structured output")
		reply, err := a.Ask(ctx, prompt)
		if err != nil {
			log.Error().Int("attempt", attempts).Err(err).Msg("model error")
			return *new(T), err
		}
		v, err := structured.ParseJSON[T](reply)
		if err != nil {
			log.Error().Int("attempt", attempts).Err(err).Msg("validation error")
			return v, err
		}
		return v, nil
	})
	if err == nil {
		return out, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return out, err
	}
	var ex *retry.ExhaustedError
	if errors.As(err, &ex) {
		err = ex.Err
	}
	return out, &StructuredOutputError{Attempts: attempts, Err: err}
}
