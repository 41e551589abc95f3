package llm

import (
	"context"
	"time"

	"github.com/soyeahso/agentdesk/internal/logging"
	"github.com/soyeahso/agentdesk/internal/retry"
)

// RetryingClient retries transient failures of the wrapped client with
// exponential backoff. Streams are retried only until the first event.
type RetryingClient struct {
	inner  Client
	policy retry.Policy
	log    *logging.Logger
}

// NewRetryingClient wraps c. A policy without a classifier retries only
// errors IsRetryable accepts.
func NewRetryingClient(c Client, policy retry.Policy, log *logging.Logger) *RetryingClient {
	if policy.Retryable == nil {
		policy.Retryable = IsRetryable
	}
	rc := &RetryingClient{inner: c, policy: policy, log: log.Sub("llm.retry").With("provider", c.Name())}
	rc.policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		rc.log.Warn().Err(err).Int("attempt", attempt+1).Dur("backoff", delay).Msg("retrying model call")
	}
	return rc
}

func (r *RetryingClient) Name() string { return r.inner.Name() }

// Unwrap returns the wrapped client.
func (r *RetryingClient) Unwrap() Client { return r.inner }

func (r *RetryingClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	return retry.Do(ctx, r.policy, func(ctx context.Context, _ int) (*CompletionResponse, error) {
		return r.inner.Complete(ctx, req)
	})
}

func (r *RetryingClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	return retry.Do(ctx, r.policy, func(ctx context.Context, _ int) (<-chan StreamEvent, error) {
		ch, err := r.inner.Stream(ctx, req)
		if err != nil {
			return nil, err
		}
		first, ok := <-ch
		if !ok {
			return closedStream(), nil
		}
		if first.Type == EventError {
			for range ch {
			}
			return nil, &ProviderError{Provider: r.inner.Name(), Message: first.Error}
		}
		return prepend(ctx, first, ch), nil
	})
}

func closedStream() <-chan StreamEvent {
	ch := make(chan StreamEvent)
	close(ch)
	return ch
}

// prepend forwards first and then rest until rest closes or ctx is done.
func prepend(ctx context.Context, first StreamEvent, rest <-chan StreamEvent) <-chan StreamEvent {
	out := make(chan StreamEvent, 1)
	out <- first
	go func() {
		defer close(out)
		for evt := range rest {
			if !send(ctx, out, evt) {
				return
			}
		}
	}()
	return out
}
