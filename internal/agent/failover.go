package agent

import (
	"context"
	"errors"

	"github.com/soyeahso/agentdesk/internal/llm"
	"github.com/soyeahso/agentdesk/internal/logging"
)

// Resolver finds a client for a provider name or a model reference.
// *llm.Registry implements it.
type Resolver interface {
	Provider(name string) (llm.Client, error)
	Resolve(model string) (llm.Client, error)
}

// Target is one model to try. An empty Provider resolves by model name.
type Target struct {
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model"`
}

// FailoverClient tries the primary target first, then each fallback on
// errors another provider might not hit (auth, rate limit, 5xx).
type FailoverClient struct {
	resolver Resolver
	targets  []Target
	log      *logging.Logger
}

// NewFailoverClient creates a failover client over resolver.
func NewFailoverClient(resolver Resolver, primary Target, fallbacks []Target, log *logging.Logger) *FailoverClient {
	return &FailoverClient{
		resolver: resolver,
		targets:  append([]Target{primary}, fallbacks...),
		log:      log.Sub("failover"),
	}
}

// Name reports the primary target's provider.
func (f *FailoverClient) Name() string {
	if p := f.targets[0].Provider; p != "" {
		return p
	}
	return "failover"
}

func (f *FailoverClient) client(t Target) (llm.Client, error) {
	if t.Provider != "" {
		return f.resolver.Provider(t.Provider)
	}
	return f.resolver.Resolve(t.Model)
}

// Complete tries each target in order.
func (f *FailoverClient) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	var lastErr error
	for _, t := range f.targets {
		client, err := f.client(t)
		if err != nil {
			var unsupported *llm.UnsupportedProviderError
			if errors.As(err, &unsupported) {
				return nil, err
			}
			f.log.Debug().Str("model", t.Model).Err(err).Msg("no provider for model, skipping")
			lastErr = err
			continue
		}

		req.Model = t.Model
		resp, err := client.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if llm.ShouldFailover(err) {
			f.log.Warn().Str("model", t.Model).Err(err).Msg("provider failed, trying next")
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// Stream tries each target in order until one opens a stream.
func (f *FailoverClient) Stream(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamEvent, error) {
	var lastErr error
	for _, t := range f.targets {
		client, err := f.client(t)
		if err != nil {
			lastErr = err
			continue
		}

		req.Model = t.Model
		ch, err := client.Stream(ctx, req)
		if err == nil {
			return ch, nil
		}
		lastErr = err

		if llm.ShouldFailover(err) {
			f.log.Warn().Str("model", t.Model).Err(err).Msg("stream failed, trying next")
			continue
		}
		return nil, err
	}
	return nil, lastErr
}
