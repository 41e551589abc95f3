package llm

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/soyeahso/agentdesk/internal/config"
	"github.com/soyeahso/agentdesk/internal/logging"
	"github.com/soyeahso/agentdesk/internal/retry"
)

// modelPrefixes maps well-known model name prefixes to providers.
var modelPrefixes = []struct {
	prefix   string
	provider string
}{
	{"gemini", "google"},
	{"gemma", "google"},
	{"claude", "anthropic"},
	{"gpt-", "openai"},
	{"o1", "openai"},
	{"o3", "openai"},
	{"o4", "openai"},
}

// Registry holds one client per provider and resolves model names to them.
type Registry struct {
	mu       sync.RWMutex
	clients  map[string]Client // provider name → client
	aliases  map[string]string // model alias → provider name
	fallback string
	log      *logging.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		clients: make(map[string]Client),
		aliases: make(map[string]string),
		log:     log.Sub("llm.registry"),
	}
}

// Register adds a client under the given provider name.
func (r *Registry) Register(name string, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[strings.ToLower(name)] = client
	r.log.Info().Str("provider", name).Msg("registered LLM provider")
}

// Alias maps a model name to a provider.
func (r *Registry) Alias(model, provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[model] = strings.ToLower(provider)
}

// SetFallback sets the provider used when a model matches nothing else.
func (r *Registry) SetFallback(provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = strings.ToLower(provider)
}

// Resolve returns the Client for a model reference. Resolution order:
// provider name, alias, model prefix, fallback.
func (r *Registry) Resolve(model string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.clients[strings.ToLower(model)]; ok {
		return c, nil
	}
	if provider, ok := r.aliases[model]; ok {
		if c, ok := r.clients[provider]; ok {
			return c, nil
		}
	}
	lower := strings.ToLower(model)
	for _, p := range modelPrefixes {
		if strings.HasPrefix(lower, p.prefix) {
			if c, ok := r.clients[p.provider]; ok {
				return c, nil
			}
		}
	}
	if r.fallback != "" {
		if c, ok := r.clients[r.fallback]; ok {
			return c, nil
		}
	}
	return nil, fmt.Errorf("no LLM provider for model %q", model)
}

// Provider returns the client registered for a provider name. Names are
// case-insensitive; unknown names yield UnsupportedProviderError.
func (r *Registry) Provider(name string) (Client, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	r.mu.RLock()
	c, ok := r.clients[key]
	r.mu.RUnlock()
	if ok {
		return c, nil
	}
	if !slices.Contains(config.SupportedProviders, key) {
		return nil, &UnsupportedProviderError{Provider: name}
	}
	return nil, &ProviderError{Provider: key, Message: "provider is not configured"}
}

// List returns the registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for n := range r.clients {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// RetryPolicy converts configured retry settings into a policy that retries
// transient provider failures.
func RetryPolicy(rc config.RetryConfig) retry.Policy {
	p := retry.Default()
	if rc.MaxAttempts > 0 {
		p.MaxAttempts = rc.MaxAttempts
	}
	if rc.BaseDelayMs > 0 {
		p.BaseDelay = time.Duration(rc.BaseDelayMs) * time.Millisecond
	}
	if rc.MaxDelayMs > 0 {
		p.MaxDelay = time.Duration(rc.MaxDelayMs) * time.Millisecond
	}
	p.Jitter = 0.25
	p.Retryable = IsRetryable
	return p
}

// NewRegistryFromConfig builds a client for every provider that has
// credentials and registers it behind a RetryingClient. Providers that fail
// to initialise are logged and skipped.
func NewRegistryFromConfig(ctx context.Context, cfg *config.Config, log *logging.Logger) *Registry {
	reg := NewRegistry(log)
	policy := RetryPolicy(cfg.Providers.Retry)
	timeout := 2 * time.Minute

	add := func(c Client, err error) {
		if err != nil {
			reg.log.Debug().Err(err).Msg("provider not available")
			return
		}
		reg.Register(c.Name(), NewRetryingClient(c, policy, log))
	}

	g := cfg.Providers.Google
	if g.APIKey != "" || g.UseVertex {
		add(NewGeminiClient(ctx, g, "gemini-2.5-flash", ""))
	}
	if a := cfg.Providers.Anthropic; a.APIKey != "" {
		add(NewAnthropicClient(a.APIKey, a.BaseURL, "claude-sonnet-4-20250514", timeout))
	}
	if o := cfg.Providers.OpenAI; o.APIKey != "" || o.BaseURL != "" {
		add(NewOpenAIClient(o.APIKey, o.BaseURL, "gpt-4o-mini", timeout))
	}

	reg.SetFallback(cfg.Agents.Defaults.Provider)
	return reg
}
