package catalog

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/soyeahso/agentdesk/internal/agent"
	"github.com/soyeahso/agentdesk/internal/llm"
	"github.com/soyeahso/agentdesk/internal/logging"
)

// ManagerOptions configures how the Manager builds runners.
type ManagerOptions struct {
	// Tools is the registry that definition tool names resolve against.
	Tools *agent.ToolRegistry
	// Sessions, when set, gives runners persistent history.
	Sessions agent.SessionStore
	// Fallbacks are tried after a definition's own model fails.
	Fallbacks []agent.Target
	Limits    llm.UsageLimits
	Runner    []agent.Option
}

// Manager turns catalog definitions into runnable agents.
type Manager struct {
	catalog *Catalog
	clients agent.Resolver
	opts    ManagerOptions
	log     *logging.Logger

	mu      sync.Mutex
	runners map[string]*agent.Runner
}

// NewManager creates a manager over cat. Clients resolve provider names to
// model clients; *llm.Registry implements it.
func NewManager(cat *Catalog, clients agent.Resolver, opts ManagerOptions, log *logging.Logger) *Manager {
	return &Manager{
		catalog: cat,
		clients: clients,
		opts:    opts,
		log:     log.Sub("agents"),
		runners: make(map[string]*agent.Runner),
	}
}

// Catalog returns the underlying catalog.
func (m *Manager) Catalog() *Catalog { return m.catalog }

// Runner returns the runner for the named agent, building it on first use.
func (m *Manager) Runner(name string) (*agent.Runner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.runners[name]; ok {
		return r, nil
	}
	def, ok := m.catalog.Get(name)
	if !ok {
		return nil, &NotFoundError{Kind: "Agent", Name: name}
	}
	r, err := m.build(def)
	if err != nil {
		return nil, err
	}
	m.runners[name] = r
	return r, nil
}

// Forget drops a cached runner so the next call rebuilds it from the
// catalog.
func (m *Manager) Forget(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.runners, name)
}

func (m *Manager) build(def Definition) (*agent.Runner, error) {
	// Surface unsupported or unconfigured providers before any call.
	if _, err := m.clients.Provider(def.Provider); err != nil {
		return nil, err
	}
	client := agent.NewFailoverClient(m.clients,
		agent.Target{Provider: def.Provider, Model: def.Model}, m.opts.Fallbacks, m.log)

	var tools *agent.ToolRegistry
	if len(def.Tools) > 0 && m.opts.Tools != nil {
		tools = m.opts.Tools.Subset(def.Tools, m.log)
	}

	return agent.NewRunner(agent.Config{
		AgentID:      def.Name,
		AgentName:    def.Name,
		Instructions: def.Prompt,
		Model:        def.Model,
		MaxTokens:    def.MaxTokens,
		Temperature:  llm.Float64(def.Temperature),
		Limits:       m.opts.Limits,
	}, client, m.opts.Sessions, tools, m.log, m.opts.Runner...), nil
}

// RunAgent sends message to the named agent and returns its reply.
func (m *Manager) RunAgent(ctx context.Context, name, message string) (string, error) {
	r, err := m.Runner(name)
	if err != nil {
		return "", err
	}
	return r.Ask(ctx, message)
}

// RunCategoryConsensus asks every agent in category the same question
// concurrently. Failures are reported in place as "Error: <err>".
func (m *Manager) RunCategoryConsensus(ctx context.Context, category, message string) map[string]string {
	defs := m.catalog.ByCategory(category)
	results := make(map[string]string, len(defs))
	var mu sync.Mutex

	var g errgroup.Group
	for _, def := range defs {
		g.Go(func() error {
			out, err := m.RunAgent(ctx, def.Name, message)
			if err != nil {
				m.log.Warn().Str("agent", def.Name).Err(err).Msg("consensus member failed")
				out = "Error: " + err.Error()
			}
			mu.Lock()
			results[def.Name] = out
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}
