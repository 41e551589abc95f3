package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/soyeahso/agentdesk/internal/agent"
	"github.com/soyeahso/agentdesk/internal/catalog"
	"github.com/soyeahso/agentdesk/internal/config"
	"github.com/soyeahso/agentdesk/internal/hooks"
	"github.com/soyeahso/agentdesk/internal/llm"
	"github.com/soyeahso/agentdesk/internal/logging"
	"github.com/soyeahso/agentdesk/internal/memory"
	"github.com/soyeahso/agentdesk/internal/moderation"
	"github.com/soyeahso/agentdesk/internal/orchestrator"
	"github.com/soyeahso/agentdesk/internal/store"
	"github.com/soyeahso/agentdesk/internal/tools"
)

const defaultInstructions = `You are agentdesk, a helpful assistant. Answer clearly and concisely.
Use the available tools when they help you answer, and say so when you are unsure.`

// app is everything a command needs, built once from the loaded config.
type app struct {
	cfg      config.Config
	registry *llm.Registry
	hooks    *hooks.Manager
	db       *store.DB
	sessions agent.SessionStore
	bank     memory.Bank // nil when the backend could not be opened
	mod      *moderation.Moderator
	tools    *agent.ToolRegistry
	catalog  *catalog.Catalog
	specs    []catalog.Specialization
	manager  *catalog.Manager
	orch     *orchestrator.Orchestrator // nil without a workflow directory
}

// loadConfig reads and validates the config file. Without an explicit
// --log-level the logger is rebuilt from the logging section.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return config.Config{}, err
	}
	if issues := config.Validate(&cfg); len(issues) > 0 {
		for _, issue := range issues {
			log.Error().Str("path", issue.Path).Msg(issue.Message)
		}
		return config.Config{}, fmt.Errorf("config validation failed with %d issue(s)", len(issues))
	}
	if logLevel == "" {
		log = logging.NewWithFormat(cfg.Logging.Format, cfg.Logging.Level)
	}
	return cfg, nil
}

// openDB opens the sqlite database when sessions or memories live there.
func openDB(cfg *config.Config) (*store.DB, error) {
	if cfg.Session.Store != "sqlite" && cfg.Memory.Backend != "sqlite" {
		return nil, nil
	}
	if err := paths.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("creating data directories: %w", err)
	}
	db, err := store.Open(paths.Database(), log)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, hooks: hooks.NewManager(log)}
	a.hooks.OnAll("log", hooks.LogHandler(log))
	a.registry = llm.NewRegistryFromConfig(ctx, &a.cfg, log)

	if a.db, err = openDB(&a.cfg); err != nil {
		return nil, err
	}
	if a.cfg.Session.Store == "sqlite" {
		a.sessions = store.NewSQLiteSessionStore(a.db)
	} else {
		a.sessions = agent.NewMemorySessionStore()
	}

	if a.bank, err = memory.Open(ctx, &a.cfg, a.db, log); err != nil {
		log.Warn().Err(err).Str("backend", a.cfg.Memory.Backend).Msg("memory bank unavailable, memory tools disabled")
		a.bank = nil
	}

	deps := tools.Deps{Bank: a.bank}
	if client, err := a.client(""); err == nil {
		a.mod = moderation.New(client, moderation.Options{
			Model:     a.cfg.Agents.Defaults.Model,
			SafeDirs:  a.cfg.Moderation.SafeDirs,
			MaxTokens: a.cfg.Agents.Defaults.MaxTokens,
		}, log)
		deps.Scanner = a.mod.Scanner()
	}
	a.tools = tools.Builtins(&a.cfg, deps, log)

	dir := paths.AgentsDir(&a.cfg)
	loader := catalog.NewLoader(catalog.ModelDefaults{
		Model:    a.cfg.Agents.Defaults.Model,
		Provider: a.cfg.Agents.Defaults.Provider,
	}, log)
	if a.catalog, err = loader.LoadAll(dir); err != nil {
		log.Warn().Err(err).Msg("no agent definitions loaded")
		a.catalog = catalog.New()
	}
	if a.specs, err = catalog.Specializations(dir); err != nil {
		log.Debug().Err(err).Msg("no specializations found")
	}
	a.manager = catalog.NewManager(a.catalog, a.registry, catalog.ManagerOptions{
		Tools:     a.tools,
		Sessions:  a.sessions,
		Fallbacks: fallbackTargets(a.cfg.Agents.Fallbacks),
		Runner:    []agent.Option{agent.WithHooks(a.hooks)},
	}, log)

	a.orch, err = orchestrator.New(paths.WorkflowsDir(&a.cfg), a.manager, a.registry, orchestrator.Options{
		RoutingWorkflow: a.cfg.Orchestrator.RoutingWorkflow,
		MainWorkflow:    a.cfg.Orchestrator.MainWorkflow,
		Hooks:           a.hooks,
	}, log)
	if err != nil {
		log.Warn().Err(err).Msg("workflows unavailable")
		a.orch = nil
	}
	return a, nil
}

// Close releases the database and any closable memory backend.
func (a *app) Close() {
	if c, ok := a.bank.(io.Closer); ok {
		c.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

func fallbackTargets(models []string) []agent.Target {
	targets := make([]agent.Target, 0, len(models))
	for _, m := range models {
		targets = append(targets, agent.Target{Model: m})
	}
	return targets
}

// client resolves model (the configured default when empty) and wraps it in
// a failover client when fallbacks are configured.
func (a *app) client(model string) (llm.Client, error) {
	if model == "" {
		model = a.cfg.Agents.Defaults.Model
	}
	c, err := a.registry.Resolve(model)
	if err != nil {
		return nil, err
	}
	if len(a.cfg.Agents.Fallbacks) == 0 {
		return c, nil
	}
	return agent.NewFailoverClient(a.registry, agent.Target{Model: model}, fallbackTargets(a.cfg.Agents.Fallbacks), log), nil
}

// defaultRunner is the agent behind /chat: the configured catalog agent, or
// a general assistant over the built-in tools.
func (a *app) defaultRunner() (*agent.Runner, error) {
	if name := a.cfg.Agents.Default; name != "" {
		return a.manager.Runner(name)
	}
	client, err := a.client("")
	if err != nil {
		return nil, err
	}
	return agent.NewRunner(agent.Config{
		AgentID:      "default",
		AgentName:    "agentdesk",
		Instructions: defaultInstructions,
		Model:        a.cfg.Agents.Defaults.Model,
		MaxTokens:    a.cfg.Agents.Defaults.MaxTokens,
		Temperature:  a.cfg.Agents.Defaults.Temperature,
	}, client, a.sessions, a.tools, log, agent.WithHooks(a.hooks)), nil
}

func (a *app) router() *orchestrator.Router {
	return orchestrator.NewRouter(a.orch, a.specs, a.catalog.List(), a.cfg.Orchestrator.DefaultCategory, log)
}

func (a *app) requireOrchestrator() (*orchestrator.Orchestrator, error) {
	if a.orch == nil {
		return nil, fmt.Errorf("Orchestrator directory not found: %s", paths.WorkflowsDir(&a.cfg))
	}
	return a.orch, nil
}
