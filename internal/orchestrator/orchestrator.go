package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/soyeahso/agentdesk/internal/agent"
	"github.com/soyeahso/agentdesk/internal/catalog"
	"github.com/soyeahso/agentdesk/internal/hooks"
	"github.com/soyeahso/agentdesk/internal/llm"
	"github.com/soyeahso/agentdesk/internal/logging"
)

// ErrNoValidAgents is returned when a parallel run names no known agent.
var ErrNoValidAgents = errors.New("No valid agents found for parallel execution")

// Asker is anything that answers a single message: a catalog agent, a
// workflow agent or a runner added at runtime.
type Asker interface {
	Ask(ctx context.Context, message string) (string, error)
}

// Options configures an Orchestrator.
type Options struct {
	RoutingWorkflow string // default "routing"
	MainWorkflow    string // default "orchestrator_main"
	Limits          llm.UsageLimits
	Hooks           *hooks.Manager
}

// StepResult is the outcome of one workflow step.
type StepResult struct {
	Step          string `json:"step"`
	Agent         string `json:"agent"`
	ExecutionType string `json:"execution_type"`
	Response      string `json:"response"`
}

// Task is one unit of a parallel run. An empty Message uses the run's
// default message.
type Task struct {
	Agent   string `json:"agent"`
	Message string `json:"message,omitempty"`
}

// ParallelResult collects the replies of a parallel run.
type ParallelResult struct {
	ExecutionType string            `json:"execution_type"`
	AgentCount    int               `json:"agent_count"`
	Results       map[string]string `json:"results"`
	Errors        map[string]string `json:"errors"`
}

// Orchestrator is a dictionary of workflow prompts plus a runtime registry
// of agents.
type Orchestrator struct {
	dir       string
	workflows map[string]Workflow
	clients   agent.Resolver
	opts      Options
	log       *logging.Logger

	mu     sync.RWMutex
	agents map[string]Asker
}

// New loads the workflows under dir. Every agent in manager's catalog is
// registered by name.
func New(dir string, manager *catalog.Manager, clients agent.Resolver, opts Options, log *logging.Logger) (*Orchestrator, error) {
	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		return nil, fmt.Errorf("Orchestrator directory not found: %s", dir)
	}
	if opts.RoutingWorkflow == "" {
		opts.RoutingWorkflow = "routing"
	}
	if opts.MainWorkflow == "" {
		opts.MainWorkflow = "orchestrator_main"
	}

	o := &Orchestrator{
		dir:     dir,
		clients: clients,
		opts:    opts,
		log:     log.Sub("orchestrator"),
		agents:  make(map[string]Asker),
	}

	wfs, err := loadWorkflows(dir, func(path string, err error) {
		o.log.Warn().Str("file", path).Err(err).Msg("workflow problem")
	})
	if err != nil {
		return nil, fmt.Errorf("loading workflows: %w", err)
	}
	o.workflows = wfs
	for name := range wfs {
		o.log.Debug().Str("workflow", name).Msg("loaded workflow")
	}

	if manager != nil {
		for _, name := range manager.Catalog().List() {
			o.agents[name] = catalogAgent{m: manager, name: name}
		}
	}
	return o, nil
}

type catalogAgent struct {
	m    *catalog.Manager
	name string
}

func (c catalogAgent) Ask(ctx context.Context, message string) (string, error) {
	return c.m.RunAgent(ctx, c.name, message)
}

// ListWorkflows returns the workflow names, sorted.
func (o *Orchestrator) ListWorkflows() []string {
	names := make([]string, 0, len(o.workflows))
	for n := range o.workflows {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// WorkflowInfo returns the named workflow.
func (o *Orchestrator) WorkflowInfo(name string) (Workflow, bool) {
	wf, ok := o.workflows[name]
	return wf, ok
}

func (o *Orchestrator) workflow(name string) (Workflow, error) {
	wf, ok := o.workflows[name]
	if !ok {
		return Workflow{}, &catalog.NotFoundError{Kind: "Workflow", Name: name}
	}
	return wf, nil
}

// RoutingAgent builds the routing agent with the agent overview and the
// category pattern filled in.
func (o *Orchestrator) RoutingAgent(availableAgents, queryType string) (*agent.Runner, error) {
	wf, err := o.workflow(o.opts.RoutingWorkflow)
	if err != nil {
		return nil, err
	}
	return o.stepAgent(wf, map[string]string{
		"available_agents": availableAgents,
		"query_type":       queryType,
	})
}

// MainAgent builds the top-level orchestrator agent.
func (o *Orchestrator) MainAgent(vars map[string]string) (*agent.Runner, error) {
	wf, err := o.workflow(o.opts.MainWorkflow)
	if err != nil {
		return nil, err
	}
	return o.stepAgent(wf, vars)
}

// WorkflowAgent builds an agent from any named workflow.
func (o *Orchestrator) WorkflowAgent(name string, vars map[string]string) (*agent.Runner, error) {
	wf, err := o.workflow(name)
	if err != nil {
		return nil, err
	}
	return o.stepAgent(wf, vars)
}

// stepAgent renders wf's prompt and binds it to the workflow's model.
func (o *Orchestrator) stepAgent(wf Workflow, vars map[string]string) (*agent.Runner, error) {
	if wf.SystemPrompt == "" {
		return nil, errors.New("System prompt is required for workflow execution")
	}
	model, provider := wf.StepModel()
	if _, err := o.clients.Provider(provider); err != nil {
		return nil, err
	}

	client := agent.NewFailoverClient(o.clients, agent.Target{Provider: provider, Model: model}, nil, o.log)
	return agent.NewRunner(agent.Config{
		AgentID:      "workflow." + wf.Name,
		AgentName:    wf.Name,
		Instructions: Render(wf.SystemPrompt, vars),
		Model:        model,
		MaxTokens:    wf.MaxTokens,
		Temperature:  llm.Float64(wf.Temperature),
		Limits:       o.opts.Limits,
	}, client, nil, nil, o.log, agent.WithHooks(o.opts.Hooks)), nil
}

// ExecuteStep runs one workflow step against message.
func (o *Orchestrator) ExecuteStep(ctx context.Context, workflowName, step, message string, vars map[string]string) (*StepResult, error) {
	o.log.Info().Str("workflow", workflowName).Str("step", step).Msg("executing workflow step")

	r, err := o.WorkflowAgent(workflowName, vars)
	if err != nil {
		return nil, err
	}
	out, err := r.Ask(ctx, message)
	o.opts.Hooks.Emit(ctx, hooks.EventWorkflowStep, map[string]any{
		"workflow": workflowName,
		"step":     step,
		"error":    errText(err),
	})
	if err != nil {
		return nil, err
	}
	return &StepResult{Step: step, Agent: workflowName, ExecutionType: "sequential", Response: out}, nil
}

// ParallelExecution runs the tasks' agents concurrently. Unknown agents are
// skipped; per-agent failures land in Errors.
func (o *Orchestrator) ParallelExecution(ctx context.Context, tasks []Task, defaultMessage string) (*ParallelResult, error) {
	type job struct {
		name    string
		agent   Asker
		message string
	}

	var jobs []job
	for _, t := range tasks {
		a, ok := o.Agent(t.Agent)
		if !ok {
			o.log.Warn().Str("agent", t.Agent).Msg("agent not found, skipping")
			continue
		}
		msg := t.Message
		if msg == "" {
			msg = defaultMessage
		}
		jobs = append(jobs, job{name: t.Agent, agent: a, message: msg})
	}
	if len(jobs) == 0 {
		return nil, ErrNoValidAgents
	}

	res := &ParallelResult{
		ExecutionType: "parallel",
		AgentCount:    len(jobs),
		Results:       make(map[string]string),
		Errors:        make(map[string]string),
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, j := range jobs {
		g.Go(func() error {
			out, err := j.agent.Ask(gctx, j.message)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Errors[j.name] = err.Error()
			} else {
				res.Results[j.name] = out
			}
			return nil
		})
	}
	_ = g.Wait()
	return res, nil
}

// AddAgent registers or replaces an agent.
func (o *Orchestrator) AddAgent(name string, a Asker) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.agents[name] = a
	o.log.Info().Str("agent", name).Msg("added agent")
}

// RemoveAgent unregisters an agent and reports whether it was present.
func (o *Orchestrator) RemoveAgent(name string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.agents[name]; !ok {
		return false
	}
	delete(o.agents, name)
	o.log.Info().Str("agent", name).Msg("removed agent")
	return true
}

// Agent returns a registered agent.
func (o *Orchestrator) Agent(name string) (Asker, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	a, ok := o.agents[name]
	return a, ok
}

// AgentList returns the registered agent names, sorted.
func (o *Orchestrator) AgentList() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	names := make([]string, 0, len(o.agents))
	for n := range o.agents {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
