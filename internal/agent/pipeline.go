package agent

import (
	"context"
	"fmt"
	"maps"
	"regexp"
	"sync"

	"golang.org/x/sync/errgroup"
)

// State carries stage outputs through a pipeline, keyed by output key.
type State struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewState creates a state seeded with initial values.
func NewState(initial map[string]string) *State {
	s := &State{values: make(map[string]string, len(initial))}
	maps.Copy(s.values, initial)
	return s
}

// Get returns the value stored under key.
func (s *State) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores a value under key.
func (s *State) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Snapshot returns a copy of all values.
func (s *State) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values)
}

// Stage is one step of a pipeline.
type Stage interface {
	Name() string
	Run(ctx context.Context, state *State) error
}

// StageFunc is a Stage that stores its function's result under OutputKey.
type StageFunc struct {
	StageName string
	OutputKey string
	Fn        func(ctx context.Context, state *State) (string, error)
}

func (s *StageFunc) Name() string { return s.StageName }

func (s *StageFunc) Run(ctx context.Context, state *State) error {
	out, err := s.Fn(ctx, state)
	if err != nil {
		return fmt.Errorf("stage %s: %w", s.StageName, err)
	}
	if s.OutputKey != "" {
		state.Set(s.OutputKey, out)
	}
	return nil
}

// AgentStage runs runner with template rendered against the state and
// stores the reply under outputKey.
func AgentStage(name, outputKey, template string, runner *Runner) Stage {
	return &StageFunc{
		StageName: name,
		OutputKey: outputKey,
		Fn: func(ctx context.Context, state *State) (string, error) {
			return runner.Ask(ctx, RenderState(template, state.Snapshot()))
		},
	}
}

// InstructedAgentStage renders the runner's instructions against the state
// before running it with message. Use it when earlier outputs belong in the
// system prompt rather than the user turn.
func InstructedAgentStage(name, outputKey, message string, runner *Runner) Stage {
	return &StageFunc{
		StageName: name,
		OutputKey: outputKey,
		Fn: func(ctx context.Context, state *State) (string, error) {
			vars := state.Snapshot()
			r := runner.WithInstructions(RenderState(runner.Config().Instructions, vars))
			return r.Ask(ctx, RenderState(message, vars))
		},
	}
}

type sequential struct {
	name   string
	stages []Stage
}

// Sequential runs stages one after another. The first failure stops it.
func Sequential(name string, stages ...Stage) Stage {
	return &sequential{name: name, stages: stages}
}

func (s *sequential) Name() string { return s.name }

func (s *sequential) Run(ctx context.Context, state *State) error {
	for _, st := range s.stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := st.Run(ctx, state); err != nil {
			return err
		}
	}
	return nil
}

type parallel struct {
	name   string
	stages []Stage
}

// Parallel runs stages concurrently. The first failure cancels the rest.
func Parallel(name string, stages ...Stage) Stage {
	return &parallel{name: name, stages: stages}
}

func (p *parallel) Name() string { return p.name }

func (p *parallel) Run(ctx context.Context, state *State) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, st := range p.stages {
		g.Go(func() error { return st.Run(gctx, state) })
	}
	return g.Wait()
}

// Pipeline is a named sequence of stages.
type Pipeline struct {
	root Stage
}

// NewPipeline creates a pipeline that runs stages in order.
func NewPipeline(name string, stages ...Stage) *Pipeline {
	return &Pipeline{root: Sequential(name, stages...)}
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string { return p.root.Name() }

// Run executes the pipeline and returns the final state.
func (p *Pipeline) Run(ctx context.Context, input map[string]string) (map[string]string, error) {
	state := NewState(input)
	if err := p.root.Run(ctx, state); err != nil {
		return state.Snapshot(), err
	}
	return state.Snapshot(), nil
}

var stateKeyRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// RenderState replaces {key} placeholders with values from vars. Unknown
// keys are left as they are.
func RenderState(template string, vars map[string]string) string {
	return stateKeyRe.ReplaceAllStringFunc(template, func(m string) string {
		if v, ok := vars[m[1:len(m)-1]]; ok {
			return v
		}
		return m
	})
}
