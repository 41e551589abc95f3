package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/soyeahso/agentdesk/internal/catalog"
	"github.com/soyeahso/agentdesk/internal/hooks"
	"github.com/soyeahso/agentdesk/internal/llm"
	"github.com/soyeahso/agentdesk/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentLog() *logging.Logger { return logging.New(nil, "silent") }

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

const routingMD = `---
description: Picks a specialist category
temperature: 0.1
max_tokens: 50
---

You route questions.

Available agents:
{{available_agents}}

Answer with one of: {{query_type}}
`

func workflowTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "routing.md"), routingMD)
	writeFile(t, filepath.Join(dir, "orchestrator_main.md"), "You coordinate {{team}}.")
	writeFile(t, filepath.Join(dir, "steps", "summarize.md"), "---\nmodel: claude-3-haiku\nprovider: anthropic\nparallel: true\n---\nSummarize.\n")
	writeFile(t, filepath.Join(dir, "blank.md"), "---\nname: blank\n---\n")
	return dir
}

func registry(clients map[string]llm.Client) *llm.Registry {
	reg := llm.NewRegistry(silentLog())
	for name, c := range clients {
		reg.Register(name, c)
	}
	return reg
}

func newOrch(t *testing.T, reg *llm.Registry, manager *catalog.Manager, opts Options) *Orchestrator {
	t.Helper()
	o, err := New(workflowTree(t), manager, reg, opts, silentLog())
	require.NoError(t, err)
	return o
}

type askFunc func(ctx context.Context, message string) (string, error)

func (f askFunc) Ask(ctx context.Context, message string) (string, error) { return f(ctx, message) }

func TestLoadWorkflow(t *testing.T) {
	dir := workflowTree(t)

	wf, warn, err := LoadWorkflow(filepath.Join(dir, "routing.md"))
	require.NoError(t, err)
	assert.NoError(t, warn)
	assert.Equal(t, "routing", wf.Name)
	assert.Equal(t, 0.1, wf.Temperature)
	assert.Equal(t, 50, wf.MaxTokens)
	assert.Equal(t, "Picks a specialist category", wf.Description)
	assert.True(t, strings.HasPrefix(wf.SystemPrompt, "You route questions."))

	wf, _, err = LoadWorkflow(filepath.Join(dir, "orchestrator_main.md"))
	require.NoError(t, err)
	assert.Equal(t, DefaultWorkflowTemperature, wf.Temperature)
	assert.Equal(t, DefaultWorkflowMaxTokens, wf.MaxTokens)
	model, provider := wf.StepModel()
	assert.Equal(t, "gemini-2.5-flash-lite", model)
	assert.Equal(t, "google", provider)
}

func TestLoadWorkflowBadFrontmatter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "odd.md")
	writeFile(t, path, "---\ntemperature: [hot\n---\nStill works.\n")
	wf, warn, err := LoadWorkflow(path)
	require.NoError(t, err)
	assert.Error(t, warn)
	assert.Equal(t, "odd", wf.Name)
	assert.Equal(t, "Still works.", wf.SystemPrompt)
	assert.Equal(t, DefaultWorkflowTemperature, wf.Temperature)
}

func TestRender(t *testing.T) {
	out := Render("Hi {{name}}, {{name}}! {{missing}}", map[string]string{"name": "Ada"})
	assert.Equal(t, "Hi Ada, Ada! {{missing}}", out)
}

func TestNewMissingDir(t *testing.T) {
	_, err := New("/no/such/dir", nil, registry(nil), Options{}, silentLog())
	require.Error(t, err)
	assert.Equal(t, "Orchestrator directory not found: /no/such/dir", err.Error())
}

func TestListWorkflows(t *testing.T) {
	o := newOrch(t, registry(nil), nil, Options{})
	assert.Equal(t, []string{"blank", "orchestrator_main", "routing", "summarize"}, o.ListWorkflows())

	wf, ok := o.WorkflowInfo("summarize")
	require.True(t, ok)
	assert.True(t, wf.Parallel)
	assert.Equal(t, "anthropic", wf.Provider)

	_, ok = o.WorkflowInfo("nope")
	assert.False(t, ok)
}

func TestRoutingAgentRendersPrompt(t *testing.T) {
	var req llm.CompletionRequest
	google := &llm.MockClient{CompleteFunc: func(_ context.Context, r llm.CompletionRequest) (*llm.CompletionResponse, error) {
		req = r
		return &llm.CompletionResponse{Content: "engineering"}, nil
	}}
	o := newOrch(t, registry(map[string]llm.Client{"google": google}), nil, Options{})

	ra, err := o.RoutingAgent("\n### Engineering\n- backend", "engineering|sales")
	require.NoError(t, err)
	out, err := ra.Ask(context.Background(), "How do I scale?")
	require.NoError(t, err)

	assert.Equal(t, "engineering", out)
	assert.Contains(t, req.System, "### Engineering\n- backend")
	assert.Contains(t, req.System, "Answer with one of: engineering|sales")
	assert.Equal(t, "gemini-2.5-flash-lite", req.Model)
	assert.Equal(t, 50, req.MaxTokens)
	require.NotNil(t, req.Temperature)
	assert.Equal(t, 0.1, *req.Temperature)
}

func TestRoutingAgentMissingWorkflow(t *testing.T) {
	o := newOrch(t, registry(nil), nil, Options{RoutingWorkflow: "router_v2"})
	_, err := o.RoutingAgent("", "")
	var nf *catalog.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "Workflow 'router_v2' not found", err.Error())
}

func TestExecuteStep(t *testing.T) {
	var system string
	google := &llm.MockClient{CompleteFunc: func(_ context.Context, r llm.CompletionRequest) (*llm.CompletionResponse, error) {
		system = r.System
		return &llm.CompletionResponse{Content: "plan ready"}, nil
	}}
	h := hooks.NewManager(silentLog())
	rec := hooks.NewRecorder(0)
	h.On(hooks.EventWorkflowStep, "rec", rec.Handle)
	o := newOrch(t, registry(map[string]llm.Client{"google": google}), nil, Options{Hooks: h})

	res, err := o.ExecuteStep(context.Background(), "orchestrator_main", "plan", "Launch a product", map[string]string{"team": "the launch team"})
	require.NoError(t, err)
	assert.Equal(t, &StepResult{Step: "plan", Agent: "orchestrator_main", ExecutionType: "sequential", Response: "plan ready"}, res)
	assert.Contains(t, system, "You coordinate the launch team.")

	require.Len(t, rec.Payloads(), 1)
	assert.Equal(t, "plan", rec.Payloads()[0].Data["step"])
}

func TestExecuteStepEmptyPrompt(t *testing.T) {
	o := newOrch(t, registry(map[string]llm.Client{"google": llm.Reply("x")}), nil, Options{})
	_, err := o.ExecuteStep(context.Background(), "blank", "s", "m", nil)
	require.Error(t, err)
	assert.Equal(t, "System prompt is required for workflow execution", err.Error())
}

func TestExecuteStepUnconfiguredProvider(t *testing.T) {
	o := newOrch(t, registry(map[string]llm.Client{"google": llm.Reply("x")}), nil, Options{})
	_, err := o.ExecuteStep(context.Background(), "summarize", "s", "m", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic")
}

func TestParallelExecution(t *testing.T) {
	o := newOrch(t, registry(nil), nil, Options{})
	o.AddAgent("echo", askFunc(func(_ context.Context, m string) (string, error) { return "echo: " + m, nil }))
	o.AddAgent("broken", askFunc(func(context.Context, string) (string, error) { return "", errors.New("kaput") }))

	res, err := o.ParallelExecution(context.Background(), []Task{
		{Agent: "echo"},
		{Agent: "broken", Message: "custom"},
		{Agent: "ghost"},
	}, "default question")
	require.NoError(t, err)

	assert.Equal(t, "parallel", res.ExecutionType)
	assert.Equal(t, 2, res.AgentCount)
	assert.Equal(t, map[string]string{"echo": "echo: default question"}, res.Results)
	assert.Equal(t, map[string]string{"broken": "kaput"}, res.Errors)
}

func TestParallelExecutionNoValidAgents(t *testing.T) {
	o := newOrch(t, registry(nil), nil, Options{})
	_, err := o.ParallelExecution(context.Background(), []Task{{Agent: "ghost"}}, "hi")
	require.ErrorIs(t, err, ErrNoValidAgents)
	assert.Equal(t, "No valid agents found for parallel execution", err.Error())
}

func TestAgentRegistry(t *testing.T) {
	cat := catalog.New(catalog.Definition{Name: "writer", Provider: "google", Model: "gemini-2.5-pro", Prompt: "Write."})
	reg := registry(map[string]llm.Client{"google": llm.Reply("drafted")})
	m := catalog.NewManager(cat, reg, catalog.ManagerOptions{}, silentLog())
	o := newOrch(t, reg, m, Options{})

	assert.Equal(t, []string{"writer"}, o.AgentList())

	res, err := o.ParallelExecution(context.Background(), []Task{{Agent: "writer"}}, "a poem")
	require.NoError(t, err)
	assert.Equal(t, "drafted", res.Results["writer"])

	o.AddAgent("editor", askFunc(func(context.Context, string) (string, error) { return "", nil }))
	assert.Equal(t, []string{"editor", "writer"}, o.AgentList())
	assert.True(t, o.RemoveAgent("writer"))
	assert.False(t, o.RemoveAgent("writer"))
	assert.Equal(t, []string{"editor"}, o.AgentList())
}
