package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/soyeahso/agentdesk/internal/agent"
	"github.com/soyeahso/agentdesk/internal/llm"
	"github.com/soyeahso/agentdesk/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentLog() *logging.Logger { return logging.New(nil, "silent") }

var defaults = ModelDefaults{Model: "gemini-2.5-pro", Provider: "google"}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

const frontendMD = `---
name: "frontend_developer"
category: "engineering"
model: "claude-sonnet-4-20250514"
provider: anthropic
temperature: 0.3
max_tokens: 1000
tags: ["react", "typescript"]
description: "Expert frontend developer"
tools: [get_current_datetime]
---

# Frontend Developer Agent

You are an expert frontend developer.

## Key Capabilities
- React
`

func agentTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "engineering", "frontend.md"), frontendMD)
	writeFile(t, filepath.Join(root, "engineering", "backend-architect.md"), "# Backend\n\nYou design APIs.")
	writeFile(t, filepath.Join(root, "product-design", "ux-researcher.md"), "You research users.")
	writeFile(t, filepath.Join(root, "empty", "notes.txt"), "not an agent")
	return root
}

func TestSplitFrontmatter(t *testing.T) {
	fm, body, err := SplitFrontmatter(frontendMD)
	require.NoError(t, err)
	assert.Equal(t, "frontend_developer", fm.Name)
	assert.Equal(t, 0.3, fm.Temperature)
	assert.Equal(t, 1000, fm.MaxTokens)
	assert.Equal(t, []string{"react", "typescript"}, fm.Tags)
	assert.True(t, strings.HasPrefix(body, "# Frontend Developer Agent"))

	fm, body, err = SplitFrontmatter("no header here")
	require.NoError(t, err)
	assert.Empty(t, fm.Name)
	assert.Equal(t, "no header here", body)

	_, body, err = SplitFrontmatter("---\ntemperature: [hot\n---\nbody text\n")
	require.Error(t, err)
	assert.Equal(t, "body text\n", body)
}

func TestExtractPrompt(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"plain", "  You are helpful.  ", "You are helpful."},
		{"leading heading", "# Title\nYou are helpful.", "You are helpful."},
		{"stacked headings", "# Title\n## Sub\n\nBody", "Body"},
		{"heading after blank kept", "# Title\n\n## Section\nBody", "## Section\nBody"},
		{"only heading", "# Title", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractPrompt(tt.in))
		})
	}
}

func TestResolveDefaults(t *testing.T) {
	def := Resolve("/agents/sales/deal-closer.md", Frontmatter{}, "Close deals.", defaults)
	assert.Equal(t, "deal_closer", def.Name)
	assert.Equal(t, "sales", def.Category)
	assert.Equal(t, "gemini-2.5-pro", def.Model)
	assert.Equal(t, "google", def.Provider)
	assert.Equal(t, 0.7, def.Temperature)
	assert.Equal(t, 4000, def.MaxTokens)
	assert.Equal(t, "Close deals.", def.Prompt)
}

func TestLoaderLoadAll(t *testing.T) {
	root := agentTree(t)
	cat, err := NewLoader(defaults, silentLog()).LoadAll(root)
	require.NoError(t, err)

	assert.Equal(t, 3, cat.Len())
	assert.Equal(t, []string{"backend_architect", "frontend_developer", "ux_researcher"}, cat.List())
	assert.Equal(t, []string{"engineering", "product-design"}, cat.Categories())

	fe, ok := cat.Get("frontend_developer")
	require.True(t, ok)
	assert.Equal(t, "anthropic", fe.Provider)
	assert.Equal(t, "You are an expert frontend developer.\n\n## Key Capabilities\n- React", fe.Prompt)
	assert.Equal(t, []string{"get_current_datetime"}, fe.Tools)

	be, _ := cat.Get("backend_architect")
	assert.Equal(t, "You design APIs.", be.Prompt)
	assert.Equal(t, "google", be.Provider)

	eng := cat.ByCategory("engineering")
	require.Len(t, eng, 2)
	assert.Empty(t, cat.ByCategory("Engineering"))
}

func TestLoaderMissingDir(t *testing.T) {
	_, err := NewLoader(defaults, silentLog()).LoadAll("/does/not/exist")
	require.Error(t, err)
	assert.Equal(t, "Agents directory not found: /does/not/exist", err.Error())
}

func TestLoaderEmptyDir(t *testing.T) {
	cat, err := NewLoader(defaults, silentLog()).LoadAll(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0, cat.Len())
}

func TestLoaderBadFrontmatterStillLoads(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "misc", "odd.md"), "---\nname: [broken\n---\nStill a prompt.\n")
	cat, err := NewLoader(defaults, silentLog()).LoadAll(root)
	require.NoError(t, err)
	def, ok := cat.Get("odd")
	require.True(t, ok)
	assert.Equal(t, "Still a prompt.", def.Prompt)
}

func TestLoaderDuplicateLastWins(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "helper.md"), "first")
	writeFile(t, filepath.Join(root, "b", "helper.md"), "second")
	cat, err := NewLoader(defaults, silentLog()).LoadAll(root)
	require.NoError(t, err)
	def, _ := cat.Get("helper")
	assert.Equal(t, "second", def.Prompt)
	assert.Equal(t, "b", def.Category)
}

func TestCatalogPutRemove(t *testing.T) {
	cat := New(Definition{Name: "a", Category: "x"})
	cat.Put(Definition{Name: "b", Category: "y"})
	assert.Equal(t, 2, cat.Len())
	assert.True(t, cat.Remove("a"))
	assert.False(t, cat.Remove("a"))
	assert.Equal(t, []string{"b"}, cat.List())
}

func TestSpecializations(t *testing.T) {
	root := agentTree(t)
	specs, err := Specializations(root)
	require.NoError(t, err)
	require.Len(t, specs, 2)

	assert.Equal(t, Specialization{Slug: "engineering", Title: "Engineering", Agents: []string{"backend-architect", "frontend"}}, specs[0])
	assert.Equal(t, "Product Design", specs[1].Title)

	assert.Equal(t,
		"\n### Engineering\n- backend-architect\n- frontend\n\n### Product Design\n- ux-researcher",
		CategoriesOverview(specs))
	assert.Equal(t, "engineering|product design", CategoryPattern(specs))
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Engineering", Title("engineering"))
	assert.Equal(t, "Product Design", Title("product-design"))
	assert.Equal(t, "Web3Dev", Title("web3dev"))
	assert.Equal(t, "Ai Ml", Title("AI-ML"))
}

func TestNotFoundError(t *testing.T) {
	assert.Equal(t, "Agent 'x' not found", (&NotFoundError{Kind: "Agent", Name: "x"}).Error())
}

// --- Manager ---

func testManager(t *testing.T, google llm.Client, tools *agent.ToolRegistry) *Manager {
	t.Helper()
	cat, err := NewLoader(defaults, silentLog()).LoadAll(agentTree(t))
	require.NoError(t, err)
	reg := llm.NewRegistry(silentLog())
	reg.Register("google", google)
	return NewManager(cat, reg, ManagerOptions{Tools: tools}, silentLog())
}

func TestManagerRunAgent(t *testing.T) {
	var gotSystem, gotModel string
	google := &llm.MockClient{CompleteFunc: func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		gotSystem, gotModel = req.System, req.Model
		return &llm.CompletionResponse{Content: "use REST"}, nil
	}}
	m := testManager(t, google, nil)

	out, err := m.RunAgent(context.Background(), "backend_architect", "How?")
	require.NoError(t, err)
	assert.Equal(t, "use REST", out)
	assert.Contains(t, gotSystem, "You design APIs.")
	assert.Equal(t, "gemini-2.5-pro", gotModel)

	r1, _ := m.Runner("backend_architect")
	r2, _ := m.Runner("backend_architect")
	assert.Same(t, r1, r2)
}

func TestManagerRunAgentNotFound(t *testing.T) {
	m := testManager(t, llm.Reply("x"), nil)
	_, err := m.RunAgent(context.Background(), "ghost", "hi")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "Agent 'ghost' not found", err.Error())
}

func TestManagerUnconfiguredProvider(t *testing.T) {
	m := testManager(t, llm.Reply("x"), nil)
	_, err := m.RunAgent(context.Background(), "frontend_developer", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic")
}

func TestManagerUnsupportedProvider(t *testing.T) {
	cat := New(Definition{Name: "odd", Provider: "cohere", Model: "x"})
	m := NewManager(cat, llm.NewRegistry(silentLog()), ManagerOptions{}, silentLog())
	_, err := m.RunAgent(context.Background(), "odd", "hi")
	var unsupported *llm.UnsupportedProviderError
	require.True(t, errors.As(err, &unsupported))
}

func TestManagerResolvesDefinitionTools(t *testing.T) {
	var sawTools bool
	anthropic := &llm.MockClient{CompleteFunc: func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		sawTools = strings.Contains(req.System, "### get_current_datetime")
		return &llm.CompletionResponse{Content: "ok"}, nil
	}}
	cat, err := NewLoader(defaults, silentLog()).LoadAll(agentTree(t))
	require.NoError(t, err)
	reg := llm.NewRegistry(silentLog())
	reg.Register("anthropic", anthropic)
	tools := agent.NewToolRegistry(agent.NewFuncTool("get_current_datetime", "now", "", func(context.Context, string) (string, error) {
		return "2025-01-01 00:00:00", nil
	}))
	m := NewManager(cat, reg, ManagerOptions{Tools: tools}, silentLog())

	_, err = m.RunAgent(context.Background(), "frontend_developer", "time?")
	require.NoError(t, err)
	assert.True(t, sawTools)
}

func TestManagerCategoryConsensus(t *testing.T) {
	var calls atomic.Int32
	google := &llm.MockClient{CompleteFunc: func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		calls.Add(1)
		return &llm.CompletionResponse{Content: "google says hi"}, nil
	}}
	m := testManager(t, google, nil)

	results := m.RunCategoryConsensus(context.Background(), "engineering", "Scalability?")
	require.Len(t, results, 2)
	assert.Equal(t, "google says hi", results["backend_architect"])
	// frontend_developer uses anthropic, which is not registered.
	assert.True(t, strings.HasPrefix(results["frontend_developer"], "Error: "))
	assert.Equal(t, int32(1), calls.Load())

	assert.Empty(t, m.RunCategoryConsensus(context.Background(), "nobody", "?"))
}
