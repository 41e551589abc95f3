package detective

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/soyeahso/agentdesk/internal/agent"
	"github.com/soyeahso/agentdesk/internal/catalog"
	"github.com/soyeahso/agentdesk/internal/llm"
	"github.com/soyeahso/agentdesk/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentLog() *logging.Logger { return logging.New(nil, "silent") }

func TestInvestigate(t *testing.T) {
	var (
		mu       sync.Mutex
		compiler llm.CompletionRequest
	)
	client := &llm.MockClient{CompleteFunc: func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		switch {
		case strings.HasPrefix(req.System, "Your role is to provide a brief overview"):
			return &llm.CompletionResponse{Content: "Acme makes anvils."}, nil
		case strings.HasPrefix(req.System, "Your role is to find the top 3-4"):
			return &llm.CompletionResponse{Content: "- Acme opens a new plant"}, nil
		case strings.HasPrefix(req.System, "Your role is to provide a snapshot"):
			return &llm.CompletionResponse{Content: "Shares up 4%."}, nil
		}
		mu.Lock()
		compiler = req
		mu.Unlock()
		return &llm.CompletionResponse{Content: "# Acme report"}, nil
	}}

	d := New(client, Options{Model: "gemini-2.5-flash"}, silentLog())
	rep, err := d.Investigate(context.Background(), "  Acme ")
	require.NoError(t, err)

	assert.Equal(t, &Report{
		Company:    "Acme",
		Profile:    "Acme makes anvils.",
		News:       "- Acme opens a new plant",
		Financials: "Shares up 4%.",
		Report:     "# Acme report",
	}, rep)
	assert.Contains(t, compiler.System, "## Company Profile\nAcme makes anvils.")
	assert.Contains(t, compiler.System, "## Financial Snapshot\nShares up 4%.")
	assert.Equal(t, "Acme", compiler.Messages[0].Content)
	assert.Equal(t, "gemini-2.5-flash", compiler.Model)
}

func TestInvestigateStageFailure(t *testing.T) {
	client := &llm.MockClient{CompleteFunc: func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		if strings.Contains(req.System, "financial performance") {
			return nil, errors.New("quota exceeded")
		}
		return &llm.CompletionResponse{Content: "ok"}, nil
	}}
	_, err := New(client, Options{}, silentLog()).Investigate(context.Background(), "Acme")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage financial_analyst")
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestInvestigateRequiresCompany(t *testing.T) {
	_, err := New(llm.Reply("x"), Options{}, silentLog()).Investigate(context.Background(), " ")
	assert.EqualError(t, err, "company is required")
}

func TestInstructionsFromCatalog(t *testing.T) {
	cat := catalog.New(catalog.Definition{Name: NewsFinder, Prompt: "Only headlines from this week."})
	assert.Equal(t, "Only headlines from this week.", Instructions(cat, NewsFinder))
	assert.Equal(t, DefaultInstructions[CompanyProfiler], Instructions(cat, CompanyProfiler))
	assert.Equal(t, DefaultInstructions[ReportCompiler], Instructions(nil, ReportCompiler))
}

func TestResearchAgentsGetSearchTools(t *testing.T) {
	var (
		mu      sync.Mutex
		systems []string
	)
	client := &llm.MockClient{CompleteFunc: func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		mu.Lock()
		systems = append(systems, req.System)
		mu.Unlock()
		return &llm.CompletionResponse{Content: "done"}, nil
	}}
	noop := func(context.Context, string) (string, error) { return "", nil }
	reg := agent.NewToolRegistry(
		agent.NewFuncTool("brave_search", "Search.", "", noop),
		agent.NewFuncTool("calculate", "Math.", "", noop),
	)

	_, err := New(client, Options{Tools: reg}, silentLog()).Investigate(context.Background(), "Acme")
	require.NoError(t, err)
	require.Len(t, systems, 4)

	for _, sys := range systems {
		assert.NotContains(t, sys, "### calculate")
		if strings.HasPrefix(sys, "Your role is to synthesize") {
			assert.NotContains(t, sys, "## Available Tools")
			continue
		}
		assert.Contains(t, sys, "### brave_search")
	}
}
