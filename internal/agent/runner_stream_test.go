package agent

import (
	"context"
	"sync"
	"testing"

	"github.com/soyeahso/agentdesk/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockStreamClient replays one scripted event sequence per Stream call.
type mockStreamClient struct {
	mu            sync.Mutex
	responses     [][]llm.StreamEvent
	responseIndex int
}

func (m *mockStreamClient) Name() string { return "mock-stream" }

func (m *mockStreamClient) Complete(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return &llm.CompletionResponse{Content: "mock response"}, nil
}

func (m *mockStreamClient) Stream(context.Context, llm.CompletionRequest) (<-chan llm.StreamEvent, error) {
	m.mu.Lock()
	events := m.responses[min(m.responseIndex, len(m.responses)-1)]
	m.responseIndex++
	m.mu.Unlock()

	ch := make(chan llm.StreamEvent, len(events))
	go func() {
		defer close(ch)
		for _, evt := range events {
			ch <- evt
		}
	}()
	return ch, nil
}

func TestRunStream_Basic(t *testing.T) {
	client := &mockStreamClient{responses: [][]llm.StreamEvent{{
		{Type: llm.EventDelta, Content: "Hello"},
		{Type: llm.EventDelta, Content: ", world"},
		{Type: llm.EventDone, Response: &llm.CompletionResponse{Model: "test-model", Usage: llm.Usage{OutputTokens: 3}}},
	}}}
	runner := NewRunner(Config{AgentID: "s"}, client, NewMemorySessionStore(), nil, silentLog())

	var deltas []string
	var done *llm.StreamEvent
	result, err := runner.RunStream(context.Background(), testRequest(), func(evt llm.StreamEvent) {
		switch evt.Type {
		case llm.EventDelta:
			deltas = append(deltas, evt.Content)
		case llm.EventDone:
			done = &evt
		}
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", result.Response)
	assert.Equal(t, "test-model", result.Model)
	assert.Equal(t, []string{"Hello", ", world"}, deltas)
	require.NotNil(t, done)
	assert.Equal(t, "Hello, world", done.Response.Content)
	assert.Equal(t, 3, done.Response.Usage.OutputTokens)
}

func TestRunStream_WithToolCalls(t *testing.T) {
	call := "```tool_call\n{\"tool\": \"test_tool\", \"input\": {}}\n```"
	client := &mockStreamClient{responses: [][]llm.StreamEvent{
		{
			{Type: llm.EventDelta, Content: "Let me check that.\n\n"},
			{Type: llm.EventDelta, Content: call},
			{Type: llm.EventDone, Response: &llm.CompletionResponse{Usage: llm.Usage{InputTokens: 10, OutputTokens: 20}}},
		},
		{
			{Type: llm.EventDelta, Content: "The result is 42."},
			{Type: llm.EventDone, Response: &llm.CompletionResponse{Usage: llm.Usage{InputTokens: 30, OutputTokens: 10}}},
		},
	}}

	tools := NewToolRegistry(NewFuncTool("test_tool", "A test tool", `{"type": "object"}`,
		func(context.Context, string) (string, error) { return "Tool result: 42", nil }))
	runner := NewRunner(Config{AgentID: "s"}, client, NewMemorySessionStore(), tools, silentLog())

	var types []string
	result, err := runner.RunStream(context.Background(), testRequest(), func(evt llm.StreamEvent) {
		types = append(types, evt.Type)
	})
	require.NoError(t, err)
	assert.Equal(t, "The result is 42.", result.Response)
	assert.Equal(t, 40, result.Usage.InputTokens)
	assert.Equal(t, []string{
		llm.EventDelta, llm.EventDelta, EventToolStart, EventToolResult, llm.EventDelta, llm.EventDone,
	}, types)
}

func TestRunStream_ToolErrorEvent(t *testing.T) {
	call := "```tool_call\n{\"tool\": \"broken\", \"input\": {}}\n```"
	client := &mockStreamClient{responses: [][]llm.StreamEvent{
		{{Type: llm.EventDelta, Content: call}},
		{{Type: llm.EventDelta, Content: "gave up"}},
	}}
	tools := NewToolRegistry(NewFuncTool("broken", "fails", "",
		func(context.Context, string) (string, error) { return "", assert.AnError }))
	runner := NewRunner(Config{}, client, nil, tools, silentLog())

	var errEvents []string
	result, err := runner.RunStream(context.Background(), testRequest(), func(evt llm.StreamEvent) {
		if evt.Type == EventToolError {
			errEvents = append(errEvents, evt.Content)
		}
	})
	require.NoError(t, err)
	assert.Equal(t, "gave up", result.Response)
	require.Len(t, errEvents, 1)
	assert.Contains(t, errEvents[0], "Tool broken failed")
	assert.Contains(t, result.ToolCalls[0].Output, "Error: ")
}

func TestRunStream_ErrorEvent(t *testing.T) {
	client := &mockStreamClient{responses: [][]llm.StreamEvent{{
		{Type: llm.EventDelta, Content: "partial"},
		{Type: llm.EventError, Error: "connection dropped"},
	}}}
	runner := NewRunner(Config{}, client, nil, nil, silentLog())

	_, err := runner.RunStream(context.Background(), testRequest(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection dropped")
}
