// Package agent runs a model-backed agent: the tool-call loop, session
// history, provider failover and multi-stage pipelines.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/agentdesk/internal/domain"
	"github.com/soyeahso/agentdesk/internal/hooks"
	"github.com/soyeahso/agentdesk/internal/llm"
	"github.com/soyeahso/agentdesk/internal/logging"
)

// maxToolIterations limits how many tool call rounds the agent can perform.
const maxToolIterations = 5

// Runner stream event types, in addition to llm.EventDelta/EventDone.
const (
	EventToolStart  = "tool_start"
	EventToolResult = "tool_result"
	EventToolError  = "tool_error"
)

// Config configures a Runner.
type Config struct {
	AgentID      string
	AgentName    string
	Instructions string
	Model        string
	MaxTokens    int
	Temperature  *float64
	ExtraPrompt  string
	// JSON asks the provider for a JSON object reply.
	JSON   bool
	Limits llm.UsageLimits
}

// RunResult is the outcome of processing a message.
type RunResult struct {
	Response  string            `json:"response"`
	SessionID string            `json:"sessionId,omitempty"`
	AgentID   string            `json:"agentId,omitempty"`
	Model     string            `json:"model,omitempty"`
	Provider  string            `json:"provider,omitempty"`
	Usage     llm.Usage         `json:"usage"`
	ToolCalls []domain.ToolCall `json:"toolCalls,omitempty"`
	Duration  time.Duration     `json:"duration"`
}

// StreamCallback is called for each streaming event during RunStream.
// Event types:
//   - "delta": incremental text (Content)
//   - "tool_start": tools are about to run (Content describes them)
//   - "tool_result": a tool completed
//   - "tool_error": a tool failed (Content describes the error)
//   - "done": the final response is ready (Response)
type StreamCallback func(event llm.StreamEvent)

// Option customises a Runner.
type Option func(*Runner)

// WithHooks emits lifecycle events to h.
func WithHooks(h *hooks.Manager) Option {
	return func(r *Runner) { r.hooks = h }
}

// Runner is the agent loop. It builds context, calls the model, runs any
// requested tools and returns the final answer.
type Runner struct {
	cfg      Config
	client   llm.Client
	sessions SessionStore
	tools    *ToolRegistry
	hooks    *hooks.Manager
	log      *logging.Logger
}

// NewRunner creates an agent runner. A nil sessions store makes every run
// start from an empty history; a nil tools registry disables tool use.
func NewRunner(cfg Config, client llm.Client, sessions SessionStore, tools *ToolRegistry, log *logging.Logger, opts ...Option) *Runner {
	if cfg.AgentID == "" {
		cfg.AgentID = "default"
	}
	r := &Runner{
		cfg:      cfg,
		client:   client,
		sessions: sessions,
		tools:    tools,
		log:      log.Sub("agent." + cfg.AgentID),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Config returns the runner's configuration.
func (r *Runner) Config() Config { return r.cfg }

// Provider names the provider behind the runner's client.
func (r *Runner) Provider() string { return r.client.Name() }

// Tools returns the runner's tool registry, which may be nil.
func (r *Runner) Tools() *ToolRegistry { return r.tools }

// WithInstructions returns a copy of r that uses different instructions
// and shares everything else.
func (r *Runner) WithInstructions(instructions string) *Runner {
	cp := *r
	cp.cfg.Instructions = instructions
	return &cp
}

// Run processes a request and returns the agent's response.
func (r *Runner) Run(ctx context.Context, req domain.Request) (*RunResult, error) {
	return r.run(ctx, req, r.sessions, nil)
}

// RunStream processes a request, forwarding deltas and tool events to cb.
func (r *Runner) RunStream(ctx context.Context, req domain.Request, cb StreamCallback) (*RunResult, error) {
	if cb == nil {
		cb = func(llm.StreamEvent) {}
	}
	return r.run(ctx, req, r.sessions, cb)
}

// Ask runs a single message with no stored history and returns the text.
func (r *Runner) Ask(ctx context.Context, message string) (string, error) {
	res, err := r.run(ctx, domain.Request{Surface: "internal", Body: message, Timestamp: time.Now()}, nil, nil)
	if err != nil {
		return "", err
	}
	return res.Response, nil
}

func (r *Runner) run(ctx context.Context, req domain.Request, store SessionStore, cb StreamCallback) (*RunResult, error) {
	start := time.Now()
	if store == nil {
		store = NewMemorySessionStore()
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = start
	}

	session := store.GetOrCreate(req.Key(), r.cfg.AgentID)
	r.log.Info().
		Str("sessionId", session.ID).
		Str("surface", req.Surface).
		Str("user", req.UserID).
		Int("historyLen", len(session.Messages)).
		Bool("stream", cb != nil).
		Msg("processing message")

	r.hooks.Emit(ctx, hooks.EventBeforeAgentRun, map[string]any{
		"agent":   r.cfg.AgentID,
		"session": session.ID,
		"surface": req.Surface,
	})

	store.Append(session.ID, domain.Message{Role: llm.RoleUser, Content: req.Body, Timestamp: req.Timestamp})

	system := BuildSystemPrompt(PromptConfig{
		Instructions: r.cfg.Instructions,
		Tools:        r.tools.Definitions(),
		UserName:     req.UserName,
		ExtraPrompt:  r.cfg.ExtraPrompt,
	})

	result := &RunResult{SessionID: session.ID, AgentID: r.cfg.AgentID}
	finalResp, err := r.loop(ctx, session.ID, store, system, result, cb)

	r.hooks.Emit(ctx, hooks.EventAfterAgentRun, map[string]any{
		"agent":    r.cfg.AgentID,
		"session":  session.ID,
		"duration": time.Since(start).String(),
		"error":    errString(err),
	})
	if err != nil {
		return nil, err
	}

	cleanResponse := stripToolCalls(finalResp.Content, r.log)
	store.Append(session.ID, domain.Message{
		Role:      llm.RoleAssistant,
		Content:   cleanResponse,
		Timestamp: time.Now(),
		ToolCalls: result.ToolCalls,
	})

	result.Response = cleanResponse
	result.Model = finalResp.Model
	result.Provider = finalResp.Provider
	result.Duration = time.Since(start)

	r.log.Info().
		Str("sessionId", session.ID).
		Str("model", result.Model).
		Int("inputTokens", result.Usage.InputTokens).
		Int("outputTokens", result.Usage.OutputTokens).
		Dur("duration", result.Duration).
		Msg("response generated")

	if cb != nil {
		cb(llm.StreamEvent{Type: llm.EventDone, Content: cleanResponse, Response: &llm.CompletionResponse{
			Content:  cleanResponse,
			Usage:    result.Usage,
			Model:    result.Model,
			Provider: result.Provider,
			Duration: result.Duration,
		}})
	}
	return result, nil
}

// loop runs completions until the model stops asking for tools.
func (r *Runner) loop(ctx context.Context, sessionID string, store SessionStore, system string, result *RunResult, cb StreamCallback) (*llm.CompletionResponse, error) {
	var finalResp *llm.CompletionResponse
	for i := 0; i < maxToolIterations; i++ {
		req := llm.CompletionRequest{
			Model:       r.cfg.Model,
			System:      system,
			Messages:    store.History(sessionID),
			MaxTokens:   r.cfg.MaxTokens,
			Temperature: r.cfg.Temperature,
			JSON:        r.cfg.JSON,
		}

		resp, err := r.complete(ctx, req, cb)
		if err != nil {
			return nil, err
		}
		result.Usage.Add(resp.Usage)
		if err := r.cfg.Limits.Check(resp.Usage); err != nil {
			return nil, err
		}
		finalResp = resp

		calls := parseToolCalls(resp.Content)
		if len(calls) == 0 || r.tools.Len() == 0 {
			break
		}

		r.log.Info().Int("toolCalls", len(calls)).Msg("executing tool calls")
		if cb != nil {
			cb(llm.StreamEvent{Type: EventToolStart, Content: fmt.Sprintf("Executing %d tool(s)...", len(calls))})
		}

		store.Append(sessionID, domain.Message{Role: llm.RoleAssistant, Content: resp.Content, Timestamp: time.Now()})

		results := r.executeToolCalls(ctx, calls)
		for _, tr := range results {
			result.ToolCalls = append(result.ToolCalls, domain.ToolCall{
				ID:     uuid.NewString(),
				Name:   tr.Tool,
				Input:  string(tr.Input),
				Output: tr.text(),
			})
			if cb == nil {
				continue
			}
			if tr.Err != nil {
				cb(llm.StreamEvent{Type: EventToolError, Content: fmt.Sprintf("Tool %s failed: %v", tr.Tool, tr.Err)})
			} else {
				cb(llm.StreamEvent{Type: EventToolResult, Content: fmt.Sprintf("Tool %s completed", tr.Tool)})
			}
		}

		store.Append(sessionID, domain.Message{Role: llm.RoleUser, Content: formatToolResults(results), Timestamp: time.Now()})
	}

	if finalResp == nil {
		return nil, fmt.Errorf("no response from LLM")
	}
	return finalResp, nil
}

// complete performs one model call, streaming deltas to cb when set.
func (r *Runner) complete(ctx context.Context, req llm.CompletionRequest, cb StreamCallback) (*llm.CompletionResponse, error) {
	if cb == nil {
		resp, err := r.client.Complete(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("LLM completion: %w", err)
		}
		return resp, nil
	}

	ch, err := r.client.Stream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("LLM stream: %w", err)
	}

	var content strings.Builder
	var streamResp *llm.CompletionResponse
	for evt := range ch {
		switch evt.Type {
		case llm.EventDelta:
			content.WriteString(evt.Content)
			cb(evt)
		case llm.EventDone:
			streamResp = evt.Response
		case llm.EventError:
			return nil, fmt.Errorf("stream error: %s", evt.Error)
		}
	}

	if streamResp == nil {
		streamResp = &llm.CompletionResponse{Model: req.Model}
	}
	if streamResp.Content == "" {
		streamResp.Content = content.String()
	}
	return streamResp, nil
}

// toolCall is a parsed tool invocation from the LLM response.
type toolCall struct {
	Tool  string          `json:"tool"`
	Input json.RawMessage `json:"input"`
}

// toolResult holds the output from executing a tool.
type toolResult struct {
	Tool   string
	Input  json.RawMessage
	Output string
	Err    error
}

func (t toolResult) text() string {
	if t.Err != nil {
		return "Error: " + t.Err.Error()
	}
	return t.Output
}

// toolCallRe matches ```tool_call\n{...}\n``` blocks in LLM output.
var toolCallRe = regexp.MustCompile("(?s)```tool_call\\s*\n(\\{.*?\\})\n\\s*```")

// xmlFuncCallRe matches <function_calls>...</function_calls> blocks some
// models emit instead of the fenced form.
var xmlFuncCallRe = regexp.MustCompile(`(?s)<function_calls>.*?</function_calls>`)

var xmlBlockLevelRe = regexp.MustCompile(`(?s)(?:` +
	`<invoke\b[^>]*>.*?</invoke>` +
	`|<tool_call\b[^>]*>.*?</tool_call>` +
	`|<tool_use\b[^>]*>.*?</tool_use>` +
	`)`)

var whitespaceLineRe = regexp.MustCompile(`(?m)^[ \t]+$`)

var blankLineCollapseRe = regexp.MustCompile(`\n{3,}`)

// parseToolCalls extracts tool_call blocks from LLM response text.
func parseToolCalls(text string) []toolCall {
	var calls []toolCall
	for _, match := range toolCallRe.FindAllStringSubmatch(text, -1) {
		var tc toolCall
		if err := json.Unmarshal([]byte(match[1]), &tc); err != nil {
			continue
		}
		if tc.Tool != "" {
			calls = append(calls, tc)
		}
	}
	return calls
}

// executeToolCalls runs each tool in order and returns results.
func (r *Runner) executeToolCalls(ctx context.Context, calls []toolCall) []toolResult {
	results := make([]toolResult, 0, len(calls))
	for _, tc := range calls {
		input := tc.Input
		if len(input) == 0 {
			input = json.RawMessage("{}")
		}
		res := toolResult{Tool: tc.Tool, Input: input}

		tool, ok := r.tools.Get(tc.Tool)
		if !ok {
			res.Err = fmt.Errorf("unknown tool: %s", tc.Tool)
		} else {
			r.log.Debug().Str("tool", tc.Tool).Msg("executing tool")
			res.Output, res.Err = tool.Execute(ctx, string(input))
		}

		r.hooks.Emit(ctx, hooks.EventToolCall, map[string]any{
			"agent": r.cfg.AgentID,
			"tool":  tc.Tool,
			"error": errString(res.Err),
		})
		results = append(results, res)
	}
	return results
}

// formatToolResults renders tool execution results for the LLM.
func formatToolResults(results []toolResult) string {
	var b strings.Builder
	b.WriteString("Tool execution results:\n\n")
	for _, r := range results {
		fmt.Fprintf(&b, "### %s\n", r.Tool)
		if r.Err != nil {
			fmt.Fprintf(&b, "Error: %s\n", r.Err)
		} else {
			b.WriteString(r.Output)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// stripToolCalls removes tool_call blocks and XML tool markup from a
// response, leaving the surrounding text.
func stripToolCalls(text string, log *logging.Logger) string {
	cleaned := toolCallRe.ReplaceAllString(text, "\n\n")

	if log != nil {
		for _, m := range xmlFuncCallRe.FindAllString(cleaned, -1) {
			log.Debug().Str("xml", m).Msg("stripped XML function_calls from LLM response")
		}
	}
	cleaned = xmlFuncCallRe.ReplaceAllString(cleaned, "\n\n")
	cleaned = xmlBlockLevelRe.ReplaceAllString(cleaned, "\n\n")

	cleaned = whitespaceLineRe.ReplaceAllString(cleaned, "")
	cleaned = blankLineCollapseRe.ReplaceAllString(cleaned, "\n\n")
	return strings.TrimSpace(cleaned)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
