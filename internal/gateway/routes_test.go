package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/soyeahso/agentdesk/internal/agent"
	"github.com/soyeahso/agentdesk/internal/catalog"
	"github.com/soyeahso/agentdesk/internal/config"
	"github.com/soyeahso/agentdesk/internal/llm"
	"github.com/soyeahso/agentdesk/internal/orchestrator"
	"github.com/soyeahso/agentdesk/internal/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "test-token-123"

type askFunc func(ctx context.Context, message string) (string, error)

func (f askFunc) Ask(ctx context.Context, message string) (string, error) { return f(ctx, message) }

// echoClient answers with the instructions and the last user message.
func echoClient() *llm.MockClient {
	return &llm.MockClient{ProviderName: "google", CompleteFunc: func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		instructions := strings.SplitN(req.System, "\n", 2)[0]
		last := req.Messages[len(req.Messages)-1].Content
		return &llm.CompletionResponse{Content: instructions + " | " + last, Model: req.Model, Provider: "google"}, nil
	}}
}

func testRunner(client llm.Client) *agent.Runner {
	return agent.NewRunner(agent.Config{
		AgentID:      "assistant",
		Instructions: "Be fun!",
		Model:        "gemini-2.5-flash",
	}, client, agent.NewMemorySessionStore(), nil, testLog())
}

func testOrchestrator(t *testing.T) *orchestrator.Orchestrator {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "summarize.md"), []byte("Summarize.\n"), 0o644))
	o, err := orchestrator.New(dir, nil, llm.NewRegistry(testLog()), orchestrator.Options{}, testLog())
	require.NoError(t, err)
	o.AddAgent("echo", askFunc(func(_ context.Context, m string) (string, error) { return "echo: " + m, nil }))
	o.AddAgent("broken", askFunc(func(context.Context, string) (string, error) { return "", errors.New("kaput") }))
	return o
}

func fullServer(t *testing.T, client llm.Client) (*Server, *httptest.Server) {
	t.Helper()
	o := testOrchestrator(t)
	specs := []catalog.Specialization{{Slug: "engineering", Title: "Engineering"}}
	exec := tasks.NewExecutor(tasks.NewAgentCard("agentdesk", "Test agent", "http://example.test"),
		askFunc(func(_ context.Context, m string) (string, error) { return "task: " + m, nil }),
		tasks.NewMemoryStore(), testLog())

	return newTestServer(t,
		WithRunner(testRunner(client)),
		WithOrchestrator(o),
		WithRouter(orchestrator.NewRouter(o, specs, o.AgentList(), "", testLog())),
		WithTasks(exec),
		WithConfigRaw(map[string]any{
			"gateway": map[string]any{"port": 8080, "auth": map[string]any{"token": "secret"}},
			"logging": map[string]any{"level": "info"},
		}),
	)
}

func newTestServer(t *testing.T, opts ...ServerOption) (*Server, *httptest.Server) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Gateway.Auth = config.GatewayAuth{Mode: AuthToken, Token: testToken}
	s := New(cfg, testLog(), opts...)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func postJSON(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func getJSON(t *testing.T, url string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestRootAndHealth(t *testing.T) {
	_, ts := fullServer(t, echoClient())

	resp, body := getJSON(t, ts.URL+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body["message"], "Welcome to the agentdesk gateway")
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	resp, body = getJSON(t, ts.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "agentdesk", body["service"])
	assert.Equal(t, "ready", body["agent"])
}

func TestHealthWithoutAgent(t *testing.T) {
	_, ts := newTestServer(t)
	_, body := getJSON(t, ts.URL+"/health")
	assert.Equal(t, "unavailable", body["agent"])
}

func TestNotFound(t *testing.T) {
	_, ts := newTestServer(t)
	resp, body := getJSON(t, ts.URL+"/nonexistent")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "/nonexistent", body["path"])
}

func TestChat(t *testing.T) {
	_, ts := fullServer(t, echoClient())

	resp, body := postJSON(t, ts.URL+"/chat", `{"message": "tell me a joke", "user_id": "u1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Be fun! | tell me a joke", body["response"])
	assert.Equal(t, "tell me a joke", body["user_message"])
}

func TestChatHistory(t *testing.T) {
	var (
		mu   sync.Mutex
		seen [][]string
	)
	client := &llm.MockClient{CompleteFunc: func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		var turns []string
		for _, m := range req.Messages {
			turns = append(turns, m.Content)
		}
		mu.Lock()
		seen = append(seen, turns)
		mu.Unlock()
		return &llm.CompletionResponse{Content: "ok", Model: req.Model}, nil
	}}
	_, ts := fullServer(t, client)

	last := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return seen[len(seen)-1]
	}

	t.Run("anonymous callers share nothing", func(t *testing.T) {
		resp, _ := postJSON(t, ts.URL+"/chat", `{"message": "my password is hunter2"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp, _ = postJSON(t, ts.URL+"/chat", `{"message": "hello"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		turns := last()
		require.Len(t, turns, 1)
		assert.Contains(t, turns[0], "hello")
		assert.NotContains(t, strings.Join(turns, "\n"), "hunter2")
	})

	t.Run("named user keeps history", func(t *testing.T) {
		postJSON(t, ts.URL+"/chat", `{"message": "first", "user_id": "u1"}`)
		postJSON(t, ts.URL+"/chat", `{"message": "second", "user_id": "u1"}`)

		turns := last()
		require.Len(t, turns, 3)
		assert.Contains(t, turns[0], "first")
		assert.Contains(t, turns[2], "second")
	})
}

func TestChatValidation(t *testing.T) {
	_, ts := fullServer(t, echoClient())

	resp, body := postJSON(t, ts.URL+"/chat", `{"message": "  "}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "message is required", body["detail"])

	resp, _ = postJSON(t, ts.URL+"/chat", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, bare := newTestServer(t)
	resp, _ = postJSON(t, bare.URL+"/chat", `{"message": "hi"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestChatAgentError(t *testing.T) {
	failing := &llm.MockClient{CompleteFunc: func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return nil, errors.New("quota exceeded")
	}}
	_, ts := fullServer(t, failing)

	resp, body := postJSON(t, ts.URL+"/chat", `{"message": "hi"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body["detail"], "Agent error: ")
	assert.Contains(t, body["detail"], "quota exceeded")
}

func TestChatStream(t *testing.T) {
	client := &llm.MockClient{StreamFunc: func(_ context.Context, req llm.CompletionRequest) (<-chan llm.StreamEvent, error) {
		ch := make(chan llm.StreamEvent, 3)
		ch <- llm.StreamEvent{Type: llm.EventDelta, Content: "Hel"}
		ch <- llm.StreamEvent{Type: llm.EventDelta, Content: "lo"}
		ch <- llm.StreamEvent{Type: llm.EventDone, Response: &llm.CompletionResponse{Content: "Hello", Model: req.Model}}
		close(ch)
		return ch, nil
	}}
	_, ts := fullServer(t, client)

	resp, err := http.Post(ts.URL+"/chat/stream", "application/json", strings.NewReader(`{"message": "hi"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var lines []string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		if sc.Text() != "" {
			lines = append(lines, sc.Text())
		}
	}
	assert.Equal(t, []string{
		`data: {"content":"Hel"}`,
		`data: {"content":"lo"}`,
		"data: [DONE]",
	}, lines)
}

func TestChatStreamError(t *testing.T) {
	client := &llm.MockClient{StreamFunc: func(context.Context, llm.CompletionRequest) (<-chan llm.StreamEvent, error) {
		return nil, errors.New("no stream")
	}}
	_, ts := fullServer(t, client)

	resp, err := http.Post(ts.URL+"/chat/stream", "application/json", strings.NewReader(`{"message": "hi"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	sc := bufio.NewScanner(resp.Body)
	var lines []string
	for sc.Scan() {
		if sc.Text() != "" {
			lines = append(lines, sc.Text())
		}
	}
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"error":"Agent error: `)
	assert.Equal(t, "data: [DONE]", lines[1])
}

func TestChatCustom(t *testing.T) {
	_, ts := fullServer(t, echoClient())

	resp, body := postJSON(t, ts.URL+"/chat/custom?instructions=Be+a+pirate.", `{"message": "hello"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Be a pirate. | hello", body["response"])
	assert.Equal(t, "Be a pirate.", body["custom_instructions"])

	resp, _ = postJSON(t, ts.URL+"/chat/custom", `{"message": "hello"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	// The override does not stick.
	_, body = postJSON(t, ts.URL+"/chat", `{"message": "again"}`)
	assert.Equal(t, "Be fun! | again", body["response"])
}

func TestAgentInfo(t *testing.T) {
	_, ts := fullServer(t, echoClient())
	_, body := getJSON(t, ts.URL+"/agent/info")
	assert.Equal(t, map[string]any{
		"model":        "gemini-2.5-flash",
		"provider":     "google",
		"instructions": "Be fun!",
		"status":       "active",
	}, body)
}

func TestAgentsAndWorkflows(t *testing.T) {
	_, ts := fullServer(t, echoClient())

	_, body := getJSON(t, ts.URL+"/agents")
	assert.Equal(t, []any{"broken", "echo"}, body["agents"])
	assert.EqualValues(t, 2, body["count"])

	_, body = getJSON(t, ts.URL+"/workflows")
	assert.Equal(t, []any{"summarize"}, body["workflows"])

	_, bare := newTestServer(t)
	resp, _ := getJSON(t, bare.URL+"/agents")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRoute(t *testing.T) {
	_, ts := fullServer(t, echoClient())

	resp, body := postJSON(t, ts.URL+"/route", `{"query": "please ask echo about this"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "echo", body["target"])
	assert.Equal(t, orchestrator.KindAgent, body["kind"])
	assert.Equal(t, orchestrator.MethodFallback, body["method"])

	_, body = postJSON(t, ts.URL+"/route", `{"query": "hello there"}`)
	assert.Equal(t, "engineering", body["target"])
	assert.Equal(t, orchestrator.MethodDefault, body["method"])

	resp, _ = postJSON(t, ts.URL+"/route", `{"query": ""}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestParallel(t *testing.T) {
	_, ts := fullServer(t, echoClient())

	resp, body := postJSON(t, ts.URL+"/parallel", `{"tasks": [{"agent": "echo"}, {"agent": "broken"}, {"agent": "ghost"}], "message": "hi"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "parallel", body["execution_type"])
	assert.EqualValues(t, 2, body["agent_count"])
	assert.Equal(t, map[string]any{"echo": "echo: hi"}, body["results"])
	assert.Equal(t, map[string]any{"broken": "kaput"}, body["errors"])

	resp, body = postJSON(t, ts.URL+"/parallel", `{"tasks": [{"agent": "ghost"}], "message": "hi"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "No valid agents found for parallel execution", body["detail"])
}

func TestA2AMounted(t *testing.T) {
	_, ts := fullServer(t, echoClient())

	_, card := getJSON(t, ts.URL+"/.well-known/agent.json")
	assert.Equal(t, "agentdesk", card["name"])

	resp, body := postJSON(t, ts.URL+"/a2a", `{"jsonrpc": "2.0", "id": 1, "method": "message/send",
		"params": {"message": {"kind": "message", "messageId": "m1", "role": "user", "parts": [{"kind": "text", "text": "ping"}]}}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := body["result"].(map[string]any)
	assert.Equal(t, "completed", result["status"].(map[string]any)["state"])
}

func TestIsReadableConfigPath(t *testing.T) {
	tests := map[string]bool{
		"gateway.port":           true,
		"gateway.controlUi":      true,
		"logging.level":          true,
		"agents.defaults.model":  true,
		"gateway.auth":           false,
		"gateway.auth.token":     false,
		"gateway.tls.keyPath":    false,
		"providers.google":       false,
		"tasks.postgres.dsn":     false,
		"memory.redisUrl":        false,
		"gateway.portable":       false,
		"":                       false,
	}
	for path, want := range tests {
		assert.Equal(t, want, isReadableConfigPath(path), path)
	}
}

func TestResolveBindAddr(t *testing.T) {
	assert.Equal(t, "0.0.0.0:8080", ResolveBindAddr(config.GatewayConfig{}))
	assert.Equal(t, "127.0.0.1:9000", ResolveBindAddr(config.GatewayConfig{Bind: "loopback", Port: 9000}))
	assert.Equal(t, "10.1.2.3:8080", ResolveBindAddr(config.GatewayConfig{Bind: "custom", CustomBindHost: "10.1.2.3", Port: 8080}))
	assert.Equal(t, "0.0.0.0:8081", ResolveBindAddr(config.GatewayConfig{Bind: "lan", Port: 8081}))
}
