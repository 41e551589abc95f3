package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/soyeahso/agentdesk/internal/agent"
	"github.com/soyeahso/agentdesk/internal/config"
	"github.com/soyeahso/agentdesk/internal/domain"
	"github.com/soyeahso/agentdesk/internal/llm"
	"github.com/soyeahso/agentdesk/internal/orchestrator"
	"github.com/soyeahso/agentdesk/internal/version"
)

// readableConfigPrefixes are the config paths config.get may read.
// Credentials live outside all of them.
var readableConfigPrefixes = []string{
	"gateway.port",
	"gateway.bind",
	"gateway.customBindHost",
	"gateway.publicUrl",
	"gateway.controlUi",
	"agents",
	"orchestrator",
	"memory.backend",
	"memory.topK",
	"tasks.store",
	"session",
	"moderation",
	"logging",
}

func isReadableConfigPath(key string) bool {
	for _, p := range readableConfigPrefixes {
		if key == p || strings.HasPrefix(key, p+".") {
			return true
		}
	}
	return false
}

func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /chat/stream", s.handleChatStream)
	mux.HandleFunc("POST /chat/custom", s.handleChatCustom)
	mux.HandleFunc("GET /agent/info", s.handleAgentInfo)
	mux.HandleFunc("GET /agents", s.handleAgents)
	mux.HandleFunc("GET /workflows", s.handleWorkflows)
	mux.HandleFunc("POST /route", s.handleRoute)
	mux.HandleFunc("POST /parallel", s.handleParallel)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	if s.tasks != nil {
		s.tasks.Mount(mux)
	}
	mux.HandleFunc("/", handleNotFound)
}

func (s *Server) registerRPCHandlers() {
	s.Handle("health", s.rpcHealth)
	s.Handle("config.get", s.rpcConfigGet)
	s.Handle("agents.list", s.rpcAgentsList)
	s.Handle("workflows.list", s.rpcWorkflowsList)
	s.Handle("chat.send", s.rpcChatSend)
	s.Handle("route", s.rpcRoute)
	s.Handle("parallel.run", s.rpcParallelRun)
}

func (s *Server) rpcHealth(rc *RequestContext) {
	agentState := "ready"
	if s.runner == nil {
		agentState = "unavailable"
	}
	rc.Respond(HealthResponse{
		Status:  "healthy",
		Service: ServiceName,
		Agent:   agentState,
		Version: version.Version,
		Clients: s.clients.Count(),
	})
}

type configGetParams struct {
	Key string `json:"key"`
}

func (s *Server) rpcConfigGet(rc *RequestContext) {
	var p configGetParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	if p.Key == "" {
		rc.RespondError(CodeInvalidParams, "key is required")
		return
	}
	if !isReadableConfigPath(p.Key) {
		rc.RespondError(CodeForbidden, "access denied for config path: "+p.Key)
		return
	}
	path, err := config.ParseConfigPath(p.Key)
	if err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}

	s.mu.RLock()
	val, ok := config.GetValueAtPath(s.configRaw, path)
	s.mu.RUnlock()
	if !ok {
		rc.RespondError(CodeNotFound, "key not found: "+p.Key)
		return
	}
	rc.Respond(map[string]any{"key": p.Key, "value": val})
}

func (s *Server) rpcAgentsList(rc *RequestContext) {
	if s.orch == nil {
		rc.Respond(map[string]any{"agents": []string{}})
		return
	}
	rc.Respond(map[string]any{"agents": s.orch.AgentList()})
}

func (s *Server) rpcWorkflowsList(rc *RequestContext) {
	if s.orch == nil {
		rc.Respond(map[string]any{"workflows": []string{}})
		return
	}
	rc.Respond(map[string]any{"workflows": s.orch.ListWorkflows()})
}

type chatSendParams struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId,omitempty"`
	Stream         bool   `json:"stream,omitempty"`
}

// rpcChatSend runs the default agent. With stream set, deltas arrive as
// chat.delta events before the response.
func (s *Server) rpcChatSend(rc *RequestContext) {
	if s.runner == nil {
		rc.RespondError(CodeUnavailable, "no agent configured")
		return
	}
	var p chatSendParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	if strings.TrimSpace(p.Message) == "" {
		rc.RespondError(CodeInvalidParams, "message is required")
		return
	}

	req := domain.Request{
		ID:             rc.Frame.ID,
		Surface:        "ws",
		UserID:         rc.Client.ConnID,
		UserName:       rc.Client.Info.DisplayName,
		ConversationID: p.ConversationID,
		Body:           p.Message,
		Timestamp:      time.Now(),
	}
	ctx, cancel := context.WithTimeout(rc.Context, llmCallTimeout)
	defer cancel()

	var (
		res *agent.RunResult
		err error
	)
	if p.Stream {
		res, err = s.runner.RunStream(ctx, req, func(evt llm.StreamEvent) {
			switch evt.Type {
			case llm.EventDelta:
				rc.Client.Emit(EventChatDelta, map[string]any{"requestId": rc.Frame.ID, "content": evt.Content})
			case agent.EventToolStart, agent.EventToolResult, agent.EventToolError:
				rc.Client.Emit(EventChatTool, map[string]any{"requestId": rc.Frame.ID, "type": evt.Type, "content": evt.Content})
			}
		})
	} else {
		res, err = s.runner.Run(ctx, req)
	}
	if err != nil {
		rc.RespondError(CodeAgentError, err.Error())
		return
	}
	rc.Respond(res)
}

type routeParams struct {
	Query string `json:"query"`
}

func (s *Server) rpcRoute(rc *RequestContext) {
	if s.router == nil {
		rc.RespondError(CodeUnavailable, "router not configured")
		return
	}
	var p routeParams
	if err := rc.Params(&p); err != nil || strings.TrimSpace(p.Query) == "" {
		rc.RespondError(CodeInvalidParams, "query is required")
		return
	}
	ctx, cancel := context.WithTimeout(rc.Context, llmCallTimeout)
	defer cancel()
	rc.Respond(s.router.Route(ctx, p.Query))
}

func (s *Server) rpcParallelRun(rc *RequestContext) {
	if s.orch == nil {
		rc.RespondError(CodeUnavailable, "orchestrator not configured")
		return
	}
	var p parallelRequest
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(rc.Context, llmCallTimeout)
	defer cancel()

	res, err := s.orch.ParallelExecution(ctx, p.Tasks, p.Message)
	switch {
	case errors.Is(err, orchestrator.ErrNoValidAgents):
		rc.RespondError(CodeInvalidParams, err.Error())
	case err != nil:
		rc.RespondError(CodeAgentError, err.Error())
	default:
		rc.Respond(res)
	}
}
