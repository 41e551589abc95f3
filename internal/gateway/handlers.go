package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/agentdesk/internal/agent"
	"github.com/soyeahso/agentdesk/internal/domain"
	"github.com/soyeahso/agentdesk/internal/llm"
	"github.com/soyeahso/agentdesk/internal/orchestrator"
	"github.com/soyeahso/agentdesk/internal/version"
)

// llmCallTimeout bounds one agent call made for a request.
const llmCallTimeout = 5 * time.Minute

// HealthResponse is served by /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Agent   string `json:"agent"`
	Version string `json:"version,omitempty"`
	Clients int    `json:"clients,omitempty"`
}

// ChatRequest is the body of the /chat endpoints.
type ChatRequest struct {
	Message string `json:"message"`
	UserID  string `json:"user_id,omitempty"`
}

// ChatResponse answers /chat.
type ChatResponse struct {
	Response           string `json:"response"`
	UserMessage        string `json:"user_message"`
	CustomInstructions string `json:"custom_instructions,omitempty"`
}

// AgentInfo describes the default agent.
type AgentInfo struct {
	Model        string `json:"model"`
	Provider     string `json:"provider"`
	Instructions string `json:"instructions"`
	Status       string `json:"status"`
}

type routeRequest struct {
	Query string `json:"query"`
}

type parallelRequest struct {
	Tasks   []orchestrator.Task `json:"tasks"`
	Message string              `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeDetail writes an error body as {"detail": msg}.
func writeDetail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

// decodeBody reads a JSON body into v, answering 400 itself on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPayload))
	if err := dec.Decode(v); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) decodeChat(w http.ResponseWriter, r *http.Request) (ChatRequest, bool) {
	var req ChatRequest
	if !decodeBody(w, r, &req) {
		return req, false
	}
	if strings.TrimSpace(req.Message) == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "message is required")
		return req, false
	}
	if s.runner == nil {
		writeDetail(w, http.StatusServiceUnavailable, "no agent configured")
		return req, false
	}
	return req, true
}

// chatRequest keeps history per named user. Each anonymous request starts
// a fresh conversation.
func chatRequest(surface string, req ChatRequest) domain.Request {
	r := domain.Request{Surface: surface, UserID: req.UserID, Body: req.Message, Timestamp: time.Now()}
	if r.UserID == "" {
		r.UserID = "anonymous"
		r.ConversationID = uuid.NewString()
	}
	return r
}

// extendDeadline lets an agent call outlive the server's write timeout.
func extendDeadline(w http.ResponseWriter) {
	http.NewResponseController(w).SetWriteDeadline(time.Now().Add(llmCallTimeout + 10*time.Second))
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Welcome to the agentdesk gateway! Use /chat to interact with the agent.",
		"version": version.Version,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := HealthResponse{Status: "healthy", Service: ServiceName, Agent: "ready"}
	if s.runner == nil {
		h.Agent = "unavailable"
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeChat(w, r)
	if !ok {
		return
	}
	extendDeadline(w)
	ctx, cancel := context.WithTimeout(r.Context(), llmCallTimeout)
	defer cancel()

	res, err := s.runner.Run(ctx, chatRequest("http", req))
	if err != nil {
		s.log.Error().Err(err).Str("user", req.UserID).Msg("chat failed")
		writeDetail(w, http.StatusInternalServerError, "Agent error: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ChatResponse{Response: res.Response, UserMessage: req.Message})
}

// handleChatStream relays deltas as server-sent events and finishes with
// "data: [DONE]".
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeChat(w, r)
	if !ok {
		return
	}
	extendDeadline(w)
	ctx, cancel := context.WithTimeout(r.Context(), llmCallTimeout)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(w)

	send := func(v any) {
		b, _ := json.Marshal(v)
		fmt.Fprintf(w, "data: %s\n\n", b)
		rc.Flush()
	}
	_, err := s.runner.RunStream(ctx, chatRequest("http", req), func(evt llm.StreamEvent) {
		switch evt.Type {
		case llm.EventDelta:
			send(map[string]string{"content": evt.Content})
		case agent.EventToolStart, agent.EventToolResult, agent.EventToolError:
			send(map[string]string{"event": evt.Type, "content": evt.Content})
		}
	})
	if err != nil {
		s.log.Error().Err(err).Msg("chat stream failed")
		send(map[string]string{"error": "Agent error: " + err.Error()})
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	rc.Flush()
}

func (s *Server) handleChatCustom(w http.ResponseWriter, r *http.Request) {
	instructions := r.URL.Query().Get("instructions")
	if strings.TrimSpace(instructions) == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "instructions query parameter is required")
		return
	}
	req, ok := s.decodeChat(w, r)
	if !ok {
		return
	}
	extendDeadline(w)
	ctx, cancel := context.WithTimeout(r.Context(), llmCallTimeout)
	defer cancel()

	reply, err := s.runner.WithInstructions(instructions).Ask(ctx, req.Message)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Agent error: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ChatResponse{Response: reply, UserMessage: req.Message, CustomInstructions: instructions})
}

func (s *Server) handleAgentInfo(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		writeDetail(w, http.StatusServiceUnavailable, "no agent configured")
		return
	}
	cfg := s.runner.Config()
	writeJSON(w, http.StatusOK, AgentInfo{
		Model:        cfg.Model,
		Provider:     s.runner.Provider(),
		Instructions: cfg.Instructions,
		Status:       "active",
	})
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	if s.orch == nil {
		writeDetail(w, http.StatusServiceUnavailable, "orchestrator not configured")
		return
	}
	agents := s.orch.AgentList()
	writeJSON(w, http.StatusOK, map[string]any{"agents": agents, "count": len(agents)})
}

func (s *Server) handleWorkflows(w http.ResponseWriter, r *http.Request) {
	if s.orch == nil {
		writeDetail(w, http.StatusServiceUnavailable, "orchestrator not configured")
		return
	}
	names := s.orch.ListWorkflows()
	writeJSON(w, http.StatusOK, map[string]any{"workflows": names, "count": len(names)})
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	if s.router == nil {
		writeDetail(w, http.StatusServiceUnavailable, "router not configured")
		return
	}
	var req routeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "query is required")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), llmCallTimeout)
	defer cancel()
	writeJSON(w, http.StatusOK, s.router.Route(ctx, req.Query))
}

func (s *Server) handleParallel(w http.ResponseWriter, r *http.Request) {
	if s.orch == nil {
		writeDetail(w, http.StatusServiceUnavailable, "orchestrator not configured")
		return
	}
	var req parallelRequest
	if !decodeBody(w, r, &req) {
		return
	}
	extendDeadline(w)
	ctx, cancel := context.WithTimeout(r.Context(), llmCallTimeout)
	defer cancel()

	res, err := s.orch.ParallelExecution(ctx, req.Tasks, req.Message)
	if errors.Is(err, orchestrator.ErrNoValidAgents) {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found", "path": r.URL.Path})
}

// RequestHandler serves one RPC method.
type RequestHandler func(rc *RequestContext)

// RequestContext is what an RPC handler gets. Context ends when the
// connection does.
type RequestContext struct {
	Context context.Context
	Client  *Client
	Frame   Frame
	Server  *Server
}

func (rc *RequestContext) Respond(payload any) {
	if err := rc.Client.Respond(rc.Frame.ID, payload); err != nil {
		rc.Server.log.Warn().Err(err).Str("method", rc.Frame.Method).Msg("failed to send response")
	}
}

func (rc *RequestContext) RespondError(code, message string) {
	rc.Client.RespondError(rc.Frame.ID, ErrorShape{Code: code, Message: message})
}

// Params decodes the request params into target. Missing params leave
// target untouched.
func (rc *RequestContext) Params(target any) error {
	if len(rc.Frame.Params) == 0 {
		return nil
	}
	return json.Unmarshal(rc.Frame.Params, target)
}
