package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/soyeahso/agentdesk/internal/agent"
	"github.com/soyeahso/agentdesk/internal/logging"
	"github.com/soyeahso/agentdesk/internal/version"
)

// ProtocolVersion is the MCP revision this server speaks.
const ProtocolVersion = "2024-11-05"

// JSON-RPC error codes.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type toolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

type callToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type toolResult struct {
	Content []contentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type initializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      serverInfo     `json:"serverInfo"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Server answers MCP requests over newline-delimited JSON.
type Server struct {
	tools *agent.ToolRegistry
	log   *logging.Logger

	mu  sync.Mutex
	out io.Writer
}

// NewServer serves the tools in reg.
func NewServer(reg *agent.ToolRegistry, out io.Writer, log *logging.Logger) *Server {
	return &Server{tools: reg, out: out, log: log.Sub("mcp")}
}

// Run reads requests from in until EOF or ctx is done.
func (s *Server) Run(ctx context.Context, in io.Reader) error {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	s.log.Info().Int("tools", s.tools.Len()).Msg("listening for requests on stdin")
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		s.handle(ctx, line)
	}
	return sc.Err()
}

func (s *Server) handle(ctx context.Context, line []byte) {
	var req rpcRequest
	if err := json.Unmarshal(line, &req); err != nil {
		s.log.Warn().Err(err).Msg("parse error")
		s.sendError(nil, codeParseError, "Parse error", err.Error())
		return
	}

	s.log.Debug().Str("method", req.Method).Msg("handling request")
	switch req.Method {
	case "initialize":
		s.send(req.ID, initializeResult{
			ProtocolVersion: ProtocolVersion,
			Capabilities:    map[string]any{"tools": map[string]any{}},
			ServerInfo:      serverInfo{Name: "agentdesk-tools", Version: version.Version},
		})
	case "notifications/initialized":
	case "tools/list":
		s.send(req.ID, map[string]any{"tools": s.list()})
	case "tools/call":
		s.call(ctx, req)
	default:
		if req.ID == nil {
			return
		}
		s.sendError(req.ID, codeMethodNotFound, "Method not found", fmt.Sprintf("Unknown method: %s", req.Method))
	}
}

func (s *Server) list() []toolInfo {
	infos := make([]toolInfo, 0, s.tools.Len())
	for _, name := range s.tools.Names() {
		t, _ := s.tools.Get(name)
		schema := json.RawMessage(t.InputSchema())
		if !json.Valid(schema) {
			schema = json.RawMessage(`{"type":"object","properties":{}}`)
		}
		infos = append(infos, toolInfo{Name: t.Name(), Description: t.Description(), InputSchema: schema})
	}
	return infos
}

func (s *Server) call(ctx context.Context, req rpcRequest) {
	var params callToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.sendError(req.ID, codeInvalidParams, "Invalid params", err.Error())
		return
	}
	t, ok := s.tools.Get(params.Name)
	if !ok {
		s.sendError(req.ID, codeInvalidParams, "Unknown tool", params.Name)
		return
	}

	input := string(params.Arguments)
	if input == "" || input == "null" {
		input = "{}"
	}
	out, err := t.Execute(ctx, input)
	if err != nil {
		s.log.Warn().Str("tool", params.Name).Err(err).Msg("tool failed")
		s.send(req.ID, toolResult{Content: []contentItem{{Type: "text", Text: "Error: " + err.Error()}}, IsError: true})
		return
	}
	s.send(req.ID, toolResult{Content: []contentItem{{Type: "text", Text: out}}})
}

func (s *Server) send(id json.RawMessage, result any) {
	s.write(rpcResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func (s *Server) sendError(id json.RawMessage, code int, message string, data any) {
	s.write(rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message, Data: data}})
}

func (s *Server) write(resp rpcResponse) {
	if resp.ID == nil {
		resp.ID = json.RawMessage("null")
	}
	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Error().Err(err).Msg("encoding response")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, "%s\n", data)
}
