package tasks

import (
	"encoding/json"
	"errors"
	"net/http"
)

// JSON-RPC 2.0 and A2A error codes.
const (
	CodeParseError        = -32700
	CodeInvalidRequest    = -32600
	CodeMethodNotFound    = -32601
	CodeInvalidParams     = -32602
	CodeInternalError     = -32603
	CodeTaskNotFound      = -32001
	CodeTaskNotCancelable = -32002
)

// RPCRequest is a JSON-RPC request.
type RPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// RPCResponse is a JSON-RPC response.
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// SendParams are the params of message/send.
type SendParams struct {
	Message       Message `json:"message"`
	Configuration *struct {
		HistoryLength int `json:"historyLength,omitempty"`
	} `json:"configuration,omitempty"`
}

// TaskQueryParams are the params of tasks/get.
type TaskQueryParams struct {
	ID            string `json:"id"`
	HistoryLength int    `json:"historyLength,omitempty"`
}

// TaskIDParams are the params of tasks/cancel.
type TaskIDParams struct {
	ID string `json:"id"`
}

// ServeHTTP handles JSON-RPC calls posted to /a2a.
func (e *Executor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RPCRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeRPC(w, RPCResponse{Error: &RPCError{Code: CodeParseError, Message: "Invalid JSON payload"}})
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		writeRPC(w, RPCResponse{ID: req.ID, Error: &RPCError{Code: CodeInvalidRequest, Message: "Request payload validation error"}})
		return
	}

	result, rpcErr := e.dispatch(r, req)
	writeRPC(w, RPCResponse{ID: req.ID, Result: result, Error: rpcErr})
}

func (e *Executor) dispatch(r *http.Request, req RPCRequest) (any, *RPCError) {
	ctx := r.Context()
	switch req.Method {
	case "message/send":
		var p SendParams
		if err := json.Unmarshal(req.Params, &p); err != nil || len(p.Message.Parts) == 0 {
			return nil, &RPCError{Code: CodeInvalidParams, Message: "message with at least one part is required"}
		}
		t, err := e.Send(ctx, p.Message)
		if err != nil {
			return nil, taskError(err)
		}
		if p.Configuration != nil && p.Configuration.HistoryLength > 0 && len(t.History) > p.Configuration.HistoryLength {
			t.History = t.History[len(t.History)-p.Configuration.HistoryLength:]
		}
		return t, nil

	case "tasks/get":
		var p TaskQueryParams
		if err := json.Unmarshal(req.Params, &p); err != nil || p.ID == "" {
			return nil, &RPCError{Code: CodeInvalidParams, Message: "id is required"}
		}
		t, err := e.Get(ctx, p.ID, p.HistoryLength)
		if err != nil {
			return nil, taskError(err)
		}
		return t, nil

	case "tasks/cancel":
		var p TaskIDParams
		if err := json.Unmarshal(req.Params, &p); err != nil || p.ID == "" {
			return nil, &RPCError{Code: CodeInvalidParams, Message: "id is required"}
		}
		t, err := e.Cancel(ctx, p.ID)
		if err != nil {
			return nil, taskError(err)
		}
		return t, nil
	}
	return nil, &RPCError{Code: CodeMethodNotFound, Message: "Method not found", Data: req.Method}
}

func taskError(err error) *RPCError {
	switch {
	case errors.Is(err, ErrTaskNotFound):
		return &RPCError{Code: CodeTaskNotFound, Message: "Task not found"}
	case errors.Is(err, ErrNotCancelable), errors.Is(err, ErrContinueTerminal):
		return &RPCError{Code: CodeTaskNotCancelable, Message: err.Error()}
	}
	return &RPCError{Code: CodeInternalError, Message: err.Error()}
}

func writeRPC(w http.ResponseWriter, resp RPCResponse) {
	resp.JSONRPC = "2.0"
	if resp.ID == nil {
		resp.ID = json.RawMessage("null")
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// CardHandler serves the agent card.
func (e *Executor) CardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(e.card)
	}
}

// Mount registers the card and the JSON-RPC endpoint on mux.
func (e *Executor) Mount(mux *http.ServeMux) {
	mux.HandleFunc("GET /.well-known/agent.json", e.CardHandler())
	mux.Handle("POST /a2a", e)
}
