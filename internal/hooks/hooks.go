// Package hooks dispatches agentdesk lifecycle events to registered handlers.
package hooks

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/soyeahso/agentdesk/internal/logging"
)

// Event names.
const (
	EventBeforeAgentRun = "before_agent_run"
	EventAfterAgentRun  = "after_agent_run"
	EventToolCall       = "tool_call"
	EventRouteDecided   = "route_decided"
	EventWorkflowStep   = "workflow_step"
	EventTaskUpdated    = "task_updated"
	EventGatewayStart   = "gateway_start"
	EventGatewayStop    = "gateway_stop"
)

// AllEvents lists every event name.
var AllEvents = []string{
	EventBeforeAgentRun,
	EventAfterAgentRun,
	EventToolCall,
	EventRouteDecided,
	EventWorkflowStep,
	EventTaskUpdated,
	EventGatewayStart,
	EventGatewayStop,
}

// Payload carries event data to handlers.
type Payload struct {
	Event string         `json:"event"`
	Time  time.Time      `json:"time"`
	Data  map[string]any `json:"data,omitempty"`
}

// Handler handles a hook event. A returned error is logged and does not
// stop later handlers.
type Handler func(ctx context.Context, p Payload) error

// Manager holds handler registrations. A nil *Manager is valid and drops
// every event, so components can take one optionally.
type Manager struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
	log      *logging.Logger
}

type namedHandler struct {
	name    string
	handler Handler
}

// NewManager creates a hook manager.
func NewManager(log *logging.Logger) *Manager {
	return &Manager{
		handlers: make(map[string][]namedHandler),
		log:      log.Sub("hooks"),
	}
}

// On registers a named handler for an event.
func (m *Manager) On(event, name string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = append(m.handlers[event], namedHandler{name: name, handler: handler})
	m.log.Debug().Str("event", event).Str("handler", name).Msg("hook registered")
}

// OnAll registers handler for every known event.
func (m *Manager) OnAll(name string, handler Handler) {
	for _, e := range AllEvents {
		m.On(e, name, handler)
	}
}

// Off removes all handlers with the given name from the event.
func (m *Manager) Off(event, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = slices.DeleteFunc(m.handlers[event], func(h namedHandler) bool {
		return h.name == name
	})
}

func (m *Manager) snapshot(event string) []namedHandler {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.handlers[event])
}

func (m *Manager) run(ctx context.Context, h namedHandler, p Payload) {
	if err := h.handler(ctx, p); err != nil {
		m.log.Warn().Err(err).Str("event", p.Event).Str("handler", h.name).Msg("hook handler error")
	}
}

// Emit calls the event's handlers synchronously in registration order.
func (m *Manager) Emit(ctx context.Context, event string, data map[string]any) {
	handlers := m.snapshot(event)
	if len(handlers) == 0 {
		return
	}
	p := Payload{Event: event, Time: time.Now(), Data: data}
	for _, h := range handlers {
		m.run(ctx, h, p)
	}
}

// EmitAsync calls the event's handlers concurrently and returns at once.
func (m *Manager) EmitAsync(ctx context.Context, event string, data map[string]any) {
	handlers := m.snapshot(event)
	if len(handlers) == 0 {
		return
	}
	p := Payload{Event: event, Time: time.Now(), Data: data}
	for _, h := range handlers {
		go m.run(ctx, h, p)
	}
}

// Count returns the number of handlers registered for an event.
func (m *Manager) Count(event string) int {
	return len(m.snapshot(event))
}

// Events returns the events that have at least one handler, sorted.
func (m *Manager) Events() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	events := make([]string, 0, len(m.handlers))
	for event, handlers := range m.handlers {
		if len(handlers) > 0 {
			events = append(events, event)
		}
	}
	slices.Sort(events)
	return events
}

// LogHandler writes each event to log at debug level.
func LogHandler(log *logging.Logger) Handler {
	log = log.Sub("events")
	return func(_ context.Context, p Payload) error {
		evt := log.Debug().Str("event", p.Event)
		for k, v := range p.Data {
			evt = evt.Interface(k, v)
		}
		evt.Msg("lifecycle event")
		return nil
	}
}

// Recorder collects payloads in memory. Useful for status output and tests.
type Recorder struct {
	mu       sync.Mutex
	payloads []Payload
	limit    int
}

// NewRecorder keeps at most limit payloads (0 = unlimited).
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

// Handle is a Handler that records p.
func (r *Recorder) Handle(_ context.Context, p Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, p)
	if r.limit > 0 && len(r.payloads) > r.limit {
		r.payloads = r.payloads[len(r.payloads)-r.limit:]
	}
	return nil
}

// Payloads returns a copy of the recorded payloads.
func (r *Recorder) Payloads() []Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.payloads)
}

// Names returns the recorded event names in order.
func (r *Recorder) Names() []string {
	ps := r.Payloads()
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Event
	}
	return out
}
