// Package tasks exposes an agent over the A2A protocol: an agent card,
// JSON-RPC task methods and a pluggable task store.
package tasks

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/agentdesk/internal/config"
)

// ProtocolVersion is the A2A protocol version advertised in the card.
const ProtocolVersion = "0.2.5"

// Capabilities advertises optional protocol features.
type Capabilities struct {
	Streaming         bool `json:"streaming"`
	PushNotifications bool `json:"pushNotifications"`
}

// Skill describes one thing the agent can do.
type Skill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Examples    []string `json:"examples,omitempty"`
}

// AgentCard is served at /.well-known/agent.json.
type AgentCard struct {
	Name               string       `json:"name"`
	Description        string       `json:"description"`
	URL                string       `json:"url"`
	Version            string       `json:"version"`
	ProtocolVersion    string       `json:"protocolVersion"`
	DefaultInputModes  []string     `json:"defaultInputModes"`
	DefaultOutputModes []string     `json:"defaultOutputModes"`
	Capabilities       Capabilities `json:"capabilities"`
	Skills             []Skill      `json:"skills"`
}

// NewAgentCard fills in the defaults: version 1.0.0, text modes, streaming
// and the local URL when url is empty.
func NewAgentCard(name, description, url string, skills ...Skill) AgentCard {
	if url == "" {
		url = config.DefaultPublicURL
	}
	if skills == nil {
		skills = []Skill{}
	}
	return AgentCard{
		Name:               name,
		Description:        description,
		URL:                url,
		Version:            "1.0.0",
		ProtocolVersion:    ProtocolVersion,
		DefaultInputModes:  []string{"text", "text/plain"},
		DefaultOutputModes: []string{"text", "text/plain"},
		Capabilities:       Capabilities{Streaming: true},
		Skills:             skills,
	}
}

// State is a task lifecycle state.
type State string

const (
	StateSubmitted State = "submitted"
	StateWorking   State = "working"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCanceled  State = "canceled"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCanceled
}

// Message roles.
const (
	RoleUser  = "user"
	RoleAgent = "agent"
)

// Part is a piece of message content. Only text parts are produced.
type Part struct {
	Kind string `json:"kind"`
	Text string `json:"text,omitempty"`
}

// TextPart builds a text part.
func TextPart(text string) Part { return Part{Kind: "text", Text: text} }

// Message is one turn exchanged with the agent.
type Message struct {
	Kind      string `json:"kind"`
	MessageID string `json:"messageId"`
	Role      string `json:"role"`
	Parts     []Part `json:"parts"`
	TaskID    string `json:"taskId,omitempty"`
	ContextID string `json:"contextId,omitempty"`
}

// NewMessage builds a text message with a fresh id.
func NewMessage(role, text string) Message {
	return Message{Kind: "message", MessageID: uuid.NewString(), Role: role, Parts: []Part{TextPart(text)}}
}

// Text joins the message's text parts.
func (m Message) Text() string {
	var texts []string
	for _, p := range m.Parts {
		if (p.Kind == "" || p.Kind == "text") && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// Artifact is an output produced by a task.
type Artifact struct {
	ArtifactID string `json:"artifactId"`
	Name       string `json:"name,omitempty"`
	Parts      []Part `json:"parts"`
}

// Status is a task's current state.
type Status struct {
	State     State     `json:"state"`
	Message   *Message  `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Task is a unit of work tracked by the server.
type Task struct {
	Kind      string     `json:"kind"`
	ID        string     `json:"id"`
	ContextID string     `json:"contextId"`
	Status    Status     `json:"status"`
	History   []Message  `json:"history,omitempty"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
}

// Clone returns a deep copy of t.
func (t *Task) Clone() *Task {
	cp := *t
	if t.Status.Message != nil {
		m := cloneMessage(*t.Status.Message)
		cp.Status.Message = &m
	}
	cp.History = make([]Message, len(t.History))
	for i, m := range t.History {
		cp.History[i] = cloneMessage(m)
	}
	if t.History == nil {
		cp.History = nil
	}
	if t.Artifacts != nil {
		cp.Artifacts = make([]Artifact, len(t.Artifacts))
		for i, a := range t.Artifacts {
			a.Parts = slices.Clone(a.Parts)
			cp.Artifacts[i] = a
		}
	}
	return &cp
}

func cloneMessage(m Message) Message {
	m.Parts = slices.Clone(m.Parts)
	return m
}
