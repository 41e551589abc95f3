package domain

import "time"

// SessionKey uniquely identifies a conversation session.
type SessionKey struct {
	Surface        string `json:"surface"` // "http", "ws", "cli", "a2a"
	UserID         string `json:"userId,omitempty"`
	ConversationID string `json:"conversationId"`
}

// String returns a canonical string form of the session key.
func (k SessionKey) String() string {
	s := k.Surface + ":" + k.ConversationID
	if k.UserID != "" {
		s += ":" + k.UserID
	}
	return s
}

// Session tracks a conversation between a user and one agent.
type Session struct {
	ID        string     `json:"id"`
	Key       SessionKey `json:"key"`
	AgentID   string     `json:"agentId"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	Messages  []Message  `json:"messages,omitempty"`
}

// Message is a single turn in a session's history.
type Message struct {
	Role      string     `json:"role"` // "user", "assistant", "system"
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp"`
	ToolCalls []ToolCall `json:"toolCalls,omitempty"`
}

// ToolCall records a tool invocation made while producing a message.
type ToolCall struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Input  string `json:"input"`
	Output string `json:"output"`
}
