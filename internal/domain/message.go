package domain

import "time"

// Request is a user message arriving on any surface.
type Request struct {
	ID             string    `json:"id,omitempty"`
	Surface        string    `json:"surface"`
	UserID         string    `json:"userId,omitempty"`
	UserName       string    `json:"userName,omitempty"`
	ConversationID string    `json:"conversationId,omitempty"`
	Body           string    `json:"body"`
	Timestamp      time.Time `json:"timestamp"`
}

// Key returns the session key for the request. Requests without a
// conversation id share one conversation per user.
func (r Request) Key() SessionKey {
	conv := r.ConversationID
	if conv == "" {
		conv = "default"
	}
	return SessionKey{Surface: r.Surface, UserID: r.UserID, ConversationID: conv}
}
