package model

import "time"

// MessageRole is the author kind of a chat message.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Message is a persisted chat history entry of a session.
type Message struct {
	ID        string
	SessionID string
	VideoID   string
	Sender    string
	Role      MessageRole
	// Content is the raw content, assistant messages keep the reasoning trace.
	Content   string
	CreatedAt time.Time
}

// Identity is the authenticated user of a request.
type Identity struct {
	UserID    string
	Email     string
	XSRFToken string
	ExpiresAt time.Time
}
