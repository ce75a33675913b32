package messages

import (
	"time"

	"github.com/chatanyllm/chatanyllm/pkg/uuidx"
	"github.com/go-openapi/strfmt"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Status tracks the lifecycle of an assistant message while a completion is
// in flight. The zero value means the message has no transient state.
type Status string

const (
	StatusPending      Status = "pending"
	StatusRegenerating Status = "regenerating"
	StatusComplete     Status = "complete"
	StatusError        Status = "error"
)

// Terminal reports whether the status will not change without a new request.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

// Message is a single turn in a conversation. Messages are created and
// mutated only by the chat manager; everything else sees copies.
type Message struct {
	ID        string          `json:"id"`
	Role      Role            `json:"role"`
	Content   string          `json:"content"`
	Timestamp strfmt.DateTime `json:"timestamp"`
	Status    Status          `json:"status,omitempty"`
	Model     string          `json:"model,omitempty"`
}

// NewUserMessage creates a user message with a fresh ID and timestamp.
func NewUserMessage(content string) Message {
	return Message{
		ID:        uuidx.NewString(),
		Role:      RoleUser,
		Content:   content,
		Timestamp: strfmt.DateTime(time.Now()),
	}
}

// NewPendingAssistant creates the placeholder assistant message that is
// appended before its content is known. It starts life in StatusPending and
// is filled in by streaming deltas or a single final write.
func NewPendingAssistant() Message {
	return Message{
		ID:        uuidx.NewString(),
		Role:      RoleAssistant,
		Timestamp: strfmt.DateTime(time.Now()),
		Status:    StatusPending,
	}
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return Message{
		ID:        uuidx.NewString(),
		Role:      RoleSystem,
		Content:   content,
		Timestamp: strfmt.DateTime(time.Now()),
	}
}
