package messages

import (
	"slices"
	"time"

	"github.com/chatanyllm/chatanyllm/pkg/uuidx"
	"github.com/go-openapi/strfmt"
)

// DefaultTitle is the placeholder title given to new conversations. Title
// inference only ever replaces this value, never a user-chosen title.
const DefaultTitle = "New Conversation"

// Conversation owns an ordered sequence of messages plus the provider and
// model used to continue it.
type Conversation struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Messages  []Message       `json:"messages"`
	CreatedAt strfmt.DateTime `json:"createdAt"`
	UpdatedAt strfmt.DateTime `json:"updatedAt"`
	Provider  string          `json:"provider"`
	ModelID   string          `json:"modelId"`
	Starred   bool            `json:"starred,omitempty"`
	Folder    string          `json:"folder,omitempty"`
}

// NewConversation creates an empty conversation for the given provider
// and model.
func NewConversation(provider, modelID string) *Conversation {
	now := strfmt.DateTime(time.Now())
	return &Conversation{
		ID:        uuidx.NewString(),
		Title:     DefaultTitle,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
		Provider:  provider,
		ModelID:   modelID,
	}
}

// Clone returns a deep copy. Views receive clones so they can never mutate
// the manager's state.
func (c *Conversation) Clone() Conversation {
	dup := *c
	dup.Messages = slices.Clone(c.Messages)
	return dup
}

// IndexOf returns the position of the message with the given ID, or -1.
func (c *Conversation) IndexOf(messageID string) int {
	return slices.IndexFunc(c.Messages, func(m Message) bool { return m.ID == messageID })
}

// Append adds messages to the end of the conversation.
func (c *Conversation) Append(msgs ...Message) {
	c.Messages = append(c.Messages, msgs...)
}

// Touch bumps the updatedAt timestamp.
func (c *Conversation) Touch() {
	c.UpdatedAt = strfmt.DateTime(time.Now())
}
