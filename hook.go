package chatanyllm

import (
	"context"

	"github.com/chatanyllm/chatanyllm/messages"
)

// Hook observes chat activity. The manager invokes hooks synchronously on
// the generation goroutine, so implementations must be fast or hand off.
type Hook interface {
	// OnUserPrompt fires when a user message is appended.
	OnUserPrompt(ctx context.Context, conversationID string, msg messages.Message)

	// OnAssistantChunk fires after every stream delta with a snapshot of
	// the target message, content accumulated so far.
	OnAssistantChunk(ctx context.Context, conversationID string, msg messages.Message)

	// OnAssistantMessage fires once when the target message reaches
	// StatusComplete.
	OnAssistantMessage(ctx context.Context, conversationID string, msg messages.Message)

	// OnError fires when a generation fails. The target message has
	// already been marked StatusError by the time this runs.
	OnError(ctx context.Context, conversationID string, err error)
}

// NoopHook is the default Hook. Embed it to implement only the callbacks
// you care about.
type NoopHook struct{}

var _ Hook = NoopHook{}

func (NoopHook) OnUserPrompt(context.Context, string, messages.Message)       {}
func (NoopHook) OnAssistantChunk(context.Context, string, messages.Message)   {}
func (NoopHook) OnAssistantMessage(context.Context, string, messages.Message) {}
func (NoopHook) OnError(context.Context, string, error)                       {}
