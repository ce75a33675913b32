package store

import (
	"context"
	"errors"

	"github.com/chatanyllm/chatanyllm/messages"
	"github.com/chatanyllm/chatanyllm/provider"
)

// ErrNotFound is returned when a requested record does not exist. Malformed
// stored data is treated the same way as absent data.
var ErrNotFound = errors.New("not found")

// Store persists conversations, credentials, custom endpoints, and chat
// settings. All writes are upserts.
type Store interface {
	// SaveConversation inserts or replaces a conversation wholesale.
	SaveConversation(ctx context.Context, conv messages.Conversation) error

	// Conversation loads one conversation by ID.
	Conversation(ctx context.Context, id string) (messages.Conversation, error)

	// Conversations returns all conversations, most recently updated
	// first. Rows that no longer decode are skipped.
	Conversations(ctx context.Context) ([]messages.Conversation, error)

	// DeleteConversation removes a conversation. Deleting an unknown ID
	// is not an error.
	DeleteConversation(ctx context.Context, id string) error

	// SetCurrentConversation records which conversation is active.
	SetCurrentConversation(ctx context.Context, id string) error

	// CurrentConversation returns the active conversation ID, or
	// ErrNotFound when none was recorded.
	CurrentConversation(ctx context.Context) (string, error)

	// SetAPIKey stores the credential for a provider.
	SetAPIKey(ctx context.Context, name provider.Name, key string) error

	// APIKey returns the stored credential, or empty when none is set.
	APIKey(ctx context.Context, name provider.Name) (string, error)

	// SetEndpoint stores a custom endpoint URL for a provider.
	SetEndpoint(ctx context.Context, name provider.Name, url string) error

	// Endpoint returns the stored endpoint URL, or empty when none is set.
	Endpoint(ctx context.Context, name provider.Name) (string, error)

	// SaveSettings replaces the chat settings.
	SaveSettings(ctx context.Context, s messages.Settings) error

	// Settings returns the stored settings, falling back to defaults
	// when nothing usable is stored.
	Settings(ctx context.Context) (messages.Settings, error)

	Close() error
}
