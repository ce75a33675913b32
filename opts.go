package chatanyllm

import (
	"github.com/chatanyllm/chatanyllm/messages"
	"github.com/chatanyllm/chatanyllm/store"
	"github.com/fogfish/opts"
)

// Option configures a Manager.
type Option = opts.Option[Manager]

var (
	// WithStore attaches a persistence backend. The manager hydrates
	// conversations and settings from it at construction.
	WithStore = opts.ForName[Manager, store.Store]("store")

	// WithCompleter substitutes the completion client.
	WithCompleter = opts.ForName[Manager, Completer]("client")

	// WithHook registers an observer for chat activity.
	WithHook = opts.ForName[Manager, Hook]("hook")

	// WithStreaming toggles SSE streaming for generations.
	WithStreaming = opts.ForName[Manager, bool]("stream")

	// WithSettings sets the initial chat settings. A store's persisted
	// settings take precedence during hydration.
	WithSettings = opts.ForName[Manager, messages.Settings]("settings")
)

func applyOptions(m *Manager, options []Option) error {
	return opts.Apply(m, options)
}
