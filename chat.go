package chatanyllm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/chatanyllm/chatanyllm/completion"
	"github.com/chatanyllm/chatanyllm/messages"
	"github.com/chatanyllm/chatanyllm/pkg/slogx"
	"github.com/chatanyllm/chatanyllm/provider"
	"github.com/chatanyllm/chatanyllm/store"
	"github.com/go-openapi/strfmt"
)

// titleLimit is how many characters of the first user message become the
// conversation title.
const titleLimit = 30

var (
	// ErrNoConversation is returned when a send is attempted with no
	// conversation selected.
	ErrNoConversation = errors.New("no active conversation")

	// ErrConversationNotFound is returned for operations on unknown
	// conversation IDs.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrMessageNotFound is returned when a regeneration targets an ID
	// that is not in the conversation.
	ErrMessageNotFound = errors.New("message not found")

	// ErrNotAssistantMessage is returned when a regeneration targets a
	// message that is not an assistant turn.
	ErrNotAssistantMessage = errors.New("only assistant messages can be regenerated")

	// ErrNoContextToRegenerate is returned when the regeneration target
	// is the first message: there is no history to send.
	ErrNoContextToRegenerate = errors.New("cannot regenerate: no previous messages to provide context")
)

// Completer runs one completion request. *completion.Client is the real
// implementation; tests substitute their own.
type Completer interface {
	Complete(ctx context.Context, req provider.Request, onDelta completion.StreamFunc) (string, error)
}

// Manager owns the conversation set and serializes all generation work
// through a single busy slot with a FIFO overflow queue. Messages are
// mutated only here; callers always receive clones.
type Manager struct {
	mu    sync.Mutex
	busy  bool
	queue workQueue

	convs   *haxmap.Map[string, *messages.Conversation]
	current string

	store    store.Store
	client   Completer
	hook     Hook
	settings messages.Settings
	stream   bool
}

// New creates a manager. Without WithStore nothing is persisted; without
// WithCompleter a default completion client is used.
func New(options ...Option) (*Manager, error) {
	m := &Manager{
		convs:    haxmap.New[string, *messages.Conversation](),
		hook:     NoopHook{},
		settings: messages.DefaultSettings(),
		stream:   true,
	}
	if err := applyOptions(m, options); err != nil {
		return nil, err
	}
	if m.client == nil {
		client, err := completion.New()
		if err != nil {
			return nil, err
		}
		m.client = client
	}
	if m.store != nil {
		if err := m.hydrate(context.Background()); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// hydrate loads persisted state. A missing current-conversation record is
// fine; everything else is fatal, the store is our source of truth.
func (m *Manager) hydrate(ctx context.Context) error {
	convs, err := m.store.Conversations(ctx)
	if err != nil {
		return fmt.Errorf("hydrate conversations: %w", err)
	}
	for i := range convs {
		conv := convs[i]
		m.convs.Set(conv.ID, &conv)
	}

	settings, err := m.store.Settings(ctx)
	if err != nil {
		return fmt.Errorf("hydrate settings: %w", err)
	}
	m.settings = settings

	current, err := m.store.CurrentConversation(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return fmt.Errorf("hydrate current conversation: %w", err)
	default:
		if _, ok := m.convs.Get(current); ok {
			m.current = current
		}
	}
	return nil
}

// CreateConversation starts a new conversation and makes it current. An
// empty modelID selects the provider's default model.
func (m *Manager) CreateConversation(name provider.Name, modelID string) (messages.Conversation, error) {
	if modelID == "" {
		model, err := provider.DefaultModel(name)
		if err != nil {
			return messages.Conversation{}, err
		}
		modelID = model.ID
	} else if _, err := provider.Get(name); err != nil {
		return messages.Conversation{}, err
	}

	conv := messages.NewConversation(name.String(), modelID)

	m.mu.Lock()
	m.convs.Set(conv.ID, conv)
	m.current = conv.ID
	m.persist(context.Background(), conv)
	m.persistCurrent(context.Background())
	m.mu.Unlock()

	return conv.Clone(), nil
}

// Conversations returns clones of every conversation, most recently
// updated first.
func (m *Manager) Conversations() []messages.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]messages.Conversation, 0, m.convs.Len())
	m.convs.ForEach(func(_ string, conv *messages.Conversation) bool {
		out = append(out, conv.Clone())
		return true
	})
	slices.SortFunc(out, func(a, b messages.Conversation) int {
		return time.Time(b.UpdatedAt).Compare(time.Time(a.UpdatedAt))
	})
	return out
}

// Conversation returns a clone of one conversation.
func (m *Manager) Conversation(id string) (messages.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.convs.Get(id)
	if !ok {
		return messages.Conversation{}, ErrConversationNotFound
	}
	return conv.Clone(), nil
}

// CurrentConversation returns a clone of the active conversation.
func (m *Manager) CurrentConversation() (messages.Conversation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.convs.Get(m.current)
	if !ok {
		return messages.Conversation{}, false
	}
	return conv.Clone(), true
}

// SelectConversation makes an existing conversation current.
func (m *Manager) SelectConversation(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.convs.Get(id); !ok {
		return ErrConversationNotFound
	}
	m.current = id
	m.persistCurrent(context.Background())
	return nil
}

// DeleteConversation removes a conversation. When the current conversation
// is deleted, the most recently updated remaining one becomes current.
func (m *Manager) DeleteConversation(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.convs.Get(id); !ok {
		return ErrConversationNotFound
	}
	m.convs.Del(id)
	if m.store != nil {
		if err := m.store.DeleteConversation(ctx, id); err != nil {
			return err
		}
	}

	if m.current == id {
		m.current = ""
		var newest *messages.Conversation
		m.convs.ForEach(func(_ string, conv *messages.Conversation) bool {
			if newest == nil || time.Time(conv.UpdatedAt).After(time.Time(newest.UpdatedAt)) {
				newest = conv
			}
			return true
		})
		if newest != nil {
			m.current = newest.ID
		}
		m.persistCurrent(ctx)
	}
	return nil
}

// UpdateTitle renames a conversation.
func (m *Manager) UpdateTitle(ctx context.Context, id, title string) error {
	return m.mutate(ctx, id, func(conv *messages.Conversation) {
		conv.Title = title
	})
}

// Star toggles the starred marker.
func (m *Manager) Star(ctx context.Context, id string, starred bool) error {
	return m.mutate(ctx, id, func(conv *messages.Conversation) {
		conv.Starred = starred
	})
}

func (m *Manager) mutate(ctx context.Context, id string, fn func(*messages.Conversation)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.convs.Get(id)
	if !ok {
		return ErrConversationNotFound
	}
	fn(conv)
	conv.Touch()
	m.persist(ctx, conv)
	return nil
}

// Generating reports whether a generation is in flight anywhere.
func (m *Manager) Generating() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.busy
}

// QueuedWork reports how many sends are waiting behind the busy slot.
func (m *Manager) QueuedWork() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.len()
}

// Settings returns the current chat settings.
func (m *Manager) Settings() messages.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

// UpdateSettings merges the patch and persists the result.
func (m *Manager) UpdateSettings(ctx context.Context, patch messages.SettingsPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	patch.Apply(&m.settings)
	if m.store != nil {
		return m.store.SaveSettings(ctx, m.settings)
	}
	return nil
}

// SendMessage appends the user's text to the current conversation and
// generates a reply. While a generation is in flight the work is queued and
// SendMessage returns immediately; otherwise it blocks until the
// generation, and any work queued behind it, has finished. Generation
// failures surface as message state, not as a return value.
func (m *Manager) SendMessage(ctx context.Context, content string) error {
	m.mu.Lock()
	if m.current == "" {
		m.mu.Unlock()
		return ErrNoConversation
	}
	item := workItem{conversationID: m.current, content: content}
	if m.busy {
		m.queue.push(item)
		m.mu.Unlock()
		return nil
	}
	m.busy = true
	m.mu.Unlock()

	m.runLoop(ctx, item)
	return nil
}

// Regenerate re-answers an existing assistant message in the current
// conversation, discarding its content. History strictly before the target
// is resent; regenerating the first message fails without a network call.
func (m *Manager) Regenerate(ctx context.Context, messageID string) error {
	m.mu.Lock()
	if m.current == "" {
		m.mu.Unlock()
		return ErrNoConversation
	}
	item := workItem{conversationID: m.current, messageID: messageID, regen: true}
	if m.busy {
		m.queue.push(item)
		m.mu.Unlock()
		return nil
	}
	m.busy = true
	m.mu.Unlock()

	m.runLoop(ctx, item)
	return nil
}

// runLoop processes one item, then drains the queue. The busy flag clears
// only when no work is left, so queued entries never interleave with new
// arrivals out of order.
func (m *Manager) runLoop(ctx context.Context, item workItem) {
	for {
		m.run(ctx, item)

		m.mu.Lock()
		next, ok := m.queue.pop()
		if !ok {
			m.busy = false
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()
		item = next
	}
}

func (m *Manager) run(ctx context.Context, item workItem) {
	m.mu.Lock()
	conv, ok := m.convs.Get(item.conversationID)
	if !ok {
		m.mu.Unlock()
		slog.Warn("dropping work for deleted conversation", slog.String("id", item.conversationID))
		return
	}

	var (
		targetID      string
		targetStatus  messages.Status
		history       []messages.Message
		firstExchange bool
		userContent   string
		userMsg       *messages.Message
	)

	if item.regen {
		idx := conv.IndexOf(item.messageID)
		if idx < 0 {
			m.mu.Unlock()
			m.hook.OnError(ctx, conv.ID, ErrMessageNotFound)
			return
		}
		target := &conv.Messages[idx]
		if target.Role != messages.RoleAssistant {
			m.mu.Unlock()
			m.hook.OnError(ctx, conv.ID, ErrNotAssistantMessage)
			return
		}
		if idx == 0 {
			target.Status = messages.StatusError
			target.Content = "Error: " + ErrNoContextToRegenerate.Error()
			conv.Touch()
			m.persist(ctx, conv)
			m.mu.Unlock()
			m.hook.OnError(ctx, conv.ID, ErrNoContextToRegenerate)
			return
		}
		target.Status = messages.StatusRegenerating
		target.Content = ""
		targetID = target.ID
		targetStatus = messages.StatusRegenerating
		history = slices.Clone(conv.Messages[:idx])
	} else {
		firstExchange = len(conv.Messages) == 0
		userContent = item.content

		user := messages.NewUserMessage(item.content)
		placeholder := messages.NewPendingAssistant()
		conv.Append(user, placeholder)
		targetID = placeholder.ID
		targetStatus = messages.StatusPending
		history = slices.Clone(conv.Messages[:len(conv.Messages)-1])
		userMsg = &user
	}
	conv.Touch()
	m.persist(ctx, conv)
	req := m.buildRequest(ctx, conv, history)
	m.mu.Unlock()

	if userMsg != nil {
		m.hook.OnUserPrompt(ctx, conv.ID, *userMsg)
	}

	var acc strings.Builder
	text, err := m.client.Complete(ctx, req, func(delta string) {
		acc.WriteString(delta)
		m.writeSnapshot(ctx, conv.ID, targetID, acc.String(), targetStatus)
	})

	m.finish(ctx, conv.ID, targetID, text, err, firstExchange, userContent)
}

// buildRequest assembles the transient generation request. Called with the
// manager lock held.
func (m *Manager) buildRequest(ctx context.Context, conv *messages.Conversation, history []messages.Message) provider.Request {
	name := provider.Name(conv.Provider)

	var apiKey, baseURL string
	if m.store != nil {
		var err error
		if apiKey, err = m.store.APIKey(ctx, name); err != nil {
			slog.Warn("loading api key", slogx.Error(err))
		}
		if baseURL, err = m.store.Endpoint(ctx, name); err != nil {
			slog.Warn("loading endpoint", slogx.Error(err))
		}
	}

	return provider.Request{
		Provider:         name,
		ModelID:          conv.ModelID,
		Messages:         history,
		SystemPrompt:     m.settings.SystemPrompt,
		Temperature:      m.settings.Temperature,
		MaxTokens:        m.settings.MaxTokens,
		TopP:             m.settings.TopP,
		FrequencyPenalty: m.settings.FrequencyPenalty,
		PresencePenalty:  m.settings.PresencePenalty,
		Stream:           m.stream,
		APIKey:           apiKey,
		BaseURL:          baseURL,
	}
}

// writeSnapshot replaces the target message content wholesale with the
// accumulated text and persists the whole conversation. Fresh sends observe
// this as appending; regenerations as replacement.
func (m *Manager) writeSnapshot(ctx context.Context, conversationID, targetID, content string, status messages.Status) {
	m.mu.Lock()
	conv, ok := m.convs.Get(conversationID)
	if !ok {
		m.mu.Unlock()
		return
	}
	idx := conv.IndexOf(targetID)
	if idx < 0 {
		m.mu.Unlock()
		return
	}
	conv.Messages[idx].Content = content
	conv.Messages[idx].Status = status
	m.persist(ctx, conv)
	snapshot := conv.Messages[idx]
	m.mu.Unlock()

	m.hook.OnAssistantChunk(ctx, conversationID, snapshot)
}

func (m *Manager) finish(ctx context.Context, conversationID, targetID, text string, genErr error, firstExchange bool, userContent string) {
	m.mu.Lock()
	conv, ok := m.convs.Get(conversationID)
	if !ok {
		m.mu.Unlock()
		return
	}
	idx := conv.IndexOf(targetID)
	if idx < 0 {
		m.mu.Unlock()
		return
	}

	target := &conv.Messages[idx]
	if genErr != nil {
		target.Status = messages.StatusError
		target.Content = "Error: " + genErr.Error()
	} else {
		target.Status = messages.StatusComplete
		target.Content = text
		target.Model = conv.ModelID
		target.Timestamp = strfmt.DateTime(time.Now())

		if firstExchange && conv.Title == messages.DefaultTitle {
			conv.Title = deriveTitle(userContent)
		}
	}
	conv.Touch()
	m.persist(ctx, conv)
	snapshot := conv.Messages[idx]
	m.mu.Unlock()

	if genErr != nil {
		slog.Error("generation failed",
			slog.String("conversation", conversationID),
			slogx.Error(genErr))
		m.hook.OnError(ctx, conversationID, genErr)
		return
	}
	m.hook.OnAssistantMessage(ctx, conversationID, snapshot)
}

// persist writes a full conversation snapshot, best effort. Called with the
// manager lock held.
func (m *Manager) persist(ctx context.Context, conv *messages.Conversation) {
	if m.store == nil {
		return
	}
	if err := m.store.SaveConversation(ctx, *conv); err != nil {
		slog.Warn("persisting conversation", slog.String("id", conv.ID), slogx.Error(err))
	}
}

func (m *Manager) persistCurrent(ctx context.Context) {
	if m.store == nil || m.current == "" {
		return
	}
	if err := m.store.SetCurrentConversation(ctx, m.current); err != nil {
		slog.Warn("persisting current conversation", slogx.Error(err))
	}
}

// deriveTitle builds a conversation title from the first user message.
func deriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) > titleLimit {
		return string(runes[:titleLimit]) + "..."
	}
	return content
}
