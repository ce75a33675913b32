package chatanyllm

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chatanyllm/chatanyllm/completion"
	"github.com/chatanyllm/chatanyllm/messages"
	"github.com/chatanyllm/chatanyllm/provider"
	"github.com/chatanyllm/chatanyllm/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	mu       sync.Mutex
	requests []provider.Request
	respond  func(req provider.Request, onDelta completion.StreamFunc) (string, error)
}

func (s *stubCompleter) Complete(_ context.Context, req provider.Request, onDelta completion.StreamFunc) (string, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	fn := s.respond
	s.mu.Unlock()
	if fn == nil {
		return "stub reply", nil
	}
	return fn(req, onDelta)
}

func (s *stubCompleter) seen() []provider.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]provider.Request(nil), s.requests...)
}

type recordingHook struct {
	NoopHook
	mu        sync.Mutex
	prompts   []messages.Message
	chunks    []string
	completes []messages.Message
	errs      []error
}

func (h *recordingHook) OnUserPrompt(_ context.Context, _ string, msg messages.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.prompts = append(h.prompts, msg)
}

func (h *recordingHook) OnAssistantChunk(_ context.Context, _ string, msg messages.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.chunks = append(h.chunks, msg.Content)
}

func (h *recordingHook) OnAssistantMessage(_ context.Context, _ string, msg messages.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.completes = append(h.completes, msg)
}

func (h *recordingHook) OnError(_ context.Context, _ string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, err)
}

func newTestManager(t *testing.T, options ...Option) (*Manager, *stubCompleter, *recordingHook) {
	t.Helper()
	stub := &stubCompleter{}
	hook := &recordingHook{}
	m, err := New(append([]Option{WithCompleter(Completer(stub)), WithHook(Hook(hook))}, options...)...)
	require.NoError(t, err)
	return m, stub, hook
}

func TestSendMessageAppendsUserAndAssistant(t *testing.T) {
	m, stub, hook := newTestManager(t)
	_, err := m.CreateConversation(provider.OpenAI, "")
	require.NoError(t, err)

	require.NoError(t, m.SendMessage(context.Background(), "what is Go?"))

	conv, ok := m.CurrentConversation()
	require.True(t, ok)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, messages.RoleUser, conv.Messages[0].Role)
	assert.Equal(t, "what is Go?", conv.Messages[0].Content)
	assert.Equal(t, messages.RoleAssistant, conv.Messages[1].Role)
	assert.Equal(t, messages.StatusComplete, conv.Messages[1].Status)
	assert.Equal(t, "stub reply", conv.Messages[1].Content)
	assert.Equal(t, "gpt-4o", conv.Messages[1].Model)

	// The placeholder is never part of the request history.
	reqs := stub.seen()
	require.Len(t, reqs, 1)
	require.Len(t, reqs[0].Messages, 1)
	assert.Equal(t, messages.RoleUser, reqs[0].Messages[0].Role)

	require.Len(t, hook.prompts, 1)
	require.Len(t, hook.completes, 1)
	assert.False(t, m.Generating())
}

func TestSendMessageStreamsSnapshots(t *testing.T) {
	m, stub, hook := newTestManager(t)
	stub.respond = func(_ provider.Request, onDelta completion.StreamFunc) (string, error) {
		for _, d := range []string{"Go ", "is ", "fun"} {
			onDelta(d)
		}
		return "Go is fun", nil
	}
	_, err := m.CreateConversation(provider.OpenAI, "")
	require.NoError(t, err)

	require.NoError(t, m.SendMessage(context.Background(), "pitch Go"))

	// Each chunk carries the accumulated content so far.
	assert.Equal(t, []string{"Go ", "Go is ", "Go is fun"}, hook.chunks)

	conv, _ := m.CurrentConversation()
	assert.Equal(t, "Go is fun", conv.Messages[1].Content)
	assert.Equal(t, messages.StatusComplete, conv.Messages[1].Status)
}

func TestSendMessageErrorBecomesMessageState(t *testing.T) {
	m, stub, hook := newTestManager(t)
	stub.respond = func(provider.Request, completion.StreamFunc) (string, error) {
		return "", errors.New("boom")
	}
	_, err := m.CreateConversation(provider.OpenAI, "")
	require.NoError(t, err)

	// The failure surfaces on the message, not the return value.
	require.NoError(t, m.SendMessage(context.Background(), "hi"))

	conv, _ := m.CurrentConversation()
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, messages.StatusError, conv.Messages[1].Status)
	assert.Equal(t, "Error: boom", conv.Messages[1].Content)

	require.Len(t, hook.errs, 1)
	assert.False(t, m.Generating())

	// The conversation stays usable.
	stub.respond = nil
	require.NoError(t, m.SendMessage(context.Background(), "try again"))
	conv, _ = m.CurrentConversation()
	assert.Equal(t, messages.StatusComplete, conv.Messages[3].Status)
}

func TestSendMessageWithoutConversation(t *testing.T) {
	m, _, _ := newTestManager(t)
	err := m.SendMessage(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrNoConversation)
}

func TestTitleDerivation(t *testing.T) {
	m, _, _ := newTestManager(t)
	_, err := m.CreateConversation(provider.OpenAI, "")
	require.NoError(t, err)

	long := strings.Repeat("go ", 20)
	require.NoError(t, m.SendMessage(context.Background(), long))

	conv, _ := m.CurrentConversation()
	assert.Equal(t, long[:30]+"...", conv.Title)

	// A later exchange never rewrites the title.
	require.NoError(t, m.SendMessage(context.Background(), "something else entirely"))
	conv, _ = m.CurrentConversation()
	assert.Equal(t, long[:30]+"...", conv.Title)
}

func TestTitleShortMessageNoEllipsis(t *testing.T) {
	m, _, _ := newTestManager(t)
	_, err := m.CreateConversation(provider.OpenAI, "")
	require.NoError(t, err)

	require.NoError(t, m.SendMessage(context.Background(), "short one"))
	conv, _ := m.CurrentConversation()
	assert.Equal(t, "short one", conv.Title)
}

func TestTitleUserRenameWins(t *testing.T) {
	m, _, _ := newTestManager(t)
	conv, err := m.CreateConversation(provider.OpenAI, "")
	require.NoError(t, err)
	require.NoError(t, m.UpdateTitle(context.Background(), conv.ID, "my topic"))

	require.NoError(t, m.SendMessage(context.Background(), "first message"))
	got, _ := m.CurrentConversation()
	assert.Equal(t, "my topic", got.Title)
}

func TestQueueDrainsFIFO(t *testing.T) {
	m, stub, _ := newTestManager(t)
	_, err := m.CreateConversation(provider.OpenAI, "")
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	stub.respond = func(req provider.Request, _ completion.StreamFunc) (string, error) {
		once.Do(func() {
			close(started)
			<-release
		})
		return "answer to: " + req.Messages[len(req.Messages)-1].Content, nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.SendMessage(context.Background(), "first")
	}()
	<-started

	// These arrive while busy: queued, return immediately.
	require.NoError(t, m.SendMessage(context.Background(), "second"))
	require.NoError(t, m.SendMessage(context.Background(), "third"))
	assert.Equal(t, 2, m.QueuedWork())
	assert.True(t, m.Generating())

	close(release)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("generation did not finish")
	}

	conv, _ := m.CurrentConversation()
	require.Len(t, conv.Messages, 6)
	assert.Equal(t, "first", conv.Messages[0].Content)
	assert.Equal(t, "second", conv.Messages[2].Content)
	assert.Equal(t, "third", conv.Messages[4].Content)
	for _, i := range []int{1, 3, 5} {
		assert.Equal(t, messages.StatusComplete, conv.Messages[i].Status)
	}
	assert.False(t, m.Generating())
	assert.Equal(t, 0, m.QueuedWork())
}

func TestRegenerateTruncatesHistory(t *testing.T) {
	m, stub, _ := newTestManager(t)
	_, err := m.CreateConversation(provider.OpenAI, "")
	require.NoError(t, err)

	require.NoError(t, m.SendMessage(context.Background(), "question one"))
	require.NoError(t, m.SendMessage(context.Background(), "question two"))

	conv, _ := m.CurrentConversation()
	require.Len(t, conv.Messages, 4)
	target := conv.Messages[1]

	stub.respond = func(req provider.Request, _ completion.StreamFunc) (string, error) {
		return "regenerated", nil
	}
	require.NoError(t, m.Regenerate(context.Background(), target.ID))

	// Context for the regeneration is everything strictly before the
	// target: just the first user message.
	reqs := stub.seen()
	last := reqs[len(reqs)-1]
	require.Len(t, last.Messages, 1)
	assert.Equal(t, "question one", last.Messages[0].Content)

	conv, _ = m.CurrentConversation()
	require.Len(t, conv.Messages, 4)
	assert.Equal(t, target.ID, conv.Messages[1].ID)
	assert.Equal(t, "regenerated", conv.Messages[1].Content)
	assert.Equal(t, messages.StatusComplete, conv.Messages[1].Status)
}

func TestRegenerateFirstMessageFailsWithoutNetwork(t *testing.T) {
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "chat.db"))
	require.NoError(t, err)
	defer s.Close()

	// Seed a conversation that opens with an assistant message.
	conv := messages.NewConversation(provider.OpenAI.String(), "gpt-4o")
	first := messages.NewSystemMessage("greeting")
	first.Role = messages.RoleAssistant
	first.Status = messages.StatusComplete
	conv.Append(first)
	ctx := context.Background()
	require.NoError(t, s.SaveConversation(ctx, *conv))
	require.NoError(t, s.SetCurrentConversation(ctx, conv.ID))

	stub := &stubCompleter{}
	hook := &recordingHook{}
	m, err := New(WithStore(store.Store(s)), WithCompleter(Completer(stub)), WithHook(Hook(hook)))
	require.NoError(t, err)

	require.NoError(t, m.Regenerate(ctx, first.ID))

	assert.Empty(t, stub.seen(), "no network call may happen")
	got, ok := m.CurrentConversation()
	require.True(t, ok)
	assert.Equal(t, messages.StatusError, got.Messages[0].Status)
	assert.Contains(t, got.Messages[0].Content, "no previous messages")
	require.Len(t, hook.errs, 1)
	assert.ErrorIs(t, hook.errs[0], ErrNoContextToRegenerate)
	assert.False(t, m.Generating())
}

func TestRegenerateRejectsUserMessage(t *testing.T) {
	m, stub, hook := newTestManager(t)
	_, err := m.CreateConversation(provider.OpenAI, "")
	require.NoError(t, err)
	require.NoError(t, m.SendMessage(context.Background(), "hi"))

	conv, _ := m.CurrentConversation()
	callsBefore := len(stub.seen())

	require.NoError(t, m.Regenerate(context.Background(), conv.Messages[0].ID))
	assert.Len(t, stub.seen(), callsBefore)
	require.NotEmpty(t, hook.errs)
	assert.ErrorIs(t, hook.errs[len(hook.errs)-1], ErrNotAssistantMessage)
}

func TestRegenerateUnknownMessage(t *testing.T) {
	m, _, hook := newTestManager(t)
	_, err := m.CreateConversation(provider.OpenAI, "")
	require.NoError(t, err)

	require.NoError(t, m.Regenerate(context.Background(), "no-such-id"))
	require.NotEmpty(t, hook.errs)
	assert.ErrorIs(t, hook.errs[0], ErrMessageNotFound)
}

func TestSettingsFlowIntoRequests(t *testing.T) {
	m, stub, _ := newTestManager(t)
	_, err := m.CreateConversation(provider.Anthropic, "claude-3-haiku")
	require.NoError(t, err)

	temp := 0.1
	maxTokens := 512
	prompt := "answer in haiku"
	require.NoError(t, m.UpdateSettings(context.Background(), messages.SettingsPatch{
		Temperature:  &temp,
		MaxTokens:    &maxTokens,
		SystemPrompt: &prompt,
	}))

	require.NoError(t, m.SendMessage(context.Background(), "hello"))

	reqs := stub.seen()
	require.Len(t, reqs, 1)
	assert.Equal(t, provider.Anthropic, reqs[0].Provider)
	assert.Equal(t, "claude-3-haiku", reqs[0].ModelID)
	assert.InDelta(t, 0.1, reqs[0].Temperature, 1e-9)
	assert.Equal(t, 512, reqs[0].MaxTokens)
	assert.Equal(t, "answer in haiku", reqs[0].SystemPrompt)
}

func TestDeleteConversationPromotesNewest(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	a, err := m.CreateConversation(provider.OpenAI, "")
	require.NoError(t, err)
	b, err := m.CreateConversation(provider.OpenAI, "")
	require.NoError(t, err)
	c, err := m.CreateConversation(provider.OpenAI, "")
	require.NoError(t, err)

	// b becomes the most recently updated of the survivors.
	require.NoError(t, m.UpdateTitle(ctx, b.ID, "bumped"))

	cur, ok := m.CurrentConversation()
	require.True(t, ok)
	require.Equal(t, c.ID, cur.ID)

	require.NoError(t, m.DeleteConversation(ctx, c.ID))
	cur, ok = m.CurrentConversation()
	require.True(t, ok)
	assert.Equal(t, b.ID, cur.ID)

	require.NoError(t, m.DeleteConversation(ctx, b.ID))
	require.NoError(t, m.DeleteConversation(ctx, a.ID))
	_, ok = m.CurrentConversation()
	assert.False(t, ok)

	err = m.DeleteConversation(ctx, "gone")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestPersistenceAcrossManagers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chat.db")
	ctx := context.Background()

	s, err := store.Open(path)
	require.NoError(t, err)
	stub := &stubCompleter{}
	m, err := New(WithStore(store.Store(s)), WithCompleter(Completer(stub)))
	require.NoError(t, err)

	conv, err := m.CreateConversation(provider.OpenAI, "")
	require.NoError(t, err)
	require.NoError(t, m.SendMessage(ctx, "persist me"))
	require.NoError(t, s.Close())

	s2, err := store.Open(path)
	require.NoError(t, err)
	defer s2.Close()
	m2, err := New(WithStore(store.Store(s2)), WithCompleter(Completer(stub)))
	require.NoError(t, err)

	got, ok := m2.CurrentConversation()
	require.True(t, ok)
	assert.Equal(t, conv.ID, got.ID)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "persist me", got.Messages[0].Content)
	assert.Equal(t, "stub reply", got.Messages[1].Content)
}

func TestCreateConversationUnknownProvider(t *testing.T) {
	m, _, _ := newTestManager(t)
	_, err := m.CreateConversation("mistral", "")
	var unknown *provider.UnknownProviderError
	assert.ErrorAs(t, err, &unknown)
}

func TestConversationsSortedByUpdate(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	a, err := m.CreateConversation(provider.OpenAI, "")
	require.NoError(t, err)
	_, err = m.CreateConversation(provider.OpenAI, "")
	require.NoError(t, err)

	require.NoError(t, m.UpdateTitle(ctx, a.ID, "touched last"))

	all := m.Conversations()
	require.Len(t, all, 2)
	assert.Equal(t, a.ID, all[0].ID)
}

func TestClonesDoNotLeakInternalState(t *testing.T) {
	m, _, _ := newTestManager(t)
	_, err := m.CreateConversation(provider.OpenAI, "")
	require.NoError(t, err)
	require.NoError(t, m.SendMessage(context.Background(), "hello"))

	conv, _ := m.CurrentConversation()
	conv.Messages[0].Content = "tampered"
	conv.Title = "tampered"

	again, _ := m.CurrentConversation()
	assert.Equal(t, "hello", again.Messages[0].Content)
	assert.NotEqual(t, "tampered", again.Title)
}
