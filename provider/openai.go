package provider

import (
	"fmt"

	"github.com/chatanyllm/chatanyllm/messages"
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	// defaultSystemPrompt is synthesized when a chat-style request would
	// otherwise carry zero messages.
	defaultSystemPrompt = "You are a helpful assistant."

	// syntheticGreeting satisfies providers that require at least one
	// user turn.
	syntheticGreeting = "Hello"
)

// chatMessage is the role/content wire shape shared by the chat-style
// families (OpenAI-compatible and custom endpoints).
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// bodyBuilder accumulates sjson writes and carries the first error, so
// request assembly reads as straight-line field setting.
type bodyBuilder struct {
	buf []byte
	err error
}

func newBody() *bodyBuilder {
	return &bodyBuilder{buf: []byte(`{}`)}
}

func (b *bodyBuilder) set(path string, value any) *bodyBuilder {
	if b.err == nil {
		b.buf, b.err = sjson.SetBytes(b.buf, path, value)
	}
	return b
}

func (b *bodyBuilder) setRaw(path string, raw []byte) *bodyBuilder {
	if b.err == nil {
		b.buf, b.err = sjson.SetRawBytes(b.buf, path, raw)
	}
	return b
}

func (b *bodyBuilder) bytes() ([]byte, error) {
	return b.buf, b.err
}

type openAIFamily struct{}

func (openAIFamily) Name() Name { return OpenAI }

func (openAIFamily) FormatMessages(msgs []messages.Message, systemPrompt string) ([]byte, error) {
	return formatChatMessages(msgs, systemPrompt)
}

// formatChatMessages maps roles 1:1, prepends the system prompt when given,
// and never produces an empty array.
func formatChatMessages(msgs []messages.Message, systemPrompt string) ([]byte, error) {
	wire := make([]chatMessage, 0, len(msgs)+1)
	if systemPrompt != "" {
		wire = append(wire, chatMessage{Role: string(messages.RoleSystem), Content: systemPrompt})
	}
	for _, m := range msgs {
		wire = append(wire, chatMessage{Role: string(m.Role), Content: m.Content})
	}
	if len(wire) == 0 {
		wire = append(wire, chatMessage{Role: string(messages.RoleSystem), Content: defaultSystemPrompt})
	}
	return json.Marshal(wire)
}

func (f openAIFamily) BuildRequest(req Request) (WireRequest, error) {
	cfg, err := Get(OpenAI)
	if err != nil {
		return WireRequest{}, err
	}
	base := req.BaseURL
	if base == "" {
		base = cfg.BaseURL
	}

	wireMsgs, err := f.FormatMessages(req.Messages, req.SystemPrompt)
	if err != nil {
		return WireRequest{}, fmt.Errorf("format messages: %w", err)
	}

	body := newBody().
		set("model", req.ModelID).
		setRaw("messages", wireMsgs).
		set("temperature", req.Temperature).
		set("stream", req.Stream).
		set("top_p", req.TopP).
		set("frequency_penalty", req.FrequencyPenalty).
		set("presence_penalty", req.PresencePenalty)
	if req.MaxTokens > 0 {
		body.set("max_tokens", req.MaxTokens)
	}
	buf, err := body.bytes()
	if err != nil {
		return WireRequest{}, err
	}

	headers := jsonHeaders()
	headers.Set("Authorization", "Bearer "+req.APIKey)

	return WireRequest{
		URL:     base + "/chat/completions",
		Headers: headers,
		Body:    buf,
	}, nil
}

func (openAIFamily) ExtractResponse(raw []byte) (string, error) {
	content := gjson.GetBytes(raw, "choices.0.message.content")
	if !content.Exists() {
		return "", fmt.Errorf("%w: missing choices[0].message.content", ErrUnexpectedResponseShape)
	}
	return content.String(), nil
}

func (openAIFamily) DecodeFrame(data []byte) string {
	return gjson.GetBytes(data, "choices.0.delta.content").String()
}

func (openAIFamily) ProbeRequest(apiKey, baseURL string) (WireRequest, error) {
	cfg, err := Get(OpenAI)
	if err != nil {
		return WireRequest{}, err
	}
	if baseURL == "" {
		baseURL = cfg.BaseURL
	}
	headers := jsonHeaders()
	headers.Set("Authorization", "Bearer "+apiKey)
	return WireRequest{URL: baseURL + "/models", Headers: headers}, nil
}
