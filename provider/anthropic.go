package provider

import (
	"fmt"
	"net/http"

	"github.com/chatanyllm/chatanyllm/messages"
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// anthropicMaxTokens is applied when the caller does not set a limit; the
// messages endpoint rejects requests without one.
const anthropicMaxTokens = 1024

const anthropicVersion = "2023-06-01"

type anthropicFamily struct{}

func (anthropicFamily) Name() Name { return Anthropic }

func (anthropicFamily) FormatMessages(msgs []messages.Message, systemPrompt string) ([]byte, error) {
	wire := make([]chatMessage, 0, len(msgs)+2)
	if systemPrompt != "" {
		wire = append(wire, chatMessage{Role: string(messages.RoleSystem), Content: systemPrompt})
	}
	hasUser := false
	for _, m := range msgs {
		// The messages endpoint only accepts user and assistant turns.
		role := string(messages.RoleUser)
		if m.Role == messages.RoleAssistant {
			role = string(messages.RoleAssistant)
		} else {
			hasUser = true
		}
		wire = append(wire, chatMessage{Role: role, Content: m.Content})
	}
	if !hasUser {
		wire = append(wire, chatMessage{Role: string(messages.RoleUser), Content: syntheticGreeting})
	}
	return json.Marshal(wire)
}

func (f anthropicFamily) BuildRequest(req Request) (WireRequest, error) {
	cfg, err := Get(Anthropic)
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

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicMaxTokens
	}

	body := newBody().
		set("model", req.ModelID).
		setRaw("messages", wireMsgs).
		set("temperature", req.Temperature).
		set("max_tokens", maxTokens).
		set("stream", req.Stream).
		set("top_p", req.TopP)
	buf, err := body.bytes()
	if err != nil {
		return WireRequest{}, err
	}

	return WireRequest{
		URL:     base + "/messages",
		Headers: anthropicHeaders(req.APIKey),
		Body:    buf,
	}, nil
}

func (anthropicFamily) ExtractResponse(raw []byte) (string, error) {
	text := gjson.GetBytes(raw, "content.0.text")
	if !text.Exists() {
		return "", fmt.Errorf("%w: missing content[0].text", ErrUnexpectedResponseShape)
	}
	return text.String(), nil
}

func (anthropicFamily) DecodeFrame(data []byte) string {
	return gjson.GetBytes(data, "delta.text").String()
}

func (anthropicFamily) ProbeRequest(apiKey, baseURL string) (WireRequest, error) {
	cfg, err := Get(Anthropic)
	if err != nil {
		return WireRequest{}, err
	}
	if baseURL == "" {
		baseURL = cfg.BaseURL
	}
	return WireRequest{URL: baseURL + "/models", Headers: anthropicHeaders(apiKey)}, nil
}

func anthropicHeaders(apiKey string) http.Header {
	h := jsonHeaders()
	h.Set("x-api-key", apiKey)
	h.Set("anthropic-version", anthropicVersion)
	return h
}
