package provider

import (
	"fmt"

	"github.com/chatanyllm/chatanyllm/messages"
	"github.com/tidwall/gjson"
)

type customFamily struct{}

func (customFamily) Name() Name { return Custom }

func (customFamily) FormatMessages(msgs []messages.Message, systemPrompt string) ([]byte, error) {
	return formatChatMessages(msgs, systemPrompt)
}

func (f customFamily) BuildRequest(req Request) (WireRequest, error) {
	if req.BaseURL == "" {
		return WireRequest{}, ErrMissingEndpoint
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
	if req.APIKey != "" {
		headers.Set("Authorization", "Bearer "+req.APIKey)
	}

	// The configured URL is the full completion endpoint; nothing is
	// appended to it.
	return WireRequest{URL: req.BaseURL, Headers: headers, Body: buf}, nil
}

// ExtractResponse tries the OpenAI shape first, then the Anthropic shape,
// then a couple of common self-hosted shapes. As a last resort the whole
// payload is returned verbatim so the user sees something rather than an
// error.
func (customFamily) ExtractResponse(raw []byte) (string, error) {
	if v := gjson.GetBytes(raw, "choices.0.message.content"); v.Exists() {
		return v.String(), nil
	}
	if content := gjson.GetBytes(raw, "content"); content.Exists() {
		if content.Type == gjson.String {
			return content.String(), nil
		}
		if content.IsArray() {
			if t := content.Get("0.text"); t.Exists() {
				return t.String(), nil
			}
		}
		return content.Raw, nil
	}
	if v := gjson.GetBytes(raw, "response"); v.Exists() {
		return v.String(), nil
	}
	return string(raw), nil
}

func (customFamily) DecodeFrame(data []byte) string {
	if v := gjson.GetBytes(data, "choices.0.delta.content"); v.Exists() {
		return v.String()
	}
	return gjson.GetBytes(data, "delta.text").String()
}

func (customFamily) ProbeRequest(apiKey, baseURL string) (WireRequest, error) {
	if baseURL == "" {
		return WireRequest{}, ErrMissingEndpoint
	}
	headers := jsonHeaders()
	if apiKey != "" {
		headers.Set("Authorization", "Bearer "+apiKey)
	}
	return WireRequest{URL: baseURL, Headers: headers}, nil
}
