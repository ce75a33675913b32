package provider

import (
	"fmt"
	"strings"

	"github.com/chatanyllm/chatanyllm/messages"
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

type googleTurn struct {
	Role  string       `json:"role"`
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text string `json:"text"`
}

type googleFamily struct{}

func (googleFamily) Name() Name { return Google }

func (googleFamily) FormatMessages(msgs []messages.Message, systemPrompt string) ([]byte, error) {
	turns := make([]googleTurn, 0, len(msgs)+1)
	for _, m := range msgs {
		// generateContent only knows user and model roles.
		role := "user"
		if m.Role == messages.RoleAssistant {
			role = "model"
		}
		turns = append(turns, googleTurn{Role: role, Parts: []googlePart{{Text: m.Content}}})
	}

	// There is no dedicated system slot, so the prompt is folded into the
	// first user turn.
	if systemPrompt != "" {
		folded := false
		for i := range turns {
			if turns[i].Role == "user" {
				turns[i].Parts[0].Text = systemPrompt + "\n\n" + turns[i].Parts[0].Text
				folded = true
				break
			}
		}
		if !folded {
			turns = append(turns, googleTurn{Role: "user", Parts: []googlePart{{Text: systemPrompt}}})
		}
	}

	if !hasUserTurn(turns) {
		turns = append(turns, googleTurn{Role: "user", Parts: []googlePart{{Text: syntheticGreeting}}})
	}
	return json.Marshal(turns)
}

func hasUserTurn(turns []googleTurn) bool {
	for _, t := range turns {
		if t.Role == "user" {
			return true
		}
	}
	return false
}

func (f googleFamily) BuildRequest(req Request) (WireRequest, error) {
	cfg, err := Get(Google)
	if err != nil {
		return WireRequest{}, err
	}
	base := req.BaseURL
	if base == "" {
		base = cfg.BaseURL
	}
	// Gemini 1.5 models are only served from the beta API surface.
	if strings.Contains(req.ModelID, "gemini-1.5") {
		base = strings.Replace(base, "v1", "v1beta", 1)
	}

	turns, err := f.FormatMessages(req.Messages, req.SystemPrompt)
	if err != nil {
		return WireRequest{}, fmt.Errorf("format messages: %w", err)
	}

	body := newBody().
		setRaw("contents", turns).
		set("generationConfig.temperature", req.Temperature).
		set("generationConfig.topP", req.TopP)
	if req.MaxTokens > 0 {
		body.set("generationConfig.maxOutputTokens", req.MaxTokens)
	}
	buf, err := body.bytes()
	if err != nil {
		return WireRequest{}, err
	}

	headers := jsonHeaders()
	headers.Set("x-goog-api-key", req.APIKey)

	return WireRequest{
		URL:     base + "/models/" + req.ModelID + ":generateContent",
		Headers: headers,
		Body:    buf,
	}, nil
}

func (googleFamily) ExtractResponse(raw []byte) (string, error) {
	text := gjson.GetBytes(raw, "candidates.0.content.parts.0.text")
	if text.Exists() {
		return text.String(), nil
	}
	if msg := gjson.GetBytes(raw, "error.message"); msg.Exists() {
		return "", fmt.Errorf("%w: %s", ErrUnexpectedResponseShape, msg.String())
	}
	return "", fmt.Errorf("%w: missing candidates[0].content.parts[0].text", ErrUnexpectedResponseShape)
}

func (googleFamily) DecodeFrame(data []byte) string {
	return gjson.GetBytes(data, "candidates.0.content.parts.0.text").String()
}

func (googleFamily) ProbeRequest(apiKey, baseURL string) (WireRequest, error) {
	cfg, err := Get(Google)
	if err != nil {
		return WireRequest{}, err
	}
	if baseURL == "" {
		baseURL = cfg.BaseURL
	}
	headers := jsonHeaders()
	headers.Set("x-goog-api-key", apiKey)
	return WireRequest{URL: baseURL + "/models", Headers: headers}, nil
}
