package provider

import (
	"net/http"

	"github.com/chatanyllm/chatanyllm/messages"
)

// Name identifies a provider family.
type Name string

const (
	OpenAI    Name = "openai"
	Anthropic Name = "anthropic"
	Google    Name = "google"
	Custom    Name = "custom"
)

func (n Name) String() string { return string(n) }

// Request encapsulates everything needed for one completion call. It is a
// transient value assembled per generation and never persisted.
type Request struct {
	// Provider selects the family that shapes the wire request.
	Provider Name

	// ModelID names the model, e.g. "gpt-4o" or "claude-3-opus".
	ModelID string

	// Messages is the conversation history up to but excluding the
	// placeholder message being generated.
	Messages []messages.Message

	// SystemPrompt, when non-empty, is injected the way the family
	// requires: as a leading system entry or folded into the first
	// user turn.
	SystemPrompt string

	Temperature      float64
	MaxTokens        int
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64

	// Stream requests an SSE response instead of a single JSON body.
	Stream bool

	// APIKey authenticates the call; the header shape is family-specific.
	APIKey string

	// BaseURL overrides the catalog base URL (custom endpoints).
	BaseURL string

	// Prevents unkeyed literals
	_ struct{}
}

// WireRequest is a fully shaped outbound HTTP request: the family has
// already decided the URL, the auth headers, and the body field names.
type WireRequest struct {
	URL     string
	Headers http.Header
	Body    []byte
}

// Family is the closed set of behaviors that differ per provider. Adding a
// provider means adding a Family implementation, not growing a switch.
type Family interface {
	// Name returns the catalog key this family serves.
	Name() Name

	// FormatMessages translates the neutral message list into the
	// family's wire message array. The result is never empty: families
	// synthesize a minimal entry when the input would otherwise produce
	// zero turns.
	FormatMessages(msgs []messages.Message, systemPrompt string) ([]byte, error)

	// BuildRequest produces the complete outbound request for a
	// completion call.
	BuildRequest(req Request) (WireRequest, error)

	// ExtractResponse pulls the assistant text out of a non-streaming
	// response body. Families with a single expected shape fail with
	// ErrUnexpectedResponseShape when the field path is absent.
	ExtractResponse(raw []byte) (string, error)

	// DecodeFrame extracts the incremental text delta from one SSE data
	// frame. Malformed frames and frames without the expected field
	// yield an empty delta; decoding never fails.
	DecodeFrame(data []byte) string

	// ProbeRequest builds the lightweight request used to verify an API
	// key against the provider's models listing.
	ProbeRequest(apiKey, baseURL string) (WireRequest, error)
}

// For returns the Family implementation for the given provider name.
func For(name Name) (Family, error) {
	switch name {
	case OpenAI:
		return openAIFamily{}, nil
	case Anthropic:
		return anthropicFamily{}, nil
	case Google:
		return googleFamily{}, nil
	case Custom:
		return customFamily{}, nil
	default:
		return nil, &UnknownProviderError{Provider: name}
	}
}

func jsonHeaders() http.Header {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	return h
}
