package provider

import (
	"github.com/alphadose/haxmap"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Model describes one model offered by a provider. Read-only at runtime.
type Model struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Provider     Name     `json:"provider"`
	MaxTokens    int      `json:"maxTokens,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
	Description  string   `json:"description,omitempty"`
}

// Config is an immutable catalog entry for one provider.
type Config struct {
	Name                 string  `json:"name"`
	BaseURL              string  `json:"baseUrl"`
	RequiresAPIKey       bool    `json:"requiresApiKey"`
	SupportsStreaming    bool    `json:"supportsStreaming"`
	SupportsCustomModels bool    `json:"supportsCustomModels"`
	Models               []Model `json:"models"`
}

var catalog = func() *orderedmap.OrderedMap[Name, Config] {
	m := orderedmap.New[Name, Config]()
	m.Set(OpenAI, Config{
		Name:                 "OpenAI",
		BaseURL:              "https://api.openai.com/v1",
		RequiresAPIKey:       true,
		SupportsStreaming:    true,
		SupportsCustomModels: true,
		Models: []Model{
			{ID: "gpt-4o", Name: "GPT-4o", Provider: OpenAI, MaxTokens: 128000, Capabilities: []string{"vision", "coding", "reasoning"}, Description: "Most capable multimodal model for a wide range of tasks"},
			{ID: "gpt-4-turbo", Name: "GPT-4 Turbo", Provider: OpenAI, MaxTokens: 128000, Capabilities: []string{"coding", "reasoning"}, Description: "Powerful large language model with knowledge up to April 2023"},
			{ID: "gpt-3.5-turbo", Name: "GPT-3.5 Turbo", Provider: OpenAI, MaxTokens: 16385, Capabilities: []string{"coding", "reasoning"}, Description: "Efficient language model with a good balance of capabilities"},
			{ID: "gpt-4", Name: "GPT-4", Provider: OpenAI, MaxTokens: 8192, Capabilities: []string{"coding", "reasoning"}, Description: "Original GPT-4 model with strong reasoning capabilities"},
			{ID: "gpt-4-32k", Name: "GPT-4 (32K context)", Provider: OpenAI, MaxTokens: 32768, Capabilities: []string{"coding", "reasoning"}, Description: "GPT-4 with extended context length"},
			{ID: "gpt-3.5-turbo-1106", Name: "GPT-3.5 Turbo (1106)", Provider: OpenAI, MaxTokens: 16385, Capabilities: []string{"coding", "reasoning"}, Description: "November 2023 version of GPT-3.5 Turbo"},
		},
	})
	m.Set(Anthropic, Config{
		Name:              "Anthropic",
		BaseURL:           "https://api.anthropic.com/v1",
		RequiresAPIKey:    true,
		SupportsStreaming: true,
		Models: []Model{
			{ID: "claude-3-opus", Name: "Claude 3 Opus", Provider: Anthropic, MaxTokens: 200000, Capabilities: []string{"vision", "coding", "reasoning"}, Description: "Most powerful Claude model for complex tasks"},
			{ID: "claude-3-sonnet", Name: "Claude 3 Sonnet", Provider: Anthropic, MaxTokens: 200000, Capabilities: []string{"vision", "coding", "reasoning"}, Description: "Balanced Claude model for most use cases"},
			{ID: "claude-3-haiku", Name: "Claude 3 Haiku", Provider: Anthropic, MaxTokens: 200000, Capabilities: []string{"vision", "coding", "reasoning"}, Description: "Fastest and most compact Claude model"},
		},
	})
	m.Set(Google, Config{
		Name:              "Google",
		BaseURL:           "https://generativelanguage.googleapis.com/v1",
		RequiresAPIKey:    true,
		SupportsStreaming: true,
		Models: []Model{
			{ID: "gemini-1.5-pro", Name: "Gemini 1.5 Pro", Provider: Google, MaxTokens: 1000000, Capabilities: []string{"vision", "coding", "reasoning"}, Description: "Most capable Gemini model with multimodal understanding"},
			{ID: "gemini-1.5-flash", Name: "Gemini 1.5 Flash", Provider: Google, MaxTokens: 1000000, Capabilities: []string{"coding", "reasoning"}, Description: "Optimized for efficiency with strong capabilities"},
			{ID: "gemini-1.0-pro", Name: "Gemini 1.0 Pro", Provider: Google, MaxTokens: 32768, Capabilities: []string{"vision", "coding", "reasoning"}, Description: "Original Gemini model with strong general capabilities"},
		},
	})
	// The custom family takes whatever endpoint the user configures: the
	// key is an optional bearer token and responses are plain JSON, so
	// neither a key nor streaming support is advertised.
	m.Set(Custom, Config{
		Name: "Custom API",
		Models: []Model{
			{ID: "custom-model", Name: "Custom Model", Provider: Custom, Description: "Custom API endpoint"},
		},
	})
	return m
}()

var modelIndex = haxmap.New[string, Model]()

// Get returns the catalog entry for the given provider.
func Get(name Name) (Config, error) {
	cfg, ok := catalog.Get(name)
	if !ok {
		return Config{}, &UnknownProviderError{Provider: name}
	}
	return cfg, nil
}

// DefaultModel returns the first model in the provider's list.
func DefaultModel(name Name) (Model, error) {
	cfg, err := Get(name)
	if err != nil {
		return Model{}, err
	}
	return firstModel(name, cfg)
}

func firstModel(name Name, cfg Config) (Model, error) {
	if len(cfg.Models) == 0 {
		return Model{}, &NoModelsConfiguredError{Provider: name}
	}
	return cfg.Models[0], nil
}

// ModelByID looks a model up across all providers.
func ModelByID(id string) (Model, bool) {
	if m, ok := modelIndex.Get(id); ok {
		return m, true
	}
	for pair := catalog.Oldest(); pair != nil; pair = pair.Next() {
		for _, m := range pair.Value.Models {
			if m.ID == id {
				modelIndex.Set(id, m)
				return m, true
			}
		}
	}
	return Model{}, false
}

// Names returns all provider names in catalog order.
func Names() []Name {
	out := make([]Name, 0, catalog.Len())
	for pair := catalog.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}
