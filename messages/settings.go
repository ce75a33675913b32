package messages

// Settings carries the sampling parameters and system prompt applied to
// every completion request.
type Settings struct {
	Temperature      float64 `json:"temperature"`
	MaxTokens        int     `json:"maxTokens"`
	TopP             float64 `json:"topP"`
	FrequencyPenalty float64 `json:"frequencyPenalty"`
	PresencePenalty  float64 `json:"presencePenalty"`
	SystemPrompt     string  `json:"systemPrompt"`
}

// DefaultSettings returns the out-of-the-box chat settings.
func DefaultSettings() Settings {
	return Settings{
		Temperature: 0.7,
		MaxTokens:   2048,
		TopP:        1,
	}
}

// SettingsPatch is a partial update to Settings; nil fields are left as-is.
type SettingsPatch struct {
	Temperature      *float64
	MaxTokens        *int
	TopP             *float64
	FrequencyPenalty *float64
	PresencePenalty  *float64
	SystemPrompt     *string
}

// Apply merges the patch into s.
func (p SettingsPatch) Apply(s *Settings) {
	if p.Temperature != nil {
		s.Temperature = *p.Temperature
	}
	if p.MaxTokens != nil {
		s.MaxTokens = *p.MaxTokens
	}
	if p.TopP != nil {
		s.TopP = *p.TopP
	}
	if p.FrequencyPenalty != nil {
		s.FrequencyPenalty = *p.FrequencyPenalty
	}
	if p.PresencePenalty != nil {
		s.PresencePenalty = *p.PresencePenalty
	}
	if p.SystemPrompt != nil {
		s.SystemPrompt = *p.SystemPrompt
	}
}
