package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogGet(t *testing.T) {
	cfg, err := Get(OpenAI)
	require.NoError(t, err)
	assert.Equal(t, "OpenAI", cfg.Name)
	assert.True(t, cfg.RequiresAPIKey)
	assert.NotEmpty(t, cfg.Models)

	_, err = Get("nope")
	var unknown *UnknownProviderError
	assert.ErrorAs(t, err, &unknown)
}

func TestCatalogCustomFlags(t *testing.T) {
	cfg, err := Get(Custom)
	require.NoError(t, err)
	assert.False(t, cfg.RequiresAPIKey, "custom bearer token is optional")
	assert.False(t, cfg.SupportsStreaming, "custom responses are parsed whole")
}

func TestDefaultModel(t *testing.T) {
	m, err := DefaultModel(Anthropic)
	require.NoError(t, err)
	assert.Equal(t, "claude-3-opus", m.ID)

	_, err = firstModel(Custom, Config{Name: "empty"})
	var noModels *NoModelsConfiguredError
	require.ErrorAs(t, err, &noModels)
	assert.Equal(t, Custom, noModels.Provider)
}

func TestModelByID(t *testing.T) {
	m, ok := ModelByID("gemini-1.5-flash")
	require.True(t, ok)
	assert.Equal(t, Google, m.Provider)

	// Second hit is served from the index.
	again, ok := ModelByID("gemini-1.5-flash")
	require.True(t, ok)
	assert.Equal(t, m, again)

	_, ok = ModelByID("gpt-9")
	assert.False(t, ok)
}

func TestNamesOrder(t *testing.T) {
	assert.Equal(t, []Name{OpenAI, Anthropic, Google, Custom}, Names())
}
