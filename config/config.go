// Package config loads binary-level configuration for the chat client from
// a TOML file with environment fallbacks for credentials. Conversation
// settings live in the store; this package only covers what a binary needs
// before the store is open.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/chatanyllm/chatanyllm/provider"
)

// DefaultPath is the config file location relative to the user home dir.
const DefaultPath = ".chatanyllm/config.toml"

// Config is the file-level configuration. Zero values are filled in from
// Default, so a partial file is fine.
type Config struct {
	// DefaultProvider selects the provider used for new conversations.
	DefaultProvider string `toml:"default_provider"`

	// DefaultModel selects the model for new conversations. Empty means
	// the provider's first catalog model.
	DefaultModel string `toml:"default_model"`

	// DatabasePath is the sqlite file holding conversations and keys.
	DatabasePath string `toml:"database_path"`

	// RequestTimeoutSecs bounds one completion request.
	RequestTimeoutSecs int `toml:"request_timeout_secs"`

	// Stream toggles SSE streaming for completions.
	Stream bool `toml:"stream"`

	// APIKeys maps provider name to key. Environment variables of the
	// form OPENAI_API_KEY take precedence over file values.
	APIKeys map[string]string `toml:"api_keys"`

	// Endpoints maps provider name to a custom endpoint URL.
	Endpoints map[string]string `toml:"endpoints"`
}

// Default returns the built-in configuration.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		DefaultProvider:    provider.OpenAI.String(),
		DatabasePath:       filepath.Join(home, ".chatanyllm", "chat.db"),
		RequestTimeoutSecs: 60,
		Stream:             true,
	}
}

// Load reads the TOML file at path over the defaults. A missing file is not
// an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config %s: unknown key %q", path, undecoded[0].String())
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if _, err := provider.Get(provider.Name(c.DefaultProvider)); err != nil {
		return err
	}
	if c.RequestTimeoutSecs <= 0 {
		return errors.New("request_timeout_secs must be positive")
	}
	return nil
}

// APIKey resolves the credential for a provider: environment first, then
// the config file.
func (c Config) APIKey(name provider.Name) string {
	if key := os.Getenv(envKey(name)); key != "" {
		return key
	}
	return c.APIKeys[name.String()]
}

// Endpoint returns the configured custom endpoint URL for a provider.
func (c Config) Endpoint(name provider.Name) string {
	return c.Endpoints[name.String()]
}

func envKey(name provider.Name) string {
	return strings.ToUpper(name.String()) + "_API_KEY"
}
