package provider

import (
	"errors"
	"fmt"
)

// ErrUnexpectedResponseShape signals that a provider response parsed as JSON
// but the family's expected field path was absent.
var ErrUnexpectedResponseShape = errors.New("unexpected response shape")

// ErrMissingEndpoint signals that a custom provider request was attempted
// without a configured endpoint URL.
var ErrMissingEndpoint = errors.New("custom endpoint url required")

// ErrMissingAPIKey signals that the provider requires an API key and none
// was configured. It is raised before any network call.
var ErrMissingAPIKey = errors.New("api key required")

// UnknownProviderError is returned when a provider name has no catalog entry
// or family implementation.
type UnknownProviderError struct {
	Provider Name
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown provider %q", e.Provider)
}

// NoModelsConfiguredError is returned when a provider's model list is empty
// and a default model was requested.
type NoModelsConfiguredError struct {
	Provider Name
}

func (e *NoModelsConfiguredError) Error() string {
	return fmt.Sprintf("no models configured for provider %q", e.Provider)
}
