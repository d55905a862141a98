package resolver

import (
	"errors"
	"fmt"
)

// Failure classes checked with errors.Is.
var (
	// ErrNotFound is returned when a provider has no record for the ID.
	ErrNotFound = errors.New("resolver: resource not found")

	// ErrUnavailable is returned when the provider cannot be reached.
	ErrUnavailable = errors.New("resolver: provider unavailable")

	// ErrNotConfigured is returned when the provider lacks credentials.
	ErrNotConfigured = errors.New("resolver: provider not configured")
)

// ProviderError wraps an error with the provider and resource that
// caused it, so errors.Is and errors.As still work on the cause.
type ProviderError struct {
	Provider string
	ID       string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.ID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func notFound(provider, id string) error {
	return &ProviderError{Provider: provider, ID: id, Err: ErrNotFound}
}

func unavailable(provider, id string, cause error) error {
	return &ProviderError{Provider: provider, ID: id, Err: fmt.Errorf("%w: %v", ErrUnavailable, cause)}
}
