package adk

import (
	"context"
	"errors"
)

var (
	// ErrNoCandidates is returned when a provider answers without any text
	ErrNoCandidates = errors.New("no response candidates")
	// ErrUnknownProvider is returned by NewProvider for unsupported names
	ErrUnknownProvider = errors.New("unknown provider")
)

// LLMProvider defines the interface for the text-generation services used by
// model-assisted extraction.
type LLMProvider interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	ListModels(ctx context.Context) ([]string, error)
}

// StatusError reports a non-2xx answer from a provider's REST API
type StatusError struct {
	Provider string
	Code     int
	Status   string
}

func (e *StatusError) Error() string {
	return e.Provider + " API returned status: " + e.Status
}

// RateLimited reports whether the provider throttled the request
func (e *StatusError) RateLimited() bool {
	return e.Code == 429
}
