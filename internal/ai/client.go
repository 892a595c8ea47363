package ai

import (
	"context"
	"errors"
	"strings"
)

// Generator produces text from a single prompt against a named model.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// Provider is enumeration of supported generation providers
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderStub   Provider = "stub"
)

// ClientConfig holds configuration for generation clients
type ClientConfig struct {
	APIKey   string
	Provider Provider
}

// NewGenerator creates a generation client based on configuration
func NewGenerator(ctx context.Context, config *ClientConfig) (Generator, error) {
	if config == nil {
		return nil, errors.New("client config is required")
	}
	switch config.Provider {
	case ProviderGemini:
		return NewGeminiClient(ctx, config)
	case ProviderStub:
		return NewStubGenerator(""), nil
	default:
		return nil, errors.New("unsupported provider: " + string(config.Provider))
	}
}

// Retryability classifies a generation failure for the retry policy.
type Retryability int

const (
	// Fatal failures skip remaining attempts on the model and advance to
	// the next one.
	Fatal Retryability = iota
	// Retryable failures trigger same-model retry up to the attempt limit.
	Retryable
)

// transientMarkers are the provider error-message fragments treated as
// transient. Substring matching is brittle but is all the provider offers;
// it stays isolated here so the policy is testable on its own.
var transientMarkers = []string{
	"503",
	"unavailable",
	"overloaded",
	"429",
	"rate limit",
	"resource exhausted",
	"deadline exceeded",
}

// Classify inspects an error for transient markers.
func Classify(err error) Retryability {
	if err == nil {
		return Fatal
	}
	msg := strings.ToLower(err.Error())
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return Retryable
		}
	}
	return Fatal
}

// StubGenerator is a canned-response Generator for testing.
type StubGenerator struct {
	Response string
}

// NewStubGenerator creates a StubGenerator returning response.
func NewStubGenerator(response string) *StubGenerator {
	return &StubGenerator{Response: response}
}

// Generate returns the canned response.
func (s *StubGenerator) Generate(ctx context.Context, model, prompt string) (string, error) {
	if s.Response != "" {
		return s.Response, nil
	}
	return "// stub generation for model " + model, nil
}
