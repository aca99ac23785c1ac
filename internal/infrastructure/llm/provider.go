// Package llm adapts the external text-generation providers (Gemini and
// Groq) to a single streaming interface and builds the thesis prompts.
package llm

import (
	"context"
	"time"
)

// Provider names
const (
	ProviderGemini = "gemini"
	ProviderGroq   = "groq"
)

// Request is one generation call
type Request struct {
	Model           string
	SystemPrompt    string
	Prompt          string
	Temperature     float64
	MaxOutputTokens int
}

// Model describes a model offered by a provider
type Model struct {
	ID                string `json:"id"`
	DisplayName       string `json:"display_name"`
	Provider          string `json:"provider"`
	ContextWindow     int    `json:"context_window"`
	SupportsStreaming bool   `json:"supports_streaming"`
}

// ChunkFunc receives streamed text. Returning an error aborts the stream.
type ChunkFunc func(chunk string) error

// Provider streams completions from one vendor
type Provider interface {
	Name() string
	DefaultModel() string
	// Stream calls onChunk for every piece of generated text, in order.
	// It returns when the completion ends, fails, or ctx is cancelled.
	Stream(ctx context.Context, req Request, onChunk ChunkFunc) error
	ListModels(ctx context.Context) ([]Model, error)
}

// Options tune call throttling and retries shared by all providers
type Options struct {
	RequestsPerSecond float64
	Burst             int
	MaxRetries        int
	BaseBackoff       time.Duration
	Timeout           time.Duration
}

// DefaultOptions returns the options used when none are configured
func DefaultOptions() Options {
	return Options{
		RequestsPerSecond: 2,
		Burst:             4,
		MaxRetries:        3,
		BaseBackoff:       500 * time.Millisecond,
		Timeout:           5 * time.Minute,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.RequestsPerSecond <= 0 {
		o.RequestsPerSecond = d.RequestsPerSecond
	}
	if o.Burst <= 0 {
		o.Burst = d.Burst
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = d.BaseBackoff
	}
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	return o
}
