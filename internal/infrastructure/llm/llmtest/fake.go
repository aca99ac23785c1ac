// Package llmtest provides a scripted llm.Provider for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/tesis/backend/internal/infrastructure/llm"
)

// FakeProvider replays Chunks on every Stream call
type FakeProvider struct {
	ProviderName string
	Model        string
	Chunks       []string
	// Err is returned after the chunks were delivered
	Err error
	// Block makes Stream wait for ctx cancellation after the chunks
	Block bool
	// Panic, when set, is raised after the chunks
	Panic  any
	Models []llm.Model

	mu       sync.Mutex
	requests []llm.Request
	started  chan struct{}
	once     sync.Once
}

// NewFakeProvider creates a fake named name
func NewFakeProvider(name string, chunks ...string) *FakeProvider {
	return &FakeProvider{ProviderName: name, Model: name + "-model", Chunks: chunks}
}

// Name implements llm.Provider
func (f *FakeProvider) Name() string { return f.ProviderName }

// DefaultModel implements llm.Provider
func (f *FakeProvider) DefaultModel() string { return f.Model }

// Started is closed once the first Stream call delivered its chunks
func (f *FakeProvider) Started() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started == nil {
		f.started = make(chan struct{})
	}
	return f.started
}

// Stream implements llm.Provider
func (f *FakeProvider) Stream(ctx context.Context, req llm.Request, onChunk llm.ChunkFunc) error {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	if f.started == nil {
		f.started = make(chan struct{})
	}
	started := f.started
	f.mu.Unlock()

	for _, c := range f.Chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := onChunk(c); err != nil {
			return err
		}
	}
	f.once.Do(func() { close(started) })
	if f.Panic != nil {
		panic(f.Panic)
	}
	if f.Block {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.Err
}

// ListModels implements llm.Provider
func (f *FakeProvider) ListModels(ctx context.Context) ([]llm.Model, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Models, nil
}

// Requests returns the requests received so far
func (f *FakeProvider) Requests() []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.Request(nil), f.requests...)
}
