package llm

import (
	"context"
	"sort"
	"sync"

	"github.com/tesis/backend/internal/domain/shared"
	"golang.org/x/sync/errgroup"
)

// Registry holds the configured providers by name
type Registry struct {
	mu          sync.RWMutex
	providers   map[string]Provider
	defaultName string
}

// NewRegistry creates an empty registry
func NewRegistry(defaultName string) *Registry {
	return &Registry{
		providers:   make(map[string]Provider),
		defaultName: defaultName,
	}
}

// Register adds or replaces a provider
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns a provider by name; "" selects the default
func (r *Registry) Get(name string) (Provider, error) {
	if name == "" {
		return r.Default()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, shared.NewDomainError("INVALID_INPUT", "Unknown or unconfigured provider: "+name)
	}
	return p, nil
}

// Default returns the default provider, or the only one configured
func (r *Registry) Default() (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.providers[r.defaultName]; ok {
		return p, nil
	}
	if len(r.providers) == 1 {
		for _, p := range r.providers {
			return p, nil
		}
	}
	return nil, shared.NewDomainError("INVALID_INPUT", "No LLM provider is configured")
}

// DefaultName returns the name Default resolves to, or ""
func (r *Registry) DefaultName() string {
	p, err := r.Default()
	if err != nil {
		return ""
	}
	return p.Name()
}

// Names returns the registered provider names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ListAll queries every provider concurrently. The first failure cancels
// the remaining calls and is returned.
func (r *Registry) ListAll(ctx context.Context) (map[string][]Model, error) {
	names := r.Names()
	results := make([][]Model, len(names))

	g, ctx := errgroup.WithContext(ctx)
	for i, name := range names {
		p, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		g.Go(func() error {
			models, err := p.ListModels(ctx)
			if err != nil {
				return err
			}
			results[i] = models
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string][]Model, len(names))
	for i, name := range names {
		out[name] = results[i]
	}
	return out, nil
}
