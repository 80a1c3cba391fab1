// Package tts dispatches text to one of several third-party speech services,
// normalizes their heterogeneous responses and materializes the audio to disk.
package tts

import (
	"context"
	"sort"
	"sync"
)

// Provider is one speech service. Synthesize issues exactly one request and
// validates the provider's own success flag before returning a Result.
type Provider interface {
	Name() string
	Synthesize(ctx context.Context, voice, text string) (Result, error)
}

// Registry maps selector prefixes to providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{
		providers: make(map[string]Provider),
	}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces the provider under its Name.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Resolve parses a selector and returns the provider registered for its
// prefix.
func (r *Registry) Resolve(selector string) (Provider, Selector, error) {
	sel, err := ParseSelector(selector)
	if err != nil {
		return nil, Selector{}, err
	}
	p, ok := r.Get(sel.Provider)
	if !ok {
		return nil, Selector{}, newError(sel.Provider, ErrUnknownProvider, "voice selector "+selector, nil)
	}
	return p, sel, nil
}

// Names returns the registered provider tags, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
