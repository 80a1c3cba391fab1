package tts

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/sipeed/picotts/pkg/logger"
)

// Dispatcher routes a selector to its provider and binds the artifact path
// to the result. It never retries; callers own retry policy.
type Dispatcher struct {
	registry *Registry
	dir      string
}

func NewDispatcher(registry *Registry, dir string) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		dir:      dir,
	}
}

// Request resolves selector, makes sure the artifact directory exists and
// calls exactly one provider. An unknown provider fails before any I/O.
func (d *Dispatcher) Request(ctx context.Context, selector, text string, mc *MessageContext) (Result, error) {
	provider, sel, err := d.registry.Resolve(selector)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(text) == "" {
		return nil, newError(sel.Provider, ErrEmptyText, "", nil)
	}

	path, err := ArtifactPath(d.dir, mc)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, newError(sel.Provider, ErrIO, "creating artifact directory", err)
	}

	logger.DebugCF("tts", "Dispatching synthesis request", map[string]any{
		"selector":    sel.String(),
		"provider":    sel.Provider,
		"voice":       sel.Voice,
		"text_length": len(text),
		"artifact":    path,
	})

	result, err := provider.Synthesize(ctx, sel.Voice, text)
	if err != nil {
		return nil, err
	}
	result.bind(path)
	return result, nil
}

func (d *Dispatcher) Registry() *Registry {
	return d.registry
}
