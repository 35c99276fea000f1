package assert

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/khanhnv2901/seca-assert/internal/domain/check"
	sharedErrors "github.com/khanhnv2901/seca-assert/internal/shared/errors"
)

type entry struct {
	meta   Meta
	invoke func(ctx context.Context, raw map[string]any) (*check.Result, error)
}

// Registry maps dotted check names to runnable checks so plans can refer to
// them by name.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds c to the registry. Plan parameters are decoded into a fresh P
// on every invocation.
func Register[P any](r *Registry, c *Check[P]) error {
	name := c.Meta().Name
	if name == "" {
		return fmt.Errorf("%w: empty check name", sharedErrors.ErrInvalidParameter)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("%w: %s", sharedErrors.ErrDuplicateCheck, name)
	}

	r.entries[name] = entry{
		meta: c.Meta(),
		invoke: func(ctx context.Context, raw map[string]any) (*check.Result, error) {
			var params P
			if err := DecodeParams(raw, &params); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", sharedErrors.ErrInvalidPlan, name, err)
			}
			return c.Run(ctx, params)
		},
	}
	return nil
}

// MustRegister is Register for package init paths where a failure is a bug.
func MustRegister[P any](r *Registry, c *Check[P]) {
	if err := Register(r, c); err != nil {
		panic(err)
	}
}

// Lookup returns the metadata of a registered check.
func (r *Registry) Lookup(name string) (Meta, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e.meta, ok
}

// Names returns all registered check names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Catalog returns the metadata of every registered check, sorted by name.
func (r *Registry) Catalog() []Meta {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Meta, 0, len(names))
	for _, name := range names {
		out = append(out, r.entries[name].meta)
	}
	return out
}

// Invoke runs the named check with loosely typed parameters.
func (r *Registry) Invoke(ctx context.Context, name string, raw map[string]any) (*check.Result, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", sharedErrors.ErrCheckNotFound, name)
	}
	return e.invoke(ctx, raw)
}
