package shipping

import (
	"sort"

	pkgerrors "github.com/craftmart/fulfillment-backend/pkg/errors"
)

// Registry resolves carrier adapters by provider key.
type Registry struct {
	carriers    map[string]Carrier
	defaultName string
}

// NewRegistry builds a registry from the given adapters. defaultName must
// match one of their Name() values.
func NewRegistry(defaultName string, carriers ...Carrier) (*Registry, error) {
	if len(carriers) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "at least one carrier is required")
	}
	byName := make(map[string]Carrier, len(carriers))
	for _, c := range carriers {
		if c == nil || c.Name() == "" {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "carrier with empty name")
		}
		byName[c.Name()] = c
	}
	if _, ok := byName[defaultName]; !ok {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "default carrier is not registered").
			WithDetails(map[string]any{"default": defaultName})
	}
	return &Registry{carriers: byName, defaultName: defaultName}, nil
}

// Resolve returns the adapter for the provider, or the default when the
// provider is empty.
func (r *Registry) Resolve(provider string) (Carrier, error) {
	if provider == "" {
		provider = r.defaultName
	}
	carrier, ok := r.carriers[provider]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown carrier provider").
			WithDetails(map[string]any{"provider": provider})
	}
	return carrier, nil
}

// Default returns the configured default adapter.
func (r *Registry) Default() Carrier {
	return r.carriers[r.defaultName]
}

// Providers lists the registered provider keys.
func (r *Registry) Providers() []string {
	names := make([]string, 0, len(r.carriers))
	for name := range r.carriers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
