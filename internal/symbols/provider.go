package symbols

import "context"

// Provider loads compiled units for a solution path.
type Provider interface {
	// Name returns the provider identifier (e.g. "csharp", "dump").
	Name() string
	// Detect returns true if this provider understands the given path.
	Detect(path string) (bool, error)
	// Load returns the compiled units found at path.
	Load(ctx context.Context, path string) ([]*Unit, error)
}

// Registry holds registered providers.
type Registry struct {
	providers []Provider
}

// NewRegistry creates a new provider registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a provider to the registry.
func (r *Registry) Register(p Provider) {
	r.providers = append(r.providers, p)
}

// Get returns the provider with the given name, or nil if not found.
func (r *Registry) Get(name string) Provider {
	for _, p := range r.providers {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// All returns all registered providers.
func (r *Registry) All() []Provider {
	return r.providers
}

// Detect returns the first registered provider that supports path, or nil.
func (r *Registry) Detect(path string) (Provider, error) {
	for _, p := range r.providers {
		ok, err := p.Detect(path)
		if err != nil {
			return nil, err
		}
		if ok {
			return p, nil
		}
	}
	return nil, nil
}
