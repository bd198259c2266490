package source

import "sync"

// Details identifies a source to the factory contract.
type Details struct {
	// Type selects the factory kind.
	Type string
	// Name is the caller-facing name for the source.
	Name string
}

// Factory is the uniform lifecycle contract implemented by every source
// kind. Kinds that are system-derived implement only Create and report
// ErrNotSupported for the rest.
type Factory interface {
	Create(details Details) (*Source, error)
	Add(details Details) error
	Update(details Details) error
	Remove(details Details) error
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register installs a factory for a source type. Later registrations
// for the same type replace earlier ones.
func Register(sourceType string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[sourceType] = factory
}

// For returns the factory registered for a source type.
func For(sourceType string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	factory, ok := registry[sourceType]
	return factory, ok
}
