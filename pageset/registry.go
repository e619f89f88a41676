package pageset

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a page set without arguments.
type Factory func() (*PageSet, error)

// Entry is a registered page set. Entries without a factory are page sets
// that need constructor arguments and cannot be built directly.
type Entry struct {
	Name string
	New  Factory
}

// Constructable reports whether the entry can be built without arguments.
func (e Entry) Constructable() bool {
	return e.New != nil
}

// Registry holds page set factories by name.
type Registry struct {
	mx      sync.RWMutex
	entries map[string]Entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register adds a directly constructable page set.
func (r *Registry) Register(name string, f Factory) error {
	if f == nil {
		return fmt.Errorf("page set %s: nil factory, use RegisterAbstract", name)
	}
	return r.add(Entry{Name: name, New: f})
}

// RegisterAbstract records a page set that cannot be built without
// arguments, so that discovery reports it instead of losing it silently.
func (r *Registry) RegisterAbstract(name string) error {
	return r.add(Entry{Name: name})
}

func (r *Registry) add(e Entry) error {
	r.mx.Lock()
	defer r.mx.Unlock()

	if _, ok := r.entries[e.Name]; ok {
		return fmt.Errorf("page set already registered: %s", e.Name)
	}
	r.entries[e.Name] = e
	return nil
}

// Entries returns all entries sorted by name.
func (r *Registry) Entries() []Entry {
	r.mx.RLock()
	defer r.mx.RUnlock()

	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered entries.
func (r *Registry) Len() int {
	r.mx.RLock()
	defer r.mx.RUnlock()
	return len(r.entries)
}

//nolint:gochecknoglobals
var defaultRegistry = NewRegistry()

// Register adds a page set to the process-wide registry, usually from an
// init function of the package declaring it.
// This function panics if a page set with the same name is already registered.
func Register(name string, f Factory) {
	if err := defaultRegistry.Register(name, f); err != nil {
		panic(err)
	}
}

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}
