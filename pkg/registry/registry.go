// Package registry keeps replay backends by name for the service surfaces.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/wilhg/qreplay/pkg/errmodel"
	"github.com/wilhg/qreplay/pkg/hardware"
	"github.com/wilhg/qreplay/pkg/replay"
)

// Registry maps names to backends. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]*replay.Backend
}

// New returns an empty registry.
func New() *Registry { return &Registry{backends: make(map[string]*replay.Backend)} }

// Register adds b under name. Names are unique.
func (r *Registry) Register(name string, b *replay.Backend) error {
	if b == nil {
		return fmt.Errorf("backend is nil")
	}
	if name == "" {
		return fmt.Errorf("backend name is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.backends[name]; exists {
		return fmt.Errorf("backend %q already registered", name)
	}
	r.backends[name] = b
	return nil
}

// Get resolves a backend by name. An unknown name is a not_found error.
func (r *Registry) Get(name string) (*replay.Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[name]
	if !ok {
		return nil, errmodel.Validation(errmodel.CodeNotFound, "backend not registered", map[string]any{"backend": name})
	}
	return b, nil
}

// Names returns the registered names in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Info summarises a registered backend.
type Info struct {
	Name    string              `json:"name"`
	Device  hardware.Descriptor `json:"device"`
	Keys    int                 `json:"keys"`
	Records int                 `json:"records"`
}

// Describe returns Info for every backend, ordered by name.
func (r *Registry) Describe() []Info {
	names := r.Names()
	out := make([]Info, 0, len(names))
	for _, name := range names {
		b, err := r.Get(name)
		if err != nil {
			continue
		}
		out = append(out, Info{Name: name, Device: b.Device(), Keys: len(b.Keys()), Records: len(b.Records())})
	}
	return out
}
