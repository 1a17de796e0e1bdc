package agent

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned by Registry.Get for an unregistered name.
var ErrNotFound = errors.New("unit not found")

// Entry is a registered unit with its name.
type Entry struct {
	Name string
	Unit Unit
}

// Registry manages the set of available units. Registration order is the
// priority order used for default plans.
type Registry struct {
	mu    sync.RWMutex
	units map[string]Unit
	order []string
}

func NewRegistry() *Registry {
	return &Registry{
		units: make(map[string]Unit),
	}
}

// Register inserts or replaces the unit under name. A replaced unit keeps
// its original position.
func (r *Registry) Register(name string, u Unit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.units[name]; !ok {
		r.order = append(r.order, name)
	}
	r.units[name] = u
}

// Add registers u under its own name.
func (r *Registry) Add(u Unit) {
	r.Register(u.Name(), u)
}

func (r *Registry) Get(name string) (Unit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.units[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return u, nil
}

// EnabledUnits returns the registered units in priority order.
func (r *Registry) EnabledUnits() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make([]Entry, 0, len(r.order))
	for _, name := range r.order {
		entries = append(entries, Entry{Name: name, Unit: r.units[name]})
	}
	return entries
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
