// Package hooking lets observers attach to the accesses of a device.
package hooking

import (
	"fmt"
	"sync"
)

// Pos names the point of an access at which an event is emitted.
type Pos struct {
	Name string
}

// Event is what a hook receives.
type Event struct {
	// Source is the object that emitted the event.
	Source Source

	// Pos is the point of the access the event was emitted from.
	Pos *Pos

	// Item is the subject of the event.
	Item any
}

// A Hook observes the events of a source. Hooks run synchronously on the
// goroutine serving the access and must not call back into the source.
type Hook interface {
	OnEvent(e Event)
}

// A Source emits events to the hooks attached to it.
type Source interface {
	Name() string
	AddHook(h Hook)
	HasHooks() bool
	Emit(pos *Pos, item any)
}

// Registry keeps the hooks of a named source. It is safe for concurrent use.
// A hook added while an event is being emitted sees the following events only.
type Registry struct {
	name string

	mu    sync.RWMutex
	hooks []Hook
}

// NewRegistry creates a registry for the source with the given name.
func NewRegistry(name string) *Registry {
	return &Registry{name: name}
}

// Name returns the name of the source.
func (r *Registry) Name() string {
	return r.name
}

// AddHook attaches a hook. Adding the same hook twice panics.
func (r *Registry) AddHook(h Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.hooks {
		if existing == h {
			panic(fmt.Sprintf("hook %T already added to %s", h, r.name))
		}
	}

	r.hooks = append(r.hooks, h)
}

// HasHooks tells if anything observes the source.
func (r *Registry) HasHooks() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.hooks) > 0
}

// Emit delivers an event to every hook, in the order they were added.
func (r *Registry) Emit(pos *Pos, item any) {
	r.mu.RLock()
	hooks := r.hooks[:len(r.hooks):len(r.hooks)]
	r.mu.RUnlock()

	e := Event{Source: r, Pos: pos, Item: item}
	for _, h := range hooks {
		h.OnEvent(e)
	}
}

var _ Source = (*Registry)(nil)
