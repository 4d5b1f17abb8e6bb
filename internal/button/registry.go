package button

import (
	"sync"
	"sync/atomic"
)

// Registry is a fixed-capacity table of listener registrations.
//
// Register and Unregister serialize on mu. Dispatch walks the table with
// atomic loads only, so a slot is either fully published or fully retracted
// from the point of view of the tick goroutine.
type Registry struct {
	mu       sync.Mutex
	slots    []atomic.Pointer[registration]
	count    int
	channels int
}

// NewRegistry creates a registry with room for capacity listeners, each
// tracking the given number of channels.
func NewRegistry(capacity, channels int) *Registry {
	return &Registry{
		slots:    make([]atomic.Pointer[registration], capacity),
		channels: channels,
	}
}

// Register places l in the first free slot with the given priority level.
func (r *Registry) Register(l *Listener, level uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l.reg.Load() != nil {
		return ErrAlreadyRegistered
	}

	for i := range r.slots {
		if r.slots[i].Load() != nil {
			continue
		}
		reg := newRegistration(level, i, r.channels)
		l.reg.Store(reg)
		r.slots[i].Store(reg)
		r.count++
		return nil
	}
	return ErrRegistryFull
}

// Unregister frees the slot held by l.
func (r *Registry) Unregister(l *Listener) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg := l.reg.Load()
	if reg == nil {
		return ErrNotRegistered
	}
	if reg.slot < 0 || reg.slot >= len(r.slots) || r.slots[reg.slot].Load() != reg {
		// Registered with a different registry.
		return ErrNotRegistered
	}

	r.slots[reg.slot].Store(nil)
	l.reg.Store(nil)
	if r.count > 0 {
		r.count--
	}
	return nil
}

// Len returns the number of live registrations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Cap returns the slot capacity.
func (r *Registry) Cap() int {
	return len(r.slots)
}

// owns reports whether l is live in this registry.
func (r *Registry) owns(l *Listener) (*registration, bool) {
	reg := l.reg.Load()
	if reg == nil || reg.slot < 0 || reg.slot >= len(r.slots) {
		return nil, false
	}
	if r.slots[reg.slot].Load() != reg {
		return nil, false
	}
	return reg, true
}

// dispatch latches an event into every live registration at or below the
// threshold. Every slot is scanned; empty slots are skipped.
func (r *Registry) dispatch(ch int, kind Kind, repeatCount, threshold uint32) {
	for i := range r.slots {
		reg := r.slots[i].Load()
		if reg == nil || reg.level > threshold {
			continue
		}
		reg.fire(ch, kind, repeatCount)
	}
}
