package button

import "sync/atomic"

// Listener is one independent consumer of button events.
// The zero value is an unregistered listener. A Listener is owned by the
// caller that registers it and is expected to be read by one goroutine.
type Listener struct {
	reg atomic.Pointer[registration]
}

// registration is the live record of a registered listener. A fresh record
// is allocated on every Register, so a dispatch that loaded an old record
// can never write into the latches of a newer one.
type registration struct {
	level uint32
	slot  int

	pressed  []atomic.Bool
	released []atomic.Bool
	// repeat holds the repeat count at the time the repeat fired, 0 if none
	repeat []atomic.Uint32
}

func newRegistration(level uint32, slot, channels int) *registration {
	return &registration{
		level:    level,
		slot:     slot,
		pressed:  make([]atomic.Bool, channels),
		released: make([]atomic.Bool, channels),
		repeat:   make([]atomic.Uint32, channels),
	}
}

// Registered reports whether the listener currently holds a registry slot.
func (l *Listener) Registered() bool {
	return l.reg.Load() != nil
}

// Level returns the priority level the listener was registered with.
func (l *Listener) Level() uint32 {
	if r := l.reg.Load(); r != nil {
		return r.level
	}
	return 0
}

// Slot returns the registry slot index, or -1 if not registered.
func (l *Listener) Slot() int {
	if r := l.reg.Load(); r != nil {
		return r.slot
	}
	return -1
}

func (r *registration) fire(ch int, kind Kind, repeatCount uint32) {
	switch kind {
	case KindPressed:
		r.pressed[ch].Store(true)
	case KindReleased:
		r.released[ch].Store(true)
	case KindRepeat:
		r.repeat[ch].Store(repeatCount)
	}
}

func (r *registration) clear() {
	for i := range r.pressed {
		r.pressed[i].Store(false)
		r.released[i].Store(false)
		r.repeat[i].Store(0)
	}
}
