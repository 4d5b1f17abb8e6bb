// Package button contains the debounce state machine and the listener
// registry for a fixed set of push buttons.
// This package has NO hardware dependencies. Pins are sampled through the
// Sampler interface and time is injected by the caller.
package button

import (
	"errors"
	"time"
)

// MaxChannels is the largest channel count a Bitmask can represent.
const MaxChannels = 32

// Defaults carried over from the board firmware.
const (
	DefaultDetectTicks   = 60
	DefaultDelayTicks    = 250
	DefaultIntervalTicks = 200

	DefaultListeners = 8
	DefaultThreshold = 5
)

var (
	ErrOutOfRange        = errors.New("button: channel out of range")
	ErrRegistryFull      = errors.New("button: listener registry full")
	ErrNotRegistered     = errors.New("button: listener not registered")
	ErrAlreadyRegistered = errors.New("button: listener already registered")
	ErrDisabled          = errors.New("button: engine disabled")
	ErrInvalidTiming     = errors.New("button: repeat timing must be positive")
)

// Timing holds the three repeat thresholds of a channel, in ticks.
// Detect applies to the first repeat, Delay to the second and Interval to
// every repeat after that.
type Timing struct {
	Detect   uint32
	Delay    uint32
	Interval uint32
}

// DefaultTiming returns the firmware default of 60/250/200 ticks.
func DefaultTiming() Timing {
	return Timing{
		Detect:   DefaultDetectTicks,
		Delay:    DefaultDelayTicks,
		Interval: DefaultIntervalTicks,
	}
}

// Valid reports whether all thresholds are non-zero.
func (t Timing) Valid() bool {
	return t.Detect > 0 && t.Delay > 0 && t.Interval > 0
}

// threshold returns the tick count that triggers the next repeat.
func (t Timing) threshold(repeatCount uint32) uint32 {
	switch repeatCount {
	case 0:
		return t.Detect
	case 1:
		return t.Delay
	default:
		return t.Interval
	}
}

// Kind identifies the type of a button event.
type Kind int

const (
	KindPressed Kind = iota
	KindReleased
	KindRepeat
)

func (k Kind) String() string {
	switch k {
	case KindPressed:
		return "PRESSED"
	case KindReleased:
		return "RELEASED"
	case KindRepeat:
		return "REPEAT"
	default:
		return "UNKNOWN"
	}
}

// Event is a single press, release or repeat on one channel.
type Event struct {
	Channel int
	Name    string
	Kind    Kind
	// Repeat is the repeat count at the time the repeat fired (KindRepeat only).
	Repeat uint32
	// Held is how long the button was held (KindReleased only).
	Held time.Duration
	Time time.Time
}

// ChannelState is a point-in-time copy of one channel.
type ChannelState struct {
	Name         string
	Pressed      bool
	Released     bool
	PressedTime  time.Duration
	ReleasedTime time.Duration
	RepeatCount  uint32
	// PressEdge and ReleaseEdge latch until Engine.Clear.
	PressEdge     bool
	ReleaseEdge   bool
	PressedSince  time.Time
	ReleasedSince time.Time
	Timing        Timing
}

// Sampler reads the raw level of a channel. It is called once per channel
// per tick and must not block for longer than a tick period.
type Sampler interface {
	Sample(ch int) bool
}

// SamplerFunc adapts a function to the Sampler interface.
type SamplerFunc func(ch int) bool

// Sample calls f(ch).
func (f SamplerFunc) Sample(ch int) bool {
	return f(ch)
}
