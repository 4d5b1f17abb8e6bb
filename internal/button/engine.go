package button

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Config describes the fixed shape of an Engine.
type Config struct {
	// Channels is the number of buttons, 1..MaxChannels.
	Channels int
	// Names labels channels for diagnostics. Missing names become "BTN<n>".
	Names []string
	// Listeners is the registry capacity.
	Listeners int
	// TickPeriod is the period at which Tick is called. Timing values are
	// counted in ticks of this period.
	TickPeriod time.Duration
	// Timing is the initial repeat timing of every channel.
	Timing Timing
	// Timings overrides Timing per channel when present.
	Timings []Timing
	// Threshold is the initial priority threshold.
	Threshold uint32
	// Disabled starts the engine with all queries gated off.
	Disabled bool
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.Channels < 1 || c.Channels > MaxChannels {
		return fmt.Errorf("channels must be 1..%d, got %d", MaxChannels, c.Channels)
	}
	if c.Listeners < 1 {
		return fmt.Errorf("listeners must be at least 1, got %d", c.Listeners)
	}
	if c.TickPeriod <= 0 {
		return fmt.Errorf("tick period must be positive, got %v", c.TickPeriod)
	}
	if !c.Timing.Valid() {
		return fmt.Errorf("timing %+v: %w", c.Timing, ErrInvalidTiming)
	}
	for i, t := range c.Timings {
		if !t.Valid() {
			return fmt.Errorf("channel %d timing %+v: %w", i, t, ErrInvalidTiming)
		}
	}
	return nil
}

// Engine advances every channel once per tick and fans the resulting events
// out to registered listeners.
//
// Tick must be called from a single goroutine. All other methods are safe for
// concurrent use.
type Engine struct {
	mu       sync.RWMutex // guards channels
	channels []channel
	names    []string

	registry *Registry

	enabled   atomic.Bool
	threshold atomic.Uint32

	period  time.Duration
	sampler Sampler
	now     func() time.Time
	logger  *zap.SugaredLogger
}

// New creates an engine. now defaults to time.Now and logger to a no-op.
func New(cfg Config, sampler Sampler, now func() time.Time, logger *zap.SugaredLogger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("button config: %w", err)
	}
	if sampler == nil {
		return nil, fmt.Errorf("button config: nil sampler")
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	e := &Engine{
		channels: make([]channel, cfg.Channels),
		names:    make([]string, cfg.Channels),
		registry: NewRegistry(cfg.Listeners, cfg.Channels),
		period:   cfg.TickPeriod,
		sampler:  sampler,
		now:      now,
		logger:   logger,
	}
	for i := range e.channels {
		timing := cfg.Timing
		if i < len(cfg.Timings) {
			timing = cfg.Timings[i]
		}
		e.channels[i] = newChannel(timing)
		if i < len(cfg.Names) && cfg.Names[i] != "" {
			e.names[i] = cfg.Names[i]
		} else {
			e.names[i] = fmt.Sprintf("BTN%d", i)
		}
	}
	e.enabled.Store(!cfg.Disabled)
	e.threshold.Store(cfg.Threshold)

	return e, nil
}

// Tick samples and advances every channel in index order. Each channel's
// events are dispatched before the next channel is sampled. The fired events
// are returned for logging and counting; listeners have already been updated.
func (e *Engine) Tick() []Event {
	now := e.now()
	threshold := e.threshold.Load()

	e.mu.Lock()
	defer e.mu.Unlock()

	var events []Event
	for i := range e.channels {
		c := &e.channels[i]
		tr := c.advance(e.sampler.Sample(i), now)
		if !tr.any() {
			continue
		}
		if tr.press {
			e.registry.dispatch(i, KindPressed, 0, threshold)
			events = append(events, Event{Channel: i, Name: e.names[i], Kind: KindPressed, Time: now})
		}
		if tr.repeat {
			e.registry.dispatch(i, KindRepeat, c.repeatCount, threshold)
			events = append(events, Event{Channel: i, Name: e.names[i], Kind: KindRepeat, Repeat: c.repeatCount, Time: now})
		}
		if tr.release {
			e.registry.dispatch(i, KindReleased, 0, threshold)
			events = append(events, Event{Channel: i, Name: e.names[i], Kind: KindReleased, Held: c.pressedTime(), Time: now})
		}
	}
	return events
}

// Register adds l to the registry at the given priority level. Lower levels
// are more privileged.
func (e *Engine) Register(l *Listener, level uint32) error {
	if err := e.registry.Register(l, level); err != nil {
		e.logger.Debugw("listener register failed", "level", level, "error", err)
		return err
	}
	e.logger.Debugw("listener registered", "slot", l.Slot(), "level", level, "live", e.registry.Len())
	return nil
}

// Unregister removes l from the registry. It is safe to call while Tick runs.
func (e *Engine) Unregister(l *Listener) error {
	slot := l.Slot()
	if err := e.registry.Unregister(l); err != nil {
		return err
	}
	e.logger.Debugw("listener unregistered", "slot", slot, "live", e.registry.Len())
	return nil
}

// latches returns the live registration for l if the engine is enabled and
// ch is in range.
func (e *Engine) latches(l *Listener, ch int) (*registration, bool) {
	if !e.enabled.Load() || ch < 0 || ch >= len(e.channels) {
		return nil, false
	}
	return e.registry.owns(l)
}

// ConsumePressed reports whether a press fired on ch since the last call,
// and clears the latch.
func (e *Engine) ConsumePressed(l *Listener, ch int) bool {
	reg, ok := e.latches(l, ch)
	if !ok {
		return false
	}
	return reg.pressed[ch].Swap(false)
}

// ConsumeReleased reports whether a release fired on ch since the last call,
// and clears the latch.
func (e *Engine) ConsumeReleased(l *Listener, ch int) bool {
	reg, ok := e.latches(l, ch)
	if !ok {
		return false
	}
	return reg.released[ch].Swap(false)
}

// ConsumeRepeat returns the repeat count of the latest repeat on ch since the
// last call, or 0 if none fired, and clears the latch.
func (e *Engine) ConsumeRepeat(l *Listener, ch int) uint32 {
	reg, ok := e.latches(l, ch)
	if !ok {
		return 0
	}
	return reg.repeat[ch].Swap(0)
}

// ClearAll drops every latched event of l without reporting it.
func (e *Engine) ClearAll(l *Listener) error {
	if !e.enabled.Load() {
		return ErrDisabled
	}
	reg, ok := e.registry.owns(l)
	if !ok {
		return ErrNotRegistered
	}
	reg.clear()
	return nil
}

// state returns the channel for a read query, or nil when gated.
// Callers must hold e.mu for reading.
func (e *Engine) state(ch int) *channel {
	if !e.enabled.Load() || ch < 0 || ch >= len(e.channels) {
		return nil
	}
	return &e.channels[ch]
}

// Pressed reports whether ch is currently held.
func (e *Engine) Pressed(ch int) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if c := e.state(ch); c != nil {
		return c.pressed
	}
	return false
}

// Released reports whether ch is currently released.
func (e *Engine) Released(ch int) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if c := e.state(ch); c != nil {
		return c.released
	}
	return false
}

// PressedTime returns how long ch has been (or last was) held.
func (e *Engine) PressedTime(ch int) time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if c := e.state(ch); c != nil {
		return c.pressedTime()
	}
	return 0
}

// ReleasedTime returns how long ch has been (or last was) released.
func (e *Engine) ReleasedTime(ch int) time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if c := e.state(ch); c != nil {
		return c.releasedTime()
	}
	return 0
}

// RepeatCount returns the repeat count of the current press.
func (e *Engine) RepeatCount(ch int) uint32 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if c := e.state(ch); c != nil {
		return c.repeatCount
	}
	return 0
}

// Bitmask returns the pressed state of all channels, bit i for channel i.
func (e *Engine) Bitmask() uint32 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var mask uint32
	for i := range e.channels {
		if c := e.state(i); c != nil && c.pressed {
			mask |= 1 << uint(i)
		}
	}
	return mask
}

// PressedCount returns the number of channels currently held.
func (e *Engine) PressedCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n := 0
	for i := range e.channels {
		if c := e.state(i); c != nil && c.pressed {
			n++
		}
	}
	return n
}

// Snapshot returns a copy of every channel. When disabled, each entry only
// carries its name and timing.
func (e *Engine) Snapshot() []ChannelState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]ChannelState, len(e.channels))
	for i := range e.channels {
		out[i].Name = e.names[i]
		out[i].Timing = e.channels[i].timing
		c := e.state(i)
		if c == nil {
			continue
		}
		out[i].Pressed = c.pressed
		out[i].Released = c.released
		out[i].PressedTime = c.pressedTime()
		out[i].ReleasedTime = c.releasedTime()
		out[i].RepeatCount = c.repeatCount
		out[i].PressEdge = c.pressEdge
		out[i].ReleaseEdge = c.releaseEdge
		out[i].PressedSince = c.pressedSince
		out[i].ReleasedSince = c.releasedSince
	}
	return out
}

// SetRepeatTiming replaces the repeat thresholds of ch and restarts any
// repeat sequence in progress.
func (e *Engine) SetRepeatTiming(ch int, t Timing) error {
	if ch < 0 || ch >= len(e.channels) {
		return ErrOutOfRange
	}
	if !t.Valid() {
		return ErrInvalidTiming
	}
	e.mu.Lock()
	e.channels[ch].setTiming(t)
	e.mu.Unlock()
	return nil
}

// RepeatTiming returns the repeat thresholds of ch.
func (e *Engine) RepeatTiming(ch int) Timing {
	if ch < 0 || ch >= len(e.channels) {
		return Timing{}
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.channels[ch].timing
}

// Clear resets timestamps and edge flags on every channel.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.channels {
		e.channels[i].clear()
	}
}

// SetEnabled gates all queries. Stored state is never modified.
func (e *Engine) SetEnabled(enabled bool) {
	e.enabled.Store(enabled)
}

// Enabled reports whether queries are enabled.
func (e *Engine) Enabled() bool {
	return e.enabled.Load()
}

// SetThreshold sets the priority level above which listeners no longer
// receive new events. Events already latched are kept.
func (e *Engine) SetThreshold(level uint32) {
	e.threshold.Store(level)
}

// Threshold returns the current priority threshold.
func (e *Engine) Threshold() uint32 {
	return e.threshold.Load()
}

// TickPeriod returns the period Tick is expected to be called at.
func (e *Engine) TickPeriod() time.Duration {
	return e.period
}

// Channels returns the number of channels.
func (e *Engine) Channels() int {
	return len(e.channels)
}

// Name returns the label of ch, or "" if out of range.
func (e *Engine) Name(ch int) string {
	if ch < 0 || ch >= len(e.names) {
		return ""
	}
	return e.names[ch]
}

// Listeners returns the number of registered listeners.
func (e *Engine) Listeners() int {
	return e.registry.Len()
}

// Capacity returns the listener registry capacity.
func (e *Engine) Capacity() int {
	return e.registry.Cap()
}
