// Package status provides a thread-safe status tracker for the buttond daemon.
// It is read by the HTTP handlers and the heartbeat publisher.
package status

import (
	"sync"
	"time"

	"github.com/gammazero/deque"

	"github.com/sweeney/buttond/internal/button"
)

// NetworkInfo contains network state as written by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// ButtonInfo describes a configured button for display.
type ButtonInfo struct {
	Name      string
	Pin       int
	ActiveLow bool
}

// Config contains daemon configuration for display.
type Config struct {
	TickMs      int64
	HeartbeatMs int64
	Broker      string
	Topic       string
	HTTPAddr    string
	Backend     string
	Capacity    int
	Buttons     []ButtonInfo
}

// Counts tallies fired events per kind.
type Counts struct {
	Pressed  int
	Released int
	Repeat   int
}

// Add counts one event.
func (c *Counts) Add(kind button.Kind) {
	switch kind {
	case button.KindPressed:
		c.Pressed++
	case button.KindReleased:
		c.Released++
	case button.KindRepeat:
		c.Repeat++
	}
}

// Total returns the sum over all kinds.
func (c Counts) Total() int {
	return c.Pressed + c.Released + c.Repeat
}

// Engine is the part of button.Engine the tracker mirrors.
type Engine interface {
	Snapshot() []button.ChannelState
	Bitmask() uint32
	Enabled() bool
	Threshold() uint32
	Listeners() int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Channels      []button.ChannelState
	Bitmask       uint32
	Enabled       bool
	Threshold     uint32
	Listeners     int
	Counts        Counts
	Recent        []button.Event // oldest first
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Pin returns the configured pin of channel ch, or -1.
func (s Snapshot) Pin(ch int) int {
	if ch < 0 || ch >= len(s.Config.Buttons) {
		return -1
	}
	return s.Config.Buttons[ch].Pin
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu         sync.RWMutex
	snap       Snapshot
	history    deque.Deque[button.Event]
	historyCap int
	lastBeat   time.Time
	now        func() time.Time
}

// NewTracker creates a Tracker with the given start time and config. At
// most history recent events are kept.
func NewTracker(startTime time.Time, cfg Config, history int) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		historyCap: history,
		lastBeat:   startTime,
		now:        time.Now,
	}
}

// Refresh copies the current engine state. Called from runLoop on every tick.
func (t *Tracker) Refresh(e Engine) {
	channels := e.Snapshot()
	bitmask := e.Bitmask()
	enabled := e.Enabled()
	threshold := e.Threshold()
	listeners := e.Listeners()

	t.mu.Lock()
	t.snap.Channels = channels
	t.snap.Bitmask = bitmask
	t.snap.Enabled = enabled
	t.snap.Threshold = threshold
	t.snap.Listeners = listeners
	t.mu.Unlock()
}

// Count adds fired events to the per-kind counters.
func (t *Tracker) Count(events []button.Event) {
	if len(events) == 0 {
		return
	}
	t.mu.Lock()
	for _, ev := range events {
		t.snap.Counts.Add(ev.Kind)
	}
	t.mu.Unlock()
}

// Record appends an event to the recent history, dropping the oldest
// once the history is full.
func (t *Tracker) Record(ev button.Event) {
	if t.historyCap <= 0 {
		return
	}
	t.mu.Lock()
	if t.history.Len() >= t.historyCap {
		t.history.PopFront()
	}
	t.history.PushBack(ev)
	t.mu.Unlock()
}

// CheckHeartbeat reports whether interval has passed since the last
// heartbeat (or start) and, if so, marks now as the last heartbeat.
// A non-positive interval disables heartbeats.
func (t *Tracker) CheckHeartbeat(now time.Time, interval time.Duration) bool {
	if interval <= 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if now.Sub(t.lastBeat) < interval {
		return false
	}
	t.lastBeat = now
	return true
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Channels = append([]button.ChannelState(nil), t.snap.Channels...)
	s.Recent = make([]button.Event, t.history.Len())
	for i := range s.Recent {
		s.Recent[i] = t.history.At(i)
	}
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
