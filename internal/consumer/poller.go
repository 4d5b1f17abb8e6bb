// Package consumer drains a button listener at its own pace and hands the
// events to a sink. Each Poller owns exactly one listener.
package consumer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/buttond/internal/button"
)

// Source is the part of button.Engine a Poller needs.
type Source interface {
	Register(l *button.Listener, level uint32) error
	Unregister(l *button.Listener) error
	ConsumePressed(l *button.Listener, ch int) bool
	ConsumeReleased(l *button.Listener, ch int) bool
	ConsumeRepeat(l *button.Listener, ch int) uint32
	ClearAll(l *button.Listener) error
	PressedTime(ch int) time.Duration
	Channels() int
	Name(ch int) string
}

// Sink receives drained events in order.
type Sink func(button.Event)

// Poller is one independent consumer of button events.
type Poller struct {
	name     string
	source   Source
	level    uint32
	sink     Sink
	now      func() time.Time
	logger   *zap.SugaredLogger
	listener button.Listener
}

// New creates a poller that registers at the given priority level.
func New(name string, source Source, level uint32, sink Sink, logger *zap.SugaredLogger) *Poller {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Poller{
		name:   name,
		source: source,
		level:  level,
		sink:   sink,
		now:    time.Now,
		logger: logger,
	}
}

// Name returns the poller's name.
func (p *Poller) Name() string {
	return p.name
}

// Level returns the priority level the poller registers with.
func (p *Poller) Level() uint32 {
	return p.level
}

// Start registers the poller's listener.
func (p *Poller) Start() error {
	if err := p.source.Register(&p.listener, p.level); err != nil {
		return fmt.Errorf("register %s listener: %w", p.name, err)
	}
	p.logger.Infow("listener registered", "consumer", p.name, "level", p.level, "slot", p.listener.Slot())
	return nil
}

// Stop unregisters the poller's listener.
func (p *Poller) Stop() error {
	if err := p.source.Unregister(&p.listener); err != nil {
		return fmt.Errorf("unregister %s listener: %w", p.name, err)
	}
	p.logger.Infow("listener unregistered", "consumer", p.name)
	return nil
}

// Resync drops everything latched so far, e.g. after a mode change.
func (p *Poller) Resync() error {
	return p.source.ClearAll(&p.listener)
}

// Poll drains every channel once, in the order pressed, repeat, released,
// and passes each event to the sink. The drained events are returned.
func (p *Poller) Poll() []button.Event {
	now := p.now()
	var events []button.Event
	for ch := 0; ch < p.source.Channels(); ch++ {
		name := p.source.Name(ch)
		if p.source.ConsumePressed(&p.listener, ch) {
			events = append(events, button.Event{Channel: ch, Name: name, Kind: button.KindPressed, Time: now})
		}
		if n := p.source.ConsumeRepeat(&p.listener, ch); n > 0 {
			events = append(events, button.Event{Channel: ch, Name: name, Kind: button.KindRepeat, Repeat: n, Time: now})
		}
		if p.source.ConsumeReleased(&p.listener, ch) {
			events = append(events, button.Event{
				Channel: ch,
				Name:    name,
				Kind:    button.KindReleased,
				Held:    p.source.PressedTime(ch),
				Time:    now,
			})
		}
	}
	if p.sink != nil {
		for _, ev := range events {
			p.sink(ev)
		}
	}
	return events
}

// Run registers the listener, polls every interval until ctx is cancelled
// and unregisters on return.
func (p *Poller) Run(ctx context.Context, interval time.Duration) error {
	if err := p.Start(); err != nil {
		return err
	}
	defer func() {
		if err := p.Stop(); err != nil {
			p.logger.Warnw("stop consumer", "consumer", p.name, "error", err)
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.Poll()
		}
	}
}
