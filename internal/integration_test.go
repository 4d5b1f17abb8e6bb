package internal

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/buttond/internal/button"
	"github.com/sweeney/buttond/internal/consumer"
	"github.com/sweeney/buttond/internal/gpio"
	"github.com/sweeney/buttond/internal/mqtt"
	"github.com/sweeney/buttond/internal/status"
)

type pipeline struct {
	engine    *button.Engine
	reader    *gpio.FakeReader
	publisher *mqtt.FakePublisher
	tracker   *status.Tracker
	bridge    *consumer.Poller
	history   *consumer.Poller
}

func newPipeline(t *testing.T, samples [][]bool, timing button.Timing) *pipeline {
	t.Helper()
	startTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	clock := func() time.Time {
		now := startTime.Add(time.Duration(n) * 10 * time.Millisecond)
		n++
		return now
	}

	p := &pipeline{
		reader:    gpio.NewFakeReader(samples),
		publisher: mqtt.NewFakePublisher(),
		tracker:   status.NewTracker(startTime, status.Config{}, 20),
	}
	var err error
	p.engine, err = button.New(button.Config{
		Channels:   len(samples[0]),
		Names:      []string{"UP", "DOWN"},
		Listeners:  2,
		TickPeriod: 10 * time.Millisecond,
		Timing:     timing,
		Threshold:  5,
	}, gpio.NewSampler(p.reader, nil), clock, nil)
	require.NoError(t, err)

	p.bridge = consumer.New("mqtt", p.engine, 1, func(ev button.Event) {
		require.NoError(t, p.publisher.Publish(ev))
	}, nil)
	p.history = consumer.New("status", p.engine, 4, p.tracker.Record, nil)
	require.NoError(t, p.bridge.Start())
	require.NoError(t, p.history.Start())
	return p
}

// step ticks the engine once and lets both consumers drain.
func (p *pipeline) step() {
	p.tracker.Count(p.engine.Tick())
	p.bridge.Poll()
	p.history.Poll()
}

func TestIntegrationFullFlow(t *testing.T) {
	// UP held for 6 ticks then released; DOWN tapped later.
	samples := [][]bool{
		{true, false},
		{true, false},
		{true, false}, // repeat 1 (detect 3)
		{true, false},
		{true, false}, // repeat 2 (delay 2)
		{true, false},
		{false, false},
		{false, true},
		{false, false},
	}
	p := newPipeline(t, samples, button.Timing{Detect: 3, Delay: 2, Interval: 1})
	for range samples {
		p.step()
	}

	var got []string
	for _, ev := range p.publisher.Events {
		got = append(got, ev.Name+" "+ev.Kind.String())
	}
	assert.Equal(t, []string{
		"UP PRESSED",
		"UP REPEAT",
		"UP REPEAT",
		"UP REPEAT",
		"UP RELEASED",
		"DOWN PRESSED",
		"DOWN RELEASED",
	}, got)
	assert.Equal(t, uint32(3), p.publisher.Events[3].Repeat)
	assert.Equal(t, 50*time.Millisecond, p.publisher.Events[4].Held)

	assert.Equal(t, status.Counts{Pressed: 2, Released: 2, Repeat: 3}, p.tracker.Snapshot().Counts)
	assert.Len(t, p.tracker.Snapshot().Recent, 7, "history consumer sees the same stream")
	assert.Equal(t, uint32(0), p.engine.Bitmask())
}

func TestIntegrationThresholdIsolatesConsumers(t *testing.T) {
	samples := [][]bool{{true, false}, {false, false}, {true, false}, {false, false}}
	p := newPipeline(t, samples, button.DefaultTiming())

	p.step()
	p.step()
	p.engine.SetThreshold(2) // history (level 4) drops out
	p.step()
	p.step()

	assert.Equal(t, 4, p.publisher.EventCount())
	assert.Len(t, p.tracker.Snapshot().Recent, 2)
	assert.Equal(t, 4, p.tracker.Snapshot().Counts.Total(), "counts come from the engine, not a listener")
}

func TestIntegrationDisabledEngineDeliversNothing(t *testing.T) {
	samples := [][]bool{{true, true}, {false, false}}
	p := newPipeline(t, samples, button.DefaultTiming())

	p.engine.SetEnabled(false)
	p.step()
	assert.Empty(t, p.publisher.Events)
	assert.Zero(t, p.engine.Bitmask())

	p.engine.SetEnabled(true)
	p.step()
	// Latches filled while disabled are reported once queries are enabled again.
	p.bridge.Poll()
	require.Len(t, p.publisher.Events, 4)
}

func TestIntegrationPayloadFormat(t *testing.T) {
	samples := [][]bool{{false, true}, {false, true}, {false, false}}
	p := newPipeline(t, samples, button.DefaultTiming())
	for range samples {
		p.step()
	}

	require.Len(t, p.publisher.Payloads, 2)
	var parsed mqtt.Payload
	require.NoError(t, json.Unmarshal(p.publisher.Payloads[1], &parsed))
	assert.Equal(t, "RELEASED", parsed.Button.Event)
	assert.Equal(t, 1, parsed.Button.Channel)
	assert.Equal(t, "DOWN", parsed.Button.Name)
	require.NotNil(t, parsed.Button.HeldMs)
	assert.Equal(t, int64(10), *parsed.Button.HeldMs)
}

func TestIntegrationListenerChurn(t *testing.T) {
	samples := [][]bool{{true, false}, {false, false}}
	p := newPipeline(t, samples, button.DefaultTiming())

	require.NoError(t, p.history.Stop())
	late := consumer.New("late", p.engine, 0, nil, nil)
	require.NoError(t, late.Start())

	p.step()
	p.step()
	assert.Len(t, late.Poll(), 2, "a listener in a reused slot gets its own latches")
	assert.Len(t, p.tracker.Snapshot().Recent, 0, "stopped consumer receives nothing")
	assert.Equal(t, 2, p.publisher.EventCount())
}
