package consumer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/buttond/internal/button"
)

type levels struct {
	mu sync.Mutex
	v  []bool
}

func (l *levels) Sample(ch int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.v[ch]
}

func (l *levels) set(ch int, v bool) {
	l.mu.Lock()
	l.v[ch] = v
	l.mu.Unlock()
}

func newEngine(t *testing.T, channels int) (*button.Engine, *levels) {
	t.Helper()
	lv := &levels{v: make([]bool, channels)}
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		n++
		return start.Add(time.Duration(n) * 10 * time.Millisecond)
	}
	e, err := button.New(button.Config{
		Channels:   channels,
		Names:      []string{"UP", "DOWN"},
		Listeners:  2,
		TickPeriod: 10 * time.Millisecond,
		Timing:     button.Timing{Detect: 2, Delay: 3, Interval: 1},
		Threshold:  5,
	}, lv, clock, nil)
	require.NoError(t, err)
	return e, lv
}

type recorder struct {
	mu     sync.Mutex
	events []button.Event
}

func (r *recorder) sink(ev button.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestPollDrainsInOrder(t *testing.T) {
	e, lv := newEngine(t, 2)
	var rec recorder
	p := New("test", e, 1, rec.sink, nil)
	require.NoError(t, p.Start())

	lv.set(1, true)
	e.Tick()
	e.Tick() // repeat 1
	lv.set(1, false)
	e.Tick()

	events := p.Poll()
	require.Len(t, events, 3)
	assert.Equal(t, button.KindPressed, events[0].Kind)
	assert.Equal(t, button.KindRepeat, events[1].Kind)
	assert.Equal(t, uint32(1), events[1].Repeat)
	assert.Equal(t, button.KindReleased, events[2].Kind)
	assert.Equal(t, 10*time.Millisecond, events[2].Held)
	for _, ev := range events {
		assert.Equal(t, 1, ev.Channel)
		assert.Equal(t, "DOWN", ev.Name)
	}
	assert.Equal(t, events, rec.events)

	assert.Empty(t, p.Poll(), "latches were consumed")
}

func TestIndependentPollers(t *testing.T) {
	e, lv := newEngine(t, 1)
	a := New("a", e, 1, nil, nil)
	b := New("b", e, 1, nil, nil)
	require.NoError(t, a.Start())
	require.NoError(t, b.Start())

	lv.set(0, true)
	e.Tick()

	assert.Len(t, a.Poll(), 1)
	assert.Len(t, b.Poll(), 1, "a's consume does not affect b")
}

func TestPollerAboveThreshold(t *testing.T) {
	e, lv := newEngine(t, 1)
	e.SetThreshold(2)
	low := New("low", e, 1, nil, nil)
	high := New("high", e, 3, nil, nil)
	require.NoError(t, low.Start())
	require.NoError(t, high.Start())

	lv.set(0, true)
	e.Tick()
	assert.Len(t, low.Poll(), 1)
	assert.Empty(t, high.Poll())
}

func TestStartRegistryFull(t *testing.T) {
	e, _ := newEngine(t, 1)
	require.NoError(t, New("a", e, 0, nil, nil).Start())
	require.NoError(t, New("b", e, 0, nil, nil).Start())
	err := New("c", e, 0, nil, nil).Start()
	assert.ErrorIs(t, err, button.ErrRegistryFull)
}

func TestStopAndResync(t *testing.T) {
	e, lv := newEngine(t, 1)
	p := New("p", e, 0, nil, nil)
	require.NoError(t, p.Start())

	lv.set(0, true)
	e.Tick()
	require.NoError(t, p.Resync())
	assert.Empty(t, p.Poll())

	require.NoError(t, p.Stop())
	assert.Error(t, p.Stop())
	assert.Error(t, p.Resync())
	assert.Equal(t, 0, e.Listeners())
}

func TestRunUntilCancelled(t *testing.T) {
	e, lv := newEngine(t, 1)
	var rec recorder
	p := New("run", e, 0, rec.sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, time.Millisecond) }()

	require.Eventually(t, func() bool { return e.Listeners() == 1 }, time.Second, time.Millisecond)
	lv.set(0, true)
	e.Tick()
	require.Eventually(t, func() bool { return rec.len() == 1 }, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 0, e.Listeners())
	assert.Equal(t, "run", p.Name())
	assert.Equal(t, uint32(0), p.Level())
}
