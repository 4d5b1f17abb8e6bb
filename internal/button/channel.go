package button

import "time"

// channel tracks press/release/repeat state for a single button.
type channel struct {
	pressed     bool
	pressEdge   bool
	released    bool
	releaseEdge bool

	// ticks since the last repeat threshold crossing or release
	tickCount   uint32
	repeatCount uint32
	repeatFired bool

	pressedSince  time.Time
	pressedUntil  time.Time
	releasedSince time.Time
	releasedUntil time.Time

	timing Timing
}

// transitions reports what happened to a channel during one advance.
type transitions struct {
	press   bool
	repeat  bool
	release bool
}

func (t transitions) any() bool {
	return t.press || t.repeat || t.release
}

func newChannel(timing Timing) channel {
	return channel{timing: timing}
}

// advance feeds one sampled level into the state machine.
func (c *channel) advance(level bool, now time.Time) transitions {
	var tr transitions

	if level {
		if !c.pressed {
			tr.press = true
			c.pressEdge = true
			c.pressedSince = now
		}
		c.pressed = true
		c.released = false
		c.tickCount++

		if c.tickCount >= c.timing.threshold(c.repeatCount) {
			c.tickCount = 0
			c.repeatCount++
			c.repeatFired = true
			tr.repeat = true
		}

		c.pressedUntil = now
		return tr
	}

	if c.pressed {
		tr.release = true
		c.releaseEdge = true
		c.releasedSince = now
	}
	c.pressed = false
	c.released = true
	c.tickCount = 0
	c.repeatCount = 0
	c.repeatFired = false
	c.releasedUntil = now

	return tr
}

// setTiming replaces the thresholds and restarts any in-flight repeat.
func (c *channel) setTiming(t Timing) {
	c.timing = t
	c.tickCount = 0
	c.repeatCount = 0
	c.repeatFired = false
}

// clear resets timestamps and pending edges. Level state is kept.
func (c *channel) clear() {
	c.pressedSince = time.Time{}
	c.pressedUntil = time.Time{}
	c.releasedSince = time.Time{}
	c.releasedUntil = time.Time{}
	c.pressEdge = false
	c.releaseEdge = false
}

func (c *channel) pressedTime() time.Duration {
	return c.pressedUntil.Sub(c.pressedSince)
}

func (c *channel) releasedTime() time.Duration {
	return c.releasedUntil.Sub(c.releasedSince)
}
