//go:build linux

package gpio

import (
	"fmt"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"
)

// rpioMu serializes Open and Close of the process-wide register mapping.
var rpioMu sync.Mutex

// RpioReader reads buttons through the memory-mapped BCM2835 registers.
// Useful on older kernels without the GPIO character device.
type RpioReader struct {
	pins []Pin
	io   []rpio.Pin
}

// NewRpioReader maps /dev/gpiomem and configures every pin as an input.
func NewRpioReader(pins []Pin) (*RpioReader, error) {
	rpioMu.Lock()
	defer rpioMu.Unlock()

	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open rpio: %w", err)
	}

	r := &RpioReader{pins: pins}
	for _, p := range pins {
		pin := rpio.Pin(p.Number)
		pin.Input()
		if p.ActiveLow {
			pin.PullUp()
		} else {
			pin.PullDown()
		}
		r.io = append(r.io, pin)
	}
	return r, nil
}

// Read returns the logical level of ch.
func (r *RpioReader) Read(ch int) (bool, error) {
	if err := checkChannel(ch, len(r.io)); err != nil {
		return false, err
	}
	return r.pins[ch].logical(r.io[ch].Read() == rpio.High), nil
}

// Channels returns the number of configured pins.
func (r *RpioReader) Channels() int {
	return len(r.io)
}

// Close restores pull-downs and unmaps the registers.
func (r *RpioReader) Close() error {
	rpioMu.Lock()
	defer rpioMu.Unlock()

	for _, pin := range r.io {
		pin.PullDown()
	}
	r.io = nil
	if err := rpio.Close(); err != nil {
		return fmt.Errorf("close rpio: %w", err)
	}
	return nil
}
