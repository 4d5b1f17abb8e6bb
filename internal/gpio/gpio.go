// Package gpio provides button input reading with hardware abstraction.
// The real implementations use the Linux GPIO character device or the
// BCM2835 register map. The fake implementation allows testing without
// hardware.
package gpio

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Reader reads button levels.
type Reader interface {
	// Read returns the logical level of channel ch: true means pressed.
	// Active-low pins are already inverted.
	Read(ch int) (bool, error)

	// Channels returns the number of channels the reader serves.
	Channels() int

	// Close releases GPIO resources.
	Close() error
}

// Pin describes one button input (BCM numbering).
type Pin struct {
	Name      string
	Number    int
	ActiveLow bool
}

// logical converts a raw line value to a pressed level.
func (p Pin) logical(raw bool) bool {
	if p.ActiveLow {
		return !raw
	}
	return raw
}

// Sampler adapts a Reader to button.Sampler. Read errors are logged once per
// outage and read as not pressed.
type Sampler struct {
	reader Reader
	logger *zap.SugaredLogger

	mu      sync.Mutex
	failing map[int]bool
}

// NewSampler wraps r.
func NewSampler(r Reader, logger *zap.SugaredLogger) *Sampler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Sampler{
		reader:  r,
		logger:  logger,
		failing: make(map[int]bool),
	}
}

// Sample implements button.Sampler.
func (s *Sampler) Sample(ch int) bool {
	level, err := s.reader.Read(ch)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if !s.failing[ch] {
			s.logger.Warnw("gpio read error", "channel", ch, "error", err)
			s.failing[ch] = true
		}
		return false
	}
	if s.failing[ch] {
		s.logger.Infow("gpio read recovered", "channel", ch)
		delete(s.failing, ch)
	}
	return level
}

// Open returns a Reader for the named backend ("cdev" or "rpio").
func Open(backend, chip string, pins []Pin) (Reader, error) {
	switch backend {
	case "cdev":
		r, err := NewRealReader(chip, pins)
		if err != nil {
			return nil, err
		}
		return r, nil
	case "rpio":
		r, err := NewRpioReader(pins)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("gpio: unknown backend %q", backend)
	}
}

func checkChannel(ch, n int) error {
	if ch < 0 || ch >= n {
		return fmt.Errorf("gpio: channel %d out of range", ch)
	}
	return nil
}
