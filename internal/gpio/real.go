//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads buttons through the Linux GPIO character device.
type RealReader struct {
	chip  *gpiocdev.Chip
	pins  []Pin
	lines []*gpiocdev.Line
}

// NewRealReader requests every pin as an input on the given chip.
// Active-low pins get a pull-up, the rest a pull-down.
func NewRealReader(chipName string, pins []Pin) (*RealReader, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	r := &RealReader{chip: chip, pins: pins}
	for _, p := range pins {
		bias := gpiocdev.WithPullDown
		if p.ActiveLow {
			bias = gpiocdev.WithPullUp
		}
		line, err := chip.RequestLine(p.Number, gpiocdev.AsInput, bias)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request %s pin %d: %w", p.Name, p.Number, err)
		}
		r.lines = append(r.lines, line)
	}
	return r, nil
}

// Read returns the logical level of ch.
func (r *RealReader) Read(ch int) (bool, error) {
	if err := checkChannel(ch, len(r.lines)); err != nil {
		return false, err
	}
	raw, err := r.lines[ch].Value()
	if err != nil {
		return false, fmt.Errorf("read %s pin: %w", r.pins[ch].Name, err)
	}
	return r.pins[ch].logical(raw == 1), nil
}

// Channels returns the number of requested lines.
func (r *RealReader) Channels() int {
	return len(r.lines)
}

// Close releases GPIO resources.
// Reconfigures pins to input with pull-down (matching Pi boot defaults) before
// closing to ensure clean state for system shutdown/reboot.
func (r *RealReader) Close() error {
	var errs []error

	for i, line := range r.lines {
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", r.pins[i].Name, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", r.pins[i].Name, err))
		}
	}
	r.lines = nil

	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		r.chip = nil
	}

	return errors.Join(errs...)
}
