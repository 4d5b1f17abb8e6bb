//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealReader is not available on non-Linux platforms.
type RealReader struct{}

// NewRealReader returns an error on non-Linux platforms.
func NewRealReader(chip string, pins []Pin) (*RealReader, error) {
	return nil, errUnsupported
}

// Read is not implemented on non-Linux platforms.
func (r *RealReader) Read(ch int) (bool, error) {
	return false, errUnsupported
}

// Channels always returns 0 on non-Linux platforms.
func (r *RealReader) Channels() int {
	return 0
}

// Close is not implemented on non-Linux platforms.
func (r *RealReader) Close() error {
	return nil
}

// RpioReader is not available on non-Linux platforms.
type RpioReader struct{}

// NewRpioReader returns an error on non-Linux platforms.
func NewRpioReader(pins []Pin) (*RpioReader, error) {
	return nil, errUnsupported
}

// Read is not implemented on non-Linux platforms.
func (r *RpioReader) Read(ch int) (bool, error) {
	return false, errUnsupported
}

// Channels always returns 0 on non-Linux platforms.
func (r *RpioReader) Channels() int {
	return 0
}

// Close is not implemented on non-Linux platforms.
func (r *RpioReader) Close() error {
	return nil
}
