package gpio

import "errors"

// FakeReader is a test double that returns scripted levels.
type FakeReader struct {
	// Samples contains one scripted level per channel per tick.
	// Reading the last channel advances to the next sample; once samples
	// are exhausted the last one repeats.
	Samples [][]bool

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error

	// Reads counts calls to Read.
	Reads int
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples [][]bool) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read returns the scripted level of ch for the current sample.
func (f *FakeReader) Read(ch int) (bool, error) {
	f.Reads++
	if f.ReadError != nil {
		return false, f.ReadError
	}
	if len(f.Samples) == 0 {
		return false, errors.New("no samples configured")
	}
	sample := f.Samples[f.index]
	if err := checkChannel(ch, len(sample)); err != nil {
		return false, err
	}
	if ch == len(sample)-1 && f.index < len(f.Samples)-1 {
		f.index++
	}
	return sample[ch], nil
}

// Channels returns the width of the first sample.
func (f *FakeReader) Channels() int {
	if len(f.Samples) == 0 {
		return 0
	}
	return len(f.Samples[0])
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the reader to the beginning of samples.
func (f *FakeReader) Reset() {
	f.index = 0
	f.Closed = false
	f.Reads = 0
}
