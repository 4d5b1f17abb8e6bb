package gpio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFakeReaderRead(t *testing.T) {
	f := NewFakeReader([][]bool{
		{true, false},
		{false, true},
	})
	assert.Equal(t, 2, f.Channels())

	// first pass
	v, err := f.Read(0)
	require.NoError(t, err)
	assert.True(t, v)
	v, _ = f.Read(1)
	assert.False(t, v)

	// second pass
	v, _ = f.Read(0)
	assert.False(t, v)
	v, _ = f.Read(1)
	assert.True(t, v)

	// last sample repeats
	v, _ = f.Read(0)
	assert.False(t, v)
	v, _ = f.Read(1)
	assert.True(t, v)
	assert.Equal(t, 6, f.Reads)
}

func TestFakeReaderOutOfRange(t *testing.T) {
	f := NewFakeReader([][]bool{{true}})
	_, err := f.Read(1)
	assert.Error(t, err)
	_, err = f.Read(-1)
	assert.Error(t, err)
}

func TestFakeReaderNoSamples(t *testing.T) {
	f := NewFakeReader(nil)
	_, err := f.Read(0)
	assert.Error(t, err)
	assert.Equal(t, 0, f.Channels())
}

func TestFakeReaderError(t *testing.T) {
	f := NewFakeReader([][]bool{{true}})
	f.ReadError = errors.New("simulated error")
	_, err := f.Read(0)
	assert.EqualError(t, err, "simulated error")
}

func TestFakeReaderCloseAndReset(t *testing.T) {
	f := NewFakeReader([][]bool{{true}, {false}})
	f.Read(0)
	require.NoError(t, f.Close())
	assert.True(t, f.Closed)

	f.Reset()
	assert.False(t, f.Closed)
	v, _ := f.Read(0)
	assert.True(t, v, "reset rewinds to the first sample")
}

func TestPinLogical(t *testing.T) {
	assert.True(t, Pin{ActiveLow: true}.logical(false))
	assert.False(t, Pin{ActiveLow: true}.logical(true))
	assert.True(t, Pin{}.logical(true))
}

func TestSamplerLogsOncePerOutage(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	f := NewFakeReader([][]bool{{true}})
	s := NewSampler(f, zap.New(core).Sugar())

	assert.True(t, s.Sample(0))

	f.ReadError = errors.New("line gone")
	assert.False(t, s.Sample(0))
	assert.False(t, s.Sample(0))
	assert.Equal(t, 1, logs.FilterMessage("gpio read error").Len())

	f.ReadError = nil
	assert.True(t, s.Sample(0))
	assert.Equal(t, 1, logs.FilterMessage("gpio read recovered").Len())
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open("sysfs", "", nil)
	assert.Error(t, err)
}
