package mqtt

import (
	"github.com/gammazero/deque"
	"go.uber.org/zap"
)

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// buffer is a bounded FIFO holding messages while disconnected. When full
// the oldest message is dropped. Not safe for concurrent use.
type buffer struct {
	q        deque.Deque[bufferedMsg]
	capacity int
	overflow bool // a message was dropped since the last drain
	dropped  int
	logger   *zap.SugaredLogger
}

func newBuffer(capacity int, logger *zap.SugaredLogger) *buffer {
	return &buffer{capacity: capacity, logger: logger}
}

func (b *buffer) push(msg bufferedMsg) {
	if b.capacity <= 0 {
		b.dropped++
		return
	}
	if b.q.Len() >= b.capacity {
		if !b.overflow {
			b.logger.Warnw("mqtt buffer full, dropping oldest", "capacity", b.capacity)
			b.overflow = true
		}
		b.q.PopFront()
		b.dropped++
	}
	b.q.PushBack(msg)
}

// drainAll removes and returns every buffered message, oldest first.
func (b *buffer) drainAll() []bufferedMsg {
	if b.q.Len() == 0 {
		return nil
	}
	out := make([]bufferedMsg, 0, b.q.Len())
	for b.q.Len() > 0 {
		out = append(out, b.q.PopFront())
	}
	b.overflow = false
	return out
}

func (b *buffer) len() int {
	return b.q.Len()
}
