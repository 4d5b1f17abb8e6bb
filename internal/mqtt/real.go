package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/buttond/internal/button"
)

const publishTimeout = 5 * time.Second

var errPublishTimeout = errors.New("publish timeout")

// Options configures a RealPublisher.
type Options struct {
	Broker   string
	ClientID string
	Topic    string
	// Buffer is the number of messages held while the broker is unreachable.
	Buffer int
}

// client is the subset of paho.Client the publisher uses.
type client interface {
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed in order on reconnect.
type RealPublisher struct {
	client      client
	topic       string
	systemTopic string
	logger      *zap.SugaredLogger
	now         func() time.Time

	mu        sync.Mutex // guards buf, connected; held while replaying
	buf       *buffer
	connected bool // true after the first successful connect
}

// NewRealPublisher creates a publisher for the given broker. It connects in
// the background and keeps retrying, so it never fails at startup.
func NewRealPublisher(opts Options, logger *zap.SugaredLogger) *RealPublisher {
	if opts.Topic == "" {
		opts.Topic = DefaultTopic
	}
	p := newPublisher(opts, logger, time.Now)

	will, _ := FormatSystemPayload(SystemEvent{
		Timestamp: p.now(),
		Event:     "OFFLINE",
		Reason:    "MQTT_DISCONNECT",
	})
	co := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(p.systemTopic, will, 1, true).
		SetOnConnectHandler(func(paho.Client) { p.onConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.logger.Warnw("mqtt connection lost", "error", err)
		})

	c := paho.NewClient(co)
	p.client = c
	c.Connect()
	p.logger.Infow("mqtt connecting", "broker", opts.Broker, "topic", p.topic)
	return p
}

func newPublisher(opts Options, logger *zap.SugaredLogger, now func() time.Time) *RealPublisher {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &RealPublisher{
		topic:       opts.Topic,
		systemTopic: SystemTopic(opts.Topic),
		logger:      logger,
		now:         now,
		buf:         newBuffer(opts.Buffer, logger),
	}
}

// onConnect replays buffered messages. Every connect after the first also
// announces RECONNECTED ahead of the replay.
func (p *RealPublisher) onConnect() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.connected {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: p.now(), Event: "RECONNECTED"})
		if err := p.send(p.systemTopic, 1, false, payload); err != nil {
			p.logger.Warnw("publish reconnected", "error", err)
		}
	}
	p.connected = true

	msgs := p.buf.drainAll()
	if len(msgs) > 0 {
		p.logger.Infow("mqtt replaying buffered messages", "count", len(msgs), "dropped", p.buf.dropped)
		p.buf.dropped = 0
	}
	for i, m := range msgs {
		if err := p.send(m.topic, m.qos, m.retained, m.payload); err != nil {
			p.logger.Warnw("replay failed, rebuffering", "error", err)
			for _, rest := range msgs[i:] {
				p.buf.push(rest)
			}
			return
		}
	}
}

func (p *RealPublisher) send(topic string, qos byte, retained bool, payload []byte) error {
	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return errPublishTimeout
	}
	return token.Error()
}

func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.client.IsConnectionOpen() {
		p.buf.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		return nil
	}
	return p.send(topic, qos, retained, payload)
}

// Publish sends a button event at QoS 0, not retained.
func (p *RealPublisher) Publish(event button.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	if err := p.publish(p.topic, 0, false, payload); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// PublishSystem sends a system event at QoS 1.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	if err := p.publish(p.systemTopic, 1, event.Retained, payload); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}
	return nil
}

// IsConnected reports whether the broker connection is open.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
