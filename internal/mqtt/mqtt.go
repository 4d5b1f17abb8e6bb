// Package mqtt publishes button and system events to an MQTT broker.
package mqtt

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/sweeney/buttond/internal/button"
)

// DefaultTopic is the topic button events are published to.
const DefaultTopic = "buttond/events"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a button event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event button.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (STARTUP, SHUTDOWN,
// HEARTBEAT, RECONNECTED, OFFLINE).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string
	Reason     string // e.g. "SIGTERM", "MQTT_DISCONNECT"
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool
}

// SystemTopic returns the system topic that sits next to the event topic:
// "buttond/events" becomes "buttond/system".
func SystemTopic(topic string) string {
	i := strings.LastIndex(topic, "/")
	if i < 0 {
		return topic + "/system"
	}
	return topic[:i] + "/system"
}

// Payload is the MQTT message payload for a button event.
type Payload struct {
	Button ButtonPayload `json:"button"`
}

// ButtonPayload contains the button event details.
type ButtonPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Channel   int    `json:"channel"`
	Name      string `json:"name"`
	Repeat    uint32 `json:"repeat,omitempty"`
	HeldMs    *int64 `json:"held_ms,omitempty"`
}

// FormatPayload creates the JSON payload for a button event. Releases
// always carry held_ms, repeats carry their count.
func FormatPayload(event button.Event) ([]byte, error) {
	p := ButtonPayload{
		Timestamp: event.Time.UTC().Format(time.RFC3339),
		Event:     event.Kind.String(),
		Channel:   event.Channel,
		Name:      event.Name,
	}
	switch event.Kind {
	case button.KindRepeat:
		p.Repeat = event.Repeat
	case button.KindReleased:
		held := event.Held.Milliseconds()
		p.HeldMs = &held
	}
	return json.Marshal(Payload{Button: p})
}

// SystemPayload is the payload for simple system events (will,
// RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	return json.Marshal(SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	})
}
