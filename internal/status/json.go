package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Enabled       bool          `json:"enabled"`
	Threshold     uint32        `json:"threshold_level"`
	Listeners     ListenersJSON `json:"listeners"`
	Bitmask       uint32        `json:"bitmask"`
	Channels      []ChannelJSON `json:"channels"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Counts        CountsJSON    `json:"event_counts"`
	Recent        []EventJSON   `json:"recent,omitempty"`
	Network       *NetworkJSON  `json:"network,omitempty"`
	Config        ConfigJSON    `json:"config"`
}

// ListenersJSON reports registry occupancy.
type ListenersJSON struct {
	Live     int `json:"live"`
	Capacity int `json:"capacity"`
}

// ChannelJSON is the JSON representation of one button.
type ChannelJSON struct {
	Index      int        `json:"index"`
	Name       string     `json:"name"`
	Pin        int        `json:"pin"`
	Pressed    bool       `json:"pressed"`
	HeldMs     int64      `json:"held_ms"`
	ReleasedMs int64      `json:"released_ms"`
	Repeat     uint32     `json:"repeat"`
	Timing     TimingJSON `json:"timing"`
}

// TimingJSON is the repeat timing in ticks.
type TimingJSON struct {
	Detect   uint32 `json:"detect_ticks"`
	Delay    uint32 `json:"delay_ticks"`
	Interval uint32 `json:"interval_ticks"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
	Topic     string `json:"topic,omitempty"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Pressed  int `json:"pressed"`
	Released int `json:"released"`
	Repeat   int `json:"repeat"`
}

// EventJSON is one entry of the recent-event history.
type EventJSON struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Channel   int    `json:"channel"`
	Name      string `json:"name"`
	Repeat    uint32 `json:"repeat,omitempty"`
	HeldMs    int64  `json:"held_ms,omitempty"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	TickMs      int64  `json:"tick_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Backend     string `json:"gpio_backend"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Enabled:       snap.Enabled,
		Threshold:     snap.Threshold,
		Listeners:     ListenersJSON{Live: snap.Listeners, Capacity: snap.Config.Capacity},
		Bitmask:       snap.Bitmask,
		Channels:      make([]ChannelJSON, len(snap.Channels)),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker, Topic: snap.Config.Topic},
		Counts: CountsJSON{
			Pressed:  snap.Counts.Pressed,
			Released: snap.Counts.Released,
			Repeat:   snap.Counts.Repeat,
		},
		Config: ConfigJSON{
			TickMs:      snap.Config.TickMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Backend:     snap.Config.Backend,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}
	for i, c := range snap.Channels {
		inner.Channels[i] = ChannelJSON{
			Index:      i,
			Name:       c.Name,
			Pin:        snap.Pin(i),
			Pressed:    c.Pressed,
			HeldMs:     c.PressedTime.Milliseconds(),
			ReleasedMs: c.ReleasedTime.Milliseconds(),
			Repeat:     c.RepeatCount,
			Timing:     TimingJSON{Detect: c.Timing.Detect, Delay: c.Timing.Delay, Interval: c.Timing.Interval},
		}
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

func buildRecent(snap Snapshot, inner *StatusInner) {
	for _, ev := range snap.Recent {
		inner.Recent = append(inner.Recent, EventJSON{
			Timestamp: ev.Time.UTC().Format(time.RFC3339),
			Event:     ev.Kind.String(),
			Channel:   ev.Channel,
			Name:      ev.Name,
			Repeat:    ev.Repeat,
			HeldMs:    ev.Held.Milliseconds(),
		})
	}
}

// FormatJSON returns the JSON status for the web endpoint, including the
// recent-event history.
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildRecent(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event. The
// history is left out to keep the message small.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
