package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/buttond/internal/button"
)

var ts = time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC)

func TestFormatPayloadPressed(t *testing.T) {
	payload, err := FormatPayload(button.Event{Channel: 2, Name: "UP", Kind: button.KindPressed, Time: ts})
	require.NoError(t, err)
	assert.JSONEq(t, `{"button":{"timestamp":"2026-02-02T22:18:12Z","event":"PRESSED","channel":2,"name":"UP"}}`, string(payload))
}

func TestFormatPayloadRepeat(t *testing.T) {
	payload, err := FormatPayload(button.Event{Channel: 0, Name: "BTN", Kind: button.KindRepeat, Repeat: 3, Time: ts})
	require.NoError(t, err)

	var parsed Payload
	require.NoError(t, json.Unmarshal(payload, &parsed))
	assert.Equal(t, "REPEAT", parsed.Button.Event)
	assert.Equal(t, uint32(3), parsed.Button.Repeat)
	assert.Nil(t, parsed.Button.HeldMs)
}

func TestFormatPayloadReleasedAlwaysCarriesHeld(t *testing.T) {
	payload, err := FormatPayload(button.Event{Kind: button.KindReleased, Held: 0, Time: ts})
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"held_ms":0`)

	payload, err = FormatPayload(button.Event{Kind: button.KindReleased, Held: 1500 * time.Millisecond, Time: ts})
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"held_ms":1500`)
	assert.NotContains(t, string(payload), "repeat")
}

func TestFormatPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	payload, err := FormatPayload(button.Event{Kind: button.KindPressed, Time: time.Date(2026, 2, 2, 17, 0, 0, 0, loc)})
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"timestamp":"2026-02-02T22:00:00Z"`)
}

func TestSystemTopic(t *testing.T) {
	assert.Equal(t, "buttond/system", SystemTopic(DefaultTopic))
	assert.Equal(t, "home/hall/buttons/system", SystemTopic("home/hall/buttons/events"))
	assert.Equal(t, "buttons/system", SystemTopic("buttons"))
}

func TestFormatSystemPayload(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC),
		Event:     "OFFLINE",
		Reason:    "MQTT_DISCONNECT",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"system":{"timestamp":"2026-02-10T08:30:00Z","event":"OFFLINE","reason":"MQTT_DISCONNECT"}}`, string(payload))
}

func TestFormatSystemPayloadOmitsReason(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC),
		Event:     "RECONNECTED",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"system":{"timestamp":"2026-02-10T14:30:00Z","event":"RECONNECTED"}}`, string(payload))
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"status":{"event":"STARTUP"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "STARTUP", RawPayload: raw})
	require.NoError(t, err)
	assert.Equal(t, raw, payload)
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()
	require.NoError(t, f.Publish(button.Event{Kind: button.KindPressed, Time: ts}))
	require.NoError(t, f.Publish(button.Event{Kind: button.KindReleased, Time: ts}))
	require.NoError(t, f.PublishSystem(SystemEvent{Event: "STARTUP", Retained: true}))

	require.Len(t, f.Events, 2)
	assert.Equal(t, button.KindPressed, f.Events[0].Kind, "order preserved")
	assert.Len(t, f.Payloads, 2)
	assert.Equal(t, 2, f.EventCount())
	assert.Equal(t, []string{"STARTUP"}, f.SystemEventNames())
	assert.True(t, f.SystemEvents[0].Retained)
}

func TestFakePublisherErrors(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("boom")
	f.PublishSystemError = errors.New("bang")

	assert.Error(t, f.Publish(button.Event{}))
	assert.Error(t, f.PublishSystem(SystemEvent{}))
	assert.Empty(t, f.Events)
	assert.Empty(t, f.SystemEvents)
}

func TestFakePublisherCloseAndReset(t *testing.T) {
	f := NewFakePublisher()
	f.Connected = true
	require.NoError(t, f.Publish(button.Event{}))
	require.NoError(t, f.Close())
	assert.True(t, f.Closed)
	assert.True(t, f.IsConnected())

	f.Reset()
	assert.Empty(t, f.Events)
	assert.Empty(t, f.Payloads)
	assert.False(t, f.Closed)
	assert.False(t, f.IsConnected())
	require.NoError(t, f.Publish(button.Event{}), "reusable after reset")
}
