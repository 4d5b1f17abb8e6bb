package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/buttond/internal/button"
	"github.com/sweeney/buttond/internal/status"
)

type fakeEngine struct {
	channels []button.ChannelState
	bitmask  uint32
}

func (f *fakeEngine) Snapshot() []button.ChannelState { return f.channels }
func (f *fakeEngine) Bitmask() uint32                 { return f.bitmask }
func (f *fakeEngine) Enabled() bool                   { return true }
func (f *fakeEngine) Threshold() uint32               { return 5 }
func (f *fakeEngine) Listeners() int                  { return 2 }

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := status.NewTracker(start, status.Config{
		TickMs:      10,
		HeartbeatMs: 900000,
		Broker:      "tcp://192.168.1.200:1883",
		HTTPAddr:    ":80",
		Backend:     "cdev",
		Capacity:    8,
		Buttons:     []status.ButtonInfo{{Name: "UP", Pin: 5}, {Name: "DOWN", Pin: 6}},
	}, 10)
	srv := New(":0", tr)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, tr
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.Refresh(&fakeEngine{
		channels: []button.ChannelState{{Name: "UP", Pressed: true}, {Name: "DOWN"}},
		bitmask:  1,
	})
	tr.Count([]button.Event{{Kind: button.KindPressed}})
	tr.SetMQTTConnected(true)

	resp, body := get(t, ts.URL+"/index.json")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var sj status.StatusJSON
	require.NoError(t, json.Unmarshal([]byte(body), &sj))
	assert.True(t, sj.Status.MQTT.Connected)
	assert.Equal(t, "tcp://192.168.1.200:1883", sj.Status.MQTT.Broker)
	assert.Equal(t, uint32(1), sj.Status.Bitmask)
	assert.Equal(t, 1, sj.Status.Counts.Pressed)
	require.Len(t, sj.Status.Channels, 2)
	assert.Equal(t, 6, sj.Status.Channels[1].Pin)
}

func TestHTMLEndpoint(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.Refresh(&fakeEngine{
		channels: []button.ChannelState{
			{Name: "UP", Pressed: true, PressedTime: 250 * time.Millisecond, Timing: button.DefaultTiming()},
			{Name: "DOWN"},
		},
		bitmask: 1,
	})
	tr.Record(button.Event{Name: "UP", Kind: button.KindRepeat, Repeat: 2})
	tr.SetNetwork(&status.NetworkInfo{Type: "wifi", Status: "connected", SSID: "home", IP: "10.0.0.2"})

	for _, path := range []string{"/", "/index.html"} {
		resp, body := get(t, ts.URL+path)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
		assert.Contains(t, body, "<td>UP</td>")
		assert.Contains(t, body, "PRESSED")
		assert.Contains(t, body, "250ms")
		assert.Contains(t, body, "60/250/200")
		assert.Contains(t, body, "Bitmask: 01")
		assert.Contains(t, body, "REPEAT")
		assert.Contains(t, body, "#2")
		assert.Contains(t, body, "2 / 8")
		assert.Contains(t, body, "home")
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, _ := get(t, ts.URL+"/nonexistent")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr := newTestServer(t)
	eng := &fakeEngine{channels: []button.ChannelState{{Name: "UP"}}}
	tr.Refresh(eng)

	_, before := get(t, ts.URL+"/index.json")
	assert.Contains(t, before, `"pressed": false`)

	eng.channels = []button.ChannelState{{Name: "UP", Pressed: true}}
	tr.Refresh(eng)
	_, after := get(t, ts.URL+"/index.json")
	assert.Contains(t, after, `"pressed": true`)
}

func TestFormatUptime(t *testing.T) {
	tests := map[time.Duration]string{
		5 * time.Second:                      "5s",
		65 * time.Second:                     "1m 5s",
		time.Hour + 2*time.Minute:            "1h 2m 0s",
		50*time.Hour + 1500*time.Millisecond: "2d 2h 0m 1s",
	}
	for d, want := range tests {
		assert.Equal(t, want, formatUptime(d))
	}
}
