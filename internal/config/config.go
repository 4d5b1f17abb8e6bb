// Package config loads the buttond YAML configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/buttond/internal/button"
)

// Backends supported by the gpio package.
const (
	BackendCdev = "cdev"
	BackendRpio = "rpio"
)

// Config is the complete daemon configuration.
type Config struct {
	TickPeriod time.Duration `yaml:"tick_period"`
	Enabled    bool          `yaml:"enabled"`
	Threshold  uint32        `yaml:"threshold_level"`
	Listeners  int           `yaml:"listeners"`
	Heartbeat  time.Duration `yaml:"heartbeat"`
	History    int           `yaml:"history"`
	HTTP       string        `yaml:"http"`

	GPIO    GPIOConfig     `yaml:"gpio"`
	Buttons []ButtonConfig `yaml:"buttons"`
	MQTT    MQTTConfig     `yaml:"mqtt"`
	Status  ConsumerConfig `yaml:"status"`
	Logging LoggingConfig  `yaml:"logging"`
}

// GPIOConfig selects the pin backend.
type GPIOConfig struct {
	Backend string `yaml:"backend"`
	Chip    string `yaml:"chip"`
}

// ButtonConfig describes one button channel.
type ButtonConfig struct {
	Name          string `yaml:"name"`
	Pin           int    `yaml:"pin"`
	ActiveLow     bool   `yaml:"active_low"`
	DetectTicks   uint32 `yaml:"detect_ticks"`
	DelayTicks    uint32 `yaml:"delay_ticks"`
	IntervalTicks uint32 `yaml:"interval_ticks"`
}

// Timing returns the repeat timing of the button.
func (b ButtonConfig) Timing() button.Timing {
	return button.Timing{
		Detect:   b.DetectTicks,
		Delay:    b.DelayTicks,
		Interval: b.IntervalTicks,
	}
}

// MQTTConfig configures the MQTT bridge. An empty broker disables it.
type MQTTConfig struct {
	Broker   string        `yaml:"broker"`
	ClientID string        `yaml:"client_id"`
	Topic    string        `yaml:"topic"`
	Level    uint32        `yaml:"level"`
	Buffer   int           `yaml:"buffer"`
	Poll     time.Duration `yaml:"poll"`
}

// ConsumerConfig configures a polling listener.
type ConsumerConfig struct {
	Level uint32        `yaml:"level"`
	Poll  time.Duration `yaml:"poll"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given: one
// active-low button on BCM 17 with the firmware repeat timing.
func Default() *Config {
	return &Config{
		TickPeriod: 10 * time.Millisecond,
		Enabled:    true,
		Threshold:  button.DefaultThreshold,
		Listeners:  button.DefaultListeners,
		Heartbeat:  15 * time.Minute,
		History:    50,
		HTTP:       ":80",
		GPIO: GPIOConfig{
			Backend: BackendCdev,
			Chip:    "gpiochip0",
		},
		Buttons: []ButtonConfig{{
			Name:          "BTN",
			Pin:           17,
			ActiveLow:     true,
			DetectTicks:   button.DefaultDetectTicks,
			DelayTicks:    button.DefaultDelayTicks,
			IntervalTicks: button.DefaultIntervalTicks,
		}},
		MQTT: MQTTConfig{
			Broker:   "tcp://127.0.0.1:1883",
			ClientID: "buttond",
			Topic:    "buttond/events",
			Level:    1,
			Buffer:   100,
			Poll:     20 * time.Millisecond,
		},
		Status: ConsumerConfig{
			Level: button.DefaultThreshold,
			Poll:  50 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads the file at path over the defaults. An empty path returns the
// defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes YAML from r over the defaults.
func Parse(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	defaultButton := cfg.Buttons[0]
	cfg.Buttons = nil

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if len(cfg.Buttons) == 0 {
		cfg.Buttons = []ButtonConfig{defaultButton}
	}
	for i := range cfg.Buttons {
		b := &cfg.Buttons[i]
		if b.Name == "" {
			b.Name = fmt.Sprintf("BTN%d", i)
		}
		if b.DetectTicks == 0 {
			b.DetectTicks = button.DefaultDetectTicks
		}
		if b.DelayTicks == 0 {
			b.DelayTicks = button.DefaultDelayTicks
		}
		if b.IntervalTicks == 0 {
			b.IntervalTicks = button.DefaultIntervalTicks
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	if c.TickPeriod <= 0 {
		return fmt.Errorf("tick_period must be positive, got %v", c.TickPeriod)
	}
	if len(c.Buttons) == 0 || len(c.Buttons) > button.MaxChannels {
		return fmt.Errorf("buttons: need 1..%d entries, got %d", button.MaxChannels, len(c.Buttons))
	}
	if c.Listeners < 1 {
		return fmt.Errorf("listeners must be at least 1, got %d", c.Listeners)
	}
	switch c.GPIO.Backend {
	case BackendCdev, BackendRpio:
	default:
		return fmt.Errorf("gpio.backend: unknown backend %q", c.GPIO.Backend)
	}
	pins := make(map[int]string, len(c.Buttons))
	for i, b := range c.Buttons {
		if b.Pin < 0 {
			return fmt.Errorf("buttons[%d]: pin must not be negative", i)
		}
		if other, ok := pins[b.Pin]; ok {
			return fmt.Errorf("buttons[%d]: pin %d already used by %s", i, b.Pin, other)
		}
		pins[b.Pin] = b.Name
		if !b.Timing().Valid() {
			return fmt.Errorf("buttons[%d]: %w", i, button.ErrInvalidTiming)
		}
	}
	if c.MQTT.Broker != "" && c.MQTT.Poll <= 0 {
		return fmt.Errorf("mqtt.poll must be positive, got %v", c.MQTT.Poll)
	}
	if c.Status.Poll <= 0 {
		return fmt.Errorf("status.poll must be positive, got %v", c.Status.Poll)
	}
	if c.History < 0 {
		return fmt.Errorf("history must not be negative, got %d", c.History)
	}
	return nil
}

// EngineConfig returns the button engine configuration.
func (c *Config) EngineConfig() button.Config {
	names := make([]string, len(c.Buttons))
	timings := make([]button.Timing, len(c.Buttons))
	for i, b := range c.Buttons {
		names[i] = b.Name
		timings[i] = b.Timing()
	}
	return button.Config{
		Channels:   len(c.Buttons),
		Names:      names,
		Listeners:  c.Listeners,
		TickPeriod: c.TickPeriod,
		Timing:     button.DefaultTiming(),
		Timings:    timings,
		Threshold:  c.Threshold,
		Disabled:   !c.Enabled,
	}
}

// RequiresRestart reports the settings that differ between c and next and
// cannot be applied to a running engine.
func (c *Config) RequiresRestart(next *Config) []string {
	var changed []string
	if c.TickPeriod != next.TickPeriod {
		changed = append(changed, "tick_period")
	}
	if c.Listeners != next.Listeners {
		changed = append(changed, "listeners")
	}
	if c.GPIO != next.GPIO {
		changed = append(changed, "gpio")
	}
	if len(c.Buttons) != len(next.Buttons) {
		changed = append(changed, "buttons")
	} else {
		for i := range c.Buttons {
			a, b := c.Buttons[i], next.Buttons[i]
			if a.Pin != b.Pin || a.ActiveLow != b.ActiveLow || a.Name != b.Name {
				changed = append(changed, fmt.Sprintf("buttons[%d]", i))
			}
		}
	}
	if c.MQTT != next.MQTT {
		changed = append(changed, "mqtt")
	}
	if c.HTTP != next.HTTP {
		changed = append(changed, "http")
	}
	return changed
}
