// Command buttond debounces GPIO buttons and fans press, repeat and release
// events out to MQTT, an HTTP status page and an optional terminal viewer.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/buttond/internal/button"
	"github.com/sweeney/buttond/internal/config"
	"github.com/sweeney/buttond/internal/consumer"
	"github.com/sweeney/buttond/internal/gpio"
	"github.com/sweeney/buttond/internal/logging"
	"github.com/sweeney/buttond/internal/mqtt"
	"github.com/sweeney/buttond/internal/status"
	"github.com/sweeney/buttond/internal/tui"
	"github.com/sweeney/buttond/internal/web"
)

// viewerRefresh is how often -show redraws.
const viewerRefresh = 50 * time.Millisecond

type options struct {
	configPath string
	broker     string
	httpAddr   string
	logLevel   string
	printState bool
	show       bool
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "YAML config file (empty for built-in defaults)")
	flag.StringVar(&o.broker, "broker", "", `MQTT broker address, overrides config ("off" disables)`)
	flag.StringVar(&o.httpAddr, "http", "", `HTTP status address, overrides config ("off" disables)`)
	flag.StringVar(&o.logLevel, "log-level", "", "Log level, overrides config (debug, info, warn, error)")
	flag.BoolVar(&o.printState, "print-state", false, "Print current button levels and exit")
	flag.BoolVar(&o.show, "show", false, "Show live button state in the terminal")

	flag.Parse()

	if err := run(o); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// applyFlags overlays command-line overrides onto cfg.
func applyFlags(cfg *config.Config, o options) {
	switch o.broker {
	case "":
	case "off":
		cfg.MQTT.Broker = ""
	default:
		cfg.MQTT.Broker = o.broker
	}
	switch o.httpAddr {
	case "":
	case "off":
		cfg.HTTP = ""
	default:
		cfg.HTTP = o.httpAddr
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
}

func pins(cfg *config.Config) []gpio.Pin {
	out := make([]gpio.Pin, len(cfg.Buttons))
	for i, b := range cfg.Buttons {
		out[i] = gpio.Pin{Name: b.Name, Number: b.Pin, ActiveLow: b.ActiveLow}
	}
	return out
}

func statusConfig(cfg *config.Config) status.Config {
	sc := status.Config{
		TickMs:      cfg.TickPeriod.Milliseconds(),
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		Broker:      cfg.MQTT.Broker,
		Topic:       cfg.MQTT.Topic,
		HTTPAddr:    cfg.HTTP,
		Backend:     cfg.GPIO.Backend,
		Capacity:    cfg.Listeners,
		Buttons:     make([]status.ButtonInfo, len(cfg.Buttons)),
	}
	for i, b := range cfg.Buttons {
		sc.Buttons[i] = status.ButtonInfo{Name: b.Name, Pin: b.Pin, ActiveLow: b.ActiveLow}
	}
	return sc
}

func run(o options) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	applyFlags(cfg, o)

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer logger.Sync()
	if o.show {
		// The terminal belongs to the viewer.
		logger = zap.NewNop().Sugar()
	}

	reader, err := gpio.Open(cfg.GPIO.Backend, cfg.GPIO.Chip, pins(cfg))
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer reader.Close()

	if o.printState {
		return printState(os.Stdout, reader, pins(cfg))
	}

	engine, err := button.New(cfg.EngineConfig(), gpio.NewSampler(reader, logger.Named("gpio")), time.Now, logger.Named("button"))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if o.show {
		sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		go driveTicks(sigCtx, engine, cfg.TickPeriod)
		return tui.New(engine, viewerRefresh, logger).Run(sigCtx)
	}

	var publisher mqtt.Publisher = discardPublisher{}
	var mqttStatus mqtt.ConnectionStatus
	if cfg.MQTT.Broker != "" {
		rp := mqtt.NewRealPublisher(mqtt.Options{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
			Buffer:   cfg.MQTT.Buffer,
		}, logger.Named("mqtt"))
		defer rp.Close()
		publisher, mqttStatus = rp, rp
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), statusConfig(cfg), cfg.History)
	tracker.Refresh(engine)
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	var wg sync.WaitGroup
	history := consumer.New("status", engine, cfg.Status.Level, tracker.Record, logger.Named("status"))
	startConsumer(ctx, &wg, history, cfg.Status.Poll, logger)
	consumers := []*consumer.Poller{history}
	if cfg.MQTT.Broker != "" {
		sink := func(ev button.Event) {
			if err := publisher.Publish(ev); err != nil {
				// Don't crash on publish failure
				logger.Warnw("publish error", "error", err)
			}
		}
		bridge := consumer.New("mqtt", engine, cfg.MQTT.Level, sink, logger.Named("mqtt"))
		startConsumer(ctx, &wg, bridge, cfg.MQTT.Poll, logger)
		consumers = append(consumers, bridge)
	}
	defer wg.Wait()
	defer cancel()

	snap := tracker.Snapshot()
	startup := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startup); err != nil {
		logger.Warnw("failed to publish startup event", "error", err)
	}

	if cfg.HTTP != "" {
		srv := web.New(cfg.HTTP, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorw("http server error", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Infow("http status server listening", "addr", cfg.HTTP)
	}

	if o.configPath != "" {
		current := cfg
		go func() {
			err := config.Watch(ctx, o.configPath, func(next *config.Config) {
				applyFlags(next, o)
				if applyReload(engine, current, next, logger) {
					resync(consumers, logger)
				}
				current = next
			}, logger.Named("config"))
			if err != nil {
				logger.Warnw("config watcher stopped", "error", err)
			}
		}()
	}

	logger.Infow("started",
		"buttons", engine.Channels(),
		"tick", cfg.TickPeriod,
		"backend", cfg.GPIO.Backend,
		"broker", cfg.MQTT.Broker,
		"heartbeat", cfg.Heartbeat,
	)

	ticker := time.NewTicker(cfg.TickPeriod)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(engine, publisher, mqttStatus, tracker, cfg.Heartbeat, time.Now, ticker.C, sigCh, logger)
}

func startConsumer(ctx context.Context, wg *sync.WaitGroup, p *consumer.Poller, interval time.Duration, logger *zap.SugaredLogger) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := p.Run(ctx, interval); err != nil {
			logger.Errorw("consumer failed", "consumer", p.Name(), "error", err)
		}
	}()
}

func driveTicks(ctx context.Context, engine *button.Engine, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			engine.Tick()
		}
	}
}

// reloader is the part of button.Engine that can change while running.
type reloader interface {
	SetEnabled(bool)
	SetThreshold(uint32)
	SetRepeatTiming(ch int, t button.Timing) error
	RepeatTiming(ch int) button.Timing
}

// applyReload pushes the hot-reloadable settings of next into the engine and
// warns about the rest. It reports whether the threshold level changed.
func applyReload(e reloader, current, next *config.Config, logger *zap.SugaredLogger) bool {
	if fields := current.RequiresRestart(next); len(fields) > 0 {
		logger.Warnw("config changes need a restart", "fields", fields)
	}
	if current.Enabled != next.Enabled {
		e.SetEnabled(next.Enabled)
		logger.Infow("engine enabled changed", "enabled", next.Enabled)
	}
	if current.Threshold != next.Threshold {
		e.SetThreshold(next.Threshold)
		logger.Infow("threshold level changed", "threshold", next.Threshold)
	}
	n := len(current.Buttons)
	if len(next.Buttons) < n {
		n = len(next.Buttons)
	}
	for ch := 0; ch < n; ch++ {
		t := next.Buttons[ch].Timing()
		if e.RepeatTiming(ch) == t {
			continue
		}
		if err := e.SetRepeatTiming(ch, t); err != nil {
			logger.Warnw("repeat timing rejected", "channel", ch, "error", err)
			continue
		}
		logger.Infow("repeat timing changed", "channel", ch, "detect", t.Detect, "delay", t.Delay, "interval", t.Interval)
	}
	return current.Threshold != next.Threshold
}

// resync drops events latched under the previous threshold level.
func resync(consumers []*consumer.Poller, logger *zap.SugaredLogger) {
	for _, p := range consumers {
		if err := p.Resync(); err != nil {
			logger.Debugw("resync skipped", "consumer", p.Name(), "error", err)
		}
	}
}

func runLoop(engine *button.Engine, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal, logger *zap.SugaredLogger) error {
	refresh := func() {
		tracker.Refresh(engine)
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
	}

	for {
		select {
		case s := <-sig:
			logger.Infow("shutting down", "signal", s.String())
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			refresh()
			snap := tracker.Snapshot()
			event := mqtt.SystemEvent{
				Timestamp:  now(),
				Event:      "SHUTDOWN",
				Reason:     signalName,
				Retained:   true,
				RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", signalName),
			}
			if err := publisher.PublishSystem(event); err != nil {
				logger.Warnw("failed to publish shutdown event", "error", err)
			}
			return nil

		case <-tick:
			t := now()
			events := engine.Tick()
			for _, ev := range events {
				logger.Debugw("button event",
					"channel", ev.Channel,
					"name", ev.Name,
					"event", ev.Kind.String(),
					"repeat", ev.Repeat,
					"held", ev.Held,
				)
			}
			tracker.Count(events)
			refresh()

			if tracker.CheckHeartbeat(t, heartbeat) {
				if net := readNetworkInfo(); net != nil {
					tracker.SetNetwork(net)
				}
				snap := tracker.Snapshot()
				logger.Infow("heartbeat",
					"uptime", snap.Uptime().Truncate(time.Second),
					"pressed", snap.Counts.Pressed,
					"released", snap.Counts.Released,
					"repeat", snap.Counts.Repeat,
					"listeners", snap.Listeners,
				)
				hb := mqtt.SystemEvent{
					Timestamp:  t,
					Event:      "HEARTBEAT",
					RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
				}
				if err := publisher.PublishSystem(hb); err != nil {
					logger.Warnw("heartbeat publish error", "error", err)
				}
			}
		}
	}
}

// printState reads every configured pin once.
func printState(w io.Writer, r gpio.Reader, pins []gpio.Pin) error {
	for i, p := range pins {
		level, err := r.Read(i)
		if err != nil {
			return fmt.Errorf("read %s: %w", p.Name, err)
		}
		state := "released"
		if level {
			state = "PRESSED"
		}
		fmt.Fprintf(w, "%-12s pin %-3d %s\n", p.Name, p.Number, state)
	}
	return nil
}

// discardPublisher stands in when MQTT is disabled.
type discardPublisher struct{}

func (discardPublisher) Publish(button.Event) error           { return nil }
func (discardPublisher) PublishSystem(mqtt.SystemEvent) error { return nil }
func (discardPublisher) Close() error                         { return nil }

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
