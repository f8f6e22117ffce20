// Command powermeter timestamps meter pulses from a GPIO input, estimates
// power from the pulse interval and uploads it to a collector.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sweeney/powermeter-sensor/internal/config"
	"github.com/sweeney/powermeter-sensor/internal/gpio"
	"github.com/sweeney/powermeter-sensor/internal/logic"
	"github.com/sweeney/powermeter-sensor/internal/metrics"
	"github.com/sweeney/powermeter-sensor/internal/mqtt"
	"github.com/sweeney/powermeter-sensor/internal/sender"
	"github.com/sweeney/powermeter-sensor/internal/status"
	"github.com/sweeney/powermeter-sensor/internal/tslog"
	"github.com/sweeney/powermeter-sensor/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}

	printConfig := flag.Bool("print-config", false, "Print resolved configuration and exit")
	cfg.RegisterFlags(flag.CommandLine)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "%v\n\nFlags:\n", config.ErrUsage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := cfg.ApplyArgs(flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *printConfig {
		fmt.Print(cfg.String())
		return
	}
	if err := cfg.Validate(); err != nil {
		if errors.Is(err, config.ErrUsage) {
			flag.Usage()
			os.Exit(2)
		}
		log.Fatalf("fatal: %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg config.Config) error {
	snd, err := sender.NewHTTPSender(cfg.Server, cfg.DeviceID, cfg.SendTimeout)
	if err != nil {
		return fmt.Errorf("init sender: %w", err)
	}

	tsLog, err := tslog.Open(cfg.LogFile)
	if err != nil {
		return fmt.Errorf("open timestamp log: %w", err)
	}
	defer func() {
		if err := tsLog.Close(); err != nil {
			log.Printf("close timestamp log: %v", err)
		}
	}()

	startTime := time.Now()

	// Initialize status tracker (before STARTUP so snapshot is available)
	m := metrics.New()
	tracker := status.NewTracker(startTime, status.Config{
		DeviceID:      cfg.DeviceID,
		Endpoint:      snd.Target(),
		Pin:           cfg.Pin,
		LogFile:       cfg.LogFile,
		FlushMs:       cfg.FlushInterval.Milliseconds(),
		ReportMs:      cfg.ReportPeriod.Milliseconds(),
		SendTimeoutMs: cfg.SendTimeout.Milliseconds(),
		HeartbeatMs:   cfg.Heartbeat.Milliseconds(),
		Broker:        cfg.Broker,
		HTTPAddr:      cfg.HTTPAddr,
	})
	tracker.SetMetrics(m)
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	var publisher mqtt.Publisher
	var mqttStatus mqtt.ConnectionStatus
	if cfg.Broker != "" {
		p, err := mqtt.NewRealPublisher(cfg.Broker, "powermeter-"+cfg.DeviceID)
		if err != nil {
			log.Printf("mqtt disabled: %v", err)
		} else {
			defer p.Close()
			publisher, mqttStatus = p, p
		}
	}

	src, err := gpio.NewRealSource(cfg.Chip, cfg.Pin, cfg.Debounce, cfg.EdgeBuffer)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer src.Close()

	d := &daemon{
		source:     src,
		log:        tsLog,
		sender:     snd,
		engine:     logic.NewEngine(startTime, cfg.ReportPeriod),
		publisher:  publisher,
		mqttStatus: mqttStatus,
		tracker:    tracker,
		deviceID:   cfg.DeviceID,
		now:        time.Now,
	}
	d.publishSystem("STARTUP", "", true)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return tslog.RunFlusher(ctx, tsLog, cfg.FlushInterval)
	})

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, m.Handler())
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("http server error: %v", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return srv.Shutdown(context.Background())
		})
		log.Printf("http status server listening on %s", cfg.HTTPAddr)
	}

	var heartbeat <-chan time.Time
	if cfg.Heartbeat > 0 {
		ticker := time.NewTicker(cfg.Heartbeat)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	log.Printf("started: device=%s target=%s chip=%s pin=%d log=%s broker=%q",
		cfg.DeviceID, snd.Target(), cfg.Chip, cfg.Pin, cfg.LogFile, cfg.Broker)

	g.Go(func() error {
		defer stop()
		return d.runLoop(ctx, heartbeat, sigCh)
	})
	return g.Wait()
}

// daemon owns the per-edge pipeline. Every field except source, log,
// sender and engine may be nil.
type daemon struct {
	source     gpio.Source
	log        tslog.Recorder
	sender     sender.Sender
	engine     *logic.Engine
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	deviceID   string
	now        func() time.Time
}

// runLoop processes edges one at a time until a signal arrives, ctx is
// cancelled or the edge channel closes. Storage and upload failures are
// logged and never end the loop.
func (d *daemon) runLoop(ctx context.Context, heartbeat <-chan time.Time, sig <-chan os.Signal) error {
	edges := d.source.Edges()
	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			d.publishSystem("SHUTDOWN", signalName(s), true)
			return nil

		case <-ctx.Done():
			return nil

		case e, ok := <-edges:
			if !ok {
				log.Printf("edge source closed")
				return nil
			}
			d.handleEdge(ctx, e)

		case <-heartbeat:
			c := d.engine.CountsSnapshot()
			log.Printf("heartbeat: pulses=%d reports=%d dropped=%d", c.Pulses, c.Reports, d.source.Dropped())
			if d.tracker != nil {
				// Refresh network info for heartbeat
				if net := readNetworkInfo(); net != nil {
					d.tracker.SetNetwork(net)
				}
			}
			d.publishSystem("HEARTBEAT", "", false)
		}
	}
}

func (d *daemon) handleEdge(ctx context.Context, e gpio.Edge) {
	if err := d.log.Store(e.Time.UnixMilli()); err != nil {
		log.Printf("timestamp log error: %v", err)
		if d.tracker != nil {
			d.tracker.RecordLogError()
		}
	}

	s := d.engine.Process(e.Time)
	if d.tracker != nil {
		d.tracker.RecordPulse(s)
		d.tracker.SetDroppedEdges(d.source.Dropped())
	}
	if !s.Report {
		return
	}

	log.Printf("sending %s", sender.FormatPayload(s.Watts))
	err := d.sender.Send(ctx, s.Watts)
	if err != nil {
		log.Printf("send error: %v", err)
	}
	if d.tracker != nil {
		d.tracker.RecordReport(s, err)
	}

	if d.publisher != nil && !s.Degenerate {
		r := mqtt.Reading{Timestamp: s.Time, Device: d.deviceID, Watts: s.Watts, IntervalMs: s.IntervalMs}
		if err := d.publisher.Publish(r); err != nil {
			log.Printf("publish error: %v", err)
		}
	}
}

// publishSystem sends a lifecycle event carrying a full status snapshot.
func (d *daemon) publishSystem(event, reason string, retained bool) {
	if d.publisher == nil {
		return
	}

	ev := mqtt.SystemEvent{
		Timestamp: d.now(),
		Event:     event,
		Reason:    reason,
		Retained:  retained,
	}
	if d.tracker != nil {
		if d.mqttStatus != nil {
			d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
		}
		ev.RawPayload = status.FormatStatusEvent(d.tracker.Snapshot(), event, reason)
	}
	if err := d.publisher.PublishSystem(ev); err != nil {
		log.Printf("failed to publish %s event: %v", event, err)
		return
	}
	log.Printf("published %s event", event)
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

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
