// Package config resolves daemon settings from POWERMETER_* environment
// variables, command-line flags and the positional <server-url> <device-id> pair.
package config

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/sweeney/powermeter-sensor/internal/sender"
)

// ErrUsage is returned when the collector server or device id is missing.
var ErrUsage = errors.New("usage: powermeter [flags] <server-url> <device-id>")

// Config holds everything the daemon needs to start.
type Config struct {
	Server   string `env:"SERVER"`
	DeviceID string `env:"DEVICE_ID"`

	Chip       string        `env:"CHIP"        envDefault:"gpiochip0"`
	Pin        int           `env:"PIN"         envDefault:"27"`
	Debounce   time.Duration `env:"DEBOUNCE"    envDefault:"0s"`
	EdgeBuffer int           `env:"EDGE_BUFFER" envDefault:"64"`

	LogFile       string        `env:"LOG_FILE"       envDefault:"ticks.log"`
	FlushInterval time.Duration `env:"FLUSH_INTERVAL" envDefault:"5s"`
	ReportPeriod  time.Duration `env:"REPORT_PERIOD"  envDefault:"5s"`
	SendTimeout   time.Duration `env:"SEND_TIMEOUT"   envDefault:"10s"`

	Broker    string        `env:"BROKER"`
	Heartbeat time.Duration `env:"HEARTBEAT" envDefault:"15m"`
	HTTPAddr  string        `env:"HTTP_ADDR"`
}

// Prefix is prepended to every environment variable name.
const Prefix = "POWERMETER_"

// Load reads the process environment.
func Load() (Config, error) {
	return parse(env.Options{Prefix: Prefix})
}

// LoadFromEnv reads vars instead of the process environment.
func LoadFromEnv(vars map[string]string) (Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	c := Config{}
	if err := env.ParseWithOptions(&c, opts); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return c, nil
}

// RegisterFlags binds flags to c. Current field values become the flag
// defaults, so flags override the environment.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Chip, "chip", c.Chip, "GPIO chip name")
	fs.IntVar(&c.Pin, "pin", c.Pin, "BCM pin number of the pulse input")
	fs.DurationVar(&c.Debounce, "debounce", c.Debounce, "Kernel debounce period (0 to disable)")
	fs.IntVar(&c.EdgeBuffer, "edge-buffer", c.EdgeBuffer, "Edges queued between the GPIO handler and the processing loop")
	fs.StringVar(&c.LogFile, "log-file", c.LogFile, "Timestamp log path")
	fs.DurationVar(&c.FlushInterval, "flush", c.FlushInterval, "Timestamp log flush interval")
	fs.DurationVar(&c.ReportPeriod, "report", c.ReportPeriod, "Minimum spacing between uploads")
	fs.DurationVar(&c.SendTimeout, "send-timeout", c.SendTimeout, "Upload timeout")
	fs.StringVar(&c.Broker, "broker", c.Broker, "MQTT broker address (empty to disable)")
	fs.DurationVar(&c.Heartbeat, "heartbeat", c.Heartbeat, "Heartbeat interval (0 to disable)")
	fs.StringVar(&c.HTTPAddr, "http", c.HTTPAddr, "HTTP status address (empty to disable)")
}

// ApplyArgs takes the collector server and device id from positional
// arguments. Either both are given or neither.
func (c *Config) ApplyArgs(args []string) error {
	switch len(args) {
	case 0:
		return nil
	case 2:
		c.Server, c.DeviceID = args[0], args[1]
		return nil
	default:
		return fmt.Errorf("%w: got %d arguments", ErrUsage, len(args))
	}
}

// Validate checks that the daemon can start with c.
func (c Config) Validate() error {
	if c.Server == "" || c.DeviceID == "" {
		return ErrUsage
	}
	if _, err := sender.Endpoint(c.Server, c.DeviceID); err != nil {
		return err
	}

	var errs []error
	if c.Pin < 0 {
		errs = append(errs, fmt.Errorf("pin must not be negative: %d", c.Pin))
	}
	if c.EdgeBuffer <= 0 {
		errs = append(errs, fmt.Errorf("edge buffer must be positive: %d", c.EdgeBuffer))
	}
	if c.LogFile == "" {
		errs = append(errs, errors.New("log file must be set"))
	}
	for _, d := range []struct {
		name string
		v    time.Duration
	}{
		{"flush interval", c.FlushInterval},
		{"report period", c.ReportPeriod},
		{"send timeout", c.SendTimeout},
	} {
		if d.v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive: %s", d.name, d.v))
		}
	}
	if c.Debounce < 0 || c.Heartbeat < 0 {
		errs = append(errs, errors.New("debounce and heartbeat must not be negative"))
	}
	return errors.Join(errs...)
}

// String renders c one setting per line, for --print-config.
func (c Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "server:         %s\n", c.Server)
	fmt.Fprintf(&b, "device:         %s\n", c.DeviceID)
	fmt.Fprintf(&b, "gpio:           %s pin %d (debounce %s, buffer %d)\n", c.Chip, c.Pin, c.Debounce, c.EdgeBuffer)
	fmt.Fprintf(&b, "log file:       %s (flush %s)\n", c.LogFile, c.FlushInterval)
	fmt.Fprintf(&b, "report period:  %s\n", c.ReportPeriod)
	fmt.Fprintf(&b, "send timeout:   %s\n", c.SendTimeout)
	fmt.Fprintf(&b, "broker:         %s\n", orDisabled(c.Broker))
	fmt.Fprintf(&b, "heartbeat:      %s\n", c.Heartbeat)
	fmt.Fprintf(&b, "http:           %s\n", orDisabled(c.HTTPAddr))
	return b.String()
}

func orDisabled(s string) string {
	if s == "" {
		return "disabled"
	}
	return s
}

