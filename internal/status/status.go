// Package status provides a thread-safe status tracker for the powermeter daemon.
// It is written by the edge loop and read by HTTP handlers and MQTT heartbeats.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/powermeter-sensor/internal/logic"
	"github.com/sweeney/powermeter-sensor/internal/metrics"
)

// NetworkInfo contains network state as written by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	DeviceID      string
	Endpoint      string
	Pin           int
	LogFile       string
	FlushMs       int64
	ReportMs      int64
	SendTimeoutMs int64
	HeartbeatMs   int64
	Broker        string
	HTTPAddr      string
}

// Counts tracks activity since startup.
type Counts struct {
	Pulses         int
	Reports        int
	ReportFailures int
	LogFailures    int
	DroppedEdges   uint64
}

// Report describes the most recent upload attempt.
type Report struct {
	Time  time.Time
	Watts float64
	Error string // empty on success
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	LastSample    logic.Sample
	HasSample     bool
	LastReport    *Report
	Counts        Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu      sync.RWMutex
	snap    Snapshot
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// SetMetrics mirrors every recorded observation into m.
func (t *Tracker) SetMetrics(m *metrics.Metrics) {
	t.mu.Lock()
	t.metrics = m
	t.mu.Unlock()
}

// RecordPulse stores the sample derived from the latest edge.
func (t *Tracker) RecordPulse(s logic.Sample) {
	t.mu.Lock()
	t.snap.LastSample = s
	t.snap.HasSample = true
	t.snap.Counts.Pulses++
	m := t.metrics
	t.mu.Unlock()

	if m != nil {
		m.ObservePulse(s.Watts, s.IntervalMs)
	}
}

// RecordReport stores the outcome of an upload of s.
func (t *Tracker) RecordReport(s logic.Sample, err error) {
	r := &Report{Time: s.Time, Watts: s.Watts}
	if err != nil {
		r.Error = err.Error()
	}

	t.mu.Lock()
	t.snap.LastReport = r
	t.snap.Counts.Reports++
	if err != nil {
		t.snap.Counts.ReportFailures++
	}
	m := t.metrics
	t.mu.Unlock()

	if m != nil {
		m.ObserveReport(err)
	}
}

// RecordLogError counts a failed timestamp log append.
func (t *Tracker) RecordLogError() {
	t.mu.Lock()
	t.snap.Counts.LogFailures++
	m := t.metrics
	t.mu.Unlock()

	if m != nil {
		m.ObserveLogError()
	}
}

// SetDroppedEdges sets the dispatcher's drop counter.
func (t *Tracker) SetDroppedEdges(n uint64) {
	t.mu.Lock()
	t.snap.Counts.DroppedEdges = n
	m := t.metrics
	t.mu.Unlock()

	if m != nil {
		m.SetDroppedEdges(n)
	}
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if s.LastReport != nil {
		r := *s.LastReport
		s.LastReport = &r
	}
	now := t.now
	t.mu.RUnlock()
	s.Now = now()
	return s
}
