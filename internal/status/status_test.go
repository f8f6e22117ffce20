package status

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/powermeter-sensor/internal/logic"
	"github.com/sweeney/powermeter-sensor/internal/metrics"
)

func testSample(at time.Time, watts float64, intervalMs int64) logic.Sample {
	return logic.Sample{Time: at, Watts: watts, IntervalMs: intervalMs}
}

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{DeviceID: "meter1", ReportMs: 5000, Broker: "tcp://localhost:1883", HTTPAddr: ":80"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.ReportMs != 5000 {
		t.Errorf("Config.ReportMs: got %d, want 5000", snap.Config.ReportMs)
	}
	if snap.HasSample {
		t.Error("expected HasSample=false initially")
	}
	if snap.LastReport != nil {
		t.Error("expected no last report initially")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

func TestRecordPulseAndReport(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	at := time.Date(2026, 1, 1, 0, 0, 5, 0, time.UTC)

	tr.RecordPulse(testSample(at, 72, 5))
	tr.RecordPulse(testSample(at.Add(time.Second), 0.36, 1000))
	tr.RecordReport(testSample(at.Add(time.Second), 0.36, 1000), nil)
	tr.RecordReport(testSample(at.Add(2*time.Second), 0.36, 1000), errors.New("connection refused"))
	tr.RecordLogError()
	tr.SetDroppedEdges(4)

	snap := tr.Snapshot()
	if !snap.HasSample {
		t.Fatal("expected HasSample=true")
	}
	if snap.LastSample.Watts != 0.36 {
		t.Errorf("LastSample.Watts: got %v, want 0.36", snap.LastSample.Watts)
	}
	want := Counts{Pulses: 2, Reports: 2, ReportFailures: 1, LogFailures: 1, DroppedEdges: 4}
	if snap.Counts != want {
		t.Errorf("Counts: got %+v, want %+v", snap.Counts, want)
	}
	if snap.LastReport == nil || snap.LastReport.Error != "connection refused" {
		t.Errorf("LastReport: got %+v", snap.LastReport)
	}
}

func TestTrackerFeedsMetrics(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	m := metrics.New()
	tr.SetMetrics(m)

	tr.RecordPulse(testSample(time.Now(), 72, 5))
	tr.RecordReport(testSample(time.Now(), 72, 5), nil)
	tr.RecordLogError()

	// Exercised through the exposition handler since the collectors are private.
	body := scrape(t, m)
	for _, want := range []string{
		"powermeter_pulses_total 1",
		"powermeter_power_watts 72",
		`powermeter_reports_total{result="ok"} 1`,
		"powermeter_timestamp_log_errors_total 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSetNetwork(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	if tr.Snapshot().Network != nil {
		t.Error("expected nil Network initially")
	}

	net := &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected"}
	tr.SetNetwork(net)

	snap := tr.Snapshot()
	if snap.Network == nil {
		t.Fatal("expected non-nil Network")
	}
	if snap.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want %q", snap.Network.IP, "192.168.1.42")
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
	}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotNowIsSet(t *testing.T) {
	tr := NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Config{})

	before := time.Now()
	snap := tr.Snapshot()
	after := time.Now()

	if snap.Now.Before(before) || snap.Now.After(after) {
		t.Errorf("Now (%v) not between %v and %v", snap.Now, before, after)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.RecordReport(testSample(time.Now(), 1, 360), nil)

	snap1 := tr.Snapshot()

	tr.RecordReport(testSample(time.Now(), 2, 180), errors.New("timeout"))

	if snap1.LastReport.Watts != 1 || snap1.LastReport.Error != "" {
		t.Errorf("snapshot should be a copy; LastReport was modified: %+v", snap1.LastReport)
	}
	if snap1.Counts.Reports != 1 {
		t.Errorf("snapshot should be a copy; Reports=%d", snap1.Counts.Reports)
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	at := start.Add(14 * time.Minute)
	snap := Snapshot{
		LastSample:    testSample(at, 0.18, 2000),
		HasSample:     true,
		LastReport:    &Report{Time: at, Watts: 0.18},
		Counts:        Counts{Pulses: 7, Reports: 2, ReportFailures: 1},
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        Config{DeviceID: "meter1", Endpoint: "http://collector/meter1", ReportMs: 5000, Broker: "tcp://localhost:1883"},
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Device != "meter1" {
		t.Errorf("Device: got %q, want meter1", parsed.Status.Device)
	}
	if !parsed.Status.Measuring {
		t.Error("expected Measuring=true")
	}
	if parsed.Status.Power == nil || parsed.Status.Power.Watts == nil || *parsed.Status.Power.Watts != 0.18 {
		t.Errorf("Power: got %+v", parsed.Status.Power)
	}
	if parsed.Status.Power.IntervalMs != 2000 {
		t.Errorf("Power.IntervalMs: got %d, want 2000", parsed.Status.Power.IntervalMs)
	}
	if parsed.Status.LastReport == nil || !parsed.Status.LastReport.OK {
		t.Errorf("LastReport: got %+v", parsed.Status.LastReport)
	}
	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
	if parsed.Status.MQTT.Connected != true {
		t.Error("expected MQTT.Connected=true")
	}
	if parsed.Status.Counts.Pulses != 7 || parsed.Status.Counts.ReportFailures != 1 {
		t.Errorf("Counts: got %+v", parsed.Status.Counts)
	}
	if parsed.Status.Config.Endpoint != "http://collector/meter1" {
		t.Errorf("Config.Endpoint: got %q", parsed.Status.Config.Endpoint)
	}
	// Event and Reason should be omitted
	if parsed.Status.Event != "" {
		t.Errorf("expected empty Event for web format, got %q", parsed.Status.Event)
	}
	if parsed.Status.Reason != "" {
		t.Errorf("expected empty Reason for web format, got %q", parsed.Status.Reason)
	}
}

func TestFormatJSONBeforeFirstPulse(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Measuring {
		t.Error("expected Measuring=false before first pulse")
	}
	if parsed.Status.Power != nil {
		t.Errorf("expected no power before first pulse, got %+v", parsed.Status.Power)
	}
}

func TestFormatJSONDegenerateSample(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC)
	snap := Snapshot{
		LastSample: logic.Sample{Time: at, Watts: math.Inf(1), Degenerate: true},
		HasSample:  true,
		LastReport: &Report{Time: at, Watts: math.Inf(1), Error: "non-finite power value: +Inf"},
		StartTime:  at.Add(-time.Second),
		Now:        at,
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("+Inf must not break JSON output: %v", err)
	}
	if parsed.Status.Power.Watts != nil {
		t.Errorf("expected watts omitted, got %v", *parsed.Status.Power.Watts)
	}
	if !parsed.Status.Power.Degenerate {
		t.Error("expected degenerate flag")
	}
	if parsed.Status.LastReport.OK {
		t.Error("expected failed last report")
	}
}

func TestFormatStatusEvent(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Counts:        Counts{Pulses: 3},
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        Config{DeviceID: "meter1", Broker: "tcp://localhost:1883"},
	}

	data := FormatStatusEvent(snap, "HEARTBEAT", "")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "HEARTBEAT" {
		t.Errorf("Event: got %q, want HEARTBEAT", parsed.Status.Event)
	}
	if parsed.Status.Reason != "" {
		t.Errorf("Reason: got %q, want empty", parsed.Status.Reason)
	}
	if parsed.Status.Counts.Pulses != 3 {
		t.Errorf("Counts.Pulses: got %d, want 3", parsed.Status.Counts.Pulses)
	}
	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
}

func TestFormatStatusEventShutdown(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(30 * time.Minute),
		Config:    Config{Broker: "tcp://localhost:1883"},
	}

	data := FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("Event: got %q, want SHUTDOWN", parsed.Status.Event)
	}
	if parsed.Status.Reason != "SIGTERM" {
		t.Errorf("Reason: got %q, want SIGTERM", parsed.Status.Reason)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	data := FormatStatusEvent(snap, "STARTUP", "")

	// Verify "reason" is not in the raw JSON output
	var raw map[string]interface{}
	json.Unmarshal(data, &raw)
	status := raw["status"].(map[string]interface{})
	if _, exists := status["reason"]; exists {
		t.Error("reason should be omitted when empty")
	}
	if status["event"] != "STARTUP" {
		t.Errorf("event: got %v, want STARTUP", status["event"])
	}
}

func TestFormatJSONWithNetwork(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC),
		Network:   &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "MyNet"},
		Config:    Config{Broker: "tcp://localhost:1883"},
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	json.Unmarshal(data, &parsed)

	if parsed.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if parsed.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want 192.168.1.42", parsed.Status.Network.IP)
	}
	if parsed.Status.Network.SSID != "MyNet" {
		t.Errorf("Network.SSID: got %q, want MyNet", parsed.Status.Network.SSID)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.SetMetrics(metrics.New())
	var wg sync.WaitGroup

	// Writer
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			s := testSample(time.Now(), float64(i), int64(i))
			tr.RecordPulse(s)
			tr.RecordReport(s, nil)
			tr.SetMQTTConnected(i%2 == 0)
			tr.SetNetwork(&NetworkInfo{IP: "1.2.3.4"})
		}
	}()

	// Reader
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = snap.Uptime()
			_ = FormatJSON(snap)
		}
	}()

	wg.Wait()
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	return string(body)
}
