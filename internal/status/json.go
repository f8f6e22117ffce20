package status

import (
	"encoding/json"
	"math"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Device        string       `json:"device"`
	Measuring     bool         `json:"measuring"`
	Power         *PowerJSON   `json:"power,omitempty"`
	LastReport    *ReportJSON  `json:"last_report,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// PowerJSON is the most recent sample. Watts is omitted when not finite.
type PowerJSON struct {
	Watts      *float64 `json:"watts,omitempty"`
	IntervalMs int64    `json:"interval_ms"`
	Timestamp  string   `json:"timestamp"`
	Degenerate bool     `json:"degenerate,omitempty"`
}

// ReportJSON is the most recent upload attempt.
type ReportJSON struct {
	Timestamp string   `json:"timestamp"`
	Watts     *float64 `json:"watts,omitempty"`
	OK        bool     `json:"ok"`
	Error     string   `json:"error,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of activity counts.
type CountsJSON struct {
	Pulses         int    `json:"pulses"`
	Reports        int    `json:"reports"`
	ReportFailures int    `json:"report_failures"`
	LogFailures    int    `json:"log_failures"`
	DroppedEdges   uint64 `json:"dropped_edges"`
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
	Endpoint      string `json:"endpoint"`
	Pin           int    `json:"pin"`
	LogFile       string `json:"log_file"`
	FlushMs       int64  `json:"flush_ms"`
	ReportMs      int64  `json:"report_ms"`
	SendTimeoutMs int64  `json:"send_timeout_ms"`
	HeartbeatMs   int64  `json:"heartbeat_ms"`
	Broker        string `json:"broker,omitempty"`
	HTTPAddr      string `json:"http_addr,omitempty"`
}

func finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Device:        snap.Config.DeviceID,
		Measuring:     snap.HasSample,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Pulses:         snap.Counts.Pulses,
			Reports:        snap.Counts.Reports,
			ReportFailures: snap.Counts.ReportFailures,
			LogFailures:    snap.Counts.LogFailures,
			DroppedEdges:   snap.Counts.DroppedEdges,
		},
		Config: ConfigJSON{
			Endpoint:      snap.Config.Endpoint,
			Pin:           snap.Config.Pin,
			LogFile:       snap.Config.LogFile,
			FlushMs:       snap.Config.FlushMs,
			ReportMs:      snap.Config.ReportMs,
			SendTimeoutMs: snap.Config.SendTimeoutMs,
			HeartbeatMs:   snap.Config.HeartbeatMs,
			Broker:        snap.Config.Broker,
			HTTPAddr:      snap.Config.HTTPAddr,
		},
	}

	if snap.HasSample {
		inner.Power = &PowerJSON{
			Watts:      finite(snap.LastSample.Watts),
			IntervalMs: snap.LastSample.IntervalMs,
			Timestamp:  snap.LastSample.Time.UTC().Format(time.RFC3339Nano),
			Degenerate: snap.LastSample.Degenerate,
		}
	}
	if r := snap.LastReport; r != nil {
		inner.LastReport = &ReportJSON{
			Timestamp: r.Time.UTC().Format(time.RFC3339Nano),
			Watts:     finite(r.Watts),
			OK:        r.Error == "",
			Error:     r.Error,
		}
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
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
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
