// Package mqtt mirrors power reports and daemon lifecycle events to an MQTT broker.
package mqtt

import (
	"encoding/json"
	"errors"
	"math"
	"time"
)

// TopicPower is the MQTT topic power reports are mirrored to.
const TopicPower = "energy/powermeter/sensor/power"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "energy/powermeter/sensor/system"

// ErrNonFinite is returned when a reading has no representable power value.
var ErrNonFinite = errors.New("mqtt: non-finite power value")

// Publisher publishes readings and system events to MQTT.
type Publisher interface {
	// Publish sends one power reading.
	// Returns error if publishing fails (should not crash the process).
	Publish(r Reading) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Reading is one reported power value.
type Reading struct {
	Timestamp  time.Time
	Device     string
	Watts      float64
	IntervalMs int64
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload for a reading.
type Payload struct {
	Power PowerPayload `json:"power"`
}

// PowerPayload contains the reading details.
type PowerPayload struct {
	Timestamp  string  `json:"timestamp"`
	Device     string  `json:"device"`
	Watts      float64 `json:"watts"`
	IntervalMs int64   `json:"interval_ms"`
}

// FormatPayload creates the JSON payload for a reading.
func FormatPayload(r Reading) ([]byte, error) {
	if math.IsInf(r.Watts, 0) || math.IsNaN(r.Watts) {
		return nil, ErrNonFinite
	}
	payload := Payload{
		Power: PowerPayload{
			Timestamp:  r.Timestamp.UTC().Format(time.RFC3339Nano),
			Device:     r.Device,
			Watts:      math.Round(r.Watts*1000) / 1000,
			IntervalMs: r.IntervalMs,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
