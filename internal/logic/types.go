// Package logic contains pure business logic for turning meter pulses into power readings.
// This package has NO external dependencies (no GPIO, HTTP, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// CalibrationWattMs is the energy carried by one meter pulse, in watt-milliseconds.
// A pulse every 5 ms therefore means 72 W.
const CalibrationWattMs = 360.0

// ReportPeriod is the default minimum spacing between two uploads.
const ReportPeriod = 5000 * time.Millisecond

// Sample is the power derived from one edge. It is only meaningful for the
// duration of one Process call; nothing retains it except status displays.
type Sample struct {
	// Time of the edge that produced this sample
	Time time.Time
	// Milliseconds since the previous edge (since the Unix epoch for the first edge)
	IntervalMs int64
	// Instantaneous power in watts
	Watts float64
	// Whether this sample passed the report gate and should be sent
	Report bool
	// Interval was zero or negative, Watts is +Inf or negative
	Degenerate bool
}

// Counts tracks processed pulses and gated reports since startup.
type Counts struct {
	Pulses  int
	Reports int
}
