// Package gpio delivers rising edges from the meter's pulse output.
// The real implementation uses Linux GPIO character device edge detection.
// The fake implementation allows testing without hardware.
package gpio

import "time"

// Edge is one rising edge on the pulse line, stamped when it was detected.
type Edge struct {
	Time time.Time
}

// Source delivers edges over a channel.
type Source interface {
	// Edges returns the channel edges are delivered on, one at a time in
	// detection order. Delivery never blocks the detector: when the channel
	// is full the edge is dropped and counted.
	Edges() <-chan Edge

	// Dropped returns the number of edges discarded because the consumer fell behind.
	Dropped() uint64

	// Close releases GPIO resources.
	Close() error
}

// Line defaults (BCM numbering). BCM 27 is wiringPi pin 2 on the Pi header.
const (
	DefaultChip   = "gpiochip0"
	DefaultPin    = 27
	DefaultBuffer = 64
)
