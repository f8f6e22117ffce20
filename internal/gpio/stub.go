//go:build !linux

package gpio

import (
	"errors"
	"time"
)

// RealSource is not available on non-Linux platforms.
type RealSource struct{}

// NewRealSource returns an error on non-Linux platforms.
func NewRealSource(chipName string, pin int, debounce time.Duration, buffer int) (*RealSource, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Edges is not implemented on non-Linux platforms.
func (s *RealSource) Edges() <-chan Edge {
	return nil
}

// Dropped is not implemented on non-Linux platforms.
func (s *RealSource) Dropped() uint64 {
	return 0
}

// Close is not implemented on non-Linux platforms.
func (s *RealSource) Close() error {
	return nil
}
