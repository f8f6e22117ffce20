//go:build linux

package gpio

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// RealSource watches a GPIO line for rising edges using the Linux GPIO character device.
type RealSource struct {
	chip    *gpiocdev.Chip
	line    *gpiocdev.Line
	edges   chan Edge
	dropped atomic.Uint64
	now     func() time.Time
}

// NewRealSource requests pin on chip as an input with pull-down and rising
// edge detection. A debounce > 0 enables kernel debouncing of the line.
func NewRealSource(chipName string, pin int, debounce time.Duration, buffer int) (*RealSource, error) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	s := &RealSource{
		edges: make(chan Edge, buffer),
		now:   time.Now,
	}

	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	// Idle line is held low; each pulse is one rising edge.
	opts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithPullDown,
		gpiocdev.WithRisingEdge,
		gpiocdev.WithEventHandler(s.handle),
	}
	if debounce > 0 {
		opts = append(opts, gpiocdev.WithDebounce(debounce))
	}

	line, err := chip.RequestLine(pin, opts...)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request pulse pin %d: %w", pin, err)
	}

	s.chip = chip
	s.line = line
	return s, nil
}

// handle runs on the gpiocdev watcher goroutine and must not block.
func (s *RealSource) handle(evt gpiocdev.LineEvent) {
	if evt.Type != gpiocdev.LineEventRisingEdge {
		return
	}
	select {
	case s.edges <- Edge{Time: s.now()}:
	default:
		s.dropped.Add(1)
	}
}

// Edges returns the edge channel.
func (s *RealSource) Edges() <-chan Edge {
	return s.edges
}

// Dropped returns the number of edges discarded because the channel was full.
func (s *RealSource) Dropped() uint64 {
	return s.dropped.Load()
}

// Close releases GPIO resources.
// Reconfigures the pin to input with pull-down (matching Pi boot defaults)
// before closing to leave a clean state for shutdown/reboot.
func (s *RealSource) Close() error {
	var errs []error

	if s.line != nil {
		if err := s.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pulse pin: %w", err))
		}
		if err := s.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pulse pin: %w", err))
		}
	}
	if s.chip != nil {
		if err := s.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
