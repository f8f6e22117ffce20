package gpio

import (
	"sync"
	"sync/atomic"
	"time"
)

// FakeSource is a test double that delivers scripted edges.
type FakeSource struct {
	edges     chan Edge
	dropped   atomic.Uint64
	closeOnce sync.Once

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeSource creates a FakeSource whose channel holds up to buffer edges.
func NewFakeSource(buffer int) *FakeSource {
	return &FakeSource{edges: make(chan Edge, buffer)}
}

// Emit delivers an edge at t without blocking, like the real detector.
// Returns false if the edge was dropped.
func (f *FakeSource) Emit(t time.Time) bool {
	select {
	case f.edges <- Edge{Time: t}:
		return true
	default:
		f.dropped.Add(1)
		return false
	}
}

// Send delivers an edge at t, blocking until the consumer has room.
func (f *FakeSource) Send(t time.Time) {
	f.edges <- Edge{Time: t}
}

// Finish closes the edge channel, ending any consumer loop.
func (f *FakeSource) Finish() {
	f.closeOnce.Do(func() { close(f.edges) })
}

// Edges returns the edge channel.
func (f *FakeSource) Edges() <-chan Edge {
	return f.edges
}

// Dropped returns the number of edges Emit discarded.
func (f *FakeSource) Dropped() uint64 {
	return f.dropped.Load()
}

// Close marks the source as closed.
func (f *FakeSource) Close() error {
	f.Closed = true
	return nil
}
