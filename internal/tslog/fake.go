package tslog

import "sync"

// FakeRecorder records stored timestamps for test assertions.
// It is safe for concurrent use since the flusher runs on its own goroutine.
type FakeRecorder struct {
	mu sync.Mutex

	// Stored contains all timestamps accepted by Store.
	Stored []int64

	// Flushes counts successful Flush calls.
	Flushes int

	// StoreError, if set, will be returned by Store (nothing is recorded).
	StoreError error

	// FlushError, if set, will be returned by Flush.
	FlushError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeRecorder creates a FakeRecorder for testing.
func NewFakeRecorder() *FakeRecorder {
	return &FakeRecorder{}
}

// Store records ms.
func (f *FakeRecorder) Store(ms int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StoreError != nil {
		return &StorageError{Op: "store", Err: f.StoreError}
	}
	f.Stored = append(f.Stored, ms)
	return nil
}

// Flush counts the call.
func (f *FakeRecorder) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FlushError != nil {
		return &StorageError{Op: "flush", Err: f.FlushError}
	}
	f.Flushes++
	return nil
}

// Close marks the recorder as closed.
func (f *FakeRecorder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// SetStoreError changes the Store error while other goroutines may be running.
func (f *FakeRecorder) SetStoreError(err error) {
	f.mu.Lock()
	f.StoreError = err
	f.mu.Unlock()
}

// Snapshot returns a copy of the stored timestamps and the flush count.
func (f *FakeRecorder) Snapshot() ([]int64, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int64, len(f.Stored))
	copy(out, f.Stored)
	return out, f.Flushes
}
