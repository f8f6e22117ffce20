package mqtt

import "sync"

// FakePublisher captures readings and system events in memory.
// Fields may be read directly once the publishing goroutine has finished;
// use Counts while it is still running.
type FakePublisher struct {
	mu sync.Mutex

	Readings       []Reading
	Payloads       [][]byte
	SystemEvents   []SystemEvent
	SystemPayloads [][]byte

	// Injected failures; a failed call records nothing.
	PublishError       error
	PublishSystemError error

	Closed    bool
	Connected bool
}

// NewFakePublisher returns an empty, disconnected FakePublisher.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish formats r and keeps it.
func (f *FakePublisher) Publish(r Reading) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatPayload(r)
	if err != nil {
		return err
	}
	f.Readings = append(f.Readings, r)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishSystem formats event and keeps it.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// Counts returns how many readings and system events were kept.
func (f *FakePublisher) Counts() (readings, events int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Readings), len(f.SystemEvents)
}

func (f *FakePublisher) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}
