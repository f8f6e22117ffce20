package sender

import "context"

// FakeSender records sent values for test assertions.
type FakeSender struct {
	// Attempts contains every value Send was called with.
	Attempts []float64

	// Values contains the values that were "delivered".
	Values []float64

	// Payloads contains the form bodies of delivered values.
	Payloads []string

	// SendError, if set, will be returned by every Send.
	SendError error

	// Errors scripts per-call failures: call i fails with Errors[i] when non-nil.
	Errors []error
}

// NewFakeSender creates a FakeSender for testing.
func NewFakeSender() *FakeSender {
	return &FakeSender{}
}

// Send records the value.
func (f *FakeSender) Send(ctx context.Context, watts float64) error {
	i := len(f.Attempts)
	f.Attempts = append(f.Attempts, watts)

	if f.SendError != nil {
		return f.SendError
	}
	if i < len(f.Errors) && f.Errors[i] != nil {
		return f.Errors[i]
	}

	f.Values = append(f.Values, watts)
	f.Payloads = append(f.Payloads, FormatPayload(watts))
	return nil
}

// Reset clears recorded values.
func (f *FakeSender) Reset() {
	f.Attempts = nil
	f.Values = nil
	f.Payloads = nil
	f.SendError = nil
	f.Errors = nil
}
