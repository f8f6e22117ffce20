// Package sender uploads power readings to the remote collector.
package sender

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds one upload so a hung collector cannot stall edge processing.
const DefaultTimeout = 10 * time.Second

// Sender delivers one power value to the collector.
type Sender interface {
	// Send uploads watts. Returns error if delivery fails (should not crash the process).
	Send(ctx context.Context, watts float64) error
}

var (
	// ErrInvalidEndpoint is returned when the collector URL cannot be built.
	ErrInvalidEndpoint = errors.New("invalid endpoint")

	// ErrNonFinite is returned for +Inf/NaN readings, which are never transmitted.
	ErrNonFinite = errors.New("non-finite power value")
)

// TransportError describes a failed upload.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("send to %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// FormatPayload creates the form body for a power value, e.g. "value=72.000".
func FormatPayload(watts float64) string {
	return fmt.Sprintf("value=%.3f", watts)
}

// Endpoint returns "<server>/<id>", the URL readings are posted to.
func Endpoint(server, id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: empty device id", ErrInvalidEndpoint)
	}
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q in %q", ErrInvalidEndpoint, u.Scheme, server)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host in %q", ErrInvalidEndpoint, server)
	}

	target := strings.TrimRight(server, "/") + "/" + id
	if _, err := url.Parse(target); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	return target, nil
}

// HTTPSender posts readings as application/x-www-form-urlencoded bodies.
type HTTPSender struct {
	client *http.Client
	target string
}

// NewHTTPSender creates a sender for <server>/<id>. A timeout <= 0 uses DefaultTimeout.
func NewHTTPSender(server, id string, timeout time.Duration) (*HTTPSender, error) {
	target, err := Endpoint(server, id)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPSender{
		client: &http.Client{Timeout: timeout},
		target: target,
	}, nil
}

// Target returns the URL readings are posted to.
func (s *HTTPSender) Target() string {
	return s.target
}

// Send performs one synchronous POST. The response body is drained so the
// connection can be reused; its content and status code are not interpreted.
func (s *HTTPSender) Send(ctx context.Context, watts float64) error {
	if math.IsInf(watts, 0) || math.IsNaN(watts) {
		return fmt.Errorf("%w: %v", ErrNonFinite, watts)
	}

	body := FormatPayload(watts)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.target, strings.NewReader(body))
	if err != nil {
		return &TransportError{URL: s.target, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.ContentLength = int64(len(body))

	resp, err := s.client.Do(req)
	if err != nil {
		return &TransportError{URL: s.target, Err: err}
	}
	defer resp.Body.Close()

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return &TransportError{URL: s.target, Err: fmt.Errorf("read response: %w", err)}
	}
	return nil
}
