// Package tslog provides the append-only pulse timestamp log.
// Every observed edge is stored as one decimal Unix-millisecond line; records
// are buffered in memory and pushed to the file by Flush, which a periodic
// flusher calls independently of the edge path.
package tslog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
)

// Recorder stores pulse timestamps.
type Recorder interface {
	// Store appends one record. The record is kept even if an implicit
	// flush triggered by this call fails.
	Store(ms int64) error

	// Flush pushes buffered records to durable storage.
	Flush() error

	// Close flushes and releases the underlying storage.
	Close() error
}

// Flusher is the part of a Recorder the periodic flusher needs.
type Flusher interface {
	Flush() error
}

const (
	// DefaultBufferSize is the number of pending bytes that triggers an implicit flush.
	DefaultBufferSize = 4096

	// DefaultMaxPending caps memory held while the file cannot be written.
	DefaultMaxPending = 1 << 20
)

var (
	// ErrClosed is returned by operations on a closed log.
	ErrClosed = errors.New("tslog: log closed")

	// ErrBufferFull is returned by Store when storage has been failing long
	// enough that the pending buffer reached its cap.
	ErrBufferFull = errors.New("tslog: pending buffer full")
)

// StorageError describes a failed append or flush.
type StorageError struct {
	Op  string // "store", "flush" or "close"
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("tslog %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Log is a Recorder writing to an io.Writer, normally an O_APPEND file.
// Store and Flush share one mutex so a flush never sees half a record.
//
// A failed write does not poison the log: bytes the writer accepted are
// dropped from the buffer and the rest stay pending for the next Flush, so a
// record is neither lost nor duplicated.
type Log struct {
	mu         sync.Mutex
	w          io.Writer
	c          io.Closer
	buf        []byte
	bufSize    int
	maxPending int
	closed     bool
}

// New creates a Log writing to w. If w is an io.Closer, Close closes it.
func New(w io.Writer) *Log {
	l := &Log{
		w:          w,
		buf:        make([]byte, 0, DefaultBufferSize),
		bufSize:    DefaultBufferSize,
		maxPending: DefaultMaxPending,
	}
	if c, ok := w.(io.Closer); ok {
		l.c = c
	}
	return l
}

// Open opens (or creates) the log file at path in append mode, so history
// from earlier runs is preserved.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open timestamp log: %w", err)
	}
	return New(f), nil
}

// Store appends ms followed by a newline.
func (l *Log) Store(ms int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return &StorageError{Op: "store", Err: ErrClosed}
	}

	var rec [24]byte
	line := strconv.AppendInt(rec[:0], ms, 10)
	line = append(line, '\n')

	if len(l.buf)+len(line) > l.maxPending {
		// Storage has been failing; give it one more chance before refusing.
		if err := l.flushLocked(); err != nil && len(l.buf)+len(line) > l.maxPending {
			return &StorageError{Op: "store", Err: fmt.Errorf("%w: %v", ErrBufferFull, err)}
		}
	}

	l.buf = append(l.buf, line...)

	if len(l.buf) >= l.bufSize {
		if err := l.flushLocked(); err != nil {
			return &StorageError{Op: "flush", Err: err}
		}
	}
	return nil
}

// Flush writes all pending records.
func (l *Log) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return &StorageError{Op: "flush", Err: ErrClosed}
	}
	if err := l.flushLocked(); err != nil {
		return &StorageError{Op: "flush", Err: err}
	}
	return nil
}

func (l *Log) flushLocked() error {
	if len(l.buf) == 0 {
		return nil
	}
	n, err := l.w.Write(l.buf)
	if n > 0 {
		l.buf = l.buf[:copy(l.buf, l.buf[n:])]
	}
	if err != nil {
		return err
	}
	if len(l.buf) > 0 {
		return io.ErrShortWrite
	}
	return nil
}

// Pending returns the number of buffered bytes not yet written.
func (l *Log) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buf)
}

// Close flushes pending records and closes the underlying writer.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	var errs []error
	if err := l.flushLocked(); err != nil {
		errs = append(errs, fmt.Errorf("flush: %w", err))
	}
	if l.c != nil {
		if err := l.c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close: %w", err))
		}
	}
	if len(errs) > 0 {
		return &StorageError{Op: "close", Err: errors.Join(errs...)}
	}
	return nil
}
