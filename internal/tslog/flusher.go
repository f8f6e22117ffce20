package tslog

import (
	"context"
	"log"
	"time"
)

// DefaultFlushInterval bounds how many records an abrupt kill can lose.
const DefaultFlushInterval = 5000 * time.Millisecond

// RunFlusher flushes f every interval until ctx is cancelled, then flushes
// once more and returns. Flush failures are logged and never stop the loop.
func RunFlusher(ctx context.Context, f Flusher, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	return runFlusher(ctx, f, ticker.C)
}

func runFlusher(ctx context.Context, f Flusher, tick <-chan time.Time) error {
	for {
		select {
		case <-ctx.Done():
			if err := f.Flush(); err != nil {
				log.Printf("final flush error: %v", err)
			}
			return nil
		case <-tick:
			if err := f.Flush(); err != nil {
				log.Printf("flush error: %v", err)
			}
		}
	}
}
