package logic

import (
	"sync"
	"time"
)

// Engine holds the pulse-timing state: when the last edge was seen and when
// the next computed value becomes eligible for upload.
//
// Edges are expected to arrive serially from a single loop; the mutex only
// keeps status readers and an overlapping caller from seeing torn state.
type Engine struct {
	mu             sync.Mutex
	reportPeriodMs int64
	lastEdgeMs     int64 // 0 = no edge seen yet
	nextReportMs   int64
	counts         Counts
	last           Sample
}

// NewEngine creates an engine whose first report becomes eligible strictly
// after start. A reportPeriod <= 0 falls back to ReportPeriod.
func NewEngine(start time.Time, reportPeriod time.Duration) *Engine {
	if reportPeriod <= 0 {
		reportPeriod = ReportPeriod
	}
	return &Engine{
		reportPeriodMs: reportPeriod.Milliseconds(),
		nextReportMs:   start.UnixMilli(),
	}
}

// Estimate converts the interval between two edges into watts.
// A zero interval yields +Inf; callers must tolerate it.
func Estimate(lastMs, nowMs int64) float64 {
	return CalibrationWattMs / float64(nowMs-lastMs)
}

// ShouldReport reports whether a value computed at nowMs may be sent.
// The comparison is strict: a value computed exactly at nextMs does not qualify.
func ShouldReport(nowMs, nextMs int64) bool {
	return nowMs > nextMs
}

// Process handles one edge observed at now and returns the derived sample.
// The last-edge time is always advanced to now. When the sample passes the
// report gate the next eligibility point is moved to now+period before
// returning, so send latency does not shift it.
//
// The very first edge measures against the Unix epoch and produces a
// meaningless tiny value; this is accepted as a startup artifact.
func (e *Engine) Process(now time.Time) Sample {
	nowMs := now.UnixMilli()

	e.mu.Lock()
	defer e.mu.Unlock()

	interval := nowMs - e.lastEdgeMs
	s := Sample{
		Time:       now,
		IntervalMs: interval,
		Watts:      Estimate(e.lastEdgeMs, nowMs),
		Degenerate: interval <= 0,
	}
	e.lastEdgeMs = nowMs
	e.counts.Pulses++

	if ShouldReport(nowMs, e.nextReportMs) {
		e.nextReportMs = nowMs + e.reportPeriodMs
		e.counts.Reports++
		s.Report = true
	}

	e.last = s
	return s
}

// LastEdge returns the Unix-millisecond time of the most recent edge, or 0.
func (e *Engine) LastEdge() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastEdgeMs
}

// NextReport returns the Unix-millisecond time after which the next sample may be reported.
func (e *Engine) NextReport() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nextReportMs
}

// CountsSnapshot returns a copy of the pulse and report counters.
func (e *Engine) CountsSnapshot() Counts {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counts
}

// LastSample returns the most recent sample and whether any edge was processed.
func (e *Engine) LastSample() (Sample, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last, e.counts.Pulses > 0
}
