// Package progress provides rate-limited progress logging for long ingest
// runs. The pipeline is single-threaded, so the reporter is driven inline
// rather than from a ticker goroutine.
package progress

import (
	"log"
	"time"
)

// DefaultInterval is the minimum time between progress lines.
const DefaultInterval = 5 * time.Second

// Reporter logs row throughput at most once per interval.
type Reporter struct {
	name     string
	interval time.Duration
	start    time.Time
	last     time.Time
	lastRows int64
	logf     func(format string, v ...interface{})
}

// NewReporter creates a Reporter. name labels the dataset being processed.
func NewReporter(name string, interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	now := time.Now()
	return &Reporter{
		name:     name,
		interval: interval,
		start:    now,
		last:     now,
		logf:     log.Printf,
	}
}

// Observe is called after each accepted row; it emits a progress line when
// the interval has elapsed.
func (r *Reporter) Observe(rows, skipped, bytesRead int64) {
	now := time.Now()
	elapsed := now.Sub(r.last)
	if elapsed < r.interval {
		return
	}

	rate := float64(rows-r.lastRows) / elapsed.Seconds()
	r.logf("Processing %s: %d rows (%.0f rows/s, %d skipped, %d bytes read)",
		r.name, rows, rate, skipped, bytesRead)
	r.last = now
	r.lastRows = rows
}

// Summary logs the end-of-run totals.
func (r *Reporter) Summary(rows, skipped, duplicates, bytesRead int64) {
	elapsed := time.Since(r.start)
	rate := float64(rows) / elapsed.Seconds()
	r.logf("Finished %s: %d rows in %s (%.0f rows/s, %d skipped, ~%d duplicate keys, %d bytes read)",
		r.name, rows, elapsed.Round(time.Millisecond), rate, skipped, duplicates, bytesRead)
}

// SetLogf overrides the log destination, used by tests.
func (r *Reporter) SetLogf(logf func(format string, v ...interface{})) {
	r.logf = logf
}
