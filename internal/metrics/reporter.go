package metrics

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// FormatLatencySummary renders the standard one-line summary, per
// the pipeline.
func FormatLatencySummary(p50, p99, alertsPerMin float64) string {
	return fmt.Sprintf("Latency P50: %.1fms | P99: %.1fms | Alerts/min: %.1f", p50, p99, alertsPerMin)
}

// Reporter drives the periodic latency summary log line without blocking
// the pipeline.
type Reporter struct {
	collector       *LatencyCollector
	interval        time.Duration
	rateWindow      time.Duration
	log             *zap.Logger
	lastReport      time.Time
	lastReportValid bool
}

// NewReporter constructs a Reporter for the given interval and rate window.
func NewReporter(collector *LatencyCollector, interval, rateWindow time.Duration, log *zap.Logger) *Reporter {
	return &Reporter{collector: collector, interval: interval, rateWindow: rateWindow, log: log}
}

// MaybeReport logs a latency summary if the interval has elapsed since the
// last one, and reports whether it did. Silently skips an empty collector.
func (r *Reporter) MaybeReport(now time.Time) bool {
	if r.collector.Len() == 0 {
		return false
	}
	if r.lastReportValid && now.Sub(r.lastReport) < r.interval {
		return false
	}
	r.lastReport = now
	r.lastReportValid = true

	summary := FormatLatencySummary(r.collector.P50(), r.collector.P99(), r.collector.AlertsPerMin(now, r.rateWindow))
	if r.log != nil {
		r.log.Info(summary)
	}
	return true
}
