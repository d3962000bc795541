// Package metrics provides a small, backend-agnostic abstraction for
// recording operational metrics from the lazy collection pipeline.
//
// The package is intentionally minimal and opinionated:
//
//   - It exposes a narrow interface (Backend) focused on counters and timing
//     data (histograms).
//   - It provides a global, pluggable backend that defaults to a no-op
//     implementation, so metrics are always safe to call even when no real
//     backend is configured.
//   - Concrete metric systems stay isolated in subpackages; the rest of the
//     codebase depends only on this interface.
//
// The instrumented stages are the pipeline phases that touch bytes: sample,
// plan, read, write.
package metrics

import "time"

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
// It is intentionally generic so we can plug in Prometheus, Datadog, etc.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStage is a convenience for the common pattern:
// measure latency + success/failure per pipeline stage (sample, plan, read,
// write).
func RecordStage(stage string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"stage":  stage,
		"status": status,
	}

	backend.IncCounter("lazycol_stage_total", 1, lbls)
	backend.ObserveHistogram("lazycol_stage_duration_seconds", d.Seconds(), lbls)
}

// RecordRows increments the row-level counter for the given stage, e.g. the
// number of records decoded by a partition read or serialized by a write.
func RecordRows(stage string, n int) {
	if n <= 0 {
		return
	}
	backend.IncCounter("lazycol_rows_total", float64(n), Labels{
		"stage": stage,
	})
}

// RecordPartitions increments the partition counter for an operation
// ("planned", "written", "write_failed").
func RecordPartitions(kind string, n int) {
	if n <= 0 {
		return
	}
	backend.IncCounter("lazycol_partitions_total", float64(n), Labels{
		"kind": kind,
	})
}

// RecordSampleBytes counts bytes consumed by schema sampling.
func RecordSampleBytes(n int) {
	if n <= 0 {
		return
	}
	backend.IncCounter("lazycol_sample_bytes_total", float64(n), nil)
}
