// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// This package adapts the generic metrics.Backend interface to Prometheus by:
//
//   - Using client_golang CounterVec and SummaryVec collectors.
//   - Mapping the pipeline labels (stage, status, kind) onto Prometheus labels.
//   - Pushing collected metrics to a Prometheus Pushgateway instance instead
//     of exposing an HTTP scrape endpoint, which fits short-lived batch
//     ingestion runs.
//
// The package intentionally contains all Prometheus-specific dependencies so
// that the rest of the project remains decoupled from Prometheus and can swap
// to alternative backends (e.g. Datadog) without changes to the core.
package prompush

import (
	"fmt"

	"lazycol/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	stageCounter  *prometheus.CounterVec // "lazycol_stage_total"
	stageDuration *prometheus.SummaryVec // "lazycol_stage_duration_seconds"

	rowCounter       *prometheus.CounterVec // "lazycol_rows_total"
	partitionCounter *prometheus.CounterVec // "lazycol_partitions_total"
	sampleBytes      prometheus.Counter     // "lazycol_sample_bytes_total"
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name (often the dataset or run name).
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "lazycol"
	}

	reg := prometheus.NewRegistry()

	stageCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lazycol_stage_total",
			Help: "Total number of pipeline stage executions, partitioned by stage and status.",
		},
		[]string{"stage", "status"},
	)
	stageDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "lazycol_stage_duration_seconds",
			Help:       "Duration of pipeline stages in seconds, partitioned by stage and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"stage", "status"},
	)
	rowCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lazycol_rows_total",
			Help: "Row-level counts per stage (read, write).",
		},
		[]string{"stage"},
	)
	partitionCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lazycol_partitions_total",
			Help: "Partition counts per kind (planned, written, write_failed).",
		},
		[]string{"kind"},
	)
	sampleBytes := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lazycol_sample_bytes_total",
			Help: "Bytes consumed by schema sampling.",
		},
	)

	for _, c := range []prometheus.Collector{stageCounter, stageDuration, rowCounter, partitionCounter, sampleBytes} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register collector: %w", err)
		}
	}

	return &Backend{
		gatewayURL:       gatewayURL,
		jobName:          jobName,
		reg:              reg,
		stageCounter:     stageCounter,
		stageDuration:    stageDuration,
		rowCounter:       rowCounter,
		partitionCounter: partitionCounter,
		sampleBytes:      sampleBytes,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case "lazycol_stage_total":
		b.stageCounter.WithLabelValues(labels["stage"], labels["status"]).Add(delta)
	case "lazycol_rows_total":
		b.rowCounter.WithLabelValues(labels["stage"]).Add(delta)
	case "lazycol_partitions_total":
		b.partitionCounter.WithLabelValues(labels["kind"]).Add(delta)
	case "lazycol_sample_bytes_total":
		b.sampleBytes.Add(delta)
	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != "lazycol_stage_duration_seconds" {
		return
	}
	b.stageDuration.WithLabelValues(labels["stage"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
