package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Metrics holds the counters a sync run produces. The CLI is short-lived, so
// instead of serving a scrape endpoint the counters are dumped to a textfile
// at the end of a run, in the format the node exporter textfile collector
// reads.
type Metrics struct {
	registry *prometheus.Registry

	// ProviderCalls counts remote API calls by operation and outcome.
	ProviderCalls *prometheus.CounterVec

	// SyncActions counts executed plan actions by resource kind and action.
	SyncActions *prometheus.CounterVec

	// CheckpointWrites counts checkpoint persist operations.
	CheckpointWrites prometheus.Counter

	// RunDuration observes wall-clock duration of full runs in seconds.
	RunDuration *prometheus.HistogramVec
}

// NewMetrics creates a metrics set backed by its own registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		ProviderCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rbxsync",
				Name:      "provider_calls_total",
				Help:      "Remote API calls by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		SyncActions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rbxsync",
				Name:      "sync_actions_total",
				Help:      "Executed plan actions by resource kind and action.",
			},
			[]string{"kind", "action"},
		),
		CheckpointWrites: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "rbxsync",
				Name:      "checkpoint_writes_total",
				Help:      "Checkpoint persist operations.",
			},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "rbxsync",
				Name:      "run_duration_seconds",
				Help:      "Wall-clock duration of full runs.",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"command"},
		),
	}

	registry.MustRegister(
		m.ProviderCalls,
		m.SyncActions,
		m.CheckpointWrites,
		m.RunDuration,
	)
	return m
}

// WriteTextfile dumps the current counter values to path in the Prometheus
// text exposition format. The file is replaced atomically via a rename.
func (m *Metrics) WriteTextfile(path string) error {
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".rbxsync-metrics-*.prom")
	if err != nil {
		return fmt.Errorf("failed to create metrics file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := expfmt.NewEncoder(tmp, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range families {
		if err := enc.Encode(family); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to encode metrics: %w", err)
		}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}
