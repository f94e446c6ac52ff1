package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"hqe/internal/domain"
	"hqe/internal/errs"
	"hqe/internal/events"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts test case outcomes and writes them in the Prometheus text
// format when the run finishes.
type Metrics struct {
	registry    *prometheus.Registry
	cases       *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	annotations *prometheus.CounterVec
	runDuration prometheus.Gauge
	path        string
}

// NewMetrics creates the collectors on a private registry. path may be
// empty, in which case nothing is written.
func NewMetrics(path string) *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		cases: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hqe_test_cases_total",
			Help: "Test cases by terminal status and error kind",
		}, []string{"status", "kind"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hqe_test_case_duration_seconds",
			Help:    "Test case duration",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"status"}),
		annotations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hqe_annotations_total",
			Help: "Labels and steps recorded",
		}, []string{"kind"}),
		runDuration: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hqe_run_duration_seconds",
			Help: "Wall time of the last run",
		}),
		path: path,
	}
}

// Handle implements events.Listener.
func (m *Metrics) Handle(ctx context.Context, ev events.Event) error {
	switch ev.Kind {
	case events.Label, events.Step:
		m.annotations.WithLabelValues(string(ev.Kind)).Inc()
	case events.CaseFinished:
		if ev.Result == nil {
			return nil
		}
		r := ev.Result
		kind := "none"
		if r.Status == domain.StatusFailed {
			kind = string(errs.KindOf(r.Err))
		}
		m.cases.WithLabelValues(string(r.Status), kind).Inc()
		m.duration.WithLabelValues(string(r.Status)).Observe(r.Duration().Seconds())
	case events.RunFinished:
		if ev.Run != nil {
			m.runDuration.Set(ev.Run.Finished.Sub(ev.Run.Started).Seconds())
		}
		return m.Write()
	}
	return nil
}

// Write writes the textfile, if a path is configured.
func (m *Metrics) Write() error {
	if m.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(m.path, m.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
