// Package metrics exposes ingestion counters and latencies to Prometheus:
//
//	optionflow_snapshots_total{outcome}
//	optionflow_cycle_failures_total{stage}
//	optionflow_option_rows_total
//	optionflow_fetch_bytes_total
//	optionflow_cycle_duration_seconds
//	optionflow_reference_conflicts_total
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"optionflow/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline collectors. A nil *Metrics records nothing.
type Metrics struct {
	SnapshotsTotal     *prometheus.CounterVec // labels: outcome
	CycleFailures      *prometheus.CounterVec // labels: stage
	OptionRows         prometheus.Counter
	FetchBytes         prometheus.Counter
	CycleDuration      prometheus.Histogram
	ReferenceConflicts prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewMetrics registers the collectors on a fresh registry together with the
// Go and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		SnapshotsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "optionflow_snapshots_total",
			Help: "Snapshots by change detector outcome",
		}, []string{"outcome"}),
		CycleFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "optionflow_cycle_failures_total",
			Help: "Failed ingestion cycles by stage",
		}, []string{"stage"}),
		OptionRows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "optionflow_option_rows_total",
			Help: "Option quotes written",
		}),
		FetchBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "optionflow_fetch_bytes_total",
			Help: "Bytes of page markup fetched",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "optionflow_cycle_duration_seconds",
			Help:    "Duration of one ingestion cycle",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ReferenceConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "optionflow_reference_conflicts_total",
			Help: "Compare-and-swap conflicts on the change reference",
		}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.SnapshotsTotal,
		m.CycleFailures,
		m.OptionRows,
		m.FetchBytes,
		m.CycleDuration,
		m.ReferenceConflicts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Snapshot(outcome string) {
	if m != nil {
		m.SnapshotsTotal.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) Failure(stage string) {
	if m != nil {
		m.CycleFailures.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) Rows(n int) {
	if m != nil {
		m.OptionRows.Add(float64(n))
	}
}

func (m *Metrics) Fetched(n int) {
	if m != nil {
		m.FetchBytes.Add(float64(n))
	}
}

func (m *Metrics) Conflict() {
	if m != nil {
		m.ReferenceConflicts.Inc()
	}
}

func (m *Metrics) ObserveCycle(d time.Duration) {
	if m != nil {
		m.CycleDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.GetLogger().WithComponent("metrics").WithFields(logger.Fields{"addr": addr}).Info("serving prometheus metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
