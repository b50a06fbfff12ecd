// Package metrics records recommender activity in Prometheus format. The CLI
// has no listener, so metrics are flushed to a node_exporter textfile.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "job_recommender"

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Recorder is safe to use as nil; every method then does nothing.
type Recorder struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	stageErrors *prometheus.CounterVec
	candidates  prometheus.Histogram
	catalogJobs *prometheus.GaugeVec
	buildJobs   *prometheus.CounterVec
}

// NewRecorder registers the recommender metrics on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Engine operations by outcome",
		},
		[]string{"operation", "status"},
	)

	r.latency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Engine operation latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"operation"},
	)

	r.stageErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_errors_total",
			Help:      "Embedding and search failures",
		},
		[]string{"stage", "timeout"},
	)

	r.candidates = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "candidates_retrieved",
			Help:      "Nearest neighbours fetched per recommendation",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		},
	)

	r.catalogJobs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_jobs",
			Help:      "Jobs in the active catalog",
		},
		[]string{"version"},
	)

	r.buildJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "build_records_total",
			Help:      "Corpus records seen by catalog build steps",
		},
		[]string{"step", "outcome"},
	)

	r.registry.MustRegister(
		r.requests,
		r.latency,
		r.stageErrors,
		r.candidates,
		r.catalogJobs,
		r.buildJobs,
	)

	return r
}

// ObserveRequest counts one engine operation and its latency.
func (r *Recorder) ObserveRequest(operation string, d time.Duration, err error) {
	if r == nil {
		return
	}

	status := StatusSuccess
	if err != nil {
		status = StatusError
	}

	r.requests.WithLabelValues(operation, status).Inc()
	r.latency.WithLabelValues(operation).Observe(d.Seconds())
}

func (r *Recorder) StageError(stage string, timeout bool) {
	if r == nil {
		return
	}
	r.stageErrors.WithLabelValues(stage, fmt.Sprint(timeout)).Inc()
}

func (r *Recorder) Candidates(n int) {
	if r == nil {
		return
	}
	r.candidates.Observe(float64(n))
}

// CatalogLoaded replaces the active catalog gauge with the given version.
func (r *Recorder) CatalogLoaded(version string, jobs int) {
	if r == nil {
		return
	}
	r.catalogJobs.Reset()
	r.catalogJobs.WithLabelValues(version).Set(float64(jobs))
}

// BuildStep records how many records a build step kept and dropped.
func (r *Recorder) BuildStep(step string, kept, dropped int) {
	if r == nil {
		return
	}
	r.buildJobs.WithLabelValues(step, "kept").Add(float64(kept))
	r.buildJobs.WithLabelValues(step, "dropped").Add(float64(dropped))
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// WriteTextfile writes the current values in text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
