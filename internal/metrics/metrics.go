// Package metrics counts API exchanges and runs and writes them out in the
// Prometheus text format for the node_exporter textfile collector.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gitlab_user"

// Recorder holds the collectors of one invocation on a private registry
type Recorder struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	runs            *prometheus.CounterVec
	lastRun         *prometheus.GaugeVec
}

// New creates a Recorder with all collectors registered
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Total GitLab API requests.",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "GitLab API request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Reconcile runs by desired state and result.",
			},
			[]string{"state", "result"},
		),
		lastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time of the last finished run.",
			},
			[]string{"username"},
		),
	}
	r.registry.MustRegister(r.requests, r.requestDuration, r.runs, r.lastRun)
	return r
}

// ObserveRequest records one API exchange. A status of 0 means the request
// never got a response and is labelled "error".
func (r *Recorder) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	statusLabel := "error"
	if status > 0 {
		statusLabel = strconv.Itoa(status)
	}
	r.requests.WithLabelValues(method, route, statusLabel).Inc()
	r.requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Result labels for RecordRun
const (
	ResultChanged   = "changed"
	ResultUnchanged = "unchanged"
	ResultFailed    = "failed"
)

// RecordRun counts a finished run
func (r *Recorder) RecordRun(username, state, result string, at time.Time) {
	r.runs.WithLabelValues(state, result).Inc()
	r.lastRun.WithLabelValues(username).Set(float64(at.Unix()))
}

// Gatherer exposes the private registry
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile atomically writes all metrics to path
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
