package schedule

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// reasonCategory collapses user-displayable rejection reasons to a bounded
// label set. Timestamped conflict texts would otherwise mint a label value
// per minute of the day.
func reasonCategory(reason string) string {
	switch {
	case strings.HasPrefix(reason, "Time conflict"):
		return "conflict"
	case reason == "Capacity exceeded":
		return "capacity"
	case reason == "Vehicle type mismatch":
		return "type_mismatch"
	default:
		return "no_vehicle"
	}
}

var (
	jobsAssigned   *prometheus.CounterVec
	jobsRejected   *prometheus.CounterVec
	autoAssignRuns prometheus.Counter
	runLatency     prometheus.Histogram
	loadImbalance  prometheus.Gauge
	unplacedPerRun prometheus.Gauge
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.CounterVec, prometheus.Counter, prometheus.Histogram, prometheus.Gauge, prometheus.Gauge) {
	assigned := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_assigned_total",
			Help: "Number of jobs placed on a vehicle",
		},
		[]string{"mode"},
	)
	rejected := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_rejected_total",
			Help: "Number of placement attempts rejected by the validator",
		},
		[]string{"category"},
	)
	runs := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auto_assign_runs_total",
			Help: "Number of whole-day auto-assign runs",
		},
	)
	latency := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "auto_assign_run_seconds",
			Help:    "Duration of whole-day auto-assign runs",
			Buckets: prometheus.DefBuckets,
		},
	)
	imbalance := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleet_load_imbalance",
			Help: "Standard deviation of per-vehicle job counts after the last run",
		},
	)
	unplaced := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "auto_assign_unplaced_jobs",
			Help: "Jobs left unplaced by the last auto-assign run",
		},
	)
	return assigned, rejected, runs, latency, imbalance, unplaced
}

func init() {
	jobsAssigned, jobsRejected, autoAssignRuns, runLatency, loadImbalance, unplacedPerRun = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers schedule metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(jobsAssigned, jobsRejected, autoAssignRuns, runLatency, loadImbalance, unplacedPerRun)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	jobsAssigned, jobsRejected, autoAssignRuns, runLatency, loadImbalance, unplacedPerRun = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
