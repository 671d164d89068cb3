// Package metrics provides the concrete allocation-metrics sinks: Prometheus
// counters, InfluxDB line protocol and a fan-out combinator.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/tyneline/dispatch/core/metrics"
)

// PromSink records allocation outcomes in Prometheus metrics.
type PromSink struct {
	allocations *prometheus.CounterVec
	runDuration prometheus.Histogram
	unplaced    prometheus.Gauge
}

// NewPromSink registers allocation metrics on the provided registerer. If reg
// is nil, the default registerer is used. Already-registered collectors are
// reused so repeated construction is safe.
func NewPromSink(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	allocations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "allocation_records_total",
		Help: "Total number of recorded allocation decisions",
	}, []string{"accepted", "auto"})
	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "allocation_run_duration_seconds",
		Help:    "Duration of recorded auto-assign runs",
		Buckets: prometheus.DefBuckets,
	})
	unplaced := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "allocation_run_unplaced",
		Help: "Jobs left unplaced by the last recorded run",
	})

	if err := reg.Register(allocations); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			allocations = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(runDuration); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			runDuration = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(unplaced); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			unplaced = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}

	return &PromSink{allocations: allocations, runDuration: runDuration, unplaced: unplaced}, nil
}

// RecordAllocations increments the decision counter per record.
func (s *PromSink) RecordAllocations(recs []coremetrics.AllocationRecord) error {
	for _, r := range recs {
		s.allocations.WithLabelValues(strconv.FormatBool(r.Accepted), strconv.FormatBool(r.Auto)).Inc()
	}
	return nil
}

// RecordRun observes the run duration and the unplaced gauge.
func (s *PromSink) RecordRun(r coremetrics.RunRecord) error {
	s.runDuration.Observe(r.Duration.Seconds())
	s.unplaced.Set(float64(r.Failed))
	return nil
}
