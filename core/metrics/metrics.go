// Package metrics defines the sink interface the engine records allocation
// outcomes to. Implementations live under infra/metrics.
package metrics

import "time"

// AllocationRecord captures one placement decision, accepted or not.
type AllocationRecord struct {
	JobID     string
	Reference string
	VehicleID string
	Day       string
	Accepted  bool
	Reason    string // rejection reason when not accepted
	Auto      bool
	Timestamp time.Time
}

// RunRecord summarises one whole-day auto-assign run.
type RunRecord struct {
	Day           string
	Assigned      int
	Failed        int
	VehiclesUsed  int
	LoadImbalance float64 // stddev of per-vehicle job counts after the run
	Duration      time.Duration
	Timestamp     time.Time
}

// Sink persists allocation metrics. Implementations must be safe for
// concurrent use.
type Sink interface {
	RecordAllocations([]AllocationRecord) error
	RecordRun(RunRecord) error
}

// NopSink discards all records.
type NopSink struct{}

func (NopSink) RecordAllocations([]AllocationRecord) error { return nil }
func (NopSink) RecordRun(RunRecord) error                  { return nil }
