package metrics

import coremetrics "github.com/tyneline/dispatch/core/metrics"

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordAllocations forwards to all sinks, returning the first error.
func (m *MultiSink) RecordAllocations(recs []coremetrics.AllocationRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordAllocations(recs); err != nil {
			return err
		}
	}
	return nil
}

// RecordRun forwards to all sinks, returning the first error.
func (m *MultiSink) RecordRun(r coremetrics.RunRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordRun(r); err != nil {
			return err
		}
	}
	return nil
}
