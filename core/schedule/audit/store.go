// Package audit persists every allocation decision for after-the-fact
// review. Records are append-only and queryable by time range, vehicle and
// record kind.
package audit

import (
	"context"
	"time"
)

// Record kinds.
const (
	KindAllocate   = "allocate"
	KindAutoAssign = "auto_assign"
)

// Record is one audit entry. Allocation entries carry the job and vehicle
// fields; auto-assign run entries carry the aggregate counts.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	Day       string    `json:"day"`

	JobID        string `json:"job_id,omitempty"`
	JobReference string `json:"job_reference,omitempty"`
	VehicleID    string `json:"vehicle_id,omitempty"`
	Accepted     bool   `json:"accepted,omitempty"`
	Auto         bool   `json:"auto,omitempty"`
	Reason       string `json:"reason,omitempty"`

	Assigned     int `json:"assigned,omitempty"`
	Failed       int `json:"failed,omitempty"`
	VehiclesUsed int `json:"vehicles_used,omitempty"`
}

// Query defines filters for retrieving records. Zero fields match all.
type Query struct {
	Start     time.Time
	End       time.Time
	VehicleID string
	Kind      string
}

// matches reports whether the record passes the query filters.
func (q Query) matches(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.VehicleID != "" && r.VehicleID != q.VehicleID {
		return false
	}
	if q.Kind != "" && r.Kind != q.Kind {
		return false
	}
	return true
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}
