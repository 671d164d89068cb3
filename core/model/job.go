package model

import "time"

// JobStatus describes where a booking sits in its lifecycle.
type JobStatus int

const (
	StatusPending JobStatus = iota
	StatusAssigned
	StatusInProgress
	StatusCompleted
	StatusCancelled
)

// String returns the wire representation of the status.
func (s JobStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusAssigned:
		return "assigned"
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// JobStatusFromString parses a wire status. Unknown values map to pending.
func JobStatusFromString(s string) (JobStatus, bool) {
	switch s {
	case "pending":
		return StatusPending, true
	case "assigned":
		return StatusAssigned, true
	case "in_progress":
		return StatusInProgress, true
	case "completed":
		return StatusCompleted, true
	case "cancelled":
		return StatusCancelled, true
	default:
		return StatusPending, false
	}
}

const (
	// DefaultJobDuration applies when a booking carries no duration.
	DefaultJobDuration = 60 * time.Minute

	// ConflictBuffer pads a job's scheduled end for conflict checking only.
	// It is never billed or displayed.
	ConflictBuffer = 15 * time.Minute
)

// Job is a single booking. VehicleID is empty while the job is unassigned.
type Job struct {
	ID              string    `json:"id"`
	Reference       string    `json:"reference"`
	Pickup          string    `json:"pickup"`
	Dropoff         string    `json:"dropoff"`
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"duration_minutes,omitempty"`
	Passengers      int       `json:"passengers"`
	RequestedTypeID string    `json:"requested_type_id,omitempty"`
	VehicleID       string    `json:"vehicle_id,omitempty"`
	Status          JobStatus `json:"status"`
	Fare            *float64  `json:"fare,omitempty"`
	Return          bool      `json:"return"` // return-inclusive journey
	ClientID        string    `json:"client_id,omitempty"`
}

// Duration returns the scheduled duration, defaulting when absent.
func (j Job) Duration() time.Duration {
	if j.DurationMinutes <= 0 {
		return DefaultJobDuration
	}
	return time.Duration(j.DurationMinutes) * time.Minute
}

// Assigned reports whether the job is placed on a vehicle.
func (j Job) Assigned() bool { return j.VehicleID != "" }

// Window returns the buffered conflict-checking interval
// [start, start+duration+buffer).
func (j Job) Window() (time.Time, time.Time) {
	return j.Start, j.Start.Add(j.Duration() + ConflictBuffer)
}

// Overlaps reports whether the buffered windows of j and other intersect.
func (j Job) Overlaps(other Job) bool {
	s1, e1 := j.Window()
	s2, e2 := other.Window()
	return !(e1.Before(s2) || e1.Equal(s2) || s1.After(e2) || s1.Equal(e2))
}

// Schedulable reports whether the job still competes for a vehicle.
func (j Job) Schedulable() bool {
	return j.Status != StatusCancelled && j.Status != StatusCompleted
}
