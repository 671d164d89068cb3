// Package events defines the typed events the engine publishes on the
// in-process bus. Subscribers include the dispatch-board feed and tests.
package events

import "time"

// JobAssigned fires when a placement is accepted and persisted.
type JobAssigned struct {
	JobID     string
	Reference string
	VehicleID string
	Start     time.Time
	Auto      bool // true when placed by the auto-scheduler
}

// JobRejected fires when a placement attempt is refused.
type JobRejected struct {
	JobID     string
	Reference string
	VehicleID string
	Reason    string
	Auto      bool
}

// AutoAssignCompleted summarises one whole-day auto-assign run.
type AutoAssignCompleted struct {
	Date         time.Time
	Assigned     int
	Failed       int
	VehiclesUsed int
}
