package schedule

import "time"

// Assignment is one successful placement from an auto-assign run.
type Assignment struct {
	JobID       string    `json:"job_id"`
	Reference   string    `json:"reference"`
	VehicleID   string    `json:"vehicle_id"`
	VehicleName string    `json:"vehicle_name"`
	Time        time.Time `json:"time"`
}

// Failure is one job the run could not place. Reason is the validator's
// rejection from the closest near-miss.
type Failure struct {
	JobID     string    `json:"job_id"`
	Reference string    `json:"reference"`
	Time      time.Time `json:"time"`
	Reason    string    `json:"reason"`
}

// Report aggregates one auto-assign run. Failures are a normal outcome and
// are always itemised, never raised as errors.
type Report struct {
	Date         time.Time    `json:"date"`
	Assigned     int          `json:"assigned"`
	Failed       int          `json:"failed"`
	VehiclesUsed int          `json:"vehicles_used"`
	Assignments  []Assignment `json:"assignments"`
	Failures     []Failure    `json:"failures"`
}
