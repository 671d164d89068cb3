package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tyneline/dispatch/core/model"
)

var (
	ErrJobNotFound         = errors.New("registry: job not found")
	ErrVehicleNotFound     = errors.New("registry: vehicle not found")
	ErrVehicleTypeNotFound = errors.New("registry: vehicle type not found")
	ErrDriverNotFound      = errors.New("registry: driver not found")
)

// Registry is the persistence boundary for fleet reference data and the
// per-day schedule. Implementations must provide serializability per
// vehicle-day: two concurrent placements on the same vehicle and overlapping
// window must not both succeed. Callers acquire the vehicle-day lock via
// Lock before a validate-and-assign sequence.
type Registry interface {
	// Snapshot returns a versioned read of one calendar day's schedule.
	Snapshot(ctx context.Context, date time.Time) (Snapshot, error)

	// AssignVehicle persists a job's assigned-vehicle field and marks the
	// job assigned.
	AssignVehicle(ctx context.Context, jobID, vehicleID string) error

	// SetFare records a fare computed at allocation time.
	SetFare(ctx context.Context, jobID string, fare float64) error

	// AssignDriver persists a daily driver-vehicle pairing.
	AssignDriver(ctx context.Context, a model.DailyDriverAssignment) error

	// DriverFor resolves the driver paired with a vehicle on a date.
	DriverFor(ctx context.Context, vehicleID string, date time.Time) (model.Driver, error)

	// Lock acquires the (vehicle, date) lock and returns its release func.
	Lock(vehicleID string, date time.Time) func()
}

// Snapshot is an explicit, versioned view of one day's schedule. The version
// increases on every mutation of that day, letting callers detect staleness.
type Snapshot struct {
	Date     time.Time
	Version  uint64
	Vehicles []model.Vehicle
	Types    map[string]model.VehicleType
	Jobs     []model.Job
}

// Job finds a job in the snapshot by ID.
func (s Snapshot) Job(id string) (model.Job, bool) {
	for _, j := range s.Jobs {
		if j.ID == id {
			return j, true
		}
	}
	return model.Job{}, false
}

// Vehicle finds a vehicle by ID.
func (s Snapshot) Vehicle(id string) (model.Vehicle, bool) {
	for _, v := range s.Vehicles {
		if v.ID == id {
			return v, true
		}
	}
	return model.Vehicle{}, false
}

// JobsForVehicle returns the schedulable jobs currently placed on a vehicle.
// Cancelled and completed jobs never participate in conflict checks.
func (s Snapshot) JobsForVehicle(vehicleID string) []model.Job {
	var out []model.Job
	for _, j := range s.Jobs {
		if j.VehicleID == vehicleID && j.Schedulable() {
			out = append(out, j)
		}
	}
	return out
}

// Unassigned returns the schedulable jobs with no vehicle, ordered as stored.
func (s Snapshot) Unassigned() []model.Job {
	var out []model.Job
	for _, j := range s.Jobs {
		if !j.Assigned() && j.Schedulable() {
			out = append(out, j)
		}
	}
	return out
}

// TypeOf resolves a vehicle's type. A missing type is an integrity fault:
// the vehicle references reference data absent from the registry.
func (s Snapshot) TypeOf(v model.Vehicle) (model.VehicleType, error) {
	t, ok := s.Types[v.TypeID]
	if !ok {
		return model.VehicleType{}, fmt.Errorf("%w: vehicle %s references type %q", ErrVehicleTypeNotFound, v.ID, v.TypeID)
	}
	return t, nil
}
