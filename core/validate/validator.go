// Package validate gates every vehicle-job pairing. It is the single
// authority for type compatibility, capacity caps and buffered time
// conflicts; both manual moves and the auto-scheduler go through it.
package validate

import (
	"context"
	"fmt"
	"time"

	"github.com/tyneline/dispatch/core/logger"
	"github.com/tyneline/dispatch/core/model"
	"github.com/tyneline/dispatch/core/registry"
)

// Decision is the outcome of validating a candidate placement. Rejections
// are expected results, never errors; Reason is user-displayable. NoChange
// marks an idempotent re-validation of a job already on the target vehicle.
type Decision struct {
	Accepted bool   `json:"accepted"`
	NoChange bool   `json:"no_change,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Accept returns an accepting decision.
func Accept() Decision { return Decision{Accepted: true} }

// Reject returns a rejecting decision with the given reason.
func Reject(reason string) Decision { return Decision{Reason: reason} }

// Validator applies the placement rules in order, short-circuiting on the
// first failure.
type Validator struct {
	reg  registry.Registry
	caps map[string]Capability
	log  logger.Logger
}

// New creates a Validator. The capability table comes from cfg; nil registry
// or logger is an error.
func New(reg registry.Registry, cfg Config, log logger.Logger) (*Validator, error) {
	if reg == nil || log == nil {
		return nil, fmt.Errorf("validate: nil parameter provided to New")
	}
	cfg.SetDefaults()
	return &Validator{reg: reg, caps: cfg.Capabilities, log: log}, nil
}

// Check validates placing job on vehicle against the snapshot without
// mutating anything. The returned error is reserved for integrity faults
// (a vehicle referencing an unknown type).
func (v *Validator) Check(snap registry.Snapshot, job model.Job, vehicle model.Vehicle) (Decision, error) {
	// Re-validating a job already on the target vehicle is a no-op accept.
	if job.VehicleID == vehicle.ID {
		return Decision{Accepted: true, NoChange: true}, nil
	}

	vt, err := snap.TypeOf(vehicle)
	if err != nil {
		return Decision{}, err
	}

	if d := v.checkCompatibility(job, vt); !d.Accepted {
		return d, nil
	}
	if d := v.checkTimeConflict(snap, job, vehicle); !d.Accepted {
		return d, nil
	}
	return Accept(), nil
}

// checkCompatibility applies the capability table when the type has an
// entry, otherwise the generic compatible-with and capacity checks.
func (v *Validator) checkCompatibility(job model.Job, vt model.VehicleType) Decision {
	if cap, ok := v.caps[vt.ID]; ok {
		if job.RequestedTypeID != "" && cap.Excludes(job.RequestedTypeID) {
			return Reject("Vehicle type mismatch")
		}
		max := cap.MaxPassengers
		if max <= 0 {
			max = vt.Capacity
		}
		if job.Passengers > max {
			return Reject("Capacity exceeded")
		}
		return Accept()
	}
	if !vt.Carries(job.RequestedTypeID) {
		return Reject("Vehicle type mismatch")
	}
	if vt.Capacity > 0 && job.Passengers > vt.Capacity {
		return Reject("Capacity exceeded")
	}
	return Accept()
}

// checkTimeConflict rejects when the candidate's buffered window overlaps
// any other job already on the vehicle. The snapshot holds a single
// calendar day, so all comparisons are same-day by construction.
func (v *Validator) checkTimeConflict(snap registry.Snapshot, job model.Job, vehicle model.Vehicle) Decision {
	for _, other := range snap.JobsForVehicle(vehicle.ID) {
		if other.ID == job.ID {
			continue
		}
		if job.Overlaps(other) {
			return Reject(fmt.Sprintf("Time conflict at %s", other.Start.Format("15:04")))
		}
	}
	return Accept()
}

// Allocate is the manual-move path: it acquires the vehicle-day lock, takes
// a fresh snapshot, validates, and persists the assignment only on accept.
// A rejected move leaves the prior assignment intact.
func (v *Validator) Allocate(ctx context.Context, jobID, vehicleID string, date time.Time) (Decision, error) {
	unlock := v.reg.Lock(vehicleID, date)
	defer unlock()

	snap, err := v.reg.Snapshot(ctx, date)
	if err != nil {
		return Decision{}, err
	}
	job, ok := snap.Job(jobID)
	if !ok {
		return Decision{}, fmt.Errorf("%w: %s", registry.ErrJobNotFound, jobID)
	}
	vehicle, ok := snap.Vehicle(vehicleID)
	if !ok {
		return Decision{}, fmt.Errorf("%w: %s", registry.ErrVehicleNotFound, vehicleID)
	}

	d, err := v.Check(snap, job, vehicle)
	if err != nil || !d.Accepted {
		return d, err
	}
	if d.NoChange {
		// Idempotent re-validation: no write.
		return d, nil
	}
	if err := v.reg.AssignVehicle(ctx, jobID, vehicleID); err != nil {
		return Decision{}, err
	}
	v.log.Debugw("job allocated", map[string]any{"job": job.Reference, "vehicle": vehicleID})
	return d, nil
}
