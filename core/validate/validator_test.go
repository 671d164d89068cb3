package validate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tyneline/dispatch/core/model"
	"github.com/tyneline/dispatch/core/registry"
	"github.com/tyneline/dispatch/infra/logger"
)

func at(h, m int) time.Time {
	return time.Date(2025, 3, 10, h, m, 0, 0, time.UTC)
}

func fleet() *registry.Memory {
	reg := registry.NewMemory()
	reg.AddVehicleType(model.VehicleType{ID: "saloon", Name: "Saloon", Capacity: 4})
	reg.AddVehicleType(model.VehicleType{ID: "mpv", Name: "MPV", Capacity: 8})
	reg.AddVehicleType(model.VehicleType{ID: "minibus", Name: "Minibus", Capacity: 16})
	reg.AddVehicleType(model.VehicleType{ID: "estate", Name: "Estate", Capacity: 4, CompatibleWith: []string{"saloon"}})
	reg.AddVehicle(model.Vehicle{ID: "car-1", TypeID: "saloon"})
	reg.AddVehicle(model.Vehicle{ID: "car-2", TypeID: "mpv"})
	reg.AddVehicle(model.Vehicle{ID: "bus-1", TypeID: "minibus"})
	reg.AddVehicle(model.Vehicle{ID: "est-1", TypeID: "estate"})
	return reg
}

func newValidator(t *testing.T, reg *registry.Memory) *Validator {
	t.Helper()
	v, err := New(reg, Config{}, logger.NopLogger{})
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}
	return v
}

func snapshot(t *testing.T, reg *registry.Memory) registry.Snapshot {
	t.Helper()
	snap, err := reg.Snapshot(context.Background(), at(0, 0))
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	return snap
}

func TestSaloonPassengerCap(t *testing.T) {
	reg := fleet()
	v := newValidator(t, reg)
	snap := snapshot(t, reg)
	car, _ := snap.Vehicle("car-1")

	d, err := v.Check(snap, model.Job{ID: "j1", Passengers: 4, Start: at(9, 0)}, car)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if d.Accepted || d.Reason != "Capacity exceeded" {
		t.Fatalf("4 passengers on a saloon must be rejected, got %+v", d)
	}

	d, err = v.Check(snap, model.Job{ID: "j2", Passengers: 3, Start: at(9, 0)}, car)
	if err != nil || !d.Accepted {
		t.Fatalf("3 passengers on a free saloon must be accepted, got %+v err %v", d, err)
	}
}

func TestMPVPassengerCap(t *testing.T) {
	reg := fleet()
	v := newValidator(t, reg)
	snap := snapshot(t, reg)
	mpv, _ := snap.Vehicle("car-2")

	if d, _ := v.Check(snap, model.Job{ID: "j1", Passengers: 9, Start: at(9, 0)}, mpv); d.Accepted {
		t.Fatalf("9 passengers on an MPV must be rejected")
	}
	if d, _ := v.Check(snap, model.Job{ID: "j2", Passengers: 8, Start: at(9, 0)}, mpv); !d.Accepted {
		t.Fatalf("8 passengers on an MPV must be accepted, got %+v", d)
	}
}

func TestLargeTypeJobsExcludedFromSmallVehicles(t *testing.T) {
	reg := fleet()
	v := newValidator(t, reg)
	snap := snapshot(t, reg)

	job := model.Job{ID: "j1", Passengers: 2, RequestedTypeID: "minibus", Start: at(9, 0)}
	for _, id := range []string{"car-1", "car-2"} {
		veh, _ := snap.Vehicle(id)
		d, err := v.Check(snap, job, veh)
		if err != nil {
			t.Fatalf("check: %v", err)
		}
		if d.Accepted || d.Reason != "Vehicle type mismatch" {
			t.Fatalf("minibus job on %s must be a type mismatch, got %+v", id, d)
		}
	}
	bus, _ := snap.Vehicle("bus-1")
	if d, _ := v.Check(snap, job, bus); !d.Accepted {
		t.Fatalf("minibus job on a minibus must pass, got %+v", d)
	}
}

func TestGenericCompatibleWithFallback(t *testing.T) {
	reg := fleet()
	v := newValidator(t, reg)
	snap := snapshot(t, reg)
	est, _ := snap.Vehicle("est-1")

	if d, _ := v.Check(snap, model.Job{ID: "j1", Passengers: 2, RequestedTypeID: "saloon", Start: at(9, 0)}, est); !d.Accepted {
		t.Fatalf("estate carries saloon jobs via compatible-with, got %+v", d)
	}
	if d, _ := v.Check(snap, model.Job{ID: "j2", Passengers: 2, RequestedTypeID: "mpv", Start: at(9, 0)}, est); d.Accepted {
		t.Fatalf("estate must not carry mpv jobs")
	}
	if d, _ := v.Check(snap, model.Job{ID: "j3", Passengers: 5, Start: at(9, 0)}, est); d.Accepted {
		t.Fatalf("estate capacity must apply on the generic path")
	}
}

func TestTimeConflictWithBuffer(t *testing.T) {
	reg := fleet()
	existing := reg.AddJob(model.Job{Reference: "B1", Start: at(9, 0), DurationMinutes: 60, VehicleID: "car-1", Status: model.StatusAssigned})
	_ = existing
	v := newValidator(t, reg)
	snap := snapshot(t, reg)
	car, _ := snap.Vehicle("car-1")

	d, err := v.Check(snap, model.Job{ID: "new", Start: at(9, 30), DurationMinutes: 45, Passengers: 1}, car)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if d.Accepted {
		t.Fatalf("overlapping job must be rejected")
	}
	if !strings.HasPrefix(d.Reason, "Time conflict at 09:00") {
		t.Fatalf("unexpected reason %q", d.Reason)
	}

	// 10:20 clears the 15-minute buffer after the 10:00 end.
	d, err = v.Check(snap, model.Job{ID: "new", Start: at(10, 20), DurationMinutes: 45, Passengers: 1}, car)
	if err != nil || !d.Accepted {
		t.Fatalf("job clearing the buffer must be accepted, got %+v err %v", d, err)
	}
}

func TestCancelledJobsDoNotConflict(t *testing.T) {
	reg := fleet()
	reg.AddJob(model.Job{Reference: "B1", Start: at(9, 0), VehicleID: "car-1", Status: model.StatusCancelled})
	v := newValidator(t, reg)
	snap := snapshot(t, reg)
	car, _ := snap.Vehicle("car-1")

	if d, _ := v.Check(snap, model.Job{ID: "new", Start: at(9, 0), Passengers: 1}, car); !d.Accepted {
		t.Fatalf("cancelled job must not block the slot, got %+v", d)
	}
}

func TestRevalidationIsIdempotent(t *testing.T) {
	reg := fleet()
	j := reg.AddJob(model.Job{Reference: "B1", Start: at(9, 0), VehicleID: "car-1", Status: model.StatusAssigned})
	v := newValidator(t, reg)

	before, _ := reg.Snapshot(context.Background(), at(0, 0))
	d, err := v.Allocate(context.Background(), j.ID, "car-1", at(0, 0))
	if err != nil || !d.Accepted {
		t.Fatalf("re-validation must accept, got %+v err %v", d, err)
	}
	if !d.NoChange {
		t.Fatalf("re-validation must be flagged as a no-op, got %+v", d)
	}
	after, _ := reg.Snapshot(context.Background(), at(0, 0))
	if after.Version != before.Version {
		t.Fatalf("re-validation must not write: version %d -> %d", before.Version, after.Version)
	}
}

func TestFreshPlacementIsNotFlaggedNoChange(t *testing.T) {
	reg := fleet()
	j := reg.AddJob(model.Job{Reference: "B1", Start: at(9, 0), Passengers: 2})
	v := newValidator(t, reg)

	d, err := v.Allocate(context.Background(), j.ID, "car-1", at(0, 0))
	if err != nil || !d.Accepted || d.NoChange {
		t.Fatalf("fresh placement must accept without the no-op flag, got %+v err %v", d, err)
	}
}

func TestAllocatePersistsOnAccept(t *testing.T) {
	reg := fleet()
	j := reg.AddJob(model.Job{Reference: "B1", Start: at(9, 0), Passengers: 2})
	v := newValidator(t, reg)

	d, err := v.Allocate(context.Background(), j.ID, "car-1", at(0, 0))
	if err != nil || !d.Accepted {
		t.Fatalf("allocate: %+v err %v", d, err)
	}
	snap, _ := reg.Snapshot(context.Background(), at(0, 0))
	got, _ := snap.Job(j.ID)
	if got.VehicleID != "car-1" {
		t.Fatalf("assignment not recorded: %+v", got)
	}
}

func TestAllocateRejectLeavesStateIntact(t *testing.T) {
	reg := fleet()
	reg.AddJob(model.Job{Reference: "B1", Start: at(9, 0), VehicleID: "car-1", Status: model.StatusAssigned})
	j := reg.AddJob(model.Job{Reference: "B2", Start: at(9, 30), Passengers: 2, VehicleID: "car-2", Status: model.StatusAssigned})
	v := newValidator(t, reg)

	d, err := v.Allocate(context.Background(), j.ID, "car-1", at(0, 0))
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if d.Accepted {
		t.Fatalf("conflicting move must be rejected")
	}
	snap, _ := reg.Snapshot(context.Background(), at(0, 0))
	got, _ := snap.Job(j.ID)
	if got.VehicleID != "car-2" {
		t.Fatalf("rejected move must leave prior assignment, got %+v", got)
	}
}

func TestIntegrityFaultPropagates(t *testing.T) {
	reg := fleet()
	reg.AddVehicle(model.Vehicle{ID: "bad", TypeID: "ghost"})
	j := reg.AddJob(model.Job{Reference: "B1", Start: at(9, 0), Passengers: 1})
	v := newValidator(t, reg)

	_, err := v.Allocate(context.Background(), j.ID, "bad", at(0, 0))
	if !errors.Is(err, registry.ErrVehicleTypeNotFound) {
		t.Fatalf("expected integrity fault, got %v", err)
	}
}

func TestConcurrentAllocationsOnlyOneWins(t *testing.T) {
	reg := fleet()
	a := reg.AddJob(model.Job{Reference: "A", Start: at(9, 0), Passengers: 1})
	b := reg.AddJob(model.Job{Reference: "B", Start: at(9, 30), Passengers: 1})
	v := newValidator(t, reg)

	type outcome struct {
		d   Decision
		err error
	}
	results := make(chan outcome, 2)
	for _, id := range []string{a.ID, b.ID} {
		go func(jobID string) {
			d, err := v.Allocate(context.Background(), jobID, "car-1", at(0, 0))
			results <- outcome{d, err}
		}(id)
	}
	accepted := 0
	for i := 0; i < 2; i++ {
		o := <-results
		if o.err != nil {
			t.Fatalf("allocate: %v", o.err)
		}
		if o.d.Accepted {
			accepted++
		}
	}
	if accepted != 1 {
		t.Fatalf("exactly one overlapping placement must win, got %d", accepted)
	}
}
