package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tyneline/dispatch/core/model"
)

func day(h, m int) time.Time {
	return time.Date(2025, 3, 10, h, m, 0, 0, time.UTC)
}

func seeded() *Memory {
	reg := NewMemory()
	reg.AddVehicleType(model.VehicleType{ID: "saloon", Name: "Saloon", Capacity: 4})
	reg.AddVehicle(model.Vehicle{ID: "car-1", TypeID: "saloon", Registration: "NX70 ABC"})
	reg.AddDriver(model.Driver{ID: "drv-1", Name: "Pat"})
	return reg
}

func TestSnapshotFiltersByDay(t *testing.T) {
	reg := seeded()
	reg.AddJob(model.Job{Reference: "B100", Start: day(9, 0)})
	reg.AddJob(model.Job{Reference: "B101", Start: day(9, 0).AddDate(0, 0, 1)})

	snap, err := reg.Snapshot(context.Background(), day(0, 0))
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Jobs) != 1 || snap.Jobs[0].Reference != "B100" {
		t.Fatalf("expected only same-day job, got %d", len(snap.Jobs))
	}
}

func TestSnapshotVersionBumpsOnWrite(t *testing.T) {
	reg := seeded()
	j := reg.AddJob(model.Job{Reference: "B100", Start: day(9, 0)})
	before, _ := reg.Snapshot(context.Background(), day(0, 0))
	if err := reg.AssignVehicle(context.Background(), j.ID, "car-1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	after, _ := reg.Snapshot(context.Background(), day(0, 0))
	if after.Version <= before.Version {
		t.Fatalf("version should increase: %d -> %d", before.Version, after.Version)
	}
	got, _ := after.Job(j.ID)
	if got.VehicleID != "car-1" || got.Status != model.StatusAssigned {
		t.Fatalf("assignment not persisted: %+v", got)
	}
}

func TestAssignVehicleIntegrityErrors(t *testing.T) {
	reg := seeded()
	j := reg.AddJob(model.Job{Reference: "B100", Start: day(9, 0)})
	if err := reg.AssignVehicle(context.Background(), j.ID, "ghost"); !errors.Is(err, ErrVehicleNotFound) {
		t.Fatalf("expected ErrVehicleNotFound, got %v", err)
	}
	if err := reg.AssignVehicle(context.Background(), "ghost", "car-1"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestTypeOfMissingTypeIsIntegrityFault(t *testing.T) {
	reg := seeded()
	reg.AddVehicle(model.Vehicle{ID: "car-2", TypeID: "missing"})
	snap, _ := reg.Snapshot(context.Background(), day(0, 0))
	v, _ := snap.Vehicle("car-2")
	if _, err := snap.TypeOf(v); !errors.Is(err, ErrVehicleTypeNotFound) {
		t.Fatalf("expected ErrVehicleTypeNotFound, got %v", err)
	}
}

func TestDriverPairing(t *testing.T) {
	reg := seeded()
	a := model.DailyDriverAssignment{VehicleID: "car-1", DriverID: "drv-1", Date: day(0, 0)}
	if err := reg.AssignDriver(context.Background(), a); err != nil {
		t.Fatalf("assign driver: %v", err)
	}
	d, err := reg.DriverFor(context.Background(), "car-1", day(12, 0))
	if err != nil || d.ID != "drv-1" {
		t.Fatalf("driver lookup: %v %+v", err, d)
	}
	if _, err := reg.DriverFor(context.Background(), "car-1", day(0, 0).AddDate(0, 0, 1)); !errors.Is(err, ErrDriverNotFound) {
		t.Fatalf("expected no pairing on another day, got %v", err)
	}
}

func TestLockSetSerialisesVehicleDay(t *testing.T) {
	locks := NewLockSet()
	var held, max int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("car-1", day(0, 0))
			mu.Lock()
			held++
			if held > max {
				max = held
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			held--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	if max != 1 {
		t.Fatalf("lock allowed %d concurrent holders", max)
	}
}

func TestLockSetIndependentVehicles(t *testing.T) {
	locks := NewLockSet()
	unlockA := locks.Lock("car-1", day(0, 0))
	done := make(chan struct{})
	go func() {
		unlockB := locks.Lock("car-2", day(0, 0))
		unlockB()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("unrelated vehicle blocked")
	}
	unlockA()
}
