package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tyneline/dispatch/core/model"
)

// Memory is an in-memory Registry used by default and throughout tests.
type Memory struct {
	mu       sync.RWMutex
	lockSet  *LockSet
	vehicles map[string]model.Vehicle
	types    map[string]model.VehicleType
	drivers  map[string]model.Driver
	jobs     map[string]model.Job
	pairings map[string]string // vehicleID|day -> driverID
	versions map[string]uint64 // day -> version
}

// NewMemory creates an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{
		lockSet:  NewLockSet(),
		vehicles: make(map[string]model.Vehicle),
		types:    make(map[string]model.VehicleType),
		drivers:  make(map[string]model.Driver),
		jobs:     make(map[string]model.Job),
		pairings: make(map[string]string),
		versions: make(map[string]uint64),
	}
}

// AddVehicleType registers reference data.
func (m *Memory) AddVehicleType(t model.VehicleType) {
	m.mu.Lock()
	m.types[t.ID] = t
	m.mu.Unlock()
}

// AddVehicle registers a vehicle.
func (m *Memory) AddVehicle(v model.Vehicle) {
	m.mu.Lock()
	m.vehicles[v.ID] = v
	m.mu.Unlock()
}

// AddDriver registers a driver.
func (m *Memory) AddDriver(d model.Driver) {
	m.mu.Lock()
	m.drivers[d.ID] = d
	m.mu.Unlock()
}

// AddJob stores a booking, minting an ID when absent, and returns it.
func (m *Memory) AddJob(j model.Job) model.Job {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	m.mu.Lock()
	m.jobs[j.ID] = j
	m.versions[model.DayKey(j.Start)]++
	m.mu.Unlock()
	return j
}

// Snapshot implements Registry.
func (m *Memory) Snapshot(ctx context.Context, date time.Time) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	day := model.DayKey(date)
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{
		Date:    date,
		Version: m.versions[day],
		Types:   make(map[string]model.VehicleType, len(m.types)),
	}
	for id, t := range m.types {
		snap.Types[id] = t
	}
	for _, v := range m.vehicles {
		snap.Vehicles = append(snap.Vehicles, v)
	}
	sort.Slice(snap.Vehicles, func(i, j int) bool { return snap.Vehicles[i].ID < snap.Vehicles[j].ID })
	for _, j := range m.jobs {
		if model.DayKey(j.Start) == day {
			snap.Jobs = append(snap.Jobs, j)
		}
	}
	sort.Slice(snap.Jobs, func(i, j int) bool {
		if snap.Jobs[i].Start.Equal(snap.Jobs[j].Start) {
			return snap.Jobs[i].ID < snap.Jobs[j].ID
		}
		return snap.Jobs[i].Start.Before(snap.Jobs[j].Start)
	})
	return snap, nil
}

// AssignVehicle implements Registry.
func (m *Memory) AssignVehicle(ctx context.Context, jobID, vehicleID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if _, ok := m.vehicles[vehicleID]; !ok {
		return fmt.Errorf("%w: %s", ErrVehicleNotFound, vehicleID)
	}
	j.VehicleID = vehicleID
	if j.Status == model.StatusPending {
		j.Status = model.StatusAssigned
	}
	m.jobs[jobID] = j
	m.versions[model.DayKey(j.Start)]++
	return nil
}

// SetFare implements Registry.
func (m *Memory) SetFare(ctx context.Context, jobID string, fare float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	j.Fare = &fare
	m.jobs[jobID] = j
	m.versions[model.DayKey(j.Start)]++
	return nil
}

// AssignDriver implements Registry.
func (m *Memory) AssignDriver(ctx context.Context, a model.DailyDriverAssignment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.vehicles[a.VehicleID]; !ok {
		return fmt.Errorf("%w: %s", ErrVehicleNotFound, a.VehicleID)
	}
	if _, ok := m.drivers[a.DriverID]; !ok {
		return fmt.Errorf("%w: %s", ErrDriverNotFound, a.DriverID)
	}
	m.pairings[a.VehicleID+"|"+model.DayKey(a.Date)] = a.DriverID
	return nil
}

// DriverFor implements Registry.
func (m *Memory) DriverFor(ctx context.Context, vehicleID string, date time.Time) (model.Driver, error) {
	if err := ctx.Err(); err != nil {
		return model.Driver{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.pairings[vehicleID+"|"+model.DayKey(date)]
	if !ok {
		return model.Driver{}, fmt.Errorf("%w: no pairing for vehicle %s", ErrDriverNotFound, vehicleID)
	}
	d, ok := m.drivers[id]
	if !ok {
		return model.Driver{}, fmt.Errorf("%w: %s", ErrDriverNotFound, id)
	}
	return d, nil
}

// Lock implements Registry.
func (m *Memory) Lock(vehicleID string, date time.Time) func() {
	return m.lockSet.Lock(vehicleID, date)
}
