// Package fleetstatus tracks live operational state per vehicle: on shift,
// off road, out for maintenance, plus the last placement made onto it.
package fleetstatus

import (
	"sort"
	"sync"
	"time"
)

// LastPlacement summarises the most recent job placed on the vehicle.
type LastPlacement struct {
	JobID     string    `json:"job_id"`
	Reference string    `json:"reference"`
	Auto      bool      `json:"auto"`
	Time      time.Time `json:"time"`
}

// Status captures the current known state of a vehicle.
type Status struct {
	VehicleID     string        `json:"vehicle_id"`
	TypeID        string        `json:"type_id,omitempty"`
	Depot         string        `json:"depot,omitempty"`
	CurrentStatus string        `json:"current_status"`
	DriverID      string        `json:"driver_id,omitempty"`
	LastPlacement LastPlacement `json:"last_placement"`
}

// Filter narrows a List call. Empty fields match everything.
type Filter struct {
	TypeID string
	Depot  string
	Status string
}

// Store holds fleet status. Implementations must be safe for concurrent use.
type Store interface {
	Set(Status)
	List(Filter) []Status
	RecordPlacement(vehicleID string, p LastPlacement)
}

// MemoryStore is the in-process Store.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Status
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]Status{}}
}

// Set stores or replaces a vehicle's status.
func (s *MemoryStore) Set(st Status) {
	s.mu.Lock()
	s.data[st.VehicleID] = st
	s.mu.Unlock()
}

// RecordPlacement updates the vehicle's last placement, creating the entry
// when the vehicle is not yet known.
func (s *MemoryStore) RecordPlacement(vehicleID string, p LastPlacement) {
	s.mu.Lock()
	st := s.data[vehicleID]
	if st.VehicleID == "" {
		st.VehicleID = vehicleID
	}
	st.LastPlacement = p
	if st.CurrentStatus == "" {
		st.CurrentStatus = "on_shift"
	}
	s.data[vehicleID] = st
	s.mu.Unlock()
}

// List returns statuses matching the filter, ordered by vehicle ID.
func (s *MemoryStore) List(f Filter) []Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]Status, 0, len(s.data))
	for _, st := range s.data {
		if f.TypeID != "" && st.TypeID != f.TypeID {
			continue
		}
		if f.Depot != "" && st.Depot != f.Depot {
			continue
		}
		if f.Status != "" && st.CurrentStatus != f.Status {
			continue
		}
		res = append(res, st)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].VehicleID < res[j].VehicleID })
	return res
}
