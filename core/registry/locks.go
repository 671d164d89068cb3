package registry

import (
	"sync"
	"time"

	"github.com/tyneline/dispatch/core/model"
)

// LockSet provides one logical mutex per (vehicle, calendar day). Locks are
// created lazily and never discarded; the population is bounded by fleet
// size times active days.
type LockSet struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLockSet creates an empty LockSet.
func NewLockSet() *LockSet {
	return &LockSet{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the lock for the vehicle-day and returns the release func.
func (s *LockSet) Lock(vehicleID string, date time.Time) func() {
	key := vehicleID + "|" + model.DayKey(date)
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}
