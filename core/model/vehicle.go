package model

import "time"

// VehicleType is immutable reference data describing a class of vehicle.
type VehicleType struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity"` // passenger capacity

	// CompatibleWith lists other vehicle-type identifiers whose jobs this
	// type may also carry.
	CompatibleWith []string `json:"compatible_with"`
}

// Carries reports whether the type may carry jobs requested for typeID.
// A type always carries its own jobs.
func (t VehicleType) Carries(typeID string) bool {
	if typeID == "" || typeID == t.ID {
		return true
	}
	for _, id := range t.CompatibleWith {
		if id == typeID {
			return true
		}
	}
	return false
}

// Vehicle is a single fleet vehicle. Registration, make and model are
// display-only.
type Vehicle struct {
	ID           string `json:"id"`
	TypeID       string `json:"type_id"`
	Registration string `json:"registration"`
	Make         string `json:"make"`
	Model        string `json:"model"`
}

// Driver identifies a driver for daily vehicle pairing.
type Driver struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

// DailyDriverAssignment pairs a vehicle with a driver for one calendar date.
// It is independent of job assignment and keyed by (vehicle, date).
type DailyDriverAssignment struct {
	VehicleID string    `json:"vehicle_id"`
	DriverID  string    `json:"driver_id"`
	Date      time.Time `json:"date"`
}

// DayKey normalises a timestamp to its calendar-day key. Days are
// timezone-naive: the wall-clock date of t is used as-is.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	return DayKey(a) == DayKey(b)
}
