package model

import "strings"

// ZoneType restricts which leg of a journey a zone matches against.
type ZoneType string

const (
	ZonePickup  ZoneType = "pickup"
	ZoneDropoff ZoneType = "dropoff"
	ZoneBoth    ZoneType = "both"
)

// FareZone is a named geographic matching rule. Matching is case-insensitive
// substring containment against the journey's free-text addresses, postcode
// substrings before area substrings.
type FareZone struct {
	Name         string             `json:"name"`
	Type         ZoneType           `json:"zone_type"`
	Postcodes    []string           `json:"postcodes,omitempty"`
	Areas        []string           `json:"areas,omitempty"`
	Fare         float64            `json:"fare,omitempty"` // flat fare
	VehicleFares map[string]float64 `json:"vehicle_fares,omitempty"`
}

// Matches reports whether text falls inside the zone.
func (z FareZone) Matches(text string) bool {
	t := strings.ToLower(text)
	for _, pc := range z.Postcodes {
		if pc != "" && strings.Contains(t, strings.ToLower(pc)) {
			return true
		}
	}
	for _, a := range z.Areas {
		if a != "" && strings.Contains(t, strings.ToLower(a)) {
			return true
		}
	}
	return false
}

// FareForType resolves the per-type fare, falling back to the flat fare.
func (z FareZone) FareForType(typeID string) float64 {
	if f, ok := z.VehicleFares[typeID]; ok {
		return f
	}
	return z.Fare
}

// Rate holds the three distance-pricing fields.
type Rate struct {
	BaseFare    float64 `json:"base_fare"`
	PerMile     float64 `json:"per_mile"`
	MinimumFare float64 `json:"minimum_fare"`
}

// Defined reports whether the rate carries any pricing information.
func (r Rate) Defined() bool {
	return r.BaseFare != 0 || r.PerMile != 0 || r.MinimumFare != 0
}

// MileRate is the base-plus-per-mile pricing model used when no zone matches,
// with optional per-vehicle-type overrides.
type MileRate struct {
	Rate
	VehicleOverrides map[string]Rate `json:"vehicle_overrides,omitempty"`
}

// ForType resolves the rate for a vehicle type, preferring the override.
func (m MileRate) ForType(typeID string) Rate {
	if r, ok := m.VehicleOverrides[typeID]; ok {
		return r
	}
	return m.Rate
}

// ClientFareOverride substitutes a client's private zones and mile rate for
// the global ones when UseCustom is set.
type ClientFareOverride struct {
	ClientID  string     `json:"client_id"`
	UseCustom bool       `json:"use_custom"`
	Zones     []FareZone `json:"zones,omitempty"`
	Rate      *MileRate  `json:"rate,omitempty"`
}
