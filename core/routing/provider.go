// Package routing defines the boundary to the external route/distance
// provider. The engine only ever consumes it as a fallback input to fare
// calculation and must keep working when it is unavailable.
package routing

import (
	"context"
	"time"
)

// Estimate is a road-distance result between two addresses.
type Estimate struct {
	DistanceMiles float64       `json:"distance_miles"`
	Duration      time.Duration `json:"duration"`
}

// Provider returns the driving estimate between two free-text addresses.
type Provider interface {
	Route(ctx context.Context, pickup, dropoff string) (Estimate, error)
}

// Static is a fixed-table Provider used in tests and offline setups. Keys
// are "pickup|dropoff".
type Static map[string]Estimate

// Route implements Provider.
func (s Static) Route(_ context.Context, pickup, dropoff string) (Estimate, error) {
	if e, ok := s[pickup+"|"+dropoff]; ok {
		return e, nil
	}
	return Estimate{}, ErrNoRoute
}
