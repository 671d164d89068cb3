// Package fare computes journey fares from zone rules with a distance-based
// fallback. An Unknown quote is a legitimate terminal outcome, not an error:
// it means the operator must supply a manual price.
package fare

import (
	"context"
	"fmt"

	"github.com/tyneline/dispatch/core/logger"
	"github.com/tyneline/dispatch/core/model"
	"github.com/tyneline/dispatch/core/routing"
)

// Quote is the calculator's result. Known is false when neither a zone
// matched nor a distance-based price was possible.
type Quote struct {
	Known  bool    `json:"known"`
	Amount float64 `json:"amount,omitempty"`
	Zone   string  `json:"zone,omitempty"`   // matched zone name, when zone-priced
	Source string  `json:"source,omitempty"` // "zone" or "distance"
}

// Unknown returns the quote for a journey the engine cannot price.
func Unknown() Quote { return Quote{} }

// Request describes one journey to price.
type Request struct {
	Pickup        string
	Dropoff       string
	VehicleTypeID string
	Return        bool // return-inclusive journey: final fare doubles
	// ClientID selects the client's configured fare override, if any.
	ClientID string
	// DistanceMiles, when set, skips the route provider.
	DistanceMiles *float64
	// Override substitutes the client's private zones and rate, bypassing
	// the ClientID lookup.
	Override *model.ClientFareOverride
}

// Config holds the global pricing tables and per-client overrides.
type Config struct {
	Zones           []model.FareZone           `json:"zones"`
	Rate            *model.MileRate            `json:"rate"`
	ClientOverrides []model.ClientFareOverride `json:"client_overrides"`
}

// Calculator prices journeys. It is safe for concurrent use; the pricing
// tables are read-only after construction.
type Calculator struct {
	zones     []model.FareZone
	rate      *model.MileRate
	overrides map[string]*model.ClientFareOverride
	routes    routing.Provider // optional
	log       logger.Logger
}

// New creates a Calculator. routes may be nil when no distance provider is
// configured.
func New(cfg Config, routes routing.Provider, log logger.Logger) (*Calculator, error) {
	if log == nil {
		return nil, fmt.Errorf("fare: nil logger provided to New")
	}
	overrides := make(map[string]*model.ClientFareOverride, len(cfg.ClientOverrides))
	for i := range cfg.ClientOverrides {
		ov := cfg.ClientOverrides[i]
		if ov.ClientID == "" {
			return nil, fmt.Errorf("fare: client override %d has no client_id", i)
		}
		overrides[ov.ClientID] = &ov
	}
	return &Calculator{zones: cfg.Zones, rate: cfg.Rate, overrides: overrides, routes: routes, log: log}, nil
}

// OverrideFor returns the configured override for a client, or nil.
func (c *Calculator) OverrideFor(clientID string) *model.ClientFareOverride {
	return c.overrides[clientID]
}

// Compute prices the journey. Route-provider failures are downgraded to
// "no distance available"; they never surface as errors.
func (c *Calculator) Compute(ctx context.Context, req Request) Quote {
	zones, rate := c.zones, c.rate
	ov := req.Override
	if ov == nil && req.ClientID != "" {
		ov = c.overrides[req.ClientID]
	}
	if ov != nil && ov.UseCustom && len(ov.Zones) > 0 {
		zones = ov.Zones
		if ov.Rate != nil {
			rate = ov.Rate
		}
	}

	q := c.zonePass(zones, req)
	if !q.Known {
		q = c.distancePass(ctx, rate, req)
	}
	if !q.Known {
		return Unknown()
	}
	if req.Return {
		q.Amount *= 2
	}
	return q
}

// zonePass walks the zone list in order and stops at the first hit. Only
// dropoff-facing zones participate; matching is the zone's own
// postcode-before-area containment.
func (c *Calculator) zonePass(zones []model.FareZone, req Request) Quote {
	for _, z := range zones {
		if z.Type != model.ZoneDropoff && z.Type != model.ZoneBoth {
			continue
		}
		if !z.Matches(req.Dropoff) {
			continue
		}
		return Quote{Known: true, Amount: z.FareForType(req.VehicleTypeID), Zone: z.Name, Source: "zone"}
	}
	return Unknown()
}

// distancePass prices base + miles * perMile, clamped up to the minimum.
func (c *Calculator) distancePass(ctx context.Context, rate *model.MileRate, req Request) Quote {
	if rate == nil {
		return Unknown()
	}
	miles := req.DistanceMiles
	if miles == nil && c.routes != nil {
		est, err := c.routes.Route(ctx, req.Pickup, req.Dropoff)
		if err != nil {
			c.log.Warnf("route provider unavailable, degrading to unknown distance: %v", err)
		} else if est.DistanceMiles > 0 {
			miles = &est.DistanceMiles
		}
	}
	if miles == nil || *miles <= 0 {
		return Unknown()
	}
	r := rate.ForType(req.VehicleTypeID)
	if !r.Defined() {
		return Unknown()
	}
	amount := r.BaseFare + *miles*r.PerMile
	if amount < r.MinimumFare {
		amount = r.MinimumFare
	}
	return Quote{Known: true, Amount: amount, Source: "distance"}
}
