// Package availability classifies a requested slot as green, amber or red
// before a booking is submitted, proposing nearby alternatives when the
// exact time is blocked.
package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/tyneline/dispatch/core/logger"
	"github.com/tyneline/dispatch/core/model"
	"github.com/tyneline/dispatch/core/registry"
	"github.com/tyneline/dispatch/core/validate"
)

// Status is the three-level slot classification.
type Status string

const (
	StatusGreen Status = "green" // a compatible vehicle is free at the exact time
	StatusAmber Status = "amber" // free only within the offset search window
	StatusRed   Status = "red"   // nothing free even with offsets
)

// Suggestion is a concrete alternative start time. OffsetMinutes is signed:
// negative means earlier than requested.
type Suggestion struct {
	Time          time.Time `json:"time"`
	OffsetMinutes int       `json:"offset_minutes"`
}

// Result is the classifier's answer.
type Result struct {
	Status      Status       `json:"status"`
	Message     string       `json:"message"`
	Suggestions []Suggestion `json:"suggestions,omitempty"`
}

// Config tunes the amber search. The radius is deliberately configurable;
// product has not fixed a canonical value.
type Config struct {
	SearchRadiusMinutes int `json:"search_radius_minutes"`
	StepMinutes         int `json:"step_minutes"`
}

// SetDefaults applies a one-hour radius in quarter-hour steps.
func (c *Config) SetDefaults() {
	if c.SearchRadiusMinutes <= 0 {
		c.SearchRadiusMinutes = 60
	}
	if c.StepMinutes <= 0 {
		c.StepMinutes = 15
	}
}

// Request describes the slot being probed.
type Request struct {
	Start           time.Time
	DurationMinutes int
	VehicleTypeID   string
	Passengers      int
}

// Classifier answers availability probes using the same validator that
// gates real placements, so pre-submission feedback can never disagree
// with allocation.
type Classifier struct {
	reg registry.Registry
	val *validate.Validator
	cfg Config
	log logger.Logger
}

// New creates a Classifier.
func New(reg registry.Registry, val *validate.Validator, cfg Config, log logger.Logger) (*Classifier, error) {
	if reg == nil || val == nil || log == nil {
		return nil, fmt.Errorf("availability: nil parameter provided to New")
	}
	cfg.SetDefaults()
	return &Classifier{reg: reg, val: val, cfg: cfg, log: log}, nil
}

// Check classifies the requested slot. Errors are integrity faults only.
func (c *Classifier) Check(ctx context.Context, req Request) (Result, error) {
	snap, err := c.reg.Snapshot(ctx, req.Start)
	if err != nil {
		return Result{}, err
	}

	free, err := c.anyVehicleFree(snap, req, req.Start)
	if err != nil {
		return Result{}, err
	}
	if free {
		return Result{Status: StatusGreen, Message: "Vehicle available at the requested time"}, nil
	}

	suggestions, err := c.searchOffsets(snap, req)
	if err != nil {
		return Result{}, err
	}
	if len(suggestions) > 0 {
		return Result{
			Status:      StatusAmber,
			Message:     fmt.Sprintf("No vehicle free at %s; %d nearby times available", req.Start.Format("15:04"), len(suggestions)),
			Suggestions: suggestions,
		}, nil
	}
	return Result{Status: StatusRed, Message: "No compatible vehicle can serve this time"}, nil
}

// anyVehicleFree probes every vehicle with a synthetic job at the given
// start through the shared validator.
func (c *Classifier) anyVehicleFree(snap registry.Snapshot, req Request, start time.Time) (bool, error) {
	probe := model.Job{
		ID:              "availability-probe",
		Start:           start,
		DurationMinutes: req.DurationMinutes,
		RequestedTypeID: req.VehicleTypeID,
		Passengers:      req.Passengers,
	}
	for _, v := range snap.Vehicles {
		d, err := c.val.Check(snap, probe, v)
		if err != nil {
			return false, err
		}
		if d.Accepted {
			return true, nil
		}
	}
	return false, nil
}

// searchOffsets walks outward from the requested time in configured steps,
// earlier shift before later at equal distance, so the returned list is
// already sorted by absolute offset ascending.
func (c *Classifier) searchOffsets(snap registry.Snapshot, req Request) ([]Suggestion, error) {
	var out []Suggestion
	for k := c.cfg.StepMinutes; k <= c.cfg.SearchRadiusMinutes; k += c.cfg.StepMinutes {
		for _, offset := range []int{-k, k} {
			candidate := req.Start.Add(time.Duration(offset) * time.Minute)
			if !model.SameDay(candidate, req.Start) {
				continue
			}
			free, err := c.anyVehicleFree(snap, req, candidate)
			if err != nil {
				return nil, err
			}
			if free {
				out = append(out, Suggestion{Time: candidate, OffsetMinutes: offset})
			}
		}
	}
	return out, nil
}
