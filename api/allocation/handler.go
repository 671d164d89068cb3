// Package allocation exposes the placement engine over HTTP: manual
// allocation, whole-day auto-assign, availability probes and fare estimates.
package allocation

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/tyneline/dispatch/core/availability"
	"github.com/tyneline/dispatch/core/fare"
	"github.com/tyneline/dispatch/core/registry"
	"github.com/tyneline/dispatch/core/schedule"
)

// NewAllocateHandler returns an HTTP handler for POST /api/allocate.
func NewAllocateHandler(mgr *schedule.Manager) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			JobID     string    `json:"job_id"`
			VehicleID string    `json:"vehicle_id"`
			Date      time.Time `json:"date"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.JobID == "" || req.VehicleID == "" {
			http.Error(w, "job_id and vehicle_id are required", http.StatusBadRequest)
			return
		}
		date := req.Date
		if date.IsZero() {
			date = time.Now()
		}
		d, err := mgr.Allocate(r.Context(), req.JobID, req.VehicleID, date)
		if err != nil {
			http.Error(w, err.Error(), statusFor(err))
			return
		}
		writeJSON(w, d)
	})
}

// NewAutoAssignHandler returns an HTTP handler for POST /api/auto-assign.
// The day is passed as ?date=YYYY-MM-DD and defaults to today.
func NewAutoAssignHandler(mgr *schedule.Manager) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		date := time.Now()
		if s := r.URL.Query().Get("date"); s != "" {
			t, err := time.Parse("2006-01-02", s)
			if err != nil {
				http.Error(w, "invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			date = t
		}
		report, err := mgr.AutoAssign(r.Context(), date)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, report)
	})
}

// NewAvailabilityHandler returns an HTTP handler for POST /api/check-availability.
func NewAvailabilityHandler(cls *availability.Classifier) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Start           time.Time `json:"start"`
			DurationMinutes int       `json:"duration_minutes"`
			VehicleTypeID   string    `json:"vehicle_type_id"`
			Passengers      int       `json:"passengers"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.Start.IsZero() {
			http.Error(w, "start is required", http.StatusBadRequest)
			return
		}
		res, err := cls.Check(r.Context(), availability.Request{
			Start:           req.Start,
			DurationMinutes: req.DurationMinutes,
			VehicleTypeID:   req.VehicleTypeID,
			Passengers:      req.Passengers,
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, res)
	})
}

// NewFareHandler returns an HTTP handler for GET /api/fare-estimate. Query
// parameters: pickup, dropoff, vehicle_type, return, client_id,
// distance_miles.
func NewFareHandler(calc *fare.Calculator) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		q := r.URL.Query()
		req := fare.Request{
			Pickup:        q.Get("pickup"),
			Dropoff:       q.Get("dropoff"),
			VehicleTypeID: q.Get("vehicle_type"),
			Return:        q.Get("return") == "true",
			ClientID:      q.Get("client_id"),
		}
		if s := q.Get("distance_miles"); s != "" {
			miles, err := strconv.ParseFloat(s, 64)
			if err != nil {
				http.Error(w, "invalid distance_miles", http.StatusBadRequest)
				return
			}
			req.DistanceMiles = &miles
		}
		writeJSON(w, calc.Compute(r.Context(), req))
	})
}

// statusFor maps registry not-found errors to 404; anything else is an
// integrity fault and stays a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrJobNotFound),
		errors.Is(err, registry.ErrVehicleNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
