// Package export renders a day's schedule for external consumers: office
// spreadsheets take the CSV, downstream systems take the JSON.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/tyneline/dispatch/core/model"
)

// Entry is one exported schedule row.
type Entry struct {
	Reference  string    `json:"reference"`
	Start      time.Time `json:"start"`
	Pickup     string    `json:"pickup"`
	Dropoff    string    `json:"dropoff"`
	Passengers int       `json:"passengers"`
	VehicleID  string    `json:"vehicle_id,omitempty"`
	Status     string    `json:"status"`
	Fare       *float64  `json:"fare,omitempty"`
}

// FromJobs converts a day's jobs into export entries, preserving order.
func FromJobs(jobs []model.Job) []Entry {
	entries := make([]Entry, 0, len(jobs))
	for _, j := range jobs {
		entries = append(entries, Entry{
			Reference:  j.Reference,
			Start:      j.Start,
			Pickup:     j.Pickup,
			Dropoff:    j.Dropoff,
			Passengers: j.Passengers,
			VehicleID:  j.VehicleID,
			Status:     j.Status.String(),
			Fare:       j.Fare,
		})
	}
	return entries
}

// WriteJSON writes the schedule to w in JSON format.
func WriteJSON(w io.Writer, entries []Entry) error {
	enc := json.NewEncoder(w)
	return enc.Encode(entries)
}

// WriteCSV writes the schedule to w in CSV format.
func WriteCSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"reference", "start", "pickup", "dropoff", "passengers", "vehicle_id", "status", "fare"}); err != nil {
		return err
	}
	for _, e := range entries {
		fare := ""
		if e.Fare != nil {
			fare = strconv.FormatFloat(*e.Fare, 'f', 2, 64)
		}
		rec := []string{
			e.Reference,
			e.Start.Format(time.RFC3339),
			e.Pickup,
			e.Dropoff,
			strconv.Itoa(e.Passengers),
			e.VehicleID,
			e.Status,
			fare,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
