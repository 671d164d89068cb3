package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/tyneline/dispatch/core/model"
)

func sampleJobs() []model.Job {
	fare := 45.0
	return []model.Job{
		{
			Reference:  "B-100",
			Start:      time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
			Pickup:     "12 High St",
			Dropoff:    "Leeds Airport",
			Passengers: 2,
			VehicleID:  "car-1",
			Status:     model.StatusAssigned,
			Fare:       &fare,
		},
		{
			Reference:  "B-101",
			Start:      time.Date(2025, 3, 10, 10, 30, 0, 0, time.UTC),
			Pickup:     "The Grange",
			Dropoff:    "Station",
			Passengers: 4,
			Status:     model.StatusPending,
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, FromJobs(sampleJobs())); err != nil {
		t.Fatalf("write: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	if rows[1][0] != "B-100" || rows[1][7] != "45.00" {
		t.Fatalf("unexpected first row: %v", rows[1])
	}
	if rows[2][5] != "" || rows[2][7] != "" {
		t.Fatalf("unassigned unpriced job must have empty vehicle and fare: %v", rows[2])
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, FromJobs(sampleJobs())); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"B-100"`) || !strings.Contains(out, `"assigned"`) {
		t.Fatalf("unexpected json: %s", out)
	}
}
