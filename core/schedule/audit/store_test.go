package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	jl, err := NewJSONLStore(filepath.Join(dir, "audit.jsonl"))
	if err != nil {
		t.Fatalf("jsonl store: %v", err)
	}
	sq, err := NewSQLiteStore(filepath.Join(dir, "audit.db"))
	if err != nil {
		t.Fatalf("sqlite store: %v", err)
	}
	return map[string]Store{"jsonl": jl, "sqlite": sq}
}

func TestAppendAndQuery(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			defer func() { _ = store.Close() }()
			recs := []Record{
				{Timestamp: base, Kind: KindAllocate, Day: "2025-03-10", JobReference: "B1", VehicleID: "car-1", Accepted: true},
				{Timestamp: base.Add(time.Hour), Kind: KindAllocate, Day: "2025-03-10", JobReference: "B2", VehicleID: "car-2", Reason: "Capacity exceeded"},
				{Timestamp: base.Add(2 * time.Hour), Kind: KindAutoAssign, Day: "2025-03-10", Assigned: 3, Failed: 2, VehiclesUsed: 2},
			}
			for _, r := range recs {
				if err := store.Append(context.Background(), r); err != nil {
					t.Fatalf("append: %v", err)
				}
			}

			all, err := store.Query(context.Background(), Query{})
			if err != nil || len(all) != 3 {
				t.Fatalf("query all: %d records, err %v", len(all), err)
			}
			byVehicle, err := store.Query(context.Background(), Query{VehicleID: "car-1"})
			if err != nil || len(byVehicle) != 1 || byVehicle[0].JobReference != "B1" {
				t.Fatalf("query by vehicle: %+v err %v", byVehicle, err)
			}
			runs, err := store.Query(context.Background(), Query{Kind: KindAutoAssign})
			if err != nil || len(runs) != 1 || runs[0].Assigned != 3 {
				t.Fatalf("query runs: %+v err %v", runs, err)
			}
			windowed, err := store.Query(context.Background(), Query{Start: base.Add(30 * time.Minute), End: base.Add(90 * time.Minute)})
			if err != nil || len(windowed) != 1 || windowed[0].JobReference != "B2" {
				t.Fatalf("query window: %+v err %v", windowed, err)
			}
		})
	}
}
