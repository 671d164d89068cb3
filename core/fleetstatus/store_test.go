package fleetstatus

import "testing"

func TestMemoryStore_Filter(t *testing.T) {
	s := NewMemoryStore()
	s.Set(Status{VehicleID: "v1", TypeID: "saloon", Depot: "north"})
	s.Set(Status{VehicleID: "v2", TypeID: "mpv", Depot: "south"})
	out := s.List(Filter{TypeID: "saloon"})
	if len(out) != 1 || out[0].VehicleID != "v1" {
		t.Fatalf("filter failed: %#v", out)
	}
}

func TestMemoryStore_FilterStatus(t *testing.T) {
	s := NewMemoryStore()
	s.Set(Status{VehicleID: "v1", CurrentStatus: "off_road"})
	s.Set(Status{VehicleID: "v2", CurrentStatus: "on_shift"})
	out := s.List(Filter{Status: "off_road"})
	if len(out) != 1 || out[0].VehicleID != "v1" {
		t.Fatalf("status filter failed: %#v", out)
	}
}

func TestMemoryStore_RecordPlacement(t *testing.T) {
	s := NewMemoryStore()
	s.Set(Status{VehicleID: "v1", CurrentStatus: "on_shift"})
	s.RecordPlacement("v1", LastPlacement{JobID: "j1", Reference: "B-1"})
	out := s.List(Filter{})
	if out[0].LastPlacement.JobID != "j1" {
		t.Fatalf("placement not recorded")
	}
}

func TestMemoryStore_RecordPlacementNew(t *testing.T) {
	s := NewMemoryStore()
	s.RecordPlacement("v3", LastPlacement{JobID: "j2"})
	out := s.List(Filter{})
	if len(out) != 1 || out[0].VehicleID != "v3" || out[0].CurrentStatus != "on_shift" {
		t.Fatalf("auto create failed %#v", out)
	}
}
