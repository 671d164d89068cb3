package fleet

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tyneline/dispatch/core/fleetstatus"
)

func TestStatusHandler(t *testing.T) {
	store := fleetstatus.NewMemoryStore()
	store.Set(fleetstatus.Status{VehicleID: "car-1", TypeID: "saloon", CurrentStatus: "on_shift"})
	store.Set(fleetstatus.Status{VehicleID: "car-2", TypeID: "mpv", CurrentStatus: "off_road"})
	h := NewStatusHandler(store)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/fleet/status?type_id=mpv", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var out []fleetstatus.Status
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out) != 1 || out[0].VehicleID != "car-2" {
		t.Fatalf("filter failed: %+v", out)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("POST", "/api/fleet/status", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}
