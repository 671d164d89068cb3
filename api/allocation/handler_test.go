package allocation

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tyneline/dispatch/core/availability"
	"github.com/tyneline/dispatch/core/fare"
	"github.com/tyneline/dispatch/core/model"
	"github.com/tyneline/dispatch/core/registry"
	"github.com/tyneline/dispatch/core/schedule"
	"github.com/tyneline/dispatch/core/validate"
	"github.com/tyneline/dispatch/infra/logger"
)

func fixture(t *testing.T) (*registry.Memory, *schedule.Manager, *availability.Classifier) {
	t.Helper()
	reg := registry.NewMemory()
	reg.AddVehicleType(model.VehicleType{ID: "saloon", Name: "Saloon", Capacity: 4})
	reg.AddVehicle(model.Vehicle{ID: "car-1", TypeID: "saloon"})
	v, err := validate.New(reg, validate.Config{}, logger.NopLogger{})
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	mgr, err := schedule.NewManager(reg, v, schedule.Config{}, logger.NopLogger{})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	cls, err := availability.New(reg, v, availability.Config{}, logger.NopLogger{})
	if err != nil {
		t.Fatalf("classifier: %v", err)
	}
	return reg, mgr, cls
}

func TestAllocateHandler(t *testing.T) {
	reg, mgr, _ := fixture(t)
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	job := reg.AddJob(model.Job{Reference: "B-1", Start: start, Passengers: 2})
	h := NewAllocateHandler(mgr)

	body := `{"job_id":"` + job.ID + `","vehicle_id":"car-1","date":"2025-03-10T00:00:00Z"}`
	req := httptest.NewRequest("POST", "/api/allocate", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	var d validate.Decision
	if err := json.Unmarshal(rr.Body.Bytes(), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !d.Accepted {
		t.Fatalf("expected acceptance, got %+v", d)
	}
}

func TestAllocateHandlerRejectionIsOK(t *testing.T) {
	reg, mgr, _ := fixture(t)
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	job := reg.AddJob(model.Job{Reference: "B-2", Start: start, Passengers: 9})
	h := NewAllocateHandler(mgr)

	body := `{"job_id":"` + job.ID + `","vehicle_id":"car-1","date":"2025-03-10T00:00:00Z"}`
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("POST", "/api/allocate", strings.NewReader(body)))
	if rr.Code != http.StatusOK {
		t.Fatalf("rejections are results, not errors: status %d", rr.Code)
	}
	var d validate.Decision
	if err := json.Unmarshal(rr.Body.Bytes(), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Accepted || d.Reason != "Capacity exceeded" {
		t.Fatalf("unexpected decision %+v", d)
	}
}

func TestAllocateHandlerValidation(t *testing.T) {
	_, mgr, _ := fixture(t)
	h := NewAllocateHandler(mgr)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("POST", "/api/allocate", strings.NewReader(`{}`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing ids, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/allocate", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestAllocateHandlerUnknownIDsAre404(t *testing.T) {
	reg, mgr, _ := fixture(t)
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	job := reg.AddJob(model.Job{Reference: "B-9", Start: start, Passengers: 1})
	h := NewAllocateHandler(mgr)

	body := `{"job_id":"no-such-job","vehicle_id":"car-1","date":"2025-03-10T00:00:00Z"}`
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("POST", "/api/allocate", strings.NewReader(body)))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown job, got %d: %s", rr.Code, rr.Body.String())
	}

	body = `{"job_id":"` + job.ID + `","vehicle_id":"no-such-car","date":"2025-03-10T00:00:00Z"}`
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("POST", "/api/allocate", strings.NewReader(body)))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown vehicle, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestAutoAssignHandler(t *testing.T) {
	reg, mgr, _ := fixture(t)
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	reg.AddJob(model.Job{Reference: "B-3", Start: start, Passengers: 1})
	h := NewAutoAssignHandler(mgr)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("POST", "/api/auto-assign?date=2025-03-10", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	var rep schedule.Report
	if err := json.Unmarshal(rr.Body.Bytes(), &rep); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rep.Assigned != 1 {
		t.Fatalf("expected one assignment, got %+v", rep)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("POST", "/api/auto-assign?date=nonsense", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", rr.Code)
	}
}

func TestAvailabilityHandler(t *testing.T) {
	_, _, cls := fixture(t)
	h := NewAvailabilityHandler(cls)

	body := `{"start":"2025-03-10T09:00:00Z","passengers":2}`
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("POST", "/api/check-availability", strings.NewReader(body)))
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	var res availability.Result
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res.Status != availability.StatusGreen {
		t.Fatalf("empty day must be green, got %+v", res)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("POST", "/api/check-availability", strings.NewReader(`{}`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing start, got %d", rr.Code)
	}
}

func TestFareHandler(t *testing.T) {
	calc, err := fare.New(fare.Config{
		Zones: []model.FareZone{{
			Name:  "Airport",
			Type:  model.ZoneDropoff,
			Areas: []string{"airport"},
			Fare:  45,
		}},
		Rate: &model.MileRate{Rate: model.Rate{BaseFare: 3, PerMile: 2.2, MinimumFare: 10}},
	}, nil, logger.NopLogger{})
	if err != nil {
		t.Fatalf("calculator: %v", err)
	}
	h := NewFareHandler(calc)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/fare-estimate?dropoff=Leeds+Airport&return=true", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var q fare.Quote
	if err := json.Unmarshal(rr.Body.Bytes(), &q); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !q.Known || q.Amount != 90 {
		t.Fatalf("expected doubled zone fare 90, got %+v", q)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/fare-estimate?pickup=a&dropoff=b&distance_miles=2.5", nil))
	if err := json.Unmarshal(rr.Body.Bytes(), &q); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !q.Known || q.Amount != 10 {
		t.Fatalf("expected clamped distance fare 10, got %+v", q)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/fare-estimate?distance_miles=abc", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad distance, got %d", rr.Code)
	}
}

func TestFareHandlerClientOverride(t *testing.T) {
	calc, err := fare.New(fare.Config{
		Zones: []model.FareZone{{
			Name:  "Airport",
			Type:  model.ZoneDropoff,
			Areas: []string{"airport"},
			Fare:  45,
		}},
		ClientOverrides: []model.ClientFareOverride{{
			ClientID:  "acme",
			UseCustom: true,
			Zones: []model.FareZone{{
				Name:  "Account Airport",
				Type:  model.ZoneDropoff,
				Areas: []string{"airport"},
				Fare:  38,
			}},
		}},
	}, nil, logger.NopLogger{})
	if err != nil {
		t.Fatalf("calculator: %v", err)
	}
	h := NewFareHandler(calc)

	var q fare.Quote
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/fare-estimate?dropoff=Leeds+Airport&client_id=acme", nil))
	if err := json.Unmarshal(rr.Body.Bytes(), &q); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !q.Known || q.Amount != 38 {
		t.Fatalf("expected account fare 38, got %+v", q)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/fare-estimate?dropoff=Leeds+Airport&client_id=unknown", nil))
	if err := json.Unmarshal(rr.Body.Bytes(), &q); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !q.Known || q.Amount != 45 {
		t.Fatalf("unknown client must get the global fare, got %+v", q)
	}
}
