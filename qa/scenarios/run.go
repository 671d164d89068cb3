package scenarios

import (
	"context"
	"testing"

	"github.com/tyneline/dispatch/core/registry"
	"github.com/tyneline/dispatch/core/schedule"
	"github.com/tyneline/dispatch/core/validate"
	"github.com/tyneline/dispatch/infra/board"
	"github.com/tyneline/dispatch/infra/logger"
	"github.com/tyneline/dispatch/internal/eventbus"
)

// RunScenario loads the fixture's fleet and jobs into a fresh registry, runs
// a whole-day auto-assign and checks the outcome counts.
func RunScenario(t *testing.T, sc *Scenario) {
	reg := registry.NewMemory()
	for _, def := range sc.Types {
		reg.AddVehicleType(def.ToModel())
	}
	for _, def := range sc.Vehicles {
		reg.AddVehicle(def.ToModel())
	}
	for _, def := range sc.Jobs {
		reg.AddJob(def.ToModel())
	}

	val, err := validate.New(reg, validate.Config{}, logger.NopLogger{})
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	mgr, err := schedule.NewManager(reg, val, schedule.Config{}, logger.NopLogger{})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	bus := eventbus.New()
	defer bus.Close()
	mgr.SetEventBus(bus)
	feed := board.NewMockFeed()
	mgr.SetBoardFeed(feed)

	report, err := mgr.AutoAssign(context.Background(), sc.Date)
	if err != nil {
		t.Fatalf("auto-assign: %v", err)
	}
	if report.Assigned != sc.Expected.Assigned {
		t.Errorf("scenario %s expected %d assigned, got %d", sc.Name, sc.Expected.Assigned, report.Assigned)
	}
	if report.Failed != sc.Expected.Failed {
		t.Errorf("scenario %s expected %d failed, got %d", sc.Name, sc.Expected.Failed, report.Failed)
	}
	if len(feed.Assignments) != report.Assigned {
		t.Errorf("scenario %s board feed saw %d assignments, report says %d", sc.Name, len(feed.Assignments), report.Assigned)
	}
}
