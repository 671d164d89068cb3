// Package schedule orchestrates placements: the manual allocate path and
// the whole-day auto-assign batch. Both funnel every vehicle-job pairing
// through the validator and record outcomes to metrics, the audit store,
// the event bus and the dispatch-board feed.
package schedule

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/tyneline/dispatch/core/events"
	"github.com/tyneline/dispatch/core/fare"
	"github.com/tyneline/dispatch/core/logger"
	"github.com/tyneline/dispatch/core/metrics"
	"github.com/tyneline/dispatch/core/model"
	"github.com/tyneline/dispatch/core/registry"
	"github.com/tyneline/dispatch/core/schedule/audit"
	"github.com/tyneline/dispatch/core/validate"
	"github.com/tyneline/dispatch/internal/eventbus"
)

// Config defines scheduler settings.
type Config struct {
	// PreferClientAffinity puts vehicles already carrying the job's client
	// ahead of the load-balance ordering.
	PreferClientAffinity bool `json:"prefer_client_affinity"`
}

// BoardFeed pushes schedule changes to dispatch-board screens. Publish
// failures are logged and never affect the engine result.
type BoardFeed interface {
	PublishAssignment(a Assignment) error
	PublishRun(r Report) error
}

// Manager runs placements against the registry.
type Manager struct {
	reg   registry.Registry
	val   *validate.Validator
	cfg   Config
	log   logger.Logger
	sink  metrics.Sink
	bus   eventbus.EventBus
	store audit.Store
	board BoardFeed
	fares *fare.Calculator
	mu    sync.Mutex
}

// NewManager creates a Manager. Optional collaborators are attached via the
// setters.
func NewManager(reg registry.Registry, val *validate.Validator, cfg Config, log logger.Logger) (*Manager, error) {
	if reg == nil || val == nil || log == nil {
		return nil, fmt.Errorf("schedule: nil parameter provided to NewManager")
	}
	return &Manager{reg: reg, val: val, cfg: cfg, log: log, sink: metrics.NopSink{}}, nil
}

// SetSink configures the metrics sink.
func (m *Manager) SetSink(s metrics.Sink) {
	m.mu.Lock()
	if s == nil {
		s = metrics.NopSink{}
	}
	m.sink = s
	m.mu.Unlock()
}

// SetEventBus configures the bus engine events are published on.
func (m *Manager) SetEventBus(b eventbus.EventBus) {
	m.mu.Lock()
	m.bus = b
	m.mu.Unlock()
}

// SetAuditStore configures the store used to persist allocation decisions.
func (m *Manager) SetAuditStore(s audit.Store) {
	m.mu.Lock()
	m.store = s
	m.mu.Unlock()
}

// SetBoardFeed configures the dispatch-board publisher.
func (m *Manager) SetBoardFeed(f BoardFeed) {
	m.mu.Lock()
	m.board = f
	m.mu.Unlock()
}

// SetFareCalculator enables pricing unquoted jobs at allocation time.
func (m *Manager) SetFareCalculator(c *fare.Calculator) {
	m.mu.Lock()
	m.fares = c
	m.mu.Unlock()
}

// Close releases resources held by the manager.
func (m *Manager) Close() error {
	if m.bus != nil {
		m.bus.Close()
	}
	if m.store != nil {
		return m.store.Close()
	}
	return nil
}

// Allocate performs a manual placement: one job onto one vehicle. A
// rejection is a normal result carrying a user-displayable reason; only
// integrity faults come back as errors.
func (m *Manager) Allocate(ctx context.Context, jobID, vehicleID string, date time.Time) (validate.Decision, error) {
	d, err := m.val.Allocate(ctx, jobID, vehicleID, date)
	if err != nil {
		return d, err
	}

	snap, serr := m.reg.Snapshot(ctx, date)
	if serr != nil {
		return d, serr
	}
	job, _ := snap.Job(jobID)

	// An idempotent re-allocation changed nothing; publishing or recording
	// it would report a fresh placement that never happened.
	if d.NoChange {
		m.log.Debugw("no-op re-allocation", map[string]any{"job": job.Reference, "vehicle": vehicleID})
		return d, nil
	}

	if d.Accepted {
		jobsAssigned.WithLabelValues("manual").Inc()
		m.priceIfUnquoted(ctx, snap, job, vehicleID)
		m.publishAssignment(Assignment{
			JobID:     job.ID,
			Reference: job.Reference,
			VehicleID: vehicleID,
			Time:      job.Start,
		}, false)
	} else {
		jobsRejected.WithLabelValues(reasonCategory(d.Reason)).Inc()
		m.publishRejection(job, vehicleID, d.Reason, false)
	}
	m.record([]metrics.AllocationRecord{{
		JobID:     jobID,
		Reference: job.Reference,
		VehicleID: vehicleID,
		Day:       model.DayKey(date),
		Accepted:  d.Accepted,
		Reason:    d.Reason,
		Timestamp: time.Now(),
	}}, nil)
	m.audit(ctx, audit.Record{
		Timestamp:    time.Now(),
		Kind:         audit.KindAllocate,
		Day:          model.DayKey(date),
		JobID:        jobID,
		JobReference: job.Reference,
		VehicleID:    vehicleID,
		Accepted:     d.Accepted,
		Reason:       d.Reason,
	})
	return d, nil
}

// AutoAssign places all of the day's unassigned jobs, earliest first. Each
// accepted placement is durable immediately; a later failure never rolls
// back earlier successes. The context is checked once per job so a long
// batch can be cancelled between iterations.
func (m *Manager) AutoAssign(ctx context.Context, date time.Time) (Report, error) {
	start := time.Now()
	report := Report{Date: date}

	snap, err := m.reg.Snapshot(ctx, date)
	if err != nil {
		return report, err
	}
	jobs := snap.Unassigned()
	counts := make(map[string]int, len(snap.Vehicles))
	clients := make(map[string]map[string]bool, len(snap.Vehicles))
	for _, v := range snap.Vehicles {
		counts[v.ID] = 0
		clients[v.ID] = make(map[string]bool)
	}
	for _, j := range snap.Jobs {
		if j.Assigned() && j.Schedulable() {
			counts[j.VehicleID]++
			if j.ClientID != "" {
				if set := clients[j.VehicleID]; set != nil {
					set[j.ClientID] = true
				}
			}
		}
	}

	m.log.Infof("auto-assign %s: %d unassigned jobs, %d vehicles", model.DayKey(date), len(jobs), len(snap.Vehicles))
	var allocations []metrics.AllocationRecord
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			m.log.Warnf("auto-assign cancelled after %d placements", report.Assigned)
			return report, err
		}
		asn, failure, err := m.placeJob(ctx, date, job, snap.Vehicles, counts, clients)
		if err != nil {
			return report, err
		}
		rec := metrics.AllocationRecord{
			JobID:     job.ID,
			Reference: job.Reference,
			Day:       model.DayKey(date),
			Auto:      true,
			Timestamp: time.Now(),
		}
		if failure != nil {
			report.Failed++
			report.Failures = append(report.Failures, *failure)
			jobsRejected.WithLabelValues(reasonCategory(failure.Reason)).Inc()
			rec.Reason = failure.Reason
			m.publishRejection(job, "", failure.Reason, true)
		} else if asn != nil {
			report.Assigned++
			report.Assignments = append(report.Assignments, *asn)
			counts[asn.VehicleID]++
			if job.ClientID != "" {
				clients[asn.VehicleID][job.ClientID] = true
			}
			jobsAssigned.WithLabelValues("auto").Inc()
			rec.VehicleID = asn.VehicleID
			rec.Accepted = true
			m.publishAssignment(*asn, true)
		} else {
			// Job was concurrently assigned by a manual move; nothing to do.
			continue
		}
		allocations = append(allocations, rec)
	}

	used := make(map[string]bool, len(report.Assignments))
	for _, a := range report.Assignments {
		used[a.VehicleID] = true
	}
	report.VehiclesUsed = len(used)

	imbalance := loadStdDev(counts)
	autoAssignRuns.Inc()
	runLatency.Observe(time.Since(start).Seconds())
	loadImbalance.Set(imbalance)
	unplacedPerRun.Set(float64(report.Failed))

	m.record(allocations, &metrics.RunRecord{
		Day:           model.DayKey(date),
		Assigned:      report.Assigned,
		Failed:        report.Failed,
		VehiclesUsed:  report.VehiclesUsed,
		LoadImbalance: imbalance,
		Duration:      time.Since(start),
		Timestamp:     time.Now(),
	})
	m.audit(ctx, audit.Record{
		Timestamp:    time.Now(),
		Kind:         audit.KindAutoAssign,
		Day:          model.DayKey(date),
		Assigned:     report.Assigned,
		Failed:       report.Failed,
		VehiclesUsed: report.VehiclesUsed,
	})
	if m.bus != nil {
		m.bus.Publish(events.AutoAssignCompleted{
			Date:         date,
			Assigned:     report.Assigned,
			Failed:       report.Failed,
			VehiclesUsed: report.VehiclesUsed,
		})
	}
	if m.board != nil {
		if err := m.board.PublishRun(report); err != nil {
			m.log.Errorf("board feed run publish: %v", err)
		}
	}
	m.log.Infof("auto-assign %s: assigned=%d failed=%d vehicles=%d", model.DayKey(date), report.Assigned, report.Failed, report.VehiclesUsed)
	return report, nil
}

// placeJob tries candidate vehicles in preference order, locking each
// vehicle-day only while it is being validated. Returns the assignment on
// success, a failure entry when nothing fits, or neither when the job was
// assigned concurrently.
func (m *Manager) placeJob(ctx context.Context, date time.Time, job model.Job, vehicles []model.Vehicle, counts map[string]int, clients map[string]map[string]bool) (*Assignment, *Failure, error) {
	candidates := m.orderCandidates(job, vehicles, counts, clients)
	firstReason := ""
	for _, v := range candidates {
		unlock := m.reg.Lock(v.ID, date)
		fresh, err := m.reg.Snapshot(ctx, date)
		if err != nil {
			unlock()
			return nil, nil, err
		}
		current, ok := fresh.Job(job.ID)
		if !ok {
			unlock()
			return nil, nil, fmt.Errorf("%w: %s", registry.ErrJobNotFound, job.ID)
		}
		if current.Assigned() {
			unlock()
			return nil, nil, nil
		}
		d, err := m.val.Check(fresh, current, v)
		if err != nil {
			unlock()
			return nil, nil, err
		}
		if !d.Accepted {
			if firstReason == "" {
				firstReason = d.Reason
			}
			unlock()
			continue
		}
		err = m.reg.AssignVehicle(ctx, job.ID, v.ID)
		unlock()
		if err != nil {
			return nil, nil, err
		}
		return &Assignment{
			JobID:       job.ID,
			Reference:   job.Reference,
			VehicleID:   v.ID,
			VehicleName: displayName(v),
			Time:        job.Start,
		}, nil, nil
	}
	if firstReason == "" {
		firstReason = "No compatible vehicle available"
	}
	return nil, &Failure{JobID: job.ID, Reference: job.Reference, Time: job.Start, Reason: firstReason}, nil
}

// orderCandidates sorts vehicles by preference: client affinity when
// enabled, then fewest jobs that day, then vehicle ID for determinism.
func (m *Manager) orderCandidates(job model.Job, vehicles []model.Vehicle, counts map[string]int, clients map[string]map[string]bool) []model.Vehicle {
	out := append([]model.Vehicle(nil), vehicles...)
	affinity := func(v model.Vehicle) bool {
		if !m.cfg.PreferClientAffinity || job.ClientID == "" {
			return false
		}
		return clients[v.ID][job.ClientID]
	}
	sort.SliceStable(out, func(i, j int) bool {
		ai, aj := affinity(out[i]), affinity(out[j])
		if ai != aj {
			return ai
		}
		if counts[out[i].ID] != counts[out[j].ID] {
			return counts[out[i].ID] < counts[out[j].ID]
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// priceIfUnquoted computes and stores a fare for a job that has none.
// Unknown quotes are left for the operator to price manually.
func (m *Manager) priceIfUnquoted(ctx context.Context, snap registry.Snapshot, job model.Job, vehicleID string) {
	if m.fares == nil || job.Fare != nil {
		return
	}
	typeID := job.RequestedTypeID
	if v, ok := snap.Vehicle(vehicleID); ok && typeID == "" {
		typeID = v.TypeID
	}
	q := m.fares.Compute(ctx, fare.Request{
		Pickup:        job.Pickup,
		Dropoff:       job.Dropoff,
		VehicleTypeID: typeID,
		Return:        job.Return,
		ClientID:      job.ClientID,
	})
	if !q.Known {
		return
	}
	if err := m.reg.SetFare(ctx, job.ID, q.Amount); err != nil {
		m.log.Errorf("set fare for %s: %v", job.Reference, err)
	}
}

func (m *Manager) publishAssignment(a Assignment, auto bool) {
	if m.bus != nil {
		m.bus.Publish(events.JobAssigned{
			JobID:     a.JobID,
			Reference: a.Reference,
			VehicleID: a.VehicleID,
			Start:     a.Time,
			Auto:      auto,
		})
	}
	if m.board != nil {
		if err := m.board.PublishAssignment(a); err != nil {
			m.log.Errorf("board feed publish: %v", err)
		}
	}
}

func (m *Manager) publishRejection(job model.Job, vehicleID, reason string, auto bool) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(events.JobRejected{
		JobID:     job.ID,
		Reference: job.Reference,
		VehicleID: vehicleID,
		Reason:    reason,
		Auto:      auto,
	})
}

// record forwards sink records; sink errors are logged, never propagated.
func (m *Manager) record(allocs []metrics.AllocationRecord, run *metrics.RunRecord) {
	if len(allocs) > 0 {
		if err := m.sink.RecordAllocations(allocs); err != nil {
			m.log.Errorf("metrics error: %v", err)
		}
	}
	if run != nil {
		if err := m.sink.RecordRun(*run); err != nil {
			m.log.Errorf("run metrics error: %v", err)
		}
	}
}

func (m *Manager) audit(ctx context.Context, rec audit.Record) {
	if m.store == nil {
		return
	}
	if err := m.store.Append(ctx, rec); err != nil {
		m.log.Errorf("audit append: %v", err)
	}
}

// loadStdDev computes the spread of per-vehicle job counts.
func loadStdDev(counts map[string]int) float64 {
	if len(counts) < 2 {
		return 0
	}
	xs := make([]float64, 0, len(counts))
	for _, c := range counts {
		xs = append(xs, float64(c))
	}
	return stat.StdDev(xs, nil)
}

// displayName renders a vehicle for operator-facing lists.
func displayName(v model.Vehicle) string {
	if v.Registration != "" {
		return v.Registration
	}
	if v.Make != "" || v.Model != "" {
		return fmt.Sprintf("%s %s", v.Make, v.Model)
	}
	return v.ID
}
