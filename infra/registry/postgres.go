// Package registry provides the Postgres-backed Registry for deployments
// where the schedule outlives the process.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/tyneline/dispatch/core/model"
	coreregistry "github.com/tyneline/dispatch/core/registry"
)

// Postgres implements registry.Registry on a Postgres database. Vehicle-day
// locks are held in process; a deployment runs a single engine instance per
// database.
type Postgres struct {
	db      *sql.DB
	lockSet *coreregistry.LockSet
}

// NewPostgres opens and pings the database.
func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db, lockSet: coreregistry.NewLockSet()}, nil
}

// Migrate creates the schema when absent.
func (p *Postgres) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS vehicle_types (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			capacity INT NOT NULL DEFAULT 0,
			compatible_with TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS vehicles (
			id TEXT PRIMARY KEY,
			type_id TEXT NOT NULL REFERENCES vehicle_types(id),
			registration TEXT NOT NULL DEFAULT '',
			make TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS drivers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			reference TEXT NOT NULL DEFAULT '',
			pickup TEXT NOT NULL DEFAULT '',
			dropoff TEXT NOT NULL DEFAULT '',
			start_time TIMESTAMPTZ NOT NULL,
			duration_minutes INT NOT NULL DEFAULT 0,
			passengers INT NOT NULL DEFAULT 0,
			requested_type_id TEXT NOT NULL DEFAULT '',
			vehicle_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			fare DOUBLE PRECISION,
			return_trip BOOLEAN NOT NULL DEFAULT FALSE,
			client_id TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS jobs_day_idx ON jobs ((start_time::date))`,
		`CREATE TABLE IF NOT EXISTS driver_pairings (
			vehicle_id TEXT NOT NULL REFERENCES vehicles(id),
			driver_id TEXT NOT NULL REFERENCES drivers(id),
			day TEXT NOT NULL,
			PRIMARY KEY (vehicle_id, day)
		)`,
		`CREATE TABLE IF NOT EXISTS day_versions (
			day TEXT PRIMARY KEY,
			version BIGINT NOT NULL DEFAULT 0
		)`,
	}
	for _, s := range stmts {
		if _, err := p.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// AddVehicleType upserts reference data.
func (p *Postgres) AddVehicleType(ctx context.Context, t model.VehicleType) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO vehicle_types (id, name, capacity, compatible_with)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE SET name=$2, capacity=$3, compatible_with=$4`,
		t.ID, t.Name, t.Capacity, strings.Join(t.CompatibleWith, ","))
	return err
}

// AddVehicle upserts a vehicle.
func (p *Postgres) AddVehicle(ctx context.Context, v model.Vehicle) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO vehicles (id, type_id, registration, make, model)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET type_id=$2, registration=$3, make=$4, model=$5`,
		v.ID, v.TypeID, v.Registration, v.Make, v.Model)
	return err
}

// AddDriver upserts a driver.
func (p *Postgres) AddDriver(ctx context.Context, d model.Driver) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO drivers (id, name, phone) VALUES ($1,$2,$3)
		ON CONFLICT (id) DO UPDATE SET name=$2, phone=$3`,
		d.ID, d.Name, d.Phone)
	return err
}

// AddJob stores a booking, minting an ID when absent, and returns it.
func (p *Postgres) AddJob(ctx context.Context, j model.Job) (model.Job, error) {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Job{}, err
	}
	defer func() { _ = tx.Rollback() }()
	_, err = tx.ExecContext(ctx, `INSERT INTO jobs
		(id, reference, pickup, dropoff, start_time, duration_minutes, passengers, requested_type_id, vehicle_id, status, fare, return_trip, client_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		j.ID, j.Reference, j.Pickup, j.Dropoff, j.Start, j.DurationMinutes, j.Passengers,
		j.RequestedTypeID, j.VehicleID, j.Status.String(), j.Fare, j.Return, j.ClientID)
	if err != nil {
		return model.Job{}, err
	}
	if err := bumpVersion(ctx, tx, model.DayKey(j.Start)); err != nil {
		return model.Job{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Job{}, err
	}
	return j, nil
}

// Snapshot implements Registry.
func (p *Postgres) Snapshot(ctx context.Context, date time.Time) (coreregistry.Snapshot, error) {
	day := model.DayKey(date)
	snap := coreregistry.Snapshot{Date: date, Types: make(map[string]model.VehicleType)}

	if err := p.db.QueryRowContext(ctx,
		`SELECT version FROM day_versions WHERE day=$1`, day).Scan(&snap.Version); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return coreregistry.Snapshot{}, err
	}

	rows, err := p.db.QueryContext(ctx, `SELECT id, name, capacity, compatible_with FROM vehicle_types`)
	if err != nil {
		return coreregistry.Snapshot{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var t model.VehicleType
		var compat string
		if err := rows.Scan(&t.ID, &t.Name, &t.Capacity, &compat); err != nil {
			return coreregistry.Snapshot{}, err
		}
		if compat != "" {
			t.CompatibleWith = strings.Split(compat, ",")
		}
		snap.Types[t.ID] = t
	}
	if err := rows.Err(); err != nil {
		return coreregistry.Snapshot{}, err
	}

	vrows, err := p.db.QueryContext(ctx,
		`SELECT id, type_id, registration, make, model FROM vehicles ORDER BY id`)
	if err != nil {
		return coreregistry.Snapshot{}, err
	}
	defer vrows.Close()
	for vrows.Next() {
		var v model.Vehicle
		if err := vrows.Scan(&v.ID, &v.TypeID, &v.Registration, &v.Make, &v.Model); err != nil {
			return coreregistry.Snapshot{}, err
		}
		snap.Vehicles = append(snap.Vehicles, v)
	}
	if err := vrows.Err(); err != nil {
		return coreregistry.Snapshot{}, err
	}

	jrows, err := p.db.QueryContext(ctx, `SELECT
		id, reference, pickup, dropoff, start_time, duration_minutes, passengers,
		requested_type_id, vehicle_id, status, fare, return_trip, client_id
		FROM jobs WHERE start_time::date = $1::date ORDER BY start_time, id`, day)
	if err != nil {
		return coreregistry.Snapshot{}, err
	}
	defer jrows.Close()
	for jrows.Next() {
		j, err := scanJob(jrows)
		if err != nil {
			return coreregistry.Snapshot{}, err
		}
		snap.Jobs = append(snap.Jobs, j)
	}
	return snap, jrows.Err()
}

func scanJob(rows *sql.Rows) (model.Job, error) {
	var j model.Job
	var status string
	var fare sql.NullFloat64
	if err := rows.Scan(&j.ID, &j.Reference, &j.Pickup, &j.Dropoff, &j.Start, &j.DurationMinutes,
		&j.Passengers, &j.RequestedTypeID, &j.VehicleID, &status, &fare, &j.Return, &j.ClientID); err != nil {
		return model.Job{}, err
	}
	j.Status, _ = model.JobStatusFromString(status)
	if fare.Valid {
		j.Fare = &fare.Float64
	}
	return j, nil
}

// AssignVehicle implements Registry.
func (p *Postgres) AssignVehicle(ctx context.Context, jobID, vehicleID string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM vehicles WHERE id=$1)`, vehicleID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", coreregistry.ErrVehicleNotFound, vehicleID)
	}

	var day string
	err = tx.QueryRowContext(ctx, `UPDATE jobs SET vehicle_id=$2,
		status = CASE WHEN status='pending' THEN 'assigned' ELSE status END
		WHERE id=$1 RETURNING start_time::date::text`, jobID, vehicleID).Scan(&day)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", coreregistry.ErrJobNotFound, jobID)
	}
	if err != nil {
		return err
	}
	if err := bumpVersion(ctx, tx, day); err != nil {
		return err
	}
	return tx.Commit()
}

// SetFare implements Registry.
func (p *Postgres) SetFare(ctx context.Context, jobID string, fare float64) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var day string
	err = tx.QueryRowContext(ctx,
		`UPDATE jobs SET fare=$2 WHERE id=$1 RETURNING start_time::date::text`, jobID, fare).Scan(&day)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", coreregistry.ErrJobNotFound, jobID)
	}
	if err != nil {
		return err
	}
	if err := bumpVersion(ctx, tx, day); err != nil {
		return err
	}
	return tx.Commit()
}

// AssignDriver implements Registry.
func (p *Postgres) AssignDriver(ctx context.Context, a model.DailyDriverAssignment) error {
	res, err := p.db.ExecContext(ctx, `INSERT INTO driver_pairings (vehicle_id, driver_id, day)
		SELECT $1, $2, $3
		WHERE EXISTS (SELECT 1 FROM vehicles WHERE id=$1)
		  AND EXISTS (SELECT 1 FROM drivers WHERE id=$2)
		ON CONFLICT (vehicle_id, day) DO UPDATE SET driver_id=$2`,
		a.VehicleID, a.DriverID, model.DayKey(a.Date))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: pairing %s/%s", coreregistry.ErrDriverNotFound, a.VehicleID, a.DriverID)
	}
	return nil
}

// DriverFor implements Registry.
func (p *Postgres) DriverFor(ctx context.Context, vehicleID string, date time.Time) (model.Driver, error) {
	var d model.Driver
	err := p.db.QueryRowContext(ctx, `SELECT d.id, d.name, d.phone
		FROM driver_pairings p JOIN drivers d ON d.id = p.driver_id
		WHERE p.vehicle_id=$1 AND p.day=$2`, vehicleID, model.DayKey(date)).Scan(&d.ID, &d.Name, &d.Phone)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Driver{}, fmt.Errorf("%w: no pairing for vehicle %s", coreregistry.ErrDriverNotFound, vehicleID)
	}
	if err != nil {
		return model.Driver{}, err
	}
	return d, nil
}

// Lock implements Registry.
func (p *Postgres) Lock(vehicleID string, date time.Time) func() {
	return p.lockSet.Lock(vehicleID, date)
}

// Close releases the database handle.
func (p *Postgres) Close() error {
	return p.db.Close()
}

func bumpVersion(ctx context.Context, tx *sql.Tx, day string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO day_versions (day, version) VALUES ($1, 1)
		ON CONFLICT (day) DO UPDATE SET version = day_versions.version + 1`, day)
	return err
}
