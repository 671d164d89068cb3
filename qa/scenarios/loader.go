// Package scenarios runs YAML-described dispatch days through the real
// engine. QA edits the fixtures; the runner asserts the outcome counts.
package scenarios

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tyneline/dispatch/core/model"
)

type VehicleTypeDef struct {
	ID             string   `yaml:"id"`
	Name           string   `yaml:"name,omitempty"`
	Capacity       int      `yaml:"capacity"`
	CompatibleWith []string `yaml:"compatible_with,omitempty"`
}

func (t VehicleTypeDef) ToModel() model.VehicleType {
	return model.VehicleType{
		ID:             t.ID,
		Name:           t.Name,
		Capacity:       t.Capacity,
		CompatibleWith: t.CompatibleWith,
	}
}

type VehicleDef struct {
	ID           string `yaml:"id"`
	TypeID       string `yaml:"type_id"`
	Registration string `yaml:"registration,omitempty"`
}

func (v VehicleDef) ToModel() model.Vehicle {
	return model.Vehicle{
		ID:           v.ID,
		TypeID:       v.TypeID,
		Registration: v.Registration,
	}
}

type JobDef struct {
	Reference       string    `yaml:"reference"`
	Start           time.Time `yaml:"start"`
	DurationMinutes int       `yaml:"duration_minutes,omitempty"`
	Passengers      int       `yaml:"passengers"`
	RequestedTypeID string    `yaml:"requested_type_id,omitempty"`
	ClientID        string    `yaml:"client_id,omitempty"`
}

func (j JobDef) ToModel() model.Job {
	return model.Job{
		Reference:       j.Reference,
		Start:           j.Start,
		DurationMinutes: j.DurationMinutes,
		Passengers:      j.Passengers,
		RequestedTypeID: j.RequestedTypeID,
		ClientID:        j.ClientID,
	}
}

type Expected struct {
	Assigned int `yaml:"assigned"`
	Failed   int `yaml:"failed"`
}

type Scenario struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description,omitempty"`
	Date        time.Time        `yaml:"date"`
	Types       []VehicleTypeDef `yaml:"types"`
	Vehicles    []VehicleDef     `yaml:"vehicles"`
	Jobs        []JobDef         `yaml:"jobs"`
	Expected    Expected         `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}
