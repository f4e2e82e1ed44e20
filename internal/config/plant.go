// Package config compiles plant specifications written in CUE into the
// runtime Plant model consumed by the simulation.
//
// A plant spec declares the physical line (components, spares, technicians,
// resources), the order book, recipes, SOP limits, product specs, and the
// sensor alarm thresholds. A default plant ships embedded; operators point
// the CLI at their own .cue file to override it.
package config

import (
	"github.com/calebmcnary/pharmline/internal/domain"
)

// ComponentSpec declares one monitored line component.
type ComponentSpec struct {
	Name string `json:"name"`
	// InitialHealth is the starting health percentage, 0-100.
	InitialHealth float64 `json:"initialHealth"`
	// WearPerHour is the health decay rate while the line runs.
	WearPerHour float64 `json:"wearPerHour"`
	// SpareID links the component to the spare part consumed by a
	// replacement work order. Empty means general maintenance only.
	SpareID string `json:"spareId,omitempty"`
	// ResourceID names the schedulable resource a work order on this
	// component takes out of service. Empty means maintenance does not
	// block the line.
	ResourceID string `json:"resourceId,omitempty"`
}

// Thresholds are the sensor alarm limits used by anomaly detection.
type Thresholds struct {
	Vibration   float64 `json:"vibration"`   // mm/s
	Temperature float64 `json:"temperature"` // degC
	MotorLoad   float64 `json:"motorLoad"`   // percent
}

// Plant is a compiled plant specification.
type Plant struct {
	Name         string               `json:"name"`
	Line         string               `json:"line"`
	HorizonHours float64              `json:"horizonHours"`
	Thresholds   Thresholds           `json:"thresholds"`
	Components   []ComponentSpec      `json:"components"`
	Technicians  []domain.Technician  `json:"technicians"`
	Spares       []domain.SparePart   `json:"spares"`
	Resources    []domain.Resource    `json:"resources"`
	Orders       []domain.BatchOrder  `json:"orders"`
	Recipes      []domain.Recipe      `json:"recipes"`
	SOPLimits    domain.SOPLimits     `json:"sopLimits"`
	ProductSpecs domain.ProductSpecs  `json:"productSpecs"`
}

// Component returns the named component spec, or nil.
func (p *Plant) Component(name string) *ComponentSpec {
	for i := range p.Components {
		if p.Components[i].Name == name {
			return &p.Components[i]
		}
	}
	return nil
}

// Recipe returns the recipe with the given ID, or nil.
func (p *Plant) Recipe(id string) *domain.Recipe {
	for i := range p.Recipes {
		if p.Recipes[i].ID == id {
			return &p.Recipes[i]
		}
	}
	return nil
}

// Spare returns the spare part with the given ID, or nil.
func (p *Plant) Spare(id string) *domain.SparePart {
	for i := range p.Spares {
		if p.Spares[i].ID == id {
			return &p.Spares[i]
		}
	}
	return nil
}
