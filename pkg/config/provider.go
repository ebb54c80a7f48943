package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/chrissnell/pondroute/pkg/structures"
	"github.com/chrissnell/pondroute/pkg/units"
)

var ErrInvalidScenario = errors.New("invalid scenario")

// ScenarioProvider defines the interface for scenario sources
type ScenarioProvider interface {
	// Load the complete scenario
	LoadScenario() (*ScenarioData, error)

	IsReadOnly() bool
	Close() error
}

// ScenarioData describes one routing run: a pond, its outlets and an inflow.
// Values are in the scenario's unit system unless noted. The same structure
// is accepted as a JSON request body by the HTTP API.
type ScenarioData struct {
	Name         string       `json:"name" yaml:"name"`
	Units        string       `json:"units,omitempty" yaml:"units,omitempty"`
	TimeStep     float64      `json:"time_step,omitempty" yaml:"time_step,omitempty"` // seconds
	InitialStage *float64     `json:"initial_stage,omitempty" yaml:"initial_stage,omitempty"`
	Pond         PondData     `json:"pond" yaml:"pond"`
	Outlets      []OutletData `json:"outlets" yaml:"outlets"`
	Inflow       InflowData   `json:"inflow" yaml:"inflow"`
}

// PondData holds the stage-storage table
type PondData struct {
	Stages   []float64 `json:"stages" yaml:"stages"`
	Storages []float64 `json:"storages" yaml:"storages"`
}

// OutletData holds one outlet structure. Only the fields of its type are
// read; a zero coefficient selects the type's default.
type OutletData struct {
	Type         string  `json:"type" yaml:"type"`
	Diameter     float64 `json:"diameter,omitempty" yaml:"diameter,omitempty"`
	Invert       float64 `json:"invert,omitempty" yaml:"invert,omitempty"`
	Length       float64 `json:"length,omitempty" yaml:"length,omitempty"`
	Crest        float64 `json:"crest,omitempty" yaml:"crest,omitempty"`
	Vertex       float64 `json:"vertex,omitempty" yaml:"vertex,omitempty"`
	AngleDegrees float64 `json:"angle_degrees,omitempty" yaml:"angle_degrees,omitempty"`
	Coefficient  float64 `json:"coefficient,omitempty" yaml:"coefficient,omitempty"`
	// LengthUnit overrides the scenario system for this outlet's lengths and elevations
	LengthUnit string `json:"length_unit,omitempty" yaml:"length_unit,omitempty"`
}

// InflowData holds exactly one inflow source
type InflowData struct {
	Series     []float64       `json:"series,omitempty" yaml:"series,omitempty"`
	Hydrograph *HydrographData `json:"hydrograph,omitempty" yaml:"hydrograph,omitempty"`
	Triangular *TriangularData `json:"triangular,omitempty" yaml:"triangular,omitempty"`
	SCS        *SCSData        `json:"scs,omitempty" yaml:"scs,omitempty"`
}

type HydrographData struct {
	Times []float64 `json:"times" yaml:"times"` // seconds
	Flows []float64 `json:"flows" yaml:"flows"`
}

type TriangularData struct {
	Peak       float64 `json:"peak" yaml:"peak"`
	TimeToPeak float64 `json:"time_to_peak" yaml:"time_to_peak"` // seconds
	BaseTime   float64 `json:"base_time" yaml:"base_time"`       // seconds
}

// SCSData generates the inflow from an SCS Type II storm on a watershed
type SCSData struct {
	Area            float64 `json:"area" yaml:"area"` // km² or mi²
	CurveNumber     float64 `json:"curve_number" yaml:"curve_number"`
	TcMinutes       float64 `json:"tc_minutes" yaml:"tc_minutes"`
	Depth           float64 `json:"depth" yaml:"depth"` // mm or in
	DurationHours   float64 `json:"duration_hours,omitempty" yaml:"duration_hours,omitempty"`
	TimestepMinutes float64 `json:"timestep_minutes,omitempty" yaml:"timestep_minutes,omitempty"`
}

// Source names the inflow source that is set
func (i InflowData) Source() string {
	var set []string
	if i.Series != nil {
		set = append(set, "series")
	}
	if i.Hydrograph != nil {
		set = append(set, "hydrograph")
	}
	if i.Triangular != nil {
		set = append(set, "triangular")
	}
	if i.SCS != nil {
		set = append(set, "scs")
	}
	return strings.Join(set, ",")
}

// Validate checks the scenario's shape: unit names, table lengths, outlet
// types and the inflow source. Geometry and numeric ranges are left to the
// constructors that consume the values.
func (s *ScenarioData) Validate() error {
	if _, err := units.ParseSystem(s.Units); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}
	if s.TimeStep < 0 || math.IsNaN(s.TimeStep) {
		return fmt.Errorf("%w: time_step must be >= 0, got %v", ErrInvalidScenario, s.TimeStep)
	}
	if len(s.Pond.Stages) != len(s.Pond.Storages) {
		return fmt.Errorf("%w: pond has %d stages but %d storages", ErrInvalidScenario, len(s.Pond.Stages), len(s.Pond.Storages))
	}
	if len(s.Pond.Stages) < 2 {
		return fmt.Errorf("%w: pond needs at least 2 stages, got %d", ErrInvalidScenario, len(s.Pond.Stages))
	}

	if len(s.Outlets) == 0 {
		return fmt.Errorf("%w: at least one outlet is required", ErrInvalidScenario)
	}
	for i, o := range s.Outlets {
		switch structures.Kind(o.Type) {
		case structures.KindOrifice, structures.KindRectangularWeir, structures.KindVNotchWeir, structures.KindBroadCrestedWeir:
		default:
			return fmt.Errorf("%w: outlet %d has unknown type %q", ErrInvalidScenario, i, o.Type)
		}
		if o.LengthUnit != "" {
			u, err := units.ParseUnit(o.LengthUnit)
			if err != nil {
				return fmt.Errorf("%w: outlet %d: %w", ErrInvalidScenario, i, err)
			}
			if !u.Describes(units.Length) {
				return fmt.Errorf("%w: outlet %d: unit %q is not a length", ErrInvalidScenario, i, o.LengthUnit)
			}
		}
	}

	switch src := s.Inflow.Source(); src {
	case "series":
		if len(s.Inflow.Series) == 0 {
			return fmt.Errorf("%w: inflow series is empty", ErrInvalidScenario)
		}
		if s.TimeStep == 0 {
			return fmt.Errorf("%w: time_step is required with an inflow series", ErrInvalidScenario)
		}
	case "hydrograph", "triangular", "scs":
	case "":
		return fmt.Errorf("%w: inflow needs one of series, hydrograph, triangular or scs", ErrInvalidScenario)
	default:
		return fmt.Errorf("%w: inflow sets more than one source (%s)", ErrInvalidScenario, src)
	}
	return nil
}
