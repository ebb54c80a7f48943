// Package scenario turns a scenario document into a pond, an outlet and an
// inflow in SI units, and routes it.
package scenario

import (
	"fmt"

	"github.com/chrissnell/pondroute/pkg/config"
	"github.com/chrissnell/pondroute/pkg/hydrology"
	"github.com/chrissnell/pondroute/pkg/routing"
	"github.com/chrissnell/pondroute/pkg/structures"
	"github.com/chrissnell/pondroute/pkg/units"
)

// DefaultStormHours is the SCS storm duration used when none is given
const DefaultStormHours = 24.0

// Built is a scenario resolved into routable objects
type Built struct {
	Name    string
	Units   units.Context
	Pond    *routing.DetentionPond
	Outlet  *structures.CompositeOutlet
	Inflow  routing.Inflow
	Options []routing.RouteOption
}

// Job wraps the built scenario for routing.Sweep
func (b *Built) Job() routing.Job {
	return routing.Job{Name: b.Name, Pond: b.Pond, Inflow: b.Inflow, Options: b.Options}
}

// Build validates s and converts it to SI objects
func Build(s *config.ScenarioData) (*Built, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	ctx, err := units.NewContext(s.Units)
	if err != nil {
		return nil, err
	}

	outlets := make([]structures.Outlet, 0, len(s.Outlets))
	for i, od := range s.Outlets {
		o, err := buildOutlet(ctx, od)
		if err != nil {
			return nil, fmt.Errorf("outlet %d (%s): %w", i, od.Type, err)
		}
		outlets = append(outlets, o)
	}
	composite, err := structures.Combine(outlets...)
	if err != nil {
		return nil, err
	}

	pond, err := routing.NewDetentionPondIn(ctx, s.Pond.Stages, s.Pond.Storages, composite)
	if err != nil {
		return nil, fmt.Errorf("pond: %w", err)
	}

	inflow, err := buildInflow(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("inflow: %w", err)
	}

	var opts []routing.RouteOption
	if s.TimeStep > 0 {
		opts = append(opts, routing.WithTimeStep(s.TimeStep))
	}
	if s.InitialStage != nil {
		h, err := ctx.ValueToSI(*s.InitialStage, units.Length)
		if err != nil {
			return nil, err
		}
		opts = append(opts, routing.WithInitialStage(h))
	}

	return &Built{
		Name:    s.Name,
		Units:   ctx,
		Pond:    pond,
		Outlet:  composite,
		Inflow:  inflow,
		Options: opts,
	}, nil
}

func buildOutlet(ctx units.Context, od config.OutletData) (structures.Outlet, error) {
	length := func(v float64) (float64, error) {
		return ctx.ToSI(units.Measure{Value: v, Unit: units.Unit(od.LengthUnit)}, units.Length)
	}
	imperial := ctx.System() == units.Imperial

	switch structures.Kind(od.Type) {
	case structures.KindOrifice:
		d, err := length(od.Diameter)
		if err != nil {
			return nil, err
		}
		invert, err := length(od.Invert)
		if err != nil {
			return nil, err
		}
		return structures.NewOrifice(d, invert, orDefault(od.Coefficient, structures.DefaultOrificeCd))

	case structures.KindRectangularWeir, structures.KindBroadCrestedWeir:
		l, err := length(od.Length)
		if err != nil {
			return nil, err
		}
		crest, err := length(od.Crest)
		if err != nil {
			return nil, err
		}
		def := structures.DefaultRectangularCw
		if structures.Kind(od.Type) == structures.KindBroadCrestedWeir {
			def = structures.DefaultBroadCrestedCw
		}
		// imperial scenarios give weir coefficients in ft^0.5/s form
		cw := def
		if od.Coefficient != 0 {
			cw = od.Coefficient
			if imperial {
				cw = structures.ImperialWeirCoefficient(cw)
			}
		}
		if structures.Kind(od.Type) == structures.KindBroadCrestedWeir {
			return structures.NewBroadCrestedWeir(l, crest, cw)
		}
		return structures.NewRectangularWeir(l, crest, cw)

	case structures.KindVNotchWeir:
		vertex, err := length(od.Vertex)
		if err != nil {
			return nil, err
		}
		return structures.NewVNotchWeir(
			orDefault(od.AngleDegrees, structures.DefaultVNotchAngle),
			vertex,
			orDefault(od.Coefficient, structures.DefaultVNotchCd),
		)
	}
	return nil, fmt.Errorf("unknown outlet type %q", od.Type)
}

func buildInflow(ctx units.Context, s *config.ScenarioData) (routing.Inflow, error) {
	in := s.Inflow
	switch {
	case in.Series != nil:
		flows, err := ctx.SliceToSI(in.Series, units.Flow)
		if err != nil {
			return nil, err
		}
		return routing.Flows(flows), nil

	case in.Hydrograph != nil:
		flows, err := ctx.SliceToSI(in.Hydrograph.Flows, units.Flow)
		if err != nil {
			return nil, err
		}
		return hydrology.NewHydrograph(in.Hydrograph.Times, flows)

	case in.Triangular != nil:
		peak, err := ctx.ValueToSI(in.Triangular.Peak, units.Flow)
		if err != nil {
			return nil, err
		}
		dt := s.TimeStep
		if dt == 0 {
			return nil, fmt.Errorf("time_step is required for a triangular inflow")
		}
		return hydrology.Triangular(peak, in.Triangular.TimeToPeak, in.Triangular.BaseTime, dt)

	case in.SCS != nil:
		return buildSCS(ctx, in.SCS)
	}
	return nil, fmt.Errorf("no inflow source")
}

func buildSCS(ctx units.Context, d *config.SCSData) (*hydrology.Hydrograph, error) {
	area, err := ctx.ValueToSI(d.Area, units.CatchArea)
	if err != nil {
		return nil, err
	}
	depth, err := ctx.ValueToSI(d.Depth, units.Rainfall)
	if err != nil {
		return nil, err
	}
	storm, err := hydrology.SCSTypeII(depth, orDefault(d.DurationHours, DefaultStormHours))
	if err != nil {
		return nil, err
	}
	ws := hydrology.Watershed{Area: area, CurveNumber: d.CurveNumber, TcMinutes: d.TcMinutes}
	return hydrology.SCSUnitHydrograph(ws, storm, d.TimestepMinutes)
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}
