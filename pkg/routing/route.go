package routing

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/chrissnell/pondroute/pkg/hydrology"
)

var (
	ErrTimeStepRequired = errors.New("dt (time step in seconds) is required when inflow is a bare flow series")
	ErrInvalidTimeStep  = errors.New("invalid time step")
	ErrEmptyInflow      = errors.New("inflow has no values")
	ErrInitialStage     = errors.New("initial stage is below the lowest tabulated stage")
)

// Inflow is anything that supplies an inflow series in m³/s. A value that
// also implements TimeStep() (float64, bool), such as *hydrology.Hydrograph,
// supplies its own dt.
type Inflow interface {
	Flows() []float64
}

type timeStepper interface {
	TimeStep() (float64, bool)
}

// Flows is a bare inflow series (m³/s). Routing it requires WithTimeStep.
type Flows []float64

func (f Flows) Flows() []float64 { return append([]float64(nil), f...) }

type routeOptions struct {
	dt           *float64
	initialStage *float64
}

// RouteOption adjusts a single Route call
type RouteOption func(*routeOptions)

// WithTimeStep sets dt in seconds. It takes precedence over a time step
// carried by the inflow.
func WithTimeStep(dt float64) RouteOption {
	return func(o *routeOptions) { o.dt = &dt }
}

// WithInitialStage sets the starting water surface (m). The default is the
// lowest tabulated stage.
func WithInitialStage(h float64) RouteOption {
	return func(o *routeOptions) { o.initialStage = &h }
}

// Result is the output of one Route call. Its slices are owned by the
// caller but must be treated as read-only when shared.
type Result struct {
	Times    []float64 `json:"times"`
	Outflows []float64 `json:"outflows"`
	Stages   []float64 `json:"stages"`

	TimeStep          float64 `json:"time_step"`
	PeakInflow        float64 `json:"peak_inflow"`
	PeakOutflow       float64 `json:"peak_outflow"`
	PeakReduction     float64 `json:"peak_reduction"`
	MaxStage          float64 `json:"max_stage"`
	TimeToPeakOutflow float64 `json:"time_to_peak_outflow"`
	InflowVolume      float64 `json:"inflow_volume"`
	OutflowVolume     float64 `json:"outflow_volume"`

	// ExceededTable is set when MaxStage lies above the top tabulated stage,
	// i.e. the stage was reached by extrapolating the table.
	ExceededTable bool `json:"exceeded_table"`
}

// Route routes inflow through the pond.
//
// SI is clamped at zero, stage is floored at the lowest tabulated stage and
// outflow is clamped at zero. Stage has no ceiling: an event that overtops
// the table is extrapolated linearly and flagged in Result.ExceededTable.
func (p *DetentionPond) Route(inflow Inflow, opts ...RouteOption) (*Result, error) {
	var o routeOptions
	for _, opt := range opts {
		opt(&o)
	}
	if h, ok := inflow.(*hydrology.Hydrograph); inflow == nil || (ok && h == nil) {
		return nil, ErrEmptyInflow
	}

	in := inflow.Flows()
	if len(in) == 0 {
		return nil, ErrEmptyInflow
	}
	for i, q := range in {
		if !finite(q) {
			return nil, fmt.Errorf("%w: inflow[%d] is %v", hydrology.ErrInvalidSeries, i, q)
		}
	}

	dt, err := resolveTimeStep(inflow, o)
	if err != nil {
		return nil, err
	}

	h0 := p.bottom()
	if o.initialStage != nil {
		h0 = *o.initialStage
		if !finite(h0) || h0 < p.bottom() {
			return nil, fmt.Errorf("%w: %v < %v", ErrInitialStage, h0, p.bottom())
		}
	}

	siToStage, err := p.indicationCurve(dt)
	if err != nil {
		return nil, err
	}

	n := len(in)
	stages := make([]float64, n)
	outflows := make([]float64, n)

	stages[0] = h0
	outflows[0] = math.Max(p.stageToOutflow.at(h0), 0)
	siPrev := 2.0*p.stageToStorage.at(h0)/dt + outflows[0]

	for i := 1; i < n; i++ {
		si := in[i-1] + in[i] + siPrev - 2.0*outflows[i-1]
		si = math.Max(si, 0)

		stages[i] = math.Max(siToStage.at(si), p.bottom())
		outflows[i] = math.Max(p.stageToOutflow.at(stages[i]), 0)
		siPrev = si
	}

	r := summarize(in, outflows, stages, dt)
	r.ExceededTable = r.MaxStage > p.top()

	p.log.Debugw("routed inflow",
		"steps", n,
		"dt", dt,
		"table_points", len(p.stages),
		"peak_inflow", r.PeakInflow,
		"peak_outflow", r.PeakOutflow,
	)
	if r.ExceededTable {
		p.log.Warnw("routed stage exceeds stage table; upper stages are extrapolated",
			"max_stage", r.MaxStage,
			"table_top", p.top(),
		)
	}
	return r, nil
}

func resolveTimeStep(inflow Inflow, o routeOptions) (float64, error) {
	if o.dt != nil {
		dt := *o.dt
		if !finite(dt) || dt <= 0 {
			return 0, fmt.Errorf("%w: dt must be > 0, got %v", ErrInvalidTimeStep, dt)
		}
		return dt, nil
	}
	if ts, ok := inflow.(timeStepper); ok {
		if dt, ok := ts.TimeStep(); ok {
			if !finite(dt) || dt <= 0 {
				return 0, fmt.Errorf("%w: inflow time step must be > 0, got %v", ErrInvalidTimeStep, dt)
			}
			return dt, nil
		}
	}
	return 0, ErrTimeStepRequired
}

func summarize(inflows, outflows, stages []float64, dt float64) *Result {
	times := make([]float64, len(outflows))
	for i := range times {
		times[i] = float64(i) * dt
	}

	r := &Result{
		Times:             times,
		Outflows:          outflows,
		Stages:            stages,
		TimeStep:          dt,
		PeakInflow:        floats.Max(inflows),
		PeakOutflow:       floats.Max(outflows),
		MaxStage:          floats.Max(stages),
		TimeToPeakOutflow: times[floats.MaxIdx(outflows)],
		InflowVolume:      hydrology.Volume(times, inflows),
		OutflowVolume:     hydrology.Volume(times, outflows),
	}
	if r.PeakInflow > 0 {
		r.PeakReduction = 1.0 - r.PeakOutflow/r.PeakInflow
	}
	return r
}

// Outflow returns the routed outflow as a hydrograph on the result's time axis
func (r *Result) Outflow() (*hydrology.Hydrograph, error) {
	return hydrology.NewHydrograph(r.Times, r.Outflows)
}
