// Package routing routes inflow hydrographs through a detention pond with the
// Modified Puls (storage-indication) method.
//
// A DetentionPond tabulates stage, storage and outlet discharge once at
// construction. Each Route call builds the storage-indication curve
// SI(h) = 2S(h)/dt + O(h) for its time step and then advances the mass
// balance
//
//	SI[i] = I[i-1] + I[i] + SI[i-1] - 2·O[i-1]
//
// in a single forward sweep, inverting SI to stage by table lookup. There is
// no per-step iteration.
//
// All values are canonical SI: stage in m, storage in m³, flow in m³/s and
// time in s. NewDetentionPondIn converts a table given in another unit system.
package routing

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/chrissnell/pondroute/pkg/structures"
	"github.com/chrissnell/pondroute/pkg/units"
)

var (
	ErrTableMismatch     = errors.New("stage and storage tables differ in length")
	ErrTableTooShort     = errors.New("stage table needs at least two points")
	ErrStageNotAscending = errors.New("stages must be strictly ascending")
	ErrInvalidTable      = errors.New("invalid stage-storage table")
	ErrNoOutlet          = errors.New("detention pond requires an outlet")
)

// DetentionPond holds a stage-storage-discharge table. It is safe for
// concurrent Route calls once constructed.
type DetentionPond struct {
	stages   []float64
	storages []float64
	outflows []float64
	outlet   structures.Outlet

	stageToOutflow *linear
	stageToStorage *linear

	log *zap.SugaredLogger
}

// NewDetentionPond builds a pond from ascending stages (m), the matching
// storages (m³) and the outlet discharging from it. Discharge at every
// tabulated stage is evaluated here and reused by every Route call.
// Storage is expected to be non-decreasing in stage; that is not checked.
func NewDetentionPond(stages, storages []float64, outlet structures.Outlet) (*DetentionPond, error) {
	if structures.IsNil(outlet) {
		return nil, ErrNoOutlet
	}
	if len(stages) != len(storages) {
		return nil, fmt.Errorf("%w: %d stages but %d storages", ErrTableMismatch, len(stages), len(storages))
	}
	if len(stages) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTableTooShort, len(stages))
	}
	for i := range stages {
		if !finite(stages[i]) {
			return nil, fmt.Errorf("%w: stage[%d] is %v", ErrInvalidTable, i, stages[i])
		}
		if !finite(storages[i]) {
			return nil, fmt.Errorf("%w: storage[%d] is %v", ErrInvalidTable, i, storages[i])
		}
		if i > 0 && stages[i] <= stages[i-1] {
			return nil, fmt.Errorf("%w: stage[%d]=%v follows %v", ErrStageNotAscending, i, stages[i], stages[i-1])
		}
	}

	p := &DetentionPond{
		stages:   append([]float64(nil), stages...),
		storages: append([]float64(nil), storages...),
		outlet:   outlet,
		log:      zap.NewNop().Sugar(),
	}
	p.outflows = structures.DischargeCurve(outlet, p.stages)
	for i, q := range p.outflows {
		if !finite(q) {
			return nil, fmt.Errorf("%w: outlet discharge at stage %v is %v", ErrInvalidTable, p.stages[i], q)
		}
	}

	var err error
	if p.stageToOutflow, err = newLinear(p.stages, p.outflows); err != nil {
		return nil, fmt.Errorf("stage-discharge curve: %w", err)
	}
	if p.stageToStorage, err = newLinear(p.stages, p.storages); err != nil {
		return nil, fmt.Errorf("stage-storage curve: %w", err)
	}
	return p, nil
}

// NewDetentionPondIn converts stages and storages from the context's unit
// system (length and volume) before building the pond.
func NewDetentionPondIn(ctx units.Context, stages, storages []float64, outlet structures.Outlet) (*DetentionPond, error) {
	stagesSI, err := ctx.SliceToSI(stages, units.Length)
	if err != nil {
		return nil, fmt.Errorf("converting stages: %w", err)
	}
	storagesSI, err := ctx.SliceToSI(storages, units.Volume)
	if err != nil {
		return nil, fmt.Errorf("converting storages: %w", err)
	}
	return NewDetentionPond(stagesSI, storagesSI, outlet)
}

// SetLogger replaces the pond's logger. It must not be called while routes
// are in progress.
func (p *DetentionPond) SetLogger(l *zap.SugaredLogger) {
	if l == nil {
		l = zap.NewNop().Sugar()
	}
	p.log = l
}

// Stages returns a copy of the tabulated stages (m)
func (p *DetentionPond) Stages() []float64 { return append([]float64(nil), p.stages...) }

// Storages returns a copy of the tabulated storages (m³)
func (p *DetentionPond) Storages() []float64 { return append([]float64(nil), p.storages...) }

// Outflows returns a copy of the outlet discharge (m³/s) at each tabulated stage
func (p *DetentionPond) Outflows() []float64 { return append([]float64(nil), p.outflows...) }

func (p *DetentionPond) Outlet() structures.Outlet { return p.outlet }

// bottom and top of the tabulated stage range
func (p *DetentionPond) bottom() float64 { return p.stages[0] }
func (p *DetentionPond) top() float64    { return p.stages[len(p.stages)-1] }

// indicationCurve inverts SI(h) = 2S(h)/dt + O(h) into an SI to stage lookup.
// Flat stretches of the curve (no storage or discharge gain between stages)
// would make the inverse ambiguous, so only strictly increasing SI points are
// kept.
func (p *DetentionPond) indicationCurve(dt float64) (*linear, error) {
	si := make([]float64, 0, len(p.stages))
	h := make([]float64, 0, len(p.stages))
	dropped := 0
	for i := range p.stages {
		v := 2.0*p.storages[i]/dt + p.outflows[i]
		if len(si) > 0 && v <= si[len(si)-1] {
			dropped++
			continue
		}
		si = append(si, v)
		h = append(h, p.stages[i])
	}
	if dropped > 0 {
		p.log.Debugw("dropped non-increasing storage-indication points", "dropped", dropped, "kept", len(si))
	}
	if len(si) < 2 {
		return nil, fmt.Errorf("%w: storage-indication curve is flat at dt=%v", ErrInvalidTable, dt)
	}
	return newLinear(si, h)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
