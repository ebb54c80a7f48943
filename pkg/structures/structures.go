// Package structures models pond outlet controls as stage→discharge functions.
// All geometry is held in SI units and DischargeAt takes and returns SI values.
package structures

import (
	"errors"
	"fmt"
	"math"

	"github.com/chrissnell/pondroute/pkg/units"
)

// Gravity is standard gravitational acceleration (m/s²)
const Gravity = 9.80665

// Default coefficients for each structure type
const (
	DefaultOrificeCd       = 0.61
	DefaultRectangularCw   = 1.84 // SI; 3.33 in imperial form
	DefaultVNotchCd        = 0.58
	DefaultVNotchAngle     = 90.0
	DefaultBroadCrestedCw  = 1.70
	imperialRectangularCw  = 3.33
	imperialToSIWeirFactor = DefaultRectangularCw / imperialRectangularCw
)

var ErrInvalidGeometry = errors.New("invalid structure geometry")

// Outlet is the only capability the routing engine needs from an outlet:
// discharge (m³/s) at a stage (m).
type Outlet interface {
	DischargeAt(stage float64) float64
}

// BatchOutlet evaluates discharge at many stages in one call
type BatchOutlet interface {
	Outlet
	DischargeCurve(stages []float64) []float64
}

// Kind identifies a structure variant
type Kind string

const (
	KindOrifice          Kind = "orifice"
	KindRectangularWeir  Kind = "rectangular_weir"
	KindVNotchWeir       Kind = "v_notch_weir"
	KindBroadCrestedWeir Kind = "broad_crested_weir"
)

// Structure is a single hydraulic control. Discharge is exactly zero at or
// below Threshold and non-decreasing above it.
type Structure interface {
	Outlet
	Kind() Kind
	Threshold() float64
}

// Orifice is a circular orifice referenced to its centroid. It is treated as
// orifice-governed for any positive head; the transition to weir flow below
// the crown is not modelled.
type Orifice struct {
	diameter float64
	invert   float64
	cd       float64
	area     float64
}

// NewOrifice builds an orifice from SI diameter and invert elevation
func NewOrifice(diameter, invert, cd float64) (*Orifice, error) {
	if err := positive("orifice diameter", diameter); err != nil {
		return nil, err
	}
	r := diameter / 2.0
	return &Orifice{
		diameter: diameter,
		invert:   invert,
		cd:       cd,
		area:     math.Pi * r * r,
	}, nil
}

func (o *Orifice) Kind() Kind { return KindOrifice }

// Threshold is the centroid elevation
func (o *Orifice) Threshold() float64 { return o.invert + o.diameter/2.0 }

func (o *Orifice) Diameter() float64    { return o.diameter }
func (o *Orifice) Invert() float64      { return o.invert }
func (o *Orifice) Coefficient() float64 { return o.cd }

// DischargeAt returns Cd·A·sqrt(2gH), H measured above the centroid
func (o *Orifice) DischargeAt(stage float64) float64 {
	h := stage - o.Threshold()
	if h <= 0 {
		return 0
	}
	return o.cd * o.area * math.Sqrt(2.0*Gravity*h)
}

// RectangularWeir is a sharp-crested rectangular weir: Q = Cw·L·H^1.5
type RectangularWeir struct {
	length float64
	crest  float64
	cw     float64
}

func NewRectangularWeir(length, crest, cw float64) (*RectangularWeir, error) {
	if err := positive("rectangular weir length", length); err != nil {
		return nil, err
	}
	return &RectangularWeir{length: length, crest: crest, cw: cw}, nil
}

func (w *RectangularWeir) Kind() Kind           { return KindRectangularWeir }
func (w *RectangularWeir) Threshold() float64   { return w.crest }
func (w *RectangularWeir) Length() float64      { return w.length }
func (w *RectangularWeir) Coefficient() float64 { return w.cw }

func (w *RectangularWeir) DischargeAt(stage float64) float64 {
	return weirFlow(w.cw, w.length, stage-w.crest)
}

// VNotchWeir is a sharp-crested triangular weir:
// Q = (8/15)·Cd·tan(θ/2)·sqrt(2g)·H^2.5
type VNotchWeir struct {
	angle  float64 // degrees
	vertex float64
	cd     float64
	coeff  float64
}

func NewVNotchWeir(angleDegrees, vertex, cd float64) (*VNotchWeir, error) {
	if angleDegrees <= 0 || angleDegrees >= 180 || math.IsNaN(angleDegrees) {
		return nil, fmt.Errorf("%w: v-notch angle must be in (0, 180) degrees, got %v", ErrInvalidGeometry, angleDegrees)
	}
	half := angleDegrees * math.Pi / 180.0 / 2.0
	return &VNotchWeir{
		angle:  angleDegrees,
		vertex: vertex,
		cd:     cd,
		coeff:  (8.0 / 15.0) * cd * math.Tan(half) * math.Sqrt(2.0*Gravity),
	}, nil
}

func (w *VNotchWeir) Kind() Kind           { return KindVNotchWeir }
func (w *VNotchWeir) Threshold() float64   { return w.vertex }
func (w *VNotchWeir) Angle() float64       { return w.angle }
func (w *VNotchWeir) Coefficient() float64 { return w.cd }

func (w *VNotchWeir) DischargeAt(stage float64) float64 {
	h := stage - w.vertex
	if h <= 0 {
		return 0
	}
	return w.coeff * math.Pow(h, 2.5)
}

// BroadCrestedWeir has the rectangular weir form with a lower default coefficient
type BroadCrestedWeir struct {
	length float64
	crest  float64
	cw     float64
}

func NewBroadCrestedWeir(length, crest, cw float64) (*BroadCrestedWeir, error) {
	if err := positive("broad-crested weir length", length); err != nil {
		return nil, err
	}
	return &BroadCrestedWeir{length: length, crest: crest, cw: cw}, nil
}

func (w *BroadCrestedWeir) Kind() Kind           { return KindBroadCrestedWeir }
func (w *BroadCrestedWeir) Threshold() float64   { return w.crest }
func (w *BroadCrestedWeir) Length() float64      { return w.length }
func (w *BroadCrestedWeir) Coefficient() float64 { return w.cw }

func (w *BroadCrestedWeir) DischargeAt(stage float64) float64 {
	return weirFlow(w.cw, w.length, stage-w.crest)
}

// ImperialWeirCoefficient converts an imperial-form weir coefficient (e.g. 3.33)
// to its SI equivalent (1.84).
func ImperialWeirCoefficient(cw float64) float64 {
	return cw * imperialToSIWeirFactor
}

// Discharge evaluates an outlet at a stage given in the context's units and
// returns flow in the context's units.
func Discharge(ctx units.Context, o Outlet, stage units.Measure) (float64, error) {
	h, err := ctx.ToSI(stage, units.Length)
	if err != nil {
		return 0, err
	}
	return ctx.FromSI(o.DischargeAt(h), units.Flow)
}

// DischargeCurve evaluates o at each stage, using the batch form when available
func DischargeCurve(o Outlet, stages []float64) []float64 {
	if b, ok := o.(BatchOutlet); ok {
		return b.DischargeCurve(stages)
	}
	q := make([]float64, len(stages))
	for i, h := range stages {
		q[i] = o.DischargeAt(h)
	}
	return q
}

func weirFlow(cw, length, head float64) float64 {
	if head <= 0 {
		return 0
	}
	return cw * length * math.Pow(head, 1.5)
}

func positive(name string, v float64) error {
	if !(v > 0) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s must be > 0, got %v", ErrInvalidGeometry, name, v)
	}
	return nil
}
