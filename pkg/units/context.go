package units

import (
	"fmt"
	"strconv"
)

// Measure is a user-supplied scalar. When Unit is empty the value is
// interpreted in the active Context's system; otherwise Unit wins.
type Measure struct {
	Value float64
	Unit  Unit
}

// Plain wraps an untagged value
func Plain(v float64) Measure { return Measure{Value: v} }

func Meters(v float64) Measure      { return Measure{v, Meter} }
func Feet(v float64) Measure        { return Measure{v, Foot} }
func Millimeters(v float64) Measure { return Measure{v, Millimeter} }
func Inches(v float64) Measure      { return Measure{v, Inch} }
func CubicMeters(v float64) Measure { return Measure{v, CubicMeter} }
func CubicFeet(v float64) Measure   { return Measure{v, CubicFoot} }
func CMSFlow(v float64) Measure     { return Measure{v, CMS} }
func CFSFlow(v float64) Measure     { return Measure{v, CFS} }
func Hectares(v float64) Measure    { return Measure{v, Hectare} }
func Acres(v float64) Measure       { return Measure{v, Acre} }

// Tagged reports whether the measure carries an explicit unit
func (m Measure) Tagged() bool { return m.Unit != "" }

func (m Measure) String() string {
	s := strconv.FormatFloat(m.Value, 'g', 6, 64)
	if m.Tagged() {
		return s + " " + string(m.Unit)
	}
	return s
}

// Context binds the active unit system for a set of conversions. The zero
// value is metric.
type Context struct {
	system System
}

// NewContext returns a Context for the named system
func NewContext(system string) (Context, error) {
	s, err := ParseSystem(system)
	if err != nil {
		return Context{}, err
	}
	return Context{system: s}, nil
}

// MustContext is NewContext for package-level defaults; it panics on an unknown system.
func MustContext(system string) Context {
	c, err := NewContext(system)
	if err != nil {
		panic(err)
	}
	return c
}

// System returns the active system
func (c Context) System() System {
	if c.system == "" {
		return Metric
	}
	return c.system
}

// ToSI converts a measure of quantity q to SI. Tagged measures use their own
// unit, which must be able to describe q.
func (c Context) ToSI(m Measure, q Quantity) (float64, error) {
	if m.Tagged() {
		if !m.Unit.Describes(q) {
			return 0, fmt.Errorf("unit %q cannot express %s", string(m.Unit), q)
		}
		f, err := m.Unit.Factor()
		if err != nil {
			return 0, err
		}
		return m.Value * f, nil
	}
	return c.ValueToSI(m.Value, q)
}

// ValueToSI converts an untagged value expressed in the active system
func (c Context) ValueToSI(v float64, q Quantity) (float64, error) {
	u, err := DisplayUnit(c.System(), q)
	if err != nil {
		return 0, err
	}
	f, _ := u.Factor()
	return v * f, nil
}

// FromSI converts an SI value of quantity q to the active system's display unit
func (c Context) FromSI(v float64, q Quantity) (float64, error) {
	u, err := DisplayUnit(c.System(), q)
	if err != nil {
		return 0, err
	}
	f, _ := u.Factor()
	return v / f, nil
}

// SliceToSI converts a slice of untagged values
func (c Context) SliceToSI(vs []float64, q Quantity) ([]float64, error) {
	out := make([]float64, len(vs))
	for i, v := range vs {
		si, err := c.ValueToSI(v, q)
		if err != nil {
			return nil, err
		}
		out[i] = si
	}
	return out, nil
}

// SliceFromSI converts a slice of SI values to the active system
func (c Context) SliceFromSI(vs []float64, q Quantity) ([]float64, error) {
	out := make([]float64, len(vs))
	for i, v := range vs {
		d, err := c.FromSI(v, q)
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}
