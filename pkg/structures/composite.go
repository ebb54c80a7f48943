package structures

import (
	"errors"
)

var ErrNoOutlets = errors.New("composite outlet requires at least one structure")

// CompositeOutlet sums the discharge of outlets acting in parallel at a
// common stage. Nested composites are flattened when combined, so the
// member list never contains another CompositeOutlet.
type CompositeOutlet struct {
	members []Outlet
}

// Combine builds a composite from outlets in the given order. Composites are
// flattened; operands are never modified.
func Combine(outlets ...Outlet) (*CompositeOutlet, error) {
	members := make([]Outlet, 0, len(outlets))
	for _, o := range outlets {
		if IsNil(o) {
			continue
		}
		if c, ok := o.(*CompositeOutlet); ok {
			members = append(members, c.members...)
			continue
		}
		members = append(members, o)
	}
	if len(members) == 0 {
		return nil, ErrNoOutlets
	}
	return &CompositeOutlet{members: members}, nil
}

// IsNil reports whether o is nil or a nil pointer to one of this package's
// outlet types.
func IsNil(o Outlet) bool {
	switch v := o.(type) {
	case nil:
		return true
	case *Orifice:
		return v == nil
	case *RectangularWeir:
		return v == nil
	case *VNotchWeir:
		return v == nil
	case *BroadCrestedWeir:
		return v == nil
	case *CompositeOutlet:
		return v == nil
	}
	return false
}

// With returns a new composite with o appended
func (c *CompositeOutlet) With(o Outlet) *CompositeOutlet {
	combined, err := Combine(c, o)
	if err != nil {
		// c is non-empty by construction
		return c
	}
	return combined
}

// Members returns a copy of the flattened member list
func (c *CompositeOutlet) Members() []Outlet {
	out := make([]Outlet, len(c.members))
	copy(out, c.members)
	return out
}

func (c *CompositeOutlet) Len() int { return len(c.members) }

// DischargeAt sums member discharge in member order
func (c *CompositeOutlet) DischargeAt(stage float64) float64 {
	total := 0.0
	for _, m := range c.members {
		total += m.DischargeAt(stage)
	}
	return total
}

// DischargeCurve returns total discharge at each of the given stages
func (c *CompositeOutlet) DischargeCurve(stages []float64) []float64 {
	q := make([]float64, len(stages))
	for _, m := range c.members {
		for i, h := range stages {
			q[i] += m.DischargeAt(h)
		}
	}
	return q
}
