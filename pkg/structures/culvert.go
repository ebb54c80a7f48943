package structures

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

const (
	feetPerMeter     = 1 / 0.3048
	cubicFootInMeter = 0.028316846592
)

// Control identifies the hydraulic control governing a culvert
type Control string

const (
	InletControl  Control = "INLET_CONTROL"
	OutletControl Control = "OUTLET_CONTROL"
)

// inletCoefficients are the FHWA HDS-5 regression constants (K, M, c, Y) and
// entrance loss ke for each inlet type.
type inletCoefficients struct {
	k, m, c, y, ke float64
}

var inletTable = map[string]inletCoefficients{
	"square_edge": {0.0098, 2.0, 0.0398, 0.67, 0.5},
	"groove_end":  {0.0018, 2.0, 0.0292, 0.74, 0.2},
	"beveled":     {0.0045, 2.0, 0.0317, 0.69, 0.25},
	"projecting":  {0.0098, 2.0, 0.0398, 0.67, 0.9},
}

// InletTypes lists the supported culvert inlet types
func InletTypes() []string {
	names := make([]string, 0, len(inletTable))
	for k := range inletTable {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// CulvertResult reports a culvert analysis in SI units
type CulvertResult struct {
	Flow            float64 `json:"flow"`
	Headwater       float64 `json:"headwater"`
	Control         Control `json:"control"`
	HeadwaterRatio  float64 `json:"headwater_ratio"`
	Velocity        float64 `json:"velocity"`
	InletHeadwater  float64 `json:"hw_inlet"`
	OutletHeadwater float64 `json:"hw_outlet"`
}

// Culvert is a circular culvert analysed with the FHWA HDS-5 method. Both
// inlet and outlet control are always computed and the larger headwater governs.
type Culvert struct {
	diameter  float64
	length    float64
	slope     float64
	manningN  float64
	inlet     string
	coeff     inletCoefficients
	areaFull  float64
	radiusHyd float64
}

// NewCulvert builds a culvert from SI geometry and a resolved Manning's n
func NewCulvert(diameter, length, slope, manningN float64, inlet string) (*Culvert, error) {
	if err := positive("culvert diameter", diameter); err != nil {
		return nil, err
	}
	if err := positive("culvert length", length); err != nil {
		return nil, err
	}
	if err := positive("culvert Manning's n", manningN); err != nil {
		return nil, err
	}
	key := strings.ToLower(strings.TrimSpace(inlet))
	if key == "" {
		key = "square_edge"
	}
	coeff, ok := inletTable[key]
	if !ok {
		return nil, fmt.Errorf("unknown inlet type %q, available: %s", inlet, strings.Join(InletTypes(), ", "))
	}
	r := diameter / 2.0
	return &Culvert{
		diameter:  diameter,
		length:    length,
		slope:     slope,
		manningN:  manningN,
		inlet:     key,
		coeff:     coeff,
		areaFull:  math.Pi * r * r,
		radiusHyd: diameter / 4.0,
	}, nil
}

func (c *Culvert) Inlet() string { return c.inlet }

// Analyze computes headwater for a flow (m³/s) and tailwater depth above the
// outlet invert (m).
func (c *Culvert) Analyze(flow, tailwater float64) CulvertResult {
	d := c.diameter
	vFull := flow / c.areaFull

	// inlet control; the regression constants are in imperial form
	dFt := d * feetPerMeter
	aFt := c.areaFull * feetPerMeter * feetPerMeter
	qr := (flow / cubicFootInMeter) / (aFt * math.Sqrt(dFt))

	form1 := c.coeff.k*math.Pow(qr, c.coeff.m) - 0.5*c.slope
	form2 := c.coeff.c*qr*qr + c.coeff.y - 0.5*c.slope
	hwInlet := math.Max(form1, form2) * d

	// outlet control
	kf := 19.63 * c.manningN * c.manningN * c.length / math.Pow(c.radiusHyd, 4.0/3.0)
	hv := vFull * vFull / (2.0 * Gravity)
	hwOutlet := math.Max(tailwater+(1.0+c.coeff.ke+kf)*hv-c.slope*c.length, 0)

	res := CulvertResult{
		Flow:            flow,
		Velocity:        vFull,
		InletHeadwater:  hwInlet,
		OutletHeadwater: hwOutlet,
	}
	if hwInlet >= hwOutlet {
		res.Headwater = hwInlet
		res.Control = InletControl
	} else {
		res.Headwater = hwOutlet
		res.Control = OutletControl
	}
	res.HeadwaterRatio = res.Headwater / d
	return res
}

// PerformanceCurve analyzes evenly spaced flows from minFlow to maxFlow inclusive
func (c *Culvert) PerformanceCurve(minFlow, maxFlow float64, steps int, tailwater float64) []CulvertResult {
	if steps < 1 {
		return nil
	}
	if steps == 1 {
		return []CulvertResult{c.Analyze(minFlow, tailwater)}
	}
	out := make([]CulvertResult, steps)
	inc := (maxFlow - minFlow) / float64(steps-1)
	for i := range out {
		out[i] = c.Analyze(minFlow+float64(i)*inc, tailwater)
	}
	return out
}
