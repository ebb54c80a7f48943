package hydrology

import (
	"fmt"
	"math"
	"strings"
)

// DefaultInitialAbstraction is the customary Ia/S ratio
const DefaultInitialAbstraction = 0.2

// potentialRetention returns S (m) for a curve number
func potentialRetention(cn float64) float64 {
	return (25400.0/cn - 254.0) * 1e-3
}

func checkCurveNumber(cn float64) error {
	if cn <= 0 || cn > 100 {
		return fmt.Errorf("curve number must be in (0, 100], got %v", cn)
	}
	return nil
}

// SCSRunoffDepth returns direct runoff depth (m) for a rainfall depth (m)
// using the SCS curve number method: Q = (P-Ia)²/(P-Ia+S).
func SCSRunoffDepth(rainfall, curveNumber, iaRatio float64) (float64, error) {
	if err := checkCurveNumber(curveNumber); err != nil {
		return 0, err
	}
	if rainfall <= 0 {
		return 0, nil
	}
	if curveNumber == 100 {
		return rainfall, nil
	}
	s := potentialRetention(curveNumber)
	ia := iaRatio * s
	if rainfall <= ia {
		return 0, nil
	}
	return (rainfall - ia) * (rainfall - ia) / (rainfall - ia + s), nil
}

// incrementalRunoff converts cumulative rainfall (m) to per-step runoff (m).
// The curve number relation is applied to the cumulative depth, never per increment.
func incrementalRunoff(cumulative []float64, curveNumber, iaRatio float64) []float64 {
	out := make([]float64, len(cumulative))
	prev := 0.0
	if curveNumber == 100 {
		for i, p := range cumulative {
			out[i] = max(p-prev, 0)
			prev = p
		}
		return out
	}

	s := potentialRetention(curveNumber)
	ia := iaRatio * s
	for i, p := range cumulative {
		q := 0.0
		if p > ia {
			q = (p - ia) * (p - ia) / (p - ia + s)
		}
		out[i] = max(q-prev, 0)
		prev = q
	}
	return out
}

// RationalMethod returns peak discharge Q = C·i·A (m³/s) for intensity in m/s
// and area in m².
func RationalMethod(c, intensity, area float64) (float64, error) {
	if c < 0 || c > 1 {
		return 0, fmt.Errorf("runoff coefficient C must be in [0, 1], got %v", c)
	}
	return c * intensity * area, nil
}

// TcMethod names a time of concentration formula
type TcMethod string

const (
	Kirpich TcMethod = "kirpich"
	NRCSLag TcMethod = "nrcs_lag"
	FAA     TcMethod = "faa"
)

// TcParams carries the method-specific inputs; nil means not supplied.
type TcParams struct {
	CurveNumber       *float64
	RunoffCoefficient *float64
}

// TimeOfConcentration returns Tc in minutes for a flow path length (m) and
// slope (fraction). The empirical formulas are evaluated in feet and percent.
func TimeOfConcentration(method TcMethod, length, slope float64, p TcParams) (float64, error) {
	lFt := length / 0.3048
	sPct := slope * 100.0
	if sPct <= 0 {
		return 0, fmt.Errorf("slope must be positive, got %v", slope)
	}

	switch TcMethod(strings.ToLower(strings.TrimSpace(string(method)))) {
	case Kirpich:
		return 0.0078 * math.Pow(lFt, 0.77) * math.Pow(sPct, -0.385), nil
	case NRCSLag:
		if p.CurveNumber == nil {
			return 0, fmt.Errorf("curve number is required for %q method", NRCSLag)
		}
		if err := checkCurveNumber(*p.CurveNumber); err != nil {
			return 0, err
		}
		retention := 1000.0/(*p.CurveNumber) - 10.0 // inches
		lagHours := math.Pow(lFt, 0.8) * math.Pow(retention+1.0, 0.7) / (1140.0 * math.Pow(sPct, 0.5))
		return lagHours / 0.6 * 60.0, nil
	case FAA:
		if p.RunoffCoefficient == nil {
			return 0, fmt.Errorf("runoff coefficient is required for %q method", FAA)
		}
		c := *p.RunoffCoefficient
		return 1.8 * (1.1 - c) * math.Pow(lFt, 0.5) / math.Pow(sPct, 1.0/3.0), nil
	default:
		return 0, fmt.Errorf("unknown Tc method %q, available: %q, %q, %q", method, Kirpich, NRCSLag, FAA)
	}
}

// Watershed holds the catchment properties used by the unit hydrograph
type Watershed struct {
	Area        float64 // m²
	CurveNumber float64
	TcMinutes   float64
}

func (w Watershed) validate() error {
	if !(w.Area > 0) {
		return fmt.Errorf("watershed area must be > 0, got %v", w.Area)
	}
	if !(w.TcMinutes > 0) {
		return fmt.Errorf("watershed time of concentration must be > 0, got %v", w.TcMinutes)
	}
	return checkCurveNumber(w.CurveNumber)
}
