// Package units converts user-facing values to and from the canonical SI units
// used by every calculation in pondroute.
//
// A Context carries the active unit system and is bound once at the API
// boundary. Values tagged with an explicit Unit bypass the context's system.
package units

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownSystem = errors.New("unknown unit system")
	ErrUnknownUnit   = errors.New("unknown unit")
)

// System identifies the unit system presented at the API boundary
type System string

const (
	Metric   System = "metric"
	Imperial System = "imperial"
)

// Quantity tags the physical quantity a value represents
type Quantity string

const (
	Length            Quantity = "length"
	Area              Quantity = "area"
	CatchArea         Quantity = "catch_area"
	Volume            Quantity = "volume"
	Flow              Quantity = "flow"
	Velocity          Quantity = "velocity"
	Rainfall          Quantity = "rainfall"
	RainfallIntensity Quantity = "rainfall_intensity"
	Time              Quantity = "time"
)

// Unit is a concrete unit symbol
type Unit string

const (
	Meter      Unit = "m"
	Foot       Unit = "ft"
	Millimeter Unit = "mm"
	Inch       Unit = "in"

	SquareMeter     Unit = "m2"
	SquareFoot      Unit = "ft2"
	SquareKilometer Unit = "km2"
	Hectare         Unit = "ha"
	Acre            Unit = "acre"
	SquareMile      Unit = "mi2"

	CubicMeter Unit = "m3"
	CubicFoot  Unit = "ft3"

	CMS Unit = "cms"
	CFS Unit = "cfs"
	LPS Unit = "lps"

	MeterPerSecond Unit = "m/s"
	FootPerSecond  Unit = "ft/s"

	MillimeterRain Unit = "mm_rain"
	InchRain       Unit = "in_rain"

	MillimeterPerHour Unit = "mm/hr"
	InchPerHour       Unit = "in/hr"

	Second Unit = "s"
	Minute Unit = "min"
	Hour   Unit = "hr"
)

type unitDef struct {
	toSI       float64
	dimensions []Quantity
}

// conversion factors (unit -> SI) and the quantities each unit may describe
var unitTable = map[Unit]unitDef{
	Meter:      {1.0, []Quantity{Length, Rainfall}},
	Foot:       {0.3048, []Quantity{Length, Rainfall}},
	Millimeter: {1e-3, []Quantity{Length, Rainfall}},
	Inch:       {0.0254, []Quantity{Length, Rainfall}},

	SquareMeter:     {1.0, []Quantity{Area, CatchArea}},
	SquareFoot:      {0.09290304, []Quantity{Area, CatchArea}},
	SquareKilometer: {1e6, []Quantity{Area, CatchArea}},
	Hectare:         {1e4, []Quantity{Area, CatchArea}},
	Acre:            {4046.8564224, []Quantity{Area, CatchArea}},
	SquareMile:      {2_589_988.110336, []Quantity{Area, CatchArea}},

	CubicMeter: {1.0, []Quantity{Volume}},
	CubicFoot:  {0.028316846592, []Quantity{Volume}},

	CMS: {1.0, []Quantity{Flow}},
	CFS: {0.028316846592, []Quantity{Flow}},
	LPS: {1e-3, []Quantity{Flow}},

	MeterPerSecond: {1.0, []Quantity{Velocity}},
	FootPerSecond:  {0.3048, []Quantity{Velocity}},

	MillimeterRain: {1e-3, []Quantity{Rainfall, Length}},
	InchRain:       {0.0254, []Quantity{Rainfall, Length}},

	MillimeterPerHour: {1.0 / 3_600_000, []Quantity{RainfallIntensity}},
	InchPerHour:       {0.0254 / 3600, []Quantity{RainfallIntensity}},

	Second: {1.0, []Quantity{Time}},
	Minute: {60.0, []Quantity{Time}},
	Hour:   {3600.0, []Quantity{Time}},
}

// display unit for each (system, quantity) pair
var displayUnits = map[System]map[Quantity]Unit{
	Metric: {
		Length:            Meter,
		Area:              SquareMeter,
		CatchArea:         SquareKilometer,
		Volume:            CubicMeter,
		Flow:              CMS,
		Velocity:          MeterPerSecond,
		Rainfall:          MillimeterRain,
		RainfallIntensity: MillimeterPerHour,
		Time:              Second,
	},
	Imperial: {
		Length:            Foot,
		Area:              SquareFoot,
		CatchArea:         SquareMile,
		Volume:            CubicFoot,
		Flow:              CFS,
		Velocity:          FootPerSecond,
		Rainfall:          InchRain,
		RainfallIntensity: InchPerHour,
		Time:              Second,
	},
}

// ParseSystem resolves a unit system name. An empty name yields Metric.
func ParseSystem(name string) (System, error) {
	switch System(strings.ToLower(strings.TrimSpace(name))) {
	case "", Metric:
		return Metric, nil
	case Imperial:
		return Imperial, nil
	default:
		return "", fmt.Errorf("%w: %q (use %q or %q)", ErrUnknownSystem, name, Metric, Imperial)
	}
}

// ParseUnit validates a unit symbol
func ParseUnit(symbol string) (Unit, error) {
	u := Unit(strings.TrimSpace(symbol))
	if _, ok := unitTable[u]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownUnit, symbol)
	}
	return u, nil
}

// Factor returns the multiplier converting one u into SI
func (u Unit) Factor() (float64, error) {
	def, ok := unitTable[u]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownUnit, string(u))
	}
	return def.toSI, nil
}

// Describes reports whether u can express quantity q
func (u Unit) Describes(q Quantity) bool {
	def, ok := unitTable[u]
	if !ok {
		return false
	}
	for _, d := range def.dimensions {
		if d == q {
			return true
		}
	}
	return false
}

// DisplayUnit returns the unit a system uses for quantity q
func DisplayUnit(s System, q Quantity) (Unit, error) {
	byQuantity, ok := displayUnits[s]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSystem, string(s))
	}
	u, ok := byQuantity[q]
	if !ok {
		return "", fmt.Errorf("no %s unit for quantity %q", s, string(q))
	}
	return u, nil
}
