// Package hydrology produces and describes flow time series: the Hydrograph
// value object consumed by pond routing, and the SCS / rational-method
// rainfall-runoff calculations that generate design inflows.
package hydrology

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
)

var ErrInvalidSeries = errors.New("invalid hydrograph series")

// Hydrograph pairs ascending times (s) with flows (m³/s). It is immutable;
// accessors return copies.
type Hydrograph struct {
	times []float64
	flows []float64
}

// NewHydrograph validates and copies a time/flow series
func NewHydrograph(times, flows []float64) (*Hydrograph, error) {
	if len(times) != len(flows) {
		return nil, fmt.Errorf("%w: %d times but %d flows", ErrInvalidSeries, len(times), len(flows))
	}
	if len(times) == 0 {
		return nil, fmt.Errorf("%w: series is empty", ErrInvalidSeries)
	}
	for i := range times {
		if math.IsNaN(times[i]) || math.IsInf(times[i], 0) {
			return nil, fmt.Errorf("%w: time[%d] is not finite", ErrInvalidSeries, i)
		}
		if math.IsNaN(flows[i]) || math.IsInf(flows[i], 0) {
			return nil, fmt.Errorf("%w: flow[%d] is not finite", ErrInvalidSeries, i)
		}
		if i > 0 && times[i] <= times[i-1] {
			return nil, fmt.Errorf("%w: times must be strictly increasing, time[%d]=%v follows %v",
				ErrInvalidSeries, i, times[i], times[i-1])
		}
	}
	return &Hydrograph{
		times: append([]float64(nil), times...),
		flows: append([]float64(nil), flows...),
	}, nil
}

// NewUniformHydrograph builds a hydrograph with times 0, dt, 2dt, ...
func NewUniformHydrograph(flows []float64, dt float64) (*Hydrograph, error) {
	if !(dt > 0) {
		return nil, fmt.Errorf("%w: dt must be > 0, got %v", ErrInvalidSeries, dt)
	}
	times := make([]float64, len(flows))
	for i := range times {
		times[i] = float64(i) * dt
	}
	return NewHydrograph(times, flows)
}

// Triangular builds a single-peaked inflow rising linearly from zero at t=0 to
// peak at timeToPeak and falling back to zero at baseTime, sampled every dt.
func Triangular(peak, timeToPeak, baseTime, dt float64) (*Hydrograph, error) {
	switch {
	case peak < 0:
		return nil, fmt.Errorf("%w: peak must be >= 0, got %v", ErrInvalidSeries, peak)
	case !(dt > 0):
		return nil, fmt.Errorf("%w: dt must be > 0, got %v", ErrInvalidSeries, dt)
	case !(timeToPeak > 0):
		return nil, fmt.Errorf("%w: time to peak must be > 0, got %v", ErrInvalidSeries, timeToPeak)
	case baseTime < timeToPeak:
		return nil, fmt.Errorf("%w: base time %v is shorter than time to peak %v", ErrInvalidSeries, baseTime, timeToPeak)
	}

	n := int(baseTime/dt) + 1
	flows := make([]float64, n)
	for i := range flows {
		t := float64(i) * dt
		var q float64
		if t <= timeToPeak {
			q = peak * t / timeToPeak
		} else {
			q = peak * (baseTime - t) / (baseTime - timeToPeak)
		}
		flows[i] = math.Max(q, 0)
	}
	return NewUniformHydrograph(flows, dt)
}

func (h *Hydrograph) Len() int { return len(h.flows) }

// Times returns a copy of the time values (s)
func (h *Hydrograph) Times() []float64 { return append([]float64(nil), h.times...) }

// Flows returns a copy of the flow values (m³/s)
func (h *Hydrograph) Flows() []float64 { return append([]float64(nil), h.flows...) }

// TimeStep infers dt from the first interval. It reports false for a
// single-sample series.
func (h *Hydrograph) TimeStep() (float64, bool) {
	if len(h.times) < 2 {
		return 0, false
	}
	return h.times[1] - h.times[0], true
}

// PeakFlow is the maximum flow
func (h *Hydrograph) PeakFlow() float64 {
	return floats.Max(h.flows)
}

// PeakTime is the time of the first occurrence of the peak flow
func (h *Hydrograph) PeakTime() float64 {
	return h.times[floats.MaxIdx(h.flows)]
}

// Volume is the trapezoidal integral of flow over time (m³)
func (h *Hydrograph) Volume() float64 {
	return Volume(h.times, h.flows)
}

// Volume integrates flows over times with the trapezoidal rule. Fewer than two
// samples integrate to zero.
func Volume(times, flows []float64) float64 {
	if len(times) < 2 || len(times) != len(flows) {
		return 0
	}
	return integrate.Trapezoidal(times, flows)
}
