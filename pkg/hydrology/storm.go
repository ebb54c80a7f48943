package hydrology

import (
	"fmt"

	"gonum.org/v1/gonum/interp"
)

// SCS Type II 24-hour cumulative distribution: fraction of duration, fraction of depth
var (
	scsTypeIITime = []float64{
		0.000, 0.042, 0.083, 0.125, 0.167, 0.208,
		0.250, 0.292, 0.333, 0.375, 0.396, 0.417,
		0.438, 0.458, 0.479, 0.487, 0.492, 0.500,
		0.521, 0.542, 0.563, 0.583, 0.625, 0.667,
		0.708, 0.750, 0.792, 0.833, 0.875, 0.917,
		0.958, 1.000,
	}
	scsTypeIIFraction = []float64{
		0.000, 0.011, 0.022, 0.035, 0.048, 0.063,
		0.080, 0.098, 0.120, 0.147, 0.163, 0.181,
		0.204, 0.235, 0.283, 0.357, 0.663, 0.735,
		0.772, 0.799, 0.820, 0.838, 0.866, 0.891,
		0.914, 0.935, 0.953, 0.968, 0.980, 0.989,
		0.995, 1.000,
	}
)

// DesignStorm is a cumulative rainfall mass curve: depth (m) against time (s)
type DesignStorm struct {
	times      []float64
	cumulative []float64
	curve      interp.PiecewiseLinear
}

// NewDesignStorm builds a storm from cumulative depths (m) at times (s)
func NewDesignStorm(times, cumulative []float64) (*DesignStorm, error) {
	if len(times) != len(cumulative) {
		return nil, fmt.Errorf("design storm has %d times but %d depths", len(times), len(cumulative))
	}
	if len(times) < 2 {
		return nil, fmt.Errorf("design storm needs at least 2 points, got %d", len(times))
	}
	for i := 1; i < len(times); i++ {
		if times[i] <= times[i-1] {
			return nil, fmt.Errorf("design storm times must be strictly increasing, time[%d]=%v follows %v", i, times[i], times[i-1])
		}
	}
	s := &DesignStorm{
		times:      append([]float64(nil), times...),
		cumulative: append([]float64(nil), cumulative...),
	}
	// Fit panics on unsorted input, which is ruled out above
	if err := s.curve.Fit(s.times, s.cumulative); err != nil {
		return nil, fmt.Errorf("design storm mass curve: %w", err)
	}
	return s, nil
}

// DesignStormFromTable builds a storm from durations in minutes and cumulative depths in m
func DesignStormFromTable(durationsMinutes, cumulative []float64) (*DesignStorm, error) {
	times := make([]float64, len(durationsMinutes))
	for i, m := range durationsMinutes {
		times[i] = m * 60.0
	}
	return NewDesignStorm(times, cumulative)
}

// SCSTypeII distributes totalDepth (m) over durationHours with the SCS Type II curve
func SCSTypeII(totalDepth, durationHours float64) (*DesignStorm, error) {
	if !(durationHours > 0) {
		return nil, fmt.Errorf("storm duration must be > 0 hours, got %v", durationHours)
	}
	times := make([]float64, len(scsTypeIITime))
	depths := make([]float64, len(scsTypeIITime))
	for i := range scsTypeIITime {
		times[i] = scsTypeIITime[i] * durationHours * 3600.0
		depths[i] = scsTypeIIFraction[i] * totalDepth
	}
	return NewDesignStorm(times, depths)
}

// Duration is the storm length in seconds
func (s *DesignStorm) Duration() float64 {
	return s.times[len(s.times)-1] - s.times[0]
}

// TotalDepth is the final cumulative depth (m)
func (s *DesignStorm) TotalDepth() float64 {
	return s.cumulative[len(s.cumulative)-1]
}

// Hyetograph resamples the mass curve at a uniform step and returns the start
// time of each interval with its incremental depth (m).
func (s *DesignStorm) Hyetograph(timestepMinutes float64) ([]float64, []float64, error) {
	if !(timestepMinutes > 0) {
		return nil, nil, fmt.Errorf("hyetograph time step must be > 0 minutes, got %v", timestepMinutes)
	}
	dt := timestepMinutes * 60.0
	start, end := s.times[0], s.times[len(s.times)-1]

	var samples []float64
	for t := start; t < end+dt/2; t = start + float64(len(samples))*dt {
		samples = append(samples, t)
	}
	if len(samples) < 2 {
		return nil, nil, fmt.Errorf("time step %v min is longer than the storm", timestepMinutes)
	}

	starts := samples[:len(samples)-1]
	increments := make([]float64, len(starts))
	prev := s.curve.Predict(samples[0])
	for i := 1; i < len(samples); i++ {
		cur := s.curve.Predict(samples[i])
		increments[i-1] = max(cur-prev, 0)
		prev = cur
	}
	return append([]float64(nil), starts...), increments, nil
}
