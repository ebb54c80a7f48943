package routing

import (
	"fmt"

	"gonum.org/v1/gonum/interp"
)

// linear is a piecewise-linear interpolant whose end segments are extended
// beyond the tabulated range. Routing values can drift slightly outside the
// table, and those lookups extrapolate rather than clamp.
type linear struct {
	xs, ys []float64
	pl     interp.PiecewiseLinear
}

func newLinear(xs, ys []float64) (*linear, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("interpolant has %d x values but %d y values", len(xs), len(ys))
	}
	if len(xs) < 2 {
		return nil, fmt.Errorf("interpolant needs at least 2 points, got %d", len(xs))
	}
	for i := 1; i < len(xs); i++ {
		if !(xs[i] > xs[i-1]) {
			return nil, fmt.Errorf("interpolant x values must be strictly increasing, x[%d]=%v follows %v", i, xs[i], xs[i-1])
		}
	}

	l := &linear{xs: xs, ys: ys}
	if err := l.pl.Fit(xs, ys); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *linear) at(x float64) float64 {
	n := len(l.xs)
	switch {
	case x < l.xs[0]:
		return extend(l.xs[0], l.ys[0], l.xs[1], l.ys[1], x)
	case x > l.xs[n-1]:
		return extend(l.xs[n-2], l.ys[n-2], l.xs[n-1], l.ys[n-1], x)
	}
	return l.pl.Predict(x)
}

// extend evaluates the line through (x0, y0) and (x1, y1) at x
func extend(x0, y0, x1, y1, x float64) float64 {
	return y0 + (x-x0)*(y1-y0)/(x1-x0)
}
