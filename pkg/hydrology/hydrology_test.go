package hydrology

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHydrographDerivedProperties(t *testing.T) {
	h, err := NewHydrograph([]float64{0, 600, 1200, 1800, 2400}, []float64{0, 2, 6, 3, 0})
	require.NoError(t, err)

	assert.Equal(t, 5, h.Len())
	assert.Equal(t, 6.0, h.PeakFlow())
	assert.Equal(t, 1200.0, h.PeakTime())
	// trapezoids: (0+2)/2 + (2+6)/2 + (6+3)/2 + (3+0)/2 = 11 per 600 s
	assert.InDelta(t, 11*600.0, h.Volume(), 1e-9)

	dt, ok := h.TimeStep()
	require.True(t, ok)
	assert.Equal(t, 600.0, dt)
}

func TestHydrographIsImmutable(t *testing.T) {
	times := []float64{0, 60, 120}
	flows := []float64{1, 2, 1}
	h, err := NewHydrograph(times, flows)
	require.NoError(t, err)

	flows[1] = 100
	got := h.Flows()
	got[0] = -5
	assert.Equal(t, []float64{1, 2, 1}, h.Flows())
}

func TestHydrographValidation(t *testing.T) {
	tests := []struct {
		name  string
		times []float64
		flows []float64
	}{
		{"length mismatch", []float64{0, 1}, []float64{1}},
		{"empty", nil, nil},
		{"not increasing", []float64{0, 10, 10}, []float64{1, 2, 3}},
		{"decreasing", []float64{0, 10, 5}, []float64{1, 2, 3}},
		{"NaN flow", []float64{0, 1}, []float64{1, math.NaN()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHydrograph(tt.times, tt.flows)
			assert.ErrorIs(t, err, ErrInvalidSeries)
		})
	}
}

func TestSingleSampleHydrograph(t *testing.T) {
	h, err := NewHydrograph([]float64{0}, []float64{4})
	require.NoError(t, err)
	_, ok := h.TimeStep()
	assert.False(t, ok)
	assert.Equal(t, 0.0, h.Volume())
	assert.Equal(t, 4.0, h.PeakFlow())
}

func TestTriangular(t *testing.T) {
	h, err := Triangular(15, 3*3600, 8*3600, 600)
	require.NoError(t, err)

	assert.Equal(t, 49, h.Len())
	assert.Equal(t, 15.0, h.PeakFlow())
	assert.Equal(t, 10800.0, h.PeakTime())
	flows := h.Flows()
	assert.Equal(t, 0.0, flows[0])
	assert.InDelta(t, 0.0, flows[len(flows)-1], 1e-12)
	// area of the triangle: 0.5·base·peak
	assert.InDelta(t, 0.5*8*3600*15, h.Volume(), 1e-6)
}

func TestTriangularValidation(t *testing.T) {
	_, err := Triangular(10, 0, 100, 10)
	assert.Error(t, err)
	_, err = Triangular(10, 200, 100, 10)
	assert.Error(t, err)
	_, err = Triangular(10, 50, 100, 0)
	assert.Error(t, err)
	_, err = Triangular(-1, 50, 100, 10)
	assert.Error(t, err)
}

func TestSCSRunoffDepth(t *testing.T) {
	tests := []struct {
		name     string
		rainfall float64
		cn       float64
		expected float64
	}{
		{"127 mm on CN 75", 0.127, 75, 0.0622},
		{"no rain", 0, 80, 0},
		{"below initial abstraction", 0.005, 70, 0},
		{"impervious", 0.05, 100, 0.05},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := SCSRunoffDepth(tt.rainfall, tt.cn, DefaultInitialAbstraction)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, q, 5e-5)
		})
	}

	_, err := SCSRunoffDepth(0.1, 0, DefaultInitialAbstraction)
	assert.Error(t, err)
	_, err = SCSRunoffDepth(0.1, 101, DefaultInitialAbstraction)
	assert.Error(t, err)
}

func TestIncrementalRunoffSumsToCumulative(t *testing.T) {
	cum := []float64{0.005, 0.02, 0.05, 0.09, 0.1}
	inc := incrementalRunoff(cum, 80, DefaultInitialAbstraction)
	total, err := SCSRunoffDepth(0.1, 80, DefaultInitialAbstraction)
	require.NoError(t, err)

	sum := 0.0
	for _, v := range inc {
		assert.GreaterOrEqual(t, v, 0.0)
		sum += v
	}
	assert.InDelta(t, total, sum, 1e-12)
}

func TestRationalMethod(t *testing.T) {
	// 88.9 mm/hr on 6.07 ha with C = 0.70
	q, err := RationalMethod(0.70, 88.9/3_600_000, 6.07e4)
	require.NoError(t, err)
	assert.InDelta(t, 1.049, q, 5e-4)

	_, err = RationalMethod(1.2, 1e-5, 1e4)
	assert.Error(t, err)
}

func TestTimeOfConcentration(t *testing.T) {
	tc, err := TimeOfConcentration(Kirpich, 3000*0.3048, 0.02, TcParams{})
	require.NoError(t, err)
	assert.InDelta(t, 2.8, tc, 0.1)

	cn := 75.0
	tc, err = TimeOfConcentration(NRCSLag, 1000, 0.03, TcParams{CurveNumber: &cn})
	require.NoError(t, err)
	assert.Greater(t, tc, 0.0)

	c := 0.4
	tc, err = TimeOfConcentration("FAA", 300, 0.02, TcParams{RunoffCoefficient: &c})
	require.NoError(t, err)
	assert.Greater(t, tc, 0.0)

	_, err = TimeOfConcentration(NRCSLag, 1000, 0.03, TcParams{})
	assert.Error(t, err)
	_, err = TimeOfConcentration(FAA, 1000, 0.03, TcParams{})
	assert.Error(t, err)
	_, err = TimeOfConcentration(Kirpich, 1000, 0, TcParams{})
	assert.Error(t, err)
	_, err = TimeOfConcentration("manning", 1000, 0.03, TcParams{})
	assert.Error(t, err)
}

func TestSCSTypeIIStorm(t *testing.T) {
	storm, err := SCSTypeII(0.1, 24)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, storm.TotalDepth(), 1e-12)
	assert.InDelta(t, 24*3600.0, storm.Duration(), 1e-9)

	starts, depths, err := storm.Hyetograph(60)
	require.NoError(t, err)
	require.Len(t, starts, 24)
	require.Len(t, depths, 24)

	sum := 0.0
	for _, d := range depths {
		sum += d
	}
	assert.InDelta(t, 0.1, sum, 1e-9)
}

func TestDesignStormValidation(t *testing.T) {
	_, err := DesignStormFromTable([]float64{0, 30, 30}, []float64{0, 5e-3, 1e-2})
	assert.Error(t, err)
	_, err = DesignStormFromTable([]float64{0}, []float64{0})
	assert.Error(t, err)
	_, err = SCSTypeII(0.1, 0)
	assert.Error(t, err)
}

func TestSCSUnitHydrograph(t *testing.T) {
	ws := Watershed{Area: 50e4, CurveNumber: 80, TcMinutes: 30}
	storm, err := SCSTypeII(0.1, 24)
	require.NoError(t, err)

	h, err := SCSUnitHydrograph(ws, storm, 0)
	require.NoError(t, err)
	assert.Greater(t, h.PeakFlow(), 0.0)

	dt, ok := h.TimeStep()
	require.True(t, ok)
	assert.InDelta(t, 6*60.0, dt, 1e-9)

	// runoff volume should match the curve-number depth over the area within
	// the discretisation error of the unit hydrograph
	depth, err := SCSRunoffDepth(0.1, 80, DefaultInitialAbstraction)
	require.NoError(t, err)
	assert.InEpsilon(t, depth*ws.Area, h.Volume(), 0.1)
}

func TestSCSUnitHydrographValidation(t *testing.T) {
	storm, err := SCSTypeII(0.1, 24)
	require.NoError(t, err)

	_, err = SCSUnitHydrograph(Watershed{Area: 0, CurveNumber: 80, TcMinutes: 30}, storm, 0)
	assert.Error(t, err)
	_, err = SCSUnitHydrograph(Watershed{Area: 1e5, CurveNumber: 80, TcMinutes: 30}, nil, 0)
	assert.Error(t, err)
}

func TestConvolve(t *testing.T) {
	assert.Equal(t, []float64{1, 3, 5, 3}, convolve([]float64{1, 1}, []float64{1, 2, 3}))
	assert.Nil(t, convolve(nil, []float64{1}))
}
