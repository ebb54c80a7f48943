package scenario

import (
	"context"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrissnell/pondroute/internal/observability"
	"github.com/chrissnell/pondroute/pkg/config"
	"github.com/chrissnell/pondroute/pkg/hydrology"
	"github.com/chrissnell/pondroute/pkg/routing"
	"github.com/chrissnell/pondroute/pkg/structures"
	"github.com/chrissnell/pondroute/pkg/units"
)

const examplePond = `
name: example
time_step: 600
pond:
  stages: [0, 1, 2, 3]
  storages: [0, 10000, 25000, 45000]
outlets:
  - type: rectangular_weir
    length: 2
    crest: 1
inflow:
  triangular:
    peak: 15
    time_to_peak: 10800
    base_time: 28800
`

func parse(t *testing.T, doc string) *config.ScenarioData {
	t.Helper()
	s, err := config.ParseYAML([]byte(doc))
	require.NoError(t, err)
	return s
}

func TestBuildMatchesDirectRouting(t *testing.T) {
	b, err := Build(parse(t, examplePond))
	require.NoError(t, err)
	assert.Equal(t, "example", b.Name)
	assert.Equal(t, units.Metric, b.Units.System())
	require.Equal(t, 1, b.Outlet.Len())

	got, err := b.Pond.Route(b.Inflow, b.Options...)
	require.NoError(t, err)

	weir, err := structures.NewRectangularWeir(2, 1, structures.DefaultRectangularCw)
	require.NoError(t, err)
	pond, err := routing.NewDetentionPond([]float64{0, 1, 2, 3}, []float64{0, 10000, 25000, 45000}, weir)
	require.NoError(t, err)
	inflow, err := hydrology.Triangular(15, 10800, 28800, 600)
	require.NoError(t, err)
	want, err := pond.Route(inflow)
	require.NoError(t, err)

	assert.Equal(t, want, got)
}

func TestBuildImperial(t *testing.T) {
	doc := `
name: imperial
units: imperial
time_step: 300
initial_stage: 1
pond:
  stages: [0, 5, 10]
  storages: [0, 20000, 60000]
outlets:
  - type: rectangular_weir
    length: 2
    crest: 5
    coefficient: 3.33
  - type: orifice
    diameter: 12
    invert: 0
    length_unit: in
  - type: v_notch_weir
    vertex: 3
  - type: broad_crested_weir
    length: 4
    crest: 8
inflow:
  series: [0, 10, 30, 10, 0]
`
	b, err := Build(parse(t, doc))
	require.NoError(t, err)

	stages := b.Pond.Stages()
	assert.InDelta(t, 3.048, stages[2], 1e-9)
	assert.InDelta(t, 60000*0.028316846592, b.Pond.Storages()[2], 1e-6)

	members := b.Outlet.Members()
	require.Len(t, members, 4)

	weir := members[0].(*structures.RectangularWeir)
	assert.InDelta(t, 0.6096, weir.Length(), 1e-12)
	assert.InDelta(t, 1.84, weir.Coefficient(), 1e-9)

	orifice := members[1].(*structures.Orifice)
	assert.InDelta(t, 0.3048, orifice.Diameter(), 1e-12)
	assert.Equal(t, structures.DefaultOrificeCd, orifice.Coefficient())

	notch := members[2].(*structures.VNotchWeir)
	assert.Equal(t, structures.DefaultVNotchAngle, notch.Angle())
	assert.InDelta(t, 0.9144, notch.Threshold(), 1e-12)

	broad := members[3].(*structures.BroadCrestedWeir)
	assert.Equal(t, structures.DefaultBroadCrestedCw, broad.Coefficient())

	r, err := b.Pond.Route(b.Inflow, b.Options...)
	require.NoError(t, err)
	assert.InDelta(t, 0.3048, r.Stages[0], 1e-12)
	assert.InDelta(t, 30*0.028316846592, r.PeakInflow, 1e-12)
	assert.Equal(t, 300.0, r.TimeStep)
}

func TestBuildSCSInflow(t *testing.T) {
	doc := `
name: scs
pond:
  stages: [0, 1, 2, 3]
  storages: [0, 10000, 25000, 45000]
outlets:
  - type: orifice
    diameter: 0.3
inflow:
  scs:
    area: 0.5
    curve_number: 80
    tc_minutes: 30
    depth: 100
`
	b, err := Build(parse(t, doc))
	require.NoError(t, err)

	h, ok := b.Inflow.(*hydrology.Hydrograph)
	require.True(t, ok)
	dt, ok := h.TimeStep()
	require.True(t, ok)
	assert.Equal(t, 360.0, dt)
	assert.Greater(t, h.PeakFlow(), 0.0)

	r, err := b.Pond.Route(b.Inflow, b.Options...)
	require.NoError(t, err)
	assert.Less(t, r.PeakOutflow, r.PeakInflow)
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.ScenarioData)
		wantErr error
	}{
		{"invalid scenario", func(s *config.ScenarioData) { s.Outlets = nil }, config.ErrInvalidScenario},
		{"bad geometry", func(s *config.ScenarioData) { s.Outlets[0].Length = -2 }, structures.ErrInvalidGeometry},
		{"bad v-notch angle", func(s *config.ScenarioData) {
			s.Outlets[0] = config.OutletData{Type: "v_notch_weir", AngleDegrees: 200}
		}, structures.ErrInvalidGeometry},
		{"stages not ascending", func(s *config.ScenarioData) { s.Pond.Stages = []float64{0, 2, 1, 3} }, routing.ErrStageNotAscending},
		{"bad triangular", func(s *config.ScenarioData) { s.Inflow.Triangular.BaseTime = 100 }, hydrology.ErrInvalidSeries},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := parse(t, examplePond)
			tt.mutate(s)
			_, err := Build(s)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRunnerRecordsMetrics(t *testing.T) {
	m := observability.NewMetricsForTesting()
	r := NewRunner(nil, m, clockwork.NewFakeClock())

	res, err := r.Run(parse(t, examplePond))
	require.NoError(t, err)
	assert.True(t, res.ExceededTable)

	bad := parse(t, examplePond)
	bad.Pond.Stages = []float64{0, 0, 1, 2}
	_, err = r.Run(bad)
	assert.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RouteRuns.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RouteRuns.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TableExceeded))
}

func TestRunAll(t *testing.T) {
	r := NewRunner(nil, nil, nil)

	var scenarios []*config.ScenarioData
	for _, peak := range []float64{3, 9, 15} {
		s := parse(t, examplePond)
		s.Inflow.Triangular.Peak = peak
		scenarios = append(scenarios, s)
	}

	results, err := r.RunAll(context.Background(), scenarios, 2)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 3.0, results[0].PeakInflow)
	assert.Equal(t, 9.0, results[1].PeakInflow)
	assert.Equal(t, 15.0, results[2].PeakInflow)

	scenarios[1].Outlets = nil
	_, err = r.RunAll(context.Background(), scenarios, 2)
	assert.ErrorIs(t, err, config.ErrInvalidScenario)
}

func TestRunAllRecordsEachRoute(t *testing.T) {
	m := observability.NewMetricsForTesting()
	clock := clockwork.NewFakeClock()
	r := NewRunner(nil, m, clock)

	var scenarios []*config.ScenarioData
	for _, peak := range []float64{3, 9, 15} {
		s := parse(t, examplePond)
		s.Inflow.Triangular.Peak = peak
		scenarios = append(scenarios, s)
	}

	_, err := r.RunAll(context.Background(), scenarios, 2)
	require.NoError(t, err)

	var route, sweep dto.Metric
	require.NoError(t, m.RouteDuration.Write(&route))
	require.NoError(t, m.SweepDuration.Write(&sweep))

	assert.Equal(t, uint64(3), route.GetHistogram().GetSampleCount())
	assert.Equal(t, uint64(1), sweep.GetHistogram().GetSampleCount())
	// the fake clock never advances, so the batch took no time
	assert.Equal(t, 0.0, sweep.GetHistogram().GetSampleSum())
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RouteRuns.WithLabelValues("success")))
}

func TestSummarizeImperial(t *testing.T) {
	res := &routing.Result{
		Outflows:      []float64{0, 0.028316846592},
		PeakInflow:    2 * 0.028316846592,
		PeakOutflow:   0.028316846592,
		PeakReduction: 0.5,
		MaxStage:      0.3048,
		InflowVolume:  0.028316846592 * 100,
		OutflowVolume: 0.028316846592 * 50,
	}

	s, err := Summarize("pond", units.MustContext("imperial"), res)
	require.NoError(t, err)
	assert.Equal(t, "imperial", s.Units)
	assert.Equal(t, 2, s.Steps)
	assert.InDelta(t, 2.0, s.PeakInflow, 1e-12)
	assert.InDelta(t, 1.0, s.PeakOutflow, 1e-12)
	assert.InDelta(t, 1.0, s.MaxStage, 1e-12)
	assert.InDelta(t, 100.0, s.InflowVolume, 1e-9)
	assert.InDelta(t, 50.0, s.OutflowVolume, 1e-9)
	assert.Equal(t, 0.5, s.PeakReduction)
}
