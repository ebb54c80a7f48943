package scenario

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/chrissnell/pondroute/internal/observability"
	"github.com/chrissnell/pondroute/pkg/config"
	"github.com/chrissnell/pondroute/pkg/routing"
	"github.com/chrissnell/pondroute/pkg/units"
)

// Runner builds and routes scenarios, recording metrics for each run
type Runner struct {
	logger  *zap.SugaredLogger
	metrics *observability.Metrics
	clock   clockwork.Clock
}

// NewRunner creates a Runner. metrics may be nil.
func NewRunner(logger *zap.SugaredLogger, metrics *observability.Metrics, clock clockwork.Clock) *Runner {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Runner{logger: logger, metrics: metrics, clock: clock}
}

// Run builds and routes one scenario
func (r *Runner) Run(s *config.ScenarioData) (*routing.Result, error) {
	start := r.clock.Now()

	b, err := r.build(s)
	if err != nil {
		r.failed()
		return nil, err
	}
	result, err := b.Pond.Route(b.Inflow, b.Options...)
	if err != nil {
		r.failed()
		return nil, fmt.Errorf("routing %q: %w", s.Name, err)
	}

	r.observe(start, result)
	return result, nil
}

// RunAll routes independent scenarios on up to workers goroutines. Results
// are returned in scenario order. Each route is timed on its own worker; the
// whole batch is recorded separately as a sweep.
func (r *Runner) RunAll(ctx context.Context, scenarios []*config.ScenarioData, workers int) ([]*routing.Result, error) {
	start := r.clock.Now()

	jobs := make([]routing.Job, len(scenarios))
	for i, s := range scenarios {
		b, err := r.build(s)
		if err != nil {
			r.failed()
			return nil, fmt.Errorf("scenario %d: %w", i, err)
		}
		jobs[i] = b.Job()
		jobs[i].Observe = func(res *routing.Result, elapsed time.Duration) {
			r.record(elapsed, res)
		}
	}

	results, err := routing.Sweep(ctx, jobs, workers)
	if err != nil {
		r.failed()
		return nil, err
	}
	if r.metrics != nil {
		r.metrics.ObserveSweep(r.clock.Since(start).Seconds(), len(results))
	}
	return results, nil
}

func (r *Runner) build(s *config.ScenarioData) (*Built, error) {
	b, err := Build(s)
	if err != nil {
		return nil, err
	}
	b.Pond.SetLogger(r.logger.With("scenario", s.Name))
	return b, nil
}

func (r *Runner) observe(start time.Time, res *routing.Result) {
	r.record(r.clock.Since(start), res)
}

func (r *Runner) record(elapsed time.Duration, res *routing.Result) {
	if r.metrics == nil {
		return
	}
	r.metrics.ObserveRoute(elapsed.Seconds(), len(res.Outflows), res.PeakReduction, res.ExceededTable)
}

func (r *Runner) failed() {
	if r.metrics != nil {
		r.metrics.RouteFailed()
	}
}

// Summary reports a result's scalar figures in the scenario's units
type Summary struct {
	Name              string  `json:"name"`
	Units             string  `json:"units"`
	Steps             int     `json:"steps"`
	PeakInflow        float64 `json:"peak_inflow"`
	PeakOutflow       float64 `json:"peak_outflow"`
	PeakReduction     float64 `json:"peak_reduction"`
	MaxStage          float64 `json:"max_stage"`
	TimeToPeakOutflow float64 `json:"time_to_peak_outflow"` // seconds
	InflowVolume      float64 `json:"inflow_volume"`
	OutflowVolume     float64 `json:"outflow_volume"`
	ExceededTable     bool    `json:"exceeded_table"`
}

// Summarize converts a result's figures from SI to ctx's units
func Summarize(name string, ctx units.Context, r *routing.Result) (Summary, error) {
	s := Summary{
		Name:              name,
		Units:             string(ctx.System()),
		Steps:             len(r.Outflows),
		PeakReduction:     r.PeakReduction,
		TimeToPeakOutflow: r.TimeToPeakOutflow,
		ExceededTable:     r.ExceededTable,
	}
	conversions := []struct {
		dst *float64
		v   float64
		q   units.Quantity
	}{
		{&s.PeakInflow, r.PeakInflow, units.Flow},
		{&s.PeakOutflow, r.PeakOutflow, units.Flow},
		{&s.MaxStage, r.MaxStage, units.Length},
		{&s.InflowVolume, r.InflowVolume, units.Volume},
		{&s.OutflowVolume, r.OutflowVolume, units.Volume},
	}
	for _, c := range conversions {
		v, err := ctx.FromSI(c.v, c.q)
		if err != nil {
			return Summary{}, err
		}
		*c.dst = v
	}
	return s, nil
}
