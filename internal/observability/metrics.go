package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms for routing runs.
type Metrics struct {
	// labels: outcome={success,error}
	RouteRuns     *prometheus.CounterVec
	RouteDuration prometheus.Histogram
	RouteSteps    prometheus.Histogram
	PeakReduction prometheus.Histogram
	TableExceeded prometheus.Counter
	// whole RunAll batches, one sample per batch
	SweepDuration prometheus.Histogram
	SweepJobs     prometheus.Histogram

	RunsStored  prometheus.Counter
	StoreErrors prometheus.Counter
}

// NewMetricsWithRegistry creates all metrics and registers them with reg.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RouteRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pondroute",
			Name:      "route_runs_total",
			Help:      "Routing runs by outcome.",
		}, []string{"outcome"}),
		RouteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pondroute",
			Name:      "route_duration_seconds",
			Help:      "Time to build and route a scenario.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		RouteSteps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pondroute",
			Name:      "route_steps",
			Help:      "Number of time steps per routed inflow.",
			Buckets:   prometheus.ExponentialBuckets(10, 4, 8),
		}),
		PeakReduction: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pondroute",
			Name:      "peak_reduction_ratio",
			Help:      "Fractional peak flow reduction achieved by the pond.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		TableExceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pondroute",
			Name:      "stage_table_exceeded_total",
			Help:      "Runs whose maximum stage lay above the stage table.",
		}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pondroute",
			Name:      "sweep_duration_seconds",
			Help:      "Wall time to route a batch of scenarios concurrently.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		SweepJobs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pondroute",
			Name:      "sweep_jobs",
			Help:      "Scenarios per routed batch.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
		}),
		RunsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pondroute",
			Name:      "runs_stored_total",
			Help:      "Runs written to the archive.",
		}),
		StoreErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pondroute",
			Name:      "store_errors_total",
			Help:      "Archive read and write failures.",
		}),
	}

	reg.MustRegister(
		m.RouteRuns,
		m.RouteDuration,
		m.RouteSteps,
		m.PeakReduction,
		m.TableExceeded,
		m.SweepDuration,
		m.SweepJobs,
		m.RunsStored,
		m.StoreErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		RouteRuns:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "pondroute", Name: "route_runs_total"}, []string{"outcome"}),
		RouteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "pondroute", Name: "route_duration_seconds"}),
		RouteSteps:    prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "pondroute", Name: "route_steps"}),
		PeakReduction: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "pondroute", Name: "peak_reduction_ratio"}),
		TableExceeded: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "pondroute", Name: "stage_table_exceeded_total"}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "pondroute", Name: "sweep_duration_seconds"}),
		SweepJobs:     prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "pondroute", Name: "sweep_jobs"}),
		RunsStored:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "pondroute", Name: "runs_stored_total"}),
		StoreErrors:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "pondroute", Name: "store_errors_total"}),
	}
}

// ObserveRoute records a finished routing run
func (m *Metrics) ObserveRoute(seconds float64, steps int, peakReduction float64, exceeded bool) {
	m.RouteRuns.WithLabelValues("success").Inc()
	m.RouteDuration.Observe(seconds)
	m.RouteSteps.Observe(float64(steps))
	m.PeakReduction.Observe(peakReduction)
	if exceeded {
		m.TableExceeded.Inc()
	}
}

// ObserveSweep records a finished batch of concurrent routes. The routes
// themselves are recorded individually with ObserveRoute.
func (m *Metrics) ObserveSweep(seconds float64, jobs int) {
	m.SweepDuration.Observe(seconds)
	m.SweepJobs.Observe(float64(jobs))
}

// RouteFailed records a run that could not be built or routed
func (m *Metrics) RouteFailed() {
	m.RouteRuns.WithLabelValues("error").Inc()
}
