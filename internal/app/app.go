package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/chrissnell/pondroute/internal/log"
	"github.com/chrissnell/pondroute/internal/observability"
	"github.com/chrissnell/pondroute/internal/scenario"
	"github.com/chrissnell/pondroute/internal/server"
	"github.com/chrissnell/pondroute/internal/store"
	"github.com/chrissnell/pondroute/pkg/config"
	"github.com/chrissnell/pondroute/pkg/units"
)

// Options selects what the application does
type Options struct {
	// Scenarios are routed once at startup
	Scenarios []*config.ScenarioData
	// DBPath enables the run archive
	DBPath string
	// Save archives the startup runs; requires DBPath
	Save bool
	// ListenAddr serves the HTTP API until shutdown when set
	ListenAddr string
	Workers    int
	JSON       bool
	Out        io.Writer
}

// App represents the main application
type App struct {
	opts   Options
	logger *zap.SugaredLogger
}

// New creates a new application instance. Subsystem loggers come from the
// process logger configured with log.Init.
func New(opts Options) *App {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	return &App{opts: opts, logger: log.Named("app")}
}

// Run routes the startup scenarios, then serves the HTTP API if a listen
// address was given, blocking until shutdown.
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.opts.Save && a.opts.DBPath == "" {
		return fmt.Errorf("saving runs requires a run archive database")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetricsWithRegistry(reg)

	var st *store.Store
	if a.opts.DBPath != "" {
		var err error
		st, err = store.Open(ctx, a.opts.DBPath, nil, log.Named("store"))
		if err != nil {
			return err
		}
		defer st.Close()
	}

	runner := scenario.NewRunner(log.Named("routing"), metrics, nil)

	if len(a.opts.Scenarios) > 0 {
		if err := a.routeAll(ctx, runner, st); err != nil {
			return err
		}
	}

	if a.opts.ListenAddr == "" {
		return nil
	}

	opts := []server.Option{server.WithMetrics(metrics, reg)}
	if st != nil {
		opts = append(opts, server.WithStore(st))
	}
	srv := server.New(ctx, &wg, server.Config{ListenAddr: a.opts.ListenAddr, Workers: a.opts.Workers}, runner, log.Named("http"), opts...)
	if err := srv.Start(); err != nil {
		return err
	}

	a.logger.Info("application started successfully")

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	// Wait for shutdown signal
	select {
	case <-sigs:
		a.logger.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		a.logger.Info("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	a.logger.Info("waiting for all workers to terminate...")
	wg.Wait()
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) routeAll(ctx context.Context, runner *scenario.Runner, st *store.Store) error {
	results, err := runner.RunAll(ctx, a.opts.Scenarios, a.opts.Workers)
	if err != nil {
		return err
	}

	summaries := make([]scenario.Summary, len(results))
	for i, res := range results {
		s := a.opts.Scenarios[i]
		uctx, err := units.NewContext(s.Units)
		if err != nil {
			return err
		}
		if summaries[i], err = scenario.Summarize(s.Name, uctx, res); err != nil {
			return err
		}
		if a.opts.Save {
			run, err := st.SaveRun(ctx, s.Name, s, res)
			if err != nil {
				return err
			}
			a.logger.Infow("saved run", "scenario", s.Name, "id", run.ID)
		}
	}

	if a.opts.JSON {
		enc := json.NewEncoder(a.opts.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	}
	return writeTable(a.opts.Out, summaries)
}

func writeTable(out io.Writer, summaries []scenario.Summary) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCENARIO\tUNITS\tSTEPS\tPEAK IN\tPEAK OUT\tREDUCTION\tMAX STAGE\tT PEAK (s)\tVOL IN\tVOL OUT\tEXCEEDED")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.3f\t%.3f\t%.1f%%\t%.3f\t%.0f\t%.1f\t%.1f\t%t\n",
			s.Name, s.Units, s.Steps, s.PeakInflow, s.PeakOutflow, 100*s.PeakReduction,
			s.MaxStage, s.TimeToPeakOutflow, s.InflowVolume, s.OutflowVolume, s.ExceededTable)
	}
	return tw.Flush()
}
