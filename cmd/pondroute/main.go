package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/chrissnell/pondroute/internal/app"
	"github.com/chrissnell/pondroute/internal/log"
	"github.com/chrissnell/pondroute/pkg/config"
)

const version = "1.0-" + runtime.GOOS + "/" + runtime.GOARCH

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [scenario.yaml ...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	cfgBackend := flag.String("config-backend", "yaml", "Scenario backend type: 'yaml' for YAML files, 'sqlite' for SQLite scenario databases")
	scenarioName := flag.String("scenario", "", "Scenario name to load from each SQLite scenario database (default: all)")
	dbPath := flag.String("db", "", "Path to the SQLite run archive; enables /api/runs")
	save := flag.Bool("save", false, "Archive the routed scenarios (requires -db)")
	listen := flag.String("listen", "", "Serve the HTTP API on this address, e.g. :8080")
	workers := flag.Int("workers", 0, "Maximum scenarios routed concurrently (default: GOMAXPROCS)")
	asJSON := flag.Bool("json", false, "Print summaries as JSON")
	logLevel := flag.String("log-level", "info", "Minimum log level: debug, info, warn or error")
	logFormat := flag.String("log-format", "", "Log encoding: 'json' or 'console' (default: json, console with -debug)")
	debug := flag.Bool("debug", false, "Turn on debugging output (implies -log-level debug)")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("pondroute %s\n", version)
		os.Exit(0)
	}

	if flag.NArg() == 0 && *listen == "" {
		flag.Usage()
		os.Exit(2)
	}

	// Set up logging
	logOpts := log.Options{Level: *logLevel, Format: *logFormat}
	if *debug {
		logOpts.Level = "debug"
		if logOpts.Format == "" {
			logOpts.Format = log.FormatConsole
		}
	}
	if err := log.Init(logOpts); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	scenarios, err := loadScenarios(flag.Args(), *cfgBackend, *scenarioName)
	if err != nil {
		log.Logger().Errorf("Failed to load scenarios: %v", err)
		os.Exit(1)
	}

	application := app.New(app.Options{
		Scenarios:  scenarios,
		DBPath:     *dbPath,
		Save:       *save,
		ListenAddr: *listen,
		Workers:    *workers,
		JSON:       *asJSON,
	})
	if err := application.Run(context.Background()); err != nil {
		log.Logger().Errorf("Application error: %v", err)
		os.Exit(1)
	}
}

func loadScenarios(paths []string, backend, name string) ([]*config.ScenarioData, error) {
	var scenarios []*config.ScenarioData
	for _, p := range paths {
		filename, _ := filepath.Abs(p)

		switch backend {
		case "yaml":
			s, err := config.NewYAMLProvider(filename).LoadScenario()
			if err != nil {
				return nil, fmt.Errorf("%s: %w", p, err)
			}
			scenarios = append(scenarios, s)
		case "sqlite":
			loaded, err := loadSQLite(filename, name)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", p, err)
			}
			scenarios = append(scenarios, loaded...)
		default:
			return nil, fmt.Errorf("unsupported scenario backend: %s. Use 'yaml' or 'sqlite'", backend)
		}
	}
	return scenarios, nil
}

func loadSQLite(filename, name string) ([]*config.ScenarioData, error) {
	provider, err := config.NewSQLiteProvider(filename, name)
	if err != nil {
		return nil, fmt.Errorf("error creating SQLite provider: %w", err)
	}
	defer provider.Close()

	if name != "" {
		s, err := provider.LoadScenario()
		if err != nil {
			return nil, err
		}
		return []*config.ScenarioData{s}, nil
	}

	names, err := provider.ListScenarios()
	if err != nil {
		return nil, err
	}
	scenarios := make([]*config.ScenarioData, 0, len(names))
	for _, n := range names {
		s, err := provider.GetScenario(n)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}
