package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chrissnell/pondroute/pkg/config"
)

func main() {
	var (
		sqliteFile = flag.String("sqlite", "", "Path to SQLite scenario database (required)")
		list       = flag.Bool("list", false, "List the scenarios in the database and exit")
		remove     = flag.String("delete", "", "Delete the named scenario and exit")
		dryRun     = flag.Bool("dry-run", false, "Validate the YAML scenarios without writing them")
	)
	flag.Parse()

	if *sqliteFile == "" || (flag.NArg() == 0 && !*list && *remove == "") {
		fmt.Fprintf(os.Stderr, "Usage: %s -sqlite <scenarios.db> <scenario.yaml> [...]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	if *dryRun {
		fmt.Println("DRY RUN - No changes will be made")
		for _, p := range flag.Args() {
			s, err := config.NewYAMLProvider(p).LoadScenario()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", p, err)
				os.Exit(1)
			}
			printScenarioSummary(p, s)
		}
		fmt.Println("DRY RUN complete - no database written")
		return
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(*sqliteFile), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating directory: %v\n", err)
		os.Exit(1)
	}

	provider, err := config.NewSQLiteProvider(*sqliteFile, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening SQLite database: %v\n", err)
		os.Exit(1)
	}
	defer provider.Close()

	switch {
	case *list:
		names, err := provider.ListScenarios()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing scenarios: %v\n", err)
			os.Exit(1)
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return
	case *remove != "":
		if err := provider.DeleteScenario(*remove); err != nil {
			fmt.Fprintf(os.Stderr, "Error deleting scenario: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Deleted scenario %q\n", *remove)
		return
	}

	fmt.Printf("Importing %d scenario(s) into %s...\n", flag.NArg(), *sqliteFile)
	for _, p := range flag.Args() {
		if err := importScenario(provider, p); err != nil {
			fmt.Fprintf(os.Stderr, "Error importing %s: %v\n", p, err)
			os.Exit(1)
		}
	}

	fmt.Printf("Import completed successfully!\n")
	fmt.Printf("Route them with: pondroute -config-backend sqlite %s\n", *sqliteFile)
}

func importScenario(provider *config.SQLiteProvider, path string) error {
	s, err := config.NewYAMLProvider(path).LoadScenario()
	if err != nil {
		return err
	}
	if s.Name == "" {
		s.Name = filepath.Base(path)
	}
	if err := provider.SaveScenario(s); err != nil {
		return fmt.Errorf("failed to save scenario: %w", err)
	}
	printScenarioSummary(path, s)
	return nil
}

func printScenarioSummary(path string, s *config.ScenarioData) {
	units := s.Units
	if units == "" {
		units = "metric"
	}
	fmt.Printf("  %s: %q (%s), %d stages, %d outlets, %s inflow\n",
		path, s.Name, units, len(s.Pond.Stages), len(s.Outlets), s.Inflow.Source())
}
