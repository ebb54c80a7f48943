// Package store archives routing runs in a SQLite database. Each run keeps
// its scenario and full result; the summary figures are also stored as
// columns so runs can be listed without decoding the series.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/chrissnell/pondroute/pkg/config"
	"github.com/chrissnell/pondroute/pkg/migrate"
	"github.com/chrissnell/pondroute/pkg/routing"
)

var ErrRunNotFound = errors.New("run not found")

//go:embed migrations/*.sql
var migrations embed.FS

// Run is an archived routing run
type Run struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	CreatedAt time.Time            `json:"created_at"`
	Scenario  *config.ScenarioData `json:"scenario,omitempty"`
	Result    *routing.Result      `json:"result"`
}

// RunSummary is the listing form of a run
type RunSummary struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	CreatedAt     time.Time `json:"created_at"`
	Steps         int       `json:"steps"`
	PeakInflow    float64   `json:"peak_inflow"`
	PeakOutflow   float64   `json:"peak_outflow"`
	PeakReduction float64   `json:"peak_reduction"`
	MaxStage      float64   `json:"max_stage"`
	ExceededTable bool      `json:"exceeded_table"`
}

// Store is a SQLite run archive
type Store struct {
	db     *sql.DB
	clock  clockwork.Clock
	logger *zap.SugaredLogger
}

// Open opens or creates the archive at path. A nil clock uses the real clock.
func Open(ctx context.Context, path string, clock clockwork.Clock, logger *zap.SugaredLogger) (*Store, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	m := migrate.NewMigrator(db, migrate.NewFSSource(migrations, "migrations"), "", logger)
	if err := m.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate run archive: %w", err)
	}

	logger.Debugw("opened run archive", "path", path)
	return &Store{db: db, clock: clock, logger: logger}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun archives a result under a new run ID. scenario may be nil.
func (s *Store) SaveRun(ctx context.Context, name string, scenario *config.ScenarioData, result *routing.Result) (*Run, error) {
	if result == nil {
		return nil, errors.New("cannot save a run without a result")
	}

	run := &Run{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: s.clock.Now().UTC(),
		Scenario:  scenario,
		Result:    result,
	}

	var scenarioBlob []byte
	if scenario != nil {
		b, err := msgpack.Marshal(scenario)
		if err != nil {
			return nil, fmt.Errorf("failed to encode scenario: %w", err)
		}
		scenarioBlob = b
	}
	resultBlob, err := msgpack.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}

	query := `
		INSERT INTO runs (id, name, created_at, steps, peak_inflow, peak_outflow,
		                  peak_reduction, max_stage, exceeded_table, scenario, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		run.ID, run.Name, run.CreatedAt.UnixNano(), len(result.Outflows),
		result.PeakInflow, result.PeakOutflow, result.PeakReduction, result.MaxStage,
		result.ExceededTable, scenarioBlob, resultBlob,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}

	s.logger.Infow("archived run", "id", run.ID, "name", run.Name, "steps", len(result.Outflows))
	return run, nil
}

// GetRun loads a run with its scenario and full result
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrRunNotFound, id)
	}

	var (
		run          Run
		createdAt    int64
		scenarioBlob []byte
		resultBlob   []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at, scenario, result FROM runs WHERE id = ?`, id,
	).Scan(&run.ID, &run.Name, &createdAt, &scenarioBlob, &resultBlob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run %q: %w", id, err)
	}
	run.CreatedAt = time.Unix(0, createdAt).UTC()

	if len(scenarioBlob) > 0 {
		run.Scenario = &config.ScenarioData{}
		if err := msgpack.Unmarshal(scenarioBlob, run.Scenario); err != nil {
			return nil, fmt.Errorf("failed to decode scenario of run %q: %w", id, err)
		}
	}
	run.Result = &routing.Result{}
	if err := msgpack.Unmarshal(resultBlob, run.Result); err != nil {
		return nil, fmt.Errorf("failed to decode result of run %q: %w", id, err)
	}
	return &run, nil
}

// ListRuns returns run summaries, newest first. limit <= 0 returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `
		SELECT id, name, created_at, steps, peak_inflow, peak_outflow,
		       peak_reduction, max_stage, exceeded_table
		FROM runs
		ORDER BY created_at DESC, id
	`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		var r RunSummary
		var createdAt int64
		if err := rows.Scan(&r.ID, &r.Name, &createdAt, &r.Steps, &r.PeakInflow, &r.PeakOutflow,
			&r.PeakReduction, &r.MaxStage, &r.ExceededTable); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		r.CreatedAt = time.Unix(0, createdAt).UTC()
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run %q: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %q", ErrRunNotFound, id)
	}
	return nil
}
