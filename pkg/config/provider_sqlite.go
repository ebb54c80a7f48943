package config

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

var ErrScenarioNotFound = errors.New("scenario not found")

const scenarioSchema = `
	CREATE TABLE IF NOT EXISTS scenarios (
		name       TEXT PRIMARY KEY,
		document   TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)
`

// SQLiteProvider implements ScenarioProvider over a library of named
// scenarios kept in a SQLite database. Scenarios are stored as JSON documents.
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
	name   string
}

// NewSQLiteProvider opens (and if needed creates) a scenario library.
// LoadScenario returns the scenario called name.
func NewSQLiteProvider(dbPath, name string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	if _, err := db.Exec(scenarioSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create scenarios table: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
		name:   name,
	}, nil
}

// LoadScenario loads the provider's named scenario
func (s *SQLiteProvider) LoadScenario() (*ScenarioData, error) {
	return s.GetScenario(s.name)
}

// GetScenario loads and validates a scenario by name
func (s *SQLiteProvider) GetScenario(name string) (*ScenarioData, error) {
	var doc string
	err := s.db.QueryRow(`SELECT document FROM scenarios WHERE name = ?`, name).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrScenarioNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query scenario %q: %w", name, err)
	}

	var scenario ScenarioData
	if err := json.Unmarshal([]byte(doc), &scenario); err != nil {
		return nil, fmt.Errorf("failed to decode scenario %q: %w", name, err)
	}
	if err := scenario.Validate(); err != nil {
		return nil, err
	}
	return &scenario, nil
}

// SaveScenario validates and stores a scenario, replacing one of the same name
func (s *SQLiteProvider) SaveScenario(scenario *ScenarioData) error {
	if scenario.Name == "" {
		return fmt.Errorf("%w: scenario name is required", ErrInvalidScenario)
	}
	if err := scenario.Validate(); err != nil {
		return err
	}

	doc, err := json.Marshal(scenario)
	if err != nil {
		return fmt.Errorf("failed to encode scenario: %w", err)
	}

	query := `
		INSERT INTO scenarios (name, document, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET document = excluded.document, updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.db.Exec(query, scenario.Name, string(doc)); err != nil {
		return fmt.Errorf("failed to save scenario %q: %w", scenario.Name, err)
	}
	return nil
}

// ListScenarios returns the stored scenario names in order
func (s *SQLiteProvider) ListScenarios() ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM scenarios ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenarios: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan scenario row: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// DeleteScenario removes a scenario by name
func (s *SQLiteProvider) DeleteScenario(name string) error {
	res, err := s.db.Exec(`DELETE FROM scenarios WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete scenario %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %q", ErrScenarioNotFound, name)
	}
	return nil
}

// IsReadOnly returns false as the scenario library can be edited
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
