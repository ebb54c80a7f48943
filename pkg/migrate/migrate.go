// Package migrate applies numbered SQL migrations to a SQLite database and
// tracks the applied version in a bookkeeping table.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// DefaultTable is the version table used when none is given
const DefaultTable = "schema_migrations"

// Migration represents a single database migration
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// Source supplies the full set of migrations
type Source interface {
	Migrations() ([]Migration, error)
}

// execer is satisfied by both *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Migrator handles the execution of migrations
type Migrator struct {
	db     *sql.DB
	source Source
	table  string
	logger *zap.SugaredLogger
}

// NewMigrator creates a migrator that records versions in table
func NewMigrator(db *sql.DB, source Source, table string, logger *zap.SugaredLogger) *Migrator {
	if table == "" {
		table = DefaultTable
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Migrator{db: db, source: source, table: table, logger: logger}
}

// Up applies every pending migration
func (m *Migrator) Up(ctx context.Context) error {
	return m.To(ctx, -1)
}

// To migrates up or down to target. -1 means the latest version.
func (m *Migrator) To(ctx context.Context, target int) error {
	current, err := m.Version(ctx)
	if err != nil {
		return err
	}
	migrations, err := m.sorted()
	if err != nil {
		return err
	}
	if target == -1 {
		target = 0
		if len(migrations) > 0 {
			target = migrations[len(migrations)-1].Version
		}
	}

	if target < current {
		// newest first
		for i := len(migrations) - 1; i >= 0; i-- {
			mig := migrations[i]
			if mig.Version > target && mig.Version <= current {
				if err := m.apply(ctx, mig, false); err != nil {
					return fmt.Errorf("failed to roll back migration %d: %w", mig.Version, err)
				}
			}
		}
		return nil
	}

	for _, mig := range migrations {
		if mig.Version > current && mig.Version <= target {
			if err := m.apply(ctx, mig, true); err != nil {
				return fmt.Errorf("failed to apply migration %d: %w", mig.Version, err)
			}
		}
	}
	return nil
}

// Version returns the highest applied migration version
func (m *Migrator) Version(ctx context.Context) (int, error) {
	if err := m.createTable(ctx); err != nil {
		return 0, err
	}
	var version int
	err := m.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COALESCE(MAX(version), 0) FROM %s", m.table)).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return version, nil
}

// Pending returns migrations that haven't been applied yet, oldest first
func (m *Migrator) Pending(ctx context.Context) ([]Migration, error) {
	current, err := m.Version(ctx)
	if err != nil {
		return nil, err
	}
	migrations, err := m.sorted()
	if err != nil {
		return nil, err
	}
	var pending []Migration
	for _, mig := range migrations {
		if mig.Version > current {
			pending = append(pending, mig)
		}
	}
	return pending, nil
}

func (m *Migrator) sorted() ([]Migration, error) {
	migrations, err := m.source.Migrations()
	if err != nil {
		return nil, fmt.Errorf("failed to get migrations: %w", err)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

func (m *Migrator) createTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version    INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`, m.table))
	if err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}
	return nil
}

// apply runs one migration and its version update in a single transaction
func (m *Migrator) apply(ctx context.Context, mig Migration, up bool) error {
	stmt, direction, version := mig.Up, "up", mig.Version
	if !up {
		stmt, direction, version = mig.Down, "down", mig.Version-1
	}
	if stmt == "" {
		return fmt.Errorf("migration %d has no %s SQL", mig.Version, direction)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}
	if up {
		_, err = tx.ExecContext(ctx, fmt.Sprintf("INSERT OR REPLACE INTO %s (version) VALUES (?)", m.table), version)
	} else {
		err = m.deleteAbove(ctx, tx, version)
	}
	if err != nil {
		return fmt.Errorf("failed to update migration version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration transaction: %w", err)
	}

	m.logger.Infow("applied migration", "version", mig.Version, "name", mig.Name, "direction", direction)
	return nil
}

func (m *Migrator) deleteAbove(ctx context.Context, db execer, version int) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE version > ?", m.table), version)
	return err
}
