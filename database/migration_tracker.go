package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const migrationsTableName = "schema_migrations"

// migration именованный шаг схемы, применяется ровно один раз
type migration struct {
	name  string
	apply func(ctx context.Context, tx *sql.Tx) error
}

// ensureMigrationTable создает таблицу schema_migrations при необходимости.
func ensureMigrationTable(ctx context.Context, db *sql.DB) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			name TEXT PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`, migrationsTableName)

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure %s table: %w", migrationsTableName, err)
	}
	return nil
}

// isMigrationApplied проверяет, была ли уже применена миграция.
func isMigrationApplied(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var appliedAt sql.NullTime
	query := fmt.Sprintf(`SELECT applied_at FROM %s WHERE name = ?`, migrationsTableName)
	err := db.QueryRowContext(ctx, query, name).Scan(&appliedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check migration %s: %w", name, err)
	}
	return appliedAt.Valid, nil
}

// ensureMigrationApplied выполняет миграцию и отметку о ней в одной транзакции.
func ensureMigrationApplied(ctx context.Context, db *sql.DB, m migration, logger *slog.Logger) error {
	applied, err := isMigrationApplied(ctx, db, m.name)
	if err != nil {
		return err
	}
	if applied {
		logger.Debug("Migration already applied", "migration", m.name)
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration %s: %w", m.name, err)
	}
	defer tx.Rollback()

	if err := m.apply(ctx, tx); err != nil {
		return fmt.Errorf("migration %s: %w", m.name, err)
	}

	query := fmt.Sprintf(`INSERT OR REPLACE INTO %s(name, applied_at) VALUES(?, ?)`, migrationsTableName)
	if _, err := tx.ExecContext(ctx, query, m.name, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to mark migration %s as applied: %w", m.name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %s: %w", m.name, err)
	}

	logger.Info("Migration applied", "migration", m.name)
	return nil
}

// runMigrations применяет все миграции схемы по порядку
func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	if err := ensureMigrationTable(ctx, db); err != nil {
		return err
	}
	for _, m := range schemaMigrations {
		if err := ensureMigrationApplied(ctx, db, m, logger); err != nil {
			return err
		}
	}
	return nil
}

func execStatements(statements ...string) func(ctx context.Context, tx *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	}
}

// schemaMigrations схема хранилища прогонов анализа
var schemaMigrations = []migration{
	{
		name: "001_create_analysis_runs",
		apply: execStatements(`
			CREATE TABLE IF NOT EXISTS analysis_runs (
				id TEXT PRIMARY KEY,
				variant TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL,
				tower_count INTEGER NOT NULL DEFAULT 0,
				row_count INTEGER NOT NULL DEFAULT 0,
				open_missing_total INTEGER NOT NULL DEFAULT 0,
				anomaly_count INTEGER NOT NULL DEFAULT 0,
				unmapped_count INTEGER NOT NULL DEFAULT 0,
				details TEXT NOT NULL DEFAULT '{}'
			)`,
			`CREATE INDEX IF NOT EXISTS idx_analysis_runs_created_at ON analysis_runs(created_at)`,
		),
	},
	{
		name: "002_create_reconciliation_rows",
		apply: execStatements(`
			CREATE TABLE IF NOT EXISTS reconciliation_rows (
				run_id TEXT NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
				position INTEGER NOT NULL,
				tower_key TEXT NOT NULL,
				category TEXT NOT NULL,
				activity TEXT NOT NULL,
				completed_count INTEGER NOT NULL,
				in_progress_count INTEGER NOT NULL DEFAULT 0,
				closed_checklist_count INTEGER NOT NULL,
				open_missing_count INTEGER NOT NULL,
				PRIMARY KEY (run_id, position)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_reconciliation_rows_tower ON reconciliation_rows(run_id, tower_key)`,
		),
	},
	{
		name: "003_create_unmapped_labels",
		apply: execStatements(`
			CREATE TABLE IF NOT EXISTS unmapped_labels (
				run_id TEXT NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
				source TEXT NOT NULL,
				label TEXT NOT NULL,
				count INTEGER NOT NULL,
				suggestion TEXT NOT NULL DEFAULT '',
				PRIMARY KEY (run_id, source, label)
			)`,
		),
	},
}
