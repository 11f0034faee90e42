// Package database хранит результаты прогонов анализа в SQLite.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"progressreport/analysis"
	"progressreport/classification"
	"progressreport/normalization"
	"progressreport/reconciliation"
	"progressreport/rules"
)

// DefaultListLimit число прогонов в списке по умолчанию
const DefaultListLimit = 50

// DBConfig параметры пула соединений
type DBConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RunSummary краткие сведения о сохраненном прогоне
type RunSummary struct {
	RunID            string    `json:"run_id"`
	Variant          string    `json:"variant"`
	CreatedAt        time.Time `json:"created_at"`
	TowerCount       int       `json:"tower_count"`
	RowCount         int       `json:"row_count"`
	OpenMissingTotal int       `json:"open_missing_total"`
	AnomalyCount     int       `json:"anomaly_count"`
	UnmappedCount    int       `json:"unmapped_count"`
}

// runDetails части результата, которые хранятся одним JSON документом
type runDetails struct {
	Towers        []string                       `json:"towers"`
	StageCounts   []analysis.StageCount          `json:"stage_counts,omitempty"`
	Summary       *classification.Categorization `json:"summary,omitempty"`
	SummarySource string                         `json:"summary_source,omitempty"`
	Anomalies     []reconciliation.Anomaly       `json:"anomalies"`
	Stats         analysis.Stats                 `json:"stats"`
}

// Store хранилище прогонов анализа
type Store struct {
	conn   *sql.DB
	logger *slog.Logger
}

// isInMemory определяет, что путь относится к in-memory SQLite
func isInMemory(path string) bool {
	if path == ":memory:" {
		return true
	}
	return strings.HasPrefix(path, "file:") && strings.Contains(path, "mode=memory")
}

// NewStore открывает базу данных и применяет миграции
func NewStore(ctx context.Context, path string, config DBConfig) (*Store, error) {
	logger := slog.Default().With("component", "store")

	// Для in-memory базы каждое новое соединение получает пустую БД
	if isInMemory(path) {
		config.MaxOpenConns = 1
		config.MaxIdleConns = 1
	}

	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if config.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(config.MaxOpenConns)
	} else {
		conn.SetMaxOpenConns(10)
	}
	if config.MaxIdleConns > 0 {
		conn.SetMaxIdleConns(config.MaxIdleConns)
	} else {
		conn.SetMaxIdleConns(2)
	}
	if config.ConnMaxLifetime > 0 {
		conn.SetConnMaxLifetime(config.ConnMaxLifetime)
	} else {
		conn.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if !isInMemory(path) {
		if _, err := conn.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
			logger.Warn("Failed to enable WAL mode", "error", err)
		}
	}

	if err := runMigrations(ctx, conn, logger); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info("Database ready", "path", path)
	return &Store{conn: conn, logger: logger}, nil
}

// Close закрывает подключение
func (s *Store) Close() error {
	return s.conn.Close()
}

// Ping проверяет подключение
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// SaveRun сохраняет результат прогона целиком в одной транзакции
func (s *Store) SaveRun(ctx context.Context, r *analysis.Result) error {
	if r == nil {
		return ErrNilResult
	}

	details, err := json.Marshal(runDetails{
		Towers:        r.Towers,
		StageCounts:   r.StageCounts,
		Summary:       r.Summary,
		SummarySource: r.SummarySource,
		Anomalies:     r.Anomalies,
		Stats:         r.Stats,
	})
	if err != nil {
		return fmt.Errorf("failed to encode run details: %w", err)
	}

	openMissing := 0
	for _, row := range r.Rows {
		openMissing += row.OpenMissingCount
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO analysis_runs (id, variant, created_at, tower_count, row_count,
			open_missing_total, anomaly_count, unmapped_count, details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Variant, r.CreatedAt.UTC(), len(r.Towers), len(r.Rows),
		openMissing, len(r.Anomalies), len(r.Unmapped), string(details))
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", r.RunID, err)
	}

	rowStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO reconciliation_rows (run_id, position, tower_key, category, activity,
			completed_count, in_progress_count, closed_checklist_count, open_missing_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare row insert: %w", err)
	}
	defer rowStmt.Close()

	for i, row := range r.Rows {
		if _, err := rowStmt.ExecContext(ctx, r.RunID, i, row.TowerKey, string(row.Category), row.Activity,
			row.CompletedCount, row.InProgressCount, row.ClosedChecklistCount, row.OpenMissingCount); err != nil {
			return fmt.Errorf("failed to insert row %d of run %s: %w", i, r.RunID, err)
		}
	}

	labelStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO unmapped_labels (run_id, source, label, count, suggestion)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare label insert: %w", err)
	}
	defer labelStmt.Close()

	for _, u := range r.Unmapped {
		if _, err := labelStmt.ExecContext(ctx, r.RunID, string(u.Source), u.Label, u.Count, u.Suggestion); err != nil {
			return fmt.Errorf("failed to insert unmapped label %q: %w", u.Label, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", r.RunID, err)
	}

	s.logger.Info("Analysis run saved",
		"run_id", r.RunID,
		"rows", len(r.Rows),
		"unmapped", len(r.Unmapped))
	return nil
}

// GetRun загружает полный результат прогона
func (s *Store) GetRun(ctx context.Context, id string) (*analysis.Result, error) {
	var (
		r       analysis.Result
		details string
	)
	err := s.conn.QueryRowContext(ctx, `
		SELECT id, variant, created_at, details FROM analysis_runs WHERE id = ?`, id).
		Scan(&r.RunID, &r.Variant, &r.CreatedAt, &details)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}

	var d runDetails
	if err := json.Unmarshal([]byte(details), &d); err != nil {
		return nil, fmt.Errorf("failed to decode details of run %s: %w", id, err)
	}
	r.Towers = d.Towers
	r.StageCounts = d.StageCounts
	r.Summary = d.Summary
	r.SummarySource = d.SummarySource
	r.Anomalies = d.Anomalies
	r.Stats = d.Stats
	if r.Anomalies == nil {
		r.Anomalies = []reconciliation.Anomaly{}
	}

	if r.Rows, err = s.loadRows(ctx, id); err != nil {
		return nil, err
	}
	if r.Unmapped, err = s.loadUnmapped(ctx, id); err != nil {
		return nil, err
	}
	r.TowerTotals = reconciliation.Totals(r.Rows)
	return &r, nil
}

func (s *Store) loadRows(ctx context.Context, id string) ([]reconciliation.Row, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT tower_key, category, activity, completed_count, in_progress_count,
			closed_checklist_count, open_missing_count
		FROM reconciliation_rows WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query rows of run %s: %w", id, err)
	}
	defer rows.Close()

	out := []reconciliation.Row{}
	for rows.Next() {
		var (
			row      reconciliation.Row
			category string
		)
		if err := rows.Scan(&row.TowerKey, &category, &row.Activity, &row.CompletedCount,
			&row.InProgressCount, &row.ClosedChecklistCount, &row.OpenMissingCount); err != nil {
			return nil, fmt.Errorf("failed to scan row of run %s: %w", id, err)
		}
		row.Category = normalization.Category(category)
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *Store) loadUnmapped(ctx context.Context, id string) ([]analysis.UnmappedLabel, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT source, label, count, suggestion
		FROM unmapped_labels WHERE run_id = ? ORDER BY source, count DESC, label`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query unmapped labels of run %s: %w", id, err)
	}
	defer rows.Close()

	out := []analysis.UnmappedLabel{}
	for rows.Next() {
		var (
			u      analysis.UnmappedLabel
			source string
		)
		if err := rows.Scan(&source, &u.Label, &u.Count, &u.Suggestion); err != nil {
			return nil, fmt.Errorf("failed to scan unmapped label of run %s: %w", id, err)
		}
		u.Source = rules.Source(source)
		out = append(out, u)
	}
	return out, rows.Err()
}

// ListRuns возвращает последние прогоны, новые первыми
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, variant, created_at, tower_count, row_count, open_missing_total,
			anomaly_count, unmapped_count
		FROM analysis_runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	out := []RunSummary{}
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.Variant, &r.CreatedAt, &r.TowerCount, &r.RowCount,
			&r.OpenMissingTotal, &r.AnomalyCount, &r.UnmappedCount); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteRun удаляет прогон вместе со строками и нераспознанными названиями
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"reconciliation_rows", "unmapped_labels"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE run_id = ?", id); err != nil {
			return fmt.Errorf("failed to delete %s of run %s: %w", table, id, err)
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM analysis_runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit deletion of run %s: %w", id, err)
	}
	s.logger.Info("Analysis run deleted", "run_id", id)
	return nil
}
