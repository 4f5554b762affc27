// Package storage provides SQLite implementations of CatalogStore and RunStore.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/museai/internal/models"
)

// SQLiteCatalog implements CatalogStore using a single SQLite file.
// It uses the default rollback journal so the database is one self-contained
// file that can be renamed into place.
type SQLiteCatalog struct {
	db *sql.DB
}

// NewSQLiteCatalog opens or creates a catalog database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteCatalog(dbPath string) (*SQLiteCatalog, error) {
	if err := ensureDir(dbPath); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := initCatalogSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteCatalog{db: db}, nil
}

// OpenSQLiteCatalogReadOnly opens an existing catalog database without write access.
func OpenSQLiteCatalogReadOnly(dbPath string) (*SQLiteCatalog, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &SQLiteCatalog{db: db}, nil
}

func ensureDir(dbPath string) error {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	return nil
}

func initCatalogSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		position INTEGER PRIMARY KEY,
		artifact_id INTEGER NOT NULL UNIQUE,
		title TEXT NOT NULL,
		short_label TEXT NOT NULL,
		base_context TEXT NOT NULL,
		period TEXT,
		location TEXT,
		material TEXT
	);
	`
	_, err := db.Exec(schema)
	return err
}

// ReplaceItems rewrites the items table in a single transaction.
func (s *SQLiteCatalog) ReplaceItems(ctx context.Context, items []*models.Item) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM items`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO items (position, artifact_id, title, short_label, base_context, period, location, material)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, it := range items {
		if _, err := stmt.ExecContext(ctx, i, it.ID, it.Title, it.ShortLabel, it.Description,
			nullString(it.Period), nullString(it.Location), nullString(it.Material)); err != nil {
			return fmt.Errorf("insert item %d at position %d: %w", it.ID, i, err)
		}
	}
	return tx.Commit()
}

const itemColumns = `artifact_id, title, short_label, base_context, period, location, material`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*models.Item, error) {
	var it models.Item
	var period, location, material sql.NullString
	if err := row.Scan(&it.ID, &it.Title, &it.ShortLabel, &it.Description, &period, &location, &material); err != nil {
		return nil, err
	}
	it.Period = period.String
	it.Location = location.String
	it.Material = material.String
	return &it, nil
}

// ListItems returns all items ordered by position.
func (s *SQLiteCatalog) ListItems(ctx context.Context) ([]*models.Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM items ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetItem returns an item by artifact id.
func (s *SQLiteCatalog) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	it, err := scanItem(s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE artifact_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %d: %w", id, models.ErrNotFound)
	}
	return it, err
}

// Count returns the number of items.
func (s *SQLiteCatalog) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteCatalog) Close() error {
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// SQLiteRuns implements RunStore using SQLite in WAL mode.
type SQLiteRuns struct {
	db *sql.DB
}

// NewSQLiteRuns opens or creates the run history database at dbPath.
func NewSQLiteRuns(dbPath string) (*SQLiteRuns, error) {
	if err := ensureDir(dbPath); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	schema := `
	CREATE TABLE IF NOT EXISTS eval_runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		k INTEGER NOT NULL,
		total INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		metrics TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_eval_runs_finished_at ON eval_runs(finished_at);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteRuns{db: db}, nil
}

// CreateRun inserts a run, assigning an id and finish time when unset.
func (s *SQLiteRuns) CreateRun(ctx context.Context, run *models.EvalRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = run.FinishedAt
	}
	metricsJSON, err := json.Marshal(run.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO eval_runs (id, kind, k, total, skipped, metrics, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Kind, run.K, run.Total, run.Skipped, string(metricsJSON), run.StartedAt, run.FinishedAt,
	)
	return err
}

const runColumns = `id, kind, k, total, skipped, metrics, started_at, finished_at`

func scanRun(row rowScanner) (*models.EvalRun, error) {
	var run models.EvalRun
	var metricsJSON string
	if err := row.Scan(&run.ID, &run.Kind, &run.K, &run.Total, &run.Skipped, &metricsJSON, &run.StartedAt, &run.FinishedAt); err != nil {
		return nil, err
	}
	if metricsJSON != "" {
		if err := json.Unmarshal([]byte(metricsJSON), &run.Metrics); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
		}
	}
	return &run, nil
}

// GetRun returns a run by id.
func (s *SQLiteRuns) GetRun(ctx context.Context, id string) (*models.EvalRun, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM eval_runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, models.ErrNotFound)
	}
	return run, err
}

// ListRuns returns the most recent runs first.
func (s *SQLiteRuns) ListRuns(ctx context.Context, limit int) ([]*models.EvalRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM eval_runs ORDER BY finished_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.EvalRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// CountRuns returns the number of recorded runs.
func (s *SQLiteRuns) CountRuns(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM eval_runs`).Scan(&n)
	return n, err
}

// Close closes the database connection.
func (s *SQLiteRuns) Close() error {
	return s.db.Close()
}
