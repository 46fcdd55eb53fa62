package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stellarlinkco/samplebench/internal/dataset"
)

const defaultRunLimit = 50

// SQLiteStore persists sample payloads and accuracy-run results. The
// samples table is the out-of-RAM backing tier: the library reads one
// payload per index at load time instead of holding the full dataset.
type SQLiteStore struct {
	db *sql.DB

	readSampleStmt   *sql.Stmt
	readExpectedStmt *sql.Stmt
	sampleCountStmt  *sql.Stmt
}

// Run records one completed accuracy run.
type Run struct {
	ID        int64
	Dataset   string
	SUT       string
	Metric    string
	Samples   int
	Failures  int
	Accuracy  float64
	Summary   string
	Duration  time.Duration
	CreatedAt time.Time
}

// NewSQLiteStore opens or creates a store at the given path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("store: empty sqlite path")
	}
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("store: create sqlite dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping sqlite: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	st := &SQLiteStore{db: db}
	if err := st.prepareStatements(); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON`,
		`PRAGMA journal_mode = WAL`,
		`CREATE TABLE IF NOT EXISTS samples (
			dataset TEXT NOT NULL,
			idx INTEGER NOT NULL,
			payload BLOB NOT NULL,
			expected TEXT NOT NULL,
			PRIMARY KEY (dataset, idx)
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			dataset TEXT NOT NULL,
			sut TEXT NOT NULL,
			metric TEXT NOT NULL,
			samples INTEGER NOT NULL,
			failures INTEGER NOT NULL,
			accuracy REAL NOT NULL,
			summary TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_dataset ON runs(dataset)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("store: init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) prepareStatements() error {
	if s == nil || s.db == nil {
		return errors.New("store: nil db")
	}

	var err error
	s.readSampleStmt, err = s.db.Prepare(`SELECT payload FROM samples WHERE dataset = ? AND idx = ?`)
	if err != nil {
		return fmt.Errorf("store: prepare read sample: %w", err)
	}
	s.readExpectedStmt, err = s.db.Prepare(`SELECT expected FROM samples WHERE dataset = ? AND idx = ?`)
	if err != nil {
		return fmt.Errorf("store: prepare read expected: %w", err)
	}
	s.sampleCountStmt, err = s.db.Prepare(`SELECT COUNT(*) FROM samples WHERE dataset = ?`)
	if err != nil {
		return fmt.Errorf("store: prepare sample count: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	for _, stmt := range []*sql.Stmt{s.readSampleStmt, s.readExpectedStmt, s.sampleCountStmt} {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
	return s.db.Close()
}

// ImportDataset writes every sample of a dataset into the samples
// table, replacing any prior import under the same name.
func (s *SQLiteStore) ImportDataset(ctx context.Context, ds *dataset.Dataset) error {
	if s == nil || s.db == nil {
		return errors.New("store: nil store")
	}
	if ctx == nil {
		return errors.New("store: nil context")
	}
	if ds == nil || ds.Len() == 0 {
		return errors.New("store: empty dataset")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin import: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM samples WHERE dataset = ?`, ds.Name()); err != nil {
		return fmt.Errorf("store: clear dataset %q: %w", ds.Name(), err)
	}

	insert, err := tx.PrepareContext(ctx, `INSERT INTO samples (dataset, idx, payload, expected) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare insert: %w", err)
	}
	defer insert.Close()

	for i := 0; i < ds.Len(); i++ {
		payload, err := ds.ReadSample(ctx, i)
		if err != nil {
			return fmt.Errorf("store: read sample %d: %w", i, err)
		}
		expected, err := ds.Expected(i)
		if err != nil {
			return fmt.Errorf("store: expected for sample %d: %w", i, err)
		}
		expJSON, err := json.Marshal(expected)
		if err != nil {
			return fmt.Errorf("store: encode expected for sample %d: %w", i, err)
		}
		if _, err := insert.ExecContext(ctx, ds.Name(), i, payload, string(expJSON)); err != nil {
			return fmt.Errorf("store: insert sample %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit import: %w", err)
	}
	return nil
}

// SampleCount returns the number of stored samples for a dataset.
func (s *SQLiteStore) SampleCount(ctx context.Context, dataset string) (int, error) {
	if s == nil || s.sampleCountStmt == nil {
		return 0, errors.New("store: nil store")
	}
	var n int
	if err := s.sampleCountStmt.QueryRowContext(ctx, strings.TrimSpace(dataset)).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count samples for %q: %w", dataset, err)
	}
	return n, nil
}

// ListDatasets returns stored dataset names with their sample counts.
func (s *SQLiteStore) ListDatasets(ctx context.Context) (map[string]int, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store: nil store")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT dataset, COUNT(*) FROM samples GROUP BY dataset ORDER BY dataset`)
	if err != nil {
		return nil, fmt.Errorf("store: list datasets: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("store: scan dataset: %w", err)
		}
		out[name] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: scan datasets: %w", err)
	}
	return out, nil
}

// SaveRun persists a completed accuracy run.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run) error {
	if s == nil || s.db == nil {
		return errors.New("store: nil store")
	}
	if ctx == nil {
		return errors.New("store: nil context")
	}
	if run == nil {
		return errors.New("store: nil run")
	}

	ds := strings.TrimSpace(run.Dataset)
	sut := strings.TrimSpace(run.SUT)
	if ds == "" || sut == "" {
		return errors.New("store: missing dataset/sut")
	}

	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (dataset, sut, metric, samples, failures, accuracy, summary, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ds, sut, strings.TrimSpace(run.Metric), run.Samples, run.Failures, run.Accuracy, run.Summary,
		run.Duration.Milliseconds(), createdAt.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("store: insert run: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		run.ID = id
	}
	run.Dataset = ds
	run.SUT = sut
	run.CreatedAt = createdAt
	return nil
}

// ListRuns returns the most recent runs, newest first. An empty dataset
// name matches all datasets.
func (s *SQLiteStore) ListRuns(ctx context.Context, dataset string, limit int) ([]Run, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store: nil store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	if limit <= 0 {
		limit = defaultRunLimit
	}

	query := `
		SELECT id, dataset, sut, metric, samples, failures, accuracy, summary, duration_ms, created_at
		FROM runs`
	args := make([]any, 0, 2)
	dataset = strings.TrimSpace(dataset)
	if dataset != "" {
		query += ` WHERE dataset = ?`
		args = append(args, dataset)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// GetRun returns one run by id.
func (s *SQLiteStore) GetRun(ctx context.Context, id int64) (*Run, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store: nil store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, dataset, sut, metric, samples, failures, accuracy, summary, duration_ms, created_at
		FROM runs WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: run %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get run %d: %w", id, err)
	}
	return run, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var durationMS, createdMS int64
	if err := row.Scan(
		&r.ID,
		&r.Dataset,
		&r.SUT,
		&r.Metric,
		&r.Samples,
		&r.Failures,
		&r.Accuracy,
		&r.Summary,
		&durationMS,
		&createdMS,
	); err != nil {
		return nil, err
	}
	r.Duration = time.Duration(durationMS) * time.Millisecond
	r.CreatedAt = time.UnixMilli(createdMS).UTC()
	return &r, nil
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: scan runs: %w", err)
	}
	return out, nil
}
