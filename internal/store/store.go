package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/staffer-dev/staffer-sims/internal/analysis"
)

// DBFile is the run database name inside the state directory.
const DBFile = "runs.db"

// Store provides SQLite-backed persistence for runs.
type Store struct {
	db *sql.DB
}

// Open opens the SQLite database at dbPath and creates tables if they don't exist.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		persona TEXT NOT NULL,
		scenario TEXT NOT NULL,
		seed INTEGER NOT NULL,
		seed_explicit INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		completion_level INTEGER NOT NULL DEFAULT 0,
		total_turns INTEGER NOT NULL DEFAULT 0,
		elapsed_seconds REAL NOT NULL DEFAULT 0,
		timeout_reached INTEGER NOT NULL DEFAULT 0,
		transcript_path TEXT,
		jsonl_path TEXT,
		total_tokens INTEGER NOT NULL DEFAULT 0,
		estimated_cost REAL NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_lookup ON runs(persona, scenario, seed);

	CREATE TABLE IF NOT EXISTS turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		turn INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE TABLE IF NOT EXISTS failures (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		category TEXT NOT NULL,
		reason TEXT NOT NULL,
		error_message TEXT,
		turn_occurred INTEGER,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveRun stores a run together with its turns and failures in one transaction.
func (s *Store) SaveRun(ctx context.Context, run *Run, turns []analysis.Turn, failures []analysis.FailureDetail) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, persona, scenario, seed, seed_explicit, status, completion_level,
		                   total_turns, elapsed_seconds, timeout_reached, transcript_path, jsonl_path,
		                   total_tokens, estimated_cost, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Persona, run.Scenario, int64(run.Seed), run.SeedExplicit, run.Status, run.CompletionLevel,
		run.TotalTurns, run.ElapsedSeconds, run.TimeoutReached, run.TranscriptPath, run.JSONLPath,
		run.TotalTokens, run.EstimatedCost, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, t := range turns {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO turns (run_id, turn, role, content) VALUES (?, ?, ?, ?)`,
			run.ID, i+1, string(t.Role), t.Content,
		); err != nil {
			return fmt.Errorf("insert turn %d: %w", i+1, err)
		}
	}

	for _, f := range failures {
		var turn sql.NullInt64
		if f.TurnOccurred > 0 {
			turn = sql.NullInt64{Int64: int64(f.TurnOccurred), Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO failures (run_id, category, reason, error_message, turn_occurred)
			 VALUES (?, ?, ?, ?, ?)`,
			run.ID, string(f.Category), f.Reason, f.ErrorMessage, turn,
		); err != nil {
			return fmt.Errorf("insert failure: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

const runColumns = `id, persona, scenario, seed, seed_explicit, status, completion_level, total_turns,
	elapsed_seconds, timeout_reached, COALESCE(transcript_path, ''), COALESCE(jsonl_path, ''),
	total_tokens, estimated_cost, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var seed int64
	if err := row.Scan(&r.ID, &r.Persona, &r.Scenario, &seed, &r.SeedExplicit, &r.Status,
		&r.CompletionLevel, &r.TotalTurns, &r.ElapsedSeconds, &r.TimeoutReached,
		&r.TranscriptPath, &r.JSONLPath, &r.TotalTokens, &r.EstimatedCost, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.Seed = uint32(seed)
	return &r, nil
}

// GetRun retrieves a run by ID. Returns nil, nil if it does not exist.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return r, nil
}

// FindCompleted returns the most recent successfully completed run for the
// persona, scenario and explicit seed, or nil if there is none.
func (s *Store) FindCompleted(ctx context.Context, persona, scenario string, seed uint32) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+`
		 FROM runs
		 WHERE persona = ? AND scenario = ? AND seed = ? AND seed_explicit = 1 AND status = ?
		 ORDER BY created_at DESC
		 LIMIT 1`,
		persona, scenario, int64(seed), string(analysis.StatusCompleted),
	)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return r, nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return runs, nil
}

// Turns returns the stored turns of a run in order.
func (s *Store) Turns(ctx context.Context, runID string) ([]TurnRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, turn, role, content FROM turns WHERE run_id = ? ORDER BY turn ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []TurnRow
	for rows.Next() {
		var t TurnRow
		if err := rows.Scan(&t.RunID, &t.Turn, &t.Role, &t.Content); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// Failures returns the stored failures of a run in insertion order.
func (s *Store) Failures(ctx context.Context, runID string) ([]FailureRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, category, reason, COALESCE(error_message, ''), COALESCE(turn_occurred, 0)
		 FROM failures WHERE run_id = ? ORDER BY id ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []FailureRow
	for rows.Next() {
		var f FailureRow
		if err := rows.Scan(&f.RunID, &f.Category, &f.Reason, &f.ErrorMessage, &f.TurnOccurred); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}
