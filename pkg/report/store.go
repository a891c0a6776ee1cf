// Package report persists the results of acceptance runs so that the
// history of a rig can be reviewed later.
package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Run is one recorded acceptance run.
type Run struct {
	ID             string
	Rig            string
	StartedAt      time.Time
	FinishedAt     time.Time
	TorqueLevelsNm []float64
	Passed         bool
	FailureReason  string
	LogPath        string
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Store is a SQLite-backed run archive.
type Store struct {
	db *sql.DB
}

// Open opens (and if necessary creates) the run archive at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("report: database path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open results database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open results database: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id             TEXT PRIMARY KEY,
			rig            TEXT NOT NULL,
			started_at     INTEGER NOT NULL,
			finished_at    INTEGER NOT NULL,
			torque_levels  TEXT NOT NULL,
			passed         INTEGER NOT NULL,
			failure_reason TEXT NOT NULL DEFAULT '',
			log_path       TEXT NOT NULL DEFAULT ''
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create runs table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun inserts a run.  An empty ID is replaced by a fresh one.
func (s *Store) SaveRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		run.ID = NewRunID()
	}

	levels, err := json.Marshal(run.TorqueLevelsNm)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, rig, started_at, finished_at, torque_levels,
			passed, failure_reason, log_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Rig,
		run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli(),
		string(levels), boolToInt(run.Passed), run.FailureReason, run.LogPath)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, rig, started_at, finished_at, torque_levels,
			passed, failure_reason, log_path
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run               Run
			started, finished int64
			levels            string
			passed            int
		)
		if err := rows.Scan(&run.ID, &run.Rig, &started, &finished,
			&levels, &passed, &run.FailureReason, &run.LogPath); err != nil {
			return nil, err
		}
		run.StartedAt = time.UnixMilli(started)
		run.FinishedAt = time.UnixMilli(finished)
		run.Passed = passed != 0
		if err := json.Unmarshal([]byte(levels), &run.TorqueLevelsNm); err != nil {
			return nil, fmt.Errorf("decode torque levels of run %s: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
