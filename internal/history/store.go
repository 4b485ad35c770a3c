// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

var (
	// ErrRunNotFound is returned when no run matches an id.
	ErrRunNotFound = errors.New("run not found")
	// ErrAmbiguousID is returned when an id prefix matches more than one run.
	ErrAmbiguousID = errors.New("run id prefix matches more than one run")
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	queue TEXT NOT NULL,
	status TEXT NOT NULL,
	started_at DATETIME NOT NULL,
	finished_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS run_commands (
	run_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	command TEXT NOT NULL,
	directory TEXT NOT NULL,
	comment TEXT NOT NULL,
	status TEXT NOT NULL,
	exit_code INTEGER NOT NULL,
	PRIMARY KEY (run_id, position),
	FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS run_output (
	run_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	line_no INTEGER NOT NULL,
	line TEXT NOT NULL,
	PRIMARY KEY (run_id, position, line_no),
	FOREIGN KEY (run_id, position) REFERENCES run_commands(run_id, position) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// Run is one finished queue.
type Run struct {
	ID         string    `db:"id"`
	Queue      string    `db:"queue"`
	Status     string    `db:"status"`
	StartedAt  time.Time `db:"started_at"`
	FinishedAt time.Time `db:"finished_at"`

	Commands []RunCommand `db:"-"`
}

// Duration returns how long the run took.
func (r *Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunCommand is one command of a run, with the output that was kept for it.
type RunCommand struct {
	RunID     string `db:"run_id"`
	Position  int    `db:"position"`
	Command   string `db:"command"`
	Directory string `db:"directory"`
	Comment   string `db:"comment"`
	Status    string `db:"status"`
	ExitCode  int    `db:"exit_code"`

	Output []string `db:"-"`
}

// Store keeps run history in SQLite.
type Store struct {
	db *sqlx.DB
}

// Open opens or creates the database at path. The directory is created if needed.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:mnd
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sqlx.ConnectContext(ctx, "sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}

	// Parallel queues finish concurrently; a single connection serialises their writes.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to run %q: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close() //nolint:wrapcheck
}

// Save stores a run with its commands and output in one transaction.
func (s *Store) Save(ctx context.Context, run *Run) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.NamedExecContext(ctx, `
		INSERT INTO runs (id, queue, status, started_at, finished_at)
		VALUES (:id, :queue, :status, :started_at, :finished_at)
	`, run); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for i := range run.Commands {
		c := &run.Commands[i]
		c.RunID = run.ID

		if _, err = tx.NamedExecContext(ctx, `
			INSERT INTO run_commands (run_id, position, command, directory, comment, status, exit_code)
			VALUES (:run_id, :position, :command, :directory, :comment, :status, :exit_code)
		`, c); err != nil {
			return fmt.Errorf("failed to insert command %d: %w", c.Position, err)
		}

		for n, line := range c.Output {
			if _, err = tx.ExecContext(ctx,
				`INSERT INTO run_output (run_id, position, line_no, line) VALUES (?, ?, ?, ?)`,
				run.ID, c.Position, n, line,
			); err != nil {
				return fmt.Errorf("failed to insert output of command %d: %w", c.Position, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	return nil
}

// List returns the most recent runs first, without their commands.
// A limit below one returns every run.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, queue, status, started_at, finished_at FROM runs ORDER BY started_at DESC, id`
	args := []any{}

	if limit > 0 {
		query += ` LIMIT ?`

		args = append(args, limit)
	}

	runs := []Run{}
	if err := s.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	return runs, nil
}

// Get returns a run with its commands and output. id may be a unique prefix.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrRunNotFound
	}

	var runs []Run
	if err := s.db.SelectContext(ctx, &runs,
		`SELECT id, queue, status, started_at, finished_at FROM runs WHERE id = ? OR id LIKE ? LIMIT 2`,
		id, stripLikeWildcards(id)+"%",
	); err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	run, err := pick(runs, id)
	if err != nil {
		return nil, err
	}

	if err := s.db.SelectContext(ctx, &run.Commands,
		`SELECT run_id, position, command, directory, comment, status, exit_code
		FROM run_commands WHERE run_id = ? ORDER BY position`, run.ID,
	); err != nil {
		return nil, fmt.Errorf("failed to get run commands: %w", err)
	}

	for i := range run.Commands {
		c := &run.Commands[i]
		if err := s.db.SelectContext(ctx, &c.Output,
			`SELECT line FROM run_output WHERE run_id = ? AND position = ? ORDER BY line_no`,
			run.ID, c.Position,
		); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to get output of command %d: %w", c.Position, err)
		}
	}

	return run, nil
}

func pick(runs []Run, id string) (*Run, error) {
	for i := range runs {
		if runs[i].ID == id {
			return &runs[i], nil
		}
	}

	switch len(runs) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case 1:
		return &runs[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousID, id)
	}
}

func stripLikeWildcards(s string) string {
	r := strings.NewReplacer(`%`, ``, `_`, ``)
	return r.Replace(s)
}
