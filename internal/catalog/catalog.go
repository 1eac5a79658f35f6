/*
Copyright © 2024 the SUSI authors.
This file is part of SUSI.

SUSI is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

SUSI is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with SUSI.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package catalog records experiments and their runs in a SQLite
// database so that the outputs of past simulations can be found again.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // database/sql driver "sqlite"
)

// Run statuses.
const (
	Running  = "running"
	Finished = "finished"
	Failed   = "failed"
)

// Experiment is one execution of a plan.
type Experiment struct {
	ID       string
	Folder   string
	NRuns    int
	Started  time.Time
	Finished time.Time // zero while the experiment is running
}

// Run is one simulation of an experiment.
type Run struct {
	Experiment string
	ID         string
	ParamsHash string
	Output     string
	Status     string
	Message    string
	Seconds    float64
}

// Catalog is a run catalog backed by a SQLite file. It is safe for
// concurrent use.
type Catalog struct {
	db *sql.DB
}

var schema = []string{`
CREATE TABLE IF NOT EXISTS experiments (
	id       TEXT PRIMARY KEY,
	folder   TEXT NOT NULL,
	n_runs   INTEGER NOT NULL,
	started  TEXT NOT NULL,
	finished TEXT NOT NULL DEFAULT ''
)`, `
CREATE TABLE IF NOT EXISTS runs (
	experiment  TEXT NOT NULL REFERENCES experiments(id),
	run_id      TEXT NOT NULL,
	params_hash TEXT NOT NULL,
	output      TEXT NOT NULL,
	status      TEXT NOT NULL,
	message     TEXT NOT NULL DEFAULT '',
	seconds     REAL NOT NULL DEFAULT 0,
	PRIMARY KEY (experiment, run_id)
)`}

// Open opens the catalog at path, creating the file and its directory
// if needed.
func Open(path string) (*Catalog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("catalog: creating directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("catalog: opening %s: %w", path, err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("catalog: creating tables: %w", err)
		}
	}
	return &Catalog{db: db}, nil
}

// Close closes the database.
func (c *Catalog) Close() error { return c.db.Close() }

// AddExperiment records the start of an experiment.
func (c *Catalog) AddExperiment(ctx context.Context, e Experiment) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO experiments (id, folder, n_runs, started) VALUES (?, ?, ?, ?)`,
		e.ID, e.Folder, e.NRuns, e.Started.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("catalog: adding experiment %s: %w", e.ID, err)
	}
	return nil
}

// FinishExperiment records the end time of experiment id.
func (c *Catalog) FinishExperiment(ctx context.Context, id string, t time.Time) error {
	res, err := c.db.ExecContext(ctx, `UPDATE experiments SET finished = ? WHERE id = ?`,
		t.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("catalog: finishing experiment %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("catalog: no experiment %s", id)
	}
	return nil
}

// Experiment returns the experiment with the given id.
func (c *Catalog) Experiment(ctx context.Context, id string) (Experiment, error) {
	var e Experiment
	var started, finished string
	err := c.db.QueryRowContext(ctx,
		`SELECT id, folder, n_runs, started, finished FROM experiments WHERE id = ?`, id).
		Scan(&e.ID, &e.Folder, &e.NRuns, &started, &finished)
	if err != nil {
		return e, fmt.Errorf("catalog: experiment %s: %w", id, err)
	}
	if e.Started, err = time.Parse(time.RFC3339, started); err != nil {
		return e, fmt.Errorf("catalog: experiment %s: %w", id, err)
	}
	if finished != "" {
		if e.Finished, err = time.Parse(time.RFC3339, finished); err != nil {
			return e, fmt.Errorf("catalog: experiment %s: %w", id, err)
		}
	}
	return e, nil
}

// RecordRun inserts or updates a run.
func (c *Catalog) RecordRun(ctx context.Context, r Run) error {
	_, err := c.db.ExecContext(ctx, `INSERT INTO runs
		(experiment, run_id, params_hash, output, status, message, seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (experiment, run_id) DO UPDATE SET
		status = excluded.status, message = excluded.message, seconds = excluded.seconds`,
		r.Experiment, r.ID, r.ParamsHash, r.Output, r.Status, r.Message, r.Seconds)
	if err != nil {
		return fmt.Errorf("catalog: recording run %s: %w", r.ID, err)
	}
	return nil
}

// Runs returns the runs of an experiment ordered by run id.
func (c *Catalog) Runs(ctx context.Context, experiment string) ([]Run, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT experiment, run_id, params_hash, output, status, message, seconds
		FROM runs WHERE experiment = ? ORDER BY run_id`, experiment)
	if err != nil {
		return nil, fmt.Errorf("catalog: listing runs: %w", err)
	}
	defer rows.Close()
	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.Experiment, &r.ID, &r.ParamsHash, &r.Output, &r.Status, &r.Message, &r.Seconds); err != nil {
			return nil, fmt.Errorf("catalog: listing runs: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// FindOutputs returns the output files of every finished run whose
// parameters hash to paramsHash, newest experiment first.
func (c *Catalog) FindOutputs(ctx context.Context, paramsHash string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT r.output FROM runs r
		JOIN experiments e ON e.id = r.experiment
		WHERE r.params_hash = ? AND r.status = ?
		ORDER BY e.started DESC, r.run_id`, paramsHash, Finished)
	if err != nil {
		return nil, fmt.Errorf("catalog: finding outputs: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var o string
		if err := rows.Scan(&o); err != nil {
			return nil, fmt.Errorf("catalog: finding outputs: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
