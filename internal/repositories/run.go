package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
)

// RunRepository records ingest runs and their summaries.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Start inserts a run in the running state.
func (r *RunRepository) Start(ctx context.Context, run *models.RunSummary) error {
	if run.RunID == "" {
		return fmt.Errorf("%w: run id", shared.ErrMissingArgument)
	}

	query := `
		INSERT INTO ingest_runs (id, trigger, status, started_at)
		VALUES (?, ?, ?, ?)
	`

	status := run.Status
	if status == "" {
		status = models.RunStatusRunning
	}

	if _, err := r.db.ExecContext(ctx, query, run.RunID, run.Trigger, status, formatTime(run.StartedAt)); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// Finish stores the final status and summary of a run.
func (r *RunRepository) Finish(ctx context.Context, run *models.RunSummary) error {
	summary, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to encode run summary: %w", err)
	}

	query := `
		UPDATE ingest_runs
		SET status = ?, finished_at = ?, summary = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query, run.Status, formatTime(run.FinishedAt), string(summary), run.RunID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return notFound("run", run.RunID)
	}
	return nil
}

// Get retrieves a run by ID
func (r *RunRepository) Get(ctx context.Context, id string) (*models.RunSummary, error) {
	query := `
		SELECT id, trigger, status, started_at, finished_at, summary
		FROM ingest_runs
		WHERE id = ?
	`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("run", id)
	}
	return run, err
}

// Latest retrieves the most recently started run.
func (r *RunRepository) Latest(ctx context.Context) (*models.RunSummary, error) {
	runs, err := r.List(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: no ingest runs recorded", shared.ErrNotFound)
	}
	return &runs[0], nil
}

// List returns runs newest first. A limit of zero returns all of them.
func (r *RunRepository) List(ctx context.Context, limit int) ([]models.RunSummary, error) {
	query := `
		SELECT id, trigger, status, started_at, finished_at, summary
		FROM ingest_runs
		ORDER BY started_at DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.RunSummary
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// scanRun prefers the stored summary and falls back to the row columns for runs still in progress.
func scanRun(s scanner) (*models.RunSummary, error) {
	var (
		id, trigger, status, startedAt string
		finishedAt, summary            sql.NullString
	)

	if err := s.Scan(&id, &trigger, &status, &startedAt, &finishedAt, &summary); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	var run models.RunSummary
	if summary.Valid && summary.String != "" {
		if err := json.Unmarshal([]byte(summary.String), &run); err != nil {
			return nil, fmt.Errorf("failed to decode run summary: %w", err)
		}
	}

	run.RunID, run.Trigger, run.Status = id, trigger, status
	started, err := parseTime(startedAt)
	if err != nil {
		return nil, err
	}
	run.StartedAt = started

	if finishedAt.Valid {
		finished, err := parseTime(finishedAt.String)
		if err != nil {
			return nil, err
		}
		run.FinishedAt = finished
	}
	return &run, nil
}
