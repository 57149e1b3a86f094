package store

import (
	"context"
	"fmt"

	"github.com/roach88/printmerge/internal/canon"
)

// BeginRun records a run in the running state.
// Uses ON CONFLICT(id) DO NOTHING - beginning the same run twice is a no-op.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	selection := run.Selection
	if selection == "" {
		selection = "all"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, job_name, mode, status, selection)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.JobName,
		string(run.Mode),
		string(StatusRunning),
		selection,
	)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// FinishRun records a run's final status and counters.
// Returns ErrRunNotFound if the run was never begun.
func (s *Store) FinishRun(ctx context.Context, id string, out Outcome) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, rows_processed = ?, productions = ?, error = ?
		WHERE id = ?
	`,
		string(out.Status),
		out.RowsProcessed,
		out.Productions,
		out.Error,
		id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrRunNotFound)
	}
	return nil
}

// WriteCapture inserts one simulated row. An empty ID is computed with
// canon.CaptureID. Uses ON CONFLICT DO NOTHING for idempotency; the run
// must already exist (foreign key).
func (s *Store) WriteCapture(ctx context.Context, c Capture) (string, error) {
	if c.ID == "" {
		id, err := canon.CaptureID(c.RunID, c.Index, c.Fields, c.Visibility)
		if err != nil {
			return "", fmt.Errorf("write capture: %w", err)
		}
		c.ID = id
	}

	fieldsJSON, err := marshalFields(c.Fields)
	if err != nil {
		return "", fmt.Errorf("write capture: %w", err)
	}
	visJSON, err := marshalVisibility(c.Visibility)
	if err != nil {
		return "", fmt.Errorf("write capture: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO captures (id, run_id, position, row_index, fields, visibility)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		c.ID,
		c.RunID,
		c.Position,
		c.Index,
		fieldsJSON,
		visJSON,
	)
	if err != nil {
		return "", fmt.Errorf("write capture: %w", err)
	}
	return c.ID, nil
}

// WriteCaptures inserts captures in one transaction.
func (s *Store) WriteCaptures(ctx context.Context, captures []Capture) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write captures: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, c := range captures {
		if c.ID == "" {
			if c.ID, err = canon.CaptureID(c.RunID, c.Index, c.Fields, c.Visibility); err != nil {
				return fmt.Errorf("write captures: %w", err)
			}
		}
		fieldsJSON, err := marshalFields(c.Fields)
		if err != nil {
			return fmt.Errorf("write captures: %w", err)
		}
		visJSON, err := marshalVisibility(c.Visibility)
		if err != nil {
			return fmt.Errorf("write captures: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO captures (id, run_id, position, row_index, fields, visibility)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`, c.ID, c.RunID, c.Position, c.Index, fieldsJSON, visJSON); err != nil {
			return fmt.Errorf("write captures: position %d: %w", c.Position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write captures: commit: %w", err)
	}
	return nil
}
