package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const runColumns = `seq, id, job_name, mode, status, selection, rows_processed, productions, error`

// ReadRun retrieves a single run by ID.
// Returns ErrRunNotFound if it does not exist.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", id, ErrRunNotFound)
	}
	return run, err
}

// ListRuns returns every run in journal order (seq ASC).
// Returns an empty slice (not nil) when the journal is empty.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadCaptures returns a run's captures in selection order.
// Results are ordered deterministically: ORDER BY position ASC, id ASC COLLATE BINARY.
// Returns an empty slice (not nil) if the run captured nothing.
func (s *Store) ReadCaptures(ctx context.Context, runID string) ([]Capture, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, position, row_index, fields, visibility
		FROM captures
		WHERE run_id = ?
		ORDER BY position ASC, id COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query captures: %w", err)
	}
	defer rows.Close()

	captures := []Capture{}
	for rows.Next() {
		var c Capture
		var fieldsJSON, visJSON string
		if err := rows.Scan(&c.ID, &c.RunID, &c.Position, &c.Index, &fieldsJSON, &visJSON); err != nil {
			return nil, fmt.Errorf("scan capture: %w", err)
		}
		if c.Fields, err = unmarshalFields(fieldsJSON); err != nil {
			return nil, fmt.Errorf("capture %s: %w", c.ID, err)
		}
		if c.Visibility, err = unmarshalVisibility(visJSON); err != nil {
			return nil, fmt.Errorf("capture %s: %w", c.ID, err)
		}
		captures = append(captures, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate captures: %w", err)
	}
	return captures, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var run Run
	var mode, status string
	err := row.Scan(&run.Seq, &run.ID, &run.JobName, &mode, &status,
		&run.Selection, &run.RowsProcessed, &run.Productions, &run.Error)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Mode = Mode(mode)
	run.Status = Status(status)
	return run, nil
}
