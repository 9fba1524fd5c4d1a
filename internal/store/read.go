package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("not found")

// Run is one archived corpus evaluation.
type Run struct {
	RunID      string
	CorpusPath string
	CreatedAt  string
}

// ArchivedEnvelope is one recorded scenario result within a run.
type ArchivedEnvelope struct {
	ScenarioID string
	Status     string
	Body       []byte
}

// LatestRun returns the most recently created run.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	var r Run
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, corpus_path, created_at
		FROM runs
		ORDER BY created_at DESC, run_id DESC
		LIMIT 1
	`).Scan(&r.RunID, &r.CorpusPath, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("latest run: %w", ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("latest run: %w", err)
	}
	return r, nil
}

// GetRun returns the run with the given id.
func (s *Store) GetRun(ctx context.Context, runID string) (Run, error) {
	var r Run
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, corpus_path, created_at
		FROM runs
		WHERE run_id = ?
	`, runID).Scan(&r.RunID, &r.CorpusPath, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("run %s: %w", runID, err)
	}
	return r, nil
}

// ListRuns returns all archived runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, corpus_path, created_at
		FROM runs
		ORDER BY created_at DESC, run_id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.RunID, &r.CorpusPath, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// ReadEnvelopes returns a run's envelopes keyed by scenario_id. Lookup by
// key, not column order, so replay comparisons are independent of archive
// insertion order.
func (s *Store) ReadEnvelopes(ctx context.Context, runID string) (map[string]ArchivedEnvelope, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scenario_id, status, body
		FROM envelopes
		WHERE run_id = ?
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("read envelopes %s: %w", runID, err)
	}
	defer rows.Close()

	envelopes := make(map[string]ArchivedEnvelope)
	for rows.Next() {
		var e ArchivedEnvelope
		var body string
		if err := rows.Scan(&e.ScenarioID, &e.Status, &body); err != nil {
			return nil, fmt.Errorf("scan envelope: %w", err)
		}
		e.Body = []byte(body)
		envelopes[e.ScenarioID] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read envelopes %s: %w", runID, err)
	}
	return envelopes, nil
}
