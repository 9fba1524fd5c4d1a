package store

import (
	"context"
	"fmt"
)

// CreateRun inserts a run header. Run IDs are caller-supplied uuids; a
// duplicate run_id is an error, not an upsert, since a run is immutable once
// recorded.
func (s *Store) CreateRun(ctx context.Context, runID, corpusPath string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, corpus_path)
		VALUES (?, ?)
	`, runID, corpusPath)
	if err != nil {
		return fmt.Errorf("create run %s: %w", runID, err)
	}
	return nil
}

// WriteEnvelope records one scenario's serialized envelope for a run.
// Uses ON CONFLICT DO NOTHING for idempotency: re-writing the same
// (run, scenario) pair is silently ignored, never overwritten.
func (s *Store) WriteEnvelope(ctx context.Context, runID, scenarioID, status string, body []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO envelopes (run_id, scenario_id, status, body)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, scenario_id) DO NOTHING
	`, runID, scenarioID, status, string(body))
	if err != nil {
		return fmt.Errorf("write envelope %s/%s: %w", runID, scenarioID, err)
	}
	return nil
}
