// Package eval diffs a result envelope against a scenario's declared
// expectations and names every mismatch from a fixed failure vocabulary.
package eval

import (
	"github.com/foxwhisper/epochtrace/internal/corpus"
	"github.com/foxwhisper/epochtrace/internal/result"
)

// Failure codes. The vocabulary is closed and shared verbatim across
// implementations; the parity harness matches on these exact strings.
const (
	FailDetectionMismatch      = "detection_mismatch"
	FailMissingDetectionMs     = "missing_detection_ms"
	FailDetectionSLA           = "detection_sla"
	FailWinningHashMismatch    = "winning_hash_mismatch"
	FailWinningEpochMismatch   = "winning_epoch_mismatch"
	FailMissingReconciliation  = "missing_reconciliation"
	FailReconciliationSLA      = "reconciliation_sla"
	FailReplayGapMessages      = "replay_gap_messages"
	FailMissingErrorCategories = "missing_error_categories"
)

// Evaluate compares an envelope against the expectations block and returns
// the ordered failure list. An empty list means the scenario passes.
//
// Mismatches never abort: every check runs, each appending at most one code,
// in the fixed order below. Undeclared ceilings (zero values) are skipped.
func Evaluate(exp corpus.Expectations, env result.Envelope) []string {
	failures := []string{}

	if env.Detection != exp.Detected {
		failures = append(failures, FailDetectionMismatch)
	}
	if exp.Detected {
		switch {
		case env.DetectionMs == nil:
			failures = append(failures, FailMissingDetectionMs)
		case exp.MaxDetectionMs > 0 && *env.DetectionMs > exp.MaxDetectionMs:
			failures = append(failures, FailDetectionSLA)
		}
	}
	if exp.ReconciledEpoch.Hash != "" && env.WinningHash != nil && *env.WinningHash != exp.ReconciledEpoch.Hash {
		failures = append(failures, FailWinningHashMismatch)
	}
	if exp.ReconciledEpoch.EpochID != 0 && env.WinningEpochID != nil && *env.WinningEpochID != exp.ReconciledEpoch.EpochID {
		failures = append(failures, FailWinningEpochMismatch)
	}
	if exp.HealingRequired {
		switch {
		case env.ReconciliationMs == nil:
			failures = append(failures, FailMissingReconciliation)
		case exp.MaxReconciliationMs > 0 && *env.ReconciliationMs > exp.MaxReconciliationMs:
			failures = append(failures, FailReconciliationSLA)
		}
	}
	if exp.AllowReplayGap.MaxMessages > 0 && env.MessagesDropped > exp.AllowReplayGap.MaxMessages {
		failures = append(failures, FailReplayGapMessages)
	}
	for _, want := range exp.ExpectedErrorCategories {
		if !containsString(env.Errors, want) {
			failures = append(failures, FailMissingErrorCategories)
			break
		}
	}

	return failures
}

func containsString(list []string, target string) bool {
	for _, v := range list {
		if v == target {
			return true
		}
	}
	return false
}
