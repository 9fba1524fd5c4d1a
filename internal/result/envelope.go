// Package result defines the per-scenario result envelope emitted by the
// oracle and diffed field-for-field by the cross-language parity harness.
package result

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Status values for an envelope. "error" marks a structural corpus fault,
// which is a different class from a failed expectation check.
const (
	StatusPass  = "pass"
	StatusFail  = "fail"
	StatusError = "error"
)

// Language identifies this implementation in cross-language envelope diffs.
const Language = "go"

// Envelope is the structured result of one scenario run. Field order and
// JSON shape are part of the parity contract: the harness compares envelopes
// byte-for-byte across implementations, so serialization must be canonical.
//
// Pointer fields distinguish "absent" from zero: DetectionMs is null when no
// fork was detected, ReconciliationMs is null when the timeline has no merge
// event, and the winning fields are null for an empty record set.
type Envelope struct {
	ScenarioID       string         `json:"scenario_id"`
	Language         string         `json:"language"`
	Status           string         `json:"status"`
	Detection        bool           `json:"detection"`
	DetectionMs      *int64         `json:"detection_ms"`
	ReconciliationMs *int64         `json:"reconciliation_ms"`
	WinningEpochID   *int           `json:"winning_epoch_id"`
	WinningHash      *string        `json:"winning_hash"`
	MessagesDropped  int            `json:"messages_dropped"`
	HealingActions   []string       `json:"healing_actions"`
	Errors           []string       `json:"errors"`
	FalsePositives   map[string]int `json:"false_positives"`
	Notes            []string       `json:"notes"`
	Failures         []string       `json:"failures"`
}

// StructuralReport is the record emitted in place of an envelope when a
// scenario aborts on a corpus-class fault (duplicate node_id, unknown
// node_id reference, unrecognized event type or fault directive).
type StructuralReport struct {
	ScenarioID string `json:"scenario_id"`
	Language   string `json:"language"`
	Status     string `json:"status"` // always "error"
	Fault      string `json:"fault"`
}

// NewStructuralReport builds the abort record for one scenario.
func NewStructuralReport(scenarioID, fault string) StructuralReport {
	return StructuralReport{
		ScenarioID: scenarioID,
		Language:   Language,
		Status:     StatusError,
		Fault:      fault,
	}
}

// EncodeJSON serializes a record to a single canonical JSON line without a
// trailing newline. HTML escaping is disabled so digest strings survive
// byte-identical; struct field order fixes key order.
func EncodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
