package corpus

import "fmt"

// EpochNode is one issued epoch-authenticity record (EARE). Immutable once
// loaded; the engine never mutates graph nodes.
//
// Chain structure is derived solely from ParentID. Graph edges are inert
// metadata and do not participate in detection or reconciliation.
type EpochNode struct {
	NodeID            string  `json:"node_id"`
	EpochID           int     `json:"epoch_id"`
	EAREHash          string  `json:"eare_hash"`
	PreviousEpochHash *string `json:"previous_epoch_hash,omitempty"`
	MembershipDigest  *string `json:"membership_digest,omitempty"`
	ParentID          *string `json:"parent_id,omitempty"`
	IssuedBy          string  `json:"issued_by"`
	TimestampMs       int64   `json:"timestamp_ms"`
}

// Edge is declarative graph metadata carried by the corpus schema.
// It is preserved through load and envelope round-trips but never consumed:
// structure comes from parent_id chains only, so every implementation derives
// the same topology.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type,omitempty"`
}

// Graph is the scenario's epoch graph: the node set plus inert edges.
type Graph struct {
	Nodes []EpochNode `json:"nodes"`
	Edges []Edge      `json:"edges,omitempty"`
}

// EventKind is the closed vocabulary of event types in a scenario stream.
type EventKind string

const (
	EventEpochIssue    EventKind = "epoch_issue"
	EventReplayAttempt EventKind = "replay_attempt"
	EventMerge         EventKind = "merge"
)

// ParseEventKind maps a raw event label onto the closed vocabulary.
// An unrecognized label is a corpus error, fatal to its scenario.
func ParseEventKind(label string) (EventKind, error) {
	switch EventKind(label) {
	case EventEpochIssue, EventReplayAttempt, EventMerge:
		return EventKind(label), nil
	default:
		return "", fmt.Errorf("unrecognized event type %q", label)
	}
}

// Event is one entry in a scenario's event stream. T is integer milliseconds;
// timestamps are never floating point so that every implementation orders and
// subtracts them identically.
//
// Controller, Participants and ReconcileStrategy mirror the corpus schema but
// are inert: the engine keys off Kind, T, NodeID, Count and Faults only.
type Event struct {
	T                 int64    `json:"t"`
	Kind              string   `json:"event"`
	NodeID            string   `json:"node_id,omitempty"`
	Controller        string   `json:"controller,omitempty"`
	EpochID           int      `json:"epoch_id,omitempty"`
	Participants      []string `json:"participants,omitempty"`
	ReconcileStrategy string   `json:"reconcile_strategy,omitempty"`
	Count             int      `json:"count,omitempty"`
	Faults            []string `json:"faults,omitempty"`
}

// Reconciled names the epoch record a scenario expects to win fork choice.
type Reconciled struct {
	EpochID int    `json:"epoch_id,omitempty"`
	NodeID  string `json:"node_id,omitempty"`
	Hash    string `json:"eare_hash,omitempty"`
}

// ReplayGap is the tolerated collateral message loss during fork resolution.
type ReplayGap struct {
	MaxMessages int   `json:"max_messages,omitempty"`
	MaxMs       int64 `json:"max_ms,omitempty"`
}

// Expectations is the declared correctness contract for one scenario.
// A zero value for a ceiling (MaxDetectionMs, MaxReconciliationMs,
// ReplayGap.MaxMessages) means "no SLA declared" and is never enforced.
type Expectations struct {
	Detected                bool       `json:"detected"`
	DetectionReference      string     `json:"detection_reference,omitempty"`
	MaxDetectionMs          int64      `json:"max_detection_ms,omitempty"`
	MaxReconciliationMs     int64      `json:"max_reconciliation_ms,omitempty"`
	ReconciledEpoch         Reconciled `json:"reconciled_epoch,omitempty"`
	AllowReplayGap          ReplayGap  `json:"allow_replay_gap,omitempty"`
	ExpectedErrorCategories []string   `json:"expected_error_categories,omitempty"`
	HealingRequired         bool       `json:"healing_required,omitempty"`
}

// DetectionReferenceObservable selects the "time to notice once observable"
// SLA mode: detection latency is measured against the detection time itself
// and is therefore 0 by construction. Any other value (including empty)
// measures end-to-end latency from the moment the fork was actually created.
const DetectionReferenceObservable = "fork_observable"

// Scenario is one self-contained conformance case. Scenarios share no state:
// each simulation run builds fresh indices from the scenario alone.
//
// GroupContext is inert corpus metadata, preserved but never consumed.
type Scenario struct {
	ScenarioID   string         `json:"scenario_id"`
	GroupContext map[string]any `json:"group_context,omitempty"`
	Graph        Graph          `json:"graph"`
	EventStream  []Event        `json:"event_stream"`
	Expectations Expectations   `json:"expectations"`
}

// StructuralError is a corpus/simulation-class fault: duplicate node_id, an
// event referencing an unknown node_id, an unrecognized event type or fault
// directive. It is fatal to its one scenario and reported as a structural
// fault, distinct from a "fail" verdict; sibling scenarios keep running.
type StructuralError struct {
	ScenarioID string
	Reason     string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("scenario %s: %s", e.ScenarioID, e.Reason)
}

// Structural wraps a reason into a StructuralError for the given scenario.
func Structural(scenarioID, format string, args ...any) *StructuralError {
	return &StructuralError{ScenarioID: scenarioID, Reason: fmt.Sprintf(format, args...)}
}
