package sim

import (
	"fmt"

	"github.com/foxwhisper/epochtrace/internal/corpus"
	"github.com/foxwhisper/epochtrace/internal/eval"
	"github.com/foxwhisper/epochtrace/internal/graph"
	"github.com/foxwhisper/epochtrace/internal/result"
	"github.com/foxwhisper/epochtrace/internal/schedule"
)

// rootParentKey is the distinguished child-index key for records that declare
// no parent: a first-generation record and a parentless fork are siblings.
const rootParentKey = ""

// Error categories registered during a run. These are the expected output
// vocabulary of the oracle, not process errors: expectations check for their
// presence by name. Once registered a category is never retracted.
const (
	ErrEpochForkDetected = "EPOCH_FORK_DETECTED"
	ErrHashChainBreak    = "HASH_CHAIN_BREAK"
)

// scheduledEvent is one stream entry after kind and fault parsing. Parsing
// happens once, before the fold; the fold never touches raw strings.
type scheduledEvent struct {
	corpus.Event
	kind   corpus.EventKind
	faults []corpus.Fault
}

// observedRecord is one processed issuance as the simulated network saw it.
type observedRecord struct {
	nodeID string
	hash   string
}

// childRecord is one processed issuance keyed by its claimed parent.
type childRecord struct {
	epochID int
	nodeID  string
	hash    string
}

// run is the locally-owned state of one simulation. A fresh run is built for
// every scenario; the indices start empty and die with the fold.
type run struct {
	scenario corpus.Scenario
	index    *graph.Index
	events   []scheduledEvent

	// observed maps epoch_id to the records seen for that epoch number, and
	// children maps parent key to the records claiming that parent. Both are
	// append-only; issued keeps the full multiset in schedule order so that
	// reconciliation never iterates a map.
	observed map[int][]observedRecord
	children map[string][]childRecord
	issued   []observedRecord

	detection       bool
	detectionTime   *int64
	forkCreatedTime *int64
	errs            errorSet
	messagesDropped int
	mergeTime       *int64
}

// Simulate runs one scenario to completion and returns its envelope.
//
// The returned error is always a *corpus.StructuralError: a corpus-class
// fault (duplicate node_id, unknown node_id reference, unrecognized event
// type or fault directive) that aborts this scenario only. Expectation
// mismatches are not errors; they land in the envelope's failures list.
//
// Simulate is pure with respect to its input: the scenario is never mutated,
// and identical input yields a bit-identical envelope.
func Simulate(s corpus.Scenario) (result.Envelope, error) {
	r, serr := prepare(s)
	if serr != nil {
		return result.Envelope{}, serr
	}

	for i := range r.events {
		ev := &r.events[i]
		switch ev.kind {
		case corpus.EventEpochIssue:
			if serr := r.processIssue(ev); serr != nil {
				return result.Envelope{}, serr
			}
		case corpus.EventReplayAttempt:
			// Collateral loss accounting is independent of fork state.
			r.messagesDropped += ev.Count
		case corpus.EventMerge:
			if r.mergeTime == nil {
				t := ev.T
				r.mergeTime = &t
			}
		}
	}

	env := r.buildEnvelope()
	if failures := eval.Evaluate(s.Expectations, env); len(failures) > 0 {
		env.Status = result.StatusFail
		env.Failures = failures
	}
	return env, nil
}

// Validate runs the structural checks of a scenario without simulating it:
// index construction, event-kind parsing, and fault parsing. Used by the
// validate command for fast corpus feedback.
func Validate(s corpus.Scenario) error {
	_, serr := prepare(s)
	if serr != nil {
		return serr
	}
	return nil
}

// prepare builds the graph index, parses every event against the closed
// vocabularies, and fixes the deterministic processing order.
func prepare(s corpus.Scenario) (*run, *corpus.StructuralError) {
	index, err := graph.NewIndex(s.Graph.Nodes)
	if err != nil {
		return nil, corpus.Structural(s.ScenarioID, "%v", err)
	}

	ordered := schedule.Order(s.EventStream)
	events := make([]scheduledEvent, 0, len(ordered))
	for _, ev := range ordered {
		kind, err := corpus.ParseEventKind(ev.Kind)
		if err != nil {
			return nil, corpus.Structural(s.ScenarioID, "%v", err)
		}
		faults, err := corpus.ParseFaults(ev.Faults)
		if err != nil {
			return nil, corpus.Structural(s.ScenarioID, "%v", err)
		}
		events = append(events, scheduledEvent{Event: ev, kind: kind, faults: faults})
	}

	return &run{
		scenario: s,
		index:    index,
		events:   events,
		observed: make(map[int][]observedRecord),
		children: make(map[string][]childRecord),
	}, nil
}

// processIssue folds one epoch_issue event into the run state: fork
// detection, chain-integrity checking, and index appends.
func (r *run) processIssue(ev *scheduledEvent) *corpus.StructuralError {
	// A dropped record never reaches observers. No index is mutated, so a
	// fork it would have revealed stays undetectable.
	if corpus.Drop(ev.faults) {
		return nil
	}

	node, ok := r.index.Resolve(ev.NodeID)
	if !ok {
		return corpus.Structural(r.scenario.ScenarioID, "event at t=%d references unknown node_id %q", ev.T, ev.NodeID)
	}

	forkDetected := r.detectFork(node)

	r.observed[node.EpochID] = append(r.observed[node.EpochID], observedRecord{nodeID: node.NodeID, hash: node.EAREHash})
	r.children[parentKey(node)] = append(r.children[parentKey(node)], childRecord{
		epochID: node.EpochID,
		nodeID:  node.NodeID,
		hash:    node.EAREHash,
	})
	r.issued = append(r.issued, observedRecord{nodeID: node.NodeID, hash: node.EAREHash})

	if forkDetected {
		if r.forkCreatedTime == nil {
			t := ev.T
			r.forkCreatedTime = &t
		}
		if r.detectionTime == nil {
			// The validator notices the fork only after any injected
			// validation lag has elapsed.
			t := ev.T + corpus.Delay(ev.faults)
			r.detectionTime = &t
			r.detection = true
			r.errs.add(ErrEpochForkDetected)
		}
	}

	r.checkChainIntegrity(node)
	return nil
}

// detectFork applies both divergence checks against the current indices.
//
// Same-epoch collision: a second, distinct hash appearing for an epoch
// number that already has observed records.
//
// Sibling divergence: the claimed parent already has children and none of
// them matches this record's (epoch_id, hash) pair — two records with
// different epoch numbers both continuing the same parent.
func (r *run) detectFork(node corpus.EpochNode) bool {
	entries := r.observed[node.EpochID]
	if len(entries) > 0 && !hashPresent(entries, node.EAREHash) {
		return true
	}

	siblings := r.children[parentKey(node)]
	if len(siblings) > 0 {
		for _, c := range siblings {
			if c.epochID == node.EpochID && c.hash == node.EAREHash {
				return false
			}
		}
		return true
	}
	return false
}

// checkChainIntegrity verifies the record's cryptographic reference to its
// stated predecessor. It runs for every processed issuance, independent of
// fork status: a single clean-looking branch can still break linkage.
func (r *run) checkChainIntegrity(node corpus.EpochNode) {
	if node.ParentID == nil || node.PreviousEpochHash == nil {
		return
	}
	parent, ok := r.index.Resolve(*node.ParentID)
	if ok && parent.EAREHash != *node.PreviousEpochHash {
		r.errs.add(ErrHashChainBreak)
	}
}

// buildEnvelope computes the metrics block and assembles the envelope.
func (r *run) buildEnvelope() result.Envelope {
	env := result.Envelope{
		ScenarioID:       r.scenario.ScenarioID,
		Language:         result.Language,
		Status:           result.StatusPass,
		Detection:        r.detection,
		DetectionMs:      r.detectionLatency(),
		ReconciliationMs: r.reconciliationLatency(),
		MessagesDropped:  r.messagesDropped,
		HealingActions:   []string{},
		Errors:           r.errs.list(),
		FalsePositives:   map[string]int{"warnings": 0, "hard_errors": 0},
		Notes:            []string{},
		Failures:         []string{},
	}

	if winner, ok := r.reconcile(); ok {
		env.WinningEpochID = &winner.EpochID
		env.WinningHash = &winner.EAREHash
	}
	return env
}

// detectionLatency measures the detection SLA under the scenario's chosen
// reference mode.
//
// "fork_observable" measures time-to-notice once the fork is observable,
// which is zero by construction since the reference is the detection time
// itself. The default measures end-to-end from the true moment of
// divergence, falling back to the detection time when no hash-divergence
// fork was ever recorded.
func (r *run) detectionLatency() *int64 {
	if r.detectionTime == nil {
		return nil
	}
	reference := r.detectionTime
	if r.scenario.Expectations.DetectionReference != corpus.DetectionReferenceObservable {
		if r.forkCreatedTime != nil {
			reference = r.forkCreatedTime
		}
	}
	delta := *r.detectionTime - *reference
	if delta < 0 {
		delta = 0
	}
	return &delta
}

// reconciliationLatency is the clamped gap from detection to the first merge
// event in the schedule, or nil when the timeline never merges.
func (r *run) reconciliationLatency() *int64 {
	if r.detectionTime == nil || r.mergeTime == nil {
		return nil
	}
	delta := *r.mergeTime - *r.detectionTime
	if delta < 0 {
		delta = 0
	}
	return &delta
}

// parentKey maps a record's claimed parent onto the child-index key space.
func parentKey(node corpus.EpochNode) string {
	if node.ParentID == nil {
		return rootParentKey
	}
	return *node.ParentID
}

func hashPresent(entries []observedRecord, hash string) bool {
	for _, e := range entries {
		if e.hash == hash {
			return true
		}
	}
	return false
}

// errorSet is a deduplicating string set that preserves insertion order for
// reporting. Membership is what expectations test; order is what the parity
// harness diffs.
type errorSet struct {
	order []string
	seen  map[string]bool
}

func (s *errorSet) add(category string) {
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	if s.seen[category] {
		return
	}
	s.seen[category] = true
	s.order = append(s.order, category)
}

func (s *errorSet) list() []string {
	if s.order == nil {
		return []string{}
	}
	return s.order
}

// String implements fmt.Stringer for diagnostics.
func (s *errorSet) String() string {
	return fmt.Sprintf("%v", s.list())
}
