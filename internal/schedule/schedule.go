// Package schedule produces the single deterministic total order over a
// scenario's heterogeneous event stream.
package schedule

import (
	"sort"

	"github.com/foxwhisper/epochtrace/internal/corpus"
)

// Order sorts a copy of the event stream into the canonical processing
// sequence: ascending t, then event-type label (lexicographic), then original
// declaration order.
//
// The label tiebreak is load-bearing for cross-implementation parity: two
// same-t events of different kinds would otherwise be processed in whatever
// order each language's default sort left them in. Declaration order falls
// out of sort stability. The input slice is never mutated.
func Order(events []corpus.Event) []corpus.Event {
	out := make([]corpus.Event, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].T != out[j].T {
			return out[i].T < out[j].T
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}
