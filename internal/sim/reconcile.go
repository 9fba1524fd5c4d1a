package sim

import (
	"sort"

	"github.com/foxwhisper/epochtrace/internal/corpus"
)

// reconcile selects the single canonical epoch record from everything the
// simulated network actually saw, forked branches included.
//
// The fork-choice sort is a 4-key composite, most significant first:
//
//  1. depth, descending — longest chain wins
//  2. epoch_id, descending — higher epoch number wins at equal depth
//  3. timestamp_ms, ascending — first mover wins at equal epoch, so a
//     late-arriving fork cannot displace an established branch
//  4. eare_hash, descending lexicographic — total-order backstop so every
//     implementation converges on the same winner under an exact tie
//
// The comparator is total, so the winner is independent of the enumeration
// order of the candidates. Input is the ordered issuance list, never a map
// walk. Empty input yields no winner.
func (r *run) reconcile() (corpus.EpochNode, bool) {
	if len(r.issued) == 0 {
		return corpus.EpochNode{}, false
	}

	// Depths are pure functions of the static graph; compute each once.
	depths := make(map[string]int, len(r.issued))
	for _, rec := range r.issued {
		if _, done := depths[rec.nodeID]; !done {
			depths[rec.nodeID] = r.index.Depth(rec.nodeID)
		}
	}

	candidates := make([]observedRecord, len(r.issued))
	copy(candidates, r.issued)
	sort.SliceStable(candidates, func(i, j int) bool {
		ni, _ := r.index.Resolve(candidates[i].nodeID)
		nj, _ := r.index.Resolve(candidates[j].nodeID)
		if di, dj := depths[ni.NodeID], depths[nj.NodeID]; di != dj {
			return di > dj
		}
		if ni.EpochID != nj.EpochID {
			return ni.EpochID > nj.EpochID
		}
		if ni.TimestampMs != nj.TimestampMs {
			return ni.TimestampMs < nj.TimestampMs
		}
		return ni.EAREHash > nj.EAREHash
	})

	winner, _ := r.index.Resolve(candidates[0].nodeID)
	return winner, true
}
