// Package graph indexes a scenario's epoch nodes and answers ancestry
// queries over parent_id chains.
package graph

import (
	"fmt"

	"github.com/foxwhisper/epochtrace/internal/corpus"
)

// Index is the node_id → EpochNode lookup for one scenario. It is built once
// per simulation run and never mutated afterwards.
type Index struct {
	nodes map[string]corpus.EpochNode
}

// NewIndex builds the lookup, rejecting duplicate node_ids. A duplicate is a
// corpus error fatal to the scenario, not a detection outcome.
func NewIndex(nodes []corpus.EpochNode) (*Index, error) {
	m := make(map[string]corpus.EpochNode, len(nodes))
	for _, n := range nodes {
		if _, dup := m[n.NodeID]; dup {
			return nil, fmt.Errorf("duplicate node_id %q", n.NodeID)
		}
		m[n.NodeID] = n
	}
	return &Index{nodes: m}, nil
}

// Resolve returns the node for id, if present.
func (ix *Index) Resolve(id string) (corpus.EpochNode, bool) {
	n, ok := ix.nodes[id]
	return n, ok
}

// Len returns the number of indexed nodes.
func (ix *Index) Len() int {
	return len(ix.nodes)
}

// Depth returns the number of parent hops from the node to its chain root.
//
// The walk is iterative with an explicit seen-set: a cycle or a dangling
// parent_id stops the traversal and returns the depth accumulated so far.
// Depth stays total over malformed or adversarial corpora; it never errors
// and never loops.
func (ix *Index) Depth(nodeID string) int {
	depth := 0
	seen := make(map[string]bool)
	cur, ok := ix.nodes[nodeID]
	for ok && cur.ParentID != nil {
		if seen[cur.NodeID] {
			break
		}
		seen[cur.NodeID] = true
		depth++
		cur, ok = ix.nodes[*cur.ParentID]
	}
	return depth
}
