package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foxwhisper/epochtrace/internal/corpus"
)

func TestOrderSortsByTime(t *testing.T) {
	events := []corpus.Event{
		{T: 30, Kind: "epoch_issue", NodeID: "c"},
		{T: 10, Kind: "epoch_issue", NodeID: "a"},
		{T: 20, Kind: "epoch_issue", NodeID: "b"},
	}

	ordered := Order(events)
	require.Len(t, ordered, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{ordered[0].NodeID, ordered[1].NodeID, ordered[2].NodeID})
}

func TestOrderSameTimeBreaksTiesByKindLabel(t *testing.T) {
	// At identical t, the event-type label decides:
	// epoch_issue < merge < replay_attempt lexicographically.
	events := []corpus.Event{
		{T: 5, Kind: "replay_attempt", Count: 1},
		{T: 5, Kind: "merge"},
		{T: 5, Kind: "epoch_issue", NodeID: "n1"},
	}

	ordered := Order(events)
	assert.Equal(t, "epoch_issue", ordered[0].Kind)
	assert.Equal(t, "merge", ordered[1].Kind)
	assert.Equal(t, "replay_attempt", ordered[2].Kind)
}

func TestOrderSameTimeSameKindKeepsDeclarationOrder(t *testing.T) {
	events := []corpus.Event{
		{T: 5, Kind: "epoch_issue", NodeID: "first"},
		{T: 5, Kind: "epoch_issue", NodeID: "second"},
		{T: 5, Kind: "epoch_issue", NodeID: "third"},
	}

	ordered := Order(events)
	assert.Equal(t, "first", ordered[0].NodeID)
	assert.Equal(t, "second", ordered[1].NodeID)
	assert.Equal(t, "third", ordered[2].NodeID)
}

func TestOrderDoesNotMutateInput(t *testing.T) {
	events := []corpus.Event{
		{T: 9, Kind: "merge"},
		{T: 1, Kind: "epoch_issue", NodeID: "n1"},
	}

	_ = Order(events)
	assert.Equal(t, int64(9), events[0].T, "input slice must stay in declaration order")
	assert.Equal(t, int64(1), events[1].T)
}

func TestOrderIsDeterministic(t *testing.T) {
	events := []corpus.Event{
		{T: 5, Kind: "merge"},
		{T: 5, Kind: "epoch_issue", NodeID: "x"},
		{T: 0, Kind: "replay_attempt", Count: 3},
		{T: 5, Kind: "epoch_issue", NodeID: "y"},
	}

	first := Order(events)
	second := Order(events)
	assert.Equal(t, first, second)
}
