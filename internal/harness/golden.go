// Package harness provides golden-file helpers for envelope conformance
// tests. Golden files are the recorded source of truth for the oracle's
// output; any byte-level drift in an envelope is a parity break, even when
// the verdict is unchanged.
package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/foxwhisper/epochtrace/internal/corpus"
	"github.com/foxwhisper/epochtrace/internal/result"
	"github.com/foxwhisper/epochtrace/internal/sim"
)

// SimulateWithGolden runs one scenario and compares its serialized envelope
// against testdata/golden/<name>.golden in the calling package.
//
// Regenerate golden files with:
//
//	go test ./... -update
func SimulateWithGolden(t *testing.T, name string, s corpus.Scenario) {
	t.Helper()

	env, err := sim.Simulate(s)
	if err != nil {
		t.Fatalf("simulate %s: %v", s.ScenarioID, err)
	}
	AssertGolden(t, name, env)
}

// AssertGolden compares an already-computed envelope against a golden file.
func AssertGolden(t *testing.T, name string, env result.Envelope) {
	t.Helper()

	body, err := result.EncodeJSON(env)
	if err != nil {
		t.Fatalf("encode envelope %s: %v", env.ScenarioID, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, body)
}
