package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Run Command Tests
// ============================================================================

func runLines(buf *bytes.Buffer) []string {
	out := strings.TrimRight(buf.String(), "\n")
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

func TestRunMissingCorpusFlag(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
	assert.Contains(t, err.Error(), "corpus")
}

func TestRunPassingCorpus(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--corpus", filepath.Join("testdata", "corpus_ok.json")})

	err := cmd.Execute()
	require.NoError(t, err)

	lines := runLines(buf)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"scenario_id":"linear-chain"`)
	assert.Contains(t, lines[1], `"scenario_id":"fork-same-epoch"`)
	for _, line := range lines {
		assert.Contains(t, line, `"status":"pass"`)
	}
}

func TestRunEnvelopeFields(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{
		"--corpus", filepath.Join("testdata", "corpus_ok.json"),
		"--scenario", "fork-same-epoch",
	})

	err := cmd.Execute()
	require.NoError(t, err)

	lines := runLines(buf)
	require.Len(t, lines, 1)

	var env map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &env))
	assert.Equal(t, true, env["detection"])
	assert.Equal(t, float64(0), env["detection_ms"])
	assert.Equal(t, float64(15), env["reconciliation_ms"])
	assert.Equal(t, float64(3), env["winning_epoch_id"])
	assert.Equal(t, "h1", env["winning_hash"])
	assert.Equal(t, float64(3), env["messages_dropped"])
	assert.Equal(t, []any{"EPOCH_FORK_DETECTED"}, env["errors"])
	assert.Equal(t, []any{}, env["failures"])
}

func TestRunScenarioFilterNoMatch(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{
		"--corpus", filepath.Join("testdata", "corpus_ok.json"),
		"--scenario", "no-such-scenario",
	})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no scenario matches")
}

func TestRunWhereFilter(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{
		"--corpus", filepath.Join("testdata", "corpus_ok.json"),
		"--where", "detection && messages_dropped > 0",
	})

	err := cmd.Execute()
	require.NoError(t, err)

	lines := runLines(buf)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"scenario_id":"fork-same-epoch"`)
}

func TestRunWhereFilterInvalidExpression(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{
		"--corpus", filepath.Join("testdata", "corpus_ok.json"),
		"--where", "detection &&",
	})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid --where expression")
}

func TestRunFailingCorpus(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--corpus", filepath.Join("testdata", "corpus_fail.json")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "1 of 1 scenario(s) failed")

	lines := runLines(buf)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"status":"fail"`)
	assert.Contains(t, lines[0], "detection_mismatch")
	assert.Contains(t, lines[0], "missing_detection_ms")
}

func TestRunStructuralFaultDoesNotBlockSiblings(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--corpus", filepath.Join("testdata", "corpus_structural.json")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	lines := runLines(buf)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"scenario_id":"ghost-ref"`)
	assert.Contains(t, lines[0], `"status":"error"`)
	assert.Contains(t, lines[0], "ghost")
	assert.Contains(t, lines[1], `"scenario_id":"still-runs"`)
	assert.Contains(t, lines[1], `"status":"pass"`)
}

func TestRunNonExistentCorpus(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--corpus", "/nonexistent/corpus.json"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load corpus")
}

func TestRunParallelOutputIsStable(t *testing.T) {
	run := func(parallel string) string {
		buf := &bytes.Buffer{}
		rootOpts := &RootOptions{Format: "text"}
		cmd := NewRunCommand(rootOpts)
		cmd.SetOut(buf)
		cmd.SetErr(buf)
		cmd.SetArgs([]string{
			"--corpus", filepath.Join("testdata", "corpus_ok.json"),
			"--parallel", parallel,
		})
		require.NoError(t, cmd.Execute())
		return buf.String()
	}

	serial := run("1")
	for i := 0; i < 5; i++ {
		assert.Equal(t, serial, run("8"))
	}
}
