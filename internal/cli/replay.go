package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/foxwhisper/epochtrace/internal/corpus"
	"github.com/foxwhisper/epochtrace/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Corpus   string
	Database string
	RunID    string // optional - defaults to the latest archived run
}

// ReplayScenarioResult holds the replay outcome for a single scenario.
type ReplayScenarioResult struct {
	ScenarioID    string `json:"scenario_id"`
	Deterministic bool   `json:"deterministic"`
	Detail        string `json:"detail,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	RunID            string                 `json:"run_id"`
	Scenarios        []ReplayScenarioResult `json:"scenarios"`
	AllDeterministic bool                   `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-run a corpus and verify determinism against an archived run",
		Long: `Re-simulate a corpus and compare fresh envelopes byte-for-byte against an
archived run.

Determinism is the whole contract of the oracle: the same corpus must
produce bit-identical envelopes on every run, on every machine, in every
build. Any divergence is reported per scenario.

Exit codes:
  0 - Every envelope matched the archive
  1 - Divergence detected (non-deterministic or behavior changed)
  2 - Command error (archive not found, corpus unreadable, etc.)

Examples:
  epochtrace replay --corpus ./corpora/epoch_forks.json --db ./runs.db
  epochtrace replay --corpus ./corpora/epoch_forks.json --db ./runs.db --run 0193c6e2-...`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Corpus, "corpus", "", "path to scenario corpus (required)")
	_ = cmd.MarkFlagRequired("corpus")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to run archive (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "archived run id (defaults to latest)")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open archive", err)
	}
	defer st.Close()

	run, err := resolveRun(ctx, st, opts.RunID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return WrapExitError(ExitCommandError, "no archived run to replay against", err)
		}
		return WrapExitError(ExitCommandError, "failed to resolve run", err)
	}

	archived, err := st.ReadEnvelopes(ctx, run.RunID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read archived envelopes", err)
	}

	// Fresh evaluation through the identical path the run command uses.
	scenarios, err := corpus.Load(opts.Corpus)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load corpus", err)
	}
	records, err := evaluateScenarios(scenarios, 1)
	if err != nil {
		return WrapExitError(ExitCommandError, "evaluation failed", err)
	}

	res := ReplayResult{RunID: run.RunID, AllDeterministic: true}
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		seen[rec.scenarioID] = true
		sr := ReplayScenarioResult{ScenarioID: rec.scenarioID, Deterministic: true}
		prev, ok := archived[rec.scenarioID]
		switch {
		case !ok:
			sr.Deterministic = false
			sr.Detail = "scenario missing from archived run"
		case !bytes.Equal(prev.Body, rec.body):
			sr.Deterministic = false
			sr.Detail = "envelope diverged from archive"
		}
		if !sr.Deterministic {
			res.AllDeterministic = false
		}
		res.Scenarios = append(res.Scenarios, sr)
	}
	for id := range archived {
		if !seen[id] {
			res.AllDeterministic = false
			res.Scenarios = append(res.Scenarios, ReplayScenarioResult{
				ScenarioID:    id,
				Deterministic: false,
				Detail:        "archived scenario missing from corpus",
			})
		}
	}
	// Corpus order for present scenarios, then orphaned archive entries;
	// a stable report regardless of archive map iteration.
	sort.SliceStable(res.Scenarios[len(records):], func(i, j int) bool {
		tail := res.Scenarios[len(records):]
		return tail[i].ScenarioID < tail[j].ScenarioID
	})

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
		if err := formatter.Success(res); err != nil {
			return err
		}
	} else {
		out := cmd.OutOrStdout()
		for _, sr := range res.Scenarios {
			if sr.Deterministic {
				fmt.Fprintf(out, "✓ %s\n", sr.ScenarioID)
			} else {
				fmt.Fprintf(out, "✗ %s: %s\n", sr.ScenarioID, sr.Detail)
			}
		}
	}

	if !res.AllDeterministic {
		return NewExitError(ExitFailure, "replay diverged from archived run")
	}
	return nil
}

func resolveRun(ctx context.Context, st *store.Store, runID string) (store.Run, error) {
	if runID != "" {
		return st.GetRun(ctx, runID)
	}
	return st.LatestRun(ctx)
}
