package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/foxwhisper/epochtrace/internal/corpus"
	"github.com/foxwhisper/epochtrace/internal/result"
	"github.com/foxwhisper/epochtrace/internal/sim"
	"github.com/foxwhisper/epochtrace/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Corpus   string
	Scenario string // optional - single scenario_id filter
	Where    string // optional - expr filter over envelope fields
	Database string // optional - archive the run for later replay
	Parallel int
}

// envelopeRecord is one scenario's outcome, held until ordered emission.
type envelopeRecord struct {
	scenarioID string
	status     string
	body       []byte
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate a scenario corpus",
		Long: `Evaluate every scenario in a corpus through the deterministic fork oracle
and emit one JSON result envelope per line on stdout.

Scenarios share no state and are simulated in parallel; envelopes are always
emitted in corpus order, so output is byte-identical regardless of
parallelism. A scenario that aborts on a corpus-class fault (duplicate
node_id, unknown node_id reference, unrecognized event type) emits a
structural record with status "error" instead of a verdict and never blocks
sibling scenarios.

Exit codes:
  0 - All evaluated scenarios passed
  1 - One or more scenarios failed or aborted structurally
  2 - Command error (bad corpus, no matching scenario, etc.)

Examples:
  epochtrace run --corpus ./corpora/epoch_forks.json
  epochtrace run --corpus ./corpora/epoch_forks.json --scenario fork-basic-01
  epochtrace run --corpus ./corpora/epoch_forks.json --where 'detection && messages_dropped > 0'
  epochtrace run --corpus ./corpora/epoch_forks.json --db ./runs.db`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCorpus(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Corpus, "corpus", "", "path to scenario corpus (required)")
	_ = cmd.MarkFlagRequired("corpus")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "evaluate a single scenario_id only")
	cmd.Flags().StringVar(&opts.Where, "where", "", "emit only envelopes matching this expression")
	cmd.Flags().StringVar(&opts.Database, "db", "", "archive the run in this SQLite database")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", runtime.GOMAXPROCS(0), "max scenarios simulated concurrently")

	return cmd
}

func runCorpus(opts *RunOptions, cmd *cobra.Command) error {
	scenarios, err := corpus.Load(opts.Corpus)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load corpus", err)
	}

	selected := scenarios
	if opts.Scenario != "" {
		selected = nil
		for _, s := range scenarios {
			if s.ScenarioID == opts.Scenario {
				selected = append(selected, s)
			}
		}
	}
	if len(selected) == 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("no scenario matches %q", opts.Scenario))
	}

	var filter *vm.Program
	if opts.Where != "" {
		filter, err = expr.Compile(opts.Where, expr.AsBool(), expr.AllowUndefinedVariables())
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --where expression", err)
		}
	}

	records, err := evaluateScenarios(selected, opts.Parallel)
	if err != nil {
		return WrapExitError(ExitCommandError, "evaluation failed", err)
	}

	if opts.Database != "" {
		if err := archiveRun(cmd.Context(), opts, records); err != nil {
			return WrapExitError(ExitCommandError, "failed to archive run", err)
		}
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, rec := range records {
		if rec.status != result.StatusPass {
			failed++
		}
		if filter != nil {
			keep, err := matchWhere(filter, rec.body)
			if err != nil {
				return WrapExitError(ExitCommandError, "evaluate --where expression", err)
			}
			if !keep {
				continue
			}
		}
		fmt.Fprintf(out, "%s\n", rec.body)
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenario(s) failed", failed, len(records)))
	}
	return nil
}

// evaluateScenarios simulates scenarios with bounded parallelism, collecting
// records into a slice indexed by corpus position to keep emission order
// fixed. Structural aborts become per-scenario records, never goroutine
// errors: a broken scenario must not cancel its siblings.
func evaluateScenarios(scenarios []corpus.Scenario, parallel int) ([]envelopeRecord, error) {
	if parallel < 1 {
		parallel = 1
	}

	records := make([]envelopeRecord, len(scenarios))
	var g errgroup.Group
	g.SetLimit(parallel)

	for i, s := range scenarios {
		i, s := i, s
		g.Go(func() error {
			env, err := sim.Simulate(s)
			if err != nil {
				var serr *corpus.StructuralError
				if !errors.As(err, &serr) {
					return fmt.Errorf("scenario %s: %w", s.ScenarioID, err)
				}
				slog.Warn("scenario aborted on structural fault",
					"scenario_id", s.ScenarioID,
					"fault", serr.Reason,
				)
				body, encErr := result.EncodeJSON(result.NewStructuralReport(s.ScenarioID, serr.Reason))
				if encErr != nil {
					return encErr
				}
				records[i] = envelopeRecord{scenarioID: s.ScenarioID, status: result.StatusError, body: body}
				return nil
			}

			body, encErr := result.EncodeJSON(env)
			if encErr != nil {
				return encErr
			}
			slog.Debug("scenario evaluated",
				"scenario_id", s.ScenarioID,
				"status", env.Status,
				"detection", env.Detection,
			)
			records[i] = envelopeRecord{scenarioID: s.ScenarioID, status: env.Status, body: body}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

// matchWhere applies the compiled --where program to one envelope line.
// The envelope is exposed to the expression as its JSON field names.
func matchWhere(prog *vm.Program, body []byte) (bool, error) {
	var env map[string]any
	if err := json.Unmarshal(body, &env); err != nil {
		return false, fmt.Errorf("decode envelope for --where: %w", err)
	}
	out, err := expr.Run(prog, env)
	if err != nil {
		return false, err
	}
	keep, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("--where expression returned %T, want bool", out)
	}
	return keep, nil
}

// archiveRun records the evaluated envelopes under a fresh run id.
func archiveRun(ctx context.Context, opts *RunOptions, records []envelopeRecord) error {
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing archive", "error", closeErr)
		}
	}()

	runID := uuid.NewString()
	if err := st.CreateRun(ctx, runID, opts.Corpus); err != nil {
		return err
	}
	for _, rec := range records {
		if err := st.WriteEnvelope(ctx, runID, rec.scenarioID, rec.status, rec.body); err != nil {
			return err
		}
	}

	slog.Info("run archived", "run_id", runID, "scenarios", len(records), "db", opts.Database)
	return nil
}
