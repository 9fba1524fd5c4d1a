package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/foxwhisper/epochtrace/internal/corpus"
	"github.com/foxwhisper/epochtrace/internal/sim"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Corpus string
}

// ScenarioFault describes one structurally invalid scenario.
type ScenarioFault struct {
	ScenarioID string `json:"scenario_id"`
	Fault      string `json:"fault"`
}

// ValidationResult holds validation results for a corpus.
type ValidationResult struct {
	Valid     bool            `json:"valid"`
	Scenarios int             `json:"scenarios"`
	Faults    []ScenarioFault `json:"faults,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a corpus without simulating it",
		Long: `Validate a scenario corpus without running any simulation.

Checks the corpus against the embedded schema, then runs the structural
checks each scenario would face at simulation time: duplicate node_ids,
unrecognized event types, and malformed fault directives.

Exit codes:
  0 - Corpus is valid
  1 - One or more scenarios are structurally invalid
  2 - Command error (unreadable corpus, schema violation, etc.)

Examples:
  epochtrace validate --corpus ./corpora/epoch_forks.json
  epochtrace validate --corpus ./corpora/epoch_forks.yaml --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Corpus, "corpus", "", "path to scenario corpus (required)")
	_ = cmd.MarkFlagRequired("corpus")

	return cmd
}

func runValidate(opts *ValidateOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	scenarios, err := corpus.Load(opts.Corpus)
	if err != nil {
		_ = formatter.Error("E_CORPUS", err.Error(), nil)
		return WrapExitError(ExitCommandError, "corpus rejected", err)
	}
	formatter.VerboseLog("Loaded %d scenario(s) from %s", len(scenarios), opts.Corpus)

	res := ValidationResult{Valid: true, Scenarios: len(scenarios)}
	for _, s := range scenarios {
		if err := sim.Validate(s); err != nil {
			fault := err.Error()
			var serr *corpus.StructuralError
			if errors.As(err, &serr) {
				fault = serr.Reason
			}
			res.Valid = false
			res.Faults = append(res.Faults, ScenarioFault{ScenarioID: s.ScenarioID, Fault: fault})
		}
	}

	if res.Valid {
		if opts.Format == "json" {
			return formatter.Success(res)
		}
		fmt.Fprintf(formatter.Writer, "✓ %d scenario(s) valid\n", res.Scenarios)
		return nil
	}

	if opts.Format == "json" {
		_ = formatter.Success(res)
	} else {
		fmt.Fprintln(formatter.Writer, "✗ Validation failed")
		fmt.Fprintln(formatter.Writer)
		for _, f := range res.Faults {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n", f.ScenarioID, f.Fault)
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d structurally invalid scenario(s)", len(res.Faults)))
}
