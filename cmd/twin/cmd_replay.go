package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/burnout-twin/burnout-twin/internal/replay"
	"github.com/burnout-twin/burnout-twin/internal/state"
)

var (
	replayFromDB bool
	replayLast   int
)

var replayCmd = &cobra.Command{
	Use:   "replay [fixture.json]",
	Short: "Re-run recorded judge replies through sanitize and merge",
	Long: `Replays a fixture file, or with --db the last N update rows of the
provenance log, and compares every step with what was recorded. Exits
non-zero when any step diverges.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().BoolVar(&replayFromDB, "db", false, "replay from the configured database instead of a fixture")
	replayCmd.Flags().IntVar(&replayLast, "last", 50, "number of update rows to replay with --db")
}

func runReplay(cmd *cobra.Command, args []string) error {
	var (
		f   *replay.Fixture
		err error
	)
	switch {
	case replayFromDB && len(args) == 0:
		f, err = fixtureFromDB(replayLast)
	case !replayFromDB && len(args) == 1:
		f, err = replay.LoadFixture(args[0])
	default:
		return errors.New("usage: twin replay fixture.json | twin replay --db [--last N]")
	}
	if err != nil {
		return err
	}

	results, mismatches := replay.RunFixture(f)
	out := cmd.OutOrStdout()
	printComparison(out, results, f.ExpectedResults)

	final := f.StartState.ToPersona()
	if n := len(results); n > 0 {
		final.Vitals = results[n-1].Vitals
		final.Version = results[n-1].Version
	}
	s := replay.Summarize(results, final)
	fmt.Fprintf(out, "\nSummary: %d steps, %d commit, %d no_op, %d error, final version %d\n",
		s.TotalSteps, s.Commits, s.NoOps, s.Errors, s.FinalState.Version)

	if len(mismatches) > 0 {
		for _, m := range mismatches {
			fmt.Fprintln(cmd.ErrOrStderr(), m)
		}
		return fmt.Errorf("%d mismatches", len(mismatches))
	}
	return nil
}

func fixtureFromDB(last int) (*replay.Fixture, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := state.NewStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	defer store.Close()
	return replay.ExportFixture(store, last)
}

// printComparison writes one row per step with the expected and replayed action.
func printComparison(w io.Writer, results []replay.ReplayResult, expected []replay.FixtureExpectedResult) {
	fmt.Fprintf(w, "%-12s| %-10s| %-10s| %-8s| %s\n", "Step", "Expected", "Replayed", "Version", "Match")
	fmt.Fprintf(w, "%-12s+%-11s+%-11s+%-9s+%s\n",
		"------------", "-----------", "-----------", "---------", "------")

	for i, r := range results {
		exp := ""
		if i < len(expected) {
			exp = expected[i].Action
		}
		match := "DIFF"
		if exp == r.Action {
			match = "OK"
		}
		fmt.Fprintf(w, "%-12s| %-10s| %-10s| %-8d| %s\n", shortID(r.StepID), exp, r.Action, r.Version, match)
	}
}
