package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/neuroadapt/internal/replay"
	"github.com/danielpatrickdp/neuroadapt/internal/state"
)

// #region main
var replayFlags struct {
	db      string
	session string
	last    int
	fixture string
}

var errDiverged = errors.New("replay diverged")

var rootCmd = &cobra.Command{
	Use:   "replay",
	Short: "Re-run recorded cycles and compare decisions",
	Long: "replay --fixture path/to/fixture.yaml\n" +
		"replay --db path/to/neuroadapt.db --session ID",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runReplay,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&replayFlags.fixture, "fixture", "", "path to fixture JSON or YAML (fixture mode)")
	f.StringVar(&replayFlags.db, "db", "", "path to the SQLite store (DB mode)")
	f.StringVar(&replayFlags.session, "session", "", "session to replay (DB mode)")
	f.IntVar(&replayFlags.last, "last", 50, "replay the N most recent cycles (DB mode)")
	rootCmd.MarkFlagsMutuallyExclusive("fixture", "db")
	rootCmd.MarkFlagsOneRequired("fixture", "db")
	rootCmd.MarkFlagsRequiredTogether("db", "session")
}

func main() {
	err := rootCmd.Execute()
	switch {
	case err == nil:
	case errors.Is(err, errDiverged):
		os.Exit(1)
	default:
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

func runReplay(cmd *cobra.Command, _ []string) error {
	var (
		f   *replay.Fixture
		err error
	)
	if replayFlags.fixture != "" {
		f, err = replay.LoadFixture(replayFlags.fixture)
	} else {
		f, err = exportFromDB(replayFlags.db, replayFlags.session, replayFlags.last)
	}
	if err != nil {
		return err
	}
	return replayFixture(cmd.OutOrStdout(), f)
}

func exportFromDB(dbPath, sessionID string, last int) (*replay.Fixture, error) {
	store, err := state.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	defer store.Close()
	return replay.ExportSession(store, sessionID, last)
}

// #endregion main

// #region replay-fixture

func replayFixture(w io.Writer, f *replay.Fixture) error {
	cycles, err := f.ToCycles()
	if err != nil {
		return err
	}
	results, err := replay.Replay(f.StartTraits, cycles, f.ToReplayConfig())
	if err != nil {
		return err
	}

	expected := make(map[int]replay.FixtureExpectedResult, len(f.ExpectedResults))
	for _, e := range f.ExpectedResults {
		expected[e.Cycle] = e
	}
	if printComparison(w, results, expected) > 0 {
		return errDiverged
	}

	s := replay.Summarize(results, f.StartTraits)
	fmt.Fprintf(w, "\nCycles: %d | commit %d | no_op %d | error %d\n", s.TotalCycles, s.Commits, s.NoOps, s.Errors)
	return nil
}

// #endregion replay-fixture

// #region output

// printComparison outputs a comparison table and returns the number of
// diverging cycles. Cycles without an expectation are shown but not counted.
func printComparison(w io.Writer, results []replay.Result, expected map[int]replay.FixtureExpectedResult) int {
	fmt.Fprintf(w, "%-6s| %-10s| %-10s| %-8s| %s\n", "Cycle", "Expected", "Replayed", "Review", "Match")
	fmt.Fprintf(w, "%-6s+%-11s+%-11s+%-9s+%s\n", "------", "-----------", "-----------", "---------", "------")

	diverge := 0
	for _, r := range results {
		exp, ok := expected[r.Cycle]
		if !ok {
			fmt.Fprintf(w, "%-6d| %-10s| %-10s| %-8s| %s\n", r.Cycle, "-", r.Action, reviewLabel(r), "-")
			continue
		}
		match := "OK"
		if !resultMatches(exp, r) {
			match = "DIFF"
			diverge++
		}
		fmt.Fprintf(w, "%-6d| %-10s| %-10s| %-8s| %s\n", r.Cycle, exp.Decision, r.Action, reviewLabel(r), match)
	}

	fmt.Fprintf(w, "\nSummary: %d expected, %d diverge\n", len(expected), diverge)
	return diverge
}

// resultMatches compares decisions, and review hours when the fixture pins them.
func resultMatches(exp replay.FixtureExpectedResult, r replay.Result) bool {
	if exp.Decision != r.Action {
		return false
	}
	return exp.ReviewHours == 0 || exp.ReviewHours == r.Outcomes.OptimalReviewTime
}

func reviewLabel(r replay.Result) string {
	if r.Action == "error" {
		return "-"
	}
	return fmt.Sprintf("%dh", r.Outcomes.OptimalReviewTime)
}

// #endregion output
