package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/neuroadapt/internal/replay"
	"github.com/danielpatrickdp/neuroadapt/internal/state"
)

// #region main
var exportFlags struct {
	db      string
	session string
	last    int
	out     string
}

var rootCmd = &cobra.Command{
	Use:   "fixture-export",
	Short: "Export a session's recorded cycles as a replay fixture",
	Long: "fixture-export --db path/to/neuroadapt.db --session ID --out fixture.yaml [--last N]\n" +
		"The output format follows the file extension: .yaml/.yml writes YAML, anything else JSON.",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		n, err := run(exportFlags.db, exportFlags.session, exportFlags.last, exportFlags.out)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d cycles to %s\n", n, exportFlags.out)
		return nil
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&exportFlags.db, "db", "", "path to the SQLite store")
	f.StringVar(&exportFlags.session, "session", "", "session to export")
	f.IntVar(&exportFlags.last, "last", 4, "number of most recent cycles to export")
	f.StringVar(&exportFlags.out, "out", "", "output fixture path")
	_ = rootCmd.MarkFlagRequired("db")
	_ = rootCmd.MarkFlagRequired("session")
	_ = rootCmd.MarkFlagRequired("out")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region extract

func run(dbPath, sessionID string, last int, outPath string) (int, error) {
	store, err := state.NewStore(dbPath)
	if err != nil {
		return 0, fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	fixture, err := replay.ExportSession(store, sessionID, last)
	if err != nil {
		return 0, err
	}
	if err := replay.WriteFixture(outPath, fixture); err != nil {
		return 0, err
	}
	return len(fixture.Cycles), nil
}

// #endregion extract
