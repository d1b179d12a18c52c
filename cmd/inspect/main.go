package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/neuroadapt/internal/logging"
	"github.com/danielpatrickdp/neuroadapt/internal/state"
)

// #region main
var inspectFlags struct {
	db       string
	session  string
	last     int
	version  string
	rollback string
	jsonOut  bool
}

var rootCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Inspect trait versions recorded by the controller",
	Long: "Without --session, lists every session with an active version.\n" +
		"With --session, lists its most recent versions. --version shows one version in detail.",
	Args: cobra.NoArgs,
	RunE: runInspect,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&inspectFlags.db, "db", "neuroadapt.db", "path to the SQLite store")
	f.StringVar(&inspectFlags.session, "session", "", "session to list versions for")
	f.IntVar(&inspectFlags.last, "last", 20, "show N most recent versions")
	f.StringVar(&inspectFlags.version, "version", "", "show single version detail")
	f.StringVar(&inspectFlags.rollback, "rollback", "", "make this version the session's active one (requires --session)")
	f.BoolVar(&inspectFlags.jsonOut, "json", false, "output as JSON instead of table")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runInspect(cmd *cobra.Command, _ []string) error {
	store, err := state.NewStore(inspectFlags.db)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	switch {
	case inspectFlags.rollback != "":
		if inspectFlags.session == "" {
			return fmt.Errorf("--rollback requires --session")
		}
		if err := store.Rollback(inspectFlags.session, inspectFlags.rollback); err != nil {
			return err
		}
		fmt.Fprintf(out, "session %s now at %s\n", inspectFlags.session, inspectFlags.rollback)
		return nil
	case inspectFlags.version != "":
		return runDetailMode(out, store, inspectFlags.version, inspectFlags.jsonOut)
	case inspectFlags.session != "":
		return runListMode(out, store, inspectFlags.session, inspectFlags.last, inspectFlags.jsonOut)
	default:
		return runSessionsMode(out, store, inspectFlags.jsonOut)
	}
}

// #endregion main

// #region sessions-mode

type sessionRow struct {
	SessionID string       `json:"session_id"`
	VersionID string       `json:"version_id"`
	CreatedAt string       `json:"created_at"`
	Traits    state.Traits `json:"traits"`
}

func runSessionsMode(w io.Writer, store *state.Store, jsonOut bool) error {
	ids, err := store.ListSessions()
	if err != nil {
		return err
	}
	rows := make([]sessionRow, 0, len(ids))
	for _, id := range ids {
		rec, err := store.GetCurrent(id)
		if err != nil {
			return fmt.Errorf("session %s: %w", id, err)
		}
		rows = append(rows, sessionRow{
			SessionID: id,
			VersionID: rec.VersionID,
			CreatedAt: rec.CreatedAt.Format("2006-01-02T15:04:05Z"),
			Traits:    rec.Traits,
		})
	}

	if jsonOut {
		return printJSON(w, rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(w, "no sessions found")
		return nil
	}
	fmt.Fprintf(w, "%-20s  %-10s  %s\n", "Session", "Version", "Updated")
	fmt.Fprintf(w, "%-20s+-%-10s+-%s\n", "--------------------", "----------", "--------------------")
	for _, r := range rows {
		fmt.Fprintf(w, "%-20s  %-10s  %s\n", r.SessionID, shortID(r.VersionID), r.CreatedAt)
	}
	return nil
}

// #endregion sessions-mode

// #region list-mode

type listRow struct {
	VersionID string       `json:"version_id"`
	Cycle     int          `json:"cycle"`
	Decision  string       `json:"decision"`
	Reason    string       `json:"reason,omitempty"`
	DeltaNorm *float64     `json:"delta_norm,omitempty"`
	Review    *int         `json:"optimal_review_time,omitempty"`
	Traits    state.Traits `json:"traits"`
	CreatedAt string       `json:"created_at"`
}

func runListMode(w io.Writer, store *state.Store, sessionID string, last int, jsonOut bool) error {
	versions, err := store.ListVersionsWithCycles(sessionID, last)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		fmt.Fprintf(w, "no versions found for session %s\n", sessionID)
		return nil
	}

	// store returns DESC, reverse for chronological
	rows := make([]listRow, len(versions))
	for i, v := range versions {
		r := listRow{
			VersionID: v.VersionID,
			Cycle:     v.Cycle,
			Decision:  v.Decision,
			Reason:    v.Reason,
			Traits:    v.Traits,
			CreatedAt: v.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
		if rec, ok := parseRecord(v.RecordJSON); ok {
			dn := rec.DeltaNorm
			rt := rec.Outcomes.OptimalReviewTime
			r.DeltaNorm, r.Review = &dn, &rt
		}
		rows[len(versions)-1-i] = r
	}

	if jsonOut {
		return printJSON(w, rows)
	}

	fmt.Fprintf(w, "%-10s  %5s  %-8s  %8s  %6s  %s\n", "Version", "Cycle", "Decision", "Delta", "Review", "Time")
	fmt.Fprintf(w, "%-10s+-%5s+-%-8s+-%8s+-%6s+-%s\n", "----------", "-----", "--------", "--------", "------", "--------------------")
	for _, r := range rows {
		delta, review := "-", "-"
		if r.DeltaNorm != nil {
			delta = fmt.Sprintf("%.4f", *r.DeltaNorm)
			review = fmt.Sprintf("%dh", *r.Review)
		}
		fmt.Fprintf(w, "%-10s  %5d  %-8s  %8s  %6s  %s\n",
			shortID(r.VersionID), r.Cycle, r.Decision, delta, review, r.CreatedAt)
	}

	fmt.Fprintf(w, "\nTraits (latest):\n")
	printTraits(w, rows[len(rows)-1].Traits)
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	VersionID string               `json:"version_id"`
	SessionID string               `json:"session_id"`
	ParentID  string               `json:"parent_id"`
	CreatedAt string               `json:"created_at"`
	Traits    state.Traits         `json:"traits"`
	Metrics   json.RawMessage      `json:"metrics,omitempty"`
	Record    *logging.CycleRecord `json:"record,omitempty"`
}

func runDetailMode(w io.Writer, store *state.Store, versionID string, jsonOut bool) error {
	rec, err := store.GetVersion(versionID)
	if err != nil {
		return err
	}
	out := detailOutput{
		VersionID: rec.VersionID,
		SessionID: rec.SessionID,
		ParentID:  rec.ParentID,
		CreatedAt: rec.CreatedAt.Format("2006-01-02T15:04:05Z"),
		Traits:    rec.Traits,
	}
	if rec.MetricsJSON != "" {
		out.Metrics = json.RawMessage(rec.MetricsJSON)
	}

	// The cycle record lives in cycle_log; find it through the session listing.
	versions, err := store.ListVersionsWithCycles(rec.SessionID, -1)
	if err != nil {
		return err
	}
	for _, v := range versions {
		if v.VersionID != versionID {
			continue
		}
		if cr, ok := parseRecord(v.RecordJSON); ok {
			out.Record = &cr
		}
		break
	}

	if jsonOut {
		return printJSON(w, out)
	}

	fmt.Fprintf(w, "Version:  %s\n", out.VersionID)
	fmt.Fprintf(w, "Session:  %s\n", out.SessionID)
	fmt.Fprintf(w, "Parent:   %s\n", out.ParentID)
	fmt.Fprintf(w, "Created:  %s\n", out.CreatedAt)

	fmt.Fprintf(w, "\nTraits:\n")
	printTraits(w, out.Traits)

	if r := out.Record; r != nil {
		fmt.Fprintf(w, "\nCycle %d: %s", r.Cycle, r.Decision)
		if r.Reason != "" {
			fmt.Fprintf(w, " (%s)", r.Reason)
		}
		fmt.Fprintf(w, "\n  Delta Norm:   %.4f\n", r.DeltaNorm)
		fmt.Fprintf(w, "  Attention:    %.4f\n", r.Features.AttentionIndex)
		fmt.Fprintf(w, "  Load:         %.4f\n", r.Features.CognitiveLoad)
		fmt.Fprintf(w, "  Comprehension %.4f\n", r.Outcomes.ComprehensionScore)
		fmt.Fprintf(w, "  Retention     %.4f\n", r.Outcomes.RetentionProbability)
		fmt.Fprintf(w, "  Review in     %dh\n", r.Outcomes.OptimalReviewTime)
	}
	return nil
}

// #endregion detail-mode

// #region output

func parseRecord(s string) (logging.CycleRecord, bool) {
	if s == "" {
		return logging.CycleRecord{}, false
	}
	rec, err := logging.DecodeRecord(s)
	if err != nil {
		return logging.CycleRecord{}, false
	}
	return rec, true
}

func printTraits(w io.Writer, t state.Traits) {
	for _, n := range state.TraitNames {
		v, _ := t.Get(n)
		fmt.Fprintf(w, "  %-20s %.4f\n", n, v)
	}
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
