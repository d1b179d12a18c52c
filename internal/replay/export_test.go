package replay

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/danielpatrickdp/neuroadapt/internal/session"
	"github.com/danielpatrickdp/neuroadapt/internal/state"
)

func TestExportSession_ReplaysToSameDecisions(t *testing.T) {
	store, err := state.NewStore(":memory:")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	pipeline, err := session.DefaultPipeline(nil)
	if err != nil {
		t.Fatalf("DefaultPipeline: %v", err)
	}
	live, err := session.New("s1", session.Deps{Pipeline: pipeline, Store: store})
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}

	cycles := makeCycles(6)
	for i, c := range cycles {
		c.Interaction.Elapsed = time.Duration(i*30) * time.Second
		if _, err := live.RunCycle(context.Background(), session.CycleInput{
			Buffer: c.Buffer, Scalars: c.Scalars, Interaction: c.Interaction, Content: c.Content,
		}); err != nil {
			t.Fatalf("RunCycle %d: %v", i, err)
		}
	}

	f, err := ExportSession(store, "s1", 4)
	if err != nil {
		t.Fatalf("ExportSession: %v", err)
	}
	if len(f.Cycles) != 4 || f.Cycles[0].Cycle != 3 || f.Cycles[3].Cycle != 6 {
		t.Fatalf("expected cycles 3-6, got %d starting at %d", len(f.Cycles), f.Cycles[0].Cycle)
	}

	// round trip through disk like the CLI does
	path := filepath.Join(t.TempDir(), "export.json")
	if err := WriteFixture(path, f); err != nil {
		t.Fatalf("WriteFixture: %v", err)
	}
	loaded, err := LoadFixture(path)
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}

	replayCycles, err := loaded.ToCycles()
	if err != nil {
		t.Fatalf("ToCycles: %v", err)
	}
	results, err := Replay(loaded.StartTraits, replayCycles, loaded.ToReplayConfig())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	for i, expected := range loaded.ExpectedResults {
		if results[i].Action != expected.Decision {
			t.Errorf("cycle %d: expected %s, got %s", expected.Cycle, expected.Decision, results[i].Action)
		}
		if results[i].Outcomes.OptimalReviewTime != expected.ReviewHours {
			t.Errorf("cycle %d: expected review %d, got %d", expected.Cycle, expected.ReviewHours, results[i].Outcomes.OptimalReviewTime)
		}
	}

	final := Summarize(results, loaded.StartTraits).FinalTraits
	approx := cmpopts.EquateApprox(0, 1e-12)
	if diff := cmp.Diff(live.Snapshot(), final, approx); diff != "" {
		t.Errorf("replayed traits differ (-live +replay):\n%s", diff)
	}
	if math.IsNaN(final.Curiosity) {
		t.Fatal("NaN trait")
	}
}

func TestExportSession_Errors(t *testing.T) {
	store, err := state.NewStore(":memory:")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	if _, err := ExportSession(store, "nobody", 4); err == nil {
		t.Error("expected error for session without cycles")
	}
	if _, err := ExportSession(store, "nobody", 0); err == nil {
		t.Error("expected error for non-positive last")
	}
}
