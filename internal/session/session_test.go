package session

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/danielpatrickdp/neuroadapt/internal/cycleerr"
	"github.com/danielpatrickdp/neuroadapt/internal/features"
	"github.com/danielpatrickdp/neuroadapt/internal/logging"
	"github.com/danielpatrickdp/neuroadapt/internal/outcome"
	"github.com/danielpatrickdp/neuroadapt/internal/signal"
	"github.com/danielpatrickdp/neuroadapt/internal/state"
	"github.com/danielpatrickdp/neuroadapt/internal/update"
)

// #region helpers
func testPipeline(t *testing.T) Pipeline {
	t.Helper()
	p, err := DefaultPipeline(nil)
	require.NoError(t, err)
	return p
}

func window(amp float64) signal.Buffer {
	n := features.DefaultConfig().BufferLength
	s := make([]float64, n)
	for i := range s {
		s[i] = amp * math.Sin(float64(i)*0.3)
	}
	return signal.NewBuffer(s)
}

func testInput() CycleInput {
	return CycleInput{
		Buffer:      window(0.4),
		Scalars:     features.Scalars{InputComplexity: 0.6, TypingSpeed: 0.5},
		Interaction: update.InteractionSummary{InputLength: 300, TypingSpeed: 0.7, Complexity: 0.9, WordCount: 70},
		Content:     outcome.ContentAnalysis{Clarity: 0.8, Complexity: 0.3, Structure: 0.6},
	}
}

func openStore(t *testing.T) *state.Store {
	t.Helper()
	s, err := state.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// #endregion helpers

// #region constructor-tests
func TestNew_InMemory(t *testing.T) {
	s, err := New("s1", Deps{Pipeline: testPipeline(t)})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, state.InitialTraits(), s.Snapshot())
	assert.NotEmpty(t, s.VersionID())
	assert.Zero(t, s.Cycles())
}

func TestNew_Rejects(t *testing.T) {
	_, err := New("", Deps{Pipeline: testPipeline(t)})
	assert.ErrorIs(t, err, cycleerr.ErrInvalidInput)

	_, err = New("s1", Deps{})
	assert.ErrorIs(t, err, cycleerr.ErrInvalidConfig)
}

func TestNew_StoreStartsAndResumes(t *testing.T) {
	store := openStore(t)
	p := testPipeline(t)

	first, err := New("s1", Deps{Pipeline: p, Store: store})
	require.NoError(t, err)
	initial := first.VersionID()

	_, err = first.RunCycle(context.Background(), testInput())
	require.NoError(t, err)
	_, err = first.RunCycle(context.Background(), testInput())
	require.NoError(t, err)

	resumed, err := New("s1", Deps{Pipeline: p, Store: store})
	require.NoError(t, err)
	assert.Equal(t, first.Snapshot(), resumed.Snapshot())
	assert.Equal(t, first.VersionID(), resumed.VersionID())
	assert.Equal(t, 2, resumed.Cycles())
	assert.NotEqual(t, initial, resumed.VersionID())
}

// #endregion constructor-tests

// #region run-cycle-tests
func TestRunCycle_UpdatesAndRecords(t *testing.T) {
	rec := &MemoryRecorder{}
	s, err := New("s1", Deps{Pipeline: testPipeline(t), Recorders: []Recorder{rec}})
	require.NoError(t, err)
	parent := s.VersionID()

	res, err := s.RunCycle(context.Background(), testInput())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Cycle)
	assert.Equal(t, res.Traits, s.Snapshot())
	assert.NotEqual(t, state.InitialTraits(), res.Traits)
	assert.Equal(t, "commit", res.Update.Decision.Action)
	assert.Equal(t, res.VersionID, s.VersionID())

	events := rec.Events()
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, parent, ev.Version.ParentID)
	assert.Equal(t, res.VersionID, ev.Version.VersionID)
	assert.Equal(t, "cycle", ev.TriggerType)
	assert.Equal(t, state.InitialTraits(), ev.Record.Before)
	assert.Equal(t, res.Traits, ev.Record.After)
	assert.Len(t, ev.Record.Samples, features.DefaultConfig().BufferLength)
}

func TestRunCycle_OutcomesUseUpdatedTraits(t *testing.T) {
	p := testPipeline(t)
	s, err := New("s1", Deps{Pipeline: p})
	require.NoError(t, err)

	in := testInput()
	res, err := s.RunCycle(context.Background(), in)
	require.NoError(t, err)

	want, err := p.Estimator.Estimate(&res.Features, &res.Traits, &in.Content)
	require.NoError(t, err)
	assert.Equal(t, want, res.Outcomes)
}

func TestRunCycle_InvalidBufferLeavesTraits(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	rec := &MemoryRecorder{}
	s, err := New("s1", Deps{Pipeline: testPipeline(t), Recorders: []Recorder{rec}, Logger: zap.New(core)})
	require.NoError(t, err)
	version := s.VersionID()

	in := testInput()
	in.Buffer = signal.NewBuffer([]float64{1, 2, 3})
	_, err = s.RunCycle(context.Background(), in)

	require.ErrorIs(t, err, cycleerr.ErrInvalidInput)
	assert.Equal(t, state.InitialTraits(), s.Snapshot())
	assert.Equal(t, version, s.VersionID())
	assert.Zero(t, s.Cycles())
	assert.Empty(t, rec.Events())
	require.Equal(t, 1, logs.FilterMessage("cycle aborted").Len())
	assert.Equal(t, "extract features", logs.All()[0].ContextMap()["stage"])
}

func TestRunCycle_RecorderFailureKeepsUpdate(t *testing.T) {
	rec := &MemoryRecorder{}
	rec.FailWith(errors.New("sink down"))
	s, err := New("s1", Deps{Pipeline: testPipeline(t), Recorders: []Recorder{rec}})
	require.NoError(t, err)

	res, err := s.RunCycle(context.Background(), testInput())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink down")
	assert.Equal(t, res.Traits, s.Snapshot())
	assert.Equal(t, 1, s.Cycles())
}

func TestRunCycle_CancelledContext(t *testing.T) {
	s, err := New("s1", Deps{Pipeline: testPipeline(t)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.RunCycle(ctx, testInput())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, s.Cycles())
}

func TestRunCycle_SerialisedUnderConcurrency(t *testing.T) {
	p := testPipeline(t)
	concurrent, err := New("c", Deps{Pipeline: p})
	require.NoError(t, err)
	sequential, err := New("q", Deps{Pipeline: p})
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := concurrent.RunCycle(context.Background(), testInput())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		_, err := sequential.RunCycle(context.Background(), testInput())
		require.NoError(t, err)
	}

	assert.Equal(t, n, concurrent.Cycles())
	assert.Equal(t, sequential.Snapshot(), concurrent.Snapshot())
}

func TestStoreRecorder_PersistsHistory(t *testing.T) {
	store := openStore(t)
	s, err := New("s1", Deps{Pipeline: testPipeline(t), Store: store})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := s.RunCycle(context.Background(), testInput())
		require.NoError(t, err)
	}

	hist, err := store.ListVersionsWithCycles("s1", 10)
	require.NoError(t, err)
	require.Len(t, hist, 4)
	assert.Equal(t, 3, hist[0].Cycle)
	assert.Equal(t, "initial", hist[3].Decision)
	assert.Equal(t, hist[1].VersionID, hist[0].ParentID)

	rec, err := logging.DecodeRecord(hist[0].RecordJSON)
	require.NoError(t, err)
	assert.Equal(t, hist[0].Traits, rec.After)
	assert.Equal(t, hist[1].Traits, rec.Before)

	cur, err := store.GetCurrent("s1")
	require.NoError(t, err)
	assert.Equal(t, s.Snapshot(), cur.Traits)
}

func failInserts(t *testing.T, store *state.Store, table string) (restore func()) {
	t.Helper()
	_, err := store.DB().Exec(`CREATE TRIGGER fail_` + table + ` BEFORE INSERT ON ` + table +
		` BEGIN SELECT RAISE(ABORT, 'disk full'); END`)
	require.NoError(t, err)
	return func() {
		_, err := store.DB().Exec(`DROP TRIGGER fail_` + table)
		require.NoError(t, err)
	}
}

func TestRunCycle_StoreFailureKeepsCommittedParent(t *testing.T) {
	store := openStore(t)
	s, err := New("s1", Deps{Pipeline: testPipeline(t), Store: store})
	require.NoError(t, err)
	initial := s.VersionID()

	restore := failInserts(t, store, "trait_versions")
	_, err = s.RunCycle(context.Background(), testInput())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, initial, s.VersionID())
	assert.Equal(t, 1, s.Cycles())
	restore()

	for i := 0; i < 3; i++ {
		res, err := s.RunCycle(context.Background(), testInput())
		require.NoError(t, err, "cycle %d after recovery", res.Cycle)
		assert.Equal(t, res.VersionID, s.VersionID())
	}

	cur, err := store.GetCurrent("s1")
	require.NoError(t, err)
	assert.Equal(t, s.VersionID(), cur.VersionID)
	assert.Equal(t, s.Snapshot(), cur.Traits)

	hist, err := store.ListVersionsWithCycles("s1", 10)
	require.NoError(t, err)
	require.Len(t, hist, 4)
	assert.Equal(t, initial, hist[2].ParentID)
	assert.Equal(t, 2, hist[2].Cycle)
}

func TestRunCycle_CycleLogFailureCommitsNothing(t *testing.T) {
	store := openStore(t)
	p := testPipeline(t)
	s, err := New("s1", Deps{Pipeline: p, Store: store})
	require.NoError(t, err)
	initial := s.VersionID()

	restore := failInserts(t, store, "cycle_log")
	res, err := s.RunCycle(context.Background(), testInput())
	require.Error(t, err)
	restore()

	_, err = store.GetVersion(res.VersionID)
	assert.Error(t, err, "version must not outlive its cycle row")
	cur, err := store.GetCurrent("s1")
	require.NoError(t, err)
	assert.Equal(t, initial, cur.VersionID)

	_, err = s.RunCycle(context.Background(), testInput())
	require.NoError(t, err)

	resumed, err := New("s1", Deps{Pipeline: p, Store: store})
	require.NoError(t, err)
	assert.Equal(t, 2, resumed.Cycles())
	assert.Equal(t, s.VersionID(), resumed.VersionID())
}

func TestNew_ResumesFromHighestLoggedCycle(t *testing.T) {
	store := openStore(t)
	p := testPipeline(t)
	s, err := New("s1", Deps{Pipeline: p, Store: store})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := s.RunCycle(context.Background(), testInput())
		require.NoError(t, err)
	}

	// a version committed outside a cycle, e.g. by a manual tool
	cur, err := store.GetCurrent("s1")
	require.NoError(t, err)
	manual := state.TraitRecord{VersionID: "manual", SessionID: "s1", ParentID: cur.VersionID,
		Traits: cur.Traits, CreatedAt: cur.CreatedAt.Add(time.Second)}
	require.NoError(t, store.Commit(manual))

	resumed, err := New("s1", Deps{Pipeline: p, Store: store})
	require.NoError(t, err)
	assert.Equal(t, 3, resumed.Cycles())
	assert.Equal(t, "manual", resumed.VersionID())
}

// #endregion run-cycle-tests

func TestReset(t *testing.T) {
	s, err := New("s1", Deps{Pipeline: testPipeline(t)})
	require.NoError(t, err)

	want := state.Traits{Curiosity: 0.1, Persistence: 0.2, Openness: 0.3, ProcessingSpeed: 0.4, LearningEfficiency: 0.5}
	require.NoError(t, s.Reset(want))
	assert.Equal(t, want, s.Snapshot())

	bad := want
	bad.Openness = 2
	assert.ErrorIs(t, s.Reset(bad), cycleerr.ErrInvalidState)
	assert.Equal(t, want, s.Snapshot())
}
