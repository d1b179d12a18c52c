package features

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/danielpatrickdp/neuroadapt/internal/cycleerr"
	"github.com/danielpatrickdp/neuroadapt/internal/signal"
	"github.com/danielpatrickdp/neuroadapt/internal/state"
)

// #region helpers

func newExtractor(t *testing.T, jitter Jitter) *Extractor {
	t.Helper()
	e, err := NewExtractor(DefaultConfig(), jitter)
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	return e
}

func zeros(n int) signal.Buffer {
	return signal.NewBuffer(make([]float64, n))
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-12
}

// #endregion helpers

// #region zero-window-tests

func TestExtract_ZeroWindowGivesTraitBaseline(t *testing.T) {
	e := newExtractor(t, nil)

	fs, stats, err := e.Extract(zeros(256), Scalars{}, state.InitialTraits())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if stats != (Stats{}) {
		t.Fatalf("expected zero stats, got %+v", stats)
	}

	want := FeatureSet{
		AttentionIndex:      0.1*0.5 + 0.1*0.5,
		LearningEfficiency:  0.2*0.5 + 0.1*0.5,
		CognitiveLoad:       0.1 * 0.5,
		NeuralAdaptation:    0.2*0.5 + 0.1*0.5,
		FocusStability:      0.2 * 0.5,
		MemoryConsolidation: 0.2*0.5 + 0.1*0.5,
	}
	for _, n := range FeatureNames {
		got, _ := fs.Get(n)
		exp, _ := want.Get(n)
		if !approx(got, exp) {
			t.Errorf("%s = %f, want %f", n, got, exp)
		}
	}
}

func TestExtract_ZeroWindowZeroTraits(t *testing.T) {
	e := newExtractor(t, nil)

	fs, _, err := e.Extract(zeros(256), Scalars{}, state.Traits{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if fs != (FeatureSet{}) {
		t.Fatalf("expected all-zero features, got %+v", fs)
	}
}

// #endregion zero-window-tests

// #region error-tests

func TestExtract_EmptyBuffer(t *testing.T) {
	e := newExtractor(t, nil)
	_, _, err := e.Extract(signal.NewBuffer(nil), Scalars{}, state.InitialTraits())
	if !errors.Is(err, cycleerr.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestExtract_WrongLength(t *testing.T) {
	e := newExtractor(t, nil)
	_, _, err := e.Extract(zeros(128), Scalars{}, state.InitialTraits())
	if !errors.Is(err, cycleerr.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestExtract_NaNSample(t *testing.T) {
	e := newExtractor(t, nil)
	samples := make([]float64, 256)
	samples[17] = math.NaN()
	_, _, err := e.Extract(signal.NewBuffer(samples), Scalars{}, state.InitialTraits())
	if !errors.Is(err, cycleerr.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestExtract_OutOfRangeScalarsAreClamped(t *testing.T) {
	e := newExtractor(t, nil)

	hi, _, err := e.Extract(zeros(256), Scalars{InputComplexity: 7, TypingSpeed: 3}, state.InitialTraits())
	if err != nil {
		t.Fatalf("expected clamping, got error %v", err)
	}
	one, _, _ := e.Extract(zeros(256), Scalars{InputComplexity: 1, TypingSpeed: 1}, state.InitialTraits())
	if hi != one {
		t.Fatalf("out-of-range scalars not clamped: %+v vs %+v", hi, one)
	}

	lo, _, _ := e.Extract(zeros(256), Scalars{InputComplexity: -2, TypingSpeed: -1}, state.InitialTraits())
	zero, _, _ := e.Extract(zeros(256), Scalars{}, state.InitialTraits())
	if lo != zero {
		t.Fatalf("negative scalars not clamped: %+v vs %+v", lo, zero)
	}
}

// #endregion error-tests

// #region bound-tests

func TestExtract_FeaturesWithinCaps(t *testing.T) {
	e := newExtractor(t, rand.New(rand.NewPCG(3, 4)))
	cfg := DefaultConfig()
	rng := rand.New(rand.NewPCG(1, 2))
	full := state.Traits{Curiosity: 1, Persistence: 1, Openness: 1, ProcessingSpeed: 1, LearningEfficiency: 1}

	for trial := 0; trial < 200; trial++ {
		samples := make([]float64, 256)
		scale := rng.Float64() * 20
		for i := range samples {
			samples[i] = (rng.Float64() - 0.5) * scale
		}
		sc := Scalars{InputComplexity: rng.Float64(), TypingSpeed: rng.Float64()}

		fs, stats, err := e.Extract(signal.NewBuffer(samples), sc, full)
		if err != nil {
			t.Fatalf("trial %d: %v", trial, err)
		}
		for _, v := range []float64{stats.Attention, stats.Stability, stats.Adaptation} {
			if v < 0 || v > 1 {
				t.Fatalf("trial %d: stat out of range %+v", trial, stats)
			}
		}
		for _, n := range FeatureNames {
			v, _ := fs.Get(n)
			if v < 0 || v > cfg.Cap(n) {
				t.Fatalf("trial %d: %s = %f outside [0, %f]", trial, n, v, cfg.Cap(n))
			}
		}
	}
}

func TestExtract_SaturatesAtCaps(t *testing.T) {
	e := newExtractor(t, nil)
	samples := make([]float64, 256)
	for i := range samples {
		samples[i] = 5
	}
	full := state.Traits{Curiosity: 1, Persistence: 1, Openness: 1, ProcessingSpeed: 1, LearningEfficiency: 1}

	fs, _, err := e.Extract(signal.NewBuffer(samples), Scalars{}, full)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if fs.AttentionIndex != 0.95 {
		t.Errorf("attention_index = %f, want cap 0.95", fs.AttentionIndex)
	}
	// attention 1, stability 1, adaptation 0: 0.4 + 0.1 stays under the 0.90 cap
	if !approx(fs.CognitiveLoad, 0.5) {
		t.Errorf("cognitive_load = %f, want 0.5", fs.CognitiveLoad)
	}
}

// #endregion bound-tests

// #region determinism-tests

func TestExtract_DeterministicWithoutJitter(t *testing.T) {
	e := newExtractor(t, nil)
	buf := signal.NewBuffer(sineWindow(256))
	sc := Scalars{InputComplexity: 0.7, TypingSpeed: 0.4}

	first, firstStats, _ := e.Extract(buf, sc, state.InitialTraits())
	for i := 0; i < 10; i++ {
		again, stats, _ := e.Extract(buf, sc, state.InitialTraits())
		if again != first || stats != firstStats {
			t.Fatalf("call %d differs: %+v vs %+v", i, again, first)
		}
	}
}

func TestExtract_DeterministicWithSeededJitter(t *testing.T) {
	a := newExtractor(t, rand.New(rand.NewPCG(42, 7)))
	b := newExtractor(t, rand.New(rand.NewPCG(42, 7)))
	buf := signal.NewBuffer(sineWindow(256))
	sc := Scalars{InputComplexity: 0.3, TypingSpeed: 0.9}

	for i := 0; i < 5; i++ {
		fa, _, _ := a.Extract(buf, sc, state.InitialTraits())
		fb, _, _ := b.Extract(buf, sc, state.InitialTraits())
		if fa != fb {
			t.Fatalf("cycle %d: seeded extractors diverged", i)
		}
	}
}

func sineWindow(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.2 * math.Sin(float64(i)*0.15)
	}
	return out
}

// #endregion determinism-tests

// #region statistic-tests

func TestStability_ConstantSignalIsFullyStable(t *testing.T) {
	xs := []float64{0.5, 0.5, 0.5, 0.5}
	if got := stability(xs, meanAbs(xs)); got != 1 {
		t.Fatalf("expected 1, got %f", got)
	}
}

func TestStability_AlternatingSignalFloorsAtZero(t *testing.T) {
	xs := []float64{1, -1, 1, -1, 1, -1}
	if got := stability(xs, meanAbs(xs)); got != 0 {
		t.Fatalf("expected 0, got %f", got)
	}
}

func TestTrend_StepUp(t *testing.T) {
	xs := make([]float64, 20)
	for i := 10; i < 20; i++ {
		xs[i] = 0.4
	}
	if got := trend(xs, 10, 4); !approx(got, 0.4) {
		t.Fatalf("expected 0.4, got %f", got)
	}
}

func TestTrend_TooShort(t *testing.T) {
	if got := trend(make([]float64, 15), 10, 4); got != 0 {
		t.Fatalf("expected 0 with one full window, got %f", got)
	}
}

func TestTrend_UsesTrailingWindowsOnly(t *testing.T) {
	// a spike far before the last five windows must not count
	xs := make([]float64, 100)
	xs[0] = 100
	if got := trend(xs, 10, 4); got != 0 {
		t.Fatalf("expected 0, got %f", got)
	}
}

// #endregion statistic-tests

// #region config-tests

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	missing := DefaultConfig()
	missing.Rules = missing.Rules[1:]
	if err := missing.Validate(); !errors.Is(err, cycleerr.ErrInvalidConfig) {
		t.Errorf("missing rule: expected ErrInvalidConfig, got %v", err)
	}

	for _, c := range []float64{1.2, 1, 0} {
		badCap := DefaultConfig()
		badCap.Rules[0].Cap = c
		if err := badCap.Validate(); !errors.Is(err, cycleerr.ErrInvalidConfig) {
			t.Errorf("cap %v: expected ErrInvalidConfig, got %v", c, err)
		}
	}

	badTrait := DefaultConfig()
	badTrait.Rules[0].Traits = map[state.TraitName]float64{"mood": 0.1}
	if err := badTrait.Validate(); !errors.Is(err, cycleerr.ErrInvalidConfig) {
		t.Errorf("unknown trait: expected ErrInvalidConfig, got %v", err)
	}

	dup := DefaultConfig()
	dup.Rules = append(dup.Rules, dup.Rules[0])
	if err := dup.Validate(); !errors.Is(err, cycleerr.ErrInvalidConfig) {
		t.Errorf("duplicate rule: expected ErrInvalidConfig, got %v", err)
	}
}

// #endregion config-tests
