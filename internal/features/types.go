package features

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/neuroadapt/internal/cycleerr"
	"github.com/danielpatrickdp/neuroadapt/internal/state"
)

// #region feature-names

// FeatureName identifies one per-cycle feature.
type FeatureName string

const (
	AttentionIndex      FeatureName = "attention_index"
	LearningEfficiency  FeatureName = "learning_efficiency"
	CognitiveLoad       FeatureName = "cognitive_load"
	NeuralAdaptation    FeatureName = "neural_adaptation"
	FocusStability      FeatureName = "focus_stability"
	MemoryConsolidation FeatureName = "memory_consolidation"
)

// FeatureNames lists every feature in output order.
var FeatureNames = []FeatureName{
	AttentionIndex, LearningEfficiency, CognitiveLoad,
	NeuralAdaptation, FocusStability, MemoryConsolidation,
}

// #endregion feature-names

// #region feature-set

// FeatureSet is the per-cycle feature record. Each value lies in [0, cap].
type FeatureSet struct {
	AttentionIndex      float64 `json:"attention_index" yaml:"attention_index"`
	LearningEfficiency  float64 `json:"learning_efficiency" yaml:"learning_efficiency"`
	CognitiveLoad       float64 `json:"cognitive_load" yaml:"cognitive_load"`
	NeuralAdaptation    float64 `json:"neural_adaptation" yaml:"neural_adaptation"`
	FocusStability      float64 `json:"focus_stability" yaml:"focus_stability"`
	MemoryConsolidation float64 `json:"memory_consolidation" yaml:"memory_consolidation"`
}

// Get returns the named feature.
func (f FeatureSet) Get(name FeatureName) (float64, bool) {
	switch name {
	case AttentionIndex:
		return f.AttentionIndex, true
	case LearningEfficiency:
		return f.LearningEfficiency, true
	case CognitiveLoad:
		return f.CognitiveLoad, true
	case NeuralAdaptation:
		return f.NeuralAdaptation, true
	case FocusStability:
		return f.FocusStability, true
	case MemoryConsolidation:
		return f.MemoryConsolidation, true
	}
	return 0, false
}

func (f *FeatureSet) set(name FeatureName, v float64) {
	switch name {
	case AttentionIndex:
		f.AttentionIndex = v
	case LearningEfficiency:
		f.LearningEfficiency = v
	case CognitiveLoad:
		f.CognitiveLoad = v
	case NeuralAdaptation:
		f.NeuralAdaptation = v
	case FocusStability:
		f.FocusStability = v
	case MemoryConsolidation:
		f.MemoryConsolidation = v
	}
}

// #endregion feature-set

// #region scalars

// Scalars are the externally estimated behaviour inputs of a cycle.
// Out-of-range values are clamped, never rejected.
type Scalars struct {
	InputComplexity float64 `json:"input_complexity" yaml:"input_complexity"`
	TypingSpeed     float64 `json:"typing_speed" yaml:"typing_speed"`
}

// Stats are the intermediate statistics of the composite signal, each in [0, 1].
type Stats struct {
	Attention  float64 `json:"attention"`
	Stability  float64 `json:"stability"`
	Adaptation float64 `json:"adaptation"`
}

// #endregion scalars

// #region config

// Band is one canonical frequency band of the composite signal.
// Its amplitude is ComplexityGain*InputComplexity + TypingGain*TypingSpeed.
type Band struct {
	Name           string  `json:"name"`
	Freq           float64 `json:"freq"` // radians per sample
	ComplexityGain float64 `json:"complexity_gain"`
	TypingGain     float64 `json:"typing_gain"`
}

// FeatureRule is one row of the feature weight table.
type FeatureRule struct {
	Feature    FeatureName                 `json:"feature"`
	Cap        float64                     `json:"cap"`
	Attention  float64                     `json:"attention"`
	Stability  float64                     `json:"stability"`
	Adaptation float64                     `json:"adaptation"`
	Traits     map[state.TraitName]float64 `json:"traits"`
}

// Config holds the band shapes and the feature weight table.
type Config struct {
	BufferLength    int // expected window length; 0 accepts any non-empty window
	Bands           []Band
	JitterAmplitude float64 // peak-to-peak jitter added per sample
	TrendWindow     int     // samples per trend window
	TrendWindows    int     // consecutive window differences averaged
	Rules           []FeatureRule
}

// DefaultConfig returns the default band shapes and weight table.
func DefaultConfig() Config {
	return Config{
		BufferLength: 256,
		Bands: []Band{
			{Name: "alpha", Freq: 0.1, ComplexityGain: 0.3, TypingGain: 0.1},
			{Name: "beta", Freq: 0.2, ComplexityGain: 0.1, TypingGain: 0.4},
			{Name: "theta", Freq: 0.05, ComplexityGain: 0.4, TypingGain: 0},
			{Name: "gamma", Freq: 0.3, ComplexityGain: 0.1, TypingGain: 0.1},
		},
		JitterAmplitude: 0.05,
		TrendWindow:     10,
		TrendWindows:    4,
		Rules: []FeatureRule{
			{Feature: AttentionIndex, Cap: 0.95, Attention: 0.6, Stability: 0.2,
				Traits: map[state.TraitName]float64{state.Curiosity: 0.1, state.Persistence: 0.1}},
			{Feature: LearningEfficiency, Cap: 0.92, Attention: 0.3, Stability: 0.2, Adaptation: 0.2,
				Traits: map[state.TraitName]float64{state.LearningEfficiency: 0.2, state.ProcessingSpeed: 0.1}},
			{Feature: CognitiveLoad, Cap: 0.90, Attention: 0.4, Adaptation: 0.3,
				Traits: map[state.TraitName]float64{state.Persistence: 0.1}},
			{Feature: NeuralAdaptation, Cap: 0.93, Attention: 0.1, Adaptation: 0.6,
				Traits: map[state.TraitName]float64{state.Openness: 0.2, state.Curiosity: 0.1}},
			{Feature: FocusStability, Cap: 0.96, Attention: 0.1, Stability: 0.6,
				Traits: map[state.TraitName]float64{state.Persistence: 0.2}},
			{Feature: MemoryConsolidation, Cap: 0.94, Attention: 0.2, Stability: 0.3, Adaptation: 0.1,
				Traits: map[state.TraitName]float64{state.LearningEfficiency: 0.2, state.Persistence: 0.1}},
		},
	}
}

// Validate reports ErrInvalidConfig for an unusable table: every feature needs
// exactly one rule with a cap in (0, 1) and finite weights over known traits.
func (c Config) Validate() error {
	if c.BufferLength < 0 {
		return fmt.Errorf("buffer length %d: %w", c.BufferLength, cycleerr.ErrInvalidConfig)
	}
	if c.TrendWindow < 1 || c.TrendWindows < 1 {
		return fmt.Errorf("trend window %d x %d: %w", c.TrendWindow, c.TrendWindows, cycleerr.ErrInvalidConfig)
	}
	if !finite(c.JitterAmplitude) || c.JitterAmplitude < 0 {
		return fmt.Errorf("jitter amplitude %v: %w", c.JitterAmplitude, cycleerr.ErrInvalidConfig)
	}
	for _, b := range c.Bands {
		if !finite(b.Freq) || !finite(b.ComplexityGain) || !finite(b.TypingGain) {
			return fmt.Errorf("band %s: %w", b.Name, cycleerr.ErrInvalidConfig)
		}
	}

	seen := make(map[FeatureName]bool, len(c.Rules))
	for _, r := range c.Rules {
		if _, ok := (FeatureSet{}).Get(r.Feature); !ok {
			return fmt.Errorf("unknown feature %q: %w", r.Feature, cycleerr.ErrInvalidConfig)
		}
		if seen[r.Feature] {
			return fmt.Errorf("duplicate rule for %s: %w", r.Feature, cycleerr.ErrInvalidConfig)
		}
		seen[r.Feature] = true
		if !(r.Cap > 0 && r.Cap < 1) {
			return fmt.Errorf("feature %s cap %v: %w", r.Feature, r.Cap, cycleerr.ErrInvalidConfig)
		}
		if !finite(r.Attention) || !finite(r.Stability) || !finite(r.Adaptation) {
			return fmt.Errorf("feature %s weights: %w", r.Feature, cycleerr.ErrInvalidConfig)
		}
		for name, w := range r.Traits {
			if _, ok := (state.Traits{}).Get(name); !ok {
				return fmt.Errorf("feature %s: unknown trait %q: %w", r.Feature, name, cycleerr.ErrInvalidConfig)
			}
			if !finite(w) {
				return fmt.Errorf("feature %s trait %s weight: %w", r.Feature, name, cycleerr.ErrInvalidConfig)
			}
		}
	}
	for _, n := range FeatureNames {
		if !seen[n] {
			return fmt.Errorf("no rule for %s: %w", n, cycleerr.ErrInvalidConfig)
		}
	}
	return nil
}

// Cap returns the ceiling configured for a feature.
func (c Config) Cap(name FeatureName) float64 {
	for _, r := range c.Rules {
		if r.Feature == name {
			return r.Cap
		}
	}
	return 0
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// #endregion config
