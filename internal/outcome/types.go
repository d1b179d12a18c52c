package outcome

import (
	"fmt"
	"math"
	"strings"

	"github.com/danielpatrickdp/neuroadapt/internal/cycleerr"
	"github.com/danielpatrickdp/neuroadapt/internal/features"
	"github.com/danielpatrickdp/neuroadapt/internal/state"
)

// #region content-analysis

// ContentAnalysis describes the learning material, each field in [0, 1].
type ContentAnalysis struct {
	Clarity    float64 `json:"clarity" yaml:"clarity"`
	Complexity float64 `json:"complexity" yaml:"complexity"`
	Structure  float64 `json:"structure" yaml:"structure"`
}

// #endregion content-analysis

// #region outcome-set

// OutcomeName identifies one capped outcome score.
type OutcomeName string

const (
	ComprehensionScore   OutcomeName = "comprehension_score"
	RetentionProbability OutcomeName = "retention_probability"
	LearningVelocity     OutcomeName = "learning_velocity"
	CognitiveResonance   OutcomeName = "cognitive_resonance"
)

// OutcomeNames lists every capped outcome in output order.
var OutcomeNames = []OutcomeName{ComprehensionScore, RetentionProbability, LearningVelocity, CognitiveResonance}

// OutcomeSet holds one cycle's outcome estimates. OptimalReviewTime is a whole
// number of hours and is not capped.
type OutcomeSet struct {
	ComprehensionScore   float64 `json:"comprehension_score" yaml:"comprehension_score"`
	RetentionProbability float64 `json:"retention_probability" yaml:"retention_probability"`
	OptimalReviewTime    int     `json:"optimal_review_time" yaml:"optimal_review_time"`
	LearningVelocity     float64 `json:"learning_velocity" yaml:"learning_velocity"`
	CognitiveResonance   float64 `json:"cognitive_resonance" yaml:"cognitive_resonance"`
}

// Get returns a capped outcome by name.
func (o OutcomeSet) Get(name OutcomeName) (float64, bool) {
	switch name {
	case ComprehensionScore:
		return o.ComprehensionScore, true
	case RetentionProbability:
		return o.RetentionProbability, true
	case LearningVelocity:
		return o.LearningVelocity, true
	case CognitiveResonance:
		return o.CognitiveResonance, true
	}
	return 0, false
}

func (o *OutcomeSet) set(name OutcomeName, v float64) {
	switch name {
	case ComprehensionScore:
		o.ComprehensionScore = v
	case RetentionProbability:
		o.RetentionProbability = v
	case LearningVelocity:
		o.LearningVelocity = v
	case CognitiveResonance:
		o.CognitiveResonance = v
	}
}

// #endregion outcome-set

// #region sources

// Source names an input of an outcome term: "feature.<name>", "trait.<name>",
// or one of the content sources.
type Source string

const (
	ContentClarity    Source = "content.clarity"
	ContentStructure  Source = "content.structure"
	ContentSimplicity Source = "content.simplicity" // 1 - complexity
)

// FeatureSource returns the source reading a feature.
func FeatureSource(name features.FeatureName) Source {
	return Source("feature." + string(name))
}

// TraitSource returns the source reading a trait.
func TraitSource(name state.TraitName) Source {
	return Source("trait." + string(name))
}

// resolve reads a source from the cycle inputs.
func resolve(src Source, fs features.FeatureSet, tr state.Traits, ca ContentAnalysis) (float64, bool) {
	switch src {
	case ContentClarity:
		return ca.Clarity, true
	case ContentStructure:
		return ca.Structure, true
	case ContentSimplicity:
		return 1 - ca.Complexity, true
	}
	kind, name, ok := strings.Cut(string(src), ".")
	if !ok {
		return 0, false
	}
	switch kind {
	case "feature":
		return fs.Get(features.FeatureName(name))
	case "trait":
		return tr.Get(state.TraitName(name))
	}
	return 0, false
}

// #endregion sources

// #region config

// Term is one weighted input of an outcome.
type Term struct {
	Source Source  `json:"source"`
	Weight float64 `json:"weight"`
}

// Rule is one row of the outcome table.
type Rule struct {
	Outcome OutcomeName `json:"outcome"`
	Cap     float64     `json:"cap"`
	Terms   []Term      `json:"terms"`
}

// Config holds the outcome table and the review-time base.
type Config struct {
	BaseReviewHours float64
	Rules           []Rule
}

// DefaultConfig returns the default outcome table.
func DefaultConfig() Config {
	return Config{
		BaseReviewHours: 24,
		Rules: []Rule{
			{Outcome: ComprehensionScore, Cap: 0.98, Terms: []Term{
				{FeatureSource(features.AttentionIndex), 0.3},
				{FeatureSource(features.LearningEfficiency), 0.25},
				{ContentClarity, 0.2},
				{ContentStructure, 0.15},
				{ContentSimplicity, 0.1},
				{TraitSource(state.Openness), 0.05},
			}},
			{Outcome: RetentionProbability, Cap: 0.95, Terms: []Term{
				{FeatureSource(features.MemoryConsolidation), 0.4},
				{FeatureSource(features.FocusStability), 0.2},
				{TraitSource(state.Persistence), 0.2},
				{ContentStructure, 0.2},
			}},
			{Outcome: LearningVelocity, Cap: 0.97, Terms: []Term{
				{FeatureSource(features.LearningEfficiency), 0.3},
				{TraitSource(state.ProcessingSpeed), 0.3},
				{FeatureSource(features.NeuralAdaptation), 0.2},
				{ContentClarity, 0.25},
			}},
			{Outcome: CognitiveResonance, Cap: 0.96, Terms: []Term{
				{FeatureSource(features.NeuralAdaptation), 0.3},
				{TraitSource(state.Curiosity), 0.3},
				{FeatureSource(features.AttentionIndex), 0.2},
				{ContentSimplicity, 0.1},
				{ContentClarity, 0.1},
			}},
		},
	}
}

// Validate reports ErrInvalidConfig unless every outcome has one rule with a
// cap in (0, 1] and finite weights over resolvable sources.
func (c Config) Validate() error {
	if math.IsNaN(c.BaseReviewHours) || math.IsInf(c.BaseReviewHours, 0) || c.BaseReviewHours < 0 {
		return fmt.Errorf("base review hours %v: %w", c.BaseReviewHours, cycleerr.ErrInvalidConfig)
	}
	seen := make(map[OutcomeName]bool, len(c.Rules))
	for _, r := range c.Rules {
		if _, ok := (OutcomeSet{}).Get(r.Outcome); !ok {
			return fmt.Errorf("unknown outcome %q: %w", r.Outcome, cycleerr.ErrInvalidConfig)
		}
		if seen[r.Outcome] {
			return fmt.Errorf("duplicate rule for %s: %w", r.Outcome, cycleerr.ErrInvalidConfig)
		}
		seen[r.Outcome] = true
		if !(r.Cap > 0 && r.Cap <= 1) {
			return fmt.Errorf("outcome %s cap %v: %w", r.Outcome, r.Cap, cycleerr.ErrInvalidConfig)
		}
		for _, t := range r.Terms {
			if _, ok := resolve(t.Source, features.FeatureSet{}, state.Traits{}, ContentAnalysis{}); !ok {
				return fmt.Errorf("outcome %s: unknown source %q: %w", r.Outcome, t.Source, cycleerr.ErrInvalidConfig)
			}
			if math.IsNaN(t.Weight) || math.IsInf(t.Weight, 0) {
				return fmt.Errorf("outcome %s source %s weight: %w", r.Outcome, t.Source, cycleerr.ErrInvalidConfig)
			}
		}
	}
	for _, n := range OutcomeNames {
		if !seen[n] {
			return fmt.Errorf("no rule for %s: %w", n, cycleerr.ErrInvalidConfig)
		}
	}
	return nil
}

// Cap returns the ceiling configured for an outcome.
func (c Config) Cap(name OutcomeName) float64 {
	for _, r := range c.Rules {
		if r.Outcome == name {
			return r.Cap
		}
	}
	return 0
}

// #endregion config
