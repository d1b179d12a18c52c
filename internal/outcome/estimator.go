package outcome

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/neuroadapt/internal/cycleerr"
	"github.com/danielpatrickdp/neuroadapt/internal/features"
	"github.com/danielpatrickdp/neuroadapt/internal/state"
)

// #region estimator
// Estimator combines features, traits and content into outcome scores.
type Estimator struct {
	config Config
}

// NewEstimator creates an estimator after validating its table.
func NewEstimator(config Config) (*Estimator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Estimator{config: config}, nil
}

// Config returns the estimator's table.
func (e *Estimator) Config() Config {
	return e.config
}

// Estimate is a pure function of its inputs. A nil input fails with
// ErrInvalidInput. Content fields are clamped to [0, 1].
func (e *Estimator) Estimate(fs *features.FeatureSet, tr *state.Traits, ca *ContentAnalysis) (OutcomeSet, error) {
	switch {
	case fs == nil:
		return OutcomeSet{}, fmt.Errorf("estimate outcomes: missing features: %w", cycleerr.ErrInvalidInput)
	case tr == nil:
		return OutcomeSet{}, fmt.Errorf("estimate outcomes: missing traits: %w", cycleerr.ErrInvalidInput)
	case ca == nil:
		return OutcomeSet{}, fmt.Errorf("estimate outcomes: missing content analysis: %w", cycleerr.ErrInvalidInput)
	}

	content := ContentAnalysis{
		Clarity:    clamp(ca.Clarity, 1),
		Complexity: clamp(ca.Complexity, 1),
		Structure:  clamp(ca.Structure, 1),
	}

	var out OutcomeSet
	for _, r := range e.config.Rules {
		var v float64
		for _, t := range r.Terms {
			x, _ := resolve(t.Source, *fs, *tr, content)
			v += t.Weight * x
		}
		out.set(r.Outcome, clamp(v, r.Cap))
	}
	out.OptimalReviewTime = ReviewHours(e.config.BaseReviewHours, fs.LearningEfficiency, fs.MemoryConsolidation)
	return out, nil
}

// #endregion estimator

// #region review-time
// ReviewHours returns round(base * (2 - learningEfficiency) * (2 - memoryConsolidation)).
// The result is deliberately not clamped.
func ReviewHours(base, learningEfficiency, memoryConsolidation float64) int {
	return int(math.Round(base * (2 - learningEfficiency) * (2 - memoryConsolidation)))
}

// #endregion review-time

// #region helpers
// clamp restricts v to [0, ceiling]. NaN maps to 0.
func clamp(v, ceiling float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > ceiling {
		return ceiling
	}
	return v
}

// #endregion helpers
