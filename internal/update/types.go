package update

import (
	"fmt"
	"math"
	"time"

	"github.com/danielpatrickdp/neuroadapt/internal/cycleerr"
	"github.com/danielpatrickdp/neuroadapt/internal/state"
)

// #region interaction-summary
// InteractionSummary describes the learner's behaviour during one cycle.
type InteractionSummary struct {
	InputLength int           `json:"input_length" yaml:"input_length"`
	TypingSpeed float64       `json:"typing_speed" yaml:"typing_speed"` // [0,1]
	Complexity  float64       `json:"complexity" yaml:"complexity"`     // [0,1]
	Elapsed     time.Duration `json:"elapsed" yaml:"elapsed"`           // session time so far
	WordCount   int           `json:"word_count" yaml:"word_count"`
}

// #endregion interaction-summary

// #region fields
// Field names one normalised observation that can feed a trait's influence.
type Field string

const (
	FieldComplexity  Field = "complexity"   // InteractionSummary.Complexity
	FieldTypingSpeed Field = "typing_speed" // InteractionSummary.TypingSpeed
	FieldLongInput   Field = "long_input"   // 1 when WordCount > LongInputWords
	FieldInputLength Field = "input_length" // InputLength / InputLengthNorm, capped at 1
	FieldSessionTime Field = "session_time" // Elapsed / SessionHorizon, capped at 1
	FieldBias        Field = "bias"         // constant 1
)

// Fields lists every observation field in evaluation order.
var Fields = []Field{FieldComplexity, FieldTypingSpeed, FieldLongInput, FieldInputLength, FieldSessionTime, FieldBias}

// #endregion fields

// #region decision
// Decision records what the update did.
type Decision struct {
	Action string `json:"action"` // "commit" | "no_op"
	Reason string `json:"reason"`
}

// #endregion decision

// #region metrics
// Metrics captures telemetry from one trait update.
type Metrics struct {
	DeltaNorm   float64            `json:"delta_norm"`
	TraitDeltas map[string]float64 `json:"trait_deltas"`
	Influence   map[string]float64 `json:"influence"`
}

// #endregion metrics

// #region update-config
// TraitRule is one row of the adaptation table: the influence weights of a
// trait and the fraction of the gap to the influence closed per cycle.
type TraitRule struct {
	Trait   state.TraitName   `json:"trait"`
	Rate    float64           `json:"rate"`
	Weights map[Field]float64 `json:"weights"`
}

// Config holds the adaptation table and the observation normalisers.
type Config struct {
	LongInputWords  int           // word count above which long_input is 1
	InputLengthNorm int           // input length mapping to input_length 1
	SessionHorizon  time.Duration // elapsed time mapping to session_time 1
	Rules           []TraitRule
}

// DefaultConfig returns the default adaptation table.
//
//	trait                rate   influence
//	curiosity            0.05   0.3 complexity + 0.2 long_input
//	persistence          0.03   0.5 session_time + 0.3 input_length
//	openness             0.04   0.4 complexity + 0.2 input_length + 0.2
//	processing_speed     0.06   0.7 typing_speed + 0.1
//	learning_efficiency  0.04   0.2 complexity + 0.2 typing_speed + 0.2 session_time + 0.2
func DefaultConfig() Config {
	return Config{
		LongInputWords:  50,
		InputLengthNorm: 500,
		SessionHorizon:  30 * time.Minute,
		Rules: []TraitRule{
			{Trait: state.Curiosity, Rate: 0.05, Weights: map[Field]float64{
				FieldComplexity: 0.3, FieldLongInput: 0.2}},
			{Trait: state.Persistence, Rate: 0.03, Weights: map[Field]float64{
				FieldSessionTime: 0.5, FieldInputLength: 0.3}},
			{Trait: state.Openness, Rate: 0.04, Weights: map[Field]float64{
				FieldComplexity: 0.4, FieldInputLength: 0.2, FieldBias: 0.2}},
			{Trait: state.ProcessingSpeed, Rate: 0.06, Weights: map[Field]float64{
				FieldTypingSpeed: 0.7, FieldBias: 0.1}},
			{Trait: state.LearningEfficiency, Rate: 0.04, Weights: map[Field]float64{
				FieldComplexity: 0.2, FieldTypingSpeed: 0.2, FieldSessionTime: 0.2, FieldBias: 0.2}},
		},
	}
}

// Validate reports ErrInvalidConfig unless every trait has exactly one rule
// with a rate in [0, 1] and finite weights over known fields.
func (c Config) Validate() error {
	if c.LongInputWords < 0 || c.InputLengthNorm <= 0 || c.SessionHorizon <= 0 {
		return fmt.Errorf("normalisers %d/%d/%s: %w", c.LongInputWords, c.InputLengthNorm, c.SessionHorizon, cycleerr.ErrInvalidConfig)
	}
	known := make(map[Field]bool, len(Fields))
	for _, f := range Fields {
		known[f] = true
	}
	seen := make(map[state.TraitName]bool, len(c.Rules))
	for _, r := range c.Rules {
		if _, ok := (state.Traits{}).Get(r.Trait); !ok {
			return fmt.Errorf("unknown trait %q: %w", r.Trait, cycleerr.ErrInvalidConfig)
		}
		if seen[r.Trait] {
			return fmt.Errorf("duplicate rule for %s: %w", r.Trait, cycleerr.ErrInvalidConfig)
		}
		seen[r.Trait] = true
		if math.IsNaN(r.Rate) || r.Rate < 0 || r.Rate > 1 {
			return fmt.Errorf("trait %s rate %v: %w", r.Trait, r.Rate, cycleerr.ErrInvalidConfig)
		}
		for f, w := range r.Weights {
			if !known[f] {
				return fmt.Errorf("trait %s: unknown field %q: %w", r.Trait, f, cycleerr.ErrInvalidConfig)
			}
			if math.IsNaN(w) || math.IsInf(w, 0) {
				return fmt.Errorf("trait %s field %s weight: %w", r.Trait, f, cycleerr.ErrInvalidConfig)
			}
		}
	}
	for _, n := range state.TraitNames {
		if !seen[n] {
			return fmt.Errorf("no rule for %s: %w", n, cycleerr.ErrInvalidConfig)
		}
	}
	return nil
}

// Rule returns the rule of a trait.
func (c Config) Rule(name state.TraitName) (TraitRule, bool) {
	for _, r := range c.Rules {
		if r.Trait == name {
			return r, true
		}
	}
	return TraitRule{}, false
}

// #endregion update-config

// #region update-result
// Result bundles everything returned by Step and Apply.
type Result struct {
	Traits   state.Traits `json:"traits"`
	Decision Decision     `json:"decision"`
	Metrics  Metrics      `json:"metrics"`
}

// #endregion update-result
