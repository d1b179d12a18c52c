package update

import (
	"fmt"
	"math"
	"strings"

	"github.com/danielpatrickdp/neuroadapt/internal/state"
)

// #region adapter
// Adapter nudges traits toward influences observed in each cycle.
type Adapter struct {
	config Config
}

// NewAdapter creates an Adapter after validating its table.
func NewAdapter(config Config) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Adapter{config: config}, nil
}

// Config returns the adapter's table.
func (a *Adapter) Config() Config {
	return a.config
}

// #endregion adapter

// #region observation
// Observe normalises an interaction summary into the observation fields.
func (a *Adapter) Observe(s InteractionSummary) map[Field]float64 {
	longInput := 0.0
	if s.WordCount > a.config.LongInputWords {
		longInput = 1
	}
	return map[Field]float64{
		FieldComplexity:  clamp(s.Complexity),
		FieldTypingSpeed: clamp(s.TypingSpeed),
		FieldLongInput:   longInput,
		FieldInputLength: clamp(float64(s.InputLength) / float64(a.config.InputLengthNorm)),
		FieldSessionTime: clamp(float64(s.Elapsed) / float64(a.config.SessionHorizon)),
		FieldBias:        1,
	}
}

// Influence returns the clamped target value of every trait for a summary.
func (a *Adapter) Influence(s InteractionSummary) map[state.TraitName]float64 {
	obs := a.Observe(s)
	out := make(map[state.TraitName]float64, len(a.config.Rules))
	for _, r := range a.config.Rules {
		var v float64
		for _, f := range Fields {
			if w, ok := r.Weights[f]; ok {
				v += w * obs[f]
			}
		}
		out[r.Trait] = clamp(v)
	}
	return out
}

// #endregion observation

// #region step
// Step computes the next traits without touching old:
//
//	trait_new = trait_old + (influence - trait_old) * rate
//
// clamped to [0, 1]. It fails with ErrInvalidState when old is not a fully
// valid state.
func (a *Adapter) Step(old state.Traits, s InteractionSummary) (Result, error) {
	if err := old.Validate(); err != nil {
		return Result{}, fmt.Errorf("adapt traits: %w", err)
	}

	influence := a.Influence(s)
	next := old
	deltas := make(map[string]float64, len(state.TraitNames))
	infl := make(map[string]float64, len(state.TraitNames))
	var sumSq float64
	var moved []string

	for _, name := range state.TraitNames {
		rule, _ := a.config.Rule(name)
		cur, _ := old.Get(name)
		target := influence[name]
		v := clamp(cur + (target-cur)*rule.Rate)
		next.Set(name, v)

		d := v - cur
		deltas[string(name)] = d
		infl[string(name)] = target
		sumSq += d * d
		if d != 0 {
			moved = append(moved, string(name))
		}
	}

	norm := math.Sqrt(sumSq)
	decision := Decision{Action: "no_op", Reason: "no trait change"}
	if norm > 0 {
		decision = Decision{
			Action: "commit",
			Reason: fmt.Sprintf("traits moved: %s, delta norm: %.6f", strings.Join(moved, ","), norm),
		}
	}

	return Result{
		Traits:   next,
		Decision: decision,
		Metrics: Metrics{
			DeltaNorm:   norm,
			TraitDeltas: deltas,
			Influence:   infl,
		},
	}, nil
}

// #endregion step

// #region apply
// Apply updates traits in place. On error traits are left untouched.
// Callers sharing traits across goroutines must serialise Apply.
func (a *Adapter) Apply(traits *state.Traits, s InteractionSummary) (Result, error) {
	res, err := a.Step(*traits, s)
	if err != nil {
		return Result{}, err
	}
	*traits = res.Traits
	return res, nil
}

// #endregion apply

// #region helpers
// clamp restricts v to [0, 1]. NaN maps to 0.
func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion helpers
