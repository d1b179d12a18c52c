package replay

import (
	"context"

	"github.com/danielpatrickdp/neuroadapt/internal/features"
	"github.com/danielpatrickdp/neuroadapt/internal/outcome"
	"github.com/danielpatrickdp/neuroadapt/internal/session"
	"github.com/danielpatrickdp/neuroadapt/internal/signal"
	"github.com/danielpatrickdp/neuroadapt/internal/state"
	"github.com/danielpatrickdp/neuroadapt/internal/update"
)

// #region types
// Cycle is a single recorded cycle for replay.
type Cycle struct {
	Number      int
	Buffer      signal.Buffer
	Scalars     features.Scalars
	Interaction update.InteractionSummary
	Content     outcome.ContentAnalysis
}

// Config bundles the three stage tables for a replay run.
type Config struct {
	Features features.Config
	Update   update.Config
	Outcome  outcome.Config
}

// DefaultConfig returns the package defaults for all three stages.
func DefaultConfig() Config {
	return Config{
		Features: features.DefaultConfig(),
		Update:   update.DefaultConfig(),
		Outcome:  outcome.DefaultConfig(),
	}
}

// Result captures the outcome of replaying one cycle.
type Result struct {
	Cycle  int
	Action string // "commit" | "no_op" | "error"
	Reason string

	Features features.FeatureSet
	Outcomes outcome.OutcomeSet
	Metrics  update.Metrics

	// Traits after this cycle (unchanged when Action is "error")
	Traits state.Traits
	Err    error
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	TotalCycles int
	Commits     int
	NoOps       int
	Errors      int
	FinalTraits state.Traits
}

// #endregion types

// #region replay
const replaySessionID = "replay"

// Replay runs every cycle through the pipeline in memory with jitter disabled.
// A failing cycle is reported as "error" and leaves the traits as they were.
// The returned error is reserved for invalid configs.
func Replay(start state.Traits, cycles []Cycle, config Config) ([]Result, error) {
	pipeline, err := session.NewPipeline(config.Features, config.Update, config.Outcome, nil)
	if err != nil {
		return nil, err
	}
	sess, err := session.New(replaySessionID, session.Deps{Pipeline: pipeline})
	if err != nil {
		return nil, err
	}
	defer sess.Close()
	if err := sess.Reset(start); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(cycles))
	for i, c := range cycles {
		n := c.Number
		if n == 0 {
			n = i + 1
		}
		res, err := sess.RunCycle(context.Background(), session.CycleInput{
			Buffer:      c.Buffer,
			Scalars:     c.Scalars,
			Interaction: c.Interaction,
			Content:     c.Content,
			Trigger:     "replay",
		})
		if err != nil {
			results = append(results, Result{
				Cycle:  n,
				Action: "error",
				Reason: err.Error(),
				Traits: sess.Snapshot(),
				Err:    err,
			})
			continue
		}
		results = append(results, Result{
			Cycle:    n,
			Action:   res.Update.Decision.Action,
			Reason:   res.Update.Decision.Reason,
			Features: res.Features,
			Outcomes: res.Outcomes,
			Metrics:  res.Update.Metrics,
			Traits:   res.Traits,
		})
	}
	return results, nil
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []Result, start state.Traits) Summary {
	s := Summary{TotalCycles: len(results), FinalTraits: start}
	for _, r := range results {
		switch r.Action {
		case "commit":
			s.Commits++
		case "no_op":
			s.NoOps++
		case "error":
			s.Errors++
		}
		s.FinalTraits = r.Traits
	}
	return s
}

// #endregion replay
