package session

import (
	"context"
	"time"

	"github.com/danielpatrickdp/neuroadapt/internal/features"
	"github.com/danielpatrickdp/neuroadapt/internal/logging"
	"github.com/danielpatrickdp/neuroadapt/internal/outcome"
	"github.com/danielpatrickdp/neuroadapt/internal/signal"
	"github.com/danielpatrickdp/neuroadapt/internal/state"
	"github.com/danielpatrickdp/neuroadapt/internal/update"
)

// #region cycle-io
// CycleInput is everything one cycle consumes besides the session's traits.
type CycleInput struct {
	Buffer      signal.Buffer
	Scalars     features.Scalars
	Interaction update.InteractionSummary
	Content     outcome.ContentAnalysis
	Trigger     string // defaults to "cycle"
}

// CycleResult is everything one cycle produced.
type CycleResult struct {
	Cycle     int
	Stats     features.Stats
	Features  features.FeatureSet
	Traits    state.Traits
	Outcomes  outcome.OutcomeSet
	Update    update.Result
	VersionID string
}

// #endregion cycle-io

// #region recorder
// CycleEvent is handed to every recorder after a cycle succeeds.
type CycleEvent struct {
	Version     state.TraitRecord
	Cycle       int
	TriggerType string
	Record      logging.CycleRecord
	Decision    string
	Reason      string
	At          time.Time
}

// Recorder persists or forwards a completed cycle.
type Recorder interface {
	Record(ctx context.Context, ev CycleEvent) error
}

// #endregion recorder
