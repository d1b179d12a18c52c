package logging

import (
	"time"

	"github.com/danielpatrickdp/neuroadapt/internal/features"
	"github.com/danielpatrickdp/neuroadapt/internal/outcome"
	"github.com/danielpatrickdp/neuroadapt/internal/state"
	"github.com/danielpatrickdp/neuroadapt/internal/update"
)

// #region cycle-entry
// CycleEntry is a single row in the cycle_log table.
type CycleEntry struct {
	SessionID   string
	VersionID   string
	Cycle       int
	TriggerType string // "cycle" | "replay" | "manual"
	RecordJSON  string
	Decision    string // "commit" | "no_op"
	Reason      string
	CreatedAt   time.Time
}

// #endregion cycle-entry

// #region cycle-record
// CycleRecord captures everything one cycle consumed and produced.
// Serialized as JSON into cycle_log.record_json for replay and export.
type CycleRecord struct {
	Cycle int `json:"cycle"`

	// Inputs
	Samples     []float64                 `json:"samples,omitempty"`
	Scalars     features.Scalars          `json:"scalars"`
	Interaction update.InteractionSummary `json:"interaction"`
	Content     outcome.ContentAnalysis   `json:"content"`

	// Outputs
	Stats    features.Stats      `json:"stats"`
	Features features.FeatureSet `json:"features"`
	Before   state.Traits        `json:"traits_before"`
	After    state.Traits        `json:"traits_after"`
	Outcomes outcome.OutcomeSet  `json:"outcomes"`

	DeltaNorm float64 `json:"delta_norm"`
	Decision  string  `json:"decision"`
	Reason    string  `json:"reason"`
}

// #endregion cycle-record
