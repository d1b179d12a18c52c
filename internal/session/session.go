package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/neuroadapt/internal/cycleerr"
	"github.com/danielpatrickdp/neuroadapt/internal/logging"
	"github.com/danielpatrickdp/neuroadapt/internal/metrics"
	"github.com/danielpatrickdp/neuroadapt/internal/state"
)

// #region deps
// Deps wires a session to its collaborators.
type Deps struct {
	Pipeline Pipeline
	// Store resumes traits and records every cycle. Nil keeps history in memory.
	Store     *state.Store
	Recorders []Recorder
	Logger    *zap.Logger
	Now       func() time.Time
}

// #endregion deps

// #region session-struct
// Session owns one user's traits. RunCycle calls are serialised.
type Session struct {
	id        string
	pipeline  Pipeline
	store     *StoreRecorder
	recorders []Recorder
	logger    *zap.Logger
	now       func() time.Time

	mu        sync.Mutex
	traits    state.Traits
	versionID string
	cycle     int
}

// #endregion session-struct

// #region constructor
// New resumes a session from the store's active version, or starts it at the
// initial traits and records that as its first version.
func New(id string, deps Deps) (*Session, error) {
	if id == "" {
		return nil, fmt.Errorf("new session: empty id: %w", cycleerr.ErrInvalidInput)
	}
	if deps.Pipeline.Extractor == nil || deps.Pipeline.Adapter == nil || deps.Pipeline.Estimator == nil {
		return nil, fmt.Errorf("new session %s: incomplete pipeline: %w", id, cycleerr.ErrInvalidConfig)
	}
	s := &Session{
		id:       id,
		pipeline: deps.Pipeline,
		logger:   deps.Logger,
		now:      deps.Now,
		traits:   state.InitialTraits(),
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.With(zap.String("session_id", id))
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}

	if deps.Store != nil {
		if err := s.resume(deps.Store); err != nil {
			return nil, err
		}
		s.store = NewStoreRecorder(deps.Store)
	} else {
		s.versionID = uuid.New().String()
	}
	s.recorders = append(s.recorders, deps.Recorders...)

	metrics.ObserveTraits(id, s.traits)
	return s, nil
}

func (s *Session) resume(store *state.Store) error {
	cur, err := store.GetCurrent(s.id)
	switch {
	case err == nil:
		// round-trip through the map form so a partial record fails loudly
		traits, err := state.TraitsFromMap(cur.Traits.AsMap())
		if err != nil {
			return fmt.Errorf("resume session %s: %w", s.id, err)
		}
		if err := traits.Validate(); err != nil {
			return fmt.Errorf("resume session %s: %w", s.id, err)
		}
		s.traits = traits
		s.versionID = cur.VersionID
		last, err := store.LastCycle(s.id)
		if err != nil {
			return fmt.Errorf("resume session %s: %w", s.id, err)
		}
		s.cycle = last
		s.logger.Info("session resumed", zap.String("version_id", cur.VersionID), zap.Int("cycle", s.cycle))
		return nil
	case errors.Is(err, sql.ErrNoRows):
		rec, err := store.CreateInitial(s.id, s.traits)
		if err != nil {
			return fmt.Errorf("start session %s: %w", s.id, err)
		}
		s.versionID = rec.VersionID
		s.logger.Info("session started", zap.String("version_id", rec.VersionID))
		return nil
	default:
		return fmt.Errorf("resume session %s: %w", s.id, err)
	}
}

// #endregion constructor

// #region accessors
// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Snapshot returns a copy of the current traits.
func (s *Session) Snapshot() state.Traits {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.traits
}

// VersionID returns the id of the last version the store accepted, or of the
// last cycle when the session has no store.
func (s *Session) VersionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versionID
}

// Cycles returns the number of completed cycles.
func (s *Session) Cycles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycle
}

// Reset replaces the traits without recording a version. Used to seed
// in-memory replays.
func (s *Session) Reset(t state.Traits) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("reset session %s: %w", s.id, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traits = t
	metrics.ObserveTraits(s.id, t)
	return nil
}

// Close drops the session's gauges.
func (s *Session) Close() {
	metrics.ForgetSession(s.id)
}

// #endregion accessors

// #region run-cycle
// RunCycle runs buffer -> features -> trait update -> outcomes -> recorders.
// Any pipeline error leaves the traits at their last valid value. Recorder
// errors are returned after the traits have been updated.
func (s *Session) RunCycle(ctx context.Context, in CycleInput) (CycleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return CycleResult{}, err
	}
	start := time.Now()
	n := s.cycle + 1

	fs, stats, err := s.pipeline.Extractor.Extract(in.Buffer, in.Scalars, s.traits)
	if err != nil {
		return CycleResult{}, s.fail(n, "extract features", err)
	}
	res, err := s.pipeline.Adapter.Step(s.traits, in.Interaction)
	if err != nil {
		return CycleResult{}, s.fail(n, "adapt traits", err)
	}
	outs, err := s.pipeline.Estimator.Estimate(&fs, &res.Traits, &in.Content)
	if err != nil {
		return CycleResult{}, s.fail(n, "estimate outcomes", err)
	}

	before := s.traits
	s.traits = res.Traits
	s.cycle = n

	result := CycleResult{
		Cycle:     n,
		Stats:     stats,
		Features:  fs,
		Traits:    res.Traits,
		Outcomes:  outs,
		Update:    res,
		VersionID: uuid.New().String(),
	}

	metrics.CyclesTotal.WithLabelValues(res.Decision.Action).Inc()
	metrics.CycleDuration.Observe(time.Since(start).Seconds())
	metrics.ObserveTraits(s.id, s.traits)
	s.logger.Debug("cycle complete",
		zap.Int("cycle", n),
		zap.String("decision", res.Decision.Action),
		zap.Float64("delta_norm", res.Metrics.DeltaNorm),
		zap.Int("review_hours", outs.OptimalReviewTime),
	)

	ev := s.event(in, result, before, s.versionID)
	var errs []error
	// Only a version the store accepted may become the next parent.
	committed := true
	if s.store != nil {
		if err := s.store.Record(ctx, ev); err != nil {
			errs = append(errs, s.recordFailed(n, s.store, err))
			committed = false
		}
	}
	if committed {
		s.versionID = result.VersionID
	}
	for _, r := range s.recorders {
		if err := r.Record(ctx, ev); err != nil {
			errs = append(errs, s.recordFailed(n, r, err))
		}
	}
	if len(errs) > 0 {
		return result, fmt.Errorf("record cycle %d: %w", n, errors.Join(errs...))
	}
	return result, nil
}

func (s *Session) recordFailed(cycle int, r Recorder, err error) error {
	metrics.RecorderFailures.WithLabelValues(fmt.Sprintf("%T", r)).Inc()
	s.logger.Warn("record cycle failed", zap.Int("cycle", cycle), zap.Error(err))
	return err
}

func (s *Session) fail(cycle int, stage string, err error) error {
	metrics.CyclesTotal.WithLabelValues("error").Inc()
	s.logger.Warn("cycle aborted", zap.Int("cycle", cycle), zap.String("stage", stage), zap.Error(err))
	return fmt.Errorf("cycle %d: %s: %w", cycle, stage, err)
}

func (s *Session) event(in CycleInput, r CycleResult, before state.Traits, parent string) CycleEvent {
	trigger := in.Trigger
	if trigger == "" {
		trigger = "cycle"
	}
	now := s.now()
	metricsJSON, _ := json.Marshal(r.Update.Metrics)

	return CycleEvent{
		Version: state.TraitRecord{
			VersionID:   r.VersionID,
			SessionID:   s.id,
			ParentID:    parent,
			Traits:      r.Traits,
			CreatedAt:   now,
			MetricsJSON: string(metricsJSON),
		},
		Cycle:       r.Cycle,
		TriggerType: trigger,
		Record: logging.CycleRecord{
			Cycle:       r.Cycle,
			Samples:     in.Buffer.Samples(),
			Scalars:     in.Scalars,
			Interaction: in.Interaction,
			Content:     in.Content,
			Stats:       r.Stats,
			Features:    r.Features,
			Before:      before,
			After:       r.Traits,
			Outcomes:    r.Outcomes,
			DeltaNorm:   r.Update.Metrics.DeltaNorm,
			Decision:    r.Update.Decision.Action,
			Reason:      r.Update.Decision.Reason,
		},
		Decision: r.Update.Decision.Action,
		Reason:   r.Update.Decision.Reason,
		At:       now,
	}
}

// #endregion run-cycle
