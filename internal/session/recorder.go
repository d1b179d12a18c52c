package session

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/danielpatrickdp/neuroadapt/internal/logging"
	"github.com/danielpatrickdp/neuroadapt/internal/state"
)

// #region store-recorder
// StoreRecorder commits each cycle as a trait version and logs it to cycle_log.
type StoreRecorder struct {
	store *state.Store
}

// NewStoreRecorder creates a recorder over an open store.
func NewStoreRecorder(store *state.Store) *StoreRecorder {
	return &StoreRecorder{store: store}
}

// Record commits the version and appends its cycle log row in one transaction.
func (r *StoreRecorder) Record(_ context.Context, ev CycleEvent) error {
	recordJSON, err := logging.EncodeRecord(ev.Record)
	if err != nil {
		return err
	}
	err = r.store.CommitWith(ev.Version, func(tx *sql.Tx) error {
		return logging.LogCycle(tx, logging.CycleEntry{
			SessionID:   ev.Version.SessionID,
			VersionID:   ev.Version.VersionID,
			Cycle:       ev.Cycle,
			TriggerType: ev.TriggerType,
			RecordJSON:  recordJSON,
			Decision:    ev.Decision,
			Reason:      ev.Reason,
			CreatedAt:   ev.At,
		})
	})
	if err != nil {
		return fmt.Errorf("commit version %s: %w", ev.Version.VersionID, err)
	}
	return nil
}

// #endregion store-recorder

// #region memory-recorder
// MemoryRecorder keeps events in memory. Used by replay and tests.
type MemoryRecorder struct {
	mu     sync.Mutex
	events []CycleEvent
	err    error
}

// FailWith makes every later Record call return err.
func (r *MemoryRecorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Record appends ev unless a failure is configured.
func (r *MemoryRecorder) Record(_ context.Context, ev CycleEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the recorded events.
func (r *MemoryRecorder) Events() []CycleEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]CycleEvent(nil), r.events...)
}

// #endregion memory-recorder
