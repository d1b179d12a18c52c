package replay

import (
	"database/sql"
	"fmt"

	"github.com/danielpatrickdp/neuroadapt/internal/logging"
	"github.com/danielpatrickdp/neuroadapt/internal/state"
)

// #region export

// cycleRow holds a parsed cycle_log row with its record.
type cycleRow struct {
	Record   logging.CycleRecord
	Decision string
}

// ExportSession builds a fixture from the last N logged cycles of a session.
// The fixture starts from the traits the first exported cycle saw, so
// replaying it reproduces the logged decisions when the session ran without
// jitter.
func ExportSession(store *state.Store, sessionID string, last int) (*Fixture, error) {
	if last <= 0 {
		return nil, fmt.Errorf("export %s: last must be positive, got %d", sessionID, last)
	}

	rows, err := store.DB().Query(
		`SELECT record_json, decision FROM (
			SELECT record_json, decision, id FROM cycle_log
			WHERE session_id = ?
			ORDER BY id DESC LIMIT ?
		) sub ORDER BY id ASC`, sessionID, last,
	)
	if err != nil {
		return nil, fmt.Errorf("query cycle log: %w", err)
	}
	defer rows.Close()

	var cycles []cycleRow
	for rows.Next() {
		var recordJSON sql.NullString
		var decision string
		if err := rows.Scan(&recordJSON, &decision); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if !recordJSON.Valid || recordJSON.String == "" {
			continue
		}
		rec, err := logging.DecodeRecord(recordJSON.String)
		if err != nil {
			continue
		}
		cycles = append(cycles, cycleRow{Record: rec, Decision: decision})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	if len(cycles) == 0 {
		return nil, fmt.Errorf("export %s: no recorded cycles in last %d entries", sessionID, last)
	}

	return buildFixture(sessionID, cycles), nil
}

func buildFixture(sessionID string, rows []cycleRow) *Fixture {
	f := &Fixture{
		Description: fmt.Sprintf("session %s, cycles %d-%d", sessionID, rows[0].Record.Cycle, rows[len(rows)-1].Record.Cycle),
		SessionID:   sessionID,
		StartTraits: rows[0].Record.Before,
		Session:     FixtureSession{BufferLength: len(rows[0].Record.Samples)},
	}
	for _, r := range rows {
		rec := r.Record
		f.Cycles = append(f.Cycles, FixtureCycle{
			Cycle:   rec.Cycle,
			Samples: rec.Samples,
			Scalars: rec.Scalars,
			Interaction: FixtureInteraction{
				InputLength:    rec.Interaction.InputLength,
				TypingSpeed:    rec.Interaction.TypingSpeed,
				Complexity:     rec.Interaction.Complexity,
				ElapsedSeconds: rec.Interaction.Elapsed.Seconds(),
				WordCount:      rec.Interaction.WordCount,
			},
			Content: rec.Content,
		})
		f.ExpectedResults = append(f.ExpectedResults, FixtureExpectedResult{
			Cycle:       rec.Cycle,
			Decision:    r.Decision,
			ReviewHours: rec.Outcomes.OptimalReviewTime,
		})
	}
	return f
}

// #endregion export
