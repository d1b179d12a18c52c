package logging

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// #region log-cycle
// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// LogCycle writes a cycle entry to the cycle_log table.
func LogCycle(db Execer, entry CycleEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO cycle_log (session_id, version_id, cycle, trigger_type, record_json, decision, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.SessionID,
		entry.VersionID,
		entry.Cycle,
		entry.TriggerType,
		nullIfEmpty(entry.RecordJSON),
		entry.Decision,
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("log cycle: %w", err)
	}
	return nil
}

// EncodeRecord marshals a cycle record for CycleEntry.RecordJSON.
func EncodeRecord(rec CycleRecord) (string, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode cycle record: %w", err)
	}
	return string(b), nil
}

// DecodeRecord parses a stored cycle record.
func DecodeRecord(s string) (CycleRecord, error) {
	var rec CycleRecord
	if err := json.Unmarshal([]byte(s), &rec); err != nil {
		return CycleRecord{}, fmt.Errorf("decode cycle record: %w", err)
	}
	return rec, nil
}

// #endregion log-cycle

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
