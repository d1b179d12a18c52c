package state

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/danielpatrickdp/neuroadapt/internal/cycleerr"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS trait_versions (
	version_id    TEXT PRIMARY KEY,
	session_id    TEXT NOT NULL,
	parent_id     TEXT,
	traits        BLOB NOT NULL,
	created_at    TEXT NOT NULL,
	metrics_json  TEXT,
	FOREIGN KEY (parent_id) REFERENCES trait_versions(version_id)
);

CREATE INDEX IF NOT EXISTS idx_trait_versions_session ON trait_versions(session_id, created_at);

CREATE TABLE IF NOT EXISTS cycle_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id    TEXT NOT NULL,
	version_id    TEXT NOT NULL,
	cycle         INTEGER NOT NULL,
	trigger_type  TEXT NOT NULL,
	record_json   TEXT,
	decision      TEXT NOT NULL,
	reason        TEXT,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES trait_versions(version_id)
);

CREATE TABLE IF NOT EXISTS active_traits (
	session_id    TEXT PRIMARY KEY,
	version_id    TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES trait_versions(version_id)
);
`

// timeLayout is fixed-width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// #endregion schema

// #region store-struct
// Store keeps versioned trait snapshots per session in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if dbPath == ":memory:" {
		// each pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion db-accessor

// #region create-initial
// CreateInitial records the first trait version of a session and makes it active.
func (s *Store) CreateInitial(sessionID string, traits Traits) (TraitRecord, error) {
	if err := traits.Validate(); err != nil {
		return TraitRecord{}, err
	}
	rec := TraitRecord{
		VersionID: uuid.New().String(),
		SessionID: sessionID,
		Traits:    traits,
		CreatedAt: time.Now().UTC(),
	}

	tx, err := s.db.Begin()
	if err != nil {
		return TraitRecord{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO trait_versions (version_id, session_id, parent_id, traits, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.VersionID, sessionID, nil, encodeTraits(traits), rec.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return TraitRecord{}, fmt.Errorf("insert version: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO active_traits (session_id, version_id) VALUES (?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET version_id = excluded.version_id`,
		sessionID, rec.VersionID,
	)
	if err != nil {
		return TraitRecord{}, fmt.Errorf("set active: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return TraitRecord{}, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// #endregion create-initial

// #region get-current
// GetCurrent reads the active trait version of a session.
// A session without history returns an error wrapping sql.ErrNoRows.
func (s *Store) GetCurrent(sessionID string) (TraitRecord, error) {
	var versionID string
	err := s.db.QueryRow(
		`SELECT version_id FROM active_traits WHERE session_id = ?`, sessionID,
	).Scan(&versionID)
	if err != nil {
		return TraitRecord{}, fmt.Errorf("get active %s: %w", sessionID, err)
	}
	return s.GetVersion(versionID)
}

// #endregion get-current

// #region get-version
// GetVersion retrieves a specific trait version by ID.
func (s *Store) GetVersion(id string) (TraitRecord, error) {
	row := s.db.QueryRow(
		`SELECT version_id, session_id, parent_id, traits, created_at, metrics_json
		 FROM trait_versions WHERE version_id = ?`, id,
	)
	rec, err := scanRecord(row)
	if err != nil {
		return TraitRecord{}, fmt.Errorf("get version %s: %w", id, err)
	}
	return rec, nil
}

// #endregion get-version

// #region commit
// Commit inserts a new version and moves the session's active pointer atomically.
func (s *Store) Commit(rec TraitRecord) error {
	return s.CommitWith(rec, nil)
}

// CommitWith is Commit plus extra writes in the same transaction. If also
// fails, neither the version nor the active pointer change.
func (s *Store) CommitWith(rec TraitRecord, also func(tx *sql.Tx) error) error {
	if err := rec.Traits.Validate(); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO trait_versions (version_id, session_id, parent_id, traits, created_at, metrics_json)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.VersionID, rec.SessionID, nullIfEmpty(rec.ParentID), encodeTraits(rec.Traits),
		rec.CreatedAt.UTC().Format(timeLayout), nullIfEmpty(rec.MetricsJSON),
	)
	if err != nil {
		return fmt.Errorf("insert version: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO active_traits (session_id, version_id) VALUES (?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET version_id = excluded.version_id`,
		rec.SessionID, rec.VersionID,
	)
	if err != nil {
		return fmt.Errorf("update active: %w", err)
	}

	if also != nil {
		if err := also(tx); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LastCycle returns the highest cycle number logged for a session, 0 if none.
func (s *Store) LastCycle(sessionID string) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COALESCE(MAX(cycle), 0) FROM cycle_log WHERE session_id = ?`, sessionID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("last cycle: %w", err)
	}
	return n, nil
}

// #endregion commit

// #region rollback
// Rollback points the session back at one of its earlier versions.
func (s *Store) Rollback(sessionID, targetVersionID string) error {
	var exists int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM trait_versions WHERE version_id = ? AND session_id = ?`,
		targetVersionID, sessionID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check version: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("version %s not found for session %s", targetVersionID, sessionID)
	}

	_, err = s.db.Exec(
		`UPDATE active_traits SET version_id = ? WHERE session_id = ?`, targetVersionID, sessionID,
	)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// #endregion rollback

// #region list-versions
// ListVersions returns the most recent trait versions of a session, newest first.
func (s *Store) ListVersions(sessionID string, limit int) ([]TraitRecord, error) {
	rows, err := s.db.Query(
		`SELECT version_id, session_id, parent_id, traits, created_at, metrics_json
		 FROM trait_versions WHERE session_id = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`, sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var records []TraitRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListVersionsWithCycles joins each version with the cycle that committed it.
// The initial version has no cycle row and is reported with Decision "initial".
func (s *Store) ListVersionsWithCycles(sessionID string, limit int) ([]VersionWithCycle, error) {
	rows, err := s.db.Query(
		`SELECT v.version_id, v.session_id, v.parent_id, v.traits, v.created_at, v.metrics_json,
		        COALESCE(c.cycle, 0), COALESCE(c.decision, 'initial'), COALESCE(c.reason, ''),
		        COALESCE(c.record_json, '')
		 FROM trait_versions v
		 LEFT JOIN cycle_log c ON c.version_id = v.version_id
		 WHERE v.session_id = ?
		 ORDER BY v.created_at DESC, v.rowid DESC LIMIT ?`, sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions with cycles: %w", err)
	}
	defer rows.Close()

	var out []VersionWithCycle
	for rows.Next() {
		var vc VersionWithCycle
		var parentID, metricsJSON sql.NullString
		var blob []byte
		var createdStr string
		if err := rows.Scan(&vc.VersionID, &vc.SessionID, &parentID, &blob, &createdStr, &metricsJSON,
			&vc.Cycle, &vc.Decision, &vc.Reason, &vc.RecordJSON); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if err := fillRecord(&vc.TraitRecord, parentID, blob, createdStr, metricsJSON); err != nil {
			return nil, err
		}
		out = append(out, vc)
	}
	return out, rows.Err()
}

// ListSessions returns every session that has an active version.
func (s *Store) ListSessions() ([]string, error) {
	rows, err := s.db.Query(`SELECT session_id FROM active_traits ORDER BY session_id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// #endregion list-versions

// #region scanning
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(r rowScanner) (TraitRecord, error) {
	var rec TraitRecord
	var parentID, metricsJSON sql.NullString
	var blob []byte
	var createdStr string
	if err := r.Scan(&rec.VersionID, &rec.SessionID, &parentID, &blob, &createdStr, &metricsJSON); err != nil {
		return TraitRecord{}, err
	}
	if err := fillRecord(&rec, parentID, blob, createdStr, metricsJSON); err != nil {
		return TraitRecord{}, err
	}
	return rec, nil
}

func fillRecord(rec *TraitRecord, parentID sql.NullString, blob []byte, createdStr string, metricsJSON sql.NullString) error {
	if parentID.Valid {
		rec.ParentID = parentID.String
	}
	traits, err := decodeTraits(blob)
	if err != nil {
		return fmt.Errorf("decode traits %s: %w", rec.VersionID, err)
	}
	rec.Traits = traits
	rec.CreatedAt, _ = time.Parse(timeLayout, createdStr)
	if metricsJSON.Valid {
		rec.MetricsJSON = metricsJSON.String
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// #endregion scanning

// #region trait-encoding
// encodeTraits packs the traits as little-endian float64 in TraitNames order.
func encodeTraits(t Traits) []byte {
	buf := make([]byte, len(TraitNames)*8)
	for i, n := range TraitNames {
		v, _ := t.Get(n)
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

func decodeTraits(b []byte) (Traits, error) {
	if len(b) != len(TraitNames)*8 {
		return Traits{}, fmt.Errorf("trait blob has %d bytes, want %d: %w",
			len(b), len(TraitNames)*8, cycleerr.ErrInvalidState)
	}
	var t Traits
	for i, n := range TraitNames {
		t.Set(n, math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:])))
	}
	return t, t.Validate()
}

// #endregion trait-encoding
