package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS state_versions (
	version_id    TEXT PRIMARY KEY,
	parent_id     TEXT,
	persona_id    TEXT NOT NULL,
	version       INTEGER NOT NULL,
	state_blob    BLOB NOT NULL,
	created_at    TEXT NOT NULL,
	metrics_json  TEXT,
	FOREIGN KEY (parent_id) REFERENCES state_versions(version_id)
);

CREATE TABLE IF NOT EXISTS provenance_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	version_id    TEXT NOT NULL,
	tick_id       TEXT,
	trigger_type  TEXT NOT NULL,
	events_json   TEXT,
	response_text TEXT,
	record_json   TEXT,
	decision      TEXT NOT NULL,
	reason        TEXT,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES state_versions(version_id)
);

CREATE TABLE IF NOT EXISTS active_state (
	persona_id    TEXT PRIMARY KEY,
	version_id    TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES state_versions(version_id)
);
`

// #endregion schema

// #region store-struct
// Store persists committed persona versions in SQLite.
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
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (provenance, reactions).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #region create-initial
// CreateInitialState commits version 0 of a persona with default vitals
// and makes it active.
func (s *Store) CreateInitialState(personaID string, channels []string) (StateRecord, error) {
	rec := StateRecord{
		VersionID: uuid.New().String(),
		PersonaID: personaID,
		Vitals:    DefaultVitals(channels),
		Memory:    []string{},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.CommitState(rec); err != nil {
		return StateRecord{}, err
	}
	return rec, nil
}

// #endregion create-initial

// #region get-current
// GetCurrent reads the active version for a persona. It returns an error
// wrapping sql.ErrNoRows when the persona has never been committed.
func (s *Store) GetCurrent(personaID string) (StateRecord, error) {
	var versionID string
	err := s.db.QueryRow(`SELECT version_id FROM active_state WHERE persona_id = ?`, personaID).Scan(&versionID)
	if err != nil {
		return StateRecord{}, fmt.Errorf("get active: %w", err)
	}
	return s.GetVersion(versionID)
}

// #endregion get-current

// #region get-version
// GetVersion retrieves a specific version by ID.
func (s *Store) GetVersion(id string) (StateRecord, error) {
	row := s.db.QueryRow(
		`SELECT version_id, parent_id, persona_id, version, state_blob, created_at, metrics_json
		 FROM state_versions WHERE version_id = ?`, id,
	)
	rec, err := scanRecord(row)
	if err != nil {
		return StateRecord{}, fmt.Errorf("get version %s: %w", id, err)
	}
	return rec, nil
}

// #endregion get-version

// #region commit-state
// CommitState inserts a new version and moves the persona's active pointer atomically.
func (s *Store) CommitState(rec StateRecord) error {
	blob, err := encodeBlob(rec.Vitals, rec.Memory)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var parentPtr interface{}
	if rec.ParentID != "" {
		parentPtr = rec.ParentID
	}
	var metricsPtr interface{}
	if rec.MetricsJSON != "" {
		metricsPtr = rec.MetricsJSON
	}

	_, err = tx.Exec(
		`INSERT INTO state_versions (version_id, parent_id, persona_id, version, state_blob, created_at, metrics_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.VersionID, parentPtr, rec.PersonaID, rec.Version, blob,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano), metricsPtr,
	)
	if err != nil {
		return fmt.Errorf("insert version: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO active_state (persona_id, version_id) VALUES (?, ?)
		 ON CONFLICT(persona_id) DO UPDATE SET version_id = excluded.version_id`,
		rec.PersonaID, rec.VersionID,
	)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// #endregion commit-state

// #region rollback
// Rollback points a persona's active version back at an earlier version.
func (s *Store) Rollback(personaID, targetVersionID string) error {
	var exists int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM state_versions WHERE version_id = ? AND persona_id = ?`,
		targetVersionID, personaID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check version: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("version %s not found for persona %s", targetVersionID, personaID)
	}

	_, err = s.db.Exec(`UPDATE active_state SET version_id = ? WHERE persona_id = ?`, targetVersionID, personaID)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// #endregion rollback

// #region list-versions
// ListVersions returns the most recent versions, newest first.
func (s *Store) ListVersions(limit int) ([]StateRecord, error) {
	rows, err := s.db.Query(
		`SELECT version_id, parent_id, persona_id, version, state_blob, created_at, metrics_json
		 FROM state_versions ORDER BY rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var records []StateRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListVersionsWithProvenance returns the most recent versions joined with
// the latest provenance row logged against each, newest first.
func (s *Store) ListVersionsWithProvenance(limit int) ([]VersionWithProvenance, error) {
	rows, err := s.db.Query(
		`SELECT v.version_id, v.parent_id, v.persona_id, v.version, v.state_blob, v.created_at, v.metrics_json,
		        p.decision, p.reason, p.response_text
		 FROM state_versions v
		 LEFT JOIN provenance_log p
		   ON p.id = (SELECT MAX(id) FROM provenance_log WHERE version_id = v.version_id)
		 ORDER BY v.rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions with provenance: %w", err)
	}
	defer rows.Close()

	var out []VersionWithProvenance
	for rows.Next() {
		var vp VersionWithProvenance
		var decision, reason, response sql.NullString
		rec, err := scanRecord(rows, &decision, &reason, &response)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		vp.StateRecord = rec
		vp.Decision = decision.String
		vp.Reason = reason.String
		vp.ResponseText = response.String
		out = append(out, vp)
	}
	return out, rows.Err()
}

// #endregion list-versions

// #region scanning
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner, extra ...any) (StateRecord, error) {
	var rec StateRecord
	var parentID, metricsJSON sql.NullString
	var blob []byte
	var createdStr string

	dest := append([]any{&rec.VersionID, &parentID, &rec.PersonaID, &rec.Version, &blob, &createdStr, &metricsJSON}, extra...)
	if err := row.Scan(dest...); err != nil {
		return StateRecord{}, err
	}
	if parentID.Valid {
		rec.ParentID = parentID.String
	}
	if metricsJSON.Valid {
		rec.MetricsJSON = metricsJSON.String
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)

	vitals, memory, err := decodeBlob(blob)
	if err != nil {
		return StateRecord{}, err
	}
	rec.Vitals = vitals
	rec.Memory = memory
	return rec, nil
}

// #endregion scanning

// #region blob-encoding
type stateBlob struct {
	Vitals map[string]int `cbor:"vitals"`
	Memory []string       `cbor:"memory"`
}

func encodeBlob(v Vitals, memory []string) ([]byte, error) {
	b, err := cbor.Marshal(stateBlob{Vitals: v, Memory: memory})
	if err != nil {
		return nil, fmt.Errorf("encode state blob: %w", err)
	}
	return b, nil
}

func decodeBlob(b []byte) (Vitals, []string, error) {
	var sb stateBlob
	if err := cbor.Unmarshal(b, &sb); err != nil {
		return nil, nil, fmt.Errorf("decode state blob: %w", err)
	}
	if sb.Memory == nil {
		sb.Memory = []string{}
	}
	return Vitals(sb.Vitals), sb.Memory, nil
}

// #endregion blob-encoding
