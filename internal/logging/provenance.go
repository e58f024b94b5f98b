package logging

import (
	"database/sql"
	"fmt"
	"time"
)

// #region log-decision
// LogDecision writes a provenance entry to the provenance_log table.
func LogDecision(db *sql.DB, entry ProvenanceEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO provenance_log (version_id, tick_id, trigger_type, events_json, response_text, record_json, decision, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.VersionID,
		nullIfEmpty(entry.TickID),
		entry.TriggerType,
		nullIfEmpty(entry.EventsJSON),
		nullIfEmpty(entry.ResponseText),
		nullIfEmpty(entry.RecordJSON),
		entry.Decision,
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// #endregion log-decision

// #region list-provenance
// ListProvenance returns up to limit entries of the given trigger type in
// insertion order, oldest first. An empty trigger matches every row.
func ListProvenance(db *sql.DB, trigger string, limit int) ([]ProvenanceEntry, error) {
	rows, err := db.Query(
		`SELECT id, version_id, tick_id, trigger_type, events_json, response_text, record_json, decision, reason, created_at
		 FROM (
		   SELECT * FROM provenance_log WHERE (? = '' OR trigger_type = ?) ORDER BY id DESC LIMIT ?
		 ) ORDER BY id ASC`,
		trigger, trigger, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list provenance: %w", err)
	}
	defer rows.Close()

	var out []ProvenanceEntry
	for rows.Next() {
		var e ProvenanceEntry
		var tickID, eventsJSON, response, record, reason sql.NullString
		var created string
		if err := rows.Scan(&e.ID, &e.VersionID, &tickID, &e.TriggerType, &eventsJSON, &response, &record, &e.Decision, &reason, &created); err != nil {
			return nil, fmt.Errorf("scan provenance: %w", err)
		}
		e.TickID = tickID.String
		e.EventsJSON = eventsJSON.String
		e.ResponseText = response.String
		e.RecordJSON = record.String
		e.Reason = reason.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion list-provenance

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
