package logging

import (
	"time"

	"github.com/burnout-twin/burnout-twin/internal/gate"
	"github.com/burnout-twin/burnout-twin/internal/proposal"
	"github.com/burnout-twin/burnout-twin/internal/update"
)

// Trigger types written to provenance_log.trigger_type.
const (
	TriggerUpdate  = "update"
	TriggerPublish = "publish"
)

// Decision values beyond the merge's commit/no_op.
const DecisionError = "error"

// #region provenance-entry
// ProvenanceEntry is a single row in the provenance_log table.
type ProvenanceEntry struct {
	ID           int64
	VersionID    string
	TickID       string
	TriggerType  string
	EventsJSON   string
	ResponseText string
	RecordJSON   string
	Decision     string // "commit" | "no_op" | "error"
	Reason       string
	CreatedAt    time.Time
}

// #endregion provenance-entry

// #region update-record
// UpdateRecord captures everything one update decided, serialized into
// provenance_log.record_json so a cycle can be replayed from the log.
type UpdateRecord struct {
	TickID      string            `json:"tick_id"`
	Channels    []string          `json:"channels"`
	Proposal    proposal.Proposal `json:"proposal"`
	Corrections []gate.Correction `json:"corrections,omitempty"`
	Metrics     update.Metrics    `json:"metrics"`
	Decision    update.Decision   `json:"decision"`
	ErrorKind   string            `json:"error_kind,omitempty"`
}

// #endregion update-record
