package snapshot

import (
	"github.com/burnout-twin/burnout-twin/internal/eval"
	"github.com/burnout-twin/burnout-twin/internal/persona"
)

// DefaultPath is where the twin publishes and the API reads.
const DefaultPath = "persona_last_push.json"

// #region document
// Document is the published snapshot file. Snapshot fields sit at the top
// level next to the assessment and the dashboard band.
type Document struct {
	persona.Snapshot
	Assessment    *Assessment `json:"assessment"`
	AssessmentRaw string      `json:"assessment_raw"`
	Band          eval.Band   `json:"band"`
}

// Assessment is the parsed assessor reply, when it parsed.
type Assessment struct {
	Assessment string `json:"assessment"`
	Notes      string `json:"notes"`
}

// #endregion document
