package update

import "github.com/burnout-twin/burnout-twin/internal/state"

// #region decision
// Decision records what the merge decided.
type Decision struct {
	Action string `json:"action"` // "commit" | "no_op"
	Reason string `json:"reason"`
}

const (
	ActionCommit = "commit"
	ActionNoOp   = "no_op"
)

// #endregion decision

// #region metrics
// ChannelMetric captures how one channel moved during a merge.
type ChannelMetric struct {
	Channel string `json:"channel"`
	Source  string `json:"source"` // "absolute" | "delta"
	Before  int    `json:"before"`
	After   int    `json:"after"`
}

// Metrics captures telemetry from a merge.
type Metrics struct {
	ChannelsChanged []string        `json:"channels_changed"`
	ChannelMetrics  []ChannelMetric `json:"channel_metrics"`
	MemoryAdded     int             `json:"memory_added"`
	UpdateTimeMs    int64           `json:"update_time_ms"`
}

// #endregion metrics

// #region update-result
// UpdateResult bundles everything returned by Merge().
type UpdateResult struct {
	NewState state.Persona
	Decision Decision
	Metrics  Metrics
}

// Changed reports whether the merge produced a new version.
func (r UpdateResult) Changed() bool {
	return r.Decision.Action == ActionCommit
}

// #endregion update-result
