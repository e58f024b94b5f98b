package gate

// #region correction-type
// CorrectionType enumerates the silent fixes the gate applies.
type CorrectionType string

const (
	CorrectionUnknownChannel CorrectionType = "unknown_channel"
	CorrectionClamped        CorrectionType = "clamped"
	CorrectionMemoryTrimmed  CorrectionType = "memory_trimmed"
)

// #endregion correction-type

// #region correction
// Correction records one change the gate made to a proposal.
type Correction struct {
	Type    CorrectionType `json:"type"`
	Field   string         `json:"field"`
	Channel string         `json:"channel,omitempty"`
	From    int            `json:"from,omitempty"`
	To      int            `json:"to,omitempty"`
	Reason  string         `json:"reason"`
}

// #endregion correction

// #region gate-config
// GateConfig holds the channel set and limits enforced on proposals.
type GateConfig struct {
	Channels           []string
	MaxMemoryAdditions int // 0 means no limit
}

// DefaultGateConfig returns a config for the given channels with no memory limit.
func DefaultGateConfig(channels []string) GateConfig {
	return GateConfig{Channels: append([]string{}, channels...)}
}

// #endregion gate-config
