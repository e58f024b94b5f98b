package gate

import (
	"fmt"
	"sort"

	"github.com/burnout-twin/burnout-twin/internal/proposal"
	"github.com/burnout-twin/burnout-twin/internal/state"
)

// #region gate
// Gate sanitizes parsed proposals before they reach the merge step.
type Gate struct {
	config   GateConfig
	channels map[string]struct{}
}

// NewGate creates a gate with the given configuration.
func NewGate(config GateConfig) *Gate {
	ch := make(map[string]struct{}, len(config.Channels))
	for _, c := range config.Channels {
		ch[c] = struct{}{}
	}
	return &Gate{config: config, channels: ch}
}

// Sanitize returns a copy of p with unknown channels removed, absolute
// targets clamped to the vitals range and memory additions capped. The
// input proposal is not modified.
func (g *Gate) Sanitize(p proposal.Proposal) (proposal.Proposal, []Correction) {
	var corrections []Correction
	out := p

	out.Absolute = nil
	for _, ch := range sortedKeys(p.Absolute) {
		v := p.Absolute[ch]
		if !g.known(ch) {
			corrections = append(corrections, unknown("new_stats", ch))
			continue
		}
		clamped := state.Clamp(v)
		if clamped != v {
			corrections = append(corrections, Correction{
				Type:    CorrectionClamped,
				Field:   "new_stats",
				Channel: ch,
				From:    v,
				To:      clamped,
				Reason:  fmt.Sprintf("%s=%d outside [%d,%d]", ch, v, state.MinVital, state.MaxVital),
			})
		}
		if out.Absolute == nil {
			out.Absolute = make(map[string]int)
		}
		out.Absolute[ch] = clamped
	}

	out.Deltas = nil
	for _, ch := range sortedKeys(p.Deltas) {
		if !g.known(ch) {
			corrections = append(corrections, unknown("adjustments", ch))
			continue
		}
		if out.Deltas == nil {
			out.Deltas = make(map[string]int)
		}
		out.Deltas[ch] = p.Deltas[ch]
	}

	out.MemoryAdditions = append([]string(nil), p.MemoryAdditions...)
	if limit := g.config.MaxMemoryAdditions; limit > 0 && len(out.MemoryAdditions) > limit {
		corrections = append(corrections, Correction{
			Type:   CorrectionMemoryTrimmed,
			Field:  "memory_additions",
			From:   len(out.MemoryAdditions),
			To:     limit,
			Reason: fmt.Sprintf("kept first %d of %d memory additions", limit, len(out.MemoryAdditions)),
		})
		out.MemoryAdditions = out.MemoryAdditions[:limit]
	}

	return out, corrections
}

// #endregion gate

// #region helpers
func (g *Gate) known(ch string) bool {
	_, ok := g.channels[ch]
	return ok
}

func unknown(field, ch string) Correction {
	return Correction{
		Type:    CorrectionUnknownChannel,
		Field:   field,
		Channel: ch,
		Reason:  fmt.Sprintf("channel %q is not configured", ch),
	}
}

// sortedKeys keeps correction order deterministic.
func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// #endregion helpers
