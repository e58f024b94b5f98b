package update

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/burnout-twin/burnout-twin/internal/proposal"
	"github.com/burnout-twin/burnout-twin/internal/state"
)

// #region merge-function
// Merge is a pure function that applies a sanitized proposal to a persona.
//
// Absolute targets are applied first; deltas then apply to every channel
// not already set by an absolute in the same proposal. Results are clamped
// to the vitals range and channels the persona does not have are ignored.
// Memory additions are inserted at the front one at a time, so the last
// listed addition ends up first. The version advances by exactly one, with
// a fresh version id, only when vitals or memory actually changed.
func Merge(old state.Persona, p proposal.Proposal) UpdateResult {
	start := time.Now()

	next := old.Clone()
	var metrics Metrics

	setByAbsolute := make(map[string]bool, len(p.Absolute))
	for _, ch := range sortedKeys(p.Absolute) {
		before, ok := next.Vitals[ch]
		if !ok {
			continue
		}
		after := state.Clamp(p.Absolute[ch])
		setByAbsolute[ch] = true
		next.Vitals[ch] = after
		metrics.ChannelMetrics = append(metrics.ChannelMetrics, ChannelMetric{Channel: ch, Source: "absolute", Before: before, After: after})
	}

	for _, ch := range sortedKeys(p.Deltas) {
		before, ok := next.Vitals[ch]
		if !ok || setByAbsolute[ch] {
			continue
		}
		after := state.Clamp(before + p.Deltas[ch])
		next.Vitals[ch] = after
		metrics.ChannelMetrics = append(metrics.ChannelMetrics, ChannelMetric{Channel: ch, Source: "delta", Before: before, After: after})
	}

	for _, m := range p.MemoryAdditions {
		next.Memory = append([]string{m}, next.Memory...)
	}
	metrics.MemoryAdded = len(p.MemoryAdditions)

	for _, ch := range sortedKeys(next.Vitals) {
		if next.Vitals[ch] != old.Vitals[ch] {
			metrics.ChannelsChanged = append(metrics.ChannelsChanged, ch)
		}
	}

	decision := Decision{Action: ActionNoOp, Reason: "no state change"}
	if len(metrics.ChannelsChanged) > 0 || metrics.MemoryAdded > 0 {
		next.Version = old.Version + 1
		next.VersionID = uuid.New().String()
		next.ParentID = old.VersionID
		decision = Decision{
			Action: ActionCommit,
			Reason: fmt.Sprintf("channels changed: %v, memory added: %d", metrics.ChannelsChanged, metrics.MemoryAdded),
		}
	} else {
		next = old.Clone()
	}

	metrics.UpdateTimeMs = time.Since(start).Milliseconds()
	return UpdateResult{
		NewState: next,
		Decision: decision,
		Metrics:  metrics,
	}
}

// #endregion merge-function

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
