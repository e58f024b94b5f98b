package replay

import (
	"github.com/burnout-twin/burnout-twin/internal/gate"
	"github.com/burnout-twin/burnout-twin/internal/logging"
	"github.com/burnout-twin/burnout-twin/internal/proposal"
	"github.com/burnout-twin/burnout-twin/internal/state"
	"github.com/burnout-twin/burnout-twin/internal/update"
)

// #region types
// Step is one recorded judge reply. Failure, when set, is an error kind
// recorded outside parsing ("timeout", "remote", "persist"); the step then
// replays as that error without touching state.
type Step struct {
	StepID       string
	JudgmentText string
	Failure      string
}

// ReplayConfig holds the sanitizer settings for a replay run.
type ReplayConfig struct {
	Channels           []string
	MaxMemoryAdditions int
}

// DefaultReplayConfig returns the settings the twin runs with.
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{Channels: append([]string{}, state.DefaultChannels...)}
}

// ReplayResult captures the outcome of replaying one step.
type ReplayResult struct {
	StepID    string
	Action    string // "commit" | "no_op" | "error"
	Reason    string
	ErrorKind string

	Corrections   []gate.Correction
	UpdateMetrics update.Metrics

	// State after this step (unchanged on no_op and error)
	Vitals     state.Vitals
	MemoryHead string
	Version    int
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalSteps int
	Commits    int
	NoOps      int
	Errors     int
	FinalState state.Persona
}

// #endregion types

// #region replay
// Replay runs every step through parse, sanitize and merge in memory, the
// same path a live update takes after the judge replies.
func Replay(start state.Persona, steps []Step, config ReplayConfig) ([]ReplayResult, state.Persona) {
	current := start.Clone()
	results := make([]ReplayResult, 0, len(steps))

	gc := gate.DefaultGateConfig(config.Channels)
	gc.MaxMemoryAdditions = config.MaxMemoryAdditions
	gateInst := gate.NewGate(gc)

	for _, step := range steps {
		// 1. Recorded failures replay as errors
		if step.Failure != "" {
			results = append(results, resultFor(step, current, ReplayResult{
				Action:    logging.DecisionError,
				Reason:    "recorded " + step.Failure + " failure",
				ErrorKind: step.Failure,
			}))
			continue
		}

		// 2. Parse
		parsed, err := proposal.Parse(step.JudgmentText)
		if err != nil {
			results = append(results, resultFor(step, current, ReplayResult{
				Action:    logging.DecisionError,
				Reason:    err.Error(),
				ErrorKind: "parse",
			}))
			continue
		}

		// 3. Sanitize and merge
		clean, corrections := gateInst.Sanitize(parsed)
		merged := update.Merge(current, clean)
		current = merged.NewState
		results = append(results, resultFor(step, current, ReplayResult{
			Action:        merged.Decision.Action,
			Reason:        merged.Decision.Reason,
			Corrections:   corrections,
			UpdateMetrics: merged.Metrics,
		}))
	}

	return results, current
}

func resultFor(step Step, current state.Persona, r ReplayResult) ReplayResult {
	r.StepID = step.StepID
	r.Vitals = current.Vitals.Clone()
	r.Version = current.Version
	if len(current.Memory) > 0 {
		r.MemoryHead = current.Memory[0]
	}
	return r
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult, finalState state.Persona) ReplaySummary {
	s := ReplaySummary{
		TotalSteps: len(results),
		FinalState: finalState,
	}
	for _, r := range results {
		switch r.Action {
		case update.ActionCommit:
			s.Commits++
		case update.ActionNoOp:
			s.NoOps++
		case logging.DecisionError:
			s.Errors++
		}
	}
	return s
}

// #endregion replay
