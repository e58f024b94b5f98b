package eval

import (
	"fmt"
	"sort"
	"strings"

	"github.com/burnout-twin/burnout-twin/internal/state"
)

// #region classify
// Classify maps vitals to a band. The burnout value is 100 minus the mean
// channel value, rounded down; empty vitals count as fully rested.
func Classify(v state.Vitals) Band {
	burnout := 0
	if len(v) > 0 {
		sum := 0
		for _, x := range v {
			sum += state.Clamp(x)
		}
		burnout = state.MaxVital - sum/len(v)
	}
	return bandFor(burnout)
}

func bandFor(burnout int) Band {
	band := BandOverloaded
	switch {
	case burnout < StrainedFrom:
		band = BandFocused
	case burnout < OverloadedFrom:
		band = BandStrained
	}
	return Band{StressBand: band, BurnoutValue: burnout, Avatar: avatars[band]}
}

// Preset returns the fixed demo band for level 1 (focused), 2 (strained)
// or 3 (overloaded).
func Preset(level int) (Band, error) {
	switch level {
	case 1:
		return bandFor(28), nil
	case 2:
		return bandFor(55), nil
	case 3:
		return bandFor(85), nil
	}
	return Band{}, fmt.Errorf("level %d out of range 1..3", level)
}

// #endregion classify

// #region eval-harness
// EvalHarness runs lightweight post-commit validation on vitals.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run compares the vitals before and after a commit. A failed result is a
// warning; the commit has already happened.
func (h *EvalHarness) Run(before, after state.Vitals) EvalResult {
	band := Classify(after)
	var metrics []EvalMetric
	var failReasons []string

	// 1. Largest single-channel drop
	drop, dropChannel := 0, ""
	for _, ch := range sortedChannels(after) {
		prev, ok := before[ch]
		if !ok {
			continue
		}
		if d := prev - after[ch]; d > drop {
			drop, dropChannel = d, ch
		}
	}
	dropPass := drop <= h.config.MaxDrop
	metrics = append(metrics, EvalMetric{Name: "max_drop", Value: drop, Pass: dropPass})
	if !dropPass {
		failReasons = append(failReasons, fmt.Sprintf("%s dropped %d (limit %d)", dropChannel, drop, h.config.MaxDrop))
	}

	// 2. Lowest channel
	low, lowChannel := state.MaxVital, ""
	for _, ch := range sortedChannels(after) {
		if after[ch] < low {
			low, lowChannel = after[ch], ch
		}
	}
	lowPass := low >= h.config.MinChannel
	metrics = append(metrics, EvalMetric{Name: "min_channel", Value: low, Pass: lowPass})
	if !lowPass {
		failReasons = append(failReasons, fmt.Sprintf("%s at %d (floor %d)", lowChannel, low, h.config.MinChannel))
	}

	// 3. Burnout value
	burnoutPass := band.BurnoutValue <= h.config.MaxBurnout
	metrics = append(metrics, EvalMetric{Name: "burnout_value", Value: band.BurnoutValue, Pass: burnoutPass})
	if !burnoutPass {
		failReasons = append(failReasons, fmt.Sprintf("burnout %d exceeds %d", band.BurnoutValue, h.config.MaxBurnout))
	}

	return EvalResult{
		Passed:  len(failReasons) == 0,
		Band:    band,
		Metrics: metrics,
		Reason:  strings.Join(failReasons, "; "),
	}
}

// #endregion eval-harness

func sortedChannels(v state.Vitals) []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
