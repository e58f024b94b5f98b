package replay

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/google/go-cmp/cmp"

	"github.com/burnout-twin/burnout-twin/internal/logging"
	"github.com/burnout-twin/burnout-twin/internal/state"
	"github.com/burnout-twin/burnout-twin/internal/update"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description        string                  `json:"description"`
	Channels           []string                `json:"channels"`
	MaxMemoryAdditions int                     `json:"max_memory_additions,omitempty"`
	StartState         FixtureStartState       `json:"start_state"`
	Steps              []FixtureStep           `json:"steps"`
	ExpectedResults    []FixtureExpectedResult `json:"expected_results"`
}

// FixtureStartState is the JSON-serializable initial persona.
type FixtureStartState struct {
	PersonaID string       `json:"persona_id"`
	VersionID string       `json:"version_id,omitempty"`
	Version   int          `json:"version"`
	Vitals    state.Vitals `json:"vitals"`
	Memory    []string     `json:"memory"`
}

// FixtureStep mirrors Step with JSON tags.
type FixtureStep struct {
	StepID       string `json:"step_id"`
	JudgmentText string `json:"judgment_text"`
	Failure      string `json:"failure,omitempty"`
}

// FixtureExpectedResult captures the expected outcome per step. Nil fields
// are not checked.
type FixtureExpectedResult struct {
	StepID     string       `json:"step_id"`
	Action     string       `json:"action"`
	ErrorKind  string       `json:"error_kind,omitempty"`
	Vitals     state.Vitals `json:"vitals,omitempty"`
	MemoryHead *string      `json:"memory_head,omitempty"`
	Version    *int         `json:"version,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToPersona converts a FixtureStartState to the live aggregate.
func (s *FixtureStartState) ToPersona() state.Persona {
	mem := s.Memory
	if mem == nil {
		mem = []string{}
	}
	return state.Persona{
		ID:        s.PersonaID,
		VersionID: s.VersionID,
		Vitals:    s.Vitals.Clone(),
		Memory:    append([]string{}, mem...),
		Version:   s.Version,
	}
}

// ToStep converts a FixtureStep to a domain Step.
func (fs *FixtureStep) ToStep() Step {
	return Step{StepID: fs.StepID, JudgmentText: fs.JudgmentText, Failure: fs.Failure}
}

// ToReplayConfig returns the sanitizer settings the fixture was recorded with.
func (f *Fixture) ToReplayConfig() ReplayConfig {
	channels := f.Channels
	if len(channels) == 0 {
		channels = channelsOf(f.StartState.Vitals)
	}
	return ReplayConfig{Channels: channels, MaxMemoryAdditions: f.MaxMemoryAdditions}
}

// #endregion fixture-loader

// #region fixture-run

// RunFixture replays f and lists every way the results differ from the
// expected ones. No mismatches means the fixture passes.
func RunFixture(f *Fixture) ([]ReplayResult, []string) {
	steps := make([]Step, len(f.Steps))
	for i := range f.Steps {
		steps[i] = f.Steps[i].ToStep()
	}
	results, _ := Replay(f.StartState.ToPersona(), steps, f.ToReplayConfig())

	var mismatches []string
	if len(results) != len(f.ExpectedResults) {
		mismatches = append(mismatches, fmt.Sprintf("expected %d results, got %d", len(f.ExpectedResults), len(results)))
	}
	for i, want := range f.ExpectedResults {
		if i >= len(results) {
			break
		}
		got := results[i]
		tag := fmt.Sprintf("step %d (%s)", i, want.StepID)
		if want.StepID != "" && got.StepID != want.StepID {
			mismatches = append(mismatches, fmt.Sprintf("%s: step_id %s, got %s", tag, want.StepID, got.StepID))
		}
		if got.Action != want.Action {
			mismatches = append(mismatches, fmt.Sprintf("%s: action %s, got %s (reason: %s)", tag, want.Action, got.Action, got.Reason))
		}
		if got.ErrorKind != want.ErrorKind {
			mismatches = append(mismatches, fmt.Sprintf("%s: error_kind %q, got %q", tag, want.ErrorKind, got.ErrorKind))
		}
		if want.Vitals != nil {
			if diff := cmp.Diff(want.Vitals, got.Vitals); diff != "" {
				mismatches = append(mismatches, fmt.Sprintf("%s: vitals (-want +got):\n%s", tag, diff))
			}
		}
		if want.MemoryHead != nil && got.MemoryHead != *want.MemoryHead {
			mismatches = append(mismatches, fmt.Sprintf("%s: memory head %q, got %q", tag, *want.MemoryHead, got.MemoryHead))
		}
		if want.Version != nil && got.Version != *want.Version {
			mismatches = append(mismatches, fmt.Sprintf("%s: version %d, got %d", tag, *want.Version, got.Version))
		}
	}
	return results, mismatches
}

// #endregion fixture-run

// #region fixture-export

// ExportFixture builds a fixture from the last N update rows of the
// provenance log. The start state is the version the first exported update
// saw; expected results are the versions each update left behind.
func ExportFixture(store *state.Store, last int) (*Fixture, error) {
	entries, err := logging.ListProvenance(store.DB(), logging.TriggerUpdate, last)
	if err != nil {
		return nil, fmt.Errorf("list provenance: %w", err)
	}
	if len(entries) == 0 {
		return nil, errors.New("no update rows in provenance log")
	}

	first := entries[0]
	startID := first.VersionID
	if first.Decision == update.ActionCommit {
		rec, err := store.GetVersion(first.VersionID)
		if err != nil {
			return nil, fmt.Errorf("get version %s: %w", first.VersionID, err)
		}
		if rec.ParentID == "" {
			return nil, fmt.Errorf("version %s has no parent", rec.VersionID)
		}
		startID = rec.ParentID
	}
	start, err := store.GetVersion(startID)
	if err != nil {
		return nil, fmt.Errorf("get start version %s: %w", startID, err)
	}

	f := &Fixture{
		Description: fmt.Sprintf("exported from %d provenance rows starting at version %d", len(entries), start.Version),
		StartState: FixtureStartState{
			PersonaID: start.PersonaID,
			VersionID: start.VersionID,
			Version:   start.Version,
			Vitals:    start.Vitals,
			Memory:    start.Memory,
		},
	}

	for i, e := range entries {
		var rec logging.UpdateRecord
		if e.RecordJSON != "" {
			if err := json.Unmarshal([]byte(e.RecordJSON), &rec); err != nil {
				return nil, fmt.Errorf("decode record_json for row %d: %w", e.ID, err)
			}
		}
		if i == 0 {
			f.Channels = rec.Channels
		}

		stepID := e.TickID
		if stepID == "" {
			stepID = fmt.Sprintf("row-%d", e.ID)
		}
		step := FixtureStep{StepID: stepID, JudgmentText: e.ResponseText}
		if e.Decision == logging.DecisionError && rec.ErrorKind != "parse" {
			step.Failure = rec.ErrorKind
		}
		f.Steps = append(f.Steps, step)

		after, err := store.GetVersion(e.VersionID)
		if err != nil {
			return nil, fmt.Errorf("get version %s: %w", e.VersionID, err)
		}
		head := ""
		if len(after.Memory) > 0 {
			head = after.Memory[0]
		}
		version := after.Version
		f.ExpectedResults = append(f.ExpectedResults, FixtureExpectedResult{
			StepID:     stepID,
			Action:     e.Decision,
			ErrorKind:  rec.ErrorKind,
			Vitals:     after.Vitals,
			MemoryHead: &head,
			Version:    &version,
		})
	}
	if len(f.Channels) == 0 {
		f.Channels = channelsOf(start.Vitals)
	}
	return f, nil
}

// WriteFixture writes f as indented JSON.
func WriteFixture(path string, f *Fixture) error {
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// #endregion fixture-export

func channelsOf(v state.Vitals) []string {
	out := make([]string, 0, len(v))
	for k := range v {
		out = append(out, k)
	}
	return out
}
