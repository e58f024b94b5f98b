package replay

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/burnout-twin/burnout-twin/internal/events"
	"github.com/burnout-twin/burnout-twin/internal/persona"
	"github.com/burnout-twin/burnout-twin/internal/state"
)

// #region fixture-tests

// TestFixture_BurnoutSession replays the checked-in session and compares
// every step. If sanitizing or merging changes, this catches the drift.
func TestFixture_BurnoutSession(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "burnout_session.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}

	results, mismatches := RunFixture(f)
	for _, m := range mismatches {
		t.Error(m)
	}
	if len(results) != 6 {
		t.Fatalf("expected 6 results, got %d", len(results))
	}
	if len(results[1].Corrections) == 0 {
		t.Error("expected a clamp correction for the 9999 absolute")
	}
}

func TestLoadFixtureMissing(t *testing.T) {
	if _, err := LoadFixture(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing fixture")
	}
}

func TestRunFixtureReportsMismatch(t *testing.T) {
	version := 5
	f := &Fixture{
		StartState: FixtureStartState{PersonaID: "p", Vitals: state.Vitals{"energy": 50}},
		Steps:      []FixtureStep{{StepID: "a", JudgmentText: `{"adjustments":{"energy":-10}}`}},
		ExpectedResults: []FixtureExpectedResult{{
			StepID:  "a",
			Action:  "no_op",
			Vitals:  state.Vitals{"energy": 50},
			Version: &version,
		}},
	}
	_, mismatches := RunFixture(f)
	if len(mismatches) != 3 {
		t.Fatalf("mismatches = %d, want action, vitals and version:\n%s", len(mismatches), strings.Join(mismatches, "\n"))
	}
}

// #endregion fixture-tests

// #region harness-tests

func TestReplayLeavesStartUntouched(t *testing.T) {
	start := state.NewPersona("p", state.DefaultChannels)
	results, final := Replay(start, []Step{{StepID: "1", JudgmentText: `{"adjustments":{"energy":-40}}`}}, DefaultReplayConfig())

	if start.Vitals["energy"] != 100 {
		t.Errorf("start mutated: %v", start.Vitals)
	}
	if final.Vitals["energy"] != 60 || final.Version != 1 {
		t.Errorf("final = %+v", final)
	}
	if results[0].Action != "commit" {
		t.Errorf("action = %s", results[0].Action)
	}
}

func TestReplayMemoryLimit(t *testing.T) {
	cfg := DefaultReplayConfig()
	cfg.MaxMemoryAdditions = 1
	results, final := Replay(state.NewPersona("p", cfg.Channels),
		[]Step{{StepID: "1", JudgmentText: `{"memory_additions":["a","b","c"]}`}}, cfg)

	if len(final.Memory) != 1 || final.Memory[0] != "a" {
		t.Errorf("memory = %v, want [a]", final.Memory)
	}
	if len(results[0].Corrections) != 1 {
		t.Errorf("corrections = %+v", results[0].Corrections)
	}
}

func TestSummarize(t *testing.T) {
	results := []ReplayResult{
		{Action: "commit"}, {Action: "commit"}, {Action: "no_op"}, {Action: "error"},
	}
	s := Summarize(results, state.Persona{})
	if s.TotalSteps != 4 || s.Commits != 2 || s.NoOps != 1 || s.Errors != 1 {
		t.Errorf("summary = %+v", s)
	}
}

// #endregion harness-tests

// #region export-tests

type scriptedJudge struct {
	mu      sync.Mutex
	replies []reply
}

type reply struct {
	text string
	err  error
}

func (j *scriptedJudge) Judge(context.Context, persona.JudgeRequest) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	r := j.replies[0]
	j.replies = j.replies[1:]
	return r.text, r.err
}

func TestExportFixtureRoundTrip(t *testing.T) {
	store, err := state.NewStore(filepath.Join(t.TempDir(), "twin.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	judge := &scriptedJudge{replies: []reply{
		{text: `{"adjustments":{"energy":-25},"memory_additions":["fix at 2am"]}`},
		{text: "no idea"},
		{err: errors.New("upstream 502")},
		{text: `{"adjustments":{"resilience":-10}}`},
		{text: `{"explanation":"steady"}`},
	}}
	cfg := persona.DefaultConfig()
	cfg.PersonaID = "twin"
	cfg.Store = store
	cfg.JudgeTimeout = time.Second
	m, err := persona.NewManager(cfg, judge, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	batch := events.Batch{events.ChatEvent{From: "boss", Message: "now"}}
	for i := 0; i < 5; i++ {
		ctx := persona.WithTickID(context.Background(), "tick-"+string(rune('a'+i)))
		_, _ = m.Update(ctx, batch)
	}

	f, err := ExportFixture(store, 10)
	if err != nil {
		t.Fatalf("ExportFixture: %v", err)
	}
	if len(f.Steps) != 5 {
		t.Fatalf("steps = %d, want 5", len(f.Steps))
	}
	if f.StartState.Version != 0 || f.StartState.Vitals["energy"] != 100 {
		t.Errorf("start = %+v, want version 0 at full vitals", f.StartState)
	}
	if f.Steps[2].Failure != "remote" {
		t.Errorf("step 2 failure = %q, want remote", f.Steps[2].Failure)
	}

	path := filepath.Join(t.TempDir(), "exported.json")
	if err := WriteFixture(path, f); err != nil {
		t.Fatalf("WriteFixture: %v", err)
	}
	loaded, err := LoadFixture(path)
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	_, mismatches := RunFixture(loaded)
	for _, m := range mismatches {
		t.Error(m)
	}
}

func TestExportFixtureEmptyLog(t *testing.T) {
	store, err := state.NewStore(filepath.Join(t.TempDir(), "twin.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()
	if _, err := ExportFixture(store, 5); err == nil {
		t.Fatal("expected error for empty log")
	}
}

// #endregion export-tests
