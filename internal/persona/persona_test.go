package persona

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/burnout-twin/burnout-twin/internal/events"
	"github.com/burnout-twin/burnout-twin/internal/logging"
	"github.com/burnout-twin/burnout-twin/internal/proposal"
	"github.com/burnout-twin/burnout-twin/internal/state"
	"github.com/burnout-twin/burnout-twin/internal/update"
)

// #region mocks
type mockJudge struct {
	fn func(ctx context.Context, req JudgeRequest) (string, error)
}

func (j *mockJudge) Judge(ctx context.Context, req JudgeRequest) (string, error) {
	return j.fn(ctx, req)
}

func replyWith(text string) *mockJudge {
	return &mockJudge{fn: func(context.Context, JudgeRequest) (string, error) { return text, nil }}
}

type mockAssessor struct {
	Assessor
	text string
	err  error
	got  Snapshot
}

func (a *mockAssessor) Assess(_ context.Context, snap Snapshot) (string, error) {
	a.got = snap
	return a.text, a.err
}

func newManager(t *testing.T, judge Judge, assessor Assessor) *Manager {
	t.Helper()
	cfg := DefaultConfig()
	cfg.JudgeTimeout = 2 * time.Second
	cfg.AssessTimeout = 2 * time.Second
	m, err := NewManager(cfg, judge, assessor)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

var chatBatch = events.Batch{events.ChatEvent{From: "boss", Message: "URGENT: Client is furious. Fix this NOW."}}

// #endregion mocks

// #region properties
func TestUpdateClampsAbsolute(t *testing.T) {
	for _, tc := range []struct {
		text string
		want int
	}{
		{`{"new_stats":{"energy":500}}`, 100},
		{`{"absolute":{"energy":-50}}`, 0},
		{`{"new_stats":{"energy":9999}}`, 100},
	} {
		m := newManager(t, replyWith(tc.text), nil)
		if _, err := m.Update(context.Background(), chatBatch); err != nil {
			t.Fatalf("Update(%s): %v", tc.text, err)
		}
		if got := m.Read().Vitals["energy"]; got != tc.want {
			t.Fatalf("%s: expected energy %d, got %d", tc.text, tc.want, got)
		}
	}
}

func TestUpdateEmptyProposalIsNoOp(t *testing.T) {
	m := newManager(t, replyWith("{}"), nil)
	before := m.Read()

	p, err := m.Update(context.Background(), events.Batch{})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if p.Failed() {
		t.Fatalf("unexpected error marker %q", p.Error)
	}
	if diff := cmp.Diff(before, m.Read()); diff != "" {
		t.Fatalf("state changed (-want +got):\n%s", diff)
	}
}

func TestUpdateVersionMonotonic(t *testing.T) {
	var calls atomic.Int32
	judge := &mockJudge{fn: func(context.Context, JudgeRequest) (string, error) {
		if calls.Add(1)%2 == 0 {
			return "{}", nil
		}
		return `{"adjustments":{"energy":-1}}`, nil
	}}
	m := newManager(t, judge, nil)

	for i := 0; i < 6; i++ {
		if _, err := m.Update(context.Background(), chatBatch); err != nil {
			t.Fatalf("Update %d: %v", i, err)
		}
	}
	got := m.Read()
	if got.Version != 3 {
		t.Fatalf("expected version 3 after 3 changing updates, got %d", got.Version)
	}
	if got.Vitals["energy"] != 97 {
		t.Fatalf("expected energy 97, got %d", got.Vitals["energy"])
	}
}

func TestUpdateAbsoluteOverridesDelta(t *testing.T) {
	m := newManager(t, replyWith(`{"new_stats":{"resilience":40},"adjustments":{"resilience":-100}}`), nil)
	if _, err := m.Update(context.Background(), chatBatch); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := m.Read().Vitals["resilience"]; got != 40 {
		t.Fatalf("expected resilience 40, got %d", got)
	}
}

func TestUpdateUnknownChannelRejected(t *testing.T) {
	m := newManager(t, replyWith(`{"adjustments":{"mood":-10}}`), nil)
	before := m.Read()

	if _, err := m.Update(context.Background(), chatBatch); err != nil {
		t.Fatalf("Update: %v", err)
	}
	after := m.Read()
	if _, ok := after.Vitals["mood"]; ok {
		t.Fatal("mood channel must not be created")
	}
	if diff := cmp.Diff(before, after); diff != "" {
		t.Fatalf("state changed (-want +got):\n%s", diff)
	}
}

func TestUpdateMalformedJudgment(t *testing.T) {
	m := newManager(t, replyWith("I'm not sure, maybe increase energy?"), nil)
	before := m.Read()

	p, err := m.Update(context.Background(), chatBatch)
	var pe *proposal.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if !p.Failed() {
		t.Fatal("expected error marker proposal")
	}
	if errors.Is(err, ErrRemoteTimeout) {
		t.Fatal("parse error must be distinguishable from timeout")
	}
	if diff := cmp.Diff(before, m.Read()); diff != "" {
		t.Fatalf("state changed (-want +got):\n%s", diff)
	}
}

func TestUpdateTimeoutIsolation(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	var calls atomic.Int32
	judge := &mockJudge{fn: func(context.Context, JudgeRequest) (string, error) {
		if calls.Add(1) == 1 {
			<-release // ignores its context on purpose
			return `{"new_stats":{"energy":1}}`, nil
		}
		return `{"adjustments":{"social":-10}}`, nil
	}}

	cfg := DefaultConfig()
	cfg.JudgeTimeout = 50 * time.Millisecond
	m, err := NewManager(cfg, judge, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	start := time.Now()
	p, err := m.Update(context.Background(), chatBatch)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrRemoteTimeout) {
		t.Fatalf("expected ErrRemoteTimeout, got %v", err)
	}
	if ErrorKind(err) != "timeout" {
		t.Fatalf("expected timeout kind, got %s", ErrorKind(err))
	}
	if !p.Failed() {
		t.Fatal("expected error marker proposal")
	}
	if elapsed > time.Second {
		t.Fatalf("Update took %s, expected ~50ms", elapsed)
	}
	if m.Read().Version != 0 || m.Read().Vitals["energy"] != 100 {
		t.Fatal("timed out update must not mutate state")
	}

	done := make(chan error, 1)
	go func() {
		_, err := m.Update(context.Background(), chatBatch)
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("second Update: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second Update blocked; lock not released")
	}
	if got := m.Read().Vitals["social"]; got != 90 {
		t.Fatalf("expected social 90, got %d", got)
	}
}

// #endregion properties

// #region failures
func TestUpdateRemoteFailure(t *testing.T) {
	cause := errors.New("401 unauthorized")
	m := newManager(t, &mockJudge{fn: func(context.Context, JudgeRequest) (string, error) {
		return "", cause
	}}, nil)

	p, err := m.Update(context.Background(), chatBatch)
	if !errors.Is(err, ErrRemoteFailure) || !errors.Is(err, cause) {
		t.Fatalf("expected ErrRemoteFailure wrapping cause, got %v", err)
	}
	if errors.Is(err, ErrRemoteTimeout) {
		t.Fatal("failure must not read as timeout")
	}
	if !strings.Contains(p.Error, "401") {
		t.Fatalf("expected cause in marker, got %q", p.Error)
	}
	if !p.ShouldPublish() {
		t.Fatal("error markers default to publishing")
	}
}

func TestApplyReportsOwnMerge(t *testing.T) {
	for _, tc := range []struct {
		name      string
		judge     Judge
		action    string
		committed bool
		wantErr   bool
		energy    int
	}{
		{"commit", replyWith(`{"adjustments":{"energy":-30}}`), update.ActionCommit, true, false, 70},
		{"no_op", replyWith(`{}`), update.ActionNoOp, false, false, 100},
		{"error", replyWith(`not json`), logging.DecisionError, false, true, 100},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m := newManager(t, tc.judge, nil)
			out, err := m.Apply(context.Background(), chatBatch)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if out.Decision.Action != tc.action || out.Committed() != tc.committed {
				t.Errorf("decision = %+v committed = %v", out.Decision, out.Committed())
			}
			if out.Before.Vitals["energy"] != 100 || out.After.Vitals["energy"] != tc.energy {
				t.Errorf("energy before %d after %d, want 100 -> %d",
					out.Before.Vitals["energy"], out.After.Vitals["energy"], tc.energy)
			}
			if diff := cmp.Diff(m.Read(), out.After); diff != "" {
				t.Errorf("After differs from current state (-read +after):\n%s", diff)
			}
		})
	}
}

func TestFailedUpdateRecordsDiagnostics(t *testing.T) {
	assessor := &mockAssessor{text: `{"assessment":"ok","notes":""}`}
	m := newManager(t, replyWith("no json here"), assessor)

	_, _ = m.Update(context.Background(), chatBatch)
	res := m.Publish(context.Background())

	if len(res.Payload.LastEvents) != 1 {
		t.Fatalf("expected last events recorded, got %d", len(res.Payload.LastEvents))
	}
	if res.Payload.AIResponse == nil || !res.Payload.AIResponse.Failed() {
		t.Fatalf("expected error proposal as ai_response, got %+v", res.Payload.AIResponse)
	}
	if res.Payload.State.Version != 0 {
		t.Fatalf("expected version 0, got %d", res.Payload.State.Version)
	}
}

// #endregion failures

// #region publish
func TestPublishSnapshot(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	assessor := &mockAssessor{text: `{"assessment":"tired","notes":"late commits"}`}
	cfg := DefaultConfig()
	cfg.Now = func() time.Time { return fixed }
	m, err := NewManager(cfg, replyWith(`{"adjustments":{"energy":-15},"memory_additions":["late fix"],"math":{"energy":"100-15"}}`), assessor)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if _, err := m.Update(context.Background(), chatBatch); err != nil {
		t.Fatalf("Update: %v", err)
	}
	res := m.Publish(context.Background())

	if res.AssessmentRaw != assessor.text {
		t.Fatalf("unexpected assessment %q", res.AssessmentRaw)
	}
	snap := res.Payload
	if !snap.Timestamp.Equal(fixed) || snap.ID != "digital-twin" {
		t.Fatalf("unexpected header %v %s", snap.Timestamp, snap.ID)
	}
	if snap.State.LastSync == nil || !snap.State.LastSync.Equal(fixed) {
		t.Fatalf("expected last sync stamped, got %v", snap.State.LastSync)
	}
	if m.Read().LastSync == nil {
		t.Fatal("expected LastSync on live state")
	}
	if diff := cmp.Diff(map[string]int{"energy": -15}, snap.LastAdjustments); diff != "" {
		t.Fatalf("adjustments (-want +got):\n%s", diff)
	}
	if string(snap.LastMath) != `{"energy":"100-15"}` {
		t.Fatalf("unexpected math %s", snap.LastMath)
	}
	if diff := cmp.Diff([]string{"late fix"}, snap.Memory); diff != "" {
		t.Fatalf("memory (-want +got):\n%s", diff)
	}
	if assessor.got.State.Vitals["energy"] != 85 {
		t.Fatalf("assessor saw stale vitals %v", assessor.got.State.Vitals)
	}
}

func TestPublishAssessmentFailure(t *testing.T) {
	m := newManager(t, replyWith("{}"), &mockAssessor{err: errors.New("quota exceeded")})

	res := m.Publish(context.Background())
	if !strings.HasPrefix(res.AssessmentRaw, "AI assessment failed: ") {
		t.Fatalf("unexpected assessment %q", res.AssessmentRaw)
	}
	if !strings.Contains(res.AssessmentRaw, "quota exceeded") {
		t.Fatalf("expected cause in text, got %q", res.AssessmentRaw)
	}
}

func TestPublishSnapshotIsImmutable(t *testing.T) {
	m := newManager(t, replyWith(`{"memory_additions":["m1"]}`), nil)
	if _, err := m.Update(context.Background(), chatBatch); err != nil {
		t.Fatalf("Update: %v", err)
	}

	res := m.Publish(context.Background())
	res.Payload.State.Vitals["energy"] = 1
	res.Payload.Memory[0] = "tampered"
	res.Payload.AIResponse.MemoryAdditions[0] = "tampered"

	live := m.Read()
	if live.Vitals["energy"] != 100 || live.Memory[0] != "m1" {
		t.Fatalf("snapshot aliases live state: %+v", live)
	}
	again := m.Publish(context.Background())
	if again.Payload.AIResponse.MemoryAdditions[0] != "m1" {
		t.Fatal("snapshot aliases diagnostics")
	}
}

// #endregion publish

// #region concurrency
func TestConcurrentUpdatesSerialize(t *testing.T) {
	m := newManager(t, replyWith(`{"adjustments":{"energy":-1},"memory_additions":["tick"]}`), nil)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Update(context.Background(), chatBatch); err != nil {
				t.Errorf("Update: %v", err)
			}
		}()
	}
	wg.Wait()

	got := m.Read()
	if got.Version != n {
		t.Fatalf("expected version %d, got %d", n, got.Version)
	}
	if got.Vitals["energy"] != 100-n {
		t.Fatalf("expected energy %d, got %d", 100-n, got.Vitals["energy"])
	}
	if len(got.Memory) != n {
		t.Fatalf("expected %d memories, got %d", n, len(got.Memory))
	}
}

func TestReadDoesNotWaitOnJudge(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	judge := &mockJudge{fn: func(ctx context.Context, _ JudgeRequest) (string, error) {
		close(entered)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return "{}", nil
	}}
	m := newManager(t, judge, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = m.Update(context.Background(), chatBatch)
	}()
	<-entered

	readDone := make(chan struct{})
	go func() {
		m.Read()
		close(readDone)
	}()
	select {
	case <-readDone:
	case <-time.After(time.Second):
		t.Fatal("Read blocked behind the judge call")
	}
	close(release)
	<-done
}

func TestJudgeSeesSnapshotAndEvents(t *testing.T) {
	var got JudgeRequest
	judge := &mockJudge{fn: func(_ context.Context, req JudgeRequest) (string, error) {
		got = req
		return "{}", nil
	}}
	m := newManager(t, judge, nil)

	if _, err := m.Update(context.Background(), chatBatch); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.PersonaState.ID != "digital-twin" || len(got.Events) != 1 {
		t.Fatalf("unexpected request %+v", got)
	}
	if got.Events[0].Kind() != events.KindChat {
		t.Fatalf("unexpected event kind %s", got.Events[0].Kind())
	}
}

// #endregion concurrency

// #region persistence
func TestStoreRestoreAndProvenance(t *testing.T) {
	store, err := state.NewStore(filepath.Join(t.TempDir(), "twin.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	cfg := DefaultConfig()
	cfg.Store = store
	m, err := NewManager(cfg, replyWith(`{"adjustments":{"energy":-20},"memory_additions":["Commit: wip"]}`), nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	first := m.Read()
	if first.VersionID == "" {
		t.Fatal("expected initial version id from store")
	}

	ctx := WithTickID(context.Background(), "tick-1")
	if _, err := m.Update(ctx, chatBatch); err != nil {
		t.Fatalf("Update: %v", err)
	}
	after := m.Read()

	restored, err := NewManager(cfg, nil, nil)
	if err != nil {
		t.Fatalf("NewManager restore: %v", err)
	}
	got := restored.Read()
	if got.VersionID != after.VersionID || got.Version != 1 || got.Vitals["energy"] != 80 {
		t.Fatalf("restore mismatch: %+v vs %+v", got, after)
	}
	if got.ParentID != first.VersionID {
		t.Fatalf("expected parent %s, got %s", first.VersionID, got.ParentID)
	}
	if diff := cmp.Diff([]string{"Commit: wip"}, got.Memory); diff != "" {
		t.Fatalf("memory (-want +got):\n%s", diff)
	}

	rows, err := logging.ListProvenance(store.DB(), logging.TriggerUpdate, 10)
	if err != nil {
		t.Fatalf("ListProvenance: %v", err)
	}
	if len(rows) != 1 || rows[0].TickID != "tick-1" || rows[0].Decision != "commit" {
		t.Fatalf("unexpected provenance %+v", rows)
	}
	if !strings.Contains(rows[0].EventsJSON, `"type":"SLACK"`) {
		t.Fatalf("expected events json, got %s", rows[0].EventsJSON)
	}
}

func TestUpdatePersistFailure(t *testing.T) {
	store, err := state.NewStore(filepath.Join(t.TempDir(), "twin.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	cfg := DefaultConfig()
	cfg.Store = store
	m, err := NewManager(cfg, replyWith(`{"adjustments":{"energy":-20}}`), nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	before := m.Read()
	store.Close()

	p, err := m.Update(context.Background(), chatBatch)
	if !errors.Is(err, ErrPersistFailure) {
		t.Fatalf("expected ErrPersistFailure, got %v", err)
	}
	if !p.Failed() {
		t.Fatalf("expected error marker, got %+v", p)
	}
	if diff := cmp.Diff(before, m.Read()); diff != "" {
		t.Fatalf("state changed on persist failure (-before +after):\n%s", diff)
	}
}

func TestErrorKind(t *testing.T) {
	cases := map[string]error{
		"":        nil,
		"parse":   fmt.Errorf("wrapped: %w", &proposal.ParseError{Reason: "x"}),
		"timeout": fmt.Errorf("%w: deadline", ErrRemoteTimeout),
		"remote":  fmt.Errorf("%w: boom", ErrRemoteFailure),
		"persist": fmt.Errorf("%w: disk", ErrPersistFailure),
		"unknown": errors.New("other"),
	}
	for want, err := range cases {
		if got := ErrorKind(err); got != want {
			t.Errorf("ErrorKind(%v) = %q, want %q", err, got, want)
		}
	}
}

// #endregion persistence
