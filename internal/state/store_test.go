package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateInitialAndGetCurrent(t *testing.T) {
	s := tempDB(t)

	rec, err := s.CreateInitialState("twin", DefaultChannels)
	if err != nil {
		t.Fatalf("CreateInitialState: %v", err)
	}
	if rec.VersionID == "" {
		t.Fatal("expected non-empty version ID")
	}
	if rec.ParentID != "" {
		t.Fatalf("expected empty parent, got %s", rec.ParentID)
	}
	for _, c := range DefaultChannels {
		if rec.Vitals[c] != MaxVital {
			t.Fatalf("expected %s=%d, got %d", c, MaxVital, rec.Vitals[c])
		}
	}

	cur, err := s.GetCurrent("twin")
	if err != nil {
		t.Fatalf("GetCurrent: %v", err)
	}
	if cur.VersionID != rec.VersionID {
		t.Fatalf("expected %s, got %s", rec.VersionID, cur.VersionID)
	}
	if cur.Memory == nil || len(cur.Memory) != 0 {
		t.Fatalf("expected empty non-nil memory, got %#v", cur.Memory)
	}
}

func TestGetCurrentUnknownPersona(t *testing.T) {
	s := tempDB(t)
	if _, err := s.GetCurrent("nobody"); err == nil {
		t.Fatal("expected error for unknown persona")
	}
}

func TestCommitAndRollback(t *testing.T) {
	s := tempDB(t)

	v1, err := s.CreateInitialState("twin", DefaultChannels)
	if err != nil {
		t.Fatalf("CreateInitialState: %v", err)
	}

	v2 := StateRecord{
		VersionID:   "v2-test",
		ParentID:    v1.VersionID,
		PersonaID:   "twin",
		Version:     1,
		Vitals:      Vitals{"energy": 77, "resilience": 100, "social": 100},
		Memory:      []string{"Commit: fix login"},
		CreatedAt:   time.Now().UTC(),
		MetricsJSON: `{"changed":1}`,
	}
	if err := s.CommitState(v2); err != nil {
		t.Fatalf("CommitState: %v", err)
	}

	cur, err := s.GetCurrent("twin")
	if err != nil {
		t.Fatalf("GetCurrent: %v", err)
	}
	if cur.VersionID != "v2-test" {
		t.Fatalf("expected v2-test, got %s", cur.VersionID)
	}
	if diff := cmp.Diff(v2.Vitals, cur.Vitals); diff != "" {
		t.Fatalf("vitals mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(v2.Memory, cur.Memory); diff != "" {
		t.Fatalf("memory mismatch (-want +got):\n%s", diff)
	}
	if cur.MetricsJSON != v2.MetricsJSON {
		t.Fatalf("metrics: got %q", cur.MetricsJSON)
	}

	if err := s.Rollback("twin", v1.VersionID); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	cur, _ = s.GetCurrent("twin")
	if cur.VersionID != v1.VersionID {
		t.Fatalf("expected rollback to %s, got %s", v1.VersionID, cur.VersionID)
	}
	if cur.Vitals["energy"] != MaxVital {
		t.Fatalf("expected energy restored, got %d", cur.Vitals["energy"])
	}
}

func TestRollbackUnknownVersion(t *testing.T) {
	s := tempDB(t)
	if _, err := s.CreateInitialState("twin", DefaultChannels); err != nil {
		t.Fatalf("CreateInitialState: %v", err)
	}
	if err := s.Rollback("twin", "nonexistent"); err == nil {
		t.Fatal("expected error for nonexistent version")
	}
}

func TestPersonasAreIndependent(t *testing.T) {
	s := tempDB(t)
	a, _ := s.CreateInitialState("a", DefaultChannels)
	b, _ := s.CreateInitialState("b", []string{"focus"})

	curA, err := s.GetCurrent("a")
	if err != nil {
		t.Fatalf("GetCurrent a: %v", err)
	}
	curB, err := s.GetCurrent("b")
	if err != nil {
		t.Fatalf("GetCurrent b: %v", err)
	}
	if curA.VersionID != a.VersionID || curB.VersionID != b.VersionID {
		t.Fatal("active pointers crossed between personas")
	}
	if _, ok := curB.Vitals["focus"]; !ok {
		t.Fatalf("expected focus channel, got %v", curB.Vitals)
	}
}

func TestListVersionsNewestFirst(t *testing.T) {
	s := tempDB(t)
	v1, _ := s.CreateInitialState("twin", DefaultChannels)

	parent := v1.VersionID
	for i, id := range []string{"v2", "v3", "v4"} {
		rec := StateRecord{
			VersionID: id,
			ParentID:  parent,
			PersonaID: "twin",
			Version:   i + 1,
			Vitals:    DefaultVitals(DefaultChannels),
			CreatedAt: time.Now().UTC(),
		}
		if err := s.CommitState(rec); err != nil {
			t.Fatalf("CommitState %s: %v", id, err)
		}
		parent = id
	}

	versions, err := s.ListVersions(2)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(versions))
	}
	if versions[0].VersionID != "v4" || versions[1].VersionID != "v3" {
		t.Fatalf("unexpected order: %s, %s", versions[0].VersionID, versions[1].VersionID)
	}
}

func TestListVersionsWithProvenance(t *testing.T) {
	s := tempDB(t)
	v1, _ := s.CreateInitialState("twin", DefaultChannels)

	_, err := s.DB().Exec(
		`INSERT INTO provenance_log (version_id, tick_id, trigger_type, response_text, decision, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v1.VersionID, "tick-1", "update", `{"adjustments":{}}`, "no_op", "empty proposal", time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		t.Fatalf("insert provenance: %v", err)
	}

	out, err := s.ListVersionsWithProvenance(10)
	if err != nil {
		t.Fatalf("ListVersionsWithProvenance: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 row, got %d", len(out))
	}
	if out[0].Decision != "no_op" || out[0].Reason != "empty proposal" {
		t.Fatalf("unexpected provenance: %+v", out[0])
	}
}

func TestRecordPersonaRoundTrip(t *testing.T) {
	p := NewPersona("twin", DefaultChannels)
	p.VersionID = "abc"
	p.Version = 3
	p.Memory = []string{"m1"}

	rec := RecordFromPersona(p, time.Now())
	back := rec.Persona()
	if diff := cmp.Diff(p, back); diff != "" {
		t.Fatalf("persona mismatch (-want +got):\n%s", diff)
	}

	back.Vitals["energy"] = 1
	if p.Vitals["energy"] != MaxVital {
		t.Fatal("Persona() must not alias record vitals")
	}
}

func TestClamp(t *testing.T) {
	cases := map[int]int{-5: 0, 0: 0, 50: 50, 100: 100, 9999: 100}
	for in, want := range cases {
		if got := Clamp(in); got != want {
			t.Errorf("Clamp(%d) = %d, want %d", in, got, want)
		}
	}
}
