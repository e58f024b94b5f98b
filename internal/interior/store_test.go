package interior

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/burnout-twin/burnout-twin/internal/state"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "reactions.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestLatestEmpty(t *testing.T) {
	s, err := NewReactionStore(openDB(t))
	if err != nil {
		t.Fatalf("NewReactionStore: %v", err)
	}
	r, err := s.Latest()
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if r != nil {
		t.Fatalf("expected nil, got %+v", r)
	}
}

func TestSaveAndList(t *testing.T) {
	db := openDB(t)
	s, err := NewReactionStore(db)
	if err != nil {
		t.Fatalf("NewReactionStore: %v", err)
	}
	// Second call must not fail on the existing table.
	if _, err := NewReactionStore(db); err != nil {
		t.Fatalf("NewReactionStore again: %v", err)
	}

	if err := s.Save("t1", "Fine for now.", state.Vitals{"energy": 90}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save("t2", "I need coffee.", state.Vitals{"energy": 40}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	latest, err := s.Latest()
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.TickID != "t2" || latest.Vitals["energy"] != 40 {
		t.Errorf("latest = %+v", latest)
	}
	if latest.CreatedAt.IsZero() {
		t.Error("created_at not parsed")
	}

	list, err := s.List(10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].TickID != "t2" || list[1].TickID != "t1" {
		t.Errorf("list = %+v, want t2 then t1", list)
	}
}
