package interior

// #region imports
import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/burnout-twin/burnout-twin/internal/state"
)

// #endregion imports

// #region types

// Reaction holds one cycle's spoken reaction and the vitals it reacted to.
type Reaction struct {
	TickID       string
	ReactionText string
	Vitals       state.Vitals
	CreatedAt    time.Time
}

// #endregion types

// #region store

// ReactionStore persists the twin's reactions in SQLite.
type ReactionStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewReactionStore creates the reactions table if needed and returns a store.
func NewReactionStore(db *sql.DB) (*ReactionStore, error) {
	s := &ReactionStore{db: db, now: time.Now}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ReactionStore) init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS reactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tick_id TEXT NOT NULL,
		reaction_text TEXT NOT NULL,
		vitals_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`)
	return err
}

// Save stores a reaction for the given tick.
func (s *ReactionStore) Save(tickID, reactionText string, vitals state.Vitals) error {
	vj, err := json.Marshal(vitals)
	if err != nil {
		return fmt.Errorf("marshal vitals: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO reactions (tick_id, reaction_text, vitals_json, created_at) VALUES (?, ?, ?, ?)`,
		tickID, reactionText, string(vj), s.now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// Latest returns the most recent reaction, or nil if none exists.
func (s *ReactionStore) Latest() (*Reaction, error) {
	list, err := s.List(1)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

// List returns up to limit reactions, newest first.
func (s *ReactionStore) List(limit int) ([]Reaction, error) {
	rows, err := s.db.Query(
		`SELECT tick_id, reaction_text, vitals_json, created_at FROM reactions ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reaction
	for rows.Next() {
		var r Reaction
		var vj, createdAt string
		if err := rows.Scan(&r.TickID, &r.ReactionText, &vj, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(vj), &r.Vitals); err != nil {
			return nil, fmt.Errorf("decode vitals for tick %s: %w", r.TickID, err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// #endregion store
