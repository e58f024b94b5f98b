package state

import "time"

// #region vitals
// Vitals maps a fixed set of named channels to values in [0, 100].
type Vitals map[string]int

// DefaultChannels is the channel set a persona starts with.
var DefaultChannels = []string{"energy", "resilience", "social"}

// Channel bounds. Every vitals value stays inside [MinVital, MaxVital].
const (
	MinVital = 0
	MaxVital = 100
)

// DefaultVitals returns every channel at MaxVital.
func DefaultVitals(channels []string) Vitals {
	v := make(Vitals, len(channels))
	for _, c := range channels {
		v[c] = MaxVital
	}
	return v
}

// Clone returns an independent copy.
func (v Vitals) Clone() Vitals {
	if v == nil {
		return nil
	}
	out := make(Vitals, len(v))
	for k, x := range v {
		out[k] = x
	}
	return out
}

// Clamp restricts x to [MinVital, MaxVital].
func Clamp(x int) int {
	if x < MinVital {
		return MinVital
	}
	if x > MaxVital {
		return MaxVital
	}
	return x
}

// #endregion vitals

// #region persona
// Persona is the authoritative persona aggregate. Vitals and Memory are
// only mutated through the reducer's merge.
type Persona struct {
	ID        string     `json:"id"`
	VersionID string     `json:"version_id,omitempty"`
	ParentID  string     `json:"parent_id,omitempty"`
	Vitals    Vitals     `json:"vitals"`
	Memory    []string   `json:"memory"`
	Version   int        `json:"version"`
	LastSync  *time.Time `json:"last_sync"`
}

// NewPersona returns a fresh persona with default vitals and empty memory.
func NewPersona(id string, channels []string) Persona {
	return Persona{
		ID:     id,
		Vitals: DefaultVitals(channels),
		Memory: []string{},
	}
}

// Clone returns a deep copy so callers never alias the reducer's state.
func (p Persona) Clone() Persona {
	out := p
	out.Vitals = p.Vitals.Clone()
	out.Memory = append([]string{}, p.Memory...)
	if p.LastSync != nil {
		t := *p.LastSync
		out.LastSync = &t
	}
	return out
}

// #endregion persona

// #region state-record
// StateRecord is one committed persona version as persisted in SQLite.
type StateRecord struct {
	VersionID   string
	ParentID    string
	PersonaID   string
	Version     int
	Vitals      Vitals
	Memory      []string
	CreatedAt   time.Time
	MetricsJSON string
}

// Persona converts a record back into the live aggregate. LastSync is not
// persisted per version and comes back nil.
func (r StateRecord) Persona() Persona {
	mem := r.Memory
	if mem == nil {
		mem = []string{}
	}
	return Persona{
		ID:        r.PersonaID,
		VersionID: r.VersionID,
		ParentID:  r.ParentID,
		Vitals:    r.Vitals.Clone(),
		Memory:    append([]string{}, mem...),
		Version:   r.Version,
	}
}

// RecordFromPersona builds the record to commit for p.
func RecordFromPersona(p Persona, createdAt time.Time) StateRecord {
	return StateRecord{
		VersionID: p.VersionID,
		ParentID:  p.ParentID,
		PersonaID: p.ID,
		Version:   p.Version,
		Vitals:    p.Vitals.Clone(),
		Memory:    append([]string{}, p.Memory...),
		CreatedAt: createdAt,
	}
}

// #endregion state-record

// #region version-with-provenance
// VersionWithProvenance pairs a state version with its latest provenance row fields.
type VersionWithProvenance struct {
	StateRecord
	Decision     string
	Reason       string
	ResponseText string
}

// #endregion version-with-provenance
