package events

// #region kind
// Kind discriminates the event union. Values match the wire tags the
// judgment prompt has always used.
type Kind string

const (
	KindCommit   Kind = "GITHUB"
	KindMusic    Kind = "SPOTIFY"
	KindChat     Kind = "SLACK"
	KindCalendar Kind = "CALENDAR"
)

// #endregion kind

// #region event
// Event is one normalized sensor observation. Events are immutable once
// produced; a Batch is the unit handed to the persona reducer per cycle.
type Event interface {
	Kind() Kind
}

// Batch is the ordered set of events gathered in one polling cycle.
type Batch []Event

// #endregion event

// #region commit
// Commit is a commit-like record as the heuristic scorer sees it.
type Commit struct {
	SHA     string `json:"sha,omitempty"`
	Message string `json:"message"`
	Date    string `json:"date,omitempty"`
}

// CommitBatch carries the heuristic verdict for a set of new commits.
type CommitBatch struct {
	Damage  int      `json:"damage"`
	Signals []string `json:"signals"`
	Count   int      `json:"count"`
	Commits []Commit `json:"commits,omitempty"`
}

func (CommitBatch) Kind() Kind { return KindCommit }

// #endregion commit

// #region music
// MusicEvent is a track change from the listening feed.
type MusicEvent struct {
	Track  string `json:"track"`
	Artist string `json:"artist,omitempty"`
	Vibe   string `json:"vibe,omitempty"`
}

func (MusicEvent) Kind() Kind { return KindMusic }

// #endregion music

// #region chat
// ChatEvent is a single incoming chat message.
type ChatEvent struct {
	From    string `json:"from,omitempty"`
	Message string `json:"msg"`
}

func (ChatEvent) Kind() Kind { return KindChat }

// #endregion chat

// #region calendar
// CalendarEvent is the list of upcoming calendar entries seen this cycle.
// Entries are passed through as the calendar source returned them.
type CalendarEvent struct {
	Entries []map[string]any `json:"events"`
}

func (CalendarEvent) Kind() Kind { return KindCalendar }

// #endregion calendar
