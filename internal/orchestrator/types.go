package orchestrator

// #region imports
import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/burnout-twin/burnout-twin/internal/eval"
	"github.com/burnout-twin/burnout-twin/internal/events"
	"github.com/burnout-twin/burnout-twin/internal/persona"
	"github.com/burnout-twin/burnout-twin/internal/proposal"
	"github.com/burnout-twin/burnout-twin/internal/snapshot"
	"github.com/burnout-twin/burnout-twin/internal/state"
)

// #endregion

// #region collaborators

// Reducer is the persona state owner the orchestrator drives. Apply must
// report the decision and both sides of its own merge.
type Reducer interface {
	Apply(ctx context.Context, batch events.Batch) (persona.Outcome, error)
	Publish(ctx context.Context) persona.PushResult
}

// Narrator turns a cycle into a short spoken reaction.
type Narrator interface {
	Narrate(ctx context.Context, vitals state.Vitals, batch events.Batch) (string, error)
}

// ReactionSaver records narrated reactions.
type ReactionSaver interface {
	Save(tickID, reactionText string, vitals state.Vitals) error
}

// SnapshotWriter persists published snapshots.
type SnapshotWriter interface {
	Write(doc snapshot.Document) error
}

// #endregion

// #region options

// DefaultNarrateTimeout matches the reducer's judge and assess bounds.
const DefaultNarrateTimeout = 30 * time.Second

// Options wires the optional collaborators. Nil fields are skipped.
type Options struct {
	Writer    SnapshotWriter
	Narrator  Narrator
	Reactions ReactionSaver
	Harness   *eval.EvalHarness
	Logger    *zap.Logger

	// SensorTimeout bounds each sensor poll. Defaults to 15s.
	SensorTimeout time.Duration
	// NarrateTimeout bounds the narrator call. Defaults to DefaultNarrateTimeout.
	NarrateTimeout time.Duration
	// NewTickID defaults to uuid.NewString.
	NewTickID func() string
}

// #endregion

// #region tick-result

// TickResult reports what one polling cycle did.
type TickResult struct {
	TickID    string
	Events    events.Batch
	Rested    bool // no events; nothing else ran
	Proposal  proposal.Proposal
	Err       error // update failure; the cycle still completes
	Committed bool
	Version   int
	Eval      *eval.EvalResult
	Published bool
	Reaction  string
}

// #endregion
