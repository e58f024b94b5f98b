package persona

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/burnout-twin/burnout-twin/internal/events"
	"github.com/burnout-twin/burnout-twin/internal/proposal"
	"github.com/burnout-twin/burnout-twin/internal/state"
	"github.com/burnout-twin/burnout-twin/internal/update"
)

// #region errors
var (
	// ErrRemoteTimeout is returned when a collaborator call exceeds its bound.
	ErrRemoteTimeout = errors.New("remote call timed out")
	// ErrRemoteFailure wraps any other collaborator failure.
	ErrRemoteFailure = errors.New("remote call failed")
	// ErrPersistFailure is returned when a committed version cannot be stored.
	ErrPersistFailure = errors.New("persist persona version")
)

// #endregion errors

// #region collaborators
// JudgeRequest is the payload handed to the judgment collaborator.
type JudgeRequest struct {
	PersonaState state.Persona `json:"persona_state"`
	Events       events.Batch  `json:"events"`
}

// Judge turns a persona state and new events into free-form text that
// should contain one adjustment JSON object.
type Judge interface {
	Judge(ctx context.Context, req JudgeRequest) (string, error)
}

// Assessor returns a short assessment of a published snapshot.
type Assessor interface {
	Assess(ctx context.Context, snap Snapshot) (string, error)
}

// #endregion collaborators

// #region snapshot
// Snapshot is an immutable, timestamped copy of the persona plus the
// diagnostics of the most recent update.
type Snapshot struct {
	Timestamp       time.Time          `json:"timestamp"`
	ID              string             `json:"id"`
	State           state.Persona      `json:"state"`
	Memory          []string           `json:"memory"`
	LastEvents      events.Batch       `json:"last_events"`
	LastAdjustments map[string]int     `json:"last_adjustments"`
	LastMath        json.RawMessage    `json:"last_math"`
	AIResponse      *proposal.Proposal `json:"ai_response"`
}

// Outcome is what Apply returns. Decision.Action is "commit", "no_op" or
// "error"; Before and After are equal unless a version was committed.
type Outcome struct {
	Proposal proposal.Proposal
	Decision update.Decision
	Before   state.Persona
	After    state.Persona
}

// Committed reports whether this update produced a new version.
func (o Outcome) Committed() bool {
	return o.Decision.Action == update.ActionCommit
}

// PushResult is what Publish returns.
type PushResult struct {
	Payload       Snapshot `json:"payload"`
	AssessmentRaw string   `json:"assessment_raw"`
}

// #endregion snapshot

// #region config
// Config holds the reducer's identity, channel set and remote-call bounds.
type Config struct {
	PersonaID          string
	Channels           []string
	JudgeTimeout       time.Duration
	AssessTimeout      time.Duration
	MaxMemoryAdditions int

	// Store is optional. When set, the manager restores the active version
	// on construction and records every committed version and decision.
	Store  *state.Store
	Logger *zap.Logger
	Now    func() time.Time
}

// DefaultConfig returns the defaults used by the twin binary.
func DefaultConfig() Config {
	return Config{
		PersonaID:     "digital-twin",
		Channels:      append([]string{}, state.DefaultChannels...),
		JudgeTimeout:  30 * time.Second,
		AssessTimeout: 30 * time.Second,
	}
}

// #endregion config

// #region tick
type tickKey struct{}

// WithTickID tags ctx with the polling cycle id recorded in provenance.
func WithTickID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, tickKey{}, id)
}

// TickID returns the cycle id carried by ctx, or "".
func TickID(ctx context.Context) string {
	id, _ := ctx.Value(tickKey{}).(string)
	return id
}

// #endregion tick
