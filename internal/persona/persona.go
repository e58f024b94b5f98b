package persona

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/burnout-twin/burnout-twin/internal/events"
	"github.com/burnout-twin/burnout-twin/internal/gate"
	"github.com/burnout-twin/burnout-twin/internal/logging"
	"github.com/burnout-twin/burnout-twin/internal/proposal"
	"github.com/burnout-twin/burnout-twin/internal/state"
	"github.com/burnout-twin/burnout-twin/internal/update"
)

// #region manager
// Manager owns the persona aggregate. Every mutation goes through Update
// and Publish; the lock is never held across a remote call.
type Manager struct {
	cfg      Config
	judge    Judge
	assessor Assessor
	gate     *gate.Gate
	log      *zap.Logger

	mu              sync.RWMutex
	state           state.Persona
	lastEvents      events.Batch
	lastAdjustments map[string]int
	lastMath        json.RawMessage
	lastResponse    *proposal.Proposal
}

// NewManager builds a manager. With a store configured the active version
// for cfg.PersonaID is restored, or version 0 is created when none exists.
// The restored vitals define the channel set.
func NewManager(cfg Config, judge Judge, assessor Assessor) (*Manager, error) {
	if cfg.PersonaID == "" {
		return nil, errors.New("persona id is required")
	}
	if len(cfg.Channels) == 0 {
		cfg.Channels = append([]string{}, state.DefaultChannels...)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	m := &Manager{
		cfg:      cfg,
		judge:    judge,
		assessor: assessor,
		log:      logging.OrNop(cfg.Logger).Named("persona"),
		state:    state.NewPersona(cfg.PersonaID, cfg.Channels),
	}

	if cfg.Store != nil {
		p, err := restore(cfg.Store, cfg.PersonaID, cfg.Channels)
		if err != nil {
			return nil, err
		}
		m.state = p
		m.cfg.Channels = channelsOf(p.Vitals)
		m.log.Info("persona restored",
			zap.String("persona_id", p.ID),
			zap.String("version_id", p.VersionID),
			zap.Int("version", p.Version))
	}

	gc := gate.DefaultGateConfig(m.cfg.Channels)
	gc.MaxMemoryAdditions = cfg.MaxMemoryAdditions
	m.gate = gate.NewGate(gc)
	return m, nil
}

func restore(store *state.Store, id string, channels []string) (state.Persona, error) {
	rec, err := store.GetCurrent(id)
	if errors.Is(err, sql.ErrNoRows) {
		rec, err = store.CreateInitialState(id, channels)
	}
	if err != nil {
		return state.Persona{}, fmt.Errorf("restore persona %s: %w", id, err)
	}
	return rec.Persona(), nil
}

func channelsOf(v state.Vitals) []string {
	out := make([]string, 0, len(v))
	for k := range v {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// #endregion manager

// #region read
// Read returns a deep copy of the current persona. It never waits on a
// remote call.
func (m *Manager) Read() state.Persona {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Clone()
}

// Channels returns the configured channel names.
func (m *Manager) Channels() []string {
	return append([]string{}, m.cfg.Channels...)
}

// #endregion read

// #region update
// Update asks the judge how the batch should move the persona and merges
// the answer. Remote, parse and persistence failures leave state unchanged
// and come back as an error-marker proposal plus the typed error.
func (m *Manager) Update(ctx context.Context, batch events.Batch) (proposal.Proposal, error) {
	out, err := m.Apply(ctx, batch)
	return out.Proposal, err
}

// Apply is Update reporting the decision and the persona on both sides of
// this merge. Before and After are taken under the same lock as the merge,
// so a concurrent update never shows up in them.
func (m *Manager) Apply(ctx context.Context, batch events.Batch) (Outcome, error) {
	tick := TickID(ctx)
	if batch == nil {
		batch = events.Batch{}
	}

	req := JudgeRequest{PersonaState: m.Read(), Events: batch}
	text, err := callBounded(ctx, m.cfg.JudgeTimeout, func(ctx context.Context) (string, error) {
		if m.judge == nil {
			return "", errors.New("no judge configured")
		}
		return m.judge.Judge(ctx, req)
	})
	if err != nil {
		return m.fail(tick, batch, "", err)
	}

	parsed, err := proposal.Parse(text)
	if err != nil {
		return m.fail(tick, batch, text, err)
	}
	clean, corrections := m.gate.Sanitize(parsed)

	m.mu.Lock()
	before := m.state.Clone()
	result := update.Merge(m.state, clean)
	if result.Changed() && m.cfg.Store != nil {
		rec := state.RecordFromPersona(result.NewState, m.cfg.Now().UTC())
		if b, err := json.Marshal(result.Metrics); err == nil {
			rec.MetricsJSON = string(b)
		}
		if err := m.cfg.Store.CommitState(rec); err != nil {
			m.mu.Unlock()
			return m.fail(tick, batch, text, fmt.Errorf("%w: %w", ErrPersistFailure, err))
		}
	}
	m.state = result.NewState
	m.recordLocked(batch, &parsed)
	versionID := m.state.VersionID
	after := m.state.Clone()
	m.mu.Unlock()

	m.log.Info("persona updated",
		zap.String("tick_id", tick),
		zap.String("decision", result.Decision.Action),
		zap.Strings("channels_changed", result.Metrics.ChannelsChanged),
		zap.Int("memory_added", result.Metrics.MemoryAdded),
		zap.Int("corrections", len(corrections)))

	m.logProvenance(logging.ProvenanceEntry{
		VersionID:    versionID,
		TickID:       tick,
		TriggerType:  logging.TriggerUpdate,
		EventsJSON:   marshalString(batch),
		ResponseText: text,
		RecordJSON: marshalString(logging.UpdateRecord{
			TickID:      tick,
			Channels:    m.cfg.Channels,
			Proposal:    parsed,
			Corrections: corrections,
			Metrics:     result.Metrics,
			Decision:    result.Decision,
		}),
		Decision: result.Decision.Action,
		Reason:   result.Decision.Reason,
	})
	return Outcome{Proposal: parsed, Decision: result.Decision, Before: before, After: after}, nil
}

// fail records diagnostics for a failed cycle and returns the error marker.
func (m *Manager) fail(tick string, batch events.Batch, text string, err error) (Outcome, error) {
	marker := proposal.Failure(err)

	m.mu.Lock()
	m.recordLocked(batch, &marker)
	versionID := m.state.VersionID
	current := m.state.Clone()
	m.mu.Unlock()

	m.log.Warn("persona update failed", zap.String("tick_id", tick), zap.Error(err))
	m.logProvenance(logging.ProvenanceEntry{
		VersionID:    versionID,
		TickID:       tick,
		TriggerType:  logging.TriggerUpdate,
		EventsJSON:   marshalString(batch),
		ResponseText: text,
		RecordJSON: marshalString(logging.UpdateRecord{
			TickID:    tick,
			Channels:  m.cfg.Channels,
			Proposal:  marker,
			Decision:  update.Decision{Action: update.ActionNoOp, Reason: err.Error()},
			ErrorKind: ErrorKind(err),
		}),
		Decision: logging.DecisionError,
		Reason:   err.Error(),
	})
	return Outcome{
		Proposal: marker,
		Decision: update.Decision{Action: logging.DecisionError, Reason: err.Error()},
		Before:   current,
		After:    current,
	}, err
}

// recordLocked overwrites the diagnostics. Callers hold m.mu.
func (m *Manager) recordLocked(batch events.Batch, p *proposal.Proposal) {
	m.lastEvents = append(events.Batch(nil), batch...)
	m.lastResponse = p
	m.lastAdjustments = cloneInts(p.Deltas)
	m.lastMath = append(json.RawMessage(nil), p.Math...)
}

// #endregion update

// #region publish
// Publish stamps LastSync, snapshots the persona and asks the assessor for
// a short assessment. It never fails: assessment errors become the
// assessment text.
func (m *Manager) Publish(ctx context.Context) PushResult {
	now := m.cfg.Now().UTC()

	m.mu.Lock()
	m.state.LastSync = &now
	snap := Snapshot{
		Timestamp:       now,
		ID:              m.state.ID,
		State:           m.state.Clone(),
		Memory:          append([]string{}, m.state.Memory...),
		LastEvents:      append(events.Batch(nil), m.lastEvents...),
		LastAdjustments: cloneInts(m.lastAdjustments),
		LastMath:        append(json.RawMessage(nil), m.lastMath...),
		AIResponse:      cloneProposal(m.lastResponse),
	}
	m.mu.Unlock()

	var assessment string
	if m.assessor != nil {
		text, err := callBounded(ctx, m.cfg.AssessTimeout, func(ctx context.Context) (string, error) {
			return m.assessor.Assess(ctx, snap)
		})
		if err != nil {
			m.log.Warn("assessment failed", zap.Error(err))
			assessment = fmt.Sprintf("AI assessment failed: %v", err)
		} else {
			assessment = text
		}
	}

	m.logProvenance(logging.ProvenanceEntry{
		VersionID:    snap.State.VersionID,
		TickID:       TickID(ctx),
		TriggerType:  logging.TriggerPublish,
		ResponseText: assessment,
		Decision:     update.ActionNoOp,
		Reason:       "published",
		CreatedAt:    now,
	})
	return PushResult{Payload: snap, AssessmentRaw: assessment}
}

// #endregion publish

// #region helpers
// ErrorKind names the error class for logs and fixtures.
func ErrorKind(err error) string {
	var pe *proposal.ParseError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &pe):
		return "parse"
	case errors.Is(err, ErrRemoteTimeout):
		return "timeout"
	case errors.Is(err, ErrRemoteFailure):
		return "remote"
	case errors.Is(err, ErrPersistFailure):
		return "persist"
	default:
		return "unknown"
	}
}

func (m *Manager) logProvenance(entry logging.ProvenanceEntry) {
	if m.cfg.Store == nil || entry.VersionID == "" {
		return
	}
	if err := logging.LogDecision(m.cfg.Store.DB(), entry); err != nil {
		m.log.Warn("provenance write failed", zap.Error(err))
	}
}

func marshalString(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func cloneInts(in map[string]int) map[string]int {
	if in == nil {
		return nil
	}
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneProposal(p *proposal.Proposal) *proposal.Proposal {
	if p == nil {
		return nil
	}
	c := *p
	c.Deltas = cloneInts(p.Deltas)
	c.Absolute = cloneInts(p.Absolute)
	c.MemoryAdditions = append([]string(nil), p.MemoryAdditions...)
	c.Math = append(json.RawMessage(nil), p.Math...)
	if p.Push != nil {
		b := *p.Push
		c.Push = &b
	}
	return &c
}

// #endregion helpers
