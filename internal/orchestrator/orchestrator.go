package orchestrator

// #region imports
import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/burnout-twin/burnout-twin/internal/events"
	"github.com/burnout-twin/burnout-twin/internal/logging"
	"github.com/burnout-twin/burnout-twin/internal/persona"
	"github.com/burnout-twin/burnout-twin/internal/sensors"
	"github.com/burnout-twin/burnout-twin/internal/snapshot"
	"github.com/burnout-twin/burnout-twin/internal/state"
)

// #endregion

// #region orchestrator-struct

// Orchestrator is the heartbeat loop: gather sensor events, hand them to
// the reducer, publish when asked and narrate a reaction.
type Orchestrator struct {
	sensors []sensors.Sensor
	reducer Reducer
	opts    Options
	log     *zap.Logger
}

// #endregion

// #region constructor

// New creates an orchestrator polling the given sensors in order.
func New(reducer Reducer, ss []sensors.Sensor, opts Options) *Orchestrator {
	if opts.SensorTimeout <= 0 {
		opts.SensorTimeout = 15 * time.Second
	}
	if opts.NarrateTimeout <= 0 {
		opts.NarrateTimeout = DefaultNarrateTimeout
	}
	if opts.NewTickID == nil {
		opts.NewTickID = uuid.NewString
	}
	return &Orchestrator{
		sensors: ss,
		reducer: reducer,
		opts:    opts,
		log:     logging.OrNop(opts.Logger).Named("orch"),
	}
}

// #endregion

// #region run

// Run ticks immediately and then every interval until ctx is cancelled.
// With once set it returns after the first tick.
func (o *Orchestrator) Run(ctx context.Context, interval time.Duration, once bool) error {
	if interval <= 0 {
		return errors.New("interval must be positive")
	}
	o.log.Info("orchestrator started",
		zap.Duration("interval", interval),
		zap.Int("sensors", len(o.sensors)),
		zap.Bool("once", once))

	o.Tick(ctx)
	if once {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			o.log.Info("orchestrator stopped")
			return nil
		case <-ticker.C:
			o.Tick(ctx)
		}
	}
}

// #endregion

// #region tick

// Tick runs one cycle. Every failure is logged and reported in the result;
// none of them stop the cycle.
func (o *Orchestrator) Tick(ctx context.Context) TickResult {
	res := TickResult{TickID: o.opts.NewTickID()}
	ctx = persona.WithTickID(ctx, res.TickID)
	log := o.log.With(zap.String("tick_id", res.TickID))

	res.Events = o.gather(ctx, log)
	if len(res.Events) == 0 {
		res.Rested = true
		log.Debug("no new events, resting")
		return res
	}

	out, err := o.reducer.Apply(ctx, res.Events)
	res.Proposal, res.Err = out.Proposal, err
	res.Version = out.After.Version
	res.Committed = out.Committed()

	if res.Err != nil {
		log.Warn("update failed",
			zap.String("error_kind", persona.ErrorKind(res.Err)),
			zap.Error(res.Err))
	}
	if res.Committed && o.opts.Harness != nil {
		ev := o.opts.Harness.Run(out.Before.Vitals, out.After.Vitals)
		res.Eval = &ev
		if !ev.Passed {
			log.Warn("post-commit eval flagged", zap.String("reason", ev.Reason))
		}
	}

	if res.Proposal.ShouldPublish() {
		o.publish(ctx, log, &res)
	}
	o.narrate(ctx, log, &res, out.After)
	return res
}

// gather polls every sensor concurrently and concatenates their events in
// sensor order. A failing sensor contributes nothing.
func (o *Orchestrator) gather(ctx context.Context, log *zap.Logger) events.Batch {
	results := make([][]events.Event, len(o.sensors))
	g := new(errgroup.Group)
	for i, s := range o.sensors {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, o.opts.SensorTimeout)
			defer cancel()
			evs, err := s.Poll(pctx)
			if err != nil {
				log.Warn("sensor failed", zap.String("sensor", s.Name()), zap.Error(err))
				return nil
			}
			results[i] = evs
			return nil
		})
	}
	_ = g.Wait() // errors logged per sensor

	var batch events.Batch
	for _, evs := range results {
		batch = append(batch, evs...)
	}
	return batch
}

func (o *Orchestrator) publish(ctx context.Context, log *zap.Logger, res *TickResult) {
	push := o.reducer.Publish(ctx)
	res.Published = true
	if o.opts.Writer == nil {
		return
	}
	doc := snapshot.NewDocument(push)
	if err := o.opts.Writer.Write(doc); err != nil {
		log.Error("write snapshot", zap.Error(err))
		return
	}
	log.Info("snapshot published",
		zap.Int("version", push.Payload.State.Version),
		zap.String("band", string(doc.Band.StressBand)),
		zap.Int("burnout", doc.Band.BurnoutValue))
}

func (o *Orchestrator) narrate(ctx context.Context, log *zap.Logger, res *TickResult, after state.Persona) {
	if o.opts.Narrator == nil {
		return
	}
	text, err := o.narrateBounded(ctx, after.Vitals, res.Events)
	if err != nil {
		log.Warn("narration failed", zap.Error(err))
		return
	}
	res.Reaction = text
	log.Info("reaction", zap.String("text", text))
	if o.opts.Reactions == nil {
		return
	}
	if err := o.opts.Reactions.Save(res.TickID, text, after.Vitals); err != nil {
		log.Warn("save reaction", zap.Error(err))
	}
}

// narrateBounded gives up on the narrator after NarrateTimeout. A narrator
// that ignores its context may outlive the tick but cannot hold it.
func (o *Orchestrator) narrateBounded(ctx context.Context, vitals state.Vitals, batch events.Batch) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.opts.NarrateTimeout)
	defer cancel()

	type reply struct {
		text string
		err  error
	}
	done := make(chan reply, 1)
	go func() {
		text, err := o.opts.Narrator.Narrate(ctx, vitals, batch)
		done <- reply{text: text, err: err}
	}()

	select {
	case r := <-done:
		return r.text, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("narrate after %s: %w", o.opts.NarrateTimeout, ctx.Err())
	}
}

// #endregion
