package engine

import (
	"context"
	"errors"
	"time"

	"callgrid/internal/dispatch"
	"callgrid/internal/escalog"
	"callgrid/internal/scheduler"
	"callgrid/internal/session"
	"callgrid/internal/tiers"
	"callgrid/pkg/logger"
)

// Engine wires the call lifecycle together: it owns the command surface
// (initiate, answer, cancel, manual escalate) and is the scheduler's handler
// for elapsed deadlines. State transitions always complete in the Store
// before any notification fan-out is attempted; dispatch failures never roll
// a transition back.
type Engine struct {
	store      *session.Store
	dispatcher *dispatch.Dispatcher
	recorder   *escalog.Recorder
	sched      *scheduler.Scheduler
}

func New(store *session.Store, dispatcher *dispatch.Dispatcher, recorder *escalog.Recorder) *Engine {
	return &Engine{store: store, dispatcher: dispatcher, recorder: recorder}
}

// BindScheduler attaches the scheduler after construction; the scheduler
// itself is built with this engine as its handler.
func (e *Engine) BindScheduler(s *scheduler.Scheduler) { e.sched = s }

// Initiate opens a new call session, registers its deadlines and alerts the
// initial tier. An initial tier with no responders escalates immediately
// instead of leaving the call stalled.
func (e *Engine) Initiate(ctx context.Context, clientID, tier string) (session.CallSession, error) {
	cs, err := e.store.Create(ctx, clientID, tier)
	if err != nil {
		return session.CallSession{}, err
	}
	e.sched.Register(cs)

	if _, err := e.dispatcher.Notify(ctx, cs, dispatch.AlertRing); err != nil {
		if errors.Is(err, dispatch.ErrNoResponders) {
			escErr := e.escalateFrom(ctx, cs.ID, cs.EscalationCount, escalog.ReasonNoResponders)
			if escErr != nil && !errors.Is(escErr, session.ErrAlreadyTerminal) && !errors.Is(escErr, session.ErrWindowClosed) {
				logger.From(ctx).Error("empty-tier escalation failed", "call_id", cs.ID, "err", escErr)
			}
		} else {
			logger.From(ctx).Warn("initial dispatch failed", "call_id", cs.ID, "err", err)
		}
	}
	// Return the current row: the empty-tier cascade may have advanced it.
	return e.store.Get(ctx, cs.ID)
}

// Answer resolves the answer-vs-timeout race through the Store's CAS and
// retires the call's pending deadlines on success.
func (e *Engine) Answer(ctx context.Context, callID, responderID string) (session.CallSession, error) {
	cs, err := e.store.Answer(ctx, callID, responderID)
	if err != nil {
		return session.CallSession{}, err
	}
	e.sched.Cancel(callID)
	return cs, nil
}

// Cancel terminates a non-terminal call.
func (e *Engine) Cancel(ctx context.Context, callID string) (session.CallSession, error) {
	cs, err := e.store.Cancel(ctx, callID)
	if err != nil {
		return session.CallSession{}, err
	}
	e.sched.Cancel(callID)
	return cs, nil
}

// Get returns the current session state.
func (e *Engine) Get(ctx context.Context, callID string) (session.CallSession, error) {
	return e.store.Get(ctx, callID)
}

// History returns the call's escalation chain.
func (e *Engine) History(ctx context.Context, callID string) ([]escalog.Event, error) {
	return e.recorder.ListByCall(ctx, callID)
}

// EscalateManually forces the call to the next tier right now, re-anchoring
// the ring window to the escalation instant. Losing the race to a concurrent
// escalation surfaces as ErrWindowClosed rather than a silent success.
func (e *Engine) EscalateManually(ctx context.Context, callID string) (session.CallSession, error) {
	cur, err := e.store.Get(ctx, callID)
	if err != nil {
		return session.CallSession{}, err
	}
	if cur.Status.IsTerminal() {
		return session.CallSession{}, session.ErrAlreadyTerminal
	}
	if err := e.escalateFrom(ctx, callID, cur.EscalationCount, escalog.ReasonManual); err != nil {
		return session.CallSession{}, err
	}
	return e.store.Get(ctx, callID)
}

// HandleWarning is the scheduler callback for an elapsed warn_at. The CAS
// inside MarkWarning guarantees the warning alert goes out at most once per
// window; a raced-past status is the expected no-op outcome.
func (e *Engine) HandleWarning(ctx context.Context, callID string, window int) error {
	cs, fired, err := e.store.MarkWarning(ctx, callID, window)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil
		}
		return err
	}
	if !fired {
		logger.From(ctx).Debug("warning deadline discarded", "call_id", callID, "window", window)
		return nil
	}

	if _, err := e.dispatcher.Notify(ctx, cs, dispatch.AlertWarning); err != nil {
		// Warning delivery is best-effort; an empty tier is dealt with by
		// the escalation deadline 60s later.
		logger.From(ctx).Warn("warning dispatch failed", "call_id", callID, "err", err)
	}
	return nil
}

// HandleEscalation is the scheduler callback for an elapsed escalate_at.
func (e *Engine) HandleEscalation(ctx context.Context, callID string, window int) error {
	err := e.escalateFrom(ctx, callID, window, escalog.ReasonTimeout)
	switch {
	case errors.Is(err, session.ErrNotFound):
		return nil
	case errors.Is(err, session.ErrAlreadyTerminal), errors.Is(err, session.ErrWindowClosed):
		// Expected race loser: answered, cancelled or already advanced.
		logger.From(ctx).Debug("escalation deadline discarded", "call_id", callID, "window", window, "err", err)
		return nil
	}
	return err
}

// escalateFrom advances the call out of the given window, cascading through
// empty tiers until a tier with responders is reached or the call expires.
// The loop is bounded by the tier count: every advance consumes one tier.
// Race losses (ErrAlreadyTerminal, ErrWindowClosed) propagate to the caller:
// deadline handlers discard them as benign, the manual path surfaces them as
// a conflict.
func (e *Engine) escalateFrom(ctx context.Context, callID string, window int, reason escalog.Reason) error {
	log := logger.From(ctx)

	for {
		adv, err := e.store.Escalate(ctx, callID, window)
		switch {
		case errors.Is(err, tiers.ErrNoFurtherTiers):
			return e.expire(ctx, callID, window, reason)
		case err != nil:
			return err
		}

		// The tier has advanced; the new window's deadlines and alert are
		// not held hostage by the audit append. Register and dispatch
		// unconditionally, retry the append in place.
		e.sched.Register(adv.Session)
		e.record(ctx, callID, adv.FromTier, adv.ToTier, reason)

		_, err = e.dispatcher.Notify(ctx, adv.Session, dispatch.AlertRing)
		if err == nil {
			return nil
		}
		if !errors.Is(err, dispatch.ErrNoResponders) {
			log.Warn("escalation dispatch failed", "call_id", callID, "tier", adv.ToTier, "err", err)
			return nil
		}

		// Empty tier: keep moving rather than letting the call sit silent.
		log.Info("tier has no responders, escalating again", "call_id", callID, "tier", adv.ToTier)
		window = adv.Session.EscalationCount
		reason = escalog.ReasonNoResponders
	}
}

// expire terminates the call at the last tier and records the final event
// with no destination tier.
func (e *Engine) expire(ctx context.Context, callID string, window int, reason escalog.Reason) error {
	cs, err := e.store.Expire(ctx, callID, window)
	if err != nil {
		return err
	}
	e.record(ctx, callID, cs.Tier, "", reason)
	logger.From(ctx).Info("call expired with no further tiers", "call_id", callID, "tier", cs.Tier)
	return nil
}

const (
	recordAttempts = 3
	recordBackoff  = 100 * time.Millisecond
)

// record appends one escalation event, absorbing transient audit failures
// with an in-place backoff retry. The log's dedupe constraint makes a
// replayed append a no-op, and the call's liveness never waits on the
// append landing.
func (e *Engine) record(ctx context.Context, callID, fromTier, toTier string, reason escalog.Reason) {
	for attempt := 1; ; attempt++ {
		_, err := e.recorder.Record(ctx, callID, fromTier, toTier, reason)
		if err == nil {
			return
		}
		if attempt == recordAttempts {
			logger.From(ctx).Error("escalation event append failed",
				"call_id", callID, "to_tier", toTier, "reason", reason, "err", err)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(recordBackoff << (attempt - 1)):
		}
	}
}
