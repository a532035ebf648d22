package scheduler

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"

	"callgrid/internal/session"
	"callgrid/pkg/logger"
)

// Handler receives elapsed deadlines. window is the escalation_count the
// deadline was registered for; the handler's store operations are pinned to
// it so stale firings degrade into no-ops.
//
// A returned error is treated as transient (persistence hiccup) and the same
// deadline is re-queued for near-term retry; benign race outcomes must be
// absorbed by the handler and returned as nil.
type Handler interface {
	HandleWarning(ctx context.Context, callID string, window int) error
	HandleEscalation(ctx context.Context, callID string, window int) error
}

// Scheduler keeps a time-ordered index of warning and escalation deadlines
// across all active calls and fires them through the Handler. The persisted
// warn_at/escalate_at on each CallSession are the only authority; this index
// is a wake-up structure, rebuilt from the Store on start.
type Scheduler struct {
	store   *session.Store
	handler Handler

	mu   sync.Mutex
	heap deadlineHeap

	// wake nudges the loop when an earlier deadline is registered or a
	// call is cancelled.
	wake chan struct{}

	retryDelay time.Duration
	clock      func() time.Time
}

func New(store *session.Store, handler Handler, retryDelay time.Duration) *Scheduler {
	if retryDelay <= 0 {
		retryDelay = 2 * time.Second
	}
	return &Scheduler{
		store:      store,
		handler:    handler,
		wake:       make(chan struct{}, 1),
		retryDelay: retryDelay,
		clock:      time.Now,
	}
}

// Register inserts the warning and escalation deadlines for the session's
// current ring window. Past-due deadlines fire immediately on the next loop
// iteration.
func (s *Scheduler) Register(cs session.CallSession) {
	s.mu.Lock()
	if cs.Status == session.StatusRinging {
		heap.Push(&s.heap, &deadline{at: cs.WarnAt, callID: cs.ID, kind: kindWarning, window: cs.EscalationCount})
	}
	heap.Push(&s.heap, &deadline{at: cs.EscalateAt, callID: cs.ID, kind: kindEscalate, window: cs.EscalationCount})
	s.mu.Unlock()
	s.nudge()
}

// Cancel marks every pending deadline of a call inert so the loop does not
// needlessly wake for it. Correctness does not depend on this; the Store's
// compare-and-swap rejects stale firings regardless.
func (s *Scheduler) Cancel(callID string) {
	s.mu.Lock()
	for _, d := range s.heap {
		if d.callID == callID {
			d.inert = true
		}
	}
	s.mu.Unlock()
	s.nudge()
}

// Recover re-registers deadlines for every session still in the ring phase.
// Mandatory on process start: an in-memory timer is lost on restart, and the
// Store's persisted deadline timestamps are the only authority.
func (s *Scheduler) Recover(ctx context.Context) error {
	active, err := s.store.ListRinging(ctx)
	if err != nil {
		return err
	}
	for _, cs := range active {
		s.Register(cs)
	}
	logger.From(ctx).Info("scheduler recovered deadlines", "sessions", len(active))
	return nil
}

// Run drives the deadline loop until ctx is cancelled. The wait is
// cooperative: the loop sleeps until the earliest deadline, a registration
// nudge, or shutdown.
func (s *Scheduler) Run(ctx context.Context) {
	log := logger.From(ctx)
	for {
		d, wait := s.next()
		if d == nil {
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
			}
			continue
		}
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-s.wake:
				timer.Stop()
				continue
			case <-timer.C:
			}
			// Re-check: an earlier deadline may have been registered.
			continue
		}

		s.pop(d)
		if d.inert {
			continue
		}
		// Fire off-loop so one call's slow dispatch never delays another
		// call's deadline.
		go s.fire(ctx, log, d)
	}
}

func (s *Scheduler) fire(ctx context.Context, log *slog.Logger, d *deadline) {
	var err error
	switch d.kind {
	case kindWarning:
		err = s.handler.HandleWarning(ctx, d.callID, d.window)
	case kindEscalate:
		err = s.handler.HandleEscalation(ctx, d.callID, d.window)
	}
	if err == nil {
		return
	}
	if ctx.Err() != nil {
		return
	}
	// Transient failure: never drop a deadline, re-queue it for retry.
	log.Error("deadline handling failed, re-queueing", "call_id", d.callID, "kind", d.kind, "err", err)
	s.mu.Lock()
	heap.Push(&s.heap, &deadline{
		at:     s.clock().Add(s.retryDelay),
		callID: d.callID,
		kind:   d.kind,
		window: d.window,
	})
	s.mu.Unlock()
	s.nudge()
}

// next peeks the earliest live deadline and how long until it is due.
// Inert entries at the top are discarded along the way.
func (s *Scheduler) next() (*deadline, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.heap.Len() > 0 {
		d := s.heap[0]
		if d.inert {
			heap.Pop(&s.heap)
			continue
		}
		return d, d.at.Sub(s.clock())
	}
	return nil, 0
}

// pop removes d if it is still queued.
func (s *Scheduler) pop(d *deadline) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.index >= 0 && d.index < s.heap.Len() && s.heap[d.index] == d {
		heap.Remove(&s.heap, d.index)
	}
}

func (s *Scheduler) nudge() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
