package session

import (
	"context"
	"errors"
	"time"

	"callgrid/internal/tiers"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("session: not found")
	ErrInvalidArgument = errors.New("session: invalid argument")

	// ErrAlreadyTerminal is the expected loser's result when an answer,
	// cancel or deadline firing races a transition that already landed.
	ErrAlreadyTerminal = errors.New("session: call already terminal")

	// ErrWindowClosed means the targeted ring window no longer exists:
	// the call escalated (or was re-escalated manually) before the caller's
	// compare-and-swap landed. For deadline-driven callers this is a benign
	// stale firing, not a failure.
	ErrWindowClosed = errors.New("session: ring window already closed")
)

// Store owns every state transition of a call session. All writes are
// compare-and-swap keyed on the expected prior status; whichever of
// answer/cancel/warn/escalate observes the pre-transition status first wins
// and the losers receive a typed rejection.
type Store struct {
	repo           Repository
	order          tiers.Order
	warnOffset     time.Duration
	escalateOffset time.Duration

	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewStore(repo Repository, order tiers.Order, warnOffset, escalateOffset time.Duration) *Store {
	return &Store{
		repo:           repo,
		order:          order,
		warnOffset:     warnOffset,
		escalateOffset: escalateOffset,
		clock:          time.Now,
	}
}

// Tiers exposes the configured tier order.
func (s *Store) Tiers() tiers.Order { return s.order }

// Create opens a new call session ringing at tier (or the first tier when
// empty). The initiated->ringing transition happens atomically inside the
// insert; warn_at and escalate_at are anchored to the ring start and stay
// fixed for the life of this window.
func (s *Store) Create(ctx context.Context, clientID, tier string) (CallSession, error) {
	if clientID == "" {
		return CallSession{}, ErrInvalidArgument
	}
	if tier == "" {
		tier = s.order.First()
	}
	if !s.order.Contains(tier) {
		return CallSession{}, tiers.ErrInvalidTier
	}

	now := s.clock().UTC()
	cs := CallSession{
		ID:            uuid.NewString(),
		ClientID:      clientID,
		Tier:          tier,
		Status:        StatusRinging,
		CreatedAt:     now,
		RingStartedAt: now,
		WarnAt:        now.Add(s.warnOffset),
		EscalateAt:    now.Add(s.escalateOffset),
	}
	if err := s.repo.Insert(ctx, cs); err != nil {
		return CallSession{}, err
	}
	return cs, nil
}

func (s *Store) Get(ctx context.Context, id string) (CallSession, error) {
	if id == "" {
		return CallSession{}, ErrInvalidArgument
	}
	return s.repo.Get(ctx, id)
}

// ListRinging returns every session still in the ring phase, for scheduler
// recovery.
func (s *Store) ListRinging(ctx context.Context) ([]CallSession, error) {
	return s.repo.ListRinging(ctx)
}

// Answer swaps the call to answered. It wins against a concurrently firing
// escalation deadline iff it observes the ring phase first.
func (s *Store) Answer(ctx context.Context, id, responderID string) (CallSession, error) {
	if id == "" || responderID == "" {
		return CallSession{}, ErrInvalidArgument
	}
	now := s.clock().UTC()
	cs, swapped, err := s.repo.MarkAnswered(ctx, id, responderID, now)
	if err != nil {
		return CallSession{}, err
	}
	if !swapped {
		return s.classifyLoss(ctx, id)
	}
	return cs, nil
}

// Cancel swaps any non-terminal status to cancelled.
func (s *Store) Cancel(ctx context.Context, id string) (CallSession, error) {
	if id == "" {
		return CallSession{}, ErrInvalidArgument
	}
	now := s.clock().UTC()
	cs, swapped, err := s.repo.MarkCancelled(ctx, id, now)
	if err != nil {
		return CallSession{}, err
	}
	if !swapped {
		return s.classifyLoss(ctx, id)
	}
	return cs, nil
}

// MarkWarning flips ringing -> warning for the given window. A false result
// means the status already advanced past ringing (answered, cancelled or
// escalated raced ahead); that is a no-op, not an error.
func (s *Store) MarkWarning(ctx context.Context, id string, escalationCount int) (CallSession, bool, error) {
	if id == "" {
		return CallSession{}, false, ErrInvalidArgument
	}
	return s.repo.MarkWarning(ctx, id, escalationCount)
}

// Advance is the result of a successful escalation.
type Advance struct {
	Session  CallSession
	FromTier string
	ToTier   string
}

// Escalate advances the call to the next tier with a fresh full ring window
// anchored to now. escalationCount pins the window being escalated so a
// duplicate or stale firing cannot advance the call twice.
//
// Returns tiers.ErrNoFurtherTiers at the last tier; the caller maps that to
// a terminal expiry via Expire.
func (s *Store) Escalate(ctx context.Context, id string, escalationCount int) (Advance, error) {
	if id == "" {
		return Advance{}, ErrInvalidArgument
	}

	cur, err := s.repo.Get(ctx, id)
	if err != nil {
		return Advance{}, err
	}
	if cur.Status.IsTerminal() {
		return Advance{}, ErrAlreadyTerminal
	}
	if cur.EscalationCount != escalationCount {
		return Advance{}, ErrWindowClosed
	}

	next, err := s.order.Next(cur.Tier)
	if err != nil {
		// tiers.ErrNoFurtherTiers at the last tier.
		return Advance{}, err
	}

	now := s.clock().UTC()
	cs, swapped, err := s.repo.Advance(ctx, id, next, escalationCount, now, now.Add(s.warnOffset), now.Add(s.escalateOffset))
	if err != nil {
		return Advance{}, err
	}
	if !swapped {
		if _, err := s.classifyLoss(ctx, id); err != nil {
			return Advance{}, err
		}
		return Advance{}, ErrWindowClosed
	}
	return Advance{Session: cs, FromTier: cur.Tier, ToTier: next}, nil
}

// Expire terminates the call when the last tier's window elapses with no
// answer. Like Escalate it is pinned to the window via escalationCount.
func (s *Store) Expire(ctx context.Context, id string, escalationCount int) (CallSession, error) {
	if id == "" {
		return CallSession{}, ErrInvalidArgument
	}
	now := s.clock().UTC()
	cs, swapped, err := s.repo.MarkExpired(ctx, id, escalationCount, now)
	if err != nil {
		return CallSession{}, err
	}
	if !swapped {
		return s.classifyLoss(ctx, id)
	}
	return cs, nil
}

// classifyLoss turns a failed compare-and-swap into a typed rejection.
func (s *Store) classifyLoss(ctx context.Context, id string) (CallSession, error) {
	cur, err := s.repo.Get(ctx, id)
	if err != nil {
		return CallSession{}, err
	}
	if cur.Status.IsTerminal() {
		return CallSession{}, ErrAlreadyTerminal
	}
	return CallSession{}, ErrWindowClosed
}
