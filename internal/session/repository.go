package session

import (
	"context"
	"time"
)

// Repository is the persistence contract for call sessions.
//
// Every mutating method is a single-row compare-and-swap keyed on the
// expected prior status (and, for deadline-driven transitions, the expected
// escalation_count). A false swapped result means the row was not in the
// expected state: the caller lost the race and must re-read to classify the
// outcome. Implementations never perform blind writes.
type Repository interface {
	Insert(ctx context.Context, s CallSession) error
	Get(ctx context.Context, id string) (CallSession, error)

	// ListRinging returns all sessions currently in the ring phase, for
	// scheduler recovery after restart.
	ListRinging(ctx context.Context) ([]CallSession, error)

	// MarkAnswered swaps {ringing, warning} -> answered.
	MarkAnswered(ctx context.Context, id, responderID string, at time.Time) (CallSession, bool, error)

	// MarkCancelled swaps any non-terminal status -> cancelled.
	MarkCancelled(ctx context.Context, id string, at time.Time) (CallSession, bool, error)

	// MarkWarning swaps ringing -> warning for the given window only.
	MarkWarning(ctx context.Context, id string, escalationCount int) (CallSession, bool, error)

	// Advance swaps {ringing, warning} -> ringing at toTier with a fresh
	// window, for the given window only. escalation_count is incremented
	// and escalated_at set to at.
	Advance(ctx context.Context, id, toTier string, escalationCount int, at, warnAt, escalateAt time.Time) (CallSession, bool, error)

	// MarkExpired swaps {ringing, warning} -> expired, for the given
	// window only.
	MarkExpired(ctx context.Context, id string, escalationCount int, at time.Time) (CallSession, bool, error)
}
