package escalog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for escalation events.
//
// It MUST be append-only. No Update/Delete methods are provided by design.
// Append reports inserted=false when the at-most-once constraint absorbed a
// duplicate timeout escalation; that is not an error.
type Repository interface {
	Append(ctx context.Context, e Event) (inserted bool, err error)
	ListByCall(ctx context.Context, callSessionID string) ([]Event, error)
}

var ErrInvalidEvent = errors.New("escalog: invalid event")

// Recorder appends escalation events for compliance and idempotency
// enforcement. Duplicate timeout escalations are swallowed so scheduler
// retries stay safe.
type Recorder struct {
	repo  Repository
	clock func() time.Time
}

func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo, clock: time.Now}
}

// Record appends one event. A benign duplicate (already recorded for the
// same deadline firing) returns recorded=false with a nil error.
func (r *Recorder) Record(ctx context.Context, callSessionID, fromTier, toTier string, reason Reason) (bool, error) {
	if r.repo == nil {
		return false, errors.New("escalog: repository not configured")
	}
	if callSessionID == "" || fromTier == "" {
		return false, ErrInvalidEvent
	}
	if !reason.valid() {
		return false, ErrInvalidEvent
	}

	e := Event{
		ID:            uuid.NewString(),
		CallSessionID: callSessionID,
		FromTier:      fromTier,
		ToTier:        toTier,
		Reason:        reason,
		TriggeredAt:   r.clock().UTC(),
	}
	return r.repo.Append(ctx, e)
}

// ListByCall returns the escalation chain of one call, oldest first.
func (r *Recorder) ListByCall(ctx context.Context, callSessionID string) ([]Event, error) {
	if callSessionID == "" {
		return nil, ErrInvalidEvent
	}
	return r.repo.ListByCall(ctx, callSessionID)
}
