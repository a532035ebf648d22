package escalog

import "time"

// Event is an immutable, append-only record of one tier transition.
//
// Invariants:
//   - Events are never updated or deleted.
//   - For reason=timeout, at most one event may exist per
//     (call_session_id, to_tier): that uniqueness is what makes automatic
//     escalation at-most-once per tier even when the scheduler retries.
//   - A terminal expiry is recorded with an empty ToTier.
//
// Storage (Postgres): escalation_events with an INSERT-only policy and a
// partial unique index on (call_session_id, to_tier) WHERE reason='timeout'.
type Event struct {
	ID            string `json:"id" db:"id"`
	CallSessionID string `json:"call_session_id" db:"call_session_id"`

	FromTier string `json:"from_tier" db:"from_tier"`
	// ToTier is empty when the call expired at the last tier.
	ToTier string `json:"to_tier,omitempty" db:"to_tier"`

	Reason Reason `json:"reason" db:"reason"`

	TriggeredAt time.Time `json:"triggered_at" db:"triggered_at"`
}

type Reason string

const (
	ReasonTimeout      Reason = "timeout"
	ReasonManual       Reason = "manual"
	ReasonNoResponders Reason = "no_responders"
)

func (r Reason) valid() bool {
	switch r {
	case ReasonTimeout, ReasonManual, ReasonNoResponders:
		return true
	default:
		return false
	}
}
