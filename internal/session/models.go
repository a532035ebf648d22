package session

import "time"

// CallSession is the single source of truth for one emergency call request.
//
// Invariants:
//   - warn_at and escalate_at are anchored to ring_started_at when a ring
//     window opens and are never recomputed, except when an escalation
//     re-anchors both to the escalation instant.
//   - Once a terminal timestamp is set the row accepts no further status
//     writes; all mutation goes through status compare-and-swap.
//   - escalation_count only grows, bounded by the configured tier count.
//
// An escalation lands directly in the next tier's ringing state: escalated_at
// and the escalation_events log record that the transition happened, while
// status returns to "ringing" so the next tier can answer.
type CallSession struct {
	ID       string `json:"id" db:"id"`
	ClientID string `json:"client_id" db:"client_id"`

	// InitialResponderID is empty when the call is pool-routed.
	InitialResponderID string `json:"initial_responder_id,omitempty" db:"initial_responder_id"`
	// AnsweredBy is the responder who won the answer race, if any.
	AnsweredBy string `json:"answered_by,omitempty" db:"answered_by"`

	Tier   string `json:"tier" db:"tier"`
	Status Status `json:"status" db:"status"`

	EscalationCount int `json:"escalation_count" db:"escalation_count"`

	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	RingStartedAt time.Time `json:"ring_started_at" db:"ring_started_at"`
	WarnAt        time.Time `json:"warn_at" db:"warn_at"`
	EscalateAt    time.Time `json:"escalate_at" db:"escalate_at"`

	AnsweredAt  *time.Time `json:"answered_at,omitempty" db:"answered_at"`
	EscalatedAt *time.Time `json:"escalated_at,omitempty" db:"escalated_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty" db:"ended_at"`
}

type Status string

const (
	StatusInitiated Status = "initiated"
	StatusRinging   Status = "ringing"
	StatusWarning   Status = "warning"
	StatusAnswered  Status = "answered"
	StatusEscalated Status = "escalated"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether s accepts no further transitions.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusAnswered, StatusExpired, StatusCancelled:
		return true
	default:
		return false
	}
}

// InRingPhase reports whether the call is still answerable. The warning
// sub-state only gates the one-time warning alert; it does not change
// answerability.
func (s Status) InRingPhase() bool {
	return s == StatusRinging || s == StatusWarning
}
