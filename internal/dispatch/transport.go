package dispatch

import (
	"context"
	"time"
)

// Alert is the provider-agnostic payload delivered to one responder.
//
// The deadline timestamps are included so responder UIs can render read-only
// countdowns; the server-side scheduler is the only thing that acts on them.
type Alert struct {
	ResponderID string `json:"responder_id"`

	CallID   string `json:"call_id"`
	ClientID string `json:"client_id"`
	Tier     string `json:"tier"`

	Kind AlertKind `json:"kind"`

	EscalationCount int `json:"escalation_count"`

	RingStartedAt time.Time `json:"ring_started_at"`
	WarnAt        time.Time `json:"warn_at"`
	EscalateAt    time.Time `json:"escalate_at"`
}

type AlertKind string

const (
	// AlertRing announces a fresh ring window to the current tier.
	AlertRing AlertKind = "ring"
	// AlertWarning is the one-time alert in the final stretch of a window.
	AlertWarning AlertKind = "warning"
)

// Transport delivers a single alert to a single responder.
//
// Rules:
//   - No provider SDK calls outside transport adapters.
//   - Delivery is best-effort; retry policy belongs to the Dispatcher, not
//     the transport.
type Transport interface {
	Name() string
	Send(ctx context.Context, a Alert) error
}
