package reporting

import "time"

// Common filtering inputs.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CallsSummaryRequest requests aggregated call lifecycle metrics.

type CallsSummaryRequest struct {
	Range    TimeRange `json:"range"`
	ClientID string    `json:"client_id,omitempty"`
}

type CallsSummary struct {
	ClientID string `json:"client_id,omitempty"`

	TotalCalls      int `json:"total_calls"`
	AnsweredCalls   int `json:"answered_calls"`
	ExpiredCalls    int `json:"expired_calls"`
	CancelledCalls  int `json:"cancelled_calls"`
	InProgressCalls int `json:"in_progress_calls"`

	// EscalatedCalls counts calls that left their initial tier at least once.
	EscalatedCalls   int `json:"escalated_calls"`
	TotalEscalations int `json:"total_escalations"`

	TotalAnswerSeconds   int `json:"total_answer_seconds"`
	AverageAnswerSeconds int `json:"average_answer_seconds"`
}

// EscalationSummaryRequest requests aggregated escalation metrics, derived
// from the immutable escalation_events log.

type EscalationSummaryRequest struct {
	Range TimeRange `json:"range"`
}

type EscalationSummary struct {
	TotalEvents int `json:"total_events"`

	TimeoutEvents     int `json:"timeout_events"`
	ManualEvents      int `json:"manual_events"`
	NoResponderEvents int `json:"no_responder_events"`
	TerminalExpiries  int `json:"terminal_expiries"`

	// ArrivalsByTier counts how often each tier received an escalated call.
	ArrivalsByTier map[string]int `json:"arrivals_by_tier"`
}
