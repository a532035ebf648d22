package reporting

import (
	"context"
	"errors"
	"time"

	"callgrid/internal/escalog"
	"callgrid/internal/session"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting.
//
// Implementations should read from immutable sources where possible; the
// escalation event log is append-only by construction.

type Repository interface {
	ListSessions(ctx context.Context, from, to time.Time, clientID string) ([]session.CallSession, error)
	ListEvents(ctx context.Context, from, to time.Time) ([]escalog.Event, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) CallsSummary(ctx context.Context, req CallsSummaryRequest) (CallsSummary, error) {
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return CallsSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return CallsSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListSessions(ctx, req.Range.From, req.Range.To, req.ClientID)
	if err != nil {
		return CallsSummary{}, err
	}

	out := CallsSummary{ClientID: req.ClientID}
	for _, cs := range rows {
		out.TotalCalls++
		out.TotalEscalations += cs.EscalationCount
		if cs.EscalationCount > 0 {
			out.EscalatedCalls++
		}
		switch cs.Status {
		case session.StatusAnswered:
			out.AnsweredCalls++
			if cs.AnsweredAt != nil {
				out.TotalAnswerSeconds += int(cs.AnsweredAt.Sub(cs.CreatedAt) / time.Second)
			}
		case session.StatusExpired:
			out.ExpiredCalls++
		case session.StatusCancelled:
			out.CancelledCalls++
		case session.StatusRinging, session.StatusWarning:
			out.InProgressCalls++
		}
	}
	if out.AnsweredCalls > 0 {
		out.AverageAnswerSeconds = out.TotalAnswerSeconds / out.AnsweredCalls
	}
	return out, nil
}

func (s *Service) EscalationSummary(ctx context.Context, req EscalationSummaryRequest) (EscalationSummary, error) {
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return EscalationSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return EscalationSummary{}, errors.New("reporting: repository not configured")
	}

	events, err := s.repo.ListEvents(ctx, req.Range.From, req.Range.To)
	if err != nil {
		return EscalationSummary{}, err
	}

	out := EscalationSummary{ArrivalsByTier: map[string]int{}}
	for _, ev := range events {
		out.TotalEvents++
		switch ev.Reason {
		case escalog.ReasonTimeout:
			out.TimeoutEvents++
		case escalog.ReasonManual:
			out.ManualEvents++
		case escalog.ReasonNoResponders:
			out.NoResponderEvents++
		}
		if ev.ToTier == "" {
			out.TerminalExpiries++
			continue
		}
		out.ArrivalsByTier[ev.ToTier]++
	}
	return out, nil
}
