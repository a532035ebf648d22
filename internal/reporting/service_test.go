package reporting

import (
	"context"
	"testing"
	"time"

	"callgrid/internal/escalog"
	"callgrid/internal/session"
)

func TestCallsSummary_AggregatesByStatus(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	answered := now.Add(90 * time.Second)
	repo.Sessions = []session.CallSession{
		{ID: "c1", ClientID: "cl1", Status: session.StatusAnswered, CreatedAt: now, AnsweredAt: &answered, EscalationCount: 1},
		{ID: "c2", ClientID: "cl1", Status: session.StatusExpired, CreatedAt: now, EscalationCount: 2},
		{ID: "c3", ClientID: "cl2", Status: session.StatusCancelled, CreatedAt: now},
		{ID: "c4", ClientID: "cl2", Status: session.StatusRinging, CreatedAt: now},
	}
	svc := NewService(repo)

	out, err := svc.CallsSummary(context.Background(), CallsSummaryRequest{Range: TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 4 || out.AnsweredCalls != 1 || out.ExpiredCalls != 1 || out.CancelledCalls != 1 || out.InProgressCalls != 1 {
		t.Fatalf("unexpected summary: %+v", out)
	}
	if out.EscalatedCalls != 2 || out.TotalEscalations != 3 {
		t.Fatalf("unexpected escalation counts: %+v", out)
	}
	if out.AverageAnswerSeconds != 90 {
		t.Fatalf("expected avg answer 90s, got %d", out.AverageAnswerSeconds)
	}
}

func TestCallsSummary_ClientFilter(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Sessions = []session.CallSession{
		{ID: "c1", ClientID: "cl1", Status: session.StatusAnswered, CreatedAt: now},
		{ID: "c2", ClientID: "cl2", Status: session.StatusAnswered, CreatedAt: now},
	}
	svc := NewService(repo)

	out, err := svc.CallsSummary(context.Background(), CallsSummaryRequest{ClientID: "cl1", Range: TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 1 {
		t.Fatalf("expected 1 call, got %d", out.TotalCalls)
	}
}

func TestCallsSummary_RejectsEmptyRange(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	_, err := svc.CallsSummary(context.Background(), CallsSummaryRequest{})
	if err != ErrInvalidRequest {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestEscalationSummary_CountsReasonsAndArrivals(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Events = []escalog.Event{
		{ID: "e1", CallSessionID: "c1", FromTier: "primary", ToTier: "admin", Reason: escalog.ReasonTimeout, TriggeredAt: now},
		{ID: "e2", CallSessionID: "c1", FromTier: "admin", ToTier: "monitor", Reason: escalog.ReasonManual, TriggeredAt: now},
		{ID: "e3", CallSessionID: "c2", FromTier: "primary", ToTier: "admin", Reason: escalog.ReasonNoResponders, TriggeredAt: now},
		{ID: "e4", CallSessionID: "c2", FromTier: "monitor", ToTier: "", Reason: escalog.ReasonTimeout, TriggeredAt: now},
	}
	svc := NewService(repo)

	out, err := svc.EscalationSummary(context.Background(), EscalationSummaryRequest{Range: TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalEvents != 4 || out.TimeoutEvents != 2 || out.ManualEvents != 1 || out.NoResponderEvents != 1 {
		t.Fatalf("unexpected reason counts: %+v", out)
	}
	if out.TerminalExpiries != 1 {
		t.Fatalf("expected 1 terminal expiry, got %d", out.TerminalExpiries)
	}
	if out.ArrivalsByTier["admin"] != 2 || out.ArrivalsByTier["monitor"] != 1 {
		t.Fatalf("unexpected arrivals: %+v", out.ArrivalsByTier)
	}
}
