package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"callgrid/internal/tiers"
)

func testOrder(t *testing.T) tiers.Order {
	t.Helper()
	o, err := tiers.NewOrder([]string{"primary", "admin", "monitor"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	return o
}

func testStore(t *testing.T) (*Store, *MemoryRepo) {
	t.Helper()
	repo := NewMemoryRepo()
	st := NewStore(repo, testOrder(t), 240*time.Second, 300*time.Second)
	return st, repo
}

func fixClock(st *Store, at time.Time) {
	st.clock = func() time.Time { return at }
}

func TestCreate_AnchorsWindowToRingStart(t *testing.T) {
	st, _ := testStore(t)
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	fixClock(st, t0)

	cs, err := st.Create(context.Background(), "client-42", "primary")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if cs.Status != StatusRinging {
		t.Fatalf("expected ringing, got %q", cs.Status)
	}
	if !cs.WarnAt.Equal(t0.Add(240 * time.Second)) {
		t.Fatalf("expected warn_at at +240s, got %v", cs.WarnAt)
	}
	if !cs.EscalateAt.Equal(t0.Add(300 * time.Second)) {
		t.Fatalf("expected escalate_at at +300s, got %v", cs.EscalateAt)
	}
	if cs.EscalationCount != 0 {
		t.Fatalf("expected zero escalations")
	}
}

func TestCreate_DefaultsToFirstTier(t *testing.T) {
	st, _ := testStore(t)
	cs, err := st.Create(context.Background(), "client-42", "")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if cs.Tier != "primary" {
		t.Fatalf("expected primary, got %q", cs.Tier)
	}
}

func TestCreate_RejectsUnknownTier(t *testing.T) {
	st, _ := testStore(t)
	if _, err := st.Create(context.Background(), "client-42", "vip"); !errors.Is(err, tiers.ErrInvalidTier) {
		t.Fatalf("expected ErrInvalidTier, got %v", err)
	}
	if _, err := st.Create(context.Background(), "", "primary"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestAnswer_SucceedsDuringRingAndWarning(t *testing.T) {
	st, _ := testStore(t)
	ctx := context.Background()

	cs, _ := st.Create(ctx, "client-42", "primary")
	got, err := st.Answer(ctx, cs.ID, "resp-1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got.Status != StatusAnswered || got.AnsweredBy != "resp-1" || got.AnsweredAt == nil {
		t.Fatalf("unexpected session: %+v", got)
	}

	// Warning does not change answerability.
	cs2, _ := st.Create(ctx, "client-43", "primary")
	if _, fired, _ := st.MarkWarning(ctx, cs2.ID, 0); !fired {
		t.Fatalf("expected warning to fire")
	}
	if _, err := st.Answer(ctx, cs2.ID, "resp-2"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestAnswer_RejectsTerminalCall(t *testing.T) {
	st, _ := testStore(t)
	ctx := context.Background()

	cs, _ := st.Create(ctx, "client-42", "primary")
	if _, err := st.Cancel(ctx, cs.ID); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := st.Answer(ctx, cs.ID, "resp-1"); !errors.Is(err, ErrAlreadyTerminal) {
		t.Fatalf("expected ErrAlreadyTerminal, got %v", err)
	}
}

func TestMarkWarning_NoOpWhenStatusMovedOn(t *testing.T) {
	st, _ := testStore(t)
	ctx := context.Background()

	cs, _ := st.Create(ctx, "client-42", "primary")
	if _, err := st.Answer(ctx, cs.ID, "resp-1"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	_, fired, err := st.MarkWarning(ctx, cs.ID, 0)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if fired {
		t.Fatalf("expected warning no-op after answer")
	}
}

func TestMarkWarning_IgnoresStaleWindow(t *testing.T) {
	st, _ := testStore(t)
	ctx := context.Background()

	cs, _ := st.Create(ctx, "client-42", "primary")
	if _, err := st.Escalate(ctx, cs.ID, 0); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	// The old window's warning deadline must not mark the new window.
	_, fired, err := st.MarkWarning(ctx, cs.ID, 0)
	if err != nil || fired {
		t.Fatalf("expected stale warning no-op, fired=%v err=%v", fired, err)
	}
	if _, fired, _ := st.MarkWarning(ctx, cs.ID, 1); !fired {
		t.Fatalf("expected current window warning to fire")
	}
}

func TestEscalate_OpensFreshWindowAtNextTier(t *testing.T) {
	st, _ := testStore(t)
	ctx := context.Background()

	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	fixClock(st, t0)
	cs, _ := st.Create(ctx, "client-42", "primary")

	t1 := t0.Add(300 * time.Second)
	fixClock(st, t1)
	adv, err := st.Escalate(ctx, cs.ID, 0)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if adv.FromTier != "primary" || adv.ToTier != "admin" {
		t.Fatalf("unexpected tiers: %+v", adv)
	}
	got := adv.Session
	if got.Status != StatusRinging || got.Tier != "admin" {
		t.Fatalf("expected ringing at admin, got %+v", got)
	}
	if got.EscalationCount != 1 {
		t.Fatalf("expected escalation_count 1, got %d", got.EscalationCount)
	}
	if !got.WarnAt.Equal(t1.Add(240*time.Second)) || !got.EscalateAt.Equal(t1.Add(300*time.Second)) {
		t.Fatalf("expected window re-anchored to escalation instant, got warn=%v escalate=%v", got.WarnAt, got.EscalateAt)
	}
	if got.EscalatedAt == nil || !got.EscalatedAt.Equal(t1) {
		t.Fatalf("expected escalated_at=%v, got %v", t1, got.EscalatedAt)
	}
}

func TestEscalate_LastTierReportsNoFurtherTiers(t *testing.T) {
	st, _ := testStore(t)
	ctx := context.Background()

	cs, _ := st.Create(ctx, "client-42", "monitor")
	if _, err := st.Escalate(ctx, cs.ID, 0); !errors.Is(err, tiers.ErrNoFurtherTiers) {
		t.Fatalf("expected ErrNoFurtherTiers, got %v", err)
	}

	// Caller maps that to expiry.
	got, err := st.Expire(ctx, cs.ID, 0)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got.Status != StatusExpired || got.EndedAt == nil {
		t.Fatalf("expected expired, got %+v", got)
	}
}

func TestEscalate_DuplicateFiringIsRejected(t *testing.T) {
	st, _ := testStore(t)
	ctx := context.Background()

	cs, _ := st.Create(ctx, "client-42", "primary")
	if _, err := st.Escalate(ctx, cs.ID, 0); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := st.Escalate(ctx, cs.ID, 0); !errors.Is(err, ErrWindowClosed) {
		t.Fatalf("expected ErrWindowClosed on duplicate firing, got %v", err)
	}
}

func TestEscalate_RejectsTerminalCall(t *testing.T) {
	st, _ := testStore(t)
	ctx := context.Background()

	cs, _ := st.Create(ctx, "client-42", "primary")
	if _, err := st.Answer(ctx, cs.ID, "resp-1"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := st.Escalate(ctx, cs.ID, 0); !errors.Is(err, ErrAlreadyTerminal) {
		t.Fatalf("expected ErrAlreadyTerminal, got %v", err)
	}
}

// Answer racing the escalation deadline. Whichever swap observes the ring
// phase first wins; an answer that lands after the escalation is still valid
// (the call rings at the next tier), but an answer that lands first makes the
// escalation a typed rejection, never a silent overwrite.
func TestAnswerRacesEscalation_CASKeepsOutcomeConsistent(t *testing.T) {
	for i := 0; i < 50; i++ {
		st, _ := testStore(t)
		ctx := context.Background()
		cs, _ := st.Create(ctx, "client-42", "primary")

		var wg sync.WaitGroup
		var answerErr, escalateErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, answerErr = st.Answer(ctx, cs.ID, "resp-1")
		}()
		go func() {
			defer wg.Done()
			_, escalateErr = st.Escalate(ctx, cs.ID, 0)
		}()
		wg.Wait()

		got, err := st.Get(ctx, cs.ID)
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}

		switch {
		case answerErr == nil:
			// Answer always leaves the call answered, whether it beat the
			// escalation or landed in the fresh window right after it.
			if got.Status != StatusAnswered {
				t.Fatalf("expected answered, got %q", got.Status)
			}
			if escalateErr == nil && got.Tier != "admin" {
				t.Fatalf("expected answer at escalated tier, got %q", got.Tier)
			}
			if escalateErr != nil && !errors.Is(escalateErr, ErrAlreadyTerminal) {
				t.Fatalf("expected typed rejection for losing escalation, got %v", escalateErr)
			}
		case escalateErr == nil:
			// Escalation won and the answer lost the race entirely.
			if !errors.Is(answerErr, ErrAlreadyTerminal) && !errors.Is(answerErr, ErrWindowClosed) {
				t.Fatalf("expected typed rejection for losing answer, got %v", answerErr)
			}
			if got.Status != StatusRinging || got.Tier != "admin" {
				t.Fatalf("expected ringing at admin, got %+v", got)
			}
		default:
			t.Fatalf("both lost: answer=%v escalate=%v", answerErr, escalateErr)
		}
	}
}

func TestCancel_RacesLikeAnyOtherSwap(t *testing.T) {
	st, _ := testStore(t)
	ctx := context.Background()

	cs, _ := st.Create(ctx, "client-42", "primary")
	if _, err := st.Cancel(ctx, cs.ID); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := st.Cancel(ctx, cs.ID); !errors.Is(err, ErrAlreadyTerminal) {
		t.Fatalf("expected ErrAlreadyTerminal on repeat cancel, got %v", err)
	}
	if _, err := st.Expire(ctx, cs.ID, 0); !errors.Is(err, ErrAlreadyTerminal) {
		t.Fatalf("expected ErrAlreadyTerminal on expire after cancel, got %v", err)
	}
}

func TestListRinging_ReturnsOnlyRingPhase(t *testing.T) {
	st, _ := testStore(t)
	ctx := context.Background()

	a, _ := st.Create(ctx, "client-1", "primary")
	b, _ := st.Create(ctx, "client-2", "primary")
	c, _ := st.Create(ctx, "client-3", "primary")
	if _, err := st.Answer(ctx, b.ID, "resp-1"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, fired, _ := st.MarkWarning(ctx, c.ID, 0); !fired {
		t.Fatalf("expected warning to fire")
	}

	active, err := st.ListRinging(ctx)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active, got %d", len(active))
	}
	for _, s := range active {
		if s.ID == a.ID || s.ID == c.ID {
			continue
		}
		t.Fatalf("unexpected session in ring phase: %s", s.ID)
	}
}
