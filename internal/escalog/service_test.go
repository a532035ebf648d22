package escalog

import (
	"context"
	"testing"
)

func TestRecord_RequiresCallAndValidReason(t *testing.T) {
	rec := NewRecorder(NewMemoryRepo())

	if _, err := rec.Record(context.Background(), "", "primary", "admin", ReasonTimeout); err == nil {
		t.Fatalf("expected error for missing call id")
	}
	if _, err := rec.Record(context.Background(), "c1", "", "admin", ReasonTimeout); err == nil {
		t.Fatalf("expected error for missing from tier")
	}
	if _, err := rec.Record(context.Background(), "c1", "primary", "admin", Reason("whim")); err == nil {
		t.Fatalf("expected error for unknown reason")
	}
}

func TestRecord_AppendsImmutableEvents(t *testing.T) {
	repo := NewMemoryRepo()
	rec := NewRecorder(repo)

	recorded, err := rec.Record(context.Background(), "c1", "primary", "admin", ReasonTimeout)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !recorded {
		t.Fatalf("expected event recorded")
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	if evs[0].FromTier != "primary" || evs[0].ToTier != "admin" || evs[0].Reason != ReasonTimeout {
		t.Fatalf("unexpected event: %+v", evs[0])
	}
	if evs[0].ID == "" || evs[0].TriggeredAt.IsZero() {
		t.Fatalf("expected id and timestamp populated")
	}
}

func TestRecord_DuplicateTimeoutIsBenign(t *testing.T) {
	repo := NewMemoryRepo()
	rec := NewRecorder(repo)

	if _, err := rec.Record(context.Background(), "c1", "primary", "admin", ReasonTimeout); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	recorded, err := rec.Record(context.Background(), "c1", "primary", "admin", ReasonTimeout)
	if err != nil {
		t.Fatalf("expected duplicate swallowed, got %v", err)
	}
	if recorded {
		t.Fatalf("expected duplicate not recorded")
	}
	if len(repo.Events()) != 1 {
		t.Fatalf("expected at-most-once per (call, to_tier) for timeouts")
	}
}

func TestRecord_ManualEscalationsAreNotDeduped(t *testing.T) {
	repo := NewMemoryRepo()
	rec := NewRecorder(repo)

	if _, err := rec.Record(context.Background(), "c1", "primary", "admin", ReasonManual); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	recorded, err := rec.Record(context.Background(), "c1", "primary", "admin", ReasonManual)
	if err != nil || !recorded {
		t.Fatalf("expected second manual event recorded, got recorded=%v err=%v", recorded, err)
	}
	if len(repo.Events()) != 2 {
		t.Fatalf("expected 2 events, got %d", len(repo.Events()))
	}
}

func TestRecord_ExpiryOmitsDestinationTier(t *testing.T) {
	repo := NewMemoryRepo()
	rec := NewRecorder(repo)

	if _, err := rec.Record(context.Background(), "c1", "monitor", "", ReasonTimeout); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	evs, err := rec.ListByCall(context.Background(), "c1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(evs) != 1 || evs[0].ToTier != "" {
		t.Fatalf("expected final event with empty to_tier, got %+v", evs)
	}
}
