package escalog

import (
	"context"
	"sync"
)

// MemoryRepo is a simple in-memory append-only repository useful for tests.
// It enforces the same timeout dedupe rule as the Postgres partial unique
// index. It is not intended for production use.
type MemoryRepo struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, e Event) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.Reason == ReasonTimeout {
		for _, prev := range r.events {
			if prev.Reason == ReasonTimeout && prev.CallSessionID == e.CallSessionID && prev.ToTier == e.ToTier {
				return false, nil
			}
		}
	}
	r.events = append(r.events, e)
	return true, nil
}

func (r *MemoryRepo) ListByCall(ctx context.Context, callSessionID string) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.CallSessionID == callSessionID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Events returns a copy of everything appended so far.
func (r *MemoryRepo) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
