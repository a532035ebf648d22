package reporting

import (
	"context"
	"sync"
	"time"

	"callgrid/internal/escalog"
	"callgrid/internal/session"
)

// MemoryRepo is a simple in-memory reporting repository for tests and early development.

type MemoryRepo struct {
	mu sync.Mutex

	Sessions []session.CallSession
	Events   []escalog.Event
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) ListSessions(ctx context.Context, from, to time.Time, clientID string) ([]session.CallSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]session.CallSession, 0)
	for _, cs := range r.Sessions {
		if cs.CreatedAt.Before(from) || !cs.CreatedAt.Before(to) {
			continue
		}
		if clientID != "" && cs.ClientID != clientID {
			continue
		}
		out = append(out, cs)
	}
	return out, nil
}

func (r *MemoryRepo) ListEvents(ctx context.Context, from, to time.Time) ([]escalog.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]escalog.Event, 0)
	for _, ev := range r.Events {
		if ev.TriggeredAt.Before(from) || !ev.TriggeredAt.Before(to) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}
