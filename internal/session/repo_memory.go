package session

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory call session repository useful for tests. The
// compare-and-swap discipline matches the Postgres repository: every mutation
// checks the expected prior state under the lock.
// It is not intended for production use.
type MemoryRepo struct {
	mu       sync.Mutex
	sessions map[string]CallSession
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{sessions: make(map[string]CallSession)}
}

func (r *MemoryRepo) Insert(ctx context.Context, s CallSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (CallSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return CallSession{}, ErrNotFound
	}
	return s, nil
}

func (r *MemoryRepo) ListRinging(ctx context.Context) ([]CallSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []CallSession
	for _, s := range r.sessions {
		if s.Status.InRingPhase() {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *MemoryRepo) MarkAnswered(ctx context.Context, id, responderID string, at time.Time) (CallSession, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return CallSession{}, false, ErrNotFound
	}
	if !s.Status.InRingPhase() {
		return CallSession{}, false, nil
	}
	s.Status = StatusAnswered
	s.AnsweredBy = responderID
	s.AnsweredAt = &at
	r.sessions[id] = s
	return s, true, nil
}

func (r *MemoryRepo) MarkCancelled(ctx context.Context, id string, at time.Time) (CallSession, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return CallSession{}, false, ErrNotFound
	}
	if s.Status.IsTerminal() {
		return CallSession{}, false, nil
	}
	s.Status = StatusCancelled
	s.EndedAt = &at
	r.sessions[id] = s
	return s, true, nil
}

func (r *MemoryRepo) MarkWarning(ctx context.Context, id string, escalationCount int) (CallSession, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return CallSession{}, false, ErrNotFound
	}
	if s.Status != StatusRinging || s.EscalationCount != escalationCount {
		return CallSession{}, false, nil
	}
	s.Status = StatusWarning
	r.sessions[id] = s
	return s, true, nil
}

func (r *MemoryRepo) Advance(ctx context.Context, id, toTier string, escalationCount int, at, warnAt, escalateAt time.Time) (CallSession, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return CallSession{}, false, ErrNotFound
	}
	if !s.Status.InRingPhase() || s.EscalationCount != escalationCount {
		return CallSession{}, false, nil
	}
	s.Status = StatusRinging
	s.Tier = toTier
	s.EscalationCount++
	s.RingStartedAt = at
	s.WarnAt = warnAt
	s.EscalateAt = escalateAt
	s.EscalatedAt = &at
	r.sessions[id] = s
	return s, true, nil
}

func (r *MemoryRepo) MarkExpired(ctx context.Context, id string, escalationCount int, at time.Time) (CallSession, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return CallSession{}, false, ErrNotFound
	}
	if !s.Status.InRingPhase() || s.EscalationCount != escalationCount {
		return CallSession{}, false, nil
	}
	s.Status = StatusExpired
	s.EndedAt = &at
	r.sessions[id] = s
	return s, true, nil
}
