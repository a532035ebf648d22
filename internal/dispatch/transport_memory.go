package dispatch

import (
	"context"
	"errors"
	"sync"
)

// MemoryTransport records alerts for tests and can be told to fail the first
// N sends to a responder to exercise the retry path.
// It is not intended for production use.
type MemoryTransport struct {
	mu       sync.Mutex
	sent     []Alert
	failures map[string]int
}

func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{failures: make(map[string]int)}
}

func (t *MemoryTransport) Name() string { return "memory" }

// FailNext makes the next n sends to responder fail.
func (t *MemoryTransport) FailNext(responder string, n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures[responder] = n
}

func (t *MemoryTransport) Send(ctx context.Context, a Alert) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n := t.failures[a.ResponderID]; n > 0 {
		t.failures[a.ResponderID] = n - 1
		return errors.New("memory transport: simulated delivery failure")
	}
	t.sent = append(t.sent, a)
	return nil
}

func (t *MemoryTransport) Sent() []Alert {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Alert, len(t.sent))
	copy(out, t.sent)
	return out
}
