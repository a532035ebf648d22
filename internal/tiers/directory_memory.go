package tiers

import (
	"context"
	"sync"
)

// MemoryDirectory is an in-memory tier membership directory useful for tests.
// It is not intended for production use.
type MemoryDirectory struct {
	mu      sync.Mutex
	members map[string][]string
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{members: make(map[string][]string)}
}

func (d *MemoryDirectory) SetMembers(tier string, responders ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.members[tier] = append([]string(nil), responders...)
}

func (d *MemoryDirectory) Members(ctx context.Context, tier string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.members[tier]...), nil
}
