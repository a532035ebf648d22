package scheduler

import "time"

type deadlineKind string

const (
	kindWarning  deadlineKind = "warning"
	kindEscalate deadlineKind = "escalate"
)

// deadline is one pending (fire-at, call, kind) entry. window pins the ring
// window (escalation_count) the deadline was registered for, so a firing can
// never act on a later window.
type deadline struct {
	at     time.Time
	callID string
	kind   deadlineKind
	window int

	inert bool
	index int
}

// deadlineHeap is a min-heap ordered by fire time. It is always mutated under
// the scheduler's mutex.
type deadlineHeap []*deadline

func (h deadlineHeap) Len() int           { return len(h) }
func (h deadlineHeap) Less(i, j int) bool { return h[i].at.Before(h[j].at) }

func (h deadlineHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *deadlineHeap) Push(x any) {
	d := x.(*deadline)
	d.index = len(*h)
	*h = append(*h, d)
}

func (h *deadlineHeap) Pop() any {
	old := *h
	n := len(old)
	d := old[n-1]
	old[n-1] = nil
	d.index = -1
	*h = old[:n-1]
	return d
}
