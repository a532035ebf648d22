package tiers

import "errors"

var (
	// ErrInvalidTier is returned for a tier name outside the configured order.
	ErrInvalidTier = errors.New("tiers: invalid tier")
	// ErrNoFurtherTiers is returned when asked to advance past the last tier.
	ErrNoFurtherTiers = errors.New("tiers: no further tiers")
)

// Order is the ordered responder tier list a call escalates through.
// It is fixed at process start from configuration; escalation moves strictly
// forward through it and never revisits a tier.
type Order struct {
	names []string
	index map[string]int
}

func NewOrder(names []string) (Order, error) {
	if len(names) == 0 {
		return Order{}, errors.New("tiers: at least one tier is required")
	}
	idx := make(map[string]int, len(names))
	out := make([]string, len(names))
	for i, n := range names {
		if n == "" {
			return Order{}, errors.New("tiers: empty tier name")
		}
		if _, dup := idx[n]; dup {
			return Order{}, errors.New("tiers: duplicate tier name")
		}
		idx[n] = i
		out[i] = n
	}
	return Order{names: out, index: idx}, nil
}

// Contains reports whether name is a recognized tier.
func (o Order) Contains(name string) bool {
	_, ok := o.index[name]
	return ok
}

// Next returns the tier after name. ErrNoFurtherTiers at the last tier.
func (o Order) Next(name string) (string, error) {
	i, ok := o.index[name]
	if !ok {
		return "", ErrInvalidTier
	}
	if i+1 >= len(o.names) {
		return "", ErrNoFurtherTiers
	}
	return o.names[i+1], nil
}

// First returns the lowest tier.
func (o Order) First() string { return o.names[0] }

// Names returns a copy of the ordered tier names.
func (o Order) Names() []string {
	out := make([]string, len(o.names))
	copy(out, o.names)
	return out
}

// Len is the number of tiers; escalation_count is bounded by Len()-1.
func (o Order) Len() int { return len(o.names) }
