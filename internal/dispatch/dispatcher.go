package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"callgrid/internal/session"
	"callgrid/internal/tiers"
	"callgrid/pkg/logger"
)

// ErrNoResponders means the target tier has no active members. The caller
// (the escalation handler) must react by escalating again immediately or, at
// the final tier, expiring the call; it must never leave the call stalled.
var ErrNoResponders = errors.New("dispatch: tier has no responders")

// Report summarizes one fan-out.
type Report struct {
	CallID string    `json:"call_id"`
	Tier   string    `json:"tier"`
	Kind   AlertKind `json:"kind"`

	// Duplicate means the idempotency claim was already held and nothing
	// was sent.
	Duplicate bool `json:"duplicate"`

	Delivered []string `json:"delivered,omitempty"`
	Failed    []string `json:"failed,omitempty"`
}

// Dispatcher fans an alert out to every current member of a tier.
//
// Dispatch is a best-effort side effect of a state transition, never a gate
// on it: a failure to reach some responders never blocks delivery to the
// others and never blocks the state machine. Idempotency is keyed by
// (call_id, tier, escalation_count, kind) so a retried scheduler firing does
// not re-notify a tier it already notified for the same window.
type Dispatcher struct {
	directory tiers.Directory
	transport Transport
	claimer   Claimer

	maxAttempts int
	backoffBase time.Duration
	claimTTL    time.Duration
}

func NewDispatcher(directory tiers.Directory, transport Transport, claimer Claimer, maxAttempts int, backoffBase, claimTTL time.Duration) *Dispatcher {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if backoffBase <= 0 {
		backoffBase = 500 * time.Millisecond
	}
	if claimTTL <= 0 {
		claimTTL = 24 * time.Hour
	}
	return &Dispatcher{
		directory:   directory,
		transport:   transport,
		claimer:     claimer,
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
		claimTTL:    claimTTL,
	}
}

// Notify resolves the current tier membership and delivers one alert per
// responder. Membership is resolved at dispatch time, never cached across
// calls.
func (d *Dispatcher) Notify(ctx context.Context, cs session.CallSession, kind AlertKind) (Report, error) {
	report := Report{CallID: cs.ID, Tier: cs.Tier, Kind: kind}
	log := logger.From(ctx)

	// Membership resolves before the claim: a transient directory failure
	// must leave the claim unconsumed so a retried firing can still alert
	// the tier.
	members, err := d.directory.Members(ctx, cs.Tier)
	if err != nil {
		return report, err
	}
	if len(members) == 0 {
		return report, ErrNoResponders
	}

	key := claimKey(cs.ID, cs.Tier, cs.EscalationCount, kind)
	claimed, err := d.claimer.Claim(ctx, key, d.claimTTL)
	if err != nil {
		return report, err
	}
	if !claimed {
		log.Debug("dispatch already claimed", "call_id", cs.ID, "tier", cs.Tier, "kind", kind)
		report.Duplicate = true
		return report, nil
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, responder := range members {
		wg.Add(1)
		go func(responder string) {
			defer wg.Done()
			a := Alert{
				ResponderID:     responder,
				CallID:          cs.ID,
				ClientID:        cs.ClientID,
				Tier:            cs.Tier,
				Kind:            kind,
				EscalationCount: cs.EscalationCount,
				RingStartedAt:   cs.RingStartedAt,
				WarnAt:          cs.WarnAt,
				EscalateAt:      cs.EscalateAt,
			}
			err := d.sendWithRetry(ctx, a)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Warn("alert delivery failed", "call_id", cs.ID, "responder_id", responder, "err", err)
				report.Failed = append(report.Failed, responder)
				return
			}
			report.Delivered = append(report.Delivered, responder)
		}(responder)
	}
	wg.Wait()

	log.Info("dispatch complete",
		"call_id", cs.ID,
		"tier", cs.Tier,
		"kind", kind,
		"delivered", len(report.Delivered),
		"failed", len(report.Failed),
	)
	return report, nil
}

// sendWithRetry retries a single responder delivery with exponential backoff,
// then gives up. Skipped responders are logged by the caller, not surfaced as
// dispatch failure.
func (d *Dispatcher) sendWithRetry(ctx context.Context, a Alert) error {
	var lastErr error
	for attempt := 0; attempt < d.maxAttempts; attempt++ {
		if attempt > 0 {
			wait := d.backoffBase << (attempt - 1)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if lastErr = d.transport.Send(ctx, a); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func claimKey(callID, tier string, escalationCount int, kind AlertKind) string {
	return fmt.Sprintf("dispatch:%s:%s:%d:%s", callID, tier, escalationCount, kind)
}
