package approval

import (
	"context"
	"errors"
	"sync"

	"github.com/viant/webpilot/internal/clock"
)

// ErrRequestPending is returned when a second request is armed before the
// previous one was resolved.
var ErrRequestPending = errors.New("approval request already pending")

// Gate is a single-slot synchronisation primitive that suspends the calling
// execution flow until an external decision arrives.  A fresh wait handle is
// created per request; Resolve is one-shot – the second and subsequent calls
// before the next request are no-ops reporting failure.  The gate itself
// enforces no timeout: the enclosing task run context bounds the wait.
type Gate struct {
	mu      sync.Mutex
	waitCh  chan Decision
	pending *PendingAction
}

// NewGate creates an idle gate.
func NewGate() *Gate {
	return &Gate{}
}

// Request arms the gate with the supplied pending action and blocks until an
// external decision arrives or ctx is cancelled.  Cancellation disarms the
// gate so a stop request issued mid-wait never leaves the caller parked.
func (g *Gate) Request(ctx context.Context, pending *PendingAction) (Decision, error) {
	if pending != nil && pending.CreatedAt.IsZero() {
		pending.CreatedAt = clock.Now()
	}
	g.mu.Lock()
	if g.waitCh != nil {
		g.mu.Unlock()
		return DecisionUnset, ErrRequestPending
	}
	waitCh := make(chan Decision, 1)
	g.waitCh = waitCh
	g.pending = pending
	g.mu.Unlock()

	select {
	case decision := <-waitCh:
		return decision, nil
	case <-ctx.Done():
		g.mu.Lock()
		if g.waitCh == waitCh {
			g.waitCh = nil
			g.pending = nil
		}
		g.mu.Unlock()
		// A decision racing with cancellation wins.
		select {
		case decision := <-waitCh:
			return decision, nil
		default:
		}
		return DecisionUnset, ctx.Err()
	}
}

// Resolve records a decision for the armed request.  It returns false when
// no request is pending or a decision was already recorded.
func (g *Gate) Resolve(decision Decision) bool {
	if decision == DecisionUnset {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.waitCh == nil {
		return false
	}
	g.waitCh <- decision
	g.waitCh = nil
	g.pending = nil
	return true
}

// Pending returns a copy of the action awaiting approval, or nil when the
// gate is idle.
func (g *Gate) Pending() *PendingAction {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil {
		return nil
	}
	snapshot := *g.pending
	return &snapshot
}

// Waiting reports whether a request is currently armed.
func (g *Gate) Waiting() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.waitCh != nil
}
