// Package playback enforces strict submission-order playback within one
// daemon, decoupling it from generation, which may run out of order, and
// drives the platform audio player subprocess.
package playback

import (
	"sync"

	"github.com/ManuGH/xg2g/internal/metrics"
)

// Order is a monotonic ticket dispenser that lets generation of request
// N+1 proceed concurrently with playback of request N, while guaranteeing
// that the audible order always matches submission order. issue, wait, and
// finish all run under one mutex/condition-variable pair, as the ticket
// integer itself is the wait predicate.
type Order struct {
	mu         sync.Mutex
	cond       *sync.Cond
	next       uint64 // next ticket value issue() will hand out
	servedNext uint64 // the only ticket wait_turn may currently unblock for
	pending    int
}

// NewOrder returns a ready Order starting at ticket 0.
func NewOrder() *Order {
	o := &Order{}
	o.cond = sync.NewCond(&o.mu)
	return o
}

// Issue returns the next strictly increasing ticket.
func (o *Order) Issue() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	t := o.next
	o.next++
	o.pending++
	metrics.SetInProcessQueueDepth(o.pending)
	return t
}

// WaitTurn blocks until ticket t is at the head of the line. Spurious
// wake-ups are handled by re-checking the predicate in a loop.
func (o *Order) WaitTurn(t uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for o.servedNext != t {
		o.cond.Wait()
	}
}

// FinishTurn advances the served counter by one and wakes every waiter so
// they can re-check their predicate. It must be called exactly once per
// ticket issued, on every terminating path including generation and
// playback failure — otherwise every later ticket stalls forever.
func (o *Order) FinishTurn() {
	o.mu.Lock()
	o.servedNext++
	if o.pending > 0 {
		o.pending--
	}
	metrics.SetInProcessQueueDepth(o.pending)
	o.mu.Unlock()
	o.cond.Broadcast()
}
