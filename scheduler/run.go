package scheduler

import (
	"context"

	"github.com/rigado/radio"
)

// Run waits for the outcome of the pending operation and calls the matching
// callback. It returns after one callback, after WakeUp, when ctx is done or
// when the radio was closed. Callbacks may schedule the next operation.
func (r *Radio) Run(ctx context.Context) error {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	select {
	case o := <-r.outcomes:
		r.pending.Store(false)
		r.log.Debugf("%v, T0 %v", o.kind, r.anchor.t0)
		o.kind.Deliver(r.cb, o.data)
		return nil
	case <-r.wake:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.closed:
		return radio.ErrClosed
	}
}

// WakeUp makes a current or the next call to Run return.
func (r *Radio) WakeUp() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}
