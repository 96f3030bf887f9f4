package scheduler

import "github.com/rigado/radio"

// anchor is the reference point T0 all scheduling offsets are relative to. It
// is written only by the completion context when an operation completes, and
// read by the scheduling context while no operation is pending.
type anchor struct {
	t0 radio.Instant
}

// at returns the absolute time T0 + d.
func (a *anchor) at(d radio.DeltaTime) radio.Instant {
	return a.t0.Add(d)
}

func (a *anchor) move(t0 radio.Instant) {
	a.t0 = t0
}
