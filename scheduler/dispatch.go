package scheduler

import (
	"github.com/rigado/radio"
	"github.com/rigado/radio/driver"
)

type opKind uint8

const (
	opNone opKind = iota
	opAdvertising
	opConnection
)

// operation is the state of the pending operation. It is written by the
// scheduling call before the driver is started and afterwards only from the
// completion context.
type operation struct {
	kind    opKind
	channel uint

	// advertising
	receive radio.ReadBuffer
	next    radio.Instant

	// connection event
	start    radio.DeltaTime
	end      radio.DeltaTime
	interval radio.DeltaTime
	attempt  int
	rx       []byte
	received bool
	firstRx  radio.Instant
	moreData bool
}

type outcome struct {
	kind radio.Outcome
	data radio.ReadBuffer
}

// handleEvent runs in the driver's completion context.
func (r *Radio) handleEvent(e driver.Event) {
	switch r.op.kind {
	case opAdvertising:
		r.advertisingEvent(e)
	case opConnection:
		r.connectionEvent(e)
	default:
		r.log.Debugf("%v without pending operation", e.Kind)
	}
}

// complete ends the pending operation: it moves the anchor and queues the
// outcome for Run.
func (r *Radio) complete(o radio.Outcome, data radio.ReadBuffer, t0 radio.Instant) {
	r.anchor.move(t0)
	r.op = operation{}

	select {
	case r.outcomes <- outcome{kind: o, data: data}:
	default:
		r.log.Errorf("outcome %v dropped", o)
	}
}

// fail ends the pending operation after the driver refused a follow up step.
func (r *Radio) fail(err error) {
	r.log.Errorf("%v", err)
	if r.errorHandler != nil {
		r.errorHandler(err)
	}

	switch r.op.kind {
	case opAdvertising:
		r.complete(radio.OutcomeAdvertisingTimeout, nil, r.op.next)
	case opConnection:
		if r.op.received {
			r.complete(radio.OutcomeConnectionEventEnd, nil, r.op.firstRx)
		} else {
			r.complete(radio.OutcomeConnectionTimeout, nil, r.anchor.t0)
		}
	}
}
