package scheduler

import (
	"github.com/pkg/errors"
	"github.com/rigado/radio"
	"github.com/rigado/radio/driver"
)

// ScheduleAdvertisementAndReceive transmits at T0 + when and, unless receive is
// empty, listens for a response InterFrameSpace after the end of the
// transmission. T0 moves to T0 + when regardless of the outcome.
func (r *Radio) ScheduleAdvertisementAndReceive(channel uint, transmit radio.WriteBuffer, when radio.DeltaTime, receive radio.ReadBuffer) error {
	if err := radio.CheckChannel(channel); err != nil {
		return err
	}
	if len(transmit) == 0 {
		return radio.ErrEmptyTransmit
	}
	if err := radio.CheckDelta("when", when); err != nil {
		return err
	}
	if err := r.begin("advertisement"); err != nil {
		return err
	}

	at := r.anchor.at(when)
	r.op = operation{
		kind:    opAdvertising,
		channel: channel,
		receive: receive,
		next:    at,
	}
	r.log.Debugf("adv ch %d at %v (T0 %v + %v), %d bytes", channel, at, r.anchor.t0, when, len(transmit))

	if err := r.drv.Transmit(channel, at, transmit); err != nil {
		r.abort()
		return errors.Wrap(err, "can't transmit advertising pdu")
	}
	return nil
}

func (r *Radio) advertisingEvent(e driver.Event) {
	op := &r.op

	switch e.Kind {
	case driver.EventTxDone:
		if op.receive.Empty() {
			r.complete(radio.OutcomeAdvertisingTimeout, nil, op.next)
			return
		}
		from := e.End.Add(radio.InterFrameSpace - r.slack)
		until := e.End.Add(radio.InterFrameSpace + r.slack)
		if err := r.drv.Receive(op.channel, from, until, op.receive); err != nil {
			r.fail(errors.Wrap(err, "can't receive advertising response"))
		}

	case driver.EventRxDone:
		if !e.CRCOK {
			r.log.Debugf("adv response with crc error")
			r.complete(radio.OutcomeAdvertisingTimeout, nil, op.next)
			return
		}
		if e.Length > len(op.receive) {
			r.log.Debugf("adv response of %d bytes exceeds receive buffer of %d", e.Length, len(op.receive))
			r.complete(radio.OutcomeAdvertisingTimeout, nil, op.next)
			return
		}
		r.complete(radio.OutcomeAdvertisingReceived, op.receive[:e.Length], op.next)

	case driver.EventRxTimeout:
		r.complete(radio.OutcomeAdvertisingTimeout, nil, op.next)
	}
}
