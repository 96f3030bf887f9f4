package scheduler

import (
	"github.com/pkg/errors"
	"github.com/rigado/radio"
	"github.com/rigado/radio/driver"
	"github.com/rigado/radio/pdu"
)

// ScheduleConnectionEvent opens the receiver from T0 + startReceive until
// T0 + endReceive. Every valid PDU from the central is answered with the next
// PDU of the packet buffer, and the exchange continues as long as either side
// signals more data. connectionInterval is the distance between the windows
// of a retried event. Retries are opt in through OptConnectionRetries; with
// the default of 0 the first empty window reports ConnectionTimeout.
func (r *Radio) ScheduleConnectionEvent(channel uint, startReceive, endReceive, connectionInterval radio.DeltaTime) error {
	if err := radio.CheckChannel(channel); err != nil {
		return err
	}
	if err := radio.CheckDelta("start receive", startReceive); err != nil {
		return err
	}
	if err := radio.CheckDelta("end receive", endReceive); err != nil {
		return err
	}
	if err := radio.CheckDelta("connection interval", connectionInterval); err != nil {
		return err
	}
	if endReceive < startReceive {
		return errors.Wrapf(radio.ErrInvalidWindow, "[%v, %v]", startReceive, endReceive)
	}
	if err := r.begin("connection event"); err != nil {
		return err
	}

	r.op = operation{
		kind:     opConnection,
		channel:  channel,
		start:    startReceive,
		end:      endReceive,
		interval: connectionInterval,
	}
	if err := r.openWindow(); err != nil {
		r.abort()
		return err
	}
	return nil
}

// window returns the receive window of the current attempt.
func (r *Radio) window() (from, until radio.Instant) {
	shift := radio.DeltaTime(r.op.attempt) * r.op.interval
	return r.anchor.at(r.op.start + shift), r.anchor.at(r.op.end + shift)
}

func (r *Radio) openWindow() error {
	from, until := r.window()
	r.log.Debugf("conn ch %d window [%v, %v] attempt %d", r.op.channel, from, until, r.op.attempt)
	return r.receive(from, until)
}

func (r *Radio) receive(from, until radio.Instant) error {
	r.op.rx = r.receiveRoom()
	if err := r.drv.Receive(r.op.channel, from, until, r.op.rx); err != nil {
		return errors.Wrap(err, "can't receive connection pdu")
	}
	return nil
}

// receiveRoom prefers the packet buffer; with a full receive queue the PDU is
// still received into scratch memory to process its acknowledgement.
func (r *Radio) receiveRoom() []byte {
	if p := r.buf.AllocateReceive(); p != nil {
		return p
	}
	return r.scratch
}

func (r *Radio) connectionEvent(e driver.Event) {
	op := &r.op

	switch e.Kind {
	case driver.EventRxDone:
		if !e.CRCOK || e.Length > len(op.rx) {
			r.crcError(e)
			return
		}
		if !op.received {
			op.received = true
			op.firstRx = e.Start
		}

		p := op.rx[:e.Length]
		peerMore := pdu.HeaderOf(p).MoreData()
		r.buf.Received(p)

		tx := r.buf.NextTransmit()
		op.moreData = peerMore || pdu.HeaderOf(tx).MoreData()
		if err := r.drv.Transmit(op.channel, e.End.Add(radio.InterFrameSpace), tx); err != nil {
			r.fail(errors.Wrap(err, "can't transmit connection pdu"))
		}

	case driver.EventTxDone:
		if !op.moreData {
			r.endEvent()
			return
		}
		from := e.End.Add(radio.InterFrameSpace - r.slack)
		until := e.End.Add(radio.InterFrameSpace + r.slack)
		if err := r.receive(from, until); err != nil {
			r.fail(err)
		}

	case driver.EventRxTimeout:
		if op.received {
			r.endEvent()
			return
		}
		r.windowClosed()
	}
}

// crcError handles a PDU that failed the CRC check or did not fit the receive
// buffer. It continues listening for the rest of the window as long as nothing
// was received; after an exchange it ends the event.
func (r *Radio) crcError(e driver.Event) {
	if r.op.received {
		r.endEvent()
		return
	}

	_, until := r.window()
	if !e.End.Before(until) {
		r.windowClosed()
		return
	}
	if err := r.receive(e.End, until); err != nil {
		r.fail(err)
	}
}

func (r *Radio) windowClosed() {
	if r.op.attempt < r.retries {
		r.op.attempt++
		if err := r.openWindow(); err != nil {
			r.fail(err)
		}
		return
	}
	r.complete(radio.OutcomeConnectionTimeout, nil, r.anchor.t0)
}

func (r *Radio) endEvent() {
	r.complete(radio.OutcomeConnectionEventEnd, nil, r.op.firstRx)
}
