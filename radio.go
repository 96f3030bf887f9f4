// Package radio defines the real time scheduling contract between a Bluetooth
// Low Energy link layer and a half duplex radio.
//
// All scheduling functions take points in time relative to an anchor T0. The
// first T0 is the time the radio was constructed; every scheduled operation
// defines how T0 moves once it completed:
//
//	advertising:       T0 = T0 + when, whatever the outcome
//	connection event:  timeout keeps T0, end of event sets T0 to the start of
//	                   the first PDU received from the central
//
// Only one operation may be pending at a time, and exactly one Callbacks
// method is called per operation from within Run.
package radio

import "context"

// InterFrameSpace is the time between the end of a PDU and the start of its
// response on the same channel.
const InterFrameSpace = 150 * Microsecond

// ScheduledRadio is implemented by scheduler.Radio.
type ScheduledRadio interface {
	// ScheduleAdvertisementAndReceive transmits transmit on channel at T0 + when
	// and opens the receiver InterFrameSpace after the transmission unless
	// receive is empty. It returns immediately. New T0 = T0 + when.
	ScheduleAdvertisementAndReceive(channel uint, transmit WriteBuffer, when DeltaTime, receive ReadBuffer) error

	// ScheduleConnectionEvent listens on channel from T0 + startReceive to
	// T0 + endReceive. Data to transmit and received data go through the packet
	// buffer. It returns immediately. A window without a valid PDU is retried
	// one connectionInterval later only up to the bound set with
	// OptConnectionRetries, which is 0 by default: ConnectionTimeout then
	// follows the first empty window and the caller schedules the next interval.
	ScheduleConnectionEvent(channel uint, startReceive, endReceive, connectionInterval DeltaTime) error

	// SetAccessAddressAndCRCInit latches the values for the next scheduled
	// operation. It fails with ErrOperationPending while an operation is pending.
	SetAccessAddressAndCRCInit(accessAddress, crcInit uint32) error

	// StaticRandomAddressSeed returns a persistent, device unique value.
	StaticRandomAddressSeed() uint32

	// Run dispatches outcome callbacks. It returns after an outcome was
	// delivered, after WakeUp, or when ctx is done.
	Run(ctx context.Context) error

	// WakeUp forces Run to return at least once. Safe from any goroutine.
	WakeUp()
}
