// Package driver defines what the scheduler needs from radio hardware.
//
// A driver executes one Transmit or Receive at a time and reports its
// completion with exactly one Event. Events are delivered to the Handler from
// the driver's completion context (an interrupt handler on a microcontroller,
// a goroutine elsewhere). The handler may start the next Transmit or Receive
// from within HandleEvent, so drivers must not hold locks while calling it.
package driver

import "github.com/rigado/radio"

// Advertising channel access address and CRC init.
const (
	AdvertisingAccessAddress = 0x8e89bed6
	AdvertisingCRCInit       = 0x555555
)

// EventKind identifies a completion event.
type EventKind uint8

const (
	EventTxDone EventKind = iota + 1
	EventRxDone
	EventRxTimeout
)

func (k EventKind) String() string {
	switch k {
	case EventTxDone:
		return "tx_done"
	case EventRxDone:
		return "rx_done"
	case EventRxTimeout:
		return "rx_timeout"
	default:
		return "unknown"
	}
}

// Event reports the completion of a Transmit or a Receive.
type Event struct {
	Kind EventKind

	// Start is the start of the received PDU (EventRxDone only).
	Start radio.Instant

	// End is the end of the transmitted or received PDU, or the time the
	// receive window closed.
	End radio.Instant

	// Length is the length of the received PDU. Only the first len(rx) bytes
	// are written to the receive buffer; a longer PDU did not fit.
	Length int

	// CRCOK is false when a PDU was received but failed the CRC check.
	CRCOK bool
}

// Handler receives completion events.
type Handler interface {
	HandleEvent(Event)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(Event)

func (f HandlerFunc) HandleEvent(e Event) { f(e) }

// Driver is the radio hardware.
type Driver interface {
	// Start initialises the hardware and installs the completion handler.
	Start(h Handler) error

	// Stop powers the radio down. No events are delivered afterwards.
	Stop() error

	// Now reads the free running microsecond timer.
	Now() (radio.Instant, error)

	// DeviceSeed returns a persistent, device unique value.
	DeviceSeed() (uint32, error)

	// Configure sets access address and CRC init for subsequent operations.
	Configure(accessAddress, crcInit uint32) error

	// Transmit sends pdu on channel starting at at. pdu is copied before
	// Transmit returns. Completion: EventTxDone.
	Transmit(channel uint, at radio.Instant, pdu []byte) error

	// Receive listens on channel for a PDU starting between from and until and
	// writes it to rx. Completion: EventRxDone or EventRxTimeout.
	Receive(channel uint, from, until radio.Instant, rx []byte) error
}
