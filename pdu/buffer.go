// Package pdu implements the link layer data PDU buffer shared between the
// radio completion context and the link layer.
//
// The completion context pulls the next PDU to send with NextTransmit and
// hands in received PDUs with AllocateReceive/Received. The link layer queues
// outgoing PDUs with AllocateTransmit/CommitTransmit and drains incoming ones
// with NextReceived/FreeReceived. Acknowledgement follows the SN/NESN scheme:
// a PDU stays at the head of the transmit queue, and is retransmitted, until
// the peer acknowledges it.
package pdu

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/rigado/radio"
)

// ErrBufferInUse is returned when a size is changed while PDUs are queued.
var ErrBufferInUse = errors.New("pdu buffer in use")

// Buffer is safe for concurrent use; every method runs under a lock guard.
type Buffer struct {
	mu sync.Mutex

	tx ring
	rx ring

	maxTx int
	maxRx int

	sn        bool
	nesn      bool
	emptySent bool
	empty     [HeaderSize]byte
}

// NewBuffer returns a buffer with the given capacities and the default
// maximum PDU size in both directions.
func NewBuffer(sizes radio.BufferSizes) (*Buffer, error) {
	if err := sizes.Validate(); err != nil {
		return nil, err
	}

	b := &Buffer{
		maxTx: radio.MinPDUSize,
		maxRx: radio.MinPDUSize,
	}
	b.tx = newRing(sizes.Transmit)
	b.rx = newRing(sizes.Receive)
	return b, nil
}

func (b *Buffer) lock() *radio.LockGuard {
	return radio.Lock(&b.mu)
}

// Reset drops all queued PDUs and restores sequence numbers and sizes.
func (b *Buffer) Reset() {
	g := b.lock()
	defer g.Release()

	b.maxTx = radio.MinPDUSize
	b.maxRx = radio.MinPDUSize
	b.tx.reset()
	b.rx.reset()
	b.sn, b.nesn, b.emptySent = false, false, false
}

// TransmitCapacity is the largest possible maximum transmit PDU size.
func (b *Buffer) TransmitCapacity() int { return len(b.tx.mem) }

// ReceiveCapacity is the largest possible maximum receive PDU size.
func (b *Buffer) ReceiveCapacity() int { return len(b.rx.mem) }

// MaxRxSize returns the maximum size of a received PDU, header included.
func (b *Buffer) MaxRxSize() int {
	g := b.lock()
	defer g.Release()
	return b.maxRx
}

// SetMaxRxSize changes the maximum size of a received PDU. The receive queue
// must be empty.
func (b *Buffer) SetMaxRxSize(n int) error {
	g := b.lock()
	defer g.Release()

	if n < radio.MinPDUSize || n > len(b.rx.mem) {
		return errors.Errorf("max rx size %d not in [%d, %d]", n, radio.MinPDUSize, len(b.rx.mem))
	}
	if b.rx.count() != 0 {
		return errors.Wrap(ErrBufferInUse, "set max rx size")
	}
	b.maxRx = n
	b.rx.reset()
	return nil
}

// MaxTxSize returns the maximum size of a transmitted PDU, header included.
func (b *Buffer) MaxTxSize() int {
	g := b.lock()
	defer g.Release()
	return b.maxTx
}

// SetMaxTxSize changes the maximum size of a transmitted PDU. The transmit
// queue must be empty.
func (b *Buffer) SetMaxTxSize(n int) error {
	g := b.lock()
	defer g.Release()

	if n < radio.MinPDUSize || n > len(b.tx.mem) {
		return errors.Errorf("max tx size %d not in [%d, %d]", n, radio.MinPDUSize, len(b.tx.mem))
	}
	if b.tx.count() != 0 {
		return errors.Wrap(ErrBufferInUse, "set max tx size")
	}
	b.maxTx = n
	b.tx.reset()
	return nil
}

// Pending returns the number of queued transmit and received PDUs.
func (b *Buffer) Pending() (tx, rx int) {
	g := b.lock()
	defer g.Release()
	return b.tx.count(), b.rx.count()
}

// AllocateTransmit returns room for a PDU of size bytes, or nil if the
// transmit queue is full or size exceeds MaxTxSize. A size <= 0 requests
// MaxTxSize bytes. The PDU is queued by CommitTransmit.
func (b *Buffer) AllocateTransmit(size int) []byte {
	g := b.lock()
	defer g.Release()

	if size <= 0 {
		size = b.maxTx
	}
	if size > b.maxTx {
		return nil
	}
	return b.tx.allocate(size)
}

// CommitTransmit queues the PDU previously returned by AllocateTransmit and
// filled in by the caller.
func (b *Buffer) CommitTransmit(p []byte) error {
	g := b.lock()
	defer g.Release()

	if !b.tx.owns(p) {
		return errors.New("commit of a transmit PDU that was not allocated")
	}
	n := Size(p)
	if n == 0 {
		return errors.New("commit of a malformed transmit PDU")
	}
	b.tx.push(n)
	return nil
}

// Enqueue copies a PDU built elsewhere into the transmit queue.
func (b *Buffer) Enqueue(p []byte) error {
	n := Size(p)
	if n == 0 {
		return errors.New("malformed pdu")
	}
	s := b.AllocateTransmit(n)
	if s == nil {
		return errors.Errorf("no room for a %d byte pdu", n)
	}
	copy(s, p[:n])
	return b.CommitTransmit(s)
}

// NextTransmit returns the PDU to send next with SN, NESN and MD filled in.
// Without queued data, or while an empty PDU awaits acknowledgement, it is an
// empty PDU. The result aliases buffer memory and is valid until the next call
// to NextTransmit or Received.
func (b *Buffer) NextTransmit() []byte {
	g := b.lock()
	defer g.Release()

	if b.emptySent || b.tx.count() == 0 {
		b.emptySent = true
		b.empty[0] = LLIDContinuation
		b.empty[1] = 0
		b.setSequence(&b.empty[0], b.tx.count() > 0)
		return b.empty[:]
	}

	head := b.tx.front()
	b.setSequence(&head[0], b.tx.count() > 1)
	return head[:Size(head)]
}

func (b *Buffer) setSequence(h *byte, more bool) {
	setFlag(h, FlagSN, b.sn)
	setFlag(h, FlagNESN, b.nesn)
	setFlag(h, FlagMD, more)
}

// AllocateReceive returns MaxRxSize contiguous bytes of room for the next
// received PDU, or nil if the receive queue can't hold another PDU of that size.
func (b *Buffer) AllocateReceive() []byte {
	g := b.lock()
	defer g.Release()

	return b.rx.allocate(b.maxRx)
}

// Received processes a PDU received from the peer: its NESN acknowledges our
// last transmission, and new, non empty data is queued for NextReceived. p is
// usually the room returned by AllocateReceive; other memory is copied. It
// reports whether p was queued.
func (b *Buffer) Received(p []byte) bool {
	g := b.lock()
	defer g.Release()

	n := Size(p)
	if n == 0 {
		return false
	}
	h := HeaderOf(p)

	if h.NESN() != b.sn {
		b.sn = !b.sn
		if b.emptySent {
			b.emptySent = false
		} else {
			b.tx.pop()
		}
	}

	if h.SN() != b.nesn {
		// retransmission of a PDU we already acknowledged
		return false
	}

	if h.Length() == 0 {
		b.nesn = !b.nesn
		return false
	}

	if n > b.maxRx {
		return false
	}
	if !b.rx.owns(p) {
		s := b.rx.allocate(n)
		if s == nil {
			// not acknowledged, the peer will resend
			return false
		}
		copy(s, p[:n])
	}
	b.rx.push(n)
	b.nesn = !b.nesn
	return true
}

// NextReceived returns the oldest received PDU, or nil.
func (b *Buffer) NextReceived() []byte {
	g := b.lock()
	defer g.Release()

	s := b.rx.front()
	if s == nil {
		return nil
	}
	return s[:Size(s)]
}

// FreeReceived drops the PDU returned by NextReceived.
func (b *Buffer) FreeReceived() {
	g := b.lock()
	defer g.Release()
	b.rx.pop()
}
