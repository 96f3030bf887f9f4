package sim

import (
	"sync"

	"github.com/rigado/radio"
	"github.com/rigado/radio/pdu"
)

// Central plays the central of a connection against the simulated radio. It
// opens every connection event with Poll, answers the peripheral as long as
// either side has more data and tracks acknowledgement like a link layer.
type Central struct {
	AccessAddress uint32
	CRCInit       uint32

	mu       sync.Mutex
	sn, nesn bool
	md       bool
	queue    [][]byte
	received [][]byte
}

// Send queues payload for the next PDUs the central sends.
func (c *Central) Send(payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append(c.queue, append([]byte(nil), payload...))
}

// Received returns the payloads received from the peripheral.
func (c *Central) Received() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.received...)
}

// Poll returns the first PDU of a connection event starting at at.
func (c *Central) Poll(channel uint, at radio.Instant) Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Frame{
		Channel:       channel,
		Start:         at,
		AccessAddress: c.AccessAddress,
		CRCInit:       c.CRCInit,
		Data:          c.next(),
	}
}

// Peer is a Peer answering the peripheral.
func (c *Central) Peer(tx Transmission) []Frame {
	if tx.AccessAddress != c.AccessAddress {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	h := pdu.HeaderOf(tx.Data)
	if h.NESN() != c.sn {
		c.sn = !c.sn
		if len(c.queue) > 0 {
			c.queue = c.queue[1:]
		}
	}
	if h.SN() == c.nesn {
		c.nesn = !c.nesn
		if h.Length() > 0 {
			c.received = append(c.received, append([]byte(nil), tx.Data[pdu.HeaderSize:pdu.Size(tx.Data)]...))
		}
	}

	if !h.MoreData() && !c.md {
		return nil
	}
	return []Frame{tx.Reply(c.next())}
}

// next must be called with mu held.
func (c *Central) next() []byte {
	var p []byte
	if len(c.queue) > 0 {
		p = pdu.New(pdu.LLIDStart, c.queue[0])
	} else {
		p = pdu.New(pdu.LLIDContinuation, nil)
	}
	if c.sn {
		p[0] |= pdu.FlagSN
	}
	if c.nesn {
		p[0] |= pdu.FlagNESN
	}
	c.md = len(c.queue) > 1
	if c.md {
		p[0] |= pdu.FlagMD
	}
	return p
}
