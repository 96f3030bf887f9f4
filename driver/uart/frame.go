package uart

import (
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
	"github.com/rigado/radio/sliceops"
)

// Frame types. Commands go to the coprocessor, everything from 0x80 up comes
// back from it.
const (
	cmdConfigure byte = 0x01
	cmdTransmit  byte = 0x02
	cmdReceive   byte = 0x03
	cmdNow       byte = 0x04
	cmdSeed      byte = 0x05
	cmdStop      byte = 0x06

	rspAck  byte = 0x80
	rspNow  byte = 0x84
	rspSeed byte = 0x85

	evtTxDone    byte = 0x90
	evtRxDone    byte = 0x91
	evtRxTimeout byte = 0x92
)

const (
	headerOffsetType   = 0
	headerOffsetLength = 1
	headerLength       = 3

	maxPayload   = 512
	frameTimeout = 500 * time.Millisecond
)

func isKnownType(t byte) bool {
	switch t {
	case cmdConfigure, cmdTransmit, cmdReceive, cmdNow, cmdSeed, cmdStop,
		rspAck, rspNow, rspSeed, evtTxDone, evtRxDone, evtRxTimeout:
		return true
	}
	return false
}

func isResponse(t byte) bool {
	return t == rspAck || t == rspNow || t == rspSeed
}

func encode(t byte, parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	b := make([]byte, headerLength, headerLength+n)
	b[headerOffsetType] = t
	binary.LittleEndian.PutUint16(b[headerOffsetLength:], uint16(n))
	for _, p := range parts {
		b = append(b, p...)
	}
	return b
}

func u32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func u24(v uint32) []byte {
	b := make([]byte, 3)
	sliceops.PutUint24LE(b, v)
	return b
}

// payload gives checked access to the fields of a frame.
type payload []byte

func (p payload) getByte(i int) (byte, error) {
	if i >= len(p) {
		return 0, errors.Errorf("payload of %d bytes, want byte %d", len(p), i)
	}
	return p[i], nil
}

func (p payload) getUint32LE(i int) (uint32, error) {
	if i+4 > len(p) {
		return 0, errors.Errorf("payload of %d bytes, want uint32 at %d", len(p), i)
	}
	return binary.LittleEndian.Uint32(p[i:]), nil
}

// assembler reassembles frames from the byte stream. Bytes before a known
// frame type are skipped, and a partial frame is dropped after frameTimeout.
type assembler struct {
	b       []byte
	timeout time.Time
	out     func([]byte)
	now     func() time.Time
}

func newAssembler(out func([]byte)) *assembler {
	return &assembler{out: out, now: time.Now}
}

func (a *assembler) Assemble(b []byte) {
	if len(b) == 0 {
		return
	}
	if len(a.b) > 0 && a.now().After(a.timeout) {
		a.reset()
	}

	if len(a.b) == 0 {
		if !a.waitStart(b) {
			return
		}
	} else {
		a.b = append(a.b, b...)
	}

	for len(a.b) >= headerLength {
		n := headerLength + int(binary.LittleEndian.Uint16(a.b[headerOffsetLength:]))
		if n-headerLength > maxPayload {
			// bad length, resync on the next start byte
			rem := a.b[1:]
			a.reset()
			a.Assemble(append([]byte(nil), rem...))
			return
		}
		if len(a.b) < n {
			return
		}

		out := make([]byte, n)
		copy(out, a.b)
		rem := a.b[n:]
		a.reset()
		a.out(out)

		if len(rem) == 0 {
			return
		}
		if !a.waitStart(append([]byte(nil), rem...)) {
			return
		}
	}
}

func (a *assembler) reset() {
	a.b = a.b[:0]
	a.timeout = time.Time{}
}

func (a *assembler) waitStart(b []byte) bool {
	for i, v := range b {
		if isKnownType(v) {
			a.b = append(a.b[:0], b[i:]...)
			a.timeout = a.now().Add(frameTimeout)
			return true
		}
	}
	return false
}
