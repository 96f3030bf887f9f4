package pdu

// Data channel PDU header, first byte.
const (
	LLIDMask         = 0x03
	LLIDContinuation = 0x01
	LLIDStart        = 0x02
	LLIDControl      = 0x03

	FlagNESN = 0x04
	FlagSN   = 0x08
	FlagMD   = 0x10

	HeaderSize = 2
)

// Header is the two byte data channel PDU header.
type Header [2]byte

func (h Header) LLID() byte       { return h[0] & LLIDMask }
func (h Header) NESN() bool       { return h[0]&FlagNESN != 0 }
func (h Header) SN() bool         { return h[0]&FlagSN != 0 }
func (h Header) MoreData() bool   { return h[0]&FlagMD != 0 }
func (h Header) Length() int      { return int(h[1]) }
func (h Header) IsEmptyPDU() bool { return h.LLID() == LLIDContinuation && h[1] == 0 }

// HeaderOf returns the header of p, or the zero header if p is too short.
func HeaderOf(p []byte) Header {
	var h Header
	if len(p) >= HeaderSize {
		copy(h[:], p)
	}
	return h
}

// Size returns the total size of the PDU in p according to its length field,
// or 0 if p is too short to hold it.
func Size(p []byte) int {
	if len(p) < HeaderSize {
		return 0
	}
	n := HeaderSize + int(p[1])
	if n > len(p) {
		return 0
	}
	return n
}

// New builds a PDU with the given LLID and payload.
func New(llid byte, payload []byte) []byte {
	b := make([]byte, HeaderSize+len(payload))
	b[0] = llid & LLIDMask
	b[1] = byte(len(payload))
	copy(b[HeaderSize:], payload)
	return b
}

func setFlag(b *byte, flag byte, on bool) {
	if on {
		*b |= flag
	} else {
		*b &^= flag
	}
}
