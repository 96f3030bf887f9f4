package adv

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/rigado/radio"
	"github.com/rigado/radio/sliceops"
)

// PDUType is the type of an advertising channel PDU.
type PDUType uint8

const (
	TypeAdvInd        PDUType = 0x0
	TypeAdvDirectInd  PDUType = 0x1
	TypeAdvNonconnInd PDUType = 0x2
	TypeScanReq       PDUType = 0x3
	TypeScanRsp       PDUType = 0x4
	TypeConnectInd    PDUType = 0x5
	TypeAdvScanInd    PDUType = 0x6
)

func (t PDUType) String() string {
	switch t {
	case TypeAdvInd:
		return "ADV_IND"
	case TypeAdvDirectInd:
		return "ADV_DIRECT_IND"
	case TypeAdvNonconnInd:
		return "ADV_NONCONN_IND"
	case TypeScanReq:
		return "SCAN_REQ"
	case TypeScanRsp:
		return "SCAN_RSP"
	case TypeConnectInd:
		return "CONNECT_IND"
	case TypeAdvScanInd:
		return "ADV_SCAN_IND"
	default:
		return "unknown"
	}
}

const (
	headerSize  = 2
	addrSize    = 6
	llDataSize  = 22
	txAddRandom = 0x40
	rxAddRandom = 0x80
)

// MaxPDUSize is the size of the largest advertising channel PDU.
const MaxPDUSize = headerSize + addrSize + MaxDataLength

// Header is the header of an advertising channel PDU.
type Header struct {
	Type   PDUType
	TxAdd  bool
	RxAdd  bool
	Length int
}

// ParseHeader decodes the header of b and checks that b holds the payload.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < headerSize {
		return Header{}, errors.Wrapf(ErrInvalid, "pdu of %d bytes", len(b))
	}
	h := Header{
		Type:   PDUType(b[0] & 0x0f),
		TxAdd:  b[0]&txAddRandom != 0,
		RxAdd:  b[0]&rxAddRandom != 0,
		Length: int(b[1]),
	}
	if headerSize+h.Length > len(b) {
		return h, errors.Wrapf(ErrInvalid, "%v: length %d, have %d", h.Type, h.Length, len(b)-headerSize)
	}
	return h, nil
}

func build(t PDUType, txAdd, rxAdd bool, parts ...[]byte) []byte {
	b := make([]byte, headerSize, headerSize+addrSize+MaxDataLength)
	b[0] = byte(t)
	if txAdd {
		b[0] |= txAddRandom
	}
	if rxAdd {
		b[0] |= rxAddRandom
	}
	for _, p := range parts {
		b = append(b, p...)
	}
	b[1] = byte(len(b) - headerSize)
	return b
}

func data(p *Packet) []byte {
	if p == nil {
		return nil
	}
	return p.Bytes()
}

// AdvInd returns a connectable undirected advertising PDU sent from the static
// random address a.
func AdvInd(a radio.Address, p *Packet) radio.WriteBuffer {
	return build(TypeAdvInd, true, false, a[:], data(p))
}

// NonconnInd returns a non connectable advertising PDU.
func NonconnInd(a radio.Address, p *Packet) radio.WriteBuffer {
	return build(TypeAdvNonconnInd, true, false, a[:], data(p))
}

// ScanRsp returns a scan response PDU.
func ScanRsp(a radio.Address, p *Packet) radio.WriteBuffer {
	return build(TypeScanRsp, true, false, a[:], data(p))
}

// ScanReq returns a scan request of scanner to advertiser.
func ScanReq(scanner, advertiser radio.Address) []byte {
	return build(TypeScanReq, true, true, scanner[:], advertiser[:])
}

// ParseAdvertisement returns the advertiser address and AD structures of an
// ADV_IND, ADV_NONCONN_IND, ADV_SCAN_IND or SCAN_RSP.
func ParseAdvertisement(b []byte) (Header, radio.Address, *Packet, error) {
	var a radio.Address

	h, err := ParseHeader(b)
	if err != nil {
		return h, a, nil, err
	}
	switch h.Type {
	case TypeAdvInd, TypeAdvNonconnInd, TypeAdvScanInd, TypeScanRsp:
	default:
		return h, a, nil, errors.Wrapf(ErrInvalid, "%v is no advertisement", h.Type)
	}
	if h.Length < addrSize {
		return h, a, nil, errors.Wrapf(ErrInvalid, "%v: length %d", h.Type, h.Length)
	}
	payload := b[headerSize : headerSize+h.Length]
	copy(a[:], payload)

	p, err := Parse(payload[addrSize:])
	if err != nil {
		return h, a, nil, err
	}
	return h, a, p, nil
}

// ParseScanRequest returns scanner and advertiser address of a SCAN_REQ.
func ParseScanRequest(b []byte) (scanner, advertiser radio.Address, err error) {
	h, err := ParseHeader(b)
	if err != nil {
		return scanner, advertiser, err
	}
	if h.Type != TypeScanReq || h.Length != 2*addrSize {
		return scanner, advertiser, errors.Wrapf(ErrInvalid, "%v of length %d is no scan request", h.Type, h.Length)
	}
	copy(scanner[:], b[headerSize:])
	copy(advertiser[:], b[headerSize+addrSize:])
	return scanner, advertiser, nil
}

// ConnectRequest is the payload of a CONNECT_IND.
type ConnectRequest struct {
	Initiator     radio.Address
	Advertiser    radio.Address
	AccessAddress uint32
	CRCInit       uint32

	// Window size, window offset and interval in units of 1.25 ms, supervision
	// timeout in units of 10 ms.
	WindowSize   uint8
	WindowOffset uint16
	Interval     uint16
	Latency      uint16
	Timeout      uint16

	ChannelMap [5]byte
	Hop        uint8
	SCA        uint8
}

const connUnit = 1250 * radio.Microsecond

// IntervalTime returns the connection interval.
func (r ConnectRequest) IntervalTime() radio.DeltaTime {
	return radio.DeltaTime(r.Interval) * connUnit
}

// WindowOffsetTime returns the transmit window offset.
func (r ConnectRequest) WindowOffsetTime() radio.DeltaTime {
	return radio.DeltaTime(r.WindowOffset) * connUnit
}

// WindowSizeTime returns the transmit window size.
func (r ConnectRequest) WindowSizeTime() radio.DeltaTime {
	return radio.DeltaTime(r.WindowSize) * connUnit
}

// ConnectInd encodes r.
func ConnectInd(r ConnectRequest) []byte {
	ll := make([]byte, llDataSize)
	binary.LittleEndian.PutUint32(ll[0:], r.AccessAddress)
	sliceops.PutUint24LE(ll[4:], r.CRCInit)
	ll[7] = r.WindowSize
	binary.LittleEndian.PutUint16(ll[8:], r.WindowOffset)
	binary.LittleEndian.PutUint16(ll[10:], r.Interval)
	binary.LittleEndian.PutUint16(ll[12:], r.Latency)
	binary.LittleEndian.PutUint16(ll[14:], r.Timeout)
	copy(ll[16:21], r.ChannelMap[:])
	ll[21] = r.Hop&0x1f | r.SCA<<5
	return build(TypeConnectInd, true, true, r.Initiator[:], r.Advertiser[:], ll)
}

// ParseConnectRequest decodes a CONNECT_IND.
func ParseConnectRequest(b []byte) (ConnectRequest, error) {
	var r ConnectRequest

	h, err := ParseHeader(b)
	if err != nil {
		return r, err
	}
	if h.Type != TypeConnectInd || h.Length != 2*addrSize+llDataSize {
		return r, errors.Wrapf(ErrInvalid, "%v of length %d is no connect request", h.Type, h.Length)
	}

	p := b[headerSize:]
	copy(r.Initiator[:], p[0:addrSize])
	copy(r.Advertiser[:], p[addrSize:2*addrSize])

	ll := p[2*addrSize:]
	r.AccessAddress = binary.LittleEndian.Uint32(ll[0:])
	r.CRCInit = sliceops.Uint24LE(ll[4:])
	r.WindowSize = ll[7]
	r.WindowOffset = binary.LittleEndian.Uint16(ll[8:])
	r.Interval = binary.LittleEndian.Uint16(ll[10:])
	r.Latency = binary.LittleEndian.Uint16(ll[12:])
	r.Timeout = binary.LittleEndian.Uint16(ll[14:])
	copy(r.ChannelMap[:], ll[16:21])
	r.Hop = ll[21] & 0x1f
	r.SCA = ll[21] >> 5

	if r.Interval == 0 || r.Hop < 5 || r.Hop > 16 {
		return r, errors.Wrapf(ErrInvalid, "connect request interval %d hop %d", r.Interval, r.Hop)
	}
	if len(r.usedChannels()) < 2 {
		return r, errors.Wrapf(ErrInvalid, "channel map %x", r.ChannelMap)
	}
	return r, nil
}

// sleep clock accuracy in ppm by SCA field, worst case of each range
var scaPPM = [8]uint{500, 250, 150, 100, 75, 50, 30, 20}

// SleepClockAccuracy returns the worst case accuracy of the central's sleep
// clock.
func (r ConnectRequest) SleepClockAccuracy() radio.SleepClockAccuracy {
	return radio.SleepClockAccuracy(scaPPM[r.SCA&0x07])
}

const dataChannels = 37

func (r ConnectRequest) usedChannels() []uint {
	var used []uint
	for ch := uint(0); ch < dataChannels; ch++ {
		if r.ChannelMap[ch/8]&(1<<(ch%8)) != 0 {
			used = append(used, ch)
		}
	}
	return used
}

// NextChannel runs channel selection algorithm #1 on the unmapped channel of
// the last connection event. It returns the next unmapped channel and the data
// channel to use.
func (r ConnectRequest) NextChannel(lastUnmapped uint) (unmapped, channel uint) {
	unmapped = (lastUnmapped + uint(r.Hop)) % dataChannels
	if r.ChannelMap[unmapped/8]&(1<<(unmapped%8)) != 0 {
		return unmapped, unmapped
	}
	used := r.usedChannels()
	if len(used) == 0 {
		return unmapped, unmapped
	}
	return unmapped, used[unmapped%uint(len(used))]
}
