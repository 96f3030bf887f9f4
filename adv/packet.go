// Package adv builds and parses advertising channel PDUs and the AD structures
// they carry.
package adv

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// MaxDataLength is the room for AD structures in a legacy advertising PDU.
const MaxDataLength = 31

var (
	// ErrNotFit is returned when a field doesn't fit into the packet.
	ErrNotFit  = errors.New("field doesn't fit into the packet")
	ErrInvalid = errors.New("invalid advertising data")
)

// AD types
const (
	flags            = 0x01
	someUUID16       = 0x02
	allUUID16        = 0x03
	shortName        = 0x08
	completeName     = 0x09
	txPower          = 0x0a
	serviceData16    = 0x16
	manufacturerData = 0xff
)

// Flags values
const (
	FlagLimitedDiscoverable = 0x01
	FlagGeneralDiscoverable = 0x02
	FlagLEOnly              = 0x04
)

// Packet holds the AD structures of an advertising or scan response PDU.
type Packet struct {
	b []byte
	m map[byte][]byte
}

// Bytes returns the bytes of the packet.
func (p *Packet) Bytes() []byte {
	return p.b
}

// Len returns the length of the packet.
func (p *Packet) Len() int {
	return len(p.b)
}

// NewPacket returns a packet built from fields.
func NewPacket(fields ...Field) (*Packet, error) {
	p := &Packet{b: make([]byte, 0, MaxDataLength)}
	for _, f := range fields {
		if err := f(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Field is an AD structure which can be appended to a packet.
type Field func(p *Packet) error

// Append appends a field to the packet. It returns ErrNotFit if the field
// doesn't fit into the packet, and leaves the packet intact.
func (p *Packet) Append(f Field) error {
	return f(p)
}

func (p *Packet) append(typ byte, b []byte) error {
	if p.Len()+1+1+len(b) > MaxDataLength {
		return ErrNotFit
	}
	p.b = append(p.b, byte(len(b)+1), typ)
	p.b = append(p.b, b...)
	p.m = nil
	return nil
}

// Raw appends preformatted AD structures.
func Raw(b []byte) Field {
	return func(p *Packet) error {
		if p.Len()+len(b) > MaxDataLength {
			return ErrNotFit
		}
		p.b = append(p.b, b...)
		p.m = nil
		return nil
	}
}

// Flags is a flags field.
func Flags(f byte) Field {
	return func(p *Packet) error {
		return p.append(flags, []byte{f})
	}
}

// ShortName is a shortened local name.
func ShortName(n string) Field {
	return func(p *Packet) error {
		return p.append(shortName, []byte(n))
	}
}

// CompleteName is a complete local name.
func CompleteName(n string) Field {
	return func(p *Packet) error {
		return p.append(completeName, []byte(n))
	}
}

// TxPower is the transmit power level in dBm.
func TxPower(dbm int8) Field {
	return func(p *Packet) error {
		return p.append(txPower, []byte{byte(dbm)})
	}
}

// ManufacturerData is manufacturer specific data.
func ManufacturerData(id uint16, b []byte) Field {
	return func(p *Packet) error {
		d := append([]byte{uint8(id), uint8(id >> 8)}, b...)
		return p.append(manufacturerData, d)
	}
}

// ServiceUUID16 is a complete list of 16 bit service UUIDs.
func ServiceUUID16(ids ...uint16) Field {
	return func(p *Packet) error {
		if len(ids) == 0 {
			return ErrInvalid
		}
		b := make([]byte, 2*len(ids))
		for i, id := range ids {
			binary.LittleEndian.PutUint16(b[2*i:], id)
		}
		return p.append(allUUID16, b)
	}
}

// ServiceData16 is service data for a 16 bit service UUID.
func ServiceData16(id uint16, b []byte) Field {
	return func(p *Packet) error {
		d := append([]byte{uint8(id), uint8(id >> 8)}, b...)
		return p.append(serviceData16, d)
	}
}

func (p *Packet) field(typ byte) ([]byte, bool) {
	if p.m == nil {
		m, err := decode(p.b)
		if err != nil {
			return nil, false
		}
		p.m = m
	}
	b, ok := p.m[typ]
	return b, ok
}

// Flags returns the flags of the packet.
func (p *Packet) Flags() (byte, bool) {
	if b, ok := p.field(flags); ok {
		return b[0], true
	}
	return 0, false
}

// LocalName returns the complete or, if absent, the shortened local name.
func (p *Packet) LocalName() string {
	if b, ok := p.field(completeName); ok {
		return string(b)
	}
	if b, ok := p.field(shortName); ok {
		return string(b)
	}
	return ""
}

// TxPower returns the TxPower, if it presents.
func (p *Packet) TxPower() (power int, present bool) {
	if b, ok := p.field(txPower); ok {
		return int(int8(b[0])), true
	}
	return 0, false
}

// ManufacturerData returns company id and data of the manufacturer specific
// data field.
func (p *Packet) ManufacturerData() (id uint16, data []byte, present bool) {
	b, ok := p.field(manufacturerData)
	if !ok {
		return 0, nil, false
	}
	return binary.LittleEndian.Uint16(b), b[2:], true
}

// ServiceUUID16s returns the complete and incomplete 16 bit service UUIDs.
func (p *Packet) ServiceUUID16s() []uint16 {
	var u []uint16
	for _, typ := range []byte{someUUID16, allUUID16} {
		b, _ := p.field(typ)
		for ; len(b) >= 2; b = b[2:] {
			u = append(u, binary.LittleEndian.Uint16(b))
		}
	}
	return u
}
