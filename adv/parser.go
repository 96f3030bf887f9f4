package adv

import (
	"github.com/pkg/errors"
)

type record struct {
	arrayElementSz int
	minSz          int
}

var decodeMap = map[byte]record{
	flags:            {0, 1},
	someUUID16:       {2, 2},
	allUUID16:        {2, 2},
	shortName:        {0, 1},
	completeName:     {0, 1},
	txPower:          {0, 1},
	serviceData16:    {0, 2},
	manufacturerData: {0, 2},
}

// Parse decodes the AD structures in b.
func Parse(b []byte) (*Packet, error) {
	if len(b) > MaxDataLength {
		return nil, ErrNotFit
	}
	m, err := decode(b)
	if err != nil {
		return nil, err
	}
	return &Packet{b: append([]byte(nil), b...), m: m}, nil
}

func decode(pdu []byte) (map[byte][]byte, error) {
	m := make(map[byte][]byte)
	for i := 0; i < len(pdu); {
		// length @ offset 0, type @ offset 1, data follows
		length := int(pdu[i])
		if length == 0 {
			// early termination
			break
		}
		if i+length >= len(pdu) {
			return nil, errors.Wrapf(ErrInvalid, "record overflow: want %d, have %d", i+length+1, len(pdu))
		}

		typ := pdu[i+1]
		data := pdu[i+2 : i+1+length]

		if dec, ok := decodeMap[typ]; ok {
			if len(data) < dec.minSz {
				return nil, errors.Wrapf(ErrInvalid, "type 0x%02x: min length %d, have %d", typ, dec.minSz, len(data))
			}
			if dec.arrayElementSz > 0 && len(data)%dec.arrayElementSz != 0 {
				return nil, errors.Wrapf(ErrInvalid, "type 0x%02x: length %d not a multiple of %d", typ, len(data), dec.arrayElementSz)
			}
			m[typ] = data
		}

		i += length + 1
	}
	return m, nil
}
