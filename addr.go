package radio

import (
	"crypto/aes"
	"encoding/binary"
	"encoding/hex"
	"strings"

	"github.com/aead/cmac"
	"github.com/pkg/errors"
	"github.com/rigado/radio/sliceops"
)

// Address is a device address in over the air (least significant byte first)
// order.
type Address [6]byte

// ParseAddress parses the colon notation "C0:11:22:33:44:55", most significant
// byte first.
func ParseAddress(s string) (Address, error) {
	var a Address
	b, err := hex.DecodeString(strings.Replace(s, ":", "", -1))
	if err != nil {
		return a, errors.Wrap(err, "can't decode address")
	}
	if len(b) != len(a) {
		return a, errors.Errorf("invalid address length %d", len(b))
	}
	copy(a[:], sliceops.SwapBuf(b))
	return a, nil
}

func (a Address) String() string {
	b := sliceops.SwapBuf(a[:])
	out := make([]string, len(b))
	for i, v := range b {
		out[i] = hex.EncodeToString([]byte{v})
	}
	return strings.ToUpper(strings.Join(out, ":"))
}

// Bytes returns the address in over the air order.
func (a Address) Bytes() []byte {
	return append([]byte(nil), a[:]...)
}

// IsStaticRandom reports whether the two most significant bits are set.
func (a Address) IsStaticRandom() bool {
	return a[5]&0xc0 == 0xc0
}

// addressKey keys the expansion of a device seed into address bits.
var addressKey = []byte{
	0x62, 0x6c, 0x75, 0x65, 0x74, 0x6f, 0x65, 0x2d,
	0x73, 0x74, 0x61, 0x74, 0x69, 0x63, 0x2d, 0x61,
}

// StaticRandomAddress derives a static random device address from a device
// seed such as ScheduledRadio.StaticRandomAddressSeed. The same seed always
// yields the same address.
func StaticRandomAddress(seed uint32) (Address, error) {
	var a Address

	msg := make([]byte, 4)
	binary.LittleEndian.PutUint32(msg, seed)

	c, err := aes.NewCipher(addressKey)
	if err != nil {
		return a, err
	}
	mac, err := cmac.New(c)
	if err != nil {
		return a, err
	}
	mac.Write(msg)
	copy(a[:], mac.Sum(nil))

	a[5] |= 0xc0

	// the random part must contain at least one 0 and one 1 bit
	random := binary.LittleEndian.Uint64(append(a[:], 0, 0)) & 0x3fffffffffff
	if random == 0 {
		a[0] = 0x01
	} else if random == 0x3fffffffffff {
		a[0] = 0xfe
	}

	return a, nil
}
