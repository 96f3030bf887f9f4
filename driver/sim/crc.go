package sim

// CRC24 computes the link layer CRC of data, shifted in least significant bit
// first, starting from init.
func CRC24(init uint32, data []byte) uint32 {
	const poly = 0x00065b

	crc := init & 0xffffff
	for _, b := range data {
		for i := uint(0); i < 8; i++ {
			bit := (crc>>23)&1 ^ uint32(b>>i)&1
			crc = (crc << 1) & 0xffffff
			if bit != 0 {
				crc ^= poly
			}
		}
	}
	return crc
}

// Airtime returns the on air duration of a PDU of n bytes on the 1M PHY:
// preamble, access address, PDU and CRC at one microsecond per bit.
func Airtime(n int) int64 {
	return int64(1+4+n+3) * 8
}
