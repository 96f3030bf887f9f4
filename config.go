package radio

import "github.com/pkg/errors"

const (
	AdvertisingIntervalMin = 20
	AdvertisingIntervalMax = 10240

	SleepClockAccuracyMax = 500

	DefaultBufferSize = 59
)

// AdvertisingInterval validates an advertising interval given in milliseconds.
func AdvertisingInterval(ms uint) (DeltaTime, error) {
	if ms < AdvertisingIntervalMin || ms > AdvertisingIntervalMax {
		return 0, errors.Wrapf(ErrInvalidOption, "advertising interval %dms not in [%d, %d]",
			ms, AdvertisingIntervalMin, AdvertisingIntervalMax)
	}
	return Milliseconds(int64(ms)), nil
}

// SleepClockAccuracy is the accuracy of the sleep clock in ppm.
type SleepClockAccuracy uint

// NewSleepClockAccuracy validates ppm.
func NewSleepClockAccuracy(ppm uint) (SleepClockAccuracy, error) {
	if ppm > SleepClockAccuracyMax {
		return 0, errors.Wrapf(ErrInvalidOption, "sleep clock accuracy %dppm above %dppm", ppm, SleepClockAccuracyMax)
	}
	return SleepClockAccuracy(ppm), nil
}

// WindowWidening returns how much a receive window has to be opened earlier
// (and closed later) after elapsed time without resynchronisation, given the
// accuracy of the local and the peer sleep clock. Rounded up.
func WindowWidening(local, peer SleepClockAccuracy, elapsed DeltaTime) DeltaTime {
	ppm := int64(local) + int64(peer)
	w := (int64(elapsed)*ppm + 999999) / 1000000
	return DeltaTime(w)
}

// BufferSizes are the transmit and receive capacities of the packet buffer.
type BufferSizes struct {
	Transmit int
	Receive  int
}

// DefaultBufferSizes returns 59 bytes in both directions.
func DefaultBufferSizes() BufferSizes {
	return BufferSizes{Transmit: DefaultBufferSize, Receive: DefaultBufferSize}
}

// Validate checks that every direction holds at least one minimum sized PDU.
func (s BufferSizes) Validate() error {
	if s.Transmit < MinPDUSize || s.Receive < MinPDUSize {
		return errors.Wrapf(ErrInvalidOption, "buffer sizes %d/%d below %d", s.Transmit, s.Receive, MinPDUSize)
	}
	return nil
}

// MinPDUSize is the default maximum size of a data channel PDU, header
// included.
const MinPDUSize = 27
