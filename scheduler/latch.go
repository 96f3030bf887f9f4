package scheduler

import (
	"github.com/pkg/errors"
	"github.com/rigado/radio/driver"
)

// latch holds the access address and CRC init applied to the next scheduled
// operation.
type latch struct {
	accessAddress uint32
	crcInit       uint32
	dirty         bool
}

func newLatch() latch {
	return latch{
		accessAddress: driver.AdvertisingAccessAddress,
		crcInit:       driver.AdvertisingCRCInit,
		dirty:         true,
	}
}

func (l *latch) set(accessAddress, crcInit uint32) {
	l.accessAddress = accessAddress
	l.crcInit = crcInit & 0xffffff
	l.dirty = true
}

// apply hands changed values to the driver.
func (l *latch) apply(d driver.Driver) error {
	if !l.dirty {
		return nil
	}
	if err := d.Configure(l.accessAddress, l.crcInit); err != nil {
		return errors.Wrap(err, "can't configure access address")
	}
	l.dirty = false
	return nil
}
