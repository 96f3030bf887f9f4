// Package sim is a driver.Driver running on a virtual microsecond clock.
//
// The clock only advances through radio activity: a transmission moves it to
// the end of the PDU, a receive window to the end of the received PDU or the
// end of the window. A scripted Peer answers transmissions, and frames can be
// put on air directly with Inject. Completion events are delivered from a
// separate goroutine, like interrupts on real hardware.
package sim

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/rigado/radio"
	"github.com/rigado/radio/driver"
)

var errBusy = errors.New("radio busy")

// Frame is a PDU on air.
type Frame struct {
	Channel       uint
	Start         radio.Instant
	AccessAddress uint32
	CRCInit       uint32
	Data          []byte

	// Corrupt flips a bit of the received CRC.
	Corrupt bool
}

// End returns the end of the frame.
func (f Frame) End() radio.Instant {
	return f.Start.Add(radio.DeltaTime(Airtime(len(f.Data))))
}

// Transmission is a PDU sent by the driver.
type Transmission struct {
	Channel       uint
	Start         radio.Instant
	End           radio.Instant
	AccessAddress uint32
	CRCInit       uint32
	Data          []byte
}

// Reply returns a frame answering t with data one inter frame space after the
// end of t.
func (t Transmission) Reply(data []byte) Frame {
	return Frame{
		Channel:       t.Channel,
		Start:         t.End.Add(radio.InterFrameSpace),
		AccessAddress: t.AccessAddress,
		CRCInit:       t.CRCInit,
		Data:          append([]byte(nil), data...),
	}
}

// Peer is the other side of the link. It is called for every transmission and
// returns the frames it puts on air in response.
type Peer func(Transmission) []Frame

// Option configures a Driver.
type Option func(*Driver)

// WithStartTime sets the initial value of the clock.
func WithStartTime(t radio.Instant) Option {
	return func(d *Driver) { d.now = t }
}

// WithDeviceSeed sets the value returned by DeviceSeed.
func WithDeviceSeed(seed uint32) Option {
	return func(d *Driver) { d.seed = seed }
}

// WithPeer sets the peer answering transmissions.
func WithPeer(p Peer) Option {
	return func(d *Driver) { d.peer = p }
}

// WithLogger overrides the logger.
func WithLogger(l radio.Logger) Option {
	return func(d *Driver) { d.log = l }
}

// Driver is a simulated radio.
type Driver struct {
	mu sync.Mutex

	now           radio.Instant
	seed          uint32
	accessAddress uint32
	crcInit       uint32
	busy          bool
	failAfter     int
	failErr       error

	peer Peer
	air  []Frame
	sent []Transmission

	handler driver.Handler
	events  chan driver.Event
	done    chan struct{}
	wg      sync.WaitGroup

	log radio.Logger
}

// New returns a stopped driver.
func New(opts ...Option) *Driver {
	d := &Driver{
		seed:          0x5eed5eed,
		accessAddress: driver.AdvertisingAccessAddress,
		crcInit:       driver.AdvertisingCRCInit,
		log:           radio.GetLogger().ChildLogger(map[string]interface{}{"component": "sim"}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start installs h and starts event delivery.
func (d *Driver) Start(h driver.Handler) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.handler != nil {
		return errors.New("driver already started")
	}
	d.handler = h
	d.events = make(chan driver.Event, 4)
	d.done = make(chan struct{})

	d.wg.Add(1)
	go d.loop(d.events, d.done)
	return nil
}

// Stop ends event delivery. Events not yet delivered are dropped.
func (d *Driver) Stop() error {
	d.mu.Lock()
	if d.handler == nil {
		d.mu.Unlock()
		return nil
	}
	close(d.done)
	d.handler = nil
	d.mu.Unlock()

	d.wg.Wait()
	return nil
}

func (d *Driver) loop(events <-chan driver.Event, done <-chan struct{}) {
	defer d.wg.Done()
	for {
		select {
		case e := <-events:
			d.mu.Lock()
			d.busy = false
			h := d.handler
			d.mu.Unlock()
			if h == nil {
				return
			}
			h.HandleEvent(e)
		case <-done:
			return
		}
	}
}

// Now returns the virtual clock.
func (d *Driver) Now() (radio.Instant, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.now, nil
}

// Advance moves the clock forward by dt.
func (d *Driver) Advance(dt radio.DeltaTime) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.now = d.now.Add(dt)
}

func (d *Driver) DeviceSeed() (uint32, error) {
	return d.seed, nil
}

func (d *Driver) Configure(accessAddress, crcInit uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.accessAddress = accessAddress
	d.crcInit = crcInit & 0xffffff
	return nil
}

// Config returns the access address and CRC init currently configured.
func (d *Driver) Config() (accessAddress, crcInit uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.accessAddress, d.crcInit
}

// FailAfter makes the Transmit or Receive following the next n ones return
// err.
func (d *Driver) FailAfter(n int, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failAfter = n
	d.failErr = err
}

// Inject puts f on air.
func (d *Driver) Inject(f Frame) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inject(f)
}

func (d *Driver) inject(f Frame) {
	d.air = append(d.air, f)
	sort.SliceStable(d.air, func(i, j int) bool {
		return d.air[i].Start.Before(d.air[j].Start)
	})
}

// Transmissions returns a copy of everything sent so far.
func (d *Driver) Transmissions() []Transmission {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]Transmission, len(d.sent))
	for i, t := range d.sent {
		t.Data = append([]byte(nil), t.Data...)
		out[i] = t
	}
	return out
}

// begin must be called with mu held.
func (d *Driver) begin() error {
	if d.handler == nil {
		return radio.ErrNotStarted
	}
	if d.failErr != nil {
		if d.failAfter == 0 {
			err := d.failErr
			d.failErr = nil
			return err
		}
		d.failAfter--
	}
	if d.busy {
		return errBusy
	}
	d.busy = true
	return nil
}

// Transmit sends pdu at at, or immediately if at already passed.
func (d *Driver) Transmit(channel uint, at radio.Instant, pdu []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.begin(); err != nil {
		return err
	}
	if at.Before(d.now) {
		d.log.Warnf("transmit at %v is late, now %v", at, d.now)
		at = d.now
	}

	t := Transmission{
		Channel:       channel,
		Start:         at,
		End:           at.Add(radio.DeltaTime(Airtime(len(pdu)))),
		AccessAddress: d.accessAddress,
		CRCInit:       d.crcInit,
		Data:          append([]byte(nil), pdu...),
	}
	d.sent = append(d.sent, t)
	d.now = t.End

	if d.peer != nil {
		for _, f := range d.peer(t) {
			d.inject(f)
		}
	}

	d.events <- driver.Event{Kind: driver.EventTxDone, End: t.End}
	return nil
}

// Receive captures the first frame on channel with the configured access
// address starting within [from, until]. Frames on the channel that started
// before the window are lost.
func (d *Driver) Receive(channel uint, from, until radio.Instant, rx []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.begin(); err != nil {
		return err
	}
	if from.Before(d.now) {
		from = d.now
	}

	air := d.air[:0]
	var got *Frame
	for i := range d.air {
		f := d.air[i]
		switch {
		case got != nil:
			air = append(air, f)
		case f.Channel != channel || f.AccessAddress != d.accessAddress:
			air = append(air, f)
		case f.Start.Before(from):
			d.log.Debugf("missed frame at %v, window opened %v", f.Start, from)
		case f.Start.After(until):
			air = append(air, f)
		default:
			got = &f
		}
	}
	d.air = air

	if got == nil {
		if until.After(d.now) {
			d.now = until
		}
		d.events <- driver.Event{Kind: driver.EventRxTimeout, End: d.now}
		return nil
	}

	copy(rx, got.Data)
	crcOK := !got.Corrupt && CRC24(got.CRCInit, got.Data) == CRC24(d.crcInit, got.Data)
	d.now = got.End()
	d.events <- driver.Event{
		Kind:   driver.EventRxDone,
		Start:  got.Start,
		End:    d.now,
		Length: len(got.Data),
		CRCOK:  crcOK,
	}
	return nil
}

var _ driver.Driver = (*Driver)(nil)
