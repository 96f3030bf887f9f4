// Package uart drives a radio coprocessor over a serial link.
//
// Host and coprocessor exchange frames of the form [type][length LE16][payload].
// Every command is answered with a response before the next command is sent;
// completion events arrive asynchronously and are handed to the Handler from a
// dispatch goroutine, so the handler may issue the next command right away.
package uart

import (
	"io"
	"sync"
	"time"

	"github.com/jacobsa/go-serial/serial"
	"github.com/pkg/errors"
	"github.com/rigado/radio"
	"github.com/rigado/radio/driver"
)

const (
	defaultResponseTimeout = time.Second
	eventQueueSize         = 16
	readErrorDelay         = 10 * time.Millisecond
)

var errClosed = errors.New("uart closed")

// Open opens a serial port and returns a driver for the coprocessor on it.
func Open(port string, baud uint, opts ...Option) (*Driver, error) {
	sp, err := serial.Open(serial.OpenOptions{
		PortName:              port,
		BaudRate:              baud,
		DataBits:              8,
		StopBits:              1,
		ParityMode:            serial.PARITY_NONE,
		MinimumReadSize:       0,
		InterCharacterTimeout: 100,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "can't open %s", port)
	}
	return New(sp, opts...), nil
}

// Option configures a Driver.
type Option func(*Driver)

// WithResponseTimeout overrides how long a command waits for its response.
func WithResponseTimeout(d time.Duration) Option {
	return func(u *Driver) { u.timeout = d }
}

// WithLogger overrides the logger.
func WithLogger(l radio.Logger) Option {
	return func(u *Driver) { u.log = l }
}

// Driver is a driver.Driver for a coprocessor behind an io.ReadWriteCloser.
type Driver struct {
	rw      io.ReadWriteCloser
	timeout time.Duration
	log     radio.Logger

	cmdMu sync.Mutex
	resp  chan []byte

	mu      sync.Mutex
	handler driver.Handler
	rx      []byte

	events chan []byte
	done   chan struct{}
	cmu    sync.Mutex
	wg     sync.WaitGroup
}

// New returns a driver speaking to the coprocessor over rw.
func New(rw io.ReadWriteCloser, opts ...Option) *Driver {
	u := &Driver{
		rw:      rw,
		timeout: defaultResponseTimeout,
		log:     radio.GetLogger().ChildLogger(map[string]interface{}{"component": "uart"}),
		resp:    make(chan []byte, 1),
		events:  make(chan []byte, eventQueueSize),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Start installs h and starts the read and dispatch loops.
func (u *Driver) Start(h driver.Handler) error {
	u.mu.Lock()
	if u.handler != nil {
		u.mu.Unlock()
		return errors.New("driver already started")
	}
	u.handler = h
	u.mu.Unlock()

	u.wg.Add(2)
	go u.readLoop()
	go u.dispatchLoop()
	return nil
}

// Stop tells the coprocessor to stop and closes the link.
func (u *Driver) Stop() error {
	u.cmu.Lock()
	defer u.cmu.Unlock()

	select {
	case <-u.done:
		return nil
	default:
	}

	if _, err := u.send(cmdStop); err != nil {
		u.log.Warnf("stop: %v", err)
	}
	close(u.done)
	err := u.rw.Close()
	u.wg.Wait()
	return errors.Wrap(err, "can't close uart")
}

func (u *Driver) isOpen() bool {
	select {
	case <-u.done:
		return false
	default:
		return true
	}
}

// Now asks the coprocessor for its timer.
func (u *Driver) Now() (radio.Instant, error) {
	p, err := u.send(cmdNow)
	if err != nil {
		return 0, errors.Wrap(err, "can't read timer")
	}
	t, err := p.getUint32LE(0)
	if err != nil {
		return 0, errors.Wrap(err, "can't read timer")
	}
	return radio.Instant(t), nil
}

func (u *Driver) DeviceSeed() (uint32, error) {
	p, err := u.send(cmdSeed)
	if err != nil {
		return 0, errors.Wrap(err, "can't read seed")
	}
	s, err := p.getUint32LE(0)
	if err != nil {
		return 0, errors.Wrap(err, "can't read seed")
	}
	return s, nil
}

func (u *Driver) Configure(accessAddress, crcInit uint32) error {
	_, err := u.send(cmdConfigure, u32(accessAddress), u24(crcInit))
	return err
}

func (u *Driver) Transmit(channel uint, at radio.Instant, pdu []byte) error {
	_, err := u.send(cmdTransmit, []byte{byte(channel)}, u32(uint32(at)), pdu)
	return err
}

func (u *Driver) Receive(channel uint, from, until radio.Instant, rx []byte) error {
	u.mu.Lock()
	u.rx = rx
	u.mu.Unlock()

	_, err := u.send(cmdReceive, []byte{byte(channel)}, u32(uint32(from)), u32(uint32(until)))
	return err
}

// send writes a command and waits for its response.
func (u *Driver) send(t byte, parts ...[]byte) (payload, error) {
	if !u.isOpen() {
		return nil, errClosed
	}

	u.cmdMu.Lock()
	defer u.cmdMu.Unlock()

	// drop a response that arrived after its command timed out
	select {
	case <-u.resp:
	default:
	}

	b := encode(t, parts...)
	if n, err := u.rw.Write(b); err != nil {
		return nil, errors.Wrap(err, "can't write command")
	} else if n != len(b) {
		return nil, errors.Errorf("short write %d of %d", n, len(b))
	}

	// emergency timeout so callers don't lock up if the coprocessor doesn't
	// respond
	select {
	case r := <-u.resp:
		p := payload(r[headerLength:])
		if r[headerOffsetType] == rspAck {
			status, err := p.getByte(0)
			if err != nil {
				return nil, err
			}
			if status != 0 {
				return nil, errors.Errorf("command 0x%02x failed with status 0x%02x", t, status)
			}
		}
		return p, nil
	case <-time.After(u.timeout):
		return nil, errors.Errorf("no response to command 0x%02x", t)
	case <-u.done:
		return nil, errClosed
	}
}

func (u *Driver) readLoop() {
	defer u.wg.Done()

	a := newAssembler(u.route)
	b := make([]byte, 1024)
	for {
		n, err := u.rw.Read(b)
		if !u.isOpen() {
			return
		}
		if n > 0 {
			a.Assemble(b[:n])
		}
		switch {
		case err == nil || err == io.EOF:
			// an idle serial line reads (0, io.EOF) after the inter character
			// timeout
		default:
			u.log.Errorf("read: %v", err)
			time.Sleep(readErrorDelay)
		}
	}
}

func (u *Driver) route(f []byte) {
	switch t := f[headerOffsetType]; {
	case isResponse(t):
		select {
		case u.resp <- f:
		default:
			u.log.Warnf("unexpected response 0x%02x", t)
		}
	case t == evtTxDone || t == evtRxDone || t == evtRxTimeout:
		select {
		case u.events <- f:
		case <-u.done:
		}
	default:
		u.log.Debugf("ignored frame 0x%02x", t)
	}
}

func (u *Driver) dispatchLoop() {
	defer u.wg.Done()
	for {
		select {
		case f := <-u.events:
			e, err := u.decodeEvent(f)
			if err != nil {
				u.log.Errorf("bad event: %v", err)
				continue
			}
			u.mu.Lock()
			h := u.handler
			u.mu.Unlock()
			h.HandleEvent(e)
		case <-u.done:
			return
		}
	}
}

func (u *Driver) decodeEvent(f []byte) (driver.Event, error) {
	p := payload(f[headerLength:])

	var e driver.Event
	switch f[headerOffsetType] {
	case evtTxDone:
		e.Kind = driver.EventTxDone
	case evtRxTimeout:
		e.Kind = driver.EventRxTimeout
	case evtRxDone:
		e.Kind = driver.EventRxDone
		start, err := p.getUint32LE(0)
		if err != nil {
			return e, err
		}
		end, err := p.getUint32LE(4)
		if err != nil {
			return e, err
		}
		crc, err := p.getByte(8)
		if err != nil {
			return e, err
		}
		e.Start = radio.Instant(start)
		e.End = radio.Instant(end)
		e.CRCOK = crc != 0

		u.mu.Lock()
		copy(u.rx, p[9:])
		e.Length = len(p) - 9
		u.mu.Unlock()
		return e, nil
	}

	end, err := p.getUint32LE(0)
	if err != nil {
		return e, err
	}
	e.End = radio.Instant(end)
	return e, nil
}

var _ driver.Driver = (*Driver)(nil)
