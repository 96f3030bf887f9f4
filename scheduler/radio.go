// Package scheduler implements radio.ScheduledRadio on top of a driver.Driver.
//
// Scheduling calls run in the application context and return as soon as the
// driver accepted the first Transmit or Receive. Everything after that runs in
// the driver's completion context (handleEvent): the operation advances from
// event to event until it completes, moves the anchor and queues exactly one
// outcome. Run picks the outcome up and calls the matching callback.
package scheduler

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rigado/radio"
	"github.com/rigado/radio/driver"
	"github.com/rigado/radio/pdu"
)

const defaultReceiveSlack = 16 * radio.Microsecond

// Radio is a radio.ScheduledRadio.
type Radio struct {
	drv driver.Driver
	cb  radio.Callbacks
	buf *pdu.Buffer

	anchor anchor
	latch  latch

	// pending is set from the scheduling call until its outcome was delivered.
	pending atomic.Bool
	op      operation
	scratch []byte

	outcomes chan outcome
	wake     chan struct{}
	closed   chan struct{}
	runMu    sync.Mutex
	closeMu  sync.Mutex

	sizes        radio.BufferSizes
	slack        radio.DeltaTime
	retries      int
	seed         uint32
	log          radio.Logger
	errorHandler func(error)
}

// New starts the driver and takes the current time as the first anchor. cb
// is borrowed for the lifetime of the Radio.
func New(d driver.Driver, cb radio.Callbacks, opts ...radio.Option) (*Radio, error) {
	if d == nil || cb == nil {
		return nil, errors.New("driver and callbacks required")
	}

	r := &Radio{
		drv:      d,
		cb:       cb,
		latch:    newLatch(),
		outcomes: make(chan outcome, 1),
		wake:     make(chan struct{}, 1),
		closed:   make(chan struct{}),
		sizes:    radio.DefaultBufferSizes(),
		slack:    defaultReceiveSlack,
		log:      radio.GetLogger().ChildLogger(map[string]interface{}{"component": "scheduler"}),
	}
	if err := r.Option(opts...); err != nil {
		return nil, errors.Wrap(err, "can't set options")
	}

	var err error
	r.buf, err = pdu.NewBuffer(r.sizes)
	if err != nil {
		return nil, err
	}
	r.scratch = make([]byte, r.buf.ReceiveCapacity())

	if err := d.Start(driver.HandlerFunc(r.handleEvent)); err != nil {
		return nil, errors.Wrap(err, "can't start driver")
	}
	t0, err := d.Now()
	if err != nil {
		d.Stop()
		return nil, errors.Wrap(err, "can't read driver time")
	}
	if r.seed, err = d.DeviceSeed(); err != nil {
		d.Stop()
		return nil, errors.Wrap(err, "can't read device seed")
	}
	r.anchor.move(t0)
	r.log.Debugf("started, T0 %v", r.anchor.t0)

	return r, nil
}

// Option sets the options specified.
func (r *Radio) Option(opts ...radio.Option) error {
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return err
		}
	}
	return nil
}

// Buffer returns the packet buffer exchanged during connection events.
func (r *Radio) Buffer() *pdu.Buffer {
	return r.buf
}

// Pending reports whether an operation has been scheduled and its outcome not
// yet delivered.
func (r *Radio) Pending() bool {
	return r.pending.Load()
}

// Anchor returns T0. It is only meaningful between operations, after Run
// delivered the last outcome.
func (r *Radio) Anchor() radio.Instant {
	return r.anchor.t0
}

// StaticRandomAddressSeed returns the device seed the driver reported on
// start.
func (r *Radio) StaticRandomAddressSeed() uint32 {
	return r.seed
}

// SetAccessAddressAndCRCInit latches the values for the next scheduled
// operation.
func (r *Radio) SetAccessAddressAndCRCInit(accessAddress, crcInit uint32) error {
	if r.pending.Load() {
		return errors.Wrap(radio.ErrOperationPending, "set access address")
	}
	r.latch.set(accessAddress, crcInit)
	return nil
}

// Close stops the driver. Run returns radio.ErrClosed afterwards.
func (r *Radio) Close() error {
	r.closeMu.Lock()
	defer r.closeMu.Unlock()

	select {
	case <-r.closed:
		return nil
	default:
		close(r.closed)
	}
	return r.drv.Stop()
}

// begin claims the single operation slot and applies latched configuration.
func (r *Radio) begin(what string) error {
	select {
	case <-r.closed:
		return radio.ErrClosed
	default:
	}

	if !r.pending.CompareAndSwap(false, true) {
		return errors.Wrapf(radio.ErrOperationPending, "schedule %s", what)
	}
	if err := r.latch.apply(r.drv); err != nil {
		r.pending.Store(false)
		return err
	}
	return nil
}

// abort releases the operation slot when the driver refused the first step.
func (r *Radio) abort() {
	r.op = operation{}
	r.pending.Store(false)
}

// SetBufferSizes overrides the packet buffer capacities.
func (r *Radio) SetBufferSizes(s radio.BufferSizes) error {
	if r.buf != nil {
		return errors.Wrap(radio.ErrInvalidOption, "buffer sizes can only be set on construction")
	}
	if err := s.Validate(); err != nil {
		return err
	}
	r.sizes = s
	return nil
}

// SetReceiveSlack overrides how long before and after the expected start of a
// response the receiver listens.
func (r *Radio) SetReceiveSlack(d radio.DeltaTime) error {
	if d < 0 || d >= radio.InterFrameSpace {
		return errors.Wrapf(radio.ErrInvalidOption, "receive slack %v", d)
	}
	r.slack = d
	return nil
}

// SetConnectionRetries sets how many further intervals a connection event
// without a valid PDU is retried before ConnectionTimeout.
func (r *Radio) SetConnectionRetries(n int) error {
	if n < 0 {
		return errors.Wrapf(radio.ErrInvalidOption, "connection retries %d", n)
	}
	r.retries = n
	return nil
}

// SetLogger overrides the logger.
func (r *Radio) SetLogger(l radio.Logger) error {
	r.log = l
	return nil
}

// SetErrorHandler sets the handler for driver errors in the completion context.
func (r *Radio) SetErrorHandler(handler func(error)) error {
	r.errorHandler = handler
	return nil
}

var _ radio.ScheduledRadio = (*Radio)(nil)
