package scheduler

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rigado/radio"
	"github.com/rigado/radio/driver"
	"github.com/rigado/radio/driver/sim"
	"github.com/rigado/radio/pdu"
)

const (
	testAccessAddress = 0x50654c3a
	testCRCInit       = 0x123456
)

var advPDU = radio.WriteBuffer{0x40, 0x06, 0x01, 0x02, 0x03, 0x04, 0x05, 0xc6}

// outcomes records callbacks in the order Run delivered them.
type outcomes struct {
	mu   sync.Mutex
	got  []radio.Outcome
	data []byte

	// next is called from within the callback.
	next func(radio.Outcome)
}

func (o *outcomes) add(kind radio.Outcome, data radio.ReadBuffer) {
	o.mu.Lock()
	o.got = append(o.got, kind)
	o.data = append([]byte(nil), data...)
	next := o.next
	o.mu.Unlock()
	if next != nil {
		next(kind)
	}
}

func (o *outcomes) AdvertisingReceived(data radio.ReadBuffer) {
	o.add(radio.OutcomeAdvertisingReceived, data)
}
func (o *outcomes) AdvertisingTimeout() { o.add(radio.OutcomeAdvertisingTimeout, nil) }
func (o *outcomes) ConnectionTimeout()  { o.add(radio.OutcomeConnectionTimeout, nil) }
func (o *outcomes) ConnectionEventEnd() { o.add(radio.OutcomeConnectionEventEnd, nil) }

func (o *outcomes) list() []radio.Outcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]radio.Outcome(nil), o.got...)
}

func newTestRadio(t *testing.T, d *sim.Driver, opts ...radio.Option) (*Radio, *outcomes) {
	t.Helper()
	cb := &outcomes{}
	opts = append([]radio.Option{radio.OptLogger(radio.NopLogger())}, opts...)
	r, err := New(d, cb, opts...)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r, cb
}

func runOnce(t *testing.T, r *Radio) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func expectOutcome(t *testing.T, r *Radio, cb *outcomes, want radio.Outcome) {
	t.Helper()
	runOnce(t, r)
	got := cb.list()
	if len(got) == 0 || got[len(got)-1] != want {
		t.Fatalf("got outcomes %v, want %v last", got, want)
	}
}

func dataPDU(sn, nesn, md bool, payload ...byte) []byte {
	llid := byte(pdu.LLIDContinuation)
	if len(payload) > 0 {
		llid = pdu.LLIDStart
	}
	p := pdu.New(llid, payload)
	if sn {
		p[0] |= pdu.FlagSN
	}
	if nesn {
		p[0] |= pdu.FlagNESN
	}
	if md {
		p[0] |= pdu.FlagMD
	}
	return p
}

func connFrame(ch uint, at radio.Instant, data []byte) sim.Frame {
	return sim.Frame{
		Channel:       ch,
		Start:         at,
		AccessAddress: testAccessAddress,
		CRCInit:       testCRCInit,
		Data:          data,
	}
}

func TestAdvertisingWithoutReceive(t *testing.T) {
	d := sim.New(sim.WithStartTime(1000))
	r, cb := newTestRadio(t, d)

	if err := r.ScheduleAdvertisementAndReceive(37, advPDU, 0, nil); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	expectOutcome(t, r, cb, radio.OutcomeAdvertisingTimeout)

	if r.anchor.t0 != 1000 {
		t.Fatalf("T0 %v, want @1000", r.anchor.t0)
	}
	tx := d.Transmissions()
	if len(tx) != 1 || tx[0].Channel != 37 || tx[0].Start != 1000 || !bytes.Equal(tx[0].Data, advPDU) {
		t.Fatalf("unexpected transmissions %+v", tx)
	}
}

func TestAdvertisingReceivesResponse(t *testing.T) {
	reply := []byte{0x43, 0x0c, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	d := sim.New(sim.WithStartTime(1000), sim.WithPeer(func(tx sim.Transmission) []sim.Frame {
		return []sim.Frame{tx.Reply(reply)}
	}))
	r, cb := newTestRadio(t, d)

	rx := make(radio.ReadBuffer, 39)
	if err := r.ScheduleAdvertisementAndReceive(38, advPDU, 2000, rx); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	expectOutcome(t, r, cb, radio.OutcomeAdvertisingReceived)

	if r.anchor.t0 != 3000 {
		t.Fatalf("T0 %v, want @3000", r.anchor.t0)
	}
	if !bytes.Equal(cb.data, reply) || !bytes.Equal(rx[:len(reply)], reply) {
		t.Fatalf("received %x, want %x", cb.data, reply)
	}
}

func TestAdvertisingResponseWithCRCError(t *testing.T) {
	replies := make(chan sim.Frame, 1)
	d := sim.New(sim.WithPeer(func(tx sim.Transmission) []sim.Frame {
		f := tx.Reply([]byte{0x43, 0x00})
		f.Corrupt = true
		replies <- f
		return []sim.Frame{f}
	}))
	r, cb := newTestRadio(t, d)
	t0 := r.anchor.t0

	if err := r.ScheduleAdvertisementAndReceive(39, advPDU, 500, make(radio.ReadBuffer, 39)); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	expectOutcome(t, r, cb, radio.OutcomeAdvertisingTimeout)
	if r.anchor.t0 != t0.Add(500) {
		t.Fatalf("T0 %v, want %v", r.anchor.t0, t0.Add(500))
	}

	// the timeout follows the corrupt frame, not the end of the window
	reply := <-replies
	if now, _ := d.Now(); now != reply.End() {
		t.Fatalf("timeout at %v, want end of the corrupt frame %v", now, reply.End())
	}
}

func TestAdvertisingResponseTooLong(t *testing.T) {
	reply := []byte{0x43, 0x04, 0x01, 0x02, 0x03, 0x04}
	d := sim.New(sim.WithPeer(func(tx sim.Transmission) []sim.Frame {
		return []sim.Frame{tx.Reply(reply)}
	}))
	r, cb := newTestRadio(t, d)
	t0 := r.anchor.t0

	if err := r.ScheduleAdvertisementAndReceive(37, advPDU, 500, make(radio.ReadBuffer, 4)); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	expectOutcome(t, r, cb, radio.OutcomeAdvertisingTimeout)
	if r.anchor.t0 != t0.Add(500) {
		t.Fatalf("T0 %v, want %v", r.anchor.t0, t0.Add(500))
	}
	if cb.data != nil {
		t.Fatalf("truncated response delivered: %x", cb.data)
	}
}

func TestAdvertisingLateResponseIsMissed(t *testing.T) {
	d := sim.New(sim.WithPeer(func(tx sim.Transmission) []sim.Frame {
		f := tx.Reply([]byte{0x43, 0x00})
		f.Start = f.Start.Add(100)
		return []sim.Frame{f}
	}))
	r, cb := newTestRadio(t, d)

	if err := r.ScheduleAdvertisementAndReceive(37, advPDU, 0, make(radio.ReadBuffer, 39)); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	expectOutcome(t, r, cb, radio.OutcomeAdvertisingTimeout)
}

func TestAnchorWrapsWithTimer(t *testing.T) {
	d := sim.New(sim.WithStartTime(0xffffff00))
	r, cb := newTestRadio(t, d)

	if err := r.ScheduleAdvertisementAndReceive(37, advPDU, 0x200, nil); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	expectOutcome(t, r, cb, radio.OutcomeAdvertisingTimeout)

	if r.anchor.t0 != 0x100 {
		t.Fatalf("T0 %v, want @256", r.anchor.t0)
	}
	if tx := d.Transmissions(); tx[0].Start != 0x100 {
		t.Fatalf("transmitted at %v", tx[0].Start)
	}
}

func TestConnectionEventEnd(t *testing.T) {
	d := sim.New(sim.WithStartTime(10000))
	r, cb := newTestRadio(t, d)
	if err := r.SetAccessAddressAndCRCInit(testAccessAddress, testCRCInit); err != nil {
		t.Fatalf("set access address: %v", err)
	}
	t0 := r.anchor.t0

	d.Inject(connFrame(9, t0.Add(500), dataPDU(false, false, false)))
	if err := r.ScheduleConnectionEvent(9, 0, 1250, 7500); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	expectOutcome(t, r, cb, radio.OutcomeConnectionEventEnd)

	if r.anchor.t0 != t0.Add(500) {
		t.Fatalf("T0 %v, want %v", r.anchor.t0, t0.Add(500))
	}

	tx := d.Transmissions()
	if len(tx) != 1 {
		t.Fatalf("got %d transmissions, want 1", len(tx))
	}
	end := t0.Add(500 + radio.DeltaTime(sim.Airtime(2)))
	if tx[0].Start != end.Add(radio.InterFrameSpace) {
		t.Fatalf("response at %v, want %v", tx[0].Start, end.Add(radio.InterFrameSpace))
	}
	h := pdu.HeaderOf(tx[0].Data)
	if !h.IsEmptyPDU() || !h.NESN() || h.SN() || h.MoreData() {
		t.Fatalf("unexpected response %x", tx[0].Data)
	}
	if tx[0].AccessAddress != testAccessAddress || tx[0].CRCInit != testCRCInit {
		t.Fatalf("latched configuration not applied: %x %x", tx[0].AccessAddress, tx[0].CRCInit)
	}
}

func TestConnectionTimeoutKeepsAnchor(t *testing.T) {
	d := sim.New()
	r, cb := newTestRadio(t, d)
	t0 := r.anchor.t0

	if err := r.ScheduleConnectionEvent(9, 0, 1250, 7500); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	expectOutcome(t, r, cb, radio.OutcomeConnectionTimeout)

	if r.anchor.t0 != t0 {
		t.Fatalf("T0 moved to %v", r.anchor.t0)
	}
	if now, _ := d.Now(); now != t0.Add(1250) {
		t.Fatalf("window closed at %v, want %v", now, t0.Add(1250))
	}
	if len(d.Transmissions()) != 0 {
		t.Fatalf("transmitted without a received pdu")
	}
}

func TestConnectionRetriesNextInterval(t *testing.T) {
	d := sim.New()
	r, cb := newTestRadio(t, d, radio.OptConnectionRetries(2))
	if err := r.SetAccessAddressAndCRCInit(testAccessAddress, testCRCInit); err != nil {
		t.Fatalf("set access address: %v", err)
	}
	t0 := r.anchor.t0

	d.Inject(connFrame(3, t0.Add(7500+100), dataPDU(false, false, false)))
	if err := r.ScheduleConnectionEvent(3, 0, 1250, 7500); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	expectOutcome(t, r, cb, radio.OutcomeConnectionEventEnd)

	if r.anchor.t0 != t0.Add(7600) {
		t.Fatalf("T0 %v, want %v", r.anchor.t0, t0.Add(7600))
	}
	if n := len(cb.list()); n != 1 {
		t.Fatalf("got %d callbacks, want 1", n)
	}
}

func TestConnectionRetriesExhausted(t *testing.T) {
	d := sim.New()
	r, cb := newTestRadio(t, d, radio.OptConnectionRetries(2))
	t0 := r.anchor.t0

	if err := r.ScheduleConnectionEvent(3, 0, 1250, 7500); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	expectOutcome(t, r, cb, radio.OutcomeConnectionTimeout)

	if r.anchor.t0 != t0 {
		t.Fatalf("T0 moved to %v", r.anchor.t0)
	}
	if now, _ := d.Now(); now != t0.Add(2*7500+1250) {
		t.Fatalf("last window closed at %v, want %v", now, t0.Add(2*7500+1250))
	}
}

func TestConnectionCRCErrorBeforeFirstPDU(t *testing.T) {
	d := sim.New()
	r, cb := newTestRadio(t, d)
	if err := r.SetAccessAddressAndCRCInit(testAccessAddress, testCRCInit); err != nil {
		t.Fatalf("set access address: %v", err)
	}
	t0 := r.anchor.t0

	bad := connFrame(9, t0.Add(200), dataPDU(false, false, false))
	bad.Corrupt = true
	d.Inject(bad)
	d.Inject(connFrame(9, t0.Add(600), dataPDU(false, false, false)))

	if err := r.ScheduleConnectionEvent(9, 0, 1250, 7500); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	expectOutcome(t, r, cb, radio.OutcomeConnectionEventEnd)
	if r.anchor.t0 != t0.Add(600) {
		t.Fatalf("T0 %v, want %v", r.anchor.t0, t0.Add(600))
	}
}

// central plays the connection master: it answers every PDU while the
// peripheral signals more data and keeps track of SN/NESN.
type central struct {
	sn, nesn bool
	payloads [][]byte
	corrupt  int
}

func (c *central) peer(tx sim.Transmission) []sim.Frame {
	if tx.AccessAddress != testAccessAddress {
		return nil
	}
	h := pdu.HeaderOf(tx.Data)
	if h.NESN() != c.sn {
		c.sn = !c.sn
	}
	if h.SN() == c.nesn {
		c.nesn = !c.nesn
		if h.Length() > 0 {
			c.payloads = append(c.payloads, append([]byte(nil), tx.Data[pdu.HeaderSize:]...))
		}
	}
	if !h.MoreData() {
		return nil
	}
	f := tx.Reply(dataPDU(c.sn, c.nesn, false))
	if c.corrupt > 0 {
		c.corrupt--
		f.Corrupt = true
	}
	return []sim.Frame{f}
}

func TestConnectionExchangeWhileMoreData(t *testing.T) {
	c := &central{}
	d := sim.New(sim.WithPeer(c.peer))
	r, cb := newTestRadio(t, d)
	if err := r.SetAccessAddressAndCRCInit(testAccessAddress, testCRCInit); err != nil {
		t.Fatalf("set access address: %v", err)
	}
	for _, b := range []byte{0xa1, 0xa2} {
		if err := r.Buffer().Enqueue(pdu.New(pdu.LLIDStart, []byte{b})); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	t0 := r.anchor.t0

	d.Inject(connFrame(9, t0.Add(500), dataPDU(false, false, false)))
	if err := r.ScheduleConnectionEvent(9, 0, 1250, 7500); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	expectOutcome(t, r, cb, radio.OutcomeConnectionEventEnd)

	if r.anchor.t0 != t0.Add(500) {
		t.Fatalf("T0 %v, want first pdu %v", r.anchor.t0, t0.Add(500))
	}
	if len(c.payloads) != 2 || c.payloads[0][0] != 0xa1 || c.payloads[1][0] != 0xa2 {
		t.Fatalf("central received %x", c.payloads)
	}
	if tx, _ := r.Buffer().Pending(); tx != 1 {
		t.Fatalf("%d pdus pending, want the unacknowledged last one", tx)
	}
}

func TestConnectionCRCErrorAfterExchange(t *testing.T) {
	c := &central{corrupt: 1}
	d := sim.New(sim.WithPeer(c.peer))
	r, cb := newTestRadio(t, d)
	if err := r.SetAccessAddressAndCRCInit(testAccessAddress, testCRCInit); err != nil {
		t.Fatalf("set access address: %v", err)
	}
	for _, b := range []byte{0xb1, 0xb2} {
		if err := r.Buffer().Enqueue(pdu.New(pdu.LLIDStart, []byte{b})); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	t0 := r.anchor.t0

	d.Inject(connFrame(9, t0.Add(300), dataPDU(false, false, false)))
	if err := r.ScheduleConnectionEvent(9, 0, 1250, 7500); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	expectOutcome(t, r, cb, radio.OutcomeConnectionEventEnd)

	if r.anchor.t0 != t0.Add(300) {
		t.Fatalf("T0 %v, want %v", r.anchor.t0, t0.Add(300))
	}
	if n := len(d.Transmissions()); n != 1 {
		t.Fatalf("got %d transmissions, want the event to end after the crc error", n)
	}
}

func TestReceivedDataReachesBuffer(t *testing.T) {
	d := sim.New()
	r, cb := newTestRadio(t, d)
	if err := r.SetAccessAddressAndCRCInit(testAccessAddress, testCRCInit); err != nil {
		t.Fatalf("set access address: %v", err)
	}
	t0 := r.anchor.t0

	d.Inject(connFrame(1, t0.Add(100), dataPDU(false, false, false, 0x11, 0x22)))
	if err := r.ScheduleConnectionEvent(1, 0, 1250, 7500); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	expectOutcome(t, r, cb, radio.OutcomeConnectionEventEnd)

	p := r.Buffer().NextReceived()
	if p == nil || !bytes.Equal(p[pdu.HeaderSize:], []byte{0x11, 0x22}) {
		t.Fatalf("received %x", p)
	}
}

func TestLatchAppliesToNextOperation(t *testing.T) {
	d := sim.New()
	r, cb := newTestRadio(t, d)

	if err := r.ScheduleAdvertisementAndReceive(37, advPDU, 0, nil); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if err := r.SetAccessAddressAndCRCInit(testAccessAddress, testCRCInit); errors.Cause(err) != radio.ErrOperationPending {
		t.Fatalf("got %v, want ErrOperationPending", err)
	}
	expectOutcome(t, r, cb, radio.OutcomeAdvertisingTimeout)

	if err := r.SetAccessAddressAndCRCInit(testAccessAddress, testCRCInit); err != nil {
		t.Fatalf("set access address: %v", err)
	}
	if aa, _ := d.Config(); aa != driver.AdvertisingAccessAddress {
		t.Fatalf("configuration applied before the next operation")
	}
	if err := r.ScheduleAdvertisementAndReceive(37, advPDU, 1000, nil); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	expectOutcome(t, r, cb, radio.OutcomeAdvertisingTimeout)

	tx := d.Transmissions()
	if tx[0].AccessAddress != driver.AdvertisingAccessAddress || tx[1].AccessAddress != testAccessAddress {
		t.Fatalf("access addresses %x %x", tx[0].AccessAddress, tx[1].AccessAddress)
	}
}

func TestScheduleValidation(t *testing.T) {
	d := sim.New()
	r, _ := newTestRadio(t, d)

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"adv channel", func() error { return r.ScheduleAdvertisementAndReceive(40, advPDU, 0, nil) }, radio.ErrInvalidChannel},
		{"adv empty", func() error { return r.ScheduleAdvertisementAndReceive(37, nil, 0, nil) }, radio.ErrEmptyTransmit},
		{"adv negative", func() error { return r.ScheduleAdvertisementAndReceive(37, advPDU, -1, nil) }, radio.ErrInvalidDelta},
		{"adv too far", func() error { return r.ScheduleAdvertisementAndReceive(37, advPDU, radio.MaxDeltaTime+1, nil) }, radio.ErrInvalidDelta},
		{"conn channel", func() error { return r.ScheduleConnectionEvent(41, 0, 10, 7500) }, radio.ErrInvalidChannel},
		{"conn window", func() error { return r.ScheduleConnectionEvent(1, 100, 10, 7500) }, radio.ErrInvalidWindow},
		{"conn interval", func() error { return r.ScheduleConnectionEvent(1, 0, 10, -7500) }, radio.ErrInvalidDelta},
	}
	for _, tc := range tests {
		if err := tc.call(); errors.Cause(err) != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
	if r.Pending() {
		t.Fatalf("rejected call left an operation pending")
	}
}

func TestSecondScheduleWhilePending(t *testing.T) {
	d := sim.New()
	r, cb := newTestRadio(t, d)

	if err := r.ScheduleAdvertisementAndReceive(37, advPDU, 0, nil); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if err := r.ScheduleConnectionEvent(1, 0, 10, 7500); errors.Cause(err) != radio.ErrOperationPending {
		t.Fatalf("got %v, want ErrOperationPending", err)
	}
	expectOutcome(t, r, cb, radio.OutcomeAdvertisingTimeout)
	if n := len(cb.list()); n != 1 {
		t.Fatalf("got %d callbacks, want 1", n)
	}
}

func TestExactlyOneCallbackPerOperation(t *testing.T) {
	const events = 20

	d := sim.New()
	r, cb := newTestRadio(t, d)

	scheduled := 1
	cb.next = func(radio.Outcome) {
		if scheduled == events {
			return
		}
		scheduled++
		if err := r.ScheduleAdvertisementAndReceive(uint(37+scheduled%3), advPDU, 20*radio.Millisecond, nil); err != nil {
			t.Errorf("schedule from callback: %v", err)
		}
	}
	if err := r.ScheduleAdvertisementAndReceive(37, advPDU, 0, nil); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	for i := 0; i < events; i++ {
		runOnce(t, r)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := r.Run(ctx); err != context.DeadlineExceeded {
		t.Fatalf("got %v, want no further callbacks", err)
	}
	if n := len(cb.list()); n != events {
		t.Fatalf("got %d callbacks, want %d", n, events)
	}
	if n := len(d.Transmissions()); n != events {
		t.Fatalf("got %d transmissions, want %d", n, events)
	}
}

func TestWakeUp(t *testing.T) {
	d := sim.New()
	r, cb := newTestRadio(t, d)

	r.WakeUp()
	r.WakeUp()
	runOnce(t, r)

	done := make(chan error)
	go func() { done <- r.Run(context.Background()) }()
	time.Sleep(10 * time.Millisecond)
	r.WakeUp()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("wake up did not return run")
	}
	if n := len(cb.list()); n != 0 {
		t.Fatalf("wake up delivered %d callbacks", n)
	}
}

func TestRunContextAndClose(t *testing.T) {
	d := sim.New()
	r, _ := newTestRadio(t, d)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Run(ctx); err != context.Canceled {
		t.Fatalf("got %v, want context.Canceled", err)
	}

	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := r.Run(context.Background()); err != radio.ErrClosed {
		t.Fatalf("got %v, want ErrClosed", err)
	}
	if err := r.ScheduleAdvertisementAndReceive(37, advPDU, 0, nil); err != radio.ErrClosed {
		t.Fatalf("got %v, want ErrClosed", err)
	}
}

func TestDriverErrors(t *testing.T) {
	errRadio := errors.New("radio failure")

	d := sim.New()
	var handled []error
	r, cb := newTestRadio(t, d, radio.OptErrorHandler(func(err error) { handled = append(handled, err) }))

	d.FailAfter(0, errRadio)
	if err := r.ScheduleAdvertisementAndReceive(37, advPDU, 0, nil); errors.Cause(err) != errRadio {
		t.Fatalf("got %v, want %v", err, errRadio)
	}
	if r.Pending() {
		t.Fatalf("refused operation left pending")
	}

	// the receive after the transmission fails in the completion context
	d.FailAfter(1, errRadio)
	if err := r.ScheduleAdvertisementAndReceive(37, advPDU, 0, make(radio.ReadBuffer, 39)); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	expectOutcome(t, r, cb, radio.OutcomeAdvertisingTimeout)
	if len(handled) != 1 || errors.Cause(handled[0]) != errRadio {
		t.Fatalf("error handler got %v", handled)
	}
}

func TestOptions(t *testing.T) {
	d := sim.New(sim.WithDeviceSeed(0xcafe))
	r, _ := newTestRadio(t, d, radio.OptReceiveSlack(40*radio.Microsecond))

	if r.slack != 40 {
		t.Fatalf("slack %v", r.slack)
	}
	if r.StaticRandomAddressSeed() != 0xcafe {
		t.Fatalf("seed %x", r.StaticRandomAddressSeed())
	}
	if err := r.Option(radio.OptReceiveSlack(radio.InterFrameSpace)); errors.Cause(err) != radio.ErrInvalidOption {
		t.Fatalf("got %v, want ErrInvalidOption", err)
	}
	if err := r.Option(radio.OptBufferSizes(radio.DefaultBufferSizes())); errors.Cause(err) != radio.ErrInvalidOption {
		t.Fatalf("buffer sizes changed after construction: %v", err)
	}
	if err := r.Option(radio.OptConnectionRetries(-1)); errors.Cause(err) != radio.ErrInvalidOption {
		t.Fatalf("got %v, want ErrInvalidOption", err)
	}
}

func TestConnectionEventsWithCentral(t *testing.T) {
	c := &sim.Central{AccessAddress: testAccessAddress, CRCInit: testCRCInit}
	d := sim.New(sim.WithPeer(c.Peer))
	r, cb := newTestRadio(t, d)
	if err := r.SetAccessAddressAndCRCInit(testAccessAddress, testCRCInit); err != nil {
		t.Fatalf("set access address: %v", err)
	}

	c.Send([]byte{0x01})
	c.Send([]byte{0x02})
	if err := r.Buffer().Enqueue(pdu.New(pdu.LLIDStart, []byte{0x0a})); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	const interval = 7500
	for i := 0; i < 3; i++ {
		at := r.Anchor().Add(interval)
		d.Inject(c.Poll(5, at))
		if err := r.ScheduleConnectionEvent(5, interval-100, interval+100, interval); err != nil {
			t.Fatalf("schedule: %v", err)
		}
		expectOutcome(t, r, cb, radio.OutcomeConnectionEventEnd)
		if r.Anchor() != at {
			t.Fatalf("event %d: T0 %v, want %v", i, r.Anchor(), at)
		}
	}

	var got []byte
	for p := r.Buffer().NextReceived(); p != nil; p = r.Buffer().NextReceived() {
		got = append(got, p[pdu.HeaderSize:]...)
		r.Buffer().FreeReceived()
	}
	if !bytes.Equal(got, []byte{0x01, 0x02}) {
		t.Fatalf("peripheral received %x", got)
	}
	if rx := c.Received(); len(rx) != 1 || rx[0][0] != 0x0a {
		t.Fatalf("central received %x", rx)
	}
	if tx, _ := r.Buffer().Pending(); tx != 0 {
		t.Fatalf("%d pdus not acknowledged", tx)
	}
}
