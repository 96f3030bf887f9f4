package main

import (
	"context"
	"fmt"

	"github.com/rigado/radio"
	"github.com/rigado/radio/adv"
	"github.com/rigado/radio/driver/sim"
	"github.com/rigado/radio/pdu"
	"github.com/urfave/cli"
)

var (
	connEvents    int
	connInterval  uint
	connHop       uint
	connRetries   int
	connDropEvery int
	connSCA       uint
	connSend      int

	connFlags = []cli.Flag{
		cli.IntFlag{
			Name:        "events, n",
			Usage:       "number of connection events",
			Value:       20,
			Destination: &connEvents,
		},
		cli.UintFlag{
			Name:        "interval, i",
			Usage:       "connection interval in units of 1.25 ms",
			Value:       6,
			Destination: &connInterval,
		},
		cli.UintFlag{
			Name:        "hop",
			Usage:       "hop increment, 5 to 16",
			Value:       7,
			Destination: &connHop,
		},
		cli.IntFlag{
			Name:        "retries, r",
			Usage:       "connection intervals to keep listening after a missed event",
			Destination: &connRetries,
		},
		cli.IntFlag{
			Name:        "drop-every",
			Usage:       "the simulated central loses every nth poll, 0 for never",
			Value:       5,
			Destination: &connDropEvery,
		},
		cli.UintFlag{
			Name:        "sca",
			Usage:       "local sleep clock accuracy in ppm",
			Value:       50,
			Destination: &connSCA,
		},
		cli.IntFlag{
			Name:        "send",
			Usage:       "payloads the simulated central sends, the peripheral echoes them",
			Value:       3,
			Destination: &connSend,
		},
	}
)

var (
	centralAddress = radio.Address{0xc0, 0x11, 0x22, 0x33, 0x44, 0x55}

	connAccessAddress uint32 = 0x50654c3a
	connCRCInit       uint32 = 0x1a2b3c
)

// link is the peripheral side of a connection.
type link struct {
	s       *session
	central *sim.Central
	req     adv.ConnectRequest
	local   radio.SleepClockAccuracy

	unmapped uint
	channel  uint
}

func connect(c *cli.Context) error {
	local, err := radio.NewSleepClockAccuracy(connSCA)
	if err != nil {
		return err
	}

	central := &sim.Central{AccessAddress: connAccessAddress, CRCInit: connCRCInit}
	s, err := open(central.Peer, radio.CallbackFuncs{}, radio.OptConnectionRetries(connRetries))
	if err != nil {
		return err
	}
	if s.sim == nil {
		central = nil
	}

	l := &link{s: s, central: central, local: local}
	err = l.run()
	if cerr := s.close(); err == nil {
		err = cerr
	}
	return err
}

// connectRequest builds the CONNECT_IND the central sends and parses it the
// way the advertiser receives it.
func (l *link) connectRequest() error {
	addr, err := radio.StaticRandomAddress(l.s.radio.StaticRandomAddressSeed())
	if err != nil {
		return err
	}
	ind := adv.ConnectInd(adv.ConnectRequest{
		Initiator:     centralAddress,
		Advertiser:    addr,
		AccessAddress: connAccessAddress,
		CRCInit:       connCRCInit,
		WindowSize:    2,
		WindowOffset:  0,
		Interval:      uint16(connInterval),
		Timeout:       100,
		ChannelMap:    [5]byte{0xff, 0xff, 0xff, 0xff, 0x1f},
		Hop:           uint8(connHop),
		SCA:           5,
	})
	l.req, err = adv.ParseConnectRequest(ind)
	return err
}

func (l *link) run() error {
	if err := l.connectRequest(); err != nil {
		return err
	}
	if err := l.s.radio.SetAccessAddressAndCRCInit(l.req.AccessAddress, l.req.CRCInit); err != nil {
		return err
	}
	if l.central != nil {
		for i := 0; i < connSend; i++ {
			l.central.Send([]byte(fmt.Sprintf("ping %d", i)))
		}
	}

	log := radio.GetLogger()
	interval := l.req.IntervalTime()
	log.Infof("connection %08x: interval %v, hop %d", l.req.AccessAddress, interval, l.req.Hop)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = withSigHandler(ctx, cancel)

	// The anchor stands at the end of the CONNECT_IND. The first event opens
	// the transmit window, 1.25 ms plus the window offset later.
	start := 1250*radio.Microsecond + l.req.WindowOffsetTime()
	end := start + l.req.WindowSizeTime()
	poll := start + l.req.WindowSizeTime()/2

	retry := false
	missed := 0
	for i := 0; i < connEvents; i++ {
		if !retry {
			l.unmapped, l.channel = l.req.NextChannel(l.unmapped)
		}
		t0 := l.s.radio.Anchor()

		if i > 0 {
			elapsed := interval * radio.DeltaTime(missed+1)
			w := radio.WindowWidening(l.local, l.req.SleepClockAccuracy(), elapsed) + radio.InterFrameSpace/2
			start, end, poll = elapsed-w, elapsed+w, elapsed
		}

		at := t0.Add(poll)
		if l.central != nil && !retry {
			if i > 0 && connDropEvery > 0 && (i+1)%connDropEvery == 0 {
				// lost, the central polls again one interval later
				at = at.Add(interval)
				retry = true
			}
			l.s.sim.Inject(l.central.Poll(l.channel, at))
		} else {
			retry = false
		}

		if err := l.s.radio.ScheduleConnectionEvent(l.channel, start, end, interval); err != nil {
			return err
		}
		o, err := l.s.wait(ctx)
		if err != nil {
			if done(err) {
				return nil
			}
			return err
		}

		switch o {
		case radio.OutcomeConnectionEventEnd:
			log.Debugf("event %d on channel %d, T0 %v", i, l.channel, l.s.radio.Anchor())
			missed = 0
			retry = false
			l.echo()
		case radio.OutcomeConnectionTimeout:
			log.Infof("event %d on channel %d missed", i, l.channel)
			missed++
		}
	}

	if l.central != nil {
		for _, p := range l.central.Received() {
			log.Infof("central received %q", p)
		}
	}
	return nil
}

// echo sends every received payload back.
func (l *link) echo() {
	buf := l.s.radio.Buffer()
	for p := buf.NextReceived(); p != nil; p = buf.NextReceived() {
		payload := p[pdu.HeaderSize:pdu.Size(p)]
		radio.GetLogger().Infof("received %q", payload)
		if err := buf.Enqueue(pdu.New(pdu.LLIDStart, payload)); err != nil {
			radio.GetLogger().Warnf("can't echo: %v", err)
		}
		buf.FreeReceived()
	}
}
