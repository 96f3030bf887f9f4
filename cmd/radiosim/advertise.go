package main

import (
	"context"

	"github.com/rigado/radio"
	"github.com/rigado/radio/adv"
	"github.com/rigado/radio/driver/sim"
	"github.com/urfave/cli"
)

// advertising event: channel 37 one interval after the last event, 38 and 39
// shortly after each other
var advChannels = []uint{37, 38, 39}

const advChannelDelay = 2 * radio.Millisecond

var (
	advEvents    int
	advInterval  uint
	advName      string
	advScanEvery int

	advFlags = []cli.Flag{
		cli.IntFlag{
			Name:        "events, n",
			Usage:       "number of advertising events",
			Value:       10,
			Destination: &advEvents,
		},
		cli.UintFlag{
			Name:        "interval, i",
			Usage:       "advertising interval in ms",
			Value:       100,
			Destination: &advInterval,
		},
		cli.StringFlag{
			Name:        "name",
			Usage:       "complete local name to advertise",
			Value:       "radiosim",
			Destination: &advName,
		},
		cli.IntFlag{
			Name:        "scan-every",
			Usage:       "the simulated scanner requests every nth advertisement, 0 for never",
			Value:       4,
			Destination: &advScanEvery,
		},
	}
)

// scanner is a simulated scanner sending a SCAN_REQ for every nth ADV_IND.
func scanner(every int) sim.Peer {
	addr := radio.Address{0xc6, 0x05, 0x04, 0x03, 0x02, 0x01}
	n := 0
	return func(tx sim.Transmission) []sim.Frame {
		h, a, _, err := adv.ParseAdvertisement(tx.Data)
		if err != nil || h.Type != adv.TypeAdvInd {
			return nil
		}
		n++
		if every <= 0 || n%every != 0 {
			return nil
		}
		return []sim.Frame{tx.Reply(adv.ScanReq(addr, a))}
	}
}

func advertise(c *cli.Context) error {
	interval, err := radio.AdvertisingInterval(advInterval)
	if err != nil {
		return err
	}

	log := radio.GetLogger()
	requests := 0
	cb := radio.CallbackFuncs{
		OnAdvertisingReceived: func(data radio.ReadBuffer) {
			from, _, err := adv.ParseScanRequest(data)
			if err != nil {
				log.Warnf("ignored response: %v", err)
				return
			}
			requests++
			log.Infof("scan request from %s", from)
		},
	}

	s, err := open(scanner(advScanEvery), cb)
	if err != nil {
		return err
	}

	err = runAdvertising(s, interval)
	if cerr := s.close(); err == nil {
		err = cerr
	}
	log.Infof("%d scan requests", requests)
	return err
}

func runAdvertising(s *session, interval radio.DeltaTime) error {
	addr, err := radio.StaticRandomAddress(s.radio.StaticRandomAddressSeed())
	if err != nil {
		return err
	}
	p, err := adv.NewPacket(
		adv.Flags(adv.FlagGeneralDiscoverable|adv.FlagLEOnly),
		adv.CompleteName(advName),
	)
	if err != nil {
		return err
	}
	pdu := adv.AdvInd(addr, p)
	rx := make(radio.ReadBuffer, adv.MaxPDUSize)

	radio.GetLogger().Infof("advertising as %s every %v", addr, interval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = withSigHandler(ctx, cancel)

	for i := 0; i < advEvents; i++ {
		for j, ch := range advChannels {
			when := advChannelDelay
			if j == 0 {
				when = interval
			}
			if err := s.radio.ScheduleAdvertisementAndReceive(ch, pdu, when, rx); err != nil {
				return err
			}
			if _, err := s.wait(ctx); err != nil {
				if done(err) {
					return nil
				}
				return err
			}
		}
	}
	return nil
}
