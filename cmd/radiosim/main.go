// Command radiosim drives the scheduled radio against the simulated radio, or
// against a coprocessor on a serial port.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/rigado/radio"
	"github.com/rigado/radio/driver"
	"github.com/rigado/radio/driver/sim"
	"github.com/rigado/radio/driver/uart"
	"github.com/rigado/radio/scheduler"
	"github.com/rigado/radio/trace"
	"github.com/urfave/cli"
)

var (
	verbose   bool
	printJSON bool
	device    string
	baud      uint
	traceFile string

	globalFlags = []cli.Flag{
		cli.BoolFlag{
			Name:        "verbose, v",
			Usage:       "log everything the scheduler does",
			Destination: &verbose,
		},
		cli.BoolFlag{
			Name:        "json",
			Usage:       "print the delivered outcomes as json",
			Destination: &printJSON,
		},
		cli.StringFlag{
			Name:        "device, d",
			Usage:       "serial port of a radio coprocessor (default: simulated radio)",
			Destination: &device,
		},
		cli.UintFlag{
			Name:        "baud",
			Usage:       "baud rate of the serial port",
			Value:       1000000,
			Destination: &baud,
		},
		cli.StringFlag{
			Name:        "trace-file",
			Usage:       "store the delivered outcomes in this file",
			Destination: &traceFile,
		},
	}
)

func main() {
	app := cli.App{
		Name:      "radiosim",
		HelpName:  "radiosim",
		Usage:     "run advertising and connection events on a scheduled radio",
		UsageText: "radiosim [global options] <command> [arguments...]",
		Flags:     globalFlags,
		Before: func(*cli.Context) error {
			if verbose {
				radio.SetLogLevelMax()
			}
			return nil
		},
		Commands: []cli.Command{
			{
				Name:    "advertise",
				Aliases: []string{"a"},
				Usage:   "advertise on the three advertising channels and answer scan requests",
				Action:  advertise,
				Flags:   advFlags,
			},
			{
				Name:    "connect",
				Aliases: []string{"c"},
				Usage:   "follow a connection as peripheral",
				Action:  connect,
				Flags:   connFlags,
			},
			{
				Name:   "seed",
				Usage:  "print the device seed and the static random address",
				Action: seed,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		radio.GetLogger().Error(err)
		os.Exit(1)
	}
}

// session is a scheduled radio with its driver and the outcome trace.
type session struct {
	radio *scheduler.Radio
	drv   driver.Driver
	sim   *sim.Driver
	rec   *trace.Recorder
	last  radio.Outcome
}

// open sets up a session on the serial device, or on a simulated radio with
// peer on the other side of the link.
func open(peer sim.Peer, cb radio.CallbackFuncs, opts ...radio.Option) (*session, error) {
	s := &session{}

	log := radio.GetLogger()
	if device != "" {
		u, err := uart.Open(device, baud, uart.WithLogger(log.ChildLogger(map[string]interface{}{"device": device})))
		if err != nil {
			return nil, err
		}
		s.drv = u
	} else {
		s.sim = sim.New(sim.WithPeer(peer), sim.WithLogger(log.ChildLogger(map[string]interface{}{"component": "sim"})))
		s.drv = s.sim
	}

	s.rec = trace.New(s.track(cb), func() radio.Instant {
		now, err := s.drv.Now()
		if err != nil {
			log.Warnf("trace clock: %v", err)
		}
		return now
	})

	opts = append([]radio.Option{radio.OptErrorHandler(func(err error) {
		log.Errorf("radio: %v", err)
	})}, opts...)
	r, err := scheduler.New(s.drv, s.rec, opts...)
	if err != nil {
		s.drv.Stop()
		return nil, errors.Wrap(err, "can't create radio")
	}
	s.radio = r
	return s, nil
}

// track wraps cb to remember the last outcome.
func (s *session) track(cb radio.CallbackFuncs) radio.CallbackFuncs {
	return radio.CallbackFuncs{
		OnAdvertisingReceived: func(data radio.ReadBuffer) {
			s.last = radio.OutcomeAdvertisingReceived
			cb.AdvertisingReceived(data)
		},
		OnAdvertisingTimeout: func() {
			s.last = radio.OutcomeAdvertisingTimeout
			cb.AdvertisingTimeout()
		},
		OnConnectionTimeout: func() {
			s.last = radio.OutcomeConnectionTimeout
			cb.ConnectionTimeout()
		},
		OnConnectionEventEnd: func() {
			s.last = radio.OutcomeConnectionEventEnd
			cb.ConnectionEventEnd()
		},
	}
}

// wait runs the radio until the pending operation delivered its outcome.
func (s *session) wait(ctx context.Context) (radio.Outcome, error) {
	s.last = radio.OutcomeNone
	for s.last == radio.OutcomeNone {
		if err := s.radio.Run(ctx); err != nil {
			return radio.OutcomeNone, err
		}
	}
	return s.last, nil
}

func (s *session) close() error {
	err := s.radio.Close()

	for o, n := range s.rec.Counts() {
		radio.GetLogger().Infof("%s: %d", o, n)
	}
	if printJSON {
		if jerr := s.rec.WriteJSON(os.Stdout); jerr != nil && err == nil {
			err = jerr
		}
	}
	if traceFile != "" {
		if serr := s.rec.Store(traceFile); serr != nil && err == nil {
			err = serr
		}
	}
	return err
}

func seed(c *cli.Context) error {
	s, err := open(nil, radio.CallbackFuncs{})
	if err != nil {
		return err
	}
	defer s.radio.Close()

	v := s.radio.StaticRandomAddressSeed()
	a, err := radio.StaticRandomAddress(v)
	if err != nil {
		return err
	}
	fmt.Printf("seed    %08x\naddress %s\n", v, a)
	return nil
}

// done reports whether err only says the run was interrupted.
func done(err error) bool {
	switch errors.Cause(err) {
	case context.Canceled, context.DeadlineExceeded:
		return true
	}
	return false
}
