// Package joycon runs inside the worker process and owns the whole life of
// one accessory: discovery, the vendor initialization handshake, and the
// steady-state read loop feeding the telemetry encoder.
//
// The engine is deliberately single-threaded and fatalist: the first I/O
// error after initialization kills it, and with it the worker process. The
// supervisor in the parent process respawns a fresh generation.
package joycon

import (
	"time"

	"github.com/juju/errors"

	"github.com/flexring/ringbridge/hardware/hid"
	"github.com/flexring/ringbridge/log2"
	"github.com/flexring/ringbridge/msg"
	"github.com/flexring/ringbridge/osc"
)

const defaultInterval = 1 * time.Second

type Engine struct {
	Log     *log2.Log
	Source  hid.Source
	Encoder *osc.Encoder
	Config  <-chan msg.Configuration
	Status  func(msg.Status) error

	// PollInterval paces the discovery loop, Heartbeat forces a periodic
	// re-emission of an unchanged reading. Both default to 1s; tests
	// shorten them.
	PollInterval time.Duration
	Heartbeat    time.Duration
}

// Run blocks until a fatal error. It never returns nil: a healthy engine
// reads frames forever, so returning at all means this worker generation
// is done.
func (self *Engine) Run() error {
	if self.PollInterval == 0 {
		self.PollInterval = defaultInterval
	}
	if self.Heartbeat == 0 {
		self.Heartbeat = defaultInterval
	}

	if err := self.Status(msg.NotConnected()); err != nil {
		return errors.Trace(err)
	}

	// Discovery: wait for the right accessory. On every poll tick drain
	// pending configuration into the encoder so settings changes are not
	// lost while no hardware is attached.
	for {
		var info hid.Info
		select {
		case info = <-self.Source.Attached():
		case <-time.After(self.PollInterval):
			self.drainConfig()
			continue
		}
		if info.VendorID != VendorNintendo || info.ProductID != ProductJoyConR {
			self.Log.Debugf("joycon ignore device %s", info.String())
			continue
		}
		self.Log.Infof("joycon found %s", info.String())

		dev, err := self.Source.Open(info)
		if err != nil {
			return errors.Trace(err)
		}
		d := NewDriver(dev, self.Log)
		if err := self.initialize(d); err != nil {
			return errors.Trace(err)
		}
		return self.readLoop(d)
	}
}

func (self *Engine) drainConfig() {
	for {
		select {
		case c := <-self.Config:
			if err := self.Encoder.Configure(c); err != nil {
				self.Log.Errorf("joycon config err=%v", err)
			}
		default:
			return
		}
	}
}

func (self *Engine) initStep(step msg.InitStep) error {
	self.Log.Debugf("joycon init %s", step.String())
	return errors.Trace(self.Status(msg.Initializing(step)))
}

// initialize replays the fixed handshake that flips the accessory into the
// full-report mode carrying the flex byte. Stage order and reply predicates
// follow the captured sequence exactly.
func (self *Engine) initialize(d *Driver) error {
	if err := self.initStep(msg.StepConfiguring); err != nil {
		return err
	}
	if _, err := d.SendSubCommand(subEnableVibration, []byte{0x01}); err != nil {
		return errors.Trace(err)
	}
	if _, err := d.SendSubCommand(subEnableIMU, []byte{0x01}); err != nil {
		return errors.Trace(err)
	}
	if _, err := d.SendSubCommand(subSetInputReportMode, []byte{reportTagSensor}); err != nil {
		return errors.Trace(err)
	}

	if err := self.initStep(msg.StepMcuConfiguration0); err != nil {
		return err
	}
	err := d.Repeat(subSetMCUState, []byte{0x01}, func(reply []byte) bool {
		return reply[0x0d] == 0x80 && reply[0x0e] == 0x22
	})
	if err != nil {
		return errors.Trace(err)
	}

	if err := self.initStep(msg.StepMcuConfiguration1); err != nil {
		return err
	}
	err = d.Repeat(subSetMCUConfig, mcuConfig1Payload, func(reply []byte) bool {
		return reply[0] == 0x21 && reply[15] == 1 && reply[22] == 3
	})
	if err != nil {
		return errors.Trace(err)
	}

	if err := self.initStep(msg.StepMcuState); err != nil {
		return err
	}
	err = d.Repeat(subSetMCUConfig, mcuStatePayload, func(reply []byte) bool {
		return reply[0] == 0x21 && reply[15] == 9 && reply[17] == 1
	})
	if err != nil {
		return errors.Trace(err)
	}

	if err := self.initStep(msg.Step4); err != nil {
		return err
	}
	err = d.Repeat(subRingPoll, nil, func(reply []byte) bool {
		return reply[0] == 0x21 && reply[14] == subRingPoll && reply[16] == 0x20
	})
	if err != nil {
		return errors.Trace(err)
	}

	if err := self.initStep(msg.Step5); err != nil {
		return err
	}
	for _, arg := range []byte{0x03, 0x02, 0x01} {
		if _, err := d.SendSubCommand(subEnableIMU, []byte{arg}); err != nil {
			return errors.Trace(err)
		}
	}
	err = d.Repeat(subRingData, ringDataPayload, func(reply []byte) bool {
		return reply[0] == 0x21 && reply[14] == subRingData
	})
	if err != nil {
		return errors.Trace(err)
	}

	if err := self.initStep(msg.Step6); err != nil {
		return err
	}
	err = d.Repeat(subRingEnable, ringEnablePayload, func(reply []byte) bool {
		return reply[0] == 0x21 && reply[14] == subRingEnable
	})
	if err != nil {
		return errors.Trace(err)
	}

	if err := self.initStep(msg.Step7); err != nil {
		return err
	}
	err = d.Repeat(subRingLast, ringLastPayload, func(reply []byte) bool {
		return reply[0] == 0x21 && reply[14] == subRingLast
	})
	if err != nil {
		return errors.Trace(err)
	}

	self.Log.Infof("joycon initialized")
	return errors.Trace(d.SetPlayerLights())
}

func (self *Engine) readLoop(d *Driver) error {
	var last byte
	var lastAt time.Time
	have := false

	for {
		frame, n, err := d.ReadFrame()
		if err != nil {
			// a zero tells downstream receivers the accessory is gone
			if serr := self.Encoder.Send(0); serr != nil {
				self.Log.Errorf("joycon parting send err=%v", serr)
			}
			if serr := self.Status(msg.Disconnected()); serr != nil {
				self.Log.Errorf("joycon parting status err=%v", serr)
			}
			return errors.Annotate(err, "joycon read")
		}
		if frame[0] != reportTagSensor || n < flexOffset+1 {
			continue
		}

		flex := frame[flexOffset]
		now := time.Now()
		if have && last == flex && now.Sub(lastAt) < self.Heartbeat {
			continue
		}
		have, last, lastAt = true, flex, now

		// at most one pending configuration per acted-on reading
		select {
		case c := <-self.Config:
			if err := self.Encoder.Configure(c); err != nil {
				self.Log.Errorf("joycon config err=%v", err)
			}
		default:
		}

		if err := self.Encoder.Send(flex); err != nil {
			return errors.Trace(err)
		}
		st := msg.Active(flex)
		if flex == 0 {
			st = msg.NoRingCon()
		}
		if err := self.Status(st); err != nil {
			return errors.Trace(err)
		}
	}
}
