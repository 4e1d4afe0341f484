package joycon

import (
	"github.com/juju/errors"

	"github.com/flexring/ringbridge/hardware/hid"
	"github.com/flexring/ringbridge/helpers"
	"github.com/flexring/ringbridge/log2"
)

// ErrSubCommandRejected means the device answered but did not acknowledge
// the sub-command. During initialization this is routine; callers resend.
var ErrSubCommandRejected = errors.New("joycon sub-command rejected")

type Driver struct {
	log     *log2.Log
	dev     hid.Device
	counter byte
	buf     [InputReportLength]byte
}

func NewDriver(dev hid.Device, log *log2.Log) *Driver {
	return &Driver{log: log, dev: dev}
}

func (self *Driver) Close() error { return self.dev.Close() }

// ReadFrame reads one input report into the fixed zero-padded buffer.
// The returned slice is valid until the next read.
func (self *Driver) ReadFrame() ([]byte, int, error) {
	for i := range self.buf {
		self.buf[i] = 0
	}
	n, err := self.dev.Read(self.buf[:])
	if err != nil {
		return nil, 0, errors.Trace(err)
	}
	return self.buf[:], n, nil
}

// SendSubCommand writes one vendor sub-command and reads a single reply
// report. Anything but an acknowledged 0x21 reply returns
// ErrSubCommandRejected with the raw reply for inspection.
func (self *Driver) SendSubCommand(cmd byte, data []byte) ([]byte, error) {
	report := make([]byte, 0, 2+len(rumbleNeutral)+1+len(data))
	report = append(report, outputReportCommand, self.counter)
	self.counter = (self.counter + 1) & 0xf
	report = append(report, rumbleNeutral[:]...)
	report = append(report, cmd)
	report = append(report, data...)

	if err := helpers.WriteAll(self.dev, report); err != nil {
		return nil, errors.Annotatef(err, "subcommand %02x write", cmd)
	}
	reply, n, err := self.ReadFrame()
	if err != nil {
		return nil, errors.Annotatef(err, "subcommand %02x read", cmd)
	}
	if n <= ackOffset || reply[0] != reportTagReply || reply[ackOffset]&0x80 == 0 {
		self.log.Debugf("joycon subcommand %02x nak reply=%02x... n=%d", cmd, reply[0], n)
		return reply, ErrSubCommandRejected
	}
	return reply, nil
}

// Repeat resends cmd until the device acknowledges it and ok approves the
// reply. Rejection and predicate mismatch both retry without limit; any
// other error aborts.
func (self *Driver) Repeat(cmd byte, data []byte, ok func(reply []byte) bool) error {
	for {
		reply, err := self.SendSubCommand(cmd, data)
		if err == ErrSubCommandRejected {
			continue
		}
		if err != nil {
			return errors.Trace(err)
		}
		if ok(reply) {
			return nil
		}
	}
}

// SetPlayerLights turns on the steady player indicator.
func (self *Driver) SetPlayerLights() error {
	_, err := self.SendSubCommand(subSetPlayerLights, []byte{lightsSteady})
	return errors.Trace(err)
}
