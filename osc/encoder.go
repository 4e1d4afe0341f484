// Package osc encodes flex readings into a fixed-shape OSC message and
// fires it at the configured UDP destination. One datagram per reading,
// no acknowledgment, no retry.
package osc

import (
	"encoding/binary"
	"math"
	"net"

	"github.com/juju/errors"

	"github.com/flexring/ringbridge/log2"
	"github.com/flexring/ringbridge/msg"
)

// The message shape is frozen for interop with third-party receivers:
// address path, NUL, zero padding to a 4 byte boundary, then the 8 byte
// type-tag suffix ",f\0\0\0\0\0\0" whose last 4 bytes hold a big-endian
// IEEE-754 float rewritten on every send.
var typeTagSuffix = []byte(",f\x00\x00\x00\x00\x00\x00")

type Encoder struct {
	log    *log2.Log
	conn   *net.UDPConn
	target *net.UDPAddr

	// buffer is rebuilt by Configure; empty means "not configured yet"
	// and Send is a no-op.
	buffer []byte

	midIn      byte
	midOut     float32
	factorLow  float32
	factorHigh float32
	outMin     float32
	outMax     float32
	idleOut    float32
}

func NewEncoder(log *log2.Log) (*Encoder, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		return nil, errors.Annotate(err, "osc socket")
	}
	return &Encoder{log: log, conn: conn}, nil
}

func (self *Encoder) Close() error { return self.conn.Close() }

// Configured reports whether at least one Configure call succeeded.
func (self *Encoder) Configured() bool { return len(self.buffer) > 0 }

func (self *Encoder) Configure(c msg.Configuration) error {
	target, err := net.ResolveUDPAddr("udp", c.UDPAddress)
	if err != nil {
		return errors.Annotatef(err, "osc target=%s", c.UDPAddress)
	}
	self.target = target

	buf := make([]byte, 0, ((len(c.OSCAddress)+4)&^3)+8)
	buf = append(buf, c.OSCAddress...)
	buf = append(buf, 0)
	align := ((len(buf)-1+4)&^3 - len(buf))
	buf = append(buf, make([]byte, align)...)
	buf = append(buf, typeTagSuffix...)
	self.buffer = buf

	self.midIn = c.InCenter
	halfOut := (c.OutMax - c.OutMin) / 2
	self.midOut = c.OutMin + halfOut
	self.factorLow = halfOut / float32(int(c.InMax)-int(c.InCenter))
	self.factorHigh = -halfOut / float32(int(c.InCenter)-int(c.InMin))
	self.outMin = float32(math.Min(float64(c.OutMin), float64(c.OutMax)))
	self.outMax = float32(math.Max(float64(c.OutMin), float64(c.OutMax)))
	self.idleOut = c.OutIdle

	self.log.Debugf("osc configured target=%s path=%s mid=%g low=%g high=%g",
		c.UDPAddress, c.OSCAddress, self.midOut, self.factorLow, self.factorHigh)
	return nil
}

// Map computes the output value for a raw reading without sending.
func (self *Encoder) Map(flex byte) float32 {
	switch {
	case flex == 0:
		return self.idleOut
	case flex == self.midIn:
		return self.midOut
	case flex < self.midIn:
		return self.clamp(self.midOut + float32(self.midIn-flex)*self.factorLow)
	default:
		return self.clamp(self.midOut + float32(flex-self.midIn)*self.factorHigh)
	}
}

func (self *Encoder) clamp(v float32) float32 {
	if v < self.outMin {
		return self.outMin
	}
	if v > self.outMax {
		return self.outMax
	}
	return v
}

func (self *Encoder) Send(flex byte) error {
	if len(self.buffer) == 0 {
		return nil
	}

	value := self.Map(flex)
	binary.BigEndian.PutUint32(self.buffer[len(self.buffer)-4:], math.Float32bits(value))
	if _, err := self.conn.WriteToUDP(self.buffer, self.target); err != nil {
		return errors.Annotate(err, "osc send")
	}
	self.log.Debugf("osc flex=%d value=%g", flex, value)
	return nil
}
