// Package ipc is the rendezvous between the supervisor and one worker
// process generation. The supervisor listens on a loopback one-shot
// endpoint and passes its address through the worker's stdin; the worker
// dials back and announces itself with a hello frame. The resulting Link
// is duplex: configuration frames travel down, status frames travel up.
package ipc

import (
	"bufio"
	"encoding/json"
	"net"
	"sync"

	"github.com/juju/errors"

	"github.com/flexring/ringbridge/helpers"
	"github.com/flexring/ringbridge/msg"
)

const (
	kindHello  = "hello"
	kindConfig = "config"
	kindStatus = "status"
)

// One frame per line. Exactly one of Config/Status is set, per Kind.
type frame struct {
	Kind   string             `json:"kind"`
	Config *msg.Configuration `json:"config,omitempty"`
	Status *msg.Status        `json:"status,omitempty"`
}

type Link struct {
	conn net.Conn
	dec  *json.Decoder
	enc  *json.Encoder
	rlk  sync.Mutex
	wlk  sync.Mutex
}

func newLink(conn net.Conn) *Link {
	return &Link{
		conn: conn,
		dec:  json.NewDecoder(bufio.NewReader(conn)),
		enc:  json.NewEncoder(conn),
	}
}

func (self *Link) Close() error { return self.conn.Close() }

func (self *Link) send(f frame) error {
	return helpers.WithLockError(&self.wlk, func() error {
		return errors.Trace(self.enc.Encode(f))
	})
}

func (self *Link) recv() (frame, error) {
	self.rlk.Lock()
	defer self.rlk.Unlock()
	var f frame
	err := self.dec.Decode(&f)
	return f, errors.Trace(err)
}

func (self *Link) SendConfig(c msg.Configuration) error {
	return self.send(frame{Kind: kindConfig, Config: &c})
}

func (self *Link) SendStatus(s msg.Status) error {
	return self.send(frame{Kind: kindStatus, Status: &s})
}

func (self *Link) RecvConfig() (msg.Configuration, error) {
	f, err := self.recv()
	if err != nil {
		return msg.Configuration{}, err
	}
	if f.Kind != kindConfig || f.Config == nil {
		return msg.Configuration{}, errors.NotValidf("ipc frame kind=%s expected=%s", f.Kind, kindConfig)
	}
	return *f.Config, nil
}

func (self *Link) RecvStatus() (msg.Status, error) {
	f, err := self.recv()
	if err != nil {
		return msg.Status{}, err
	}
	if f.Kind != kindStatus || f.Status == nil {
		return msg.Status{}, errors.NotValidf("ipc frame kind=%s expected=%s", f.Kind, kindStatus)
	}
	return *f.Status, nil
}

// OneShotServer accepts exactly one worker connection then closes.
type OneShotServer struct {
	ln net.Listener
}

func NewOneShotServer() (*OneShotServer, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, errors.Annotate(err, "ipc listen")
	}
	return &OneShotServer{ln: ln}, nil
}

func (self *OneShotServer) Addr() string { return self.ln.Addr().String() }

// Accept blocks until a worker connects and presents its hello frame.
// No timeout: a worker that never dials back stalls the caller.
func (self *OneShotServer) Accept() (*Link, error) {
	defer self.ln.Close()
	conn, err := self.ln.Accept()
	if err != nil {
		return nil, errors.Annotate(err, "ipc accept")
	}
	link := newLink(conn)
	f, err := link.recv()
	if err != nil {
		link.Close()
		return nil, errors.Annotate(err, "ipc hello")
	}
	if f.Kind != kindHello {
		link.Close()
		return nil, errors.NotValidf("ipc first frame kind=%s expected=%s", f.Kind, kindHello)
	}
	return link, nil
}

func (self *OneShotServer) Close() error { return self.ln.Close() }

// Connect is the worker side of the rendezvous.
func Connect(addr string) (*Link, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, errors.Annotatef(err, "ipc connect addr=%s", addr)
	}
	link := newLink(conn)
	if err := link.send(frame{Kind: kindHello}); err != nil {
		link.Close()
		return nil, errors.Annotate(err, "ipc hello")
	}
	return link, nil
}
