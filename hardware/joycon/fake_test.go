package joycon

import (
	"sync"
	"testing"
	"time"

	"github.com/flexring/ringbridge/msg"
)

// fakeDevice emulates the accessory firmware well enough for the handshake:
// every output command produces one scripted reply on the read queue.
// Tests feed sensor frames into the same queue after initialization and
// close it to simulate the device disappearing.
type fakeDevice struct {
	lk     sync.Mutex
	readCh chan []byte
	closed bool
	sent   map[byte]int
	wrote  [][]byte
	// mangle edits the default (acknowledged, predicate-satisfying) reply;
	// count is 1-based per sub-command.
	mangle map[byte]func(count int, reply []byte)
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		readCh: make(chan []byte, 64),
		sent:   make(map[byte]int),
		mangle: make(map[byte]func(int, []byte)),
	}
}

func (self *fakeDevice) Write(p []byte) (int, error) {
	cmd := p[10]
	self.lk.Lock()
	self.sent[cmd]++
	count := self.sent[cmd]
	cp := make([]byte, len(p))
	copy(cp, p)
	self.wrote = append(self.wrote, cp)
	fn := self.mangle[cmd]
	self.lk.Unlock()

	reply := make([]byte, InputReportLength)
	reply[0] = reportTagReply
	reply[ackOffset] = 0x80
	reply[replyIDOffset] = cmd
	switch cmd {
	case subSetMCUConfig:
		// the two uses of 0x21 differ in the second payload byte
		if len(p) > 12 && p[12] == 0x01 {
			reply[15] = 9
			reply[17] = 1
		} else {
			reply[15] = 1
			reply[22] = 3
		}
	case subRingPoll:
		reply[16] = 0x20
	}
	if fn != nil {
		fn(count, reply)
	}
	self.readCh <- reply
	return len(p), nil
}

func (self *fakeDevice) Read(p []byte) (int, error) {
	b, ok := <-self.readCh
	if !ok {
		return 0, errFakeGone
	}
	return copy(p, b), nil
}

func (self *fakeDevice) Close() error { return nil }

// feedFrame queues one raw input report for the read loop.
func (self *fakeDevice) feedFrame(tag byte, length int, flex byte) {
	b := make([]byte, length)
	if length > 0 {
		b[0] = tag
	}
	if length > flexOffset {
		b[flexOffset] = flex
	}
	self.readCh <- b
}

// gone makes the next Read fail, like an unplugged accessory.
func (self *fakeDevice) gone() {
	self.lk.Lock()
	defer self.lk.Unlock()
	if !self.closed {
		self.closed = true
		close(self.readCh)
	}
}

func (self *fakeDevice) sentCount(cmd byte) int {
	self.lk.Lock()
	defer self.lk.Unlock()
	return self.sent[cmd]
}

type fakeGoneError struct{}

func (fakeGoneError) Error() string { return "fake device gone" }

var errFakeGone = fakeGoneError{}

type statusRecorder struct {
	ch chan msg.Status
}

func newStatusRecorder() *statusRecorder {
	return &statusRecorder{ch: make(chan msg.Status, 256)}
}

func (self *statusRecorder) fn(s msg.Status) error {
	self.ch <- s
	return nil
}

func (self *statusRecorder) next(t *testing.T) msg.Status {
	t.Helper()
	select {
	case s := <-self.ch:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("status timeout")
		return msg.Status{}
	}
}

func (self *statusRecorder) expectNone(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case s := <-self.ch:
		t.Fatalf("unexpected status %s", s.String())
	case <-time.After(d):
	}
}
