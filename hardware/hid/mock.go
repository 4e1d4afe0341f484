package hid

// Public API to test protocol code without hardware.
import (
	"sync"

	"github.com/juju/errors"
)

type MockSource struct {
	lk      sync.Mutex
	ch      chan Info
	devices map[string]Device
}

func NewMockSource() *MockSource {
	return &MockSource{
		ch:      make(chan Info, 16),
		devices: make(map[string]Device),
	}
}

// Plug registers a fake device and announces it on the attach channel.
func (self *MockSource) Plug(info Info, d Device) {
	self.lk.Lock()
	self.devices[info.Path] = d
	self.lk.Unlock()
	self.ch <- info
}

func (self *MockSource) Attached() <-chan Info { return self.ch }

func (self *MockSource) Open(info Info) (Device, error) {
	self.lk.Lock()
	defer self.lk.Unlock()
	d, ok := self.devices[info.Path]
	if !ok {
		return nil, errors.NotFoundf("mock device path=%s", info.Path)
	}
	return d, nil
}

func (self *MockSource) Close() error { return nil }
