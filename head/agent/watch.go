package agent

import (
	"sync"

	"github.com/flexring/ringbridge/helpers"
	"github.com/flexring/ringbridge/msg"
)

// StatusWatch hands the owner the most recent worker status. It is latest
// wins, not a queue: values published while the owner is busy collapse
// into the newest one, only eventual delivery of the last value is
// guaranteed.
type StatusWatch struct {
	lk   sync.Mutex
	last msg.Status
	ch   chan struct{}
}

func NewStatusWatch(initial msg.Status) *StatusWatch {
	return &StatusWatch{last: initial, ch: make(chan struct{}, 1)}
}

func (self *StatusWatch) Set(s msg.Status) {
	helpers.WithLock(&self.lk, func() { self.last = s })
	select {
	case self.ch <- struct{}{}:
	default:
	}
}

func (self *StatusWatch) Last() msg.Status {
	self.lk.Lock()
	defer self.lk.Unlock()
	return self.last
}

// Changed pulses after Set; consecutive Sets may collapse into one pulse.
func (self *StatusWatch) Changed() <-chan struct{} { return self.ch }
