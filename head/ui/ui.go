package ui

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"

	"github.com/flexring/ringbridge/head/agent"
	"github.com/flexring/ringbridge/log2"
	"github.com/flexring/ringbridge/msg"
)

// UI owns the terminal side of the supervisor: it pushes configuration
// down the sink and renders agent status transitions as log lines.
// Closing the sink is the graceful-stop signal for the whole process.
type UI struct {
	Log   *log2.Log
	Alive *alive.Alive
	// Reload re-reads the config file, nil disables SIGHUP handling
	Reload func() (msg.Configuration, error)

	sink chan<- msg.Configuration
}

func (self *UI) Run(initial msg.Configuration, sink chan<- msg.Configuration, watch *agent.StatusWatch) {
	self.sink = sink

	sigch := make(chan os.Signal, 4)
	signal.Notify(sigch, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigch)

	sink <- initial
	self.Log.Infof("config submitted %s", initial.String())

	var last msg.Status
	shown := false
	stopch := self.Alive.StopChan()
	for {
		select {
		case <-watch.Changed():
			s := watch.Last()
			if shown && s == last {
				continue
			}
			last, shown = s, true
			self.Log.Infof("agent: %s", renderStatus(s))

		case sig := <-sigch:
			if sig == syscall.SIGHUP {
				self.reload()
				continue
			}
			self.Log.Infof("signal %v, stopping", sig)
			self.Alive.Stop()

		case <-stopch:
			close(sink)
			return
		}
	}
}

func (self *UI) reload() {
	if self.Reload == nil {
		self.Log.Debugf("SIGHUP ignored, reload not wired")
		return
	}
	c, err := self.Reload()
	if err != nil {
		// keep the agent on the previous config
		self.Log.Errorf("config reload failed: %s", errors.ErrorStack(err))
		return
	}
	self.sink <- c
	self.Log.Infof("config reloaded %s", c.String())
}

func renderStatus(s msg.Status) string {
	switch s.Kind {
	case msg.StatusActive:
		return fmt.Sprintf("flex=%3d %s", s.Flex, flexBar(s.Flex, 32))
	case msg.StatusDisconnected:
		return "connection lost, restarting"
	}
	return s.String()
}

func flexBar(flex byte, width int) string {
	n := int(flex) * width / 255
	return "[" + strings.Repeat("#", n) + strings.Repeat(".", width-n) + "]"
}
