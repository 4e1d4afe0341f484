// Package agent owns the hardware worker process from the supervisor side:
// spawn, rendezvous, forward configuration down and status up, and respawn
// a fresh generation whenever anything about the current one breaks.
//
// The worker is deliberately expendable. It talks to flaky hardware through
// code that may hang or crash, so it runs in its own process and the only
// state it needs, the current Configuration, is retained here and replayed
// to every new generation.
package agent

import (
	"time"

	"github.com/juju/errors"

	"github.com/flexring/ringbridge/helpers"
	"github.com/flexring/ringbridge/log2"
	"github.com/flexring/ringbridge/msg"
)

// ConfigQueueDepth bounds the owner->supervisor configuration queue.
// Order is preserved; a full queue pushes back on the owner.
const ConfigQueueDepth = 4

// Worker is one spawned generation as seen by the manage loop.
type Worker interface {
	SendConfig(msg.Configuration) error
	// RecvStatus blocks for the next status from the worker.
	RecvStatus() (msg.Status, error)
	// Exited yields the process wait result exactly once.
	Exited() <-chan error
	Kill() error
}

type Launcher interface {
	Launch() (Worker, error)
}

type Supervisor struct {
	log        *log2.Log
	launcher   Launcher
	configCh   chan msg.Configuration
	watch      *StatusWatch
	backoff    helpers.Backoff
	lastConfig *msg.Configuration
}

// Spawn starts supervising real worker processes. The returned sink accepts
// configuration updates; closing it is the one graceful way to stop, which
// also kills the current worker. The watch always carries the most recent
// worker status, starting at NotConnected.
func Spawn(log *log2.Log) (chan<- msg.Configuration, *StatusWatch) {
	return SpawnWith(log, NewExecLauncher(log))
}

func SpawnWith(log *log2.Log, l Launcher) (chan<- msg.Configuration, *StatusWatch) {
	self := &Supervisor{
		log:      log,
		launcher: l,
		configCh: make(chan msg.Configuration, ConfigQueueDepth),
		watch:    NewStatusWatch(msg.NotConnected()),
		// first respawn is immediate, repeated failures back off
		backoff: helpers.Backoff{Min: 100 * time.Millisecond, Max: 5 * time.Second, K: 2},
	}
	go self.loop()
	return self.configCh, self.watch
}

func (self *Supervisor) loop() {
	for {
		time.Sleep(self.backoff.DelayBefore())
		self.log.Infof("agent spawning worker")
		w, err := self.launcher.Launch()
		if err != nil {
			self.log.Errorf("agent launch err=%v", err)
			self.backoff.Failure()
			continue
		}
		err = self.manage(w)
		w.Kill()
		if err == nil {
			self.log.Debugf("agent stopped")
			return
		}
		self.log.Errorf("agent worker died err=%v", errors.ErrorStack(err))
		self.backoff.Failure()
	}
}

type statusResult struct {
	status msg.Status
	err    error
}

// manage runs one worker generation. nil return means the owner closed the
// configuration sink; any error means this generation is unusable and the
// caller respawns.
func (self *Supervisor) manage(w Worker) error {
	if self.lastConfig != nil {
		if err := w.SendConfig(*self.lastConfig); err != nil {
			return errors.Annotate(err, "agent config replay")
		}
	}

	done := make(chan struct{})
	defer close(done)
	statusCh := make(chan statusResult)
	go func() {
		for {
			s, err := w.RecvStatus()
			select {
			case statusCh <- statusResult{status: s, err: err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case c, ok := <-self.configCh:
			if !ok {
				return nil
			}
			self.lastConfig = &c
			if err := w.SendConfig(c); err != nil {
				return errors.Annotate(err, "agent config forward")
			}
		case r := <-statusCh:
			if r.err != nil {
				return errors.Annotate(r.err, "agent status receive")
			}
			self.watch.Set(r.status)
			// a talking worker proves the respawn took; start over
			self.backoff.Reset()
		case err := <-w.Exited():
			return errors.Errorf("agent worker terminated err=%v", err)
		}
	}
}
