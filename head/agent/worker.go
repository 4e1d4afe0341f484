package agent

import (
	"bufio"
	"os"
	"strings"

	"github.com/juju/errors"

	"github.com/flexring/ringbridge/hardware/hid"
	"github.com/flexring/ringbridge/hardware/joycon"
	"github.com/flexring/ringbridge/ipc"
	"github.com/flexring/ringbridge/log2"
	"github.com/flexring/ringbridge/msg"
	"github.com/flexring/ringbridge/osc"
)

// RunWorker is the worker-process entry: read the rendezvous address from
// stdin, dial the supervisor, then hand the protocol engine its plumbing.
// It returns only on fatal error; the process lives exactly one device
// generation.
func RunWorker(log *log2.Log) error {
	setDeathSignal(log)

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return errors.Annotate(err, "agent rendezvous address")
	}
	link, err := ipc.Connect(strings.TrimSpace(line))
	if err != nil {
		return errors.Trace(err)
	}
	defer link.Close()

	configCh := make(chan msg.Configuration, ConfigQueueDepth)
	go func() {
		for {
			c, err := link.RecvConfig()
			if err != nil {
				log.Debugf("agent config stream end err=%v", err)
				return
			}
			configCh <- c
		}
	}()

	enc, err := osc.NewEncoder(log)
	if err != nil {
		return errors.Trace(err)
	}
	defer enc.Close()

	src, err := hid.NewSource(log)
	if err != nil {
		return errors.Trace(err)
	}
	defer src.Close()

	eng := &joycon.Engine{
		Log:     log,
		Source:  src,
		Encoder: enc,
		Config:  configCh,
		Status:  link.SendStatus,
	}
	return errors.Trace(eng.Run())
}
