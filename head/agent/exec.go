package agent

import (
	"io"
	"os"
	"os/exec"

	"github.com/juju/errors"

	"github.com/flexring/ringbridge/ipc"
	"github.com/flexring/ringbridge/log2"
	"github.com/flexring/ringbridge/msg"
)

// AgentArg is the argv switch that puts the binary into worker mode.
const AgentArg = "agent"

// execLauncher spawns the current executable as a worker process and
// performs the rendezvous: the one-shot address goes through the child's
// stdin, the child dials back.
type execLauncher struct {
	log *log2.Log
}

func NewExecLauncher(log *log2.Log) Launcher { return &execLauncher{log: log} }

func (self *execLauncher) Launch() (Worker, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, errors.Trace(err)
	}
	srv, err := ipc.NewOneShotServer()
	if err != nil {
		return nil, errors.Trace(err)
	}

	cmd := exec.Command(exe, AgentArg)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		srv.Close()
		return nil, errors.Trace(err)
	}
	if err := cmd.Start(); err != nil {
		srv.Close()
		return nil, errors.Annotate(err, "agent start")
	}
	self.log.Debugf("agent spawned pid=%d rendezvous=%s", cmd.Process.Pid, srv.Addr())

	if _, err := io.WriteString(stdin, srv.Addr()+"\n"); err != nil {
		stdin.Close()
		cmd.Process.Kill()
		cmd.Wait()
		return nil, errors.Annotate(err, "agent stdin")
	}
	stdin.Close()

	// No timeout here: a spawned worker that never dials back stalls the
	// supervisor, same as the protocol this replaces.
	link, err := srv.Accept()
	if err != nil {
		cmd.Process.Kill()
		cmd.Wait()
		return nil, errors.Annotate(err, "agent rendezvous")
	}

	w := &execWorker{cmd: cmd, link: link, exited: make(chan error, 1)}
	go func() { w.exited <- cmd.Wait() }()
	return w, nil
}

type execWorker struct {
	cmd    *exec.Cmd
	link   *ipc.Link
	exited chan error
}

func (self *execWorker) SendConfig(c msg.Configuration) error { return self.link.SendConfig(c) }
func (self *execWorker) RecvStatus() (msg.Status, error)      { return self.link.RecvStatus() }
func (self *execWorker) Exited() <-chan error                 { return self.exited }

func (self *execWorker) Kill() error {
	self.link.Close()
	if self.cmd.Process != nil {
		return self.cmd.Process.Kill()
	}
	return nil
}
