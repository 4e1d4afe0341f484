package main

import (
	"flag"
	"os"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/mattn/go-isatty"
	"github.com/temoto/alive/v2"

	"github.com/flexring/ringbridge/head/agent"
	"github.com/flexring/ringbridge/head/ui"
	"github.com/flexring/ringbridge/log2"
	"github.com/flexring/ringbridge/msg"
	"github.com/flexring/ringbridge/state"
)

var log = log2.NewStderr(log2.LInfo)

func main() {
	// child process re-executes self with this argument
	if len(os.Args) >= 2 && os.Args[1] == agent.AgentArg {
		log.SetPrefix("agent: ")
		log.SetFlags(log2.LServiceFlags)
		if err := agent.RunWorker(log); err != nil {
			log.Errorf("stopped: %s", errors.ErrorStack(err))
			os.Exit(1)
		}
		return
	}

	cmdline := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	flagConfig := cmdline.String("config", "ringbridge.hcl", "")
	flagDebug := cmdline.Bool("debug", false, "debug logging")
	cmdline.Parse(os.Args[1:]) //nolint:errcheck

	if sdnotify("start") {
		// under systemd, journal adds timestamps
		log.SetFlags(log2.LServiceFlags)
	} else if isatty.IsTerminal(os.Stderr.Fd()) {
		log.SetFlags(log2.LInteractiveFlags)
	} else {
		log.SetFlags(log2.LStdFlags)
	}

	fs := state.NewOsFullReader(".")
	config := state.MustReadConfig(log, fs, *flagConfig)
	if *flagDebug || config.LogDebug {
		log.SetLevel(log2.LDebug)
	}
	log.Debugf("config=%+v", config)

	a := alive.NewAlive()
	sink, watch := agent.Spawn(log)
	front := &ui.UI{
		Log:   log,
		Alive: a,
		Reload: func() (msg.Configuration, error) {
			c, err := state.ReadConfig(log, fs, *flagConfig)
			if err != nil {
				return msg.Configuration{}, errors.Trace(err)
			}
			return c.Configuration(), nil
		},
	}

	sdnotify(daemon.SdNotifyReady)
	front.Run(config.Configuration(), sink, watch)
	log.Infof("goodbye")
}

func sdnotify(s string) bool {
	ok, err := daemon.SdNotify(false, s)
	if err != nil {
		log.Fatal("sdnotify: ", errors.ErrorStack(err))
	}
	return ok
}
