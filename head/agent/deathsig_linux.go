//go:build linux
// +build linux

package agent

import (
	"golang.org/x/sys/unix"

	"github.com/flexring/ringbridge/log2"
)

// setDeathSignal makes the kernel kill the worker when the supervisor
// process disappears, so a crashed front-end never leaves an orphan
// holding the device.
func setDeathSignal(log *log2.Log) {
	if err := unix.Prctl(unix.PR_SET_PDEATHSIG, uintptr(unix.SIGKILL), 0, 0, 0); err != nil {
		log.Errorf("agent pdeathsig err=%v", err)
	}
}
